package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		DB:     DBConfig{Host: "localhost", Port: 5432, User: "quotad", Password: "secret", Name: "quotad", SSLMode: "disable"},
		Redis:  RedisConfig{Host: "localhost", Port: 6379},
		JWT:    JWTConfig{AccessSecret: strings.Repeat("a", 32), AccessExpiry: 15 * time.Minute},
		Quota: QuotaConfig{
			FreeDailyLimit:  100,
			Tier2DailyLimit: 1000,
			PlanCacheTTL:    time.Hour,
			CounterCacheTTL: 5 * time.Minute,
			CounterGrace:    time.Hour,
			StoreTimeout:    150 * time.Millisecond,
		},
	}
}

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
}

func TestValidate_ShortJWTSecret(t *testing.T) {
	cfg := validConfig()
	cfg.JWT.AccessSecret = "short"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "JWT_ACCESS_SECRET") {
		t.Fatalf("expected JWT secret error, got: %v", err)
	}
}

func TestValidate_MissingDBPassword(t *testing.T) {
	cfg := validConfig()
	cfg.DB.Password = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "DB_PASSWORD") {
		t.Fatalf("expected DB password error, got: %v", err)
	}
}

func TestValidate_NonPositiveLimits(t *testing.T) {
	cfg := validConfig()
	cfg.Quota.FreeDailyLimit = 0
	cfg.Quota.Tier2DailyLimit = -5
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for non-positive limits")
	}
	if !strings.Contains(err.Error(), "QUOTA_FREE_DAILY_LIMIT") || !strings.Contains(err.Error(), "QUOTA_TIER2_DAILY_LIMIT") {
		t.Fatalf("expected both limit errors collected, got: %v", err)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.JWT.AccessSecret = ""
	cfg.DB.Password = ""
	cfg.Server.Port = 0
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"JWT_ACCESS_SECRET", "DB_PASSWORD", "SERVER_PORT"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %s in error, got: %v", want, err)
		}
	}
}
