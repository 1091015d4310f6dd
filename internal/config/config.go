package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server ServerConfig
	DB     DBConfig
	Redis  RedisConfig
	NATS   NATSConfig
	JWT    JWTConfig
	Quota  QuotaConfig
	Log    LogConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	CORSAllowedOrigins []string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type NATSConfig struct {
	// URL is optional; when empty the service runs without the
	// subscription-event consumer and relies on in-process invalidation.
	URL string
}

type JWTConfig struct {
	AccessSecret string
	AccessExpiry time.Duration
}

// QuotaConfig drives the quota engine: the tier→daily-limit table, the two
// local cache TTLs, the counter grace period, and the durable-store timeout.
type QuotaConfig struct {
	FreeDailyLimit  int64
	Tier2DailyLimit int64

	PlanCacheTTL    time.Duration
	CounterCacheTTL time.Duration
	CounterGrace    time.Duration
	StoreTimeout    time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:               k.String("server.host"),
			Port:               k.Int("server.port"),
			CORSAllowedOrigins: splitList(k.String("server.cors.origins")),
		},
		DB: DBConfig{
			Host:     k.String("db.host"),
			Port:     k.Int("db.port"),
			User:     k.String("db.user"),
			Password: k.String("db.password"),
			Name:     k.String("db.name"),
			SSLMode:  k.String("db.sslmode"),
			MaxConns: int32(k.Int("db.max.conns")),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		NATS: NATSConfig{
			URL: k.String("nats.url"),
		},
		JWT: JWTConfig{
			AccessSecret: k.String("jwt.access.secret"),
		},
		Quota: QuotaConfig{
			FreeDailyLimit:  k.Int64("quota.free.daily.limit"),
			Tier2DailyLimit: k.Int64("quota.tier2.daily.limit"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if len(cfg.Server.CORSAllowedOrigins) == 0 {
		cfg.Server.CORSAllowedOrigins = []string{"*"}
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "quotad"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "quotad"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 25
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Quota.FreeDailyLimit == 0 {
		cfg.Quota.FreeDailyLimit = 100
	}
	if cfg.Quota.Tier2DailyLimit == 0 {
		cfg.Quota.Tier2DailyLimit = 1000
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	// Parse durations
	cfg.JWT.AccessExpiry, err = parseDuration(k, "jwt.access.expiry", "15m")
	if err != nil {
		return nil, err
	}
	cfg.Quota.PlanCacheTTL, err = parseDuration(k, "quota.plan.cache.ttl", "1h")
	if err != nil {
		return nil, err
	}
	cfg.Quota.CounterCacheTTL, err = parseDuration(k, "quota.counter.cache.ttl", "5m")
	if err != nil {
		return nil, err
	}
	cfg.Quota.CounterGrace, err = parseDuration(k, "quota.counter.grace", "1h")
	if err != nil {
		return nil, err
	}
	cfg.Quota.StoreTimeout, err = parseDuration(k, "quota.store.timeout", "150ms")
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseDuration(k *koanf.Koanf, key, fallback string) (time.Duration, error) {
	s := k.String(key)
	if s == "" {
		s = fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return d, nil
}
