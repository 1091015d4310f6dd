package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	// JWT secret
	if len(c.JWT.AccessSecret) < 32 {
		errs = append(errs, "JWT_ACCESS_SECRET must be at least 32 characters")
	}

	// DB password
	if c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required")
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1–65535, got %d", c.Server.Port))
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1–65535, got %d", c.DB.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1–65535, got %d", c.Redis.Port))
	}

	// Quota limits: unlimited is a tier, not a number — limits must be positive
	if c.Quota.FreeDailyLimit < 1 {
		errs = append(errs, fmt.Sprintf("QUOTA_FREE_DAILY_LIMIT must be positive, got %d", c.Quota.FreeDailyLimit))
	}
	if c.Quota.Tier2DailyLimit < 1 {
		errs = append(errs, fmt.Sprintf("QUOTA_TIER2_DAILY_LIMIT must be positive, got %d", c.Quota.Tier2DailyLimit))
	}
	if c.Quota.StoreTimeout <= 0 {
		errs = append(errs, "QUOTA_STORE_TIMEOUT must be positive")
	}
	if c.Quota.PlanCacheTTL <= 0 || c.Quota.CounterCacheTTL <= 0 {
		errs = append(errs, "quota cache TTLs must be positive")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
