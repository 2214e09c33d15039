package bridge

import (
	"fmt"
	"os"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds connection settings for the Redis bridge.
type RedisConfig struct {
	URL      string // full redis:// URL, takes precedence over Addr/Password/DB
	Addr     string // default "localhost:6379"
	Password string
	DB       int
	Prefix   string // channel prefix, default "orchestra:notify:"
}

// DefaultRedisConfig returns a RedisConfig with sensible defaults.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:   "localhost:6379",
		Prefix: "orchestra:notify:",
	}
}

// RedisConfigFromEnv loads Redis configuration from environment variables.
// Falls back to defaults for any missing values.
func RedisConfigFromEnv() *RedisConfig {
	cfg := DefaultRedisConfig()

	cfg.URL = os.Getenv("REDIS_URL")
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	cfg.Password = os.Getenv("REDIS_PASSWORD")
	if db, err := strconv.Atoi(os.Getenv("REDIS_DB")); err == nil {
		cfg.DB = db
	}
	if prefix := os.Getenv("REDIS_NOTIFY_PREFIX"); prefix != "" {
		cfg.Prefix = prefix
	}
	return cfg
}

// Options converts the config into go-redis client options.
func (c *RedisConfig) Options() (*redis.Options, error) {
	if c.URL != "" {
		opt, err := redis.ParseURL(c.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return opt, nil
	}
	return &redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	}, nil
}

// TenantChannel is the Redis channel carrying messages for tenant.
func (c *RedisConfig) TenantChannel(tenant string) string {
	return c.Prefix + "tenant:" + tenant
}

func (c *RedisConfig) tenantPattern() string {
	return c.Prefix + "tenant:*"
}
