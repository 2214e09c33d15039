package config

import (
	"os"
	"strconv"
	"time"
)

// ClientConfig holds notification channel client settings.
type ClientConfig struct {
	BaseURL     string        `json:"base_url"`
	Keepalive   time.Duration `json:"keepalive"`
	BackoffBase time.Duration `json:"backoff_base"`
	BackoffMax  time.Duration `json:"backoff_max"`
}

// DefaultClientConfig returns the default client configuration.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:     "ws://localhost:8090/notifications",
		Keepalive:   10 * time.Second,
		BackoffBase: time.Second,
		BackoffMax:  15 * time.Second,
	}
}

// ClientConfigFromEnv loads client configuration from environment variables.
// Falls back to defaults for any missing or unparsable values.
func ClientConfigFromEnv() *ClientConfig {
	cfg := DefaultClientConfig()

	if base := os.Getenv("NOTIFY_BASE_URL"); base != "" {
		cfg.BaseURL = base
	}
	cfg.Keepalive = durationEnv("NOTIFY_KEEPALIVE", cfg.Keepalive)
	cfg.BackoffBase = durationEnv("NOTIFY_BACKOFF_BASE", cfg.BackoffBase)
	cfg.BackoffMax = durationEnv("NOTIFY_BACKOFF_MAX", cfg.BackoffMax)
	return cfg
}

// RelayConfig holds notification relay server settings.
type RelayConfig struct {
	Addr            string `json:"addr"`
	Path            string `json:"path"`
	JWTSecret       string `json:"-"`
	ReadBufferSize  int    `json:"read_buffer_size"`
	WriteBufferSize int    `json:"write_buffer_size"`
	SendBuffer      int    `json:"send_buffer"`
	Redis           bool   `json:"redis"`
}

// DefaultRelayConfig returns the default relay configuration.
func DefaultRelayConfig() *RelayConfig {
	return &RelayConfig{
		Addr:            ":8090",
		Path:            "/notifications",
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBuffer:      256,
	}
}

// RelayConfigFromEnv loads relay configuration from environment variables.
func RelayConfigFromEnv() *RelayConfig {
	cfg := DefaultRelayConfig()

	if addr := os.Getenv("NOTIFY_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if path := os.Getenv("NOTIFY_PATH"); path != "" {
		cfg.Path = path
	}
	cfg.JWTSecret = os.Getenv("NOTIFY_JWT_SECRET")
	cfg.ReadBufferSize = intEnv("NOTIFY_READ_BUFFER", cfg.ReadBufferSize)
	cfg.WriteBufferSize = intEnv("NOTIFY_WRITE_BUFFER", cfg.WriteBufferSize)
	cfg.SendBuffer = intEnv("NOTIFY_SEND_BUFFER", cfg.SendBuffer)
	if v, err := strconv.ParseBool(os.Getenv("NOTIFY_REDIS")); err == nil {
		cfg.Redis = v
	}
	return cfg
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
