// Package config provides centralized configuration management for the mirror.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import "time"

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Upstream UpstreamConfig
	Refresh  RefreshConfig
	Archive  ArchiveConfig
	Alert    AlertConfig
	Rate     RateLimitConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 2m,
	// the full record listing is several MB)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"2m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// UpstreamConfig holds settings for the upstream dataset archive.
type UpstreamConfig struct {
	// ArchiveURL is the URL of the upstream ZIP archive (required)
	ArchiveURL string `env:"ARCHIVE_URL" required:"true"`

	// FetchTimeout bounds one download attempt (default: 5m)
	FetchTimeout time.Duration `env:"FETCH_TIMEOUT" default:"5m"`
}

// RefreshConfig holds refresh scheduling settings.
type RefreshConfig struct {
	// FetchTime is the daily wall-clock refresh time in HH:MM (default: 18:00)
	FetchTime string `env:"FETCH_TIME" default:"18:00"`

	// RunAtStartup triggers an immediate refresh when the process starts (default: true)
	RunAtStartup bool `env:"REFRESH_RUN_AT_STARTUP" default:"true"`
}

// ArchiveConfig holds settings for the on-disk dataset archive.
type ArchiveConfig struct {
	// Path is the SQLite database file for the last-known-good archive
	// (default: data/fibermirror.db)
	Path string `env:"CACHE_DB_PATH" default:"data/fibermirror.db"`
}

// AlertConfig holds operator alerting settings.
// Alerting is disabled when BotToken or ChatID is empty.
type AlertConfig struct {
	// BotToken is the Telegram bot token used for failure alerts
	BotToken string `env:"TELEGRAM_BOT_TOKEN"`

	// ChatID is the Telegram chat to send alerts to
	ChatID string `env:"TELEGRAM_CHAT_ID"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the rate limit per IP (default: 300)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"300"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + itoa(c.Port)
	}
	return c.Host + ":" + itoa(c.Port)
}

// itoa converts an int to string without importing strconv in this file.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	n := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		b[n] = '-'
	}
	return string(b[n:])
}
