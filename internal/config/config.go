// Package config loads application settings from environment variables,
// applies defaults, and validates everything at startup so a misconfigured
// service refuses to boot instead of failing mid-upload.
package config

import (
	"fmt"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Upload   UploadConfig
	Redis    RedisConfig
	Rate     RateLimitConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request body.
	// Uploads of large files stream through this, so it is generous.
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"5m"`

	// WriteTimeout is the maximum duration for writing a response
	// (default: 0, uploads and websockets outlive any fixed limit)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of pooled connections (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections kept open (default: 4)
	MinConns int `env:"DB_MIN_CONNS" default:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime closes connections idle longer than this (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// UploadConfig holds pricing upload processing settings.
type UploadConfig struct {
	// MaxFileSize is the maximum accepted upload in bytes (default: 100MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"104857600"`

	// BatchSize is the number of validated rows per bulk commit (default: 5000)
	BatchSize int `env:"UPLOAD_BATCH_SIZE" default:"5000"`

	// Timeout bounds a single upload run end to end (default: 10m)
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"10m"`

	// RejectionLimit caps how many per-row rejections are returned in the
	// upload summary (default: 100). Counters are never capped.
	RejectionLimit int `env:"UPLOAD_REJECTION_LIMIT" default:"100"`
}

// RedisConfig holds the result-page cache settings. An empty Addr disables
// caching entirely.
type RedisConfig struct {
	// Addr is the Redis host:port; empty means no cache
	Addr string `env:"REDIS_ADDR"`

	// Password authenticates against Redis (default: none)
	Password string `env:"REDIS_PASSWORD"`

	// DB selects the Redis logical database (default: 0)
	DB int `env:"REDIS_DB" default:"0"`

	// PageTTL bounds staleness of cached pricing pages (default: 5m)
	PageTTL time.Duration `env:"REDIS_PAGE_TTL" default:"5m"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit is requests per minute for the upload endpoint (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port form.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// String renders the config for startup logging with secrets masked.
func (c *Config) String() string {
	redis := "disabled"
	if c.Redis.Addr != "" {
		redis = fmt.Sprintf("{Addr: %q, DB: %d, PageTTL: %s}", c.Redis.Addr, c.Redis.DB, c.Redis.PageTTL)
	}
	return fmt.Sprintf(
		"Config{Server: {Host: %q, Port: %d}, Database: {URL: [MASKED], MaxConns: %d, MinConns: %d}, "+
			"Upload: {MaxFileSize: %d, BatchSize: %d, Timeout: %s}, Redis: %s, "+
			"Rate: {Enabled: %v, RequestsPerMinute: %d, UploadLimit: %d}, Logging: {Level: %q, Format: %q}}",
		c.Server.Host, c.Server.Port,
		c.Database.MaxConns, c.Database.MinConns,
		c.Upload.MaxFileSize, c.Upload.BatchSize, c.Upload.Timeout, redis,
		c.Rate.Enabled, c.Rate.RequestsPerMinute, c.Rate.UploadLimit,
		c.Logging.Level, c.Logging.Format,
	)
}
