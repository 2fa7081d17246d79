// Brevis - URL Shortening and Click Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/brevis

// Package config loads and validates the Brevis configuration.
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables > YAML config file > built-in
// defaults. Environment variables use the BREVIS_ prefix with underscores
// mapping to nesting, e.g. BREVIS_SERVER_PORT -> server.port.
package config

import "time"

// Config is the root configuration for the Brevis server.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Events    EventsConfig    `koanf:"events"`
	WAL       WALConfig       `koanf:"wal"`
	Shortener ShortenerConfig `koanf:"shortener"`
	Cache     CacheConfig     `koanf:"cache"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// BaseURL is the public base used to build short URLs in responses,
	// e.g. "https://brev.is". Defaults to http://{host}:{port}.
	BaseURL string `koanf:"base_url"`

	// RedirectRatePerMinute limits GET /{code} per client IP.
	RedirectRatePerMinute int `koanf:"redirect_rate_per_minute"`

	// APIRatePerMinute limits /api/v1 endpoints per client IP.
	APIRatePerMinute int `koanf:"api_rate_per_minute"`

	// CORSAllowedOrigins lists origins allowed on the API surface.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	// Path is the database file, or ":memory:" for tests.
	Path string `koanf:"path"`

	// MaxMemory caps DuckDB memory usage, e.g. "2GB".
	MaxMemory string `koanf:"max_memory"`

	// Threads is the DuckDB thread count. 0 = runtime.NumCPU().
	Threads int `koanf:"threads"`

	// QueryTimeout bounds individual queries when the caller passes no deadline.
	QueryTimeout time.Duration `koanf:"query_timeout"`
}

// EventsConfig holds the click pipeline settings.
type EventsConfig struct {
	// Transport selects the Watermill transport: "channel" (in-process,
	// default) or "nats" (JetStream, optionally embedded).
	Transport string `koanf:"transport"`

	// Topic is the subject click events are published on.
	Topic string `koanf:"topic"`

	// PoisonTopic receives messages that exhaust all retries.
	PoisonTopic string `koanf:"poison_topic"`

	// Router retry policy for the consumer side.
	RetryMaxRetries      int           `koanf:"retry_max_retries"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `koanf:"retry_max_interval"`
	RetryMultiplier      float64       `koanf:"retry_multiplier"`

	// ThrottlePerSecond rate-limits consumption (0 = unlimited).
	ThrottlePerSecond int64 `koanf:"throttle_per_second"`

	// CloseTimeout is how long to wait for in-flight handlers on shutdown.
	CloseTimeout time.Duration `koanf:"close_timeout"`

	NATS NATSConfig `koanf:"nats"`
}

// NATSConfig holds the optional JetStream transport settings.
type NATSConfig struct {
	URL            string        `koanf:"url"`
	EmbeddedServer bool          `koanf:"embedded_server"`
	StoreDir       string        `koanf:"store_dir"`
	MaxMemory      int64         `koanf:"max_memory"`
	MaxStore       int64         `koanf:"max_store"`
	DurableName    string        `koanf:"durable_name"`
	QueueGroup     string        `koanf:"queue_group"`
	MaxReconnects  int           `koanf:"max_reconnects"`
	ReconnectWait  time.Duration `koanf:"reconnect_wait"`
	AckWaitTimeout time.Duration `koanf:"ack_wait_timeout"`
}

// WALConfig holds the click write-ahead log settings.
type WALConfig struct {
	// Dir is the BadgerDB directory for pending click entries.
	Dir string `koanf:"dir"`

	// DrainInterval is how often pending entries are retried.
	DrainInterval time.Duration `koanf:"drain_interval"`

	// MaxAttempts before an entry is surfaced as stuck (it is never
	// deleted automatically; duplication is prevented downstream).
	MaxAttempts int `koanf:"max_attempts"`

	// CompactionInterval is how often confirmed entries are purged.
	CompactionInterval time.Duration `koanf:"compaction_interval"`
}

// ShortenerConfig holds link creation settings.
type ShortenerConfig struct {
	// CodeLength is the generated short code length (6-8 typical).
	CodeLength int `koanf:"code_length"`

	// MaxCollisionRetries bounds regeneration attempts on code collision.
	MaxCollisionRetries int `koanf:"max_collision_retries"`
}

// CacheConfig holds the hot-link LRU cache settings.
type CacheConfig struct {
	// Capacity is the maximum number of cached links.
	Capacity int `koanf:"capacity"`

	// TTL bounds staleness of cached link records.
	TTL time.Duration `koanf:"ttl"`
}

// SecurityConfig holds authentication settings.
type SecurityConfig struct {
	// JWTSecret signs locally-issued tokens. Minimum 32 characters.
	JWTSecret string `koanf:"jwt_secret"`

	// TokenTTL is the local token lifetime.
	TokenTTL time.Duration `koanf:"token_ttl"`

	// IdentityURL is the external identity provider's validation endpoint.
	// Empty disables the exchange and falls back to admin credentials.
	IdentityURL string `koanf:"identity_url"`

	// AdminUsername and AdminPasswordHash (bcrypt) guard the fallback
	// credential login used when no identity provider is configured.
	AdminUsername     string `koanf:"admin_username"`
	AdminPasswordHash string `koanf:"admin_password_hash"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and environment.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                  "0.0.0.0",
			Port:                  8421,
			ReadTimeout:           10 * time.Second,
			WriteTimeout:          30 * time.Second,
			ShutdownTimeout:       10 * time.Second,
			BaseURL:               "",
			RedirectRatePerMinute: 600,
			APIRatePerMinute:      120,
			CORSAllowedOrigins:    []string{"*"},
		},
		Database: DatabaseConfig{
			Path:         "/data/brevis.duckdb",
			MaxMemory:    "1GB",
			Threads:      0,
			QueryTimeout: 30 * time.Second,
		},
		Events: EventsConfig{
			Transport:            "channel",
			Topic:                "clicks.recorded",
			PoisonTopic:          "clicks.poison",
			RetryMaxRetries:      5,
			RetryInitialInterval: time.Second,
			RetryMaxInterval:     time.Minute,
			RetryMultiplier:      2.0,
			ThrottlePerSecond:    0,
			CloseTimeout:         30 * time.Second,
			NATS: NATSConfig{
				URL:            "nats://127.0.0.1:4222",
				EmbeddedServer: true,
				StoreDir:       "/data/nats/jetstream",
				MaxMemory:      1 << 30,  // 1GB
				MaxStore:       10 << 30, // 10GB
				DurableName:    "click-recorder",
				QueueGroup:     "recorders",
				MaxReconnects:  -1,
				ReconnectWait:  2 * time.Second,
				AckWaitTimeout: 30 * time.Second,
			},
		},
		WAL: WALConfig{
			Dir:                "/data/wal",
			DrainInterval:      5 * time.Second,
			MaxAttempts:        10,
			CompactionInterval: time.Minute,
		},
		Shortener: ShortenerConfig{
			CodeLength:          7,
			MaxCollisionRetries: 5,
		},
		Cache: CacheConfig{
			Capacity: 10000,
			TTL:      5 * time.Minute,
		},
		Security: SecurityConfig{
			JWTSecret:         "",
			TokenTTL:          24 * time.Hour,
			IdentityURL:       "",
			AdminUsername:     "",
			AdminPasswordHash: "",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}
