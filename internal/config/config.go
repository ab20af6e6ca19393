// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Load layers defaults, an optional file, a .env file and the environment.
// - Errors returned by Load wrap ErrLoadConfig or ErrInvalidConfig.
package config

import (
	"runtime"
	"time"
)

// Storage drivers accepted by StorageDriver.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
)

// Default price endpoints.
const (
	DefaultPricePrimaryURL  = "https://api.exchange.coinbase.com/products/BTC-USD/ticker"
	DefaultPriceFallbackURL = "https://api.coinbase.com/v2/exchange-rates?currency=BTC"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StorageDriver selects the guess repository: memory, postgres or redis.
	StorageDriver string `koanf:"storage_driver"`

	PostgresDSN      string `koanf:"postgres_dsn"`
	PostgresMaxConns int32  `koanf:"postgres_max_conns"`

	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	// PricePrimaryURL and PriceFallbackURL are tried in order.
	PricePrimaryURL  string `koanf:"price_primary_url"`
	PriceFallbackURL string `koanf:"price_fallback_url"`

	// PriceTimeoutMS bounds each provider attempt.
	PriceTimeoutMS int `koanf:"price_timeout_ms"`

	// TickerIntervalMS is the background price refresh period.
	TickerIntervalMS int `koanf:"ticker_interval_ms"`

	// GuessDurationMS is how long a guess stays open before resolution.
	GuessDurationMS int `koanf:"guess_duration_ms"`

	// CountdownIntervalMS is the countdown poll period.
	CountdownIntervalMS int `koanf:"countdown_interval_ms"`

	// ResolveRetryMS spaces retries while an expired guess is still unresolved.
	ResolveRetryMS int `koanf:"resolve_retry_ms"`

	// ClearDelayMS is how long a resolved guess stays current.
	ClearDelayMS int `koanf:"clear_delay_ms"`

	// WorkerCount sets the number of resolution workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the resolution job queue.
	QueueSize int `koanf:"queue_size"`

	// DedupeSize bounds the in-flight and revoked-token sets.
	DedupeSize int `koanf:"dedupe_size"`

	// JWTSecret signs session tokens (HS256).
	JWTSecret string `koanf:"jwt_secret"`

	// TokenTTLMinutes is the session token lifetime.
	TokenTTLMinutes int `koanf:"token_ttl_minutes"`
}

// DevJWTSecret is the signing secret used when none is configured.
const DevJWTSecret = "btcguess-dev-secret-change-me"

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		StorageDriver:       StorageMemory,
		PostgresMaxConns:    10,
		RedisAddr:           "localhost:6379",
		PricePrimaryURL:     DefaultPricePrimaryURL,
		PriceFallbackURL:    DefaultPriceFallbackURL,
		PriceTimeoutMS:      5_000,
		TickerIntervalMS:    10_000,
		GuessDurationMS:     60_000,
		CountdownIntervalMS: 100,
		ResolveRetryMS:      1_000,
		ClearDelayMS:        5_000,
		WorkerCount:         runtime.NumCPU(),
		QueueSize:           1_024,
		DedupeSize:          100_000,
		JWTSecret:           DevJWTSecret,
		TokenTTLMinutes:     60 * 24,
	}
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

// PriceTimeout returns PriceTimeoutMS as a duration.
func (c *Config) PriceTimeout() time.Duration { return ms(c.PriceTimeoutMS) }

// TickerInterval returns TickerIntervalMS as a duration.
func (c *Config) TickerInterval() time.Duration { return ms(c.TickerIntervalMS) }

// GuessDuration returns GuessDurationMS as a duration.
func (c *Config) GuessDuration() time.Duration { return ms(c.GuessDurationMS) }

// CountdownInterval returns CountdownIntervalMS as a duration.
func (c *Config) CountdownInterval() time.Duration { return ms(c.CountdownIntervalMS) }

// ResolveRetry returns ResolveRetryMS as a duration.
func (c *Config) ResolveRetry() time.Duration { return ms(c.ResolveRetryMS) }

// ClearDelay returns ClearDelayMS as a duration.
func (c *Config) ClearDelay() time.Duration { return ms(c.ClearDelayMS) }

// TokenTTL returns TokenTTLMinutes as a duration.
func (c *Config) TokenTTL() time.Duration { return time.Duration(c.TokenTTLMinutes) * time.Minute }
