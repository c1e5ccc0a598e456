// Package config loads and validates collector configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	DB        DBConfig        `mapstructure:"db"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Consent   ConsentConfig   `mapstructure:"consent"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int `mapstructure:"port"`
	MaxBodyBytes    int `mapstructure:"max_body_bytes"`
	ShutdownTimeout int `mapstructure:"shutdown_timeout_seconds"`
}

// DBConfig controls the Postgres connection pool and schema bootstrap.
type DBConfig struct {
	DSN                string `mapstructure:"dsn"`
	MinConns           int32  `mapstructure:"min_conns"`
	MaxConns           int32  `mapstructure:"max_conns"`
	IdleTimeoutSeconds int    `mapstructure:"idle_timeout_seconds"`
	ConnTimeoutSeconds int    `mapstructure:"conn_timeout_seconds"`
	BootstrapAttempts  int    `mapstructure:"bootstrap_attempts"`
	BootstrapBackoffMs int    `mapstructure:"bootstrap_backoff_ms"`
}

// RateLimitConfig bounds ingestion requests per client address.
type RateLimitConfig struct {
	WindowMinutes int `mapstructure:"window_minutes"`
	MaxRequests   int `mapstructure:"max_requests"`
}

// ConsentConfig names the cookie the browser client checks for consent.
type ConsentConfig struct {
	CookieName  string `mapstructure:"cookie_name"`
	CookieValue string `mapstructure:"cookie_value"`
}

// LoggingConfig toggles zap development features and the rotating file sink.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	FilePath    string `mapstructure:"file_path"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DATAFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_body_bytes", 50*1024)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("db.min_conns", 2)
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.idle_timeout_seconds", 30)
	v.SetDefault("db.conn_timeout_seconds", 5)
	v.SetDefault("db.bootstrap_attempts", 5)
	v.SetDefault("db.bootstrap_backoff_ms", 2000)
	v.SetDefault("rate_limit.window_minutes", 15)
	v.SetDefault("rate_limit.max_requests", 500)
	v.SetDefault("consent.cookie_name", "cookies_accepted")
	v.SetDefault("consent.cookie_value", "true")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be > 0")
	}
	if c.DB.MinConns < 0 || c.DB.MaxConns <= 0 || c.DB.MinConns > c.DB.MaxConns {
		return fmt.Errorf("db.min_conns/db.max_conns must satisfy 0 <= min <= max, max > 0")
	}
	if c.DB.BootstrapAttempts <= 0 {
		return fmt.Errorf("db.bootstrap_attempts must be > 0")
	}
	if c.RateLimit.WindowMinutes <= 0 || c.RateLimit.MaxRequests <= 0 {
		return fmt.Errorf("rate_limit.window_minutes and rate_limit.max_requests must be > 0")
	}
	if c.Consent.CookieName == "" {
		return fmt.Errorf("consent.cookie_name must be set")
	}
	return nil
}

// ShutdownTimeout converts the configured shutdown deadline into a duration.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeout) * time.Second
}

// BootstrapBackoff converts the configured initial backoff into a duration.
func (c Config) BootstrapBackoff() time.Duration {
	return time.Duration(c.DB.BootstrapBackoffMs) * time.Millisecond
}

// RateLimitWindow converts the configured limiter window into a duration.
func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimit.WindowMinutes) * time.Minute
}
