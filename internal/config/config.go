// Package config collects the daemon's runtime configuration. Values are
// layered: built-in defaults, then an optional YAML or JSON file, then a
// .env file, then SHRIKE_* environment variables. Later layers win.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"sigs.k8s.io/yaml"
)

// Store backends the daemon can run against.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds every knob the daemon reads at startup.
type Config struct {
	// ListenAddr is the HTTP API bind address.
	ListenAddr string `json:"listen_addr"`

	// StoreBackend selects the keyed state backend: memory or redis.
	StoreBackend  string `json:"store_backend"`
	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`
	RedisDB       int    `json:"redis_db"`

	// RulesFile is an optional file of extra rules loaded on top of the
	// defaults.
	RulesFile string `json:"rules_file"`

	// ScorerEnabled switches the contextual scorer on. ScorerURL selects
	// the remote scoring service; empty keeps the built-in simulated
	// scorer. ScorerTimeoutMillis bounds each contextual call.
	ScorerEnabled       bool   `json:"scorer_enabled"`
	ScorerURL           string `json:"scorer_url"`
	ScorerTimeoutMillis int    `json:"scorer_timeout_millis"`

	// Breaker thresholds for the contextual scorer dependency.
	BreakerFailureThreshold int `json:"breaker_failure_threshold"`
	BreakerResetSeconds     int `json:"breaker_reset_seconds"`

	// Per-client API rate limiting. Zero RPS disables it.
	RateLimitRPS   float64 `json:"rate_limit_rps"`
	RateLimitBurst int     `json:"rate_limit_burst"`

	// Logging. LogFile empty means stderr only; the rotation knobs apply
	// to the file sink.
	LogLevel      string `json:"log_level"`
	LogFile       string `json:"log_file"`
	LogMaxSizeMB  int    `json:"log_max_size_mb"`
	LogMaxBackups int    `json:"log_max_backups"`
	LogMaxAgeDays int    `json:"log_max_age_days"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddr:              ":8080",
		StoreBackend:            BackendMemory,
		RedisAddr:               "localhost:6379",
		ScorerEnabled:           true,
		ScorerTimeoutMillis:     1500,
		BreakerFailureThreshold: 5,
		BreakerResetSeconds:     30,
		RateLimitRPS:            0,
		RateLimitBurst:          20,
		LogLevel:                "info",
		LogMaxSizeMB:            100,
		LogMaxBackups:           3,
		LogMaxAgeDays:           28,
	}
}

// Load builds the configuration: defaults, then the given file when path is
// non-empty, then .env, then SHRIKE_* environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	// .env is optional; a missing file is the normal case outside dev.
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overlays SHRIKE_* environment variables onto cfg.
func (c *Config) applyEnv() error {
	setString(&c.ListenAddr, "SHRIKE_LISTEN_ADDR")
	setString(&c.StoreBackend, "SHRIKE_STORE_BACKEND")
	setString(&c.RedisAddr, "SHRIKE_REDIS_ADDR")
	setString(&c.RedisPassword, "SHRIKE_REDIS_PASSWORD")
	setString(&c.RulesFile, "SHRIKE_RULES_FILE")
	setString(&c.ScorerURL, "SHRIKE_SCORER_URL")
	setString(&c.LogLevel, "SHRIKE_LOG_LEVEL")
	setString(&c.LogFile, "SHRIKE_LOG_FILE")

	if err := setInt(&c.RedisDB, "SHRIKE_REDIS_DB"); err != nil {
		return err
	}
	if err := setInt(&c.ScorerTimeoutMillis, "SHRIKE_SCORER_TIMEOUT_MILLIS"); err != nil {
		return err
	}
	if err := setInt(&c.BreakerFailureThreshold, "SHRIKE_BREAKER_FAILURE_THRESHOLD"); err != nil {
		return err
	}
	if err := setInt(&c.BreakerResetSeconds, "SHRIKE_BREAKER_RESET_SECONDS"); err != nil {
		return err
	}
	if err := setInt(&c.RateLimitBurst, "SHRIKE_RATE_LIMIT_BURST"); err != nil {
		return err
	}
	if err := setFloat(&c.RateLimitRPS, "SHRIKE_RATE_LIMIT_RPS"); err != nil {
		return err
	}
	if err := setBool(&c.ScorerEnabled, "SHRIKE_SCORER_ENABLED"); err != nil {
		return err
	}
	return nil
}

// Validate rejects configurations the daemon cannot run with.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	switch c.StoreBackend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("unknown store_backend %q (want %q or %q)", c.StoreBackend, BackendMemory, BackendRedis)
	}
	if c.StoreBackend == BackendRedis && c.RedisAddr == "" {
		return fmt.Errorf("redis_addr is required for the redis backend")
	}
	if c.ScorerTimeoutMillis <= 0 {
		return fmt.Errorf("scorer_timeout_millis must be positive")
	}
	if c.BreakerFailureThreshold <= 0 {
		return fmt.Errorf("breaker_failure_threshold must be positive")
	}
	if c.BreakerResetSeconds <= 0 {
		return fmt.Errorf("breaker_reset_seconds must be positive")
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("rate_limit_rps must not be negative")
	}
	return nil
}

// ScorerTimeout returns the contextual scoring deadline as a duration.
func (c *Config) ScorerTimeout() time.Duration {
	return time.Duration(c.ScorerTimeoutMillis) * time.Millisecond
}

// BreakerReset returns the breaker reset timeout as a duration.
func (c *Config) BreakerReset() time.Duration {
	return time.Duration(c.BreakerResetSeconds) * time.Second
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

func setBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}
