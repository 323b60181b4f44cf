// Package config loads engine configuration from TOML with environment
// overrides.
//
// File settings are the baseline; any TASKRUNNER_* variable set in the
// environment wins over the file. Everything has a default, so an empty
// config is valid.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/vinayprograms/taskrunner/runner"
)

// Environment override variables.
const (
	EnvWorkers       = "TASKRUNNER_WORKERS"
	EnvDetachTTL     = "TASKRUNNER_DETACH_TTL"
	EnvSweepInterval = "TASKRUNNER_SWEEP_INTERVAL"
	EnvCacheMode     = "TASKRUNNER_CACHE_MODE"
	EnvDedupeMode    = "TASKRUNNER_DEDUPE_MODE"
	EnvLogLevel      = "TASKRUNNER_LOG_LEVEL"
	EnvStateBackend  = "TASKRUNNER_STATE_BACKEND"
	EnvStatePath     = "TASKRUNNER_STATE_PATH"
	EnvStateURL      = "TASKRUNNER_STATE_URL"
	EnvOTLPEndpoint  = "TASKRUNNER_OTLP_ENDPOINT"
)

// Duration wraps time.Duration so TOML accepts "30s" style values.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full engine configuration.
type Config struct {
	// Workers sizes the shared worker pool.
	Workers int `toml:"workers"`

	// DetachTTL is how long a detached Runner survives before eviction.
	DetachTTL Duration `toml:"detach_ttl"`

	// SweepInterval enables the background eviction sweeper when > 0.
	SweepInterval Duration `toml:"sweep_interval"`

	// DefaultCacheMode applies when a submission names no cache mode:
	// "none", "cache_on_success" or "cache_refresh".
	DefaultCacheMode string `toml:"default_cache_mode"`

	// DefaultDedupeMode applies when a submission names no dedupe mode:
	// "throw", "use_existing" or "replace".
	DefaultDedupeMode string `toml:"default_dedupe_mode"`

	Log       LogConfig       `toml:"log"`
	State     StateConfig     `toml:"state"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `toml:"level"`
}

// StateConfig selects the saved-state backend.
type StateConfig struct {
	// Backend is "memory", "sqlite" or "nats".
	Backend string `toml:"backend"`

	// Path is the sqlite database file.
	Path string `toml:"path"`

	// URL is the NATS server address.
	URL string `toml:"url"`

	// Bucket is the NATS KV bucket name.
	Bucket string `toml:"bucket"`
}

// TelemetryConfig controls OTLP trace export.
type TelemetryConfig struct {
	Enabled bool `toml:"enabled"`

	// Endpoint is the OTLP collector address, host:port.
	Endpoint string `toml:"endpoint"`

	// Insecure disables TLS toward the collector.
	Insecure bool `toml:"insecure"`

	// Protocol is "grpc" or "http".
	Protocol string `toml:"protocol"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Workers:           8,
		DetachTTL:         Duration(30 * time.Second),
		DefaultCacheMode:  "none",
		DefaultDedupeMode: "throw",
		Log:               LogConfig{Level: "info"},
		State:             StateConfig{Backend: "memory", Path: "taskrunner.db", Bucket: "taskrunner-state"},
		Telemetry:         TelemetryConfig{Endpoint: "localhost:4317", Protocol: "grpc"},
	}
}

// LoadFile reads a TOML config file and applies environment overrides.
// A missing file is not an error: defaults plus environment apply.
func LoadFile(path string) (Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Default()
			cfg.applyEnv()
			return cfg, cfg.Validate()
		}
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(string(content))
}

// Parse decodes TOML content over the defaults and applies environment
// overrides.
func Parse(content string) (Config, error) {
	cfg := Default()
	if _, err := toml.Decode(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workers = n
		}
	}
	if v := os.Getenv(EnvDetachTTL); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.DetachTTL = Duration(d)
		}
	}
	if v := os.Getenv(EnvSweepInterval); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.SweepInterval = Duration(d)
		}
	}
	if v := os.Getenv(EnvCacheMode); v != "" {
		c.DefaultCacheMode = v
	}
	if v := os.Getenv(EnvDedupeMode); v != "" {
		c.DefaultDedupeMode = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvStateBackend); v != "" {
		c.State.Backend = v
	}
	if v := os.Getenv(EnvStatePath); v != "" {
		c.State.Path = v
	}
	if v := os.Getenv(EnvStateURL); v != "" {
		c.State.URL = v
	}
	if v := os.Getenv(EnvOTLPEndpoint); v != "" {
		c.Telemetry.Endpoint = v
	}
}

// Validate rejects values the engine cannot start with.
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.DetachTTL <= 0 {
		return fmt.Errorf("detach_ttl must be positive, got %v", c.DetachTTL.Std())
	}
	if _, err := runner.ParseCacheMode(c.DefaultCacheMode); err != nil {
		return err
	}
	if _, err := runner.ParseDedupeMode(c.DefaultDedupeMode); err != nil {
		return err
	}
	switch c.State.Backend {
	case "memory", "sqlite", "nats":
	default:
		return fmt.Errorf("unknown state backend %q", c.State.Backend)
	}
	switch c.Telemetry.Protocol {
	case "", "grpc", "http":
	default:
		return fmt.Errorf("unknown telemetry protocol %q", c.Telemetry.Protocol)
	}
	return nil
}

// CacheMode returns the parsed default cache mode. Call Validate first.
func (c *Config) CacheMode() runner.CacheMode {
	m, _ := runner.ParseCacheMode(c.DefaultCacheMode)
	return m
}

// DedupeMode returns the parsed default dedupe mode. Call Validate
// first.
func (c *Config) DedupeMode() runner.DedupeMode {
	m, _ := runner.ParseDedupeMode(c.DefaultDedupeMode)
	return m
}
