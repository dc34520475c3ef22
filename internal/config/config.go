package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dyluth/rollcall/internal/pending"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for configuration when --config is not given.
const DefaultPath = "rollcall.yml"

const (
	defaultRedisURL      = "redis://localhost:6379/0"
	defaultNamespace     = "default"
	defaultQueuePath     = "rollcall-queue.db"
	defaultProbeInterval = 15 * time.Second
	minProbeInterval     = time.Second
	defaultHealthAddr    = ":8080"
	defaultLogLevel      = "info"
	defaultLogFormat     = "console"
)

// Environment variables that override file values.
const (
	EnvRedisURL  = "ROLLCALL_REDIS_URL"
	EnvNamespace = "ROLLCALL_NAMESPACE"
	EnvQueuePath = "ROLLCALL_QUEUE_PATH"
	EnvUserID    = "ROLLCALL_USER_ID"
	EnvLogLevel  = "ROLLCALL_LOG_LEVEL"
)

// Config represents the top-level rollcall.yml configuration
type Config struct {
	Version   string         `yaml:"version"`
	Namespace string         `yaml:"namespace"` // Remote key prefix, typically one per school
	Redis     RedisConfig    `yaml:"redis"`
	Queue     QueueConfig    `yaml:"queue"`
	Identity  IdentityConfig `yaml:"identity"`
	Sync      SyncConfig     `yaml:"sync"`
	Logging   LoggingConfig  `yaml:"logging"`
}

// RedisConfig locates the remote store
type RedisConfig struct {
	URL string `yaml:"url"`
}

// QueueConfig locates the local pending queue
type QueueConfig struct {
	Path       string `yaml:"path"`
	Collection string `yaml:"collection,omitempty"`
}

// IdentityConfig is the signed-in recorder. An empty user_id means signed out.
type IdentityConfig struct {
	UserID      string `yaml:"user_id"`
	DisplayName string `yaml:"display_name,omitempty"`
	Role        string `yaml:"role,omitempty"`
}

// SyncConfig controls the long-running agent
type SyncConfig struct {
	ProbeInterval time.Duration `yaml:"probe_interval,omitempty"` // How often reachability is checked
	HealthAddr    string        `yaml:"health_addr,omitempty"`    // Listen address for /healthz, "off" disables it
}

// LoggingConfig controls the process logger
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"` // "console" or "json"
}

// Default returns a configuration for a local Redis with every default applied.
func Default() *Config {
	c := &Config{Version: "1.0"}
	// Defaults always validate
	_ = c.Validate()
	return c
}

// Validate applies defaults and performs strict validation on the configuration
func (c *Config) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Namespace == "" {
		c.Namespace = defaultNamespace
	}
	if strings.ContainsAny(c.Namespace, ": \t\n") {
		return fmt.Errorf("invalid namespace %q: must not contain ':' or whitespace", c.Namespace)
	}

	if c.Redis.URL == "" {
		c.Redis.URL = defaultRedisURL
	}
	if _, err := redis.ParseURL(c.Redis.URL); err != nil {
		return fmt.Errorf("invalid redis.url: %w", err)
	}

	if c.Queue.Path == "" {
		c.Queue.Path = defaultQueuePath
	}
	if c.Queue.Collection == "" {
		c.Queue.Collection = pending.DefaultCollection
	}

	c.Identity.UserID = strings.TrimSpace(c.Identity.UserID)

	if c.Sync.ProbeInterval == 0 {
		c.Sync.ProbeInterval = defaultProbeInterval
	}
	if c.Sync.ProbeInterval < minProbeInterval {
		return fmt.Errorf("sync.probe_interval must be >= %v, got %v", minProbeInterval, c.Sync.ProbeInterval)
	}
	if c.Sync.HealthAddr == "" {
		c.Sync.HealthAddr = defaultHealthAddr
	}

	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid logging.format: %s (must be 'console' or 'json')", c.Logging.Format)
	}

	return nil
}

// HealthEnabled reports whether the agent should serve /healthz.
func (c *Config) HealthEnabled() bool {
	return c.Sync.HealthAddr != "off"
}

// RedisOptions parses the configured URL.
func (c *Config) RedisOptions() (*redis.Options, error) {
	opts, err := redis.ParseURL(c.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return opts, nil
}

// ApplyEnv overrides file values with any set environment variables.
// getenv is normally os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvRedisURL); v != "" {
		c.Redis.URL = v
	}
	if v := getenv(EnvNamespace); v != "" {
		c.Namespace = v
	}
	if v := getenv(EnvQueuePath); v != "" {
		c.Queue.Path = v
	}
	if v := getenv(EnvUserID); v != "" {
		c.Identity.UserID = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
}

// Load reads rollcall.yml from the specified path, applies environment overrides
// and validates the result
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	config.ApplyEnv(os.Getenv)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadOrDefault is Load, except that a missing file yields Default with
// environment overrides applied.
func LoadOrDefault(path string) (*Config, error) {
	config, err := Load(path)
	if err == nil {
		return config, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	config = &Config{Version: "1.0"}
	config.ApplyEnv(os.Getenv)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}
