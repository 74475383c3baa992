// Package config loads and validates the runtime configuration: YAML
// file first, then NEBULA_* environment overrides. Absent configuration
// always falls back to usable defaults; invalid configuration surfaces
// as structured config errors, never as a crash.
package config

import (
	"log/slog"
	"os"
	"time"

	"github.com/vanyastaff/nebula-sub011/internal/resilience"
	"github.com/vanyastaff/nebula-sub011/internal/types"
)

// Config is the root runtime configuration.
type Config struct {
	Execution   ExecutionConfig                    `yaml:"execution"`
	Credentials CredentialConfig                   `yaml:"credentials"`
	Events      EventsConfig                       `yaml:"events"`
	Journal     JournalConfig                      `yaml:"journal"`
	Logging     LoggingConfig                      `yaml:"logging"`
	Pools       map[string]PoolConfig              `yaml:"pools" validate:"dive"`
	Policies    map[string]resilience.PolicyConfig `yaml:"policies"`
}

// ExecutionConfig carries scheduler defaults; workflow documents may
// override them per workflow.
type ExecutionConfig struct {
	MaxParallelNodes int                     `yaml:"max_parallel_nodes" validate:"min=1,max=256"`
	ContinueOnError  bool                    `yaml:"continue_on_error"`
	DefaultTimeout   types.Duration          `yaml:"default_timeout"`
	DefaultRetry     *resilience.RetryConfig `yaml:"default_retry"`
}

// CredentialConfig selects and parameterizes the credential provider.
type CredentialConfig struct {
	// Provider is "memory" or "file".
	Provider string `yaml:"provider" validate:"oneof=memory file"`

	// Path is the root directory of the file provider.
	Path string `yaml:"path" validate:"required_if=Provider file"`

	// MasterKeyEnv names the environment variable holding the envelope
	// master key. The key itself never appears in config files.
	MasterKeyEnv string `yaml:"master_key_env"`

	// RedisAddr, when set, switches refresh locking to a shared redsync
	// backend so multiple managers coordinate refreshes.
	RedisAddr string `yaml:"redis_addr"`
	RedisDB   int    `yaml:"redis_db" validate:"gte=0"`
}

// MasterKey reads the envelope master key from the configured
// environment variable. Missing env yields a zero Secret, which the
// caller treats as "no credential support".
func (c CredentialConfig) MasterKey() types.Secret {
	name := c.MasterKeyEnv
	if name == "" {
		name = "NEBULA_MASTER_KEY"
	}
	return types.NewSecret(os.Getenv(name))
}

// EventsConfig sizes the broadcast bus.
type EventsConfig struct {
	BufferSize int `yaml:"buffer_size" validate:"min=1"`
}

// JournalConfig selects the journal sink. An empty path keeps the
// journal in memory.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Logger builds a slog logger per the config.
func (c LoggingConfig) Logger() *slog.Logger {
	var level slog.Level
	switch c.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// PoolConfig parameterizes one named resource pool.
type PoolConfig struct {
	MinSize          int            `yaml:"min_size" validate:"gte=0"`
	MaxSize          int            `yaml:"max_size" validate:"gte=1"`
	AcquireTimeout   types.Duration `yaml:"acquire_timeout"`
	IdleTimeout      types.Duration `yaml:"idle_timeout"`
	EvictionInterval types.Duration `yaml:"eviction_interval"`
}

// Default returns the configuration used when no file and no overrides
// are present.
func Default() *Config {
	return &Config{
		Execution: ExecutionConfig{
			MaxParallelNodes: 4,
			DefaultTimeout:   types.Duration(30 * time.Second),
		},
		Credentials: CredentialConfig{
			Provider: "memory",
		},
		Events:  EventsConfig{BufferSize: 100},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}
