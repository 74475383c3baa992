package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/vanyastaff/nebula-sub011/internal/types"
)

// EnvPrefix gates which environment variables the loader reads.
const EnvPrefix = "NEBULA_"

// Load builds the configuration: defaults, then the YAML file when the
// path is non-empty, then NEBULA_* environment overrides, then
// validation. A missing file at an explicitly given path is an error; an
// empty path skips the file layer entirely.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, types.WrapError(types.CONFIG_LOAD_FAILED, "reading config file "+path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, types.WrapError(types.CONFIG_PARSE_FAILED, "parsing config file "+path, err)
		}
	}

	if err := applyEnv(cfg, os.Getenv); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays recognized NEBULA_* variables. Absent variables
// change nothing; present-but-invalid values fail CONFIG_PARSE_FAILED.
func applyEnv(cfg *Config, getenv func(string) string) error {
	setInt := func(name string, dst *int) error {
		raw := getenv(EnvPrefix + name)
		if raw == "" {
			return nil
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return types.NewErrorf(types.CONFIG_PARSE_FAILED, "%s%s must be an integer, got %q", EnvPrefix, name, raw)
		}
		*dst = n
		return nil
	}
	setBool := func(name string, dst *bool) error {
		raw := getenv(EnvPrefix + name)
		if raw == "" {
			return nil
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return types.NewErrorf(types.CONFIG_PARSE_FAILED, "%s%s must be a boolean, got %q", EnvPrefix, name, raw)
		}
		*dst = b
		return nil
	}
	setString := func(name string, dst *string) {
		if raw := getenv(EnvPrefix + name); raw != "" {
			*dst = raw
		}
	}
	setDuration := func(name string, dst *types.Duration) error {
		raw := getenv(EnvPrefix + name)
		if raw == "" {
			return nil
		}
		var d types.Duration
		if ms, err := strconv.Atoi(raw); err == nil {
			if err := d.UnmarshalJSON([]byte(strconv.Itoa(ms))); err != nil {
				return types.WrapError(types.CONFIG_PARSE_FAILED, EnvPrefix+name, err)
			}
		} else if err := d.UnmarshalJSON([]byte(strconv.Quote(raw))); err != nil {
			return types.NewErrorf(types.CONFIG_PARSE_FAILED, "%s%s must be milliseconds or a duration string, got %q", EnvPrefix, name, raw)
		}
		*dst = d
		return nil
	}

	if err := setInt("MAX_PARALLEL_NODES", &cfg.Execution.MaxParallelNodes); err != nil {
		return err
	}
	if err := setBool("CONTINUE_ON_ERROR", &cfg.Execution.ContinueOnError); err != nil {
		return err
	}
	if err := setDuration("DEFAULT_TIMEOUT", &cfg.Execution.DefaultTimeout); err != nil {
		return err
	}
	setString("CREDENTIAL_PROVIDER", &cfg.Credentials.Provider)
	setString("CREDENTIAL_PATH", &cfg.Credentials.Path)
	setString("REDIS_ADDR", &cfg.Credentials.RedisAddr)
	if err := setInt("REDIS_DB", &cfg.Credentials.RedisDB); err != nil {
		return err
	}
	if err := setInt("EVENT_BUFFER_SIZE", &cfg.Events.BufferSize); err != nil {
		return err
	}
	setString("JOURNAL_PATH", &cfg.Journal.Path)
	setString("LOG_LEVEL", &cfg.Logging.Level)
	setString("LOG_FORMAT", &cfg.Logging.Format)
	return nil
}

// Validate runs struct-tag validation and reports every offending field
// at once.
func Validate(cfg *Config) error {
	if cfg == nil {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "configuration is nil")
	}
	err := validator.New().Struct(cfg)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return types.WrapError(types.CONFIG_VALIDATION_FAILED, "validating configuration", err)
	}
	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		messages = append(messages, formatFieldError(fe))
	}
	return types.NewErrorf(types.CONFIG_VALIDATION_FAILED,
		"invalid configuration: %s", strings.Join(messages, "; "))
}

func formatFieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	if fe.Param() != "" {
		return fmt.Sprintf("%s fails %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value())
	}
	return fmt.Sprintf("%s fails %s (got %v)", field, fe.Tag(), fe.Value())
}
