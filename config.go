package corobus

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/golobby/cast"
	"gopkg.in/yaml.v3"
)

// envPrefix namespaces the environment variables consulted by
// ApplyEnvOverrides, e.g. COROBUS_MATCH_MODE.
const envPrefix = "COROBUS"

// RunnerConfig defines the configuration for a TaskRunner.
type RunnerConfig struct {
	// MatchMode selects the Publish pattern semantics ("substring" or
	// "wildcard"). Substring is the historical behavior; callers that want
	// prefix wildcards opt in explicitly.
	MatchMode string `json:"matchMode" yaml:"matchMode" toml:"matchMode" env:"MATCH_MODE" validate:"oneof=substring wildcard"`

	// MaxStackDepth bounds the task stack as a guard against runaway
	// handler recursion. Zero disables the guard.
	MaxStackDepth int `json:"maxStackDepth" yaml:"maxStackDepth" toml:"maxStackDepth" env:"MAX_STACK_DEPTH" validate:"min=0"`

	// PriorityOrdering delivers fan-out subscribers in descending priority
	// order, ties broken by subscription order. When false, pure
	// subscription order is used.
	PriorityOrdering bool `json:"priorityOrdering" yaml:"priorityOrdering" toml:"priorityOrdering" env:"PRIORITY_ORDERING"`

	// EmitEvents gates CloudEvents emission to registered observers.
	EmitEvents bool `json:"emitEvents" yaml:"emitEvents" toml:"emitEvents" env:"EMIT_EVENTS"`
}

// DefaultRunnerConfig returns the configuration used when the embedder
// provides none.
func DefaultRunnerConfig() *RunnerConfig {
	return &RunnerConfig{
		MatchMode:        MatchModeSubstring,
		MaxStackDepth:    0,
		PriorityOrdering: true,
		EmitEvents:       true,
	}
}

// Validate enforces the constraints declared by the validate tags.
func (c *RunnerConfig) Validate() error {
	if _, err := matcherForMode(c.MatchMode); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidMatchMode, c.MatchMode)
	}
	if c.MaxStackDepth < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidStackDepth, c.MaxStackDepth)
	}
	return nil
}

// LoadRunnerConfig reads a runner configuration file. The format is chosen by
// extension: .yaml/.yml or .toml. Values absent from the file keep their
// defaults; environment overrides are applied afterwards.
func LoadRunnerConfig(path string) (*RunnerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := DefaultRunnerConfig()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing yaml config %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing toml config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedConfigExt, ext)
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides feeds fields from COROBUS_-prefixed environment
// variables, using each field's env tag for the variable name.
func (c *RunnerConfig) ApplyEnvOverrides() error {
	v := reflect.ValueOf(c).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		envTag, exists := t.Field(i).Tag.Lookup("env")
		if !exists {
			continue
		}
		envName := envPrefix + "_" + strings.ToUpper(envTag)
		envValue := os.Getenv(envName)
		if envValue == "" {
			continue
		}
		if err := setFieldValue(v.Field(i), envValue); err != nil {
			return fmt.Errorf("applying %s: %w", envName, err)
		}
	}
	return nil
}

// setFieldValue converts and sets a field value.
func setFieldValue(field reflect.Value, strValue string) error {
	convertedValue, err := cast.FromType(strValue, field.Type())
	if err != nil {
		return fmt.Errorf("cannot convert value to type %v: %w", field.Type(), err)
	}
	if !field.CanSet() {
		return fmt.Errorf("field cannot be set")
	}
	field.Set(reflect.ValueOf(convertedValue))
	return nil
}
