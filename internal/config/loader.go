package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment keys recognised by Load.
const (
	EnvPrefix     = "ROLLCALL_"
	EnvConfigFile = "ROLLCALL_CONFIG"
)

// Load builds a Config by layering defaults, an optional file and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. YAML file named by ROLLCALL_CONFIG
//  3. env (prefix ROLLCALL_, "__" separates nested keys)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrLoadConfig, path, err)
		}
	}

	// ROLLCALL_LEDGER__POLICY -> ledger.policy, ROLLCALL_QUEUE_SIZE -> queue_size
	envProvider := env.Provider(EnvPrefix, ".", envKey)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(ctx); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps an environment variable name to a koanf key path.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "__", ".")
}

// Validate checks struct constraints and values that tags cannot express.
func (c *Config) Validate(_ context.Context) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("%w: timezone %q: %w", ErrInvalidConfig, c.Timezone, err)
	}
	if c.Ledger.Kind == "sql" && c.Ledger.Driver == "" {
		return fmt.Errorf("%w: ledger.driver is required for a sql ledger", ErrInvalidConfig)
	}
	if c.Roster.Kind == "sql" && c.Roster.Driver == "" {
		return fmt.Errorf("%w: roster.driver is required for a sql roster", ErrInvalidConfig)
	}
	return nil
}
