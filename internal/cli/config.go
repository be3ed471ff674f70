package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roach88/pinbase/internal/contract"
	"github.com/roach88/pinbase/internal/ir"
	"github.com/roach88/pinbase/internal/pipeline"
)

// EnvPrefix prefixes environment overrides, e.g. PINBASE_DATABASE.
const EnvPrefix = "PINBASE"

// SourceConfig overrides one registered source.
type SourceConfig struct {
	ID       string `mapstructure:"id" yaml:"id,omitempty"`
	Name     string `mapstructure:"name" yaml:"name,omitempty"`
	Priority int    `mapstructure:"priority" yaml:"priority,omitempty"`
}

// Config is the resolved CLI configuration.
//
// Precedence, highest first: flags, PINBASE_* environment variables, the
// config file, built-in defaults.
type Config struct {
	Database string `mapstructure:"database" yaml:"database"`
	Workers  int    `mapstructure:"workers" yaml:"workers,omitempty"`
	// Sources tunes the "machines", "flat" and "curated" sources.
	Sources map[string]SourceConfig `mapstructure:"sources" yaml:"sources,omitempty"`
	// Rules replaces the default warning rules when set.
	Rules []contract.Rule `mapstructure:"rules" yaml:"rules,omitempty"`
}

// LoadConfig layers the config file at path (optional), the environment and
// flags. Only flags the user actually set override lower layers.
func LoadConfig(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetDefault("database", "pinbase.db")
	v.SetDefault("workers", 0)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if flags != nil {
		if f := flags.Lookup("db"); f != nil && f.Changed {
			if err := v.BindPFlag("database", f); err != nil {
				return Config{}, err
			}
		}
		if f := flags.Lookup("workers"); f != nil && f.Changed {
			if err := v.BindPFlag("workers", f); err != nil {
				return Config{}, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Database == "" {
		return Config{}, fmt.Errorf("no database configured")
	}
	return cfg, nil
}

// Pipeline converts the CLI configuration into pipeline settings.
func (c Config) Pipeline() pipeline.Config {
	pc := pipeline.DefaultConfig()
	pc.Workers = c.Workers
	pc.Rules = c.Rules
	apply := func(src *ir.Source, key string) {
		o, ok := c.Sources[key]
		if !ok {
			return
		}
		if o.ID != "" {
			src.ID = o.ID
		}
		if o.Name != "" {
			src.Name = o.Name
		}
		if o.Priority != 0 {
			src.Priority = o.Priority
		}
	}
	apply(&pc.Sources.Machines, "machines")
	apply(&pc.Sources.Flat, "flat")
	apply(&pc.Sources.Curated, "curated")
	return pc
}
