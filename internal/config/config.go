// Package config loads dirscan settings from flags, environment and file.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "DIRSCAN"

// DefaultConfigName is the config file looked up in the working directory.
const DefaultConfigName = ".dirscan"

// Outputs lists the supported output formats.
//
//nolint:gochecknoglobals // Config constant
var Outputs = []string{"table", "json"}

// Config stores all settings of the application.
// The values are read by viper from flags, environment variables or a config file.
type Config struct {
	// Output is the output format (table or json).
	Output string `mapstructure:"output"`
	// Exclude contains doublestar patterns to exclude.
	Exclude []string `mapstructure:"exclude"`
	// Parallel enables the parallel walker for order-independent queries.
	Parallel bool `mapstructure:"parallel"`
	// Debug enables debug logging.
	Debug bool `mapstructure:"debug"`
	// NoProgress disables the progress spinner.
	NoProgress bool `mapstructure:"no-progress"`
	// ProgressInterval controls progress update cadence.
	ProgressInterval time.Duration `mapstructure:"progress-interval"`
}

// Load reads configuration, lowest to highest precedence, from defaults,
// the config file, DIRSCAN_* environment variables and explicitly set flags.
// An empty configPath searches the working directory for .dirscan.yaml and
// tolerates its absence.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetDefault("output", "table")
	v.SetDefault("exclude", []string{})
	v.SetDefault("parallel", false)
	v.SetDefault("debug", false)
	v.SetDefault("no-progress", false)
	v.SetDefault("progress-interval", 500*time.Millisecond)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_")) // no-progress -> DIRSCAN_NO_PROGRESS
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("binding flags: %w", err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that every setting is usable.
func (c *Config) Validate() error {
	c.Output = strings.ToLower(c.Output)
	if !slices.Contains(Outputs, c.Output) {
		return fmt.Errorf("invalid output format %q: must be one of %v", c.Output, Outputs)
	}

	for _, pattern := range c.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}

	if c.ProgressInterval <= 0 {
		return errors.New("progress interval must be positive")
	}

	return nil
}
