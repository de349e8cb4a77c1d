// Package config provides configuration management for weft using Viper for
// flexible loading from files, environment variables, and command-line flags.
//
// The configuration system supports YAML files and environment variable
// overrides with a WEFT_ prefix. It manages source and output locations, the
// active build environment name, entrypoint discovery globs, and the
// dev-loop batching knobs.
package config

import (
	"fmt"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/viper"
)

// Config is the root configuration object.
type Config struct {
	Site  SiteConfig  `mapstructure:"site" yaml:"site"`
	Build BuildConfig `mapstructure:"build" yaml:"build"`
	Log   LogConfig   `mapstructure:"log" yaml:"log"`
}

// SiteConfig locates the document tree and names the active environment.
type SiteConfig struct {
	// SrcDir is the root of the source documents.
	SrcDir string `mapstructure:"src_dir" yaml:"src_dir"`
	// OutDir is where expanded documents are written.
	OutDir string `mapstructure:"out_dir" yaml:"out_dir"`
	// Environment is matched against env tag allow/disallow lists.
	Environment string `mapstructure:"environment" yaml:"environment"`
}

// BuildConfig tunes entrypoint discovery and the incremental rebuild loop.
type BuildConfig struct {
	// Include globs select entrypoint documents under SrcDir.
	Include []string `mapstructure:"include" yaml:"include"`
	// Exclude globs remove matches from the entrypoint set.
	Exclude []string `mapstructure:"exclude" yaml:"exclude"`
	// DebounceMs is how long the rebuild batcher waits for further change
	// events before flushing.
	DebounceMs int `mapstructure:"debounce_ms" yaml:"debounce_ms"`
	// BatchSize caps pending change events; reaching it flushes immediately.
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size"`
	// RecursionLimit bounds transform passes per document.
	RecursionLimit int `mapstructure:"recursion_limit" yaml:"recursion_limit"`
}

// LogConfig selects log verbosity and output format.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Debounce returns the batcher delay as a duration.
func (b BuildConfig) Debounce() time.Duration {
	return time.Duration(b.DebounceMs) * time.Millisecond
}

// Load builds a Config from whatever viper has already read, applying
// defaults and validating the result.
func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// ApplyDefaults fills unset fields with their documented defaults.
func (c *Config) ApplyDefaults() {
	if c.Site.SrcDir == "" {
		c.Site.SrcDir = "./site"
	}
	if c.Site.OutDir == "" {
		c.Site.OutDir = "./dist"
	}
	if c.Site.Environment == "" {
		c.Site.Environment = "development"
	}
	if len(c.Build.Include) == 0 {
		c.Build.Include = []string{"**/*.html"}
	}
	if c.Build.DebounceMs <= 0 {
		c.Build.DebounceMs = 100
	}
	if c.Build.BatchSize <= 0 {
		c.Build.BatchSize = 10
	}
	if c.Build.RecursionLimit <= 0 {
		c.Build.RecursionLimit = 100
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Site.SrcDir == c.Site.OutDir {
		return fmt.Errorf("site.src_dir and site.out_dir must differ, both are %q", c.Site.SrcDir)
	}
	for _, pattern := range append(append([]string{}, c.Build.Include...), c.Build.Exclude...) {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid glob pattern %q", pattern)
		}
	}
	return nil
}
