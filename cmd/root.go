// Package cmd provides the command-line interface for Weft with configuration
// management supporting multiple configuration sources.
//
// Configuration System:
//
//	The CLI supports flexible configuration through multiple sources with clear precedence:
//	1. Command-line flags (--config, --log-level, etc.) - highest priority
//	2. WEFT_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (WEFT_SITE_SRC_DIR, etc.)
//	4. Configuration files (.weft.yml) - lowest priority
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/weftworks/weft/internal/config"
	"github.com/weftworks/weft/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "weft",
	Short: "An incremental document build pipeline for component-driven sites",
	Long: `Weft builds HTML documents from component trees of include, env and
front-matter tags, tracking the dependencies of every entrypoint so that
file changes rebuild exactly the documents they affect.

Key Features:
  • Entrypoint discovery via glob patterns
  • Include resolution for renderer modules, documents and bundles
  • Environment-conditional markup
  • Dependency-driven incremental rebuilds with batching

Quick Start:
  weft build                      Build all entrypoints once
  weft watch                      Build and rebuild on file changes
  weft version                    Show version information`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .weft.yml, can also use WEFT_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "", "log level (debug, info, warn, error)")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig initializes the configuration system.
//
// Configuration Loading Priority (highest to lowest):
//  1. --config flag: Explicitly specified config file path
//  2. WEFT_CONFIG_FILE environment variable: Custom config file path
//  3. Default: .weft.yml in current directory
//
// Environment variable binding is enabled for all configuration values
// with the WEFT_ prefix (e.g., WEFT_SITE_SRC_DIR=./pages).
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("WEFT_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".weft")
	}

	viper.SetEnvPrefix("WEFT")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Missing or malformed config files fall back to defaults without failing.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig resolves the effective configuration and a logger built from it.
func loadConfig() (*config.Config, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	return cfg, logger, nil
}
