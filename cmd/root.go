// Package cmd provides the command-line interface for tagwriting.
//
// Configuration System:
//
//	Configuration is read from several sources, highest priority first:
//	1. Command-line flags (--config, --log-level)
//	2. TAGWRITING_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (TAGWRITING_OPTIONS_VERBOSE, ...)
//	4. The configuration file (.tagwriting.yml in the working directory)
//
// Credentials for the generation service live in .env (or .env.<llm>) in
// the working directory.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/tagwriting/internal/config"
	"github.com/conneroisu/tagwriting/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tagwriting",
	Short: "Resolve <prompt> and <chat> tags in text files with an LLM",
	Long: `tagwriting watches plain-text documents. When a saved file contains a
<prompt>...</prompt> or <chat>...</chat> tag, the innermost tag is sent to an
OpenAI-compatible model and replaced in place with the answer.

Inside a prompt, <include>file</include>, <url>address</url> and
<wikipedia>title</wikipedia> are expanded before the request is sent.

Quick Start:
  tagwriting init                 Write a default .tagwriting.yml
  tagwriting watch ./notes        Watch a directory
  tagwriting run notes/today.md   Process one file once
  tagwriting validate             Check the configuration

Credentials are read from .env (API_KEY, BASE_URL, MODEL) or from .env.<llm>
when --llm is given.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .tagwriting.yml, can also use TAGWRITING_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log-format", rootCmd.PersistentFlags().Lookup("log-format"))

	AddFlagValidation(rootCmd.PersistentFlags(), "log-level", ValidateLogLevel)
	AddFlagValidation(rootCmd.PersistentFlags(), "log-format", ValidateOutputFormat)
}

// initConfig points viper at the configuration file.
//
// Configuration Loading Priority (highest to lowest):
//  1. --config flag
//  2. TAGWRITING_CONFIG_FILE environment variable
//  3. Default: .tagwriting.yml in the current directory
//
// Every key can also be overridden from the environment with the
// TAGWRITING_ prefix (e.g., TAGWRITING_OPTIONS_URL_MODE=markdown).
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv(config.EnvPrefix + "_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(strings.TrimSuffix(config.DefaultFileName, ".yml"))
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
}

// loadConfig reads the config file, if any, and returns the validated
// configuration. Without a config file the defaults apply.
func loadConfig() (*config.Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return config.Load(viper.GetViper())
}

// newLogger builds the process logger from --log-level and --log-format.
// options.verbose forces debug output.
func newLogger(cfg *config.Config) (logging.Logger, error) {
	level, err := logging.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return nil, err
	}
	if cfg != nil && cfg.Options.Verbose {
		level = logging.LevelDebug
	}

	return logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    viper.GetString("log-format"),
		Output:    os.Stderr,
		Component: "tagwriting",
	}), nil
}
