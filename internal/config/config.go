// Package config provides configuration types and defaults for signstage.
//
// Settings are resolved by viper in this order: command-line flags,
// SIGNSTAGE_* environment variables, the config file, then defaults.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/roach88/signstage/internal/locate"
	"github.com/roach88/signstage/internal/relocate"
)

// EnvPrefix is prepended to every environment variable, e.g.
// SIGNSTAGE_STAGING_DIR.
const EnvPrefix = "SIGNSTAGE"

// DefaultConfigName is the config file looked up in the working directory
// when no --config flag is given.
const DefaultConfigName = ".signstage"

// Keys shared by flags, environment variables and the config file.
const (
	KeyStagingDir    = "staging_dir"
	KeyConfiguration = "configuration"
	KeyOnDuplicate   = "on_duplicate"
	KeyJournal       = "journal"
)

// Config holds all configuration options for signstage.
type Config struct {
	StagingDir    string `mapstructure:"staging_dir"`
	Configuration string `mapstructure:"configuration"` // build configuration directory, e.g. "Release"
	OnDuplicate   string `mapstructure:"on_duplicate"`  // "fail" (default) or "overwrite"
	Journal       string `mapstructure:"journal"`       // SQLite path; empty disables the journal
}

// Defaults returns the default configuration.
func Defaults() Config {
	return Config{
		StagingDir:    relocate.DefaultStagingDir,
		Configuration: locate.DefaultConfiguration,
		OnDuplicate:   string(relocate.DuplicateFail),
	}
}

// Load resolves the configuration from v. Flags must already be bound to v.
// If cfgFile is set it must exist; otherwise .signstage.yaml in the working
// directory is read when present.
func Load(v *viper.Viper, cfgFile string) (Config, error) {
	defaults := Defaults()
	v.SetDefault(KeyStagingDir, defaults.StagingDir)
	v.SetDefault(KeyConfiguration, defaults.Configuration)
	v.SetDefault(KeyOnDuplicate, defaults.OnDuplicate)
	v.SetDefault(KeyJournal, defaults.Journal)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that flags and environment variables cannot
// constrain on their own.
func (c Config) Validate() error {
	if strings.TrimSpace(c.StagingDir) == "" {
		return fmt.Errorf("%s must not be empty", KeyStagingDir)
	}
	if strings.TrimSpace(c.Configuration) == "" {
		return fmt.Errorf("%s must not be empty", KeyConfiguration)
	}
	if strings.ContainsAny(c.Configuration, `/\`) {
		return fmt.Errorf("%s %q must be a single directory name", KeyConfiguration, c.Configuration)
	}
	if _, err := relocate.ParseDuplicatePolicy(c.OnDuplicate); err != nil {
		return fmt.Errorf("%s: %w", KeyOnDuplicate, err)
	}
	return nil
}

// DuplicatePolicy returns the parsed on_duplicate setting.
// Call Validate first; an invalid value falls back to fail.
func (c Config) DuplicatePolicy() relocate.DuplicatePolicy {
	p, err := relocate.ParseDuplicatePolicy(c.OnDuplicate)
	if err != nil {
		return relocate.DuplicateFail
	}
	return p
}

// Options converts the configuration into relocate options.
func (c Config) Options() relocate.Options {
	return relocate.Options{
		StagingDir:    c.StagingDir,
		Configuration: c.Configuration,
		OnDuplicate:   c.DuplicatePolicy(),
	}
}
