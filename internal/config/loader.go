package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides,
// e.g. STAGEHAND_AGENT_BINARY_PATH.
const EnvPrefix = "STAGEHAND"

// ConfigFileName is the config file name searched for (without extension).
const ConfigFileName = "stagehand"

// Loader loads configuration with Viper.
//
// Search order when no explicit path is given:
//  1. STAGEHAND_CONFIG_PATH environment variable
//  2. user config directory (e.g. ~/.config/stagehand/stagehand.yaml)
//  3. ./stagehand.yaml
//
// A missing file is not an error; defaults apply. A present but malformed
// file, or a configuration that fails [Config.Validate], is.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a Loader with defaults and env binding registered.
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return &Loader{v: v}
}

// setDefaults registers [DefaultConfig] values with viper so partial config
// files only override what they mention.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("agent.binary_path", d.Agent.BinaryPath)
	v.SetDefault("agent.output_format", d.Agent.OutputFormat)
	v.SetDefault("agent.extra_args", d.Agent.ExtraArgs)

	v.SetDefault("models.default", d.Models.Default)
	v.SetDefault("models.catalog", d.Models.Catalog)

	for key, sc := range d.Stages {
		v.SetDefault("stages."+key+".model", sc.Model)
		v.SetDefault("stages."+key+".prompt", sc.Prompt)
	}

	v.SetDefault("commit.message_template", d.Commit.MessageTemplate)
	v.SetDefault("output.truncate_length", d.Output.TruncateLength)
}

// Load resolves, reads, and validates configuration.
func (l *Loader) Load() (*Config, error) {
	if envPath := os.Getenv(EnvPrefix + "_CONFIG_PATH"); envPath != "" {
		return l.LoadFromFile(envPath)
	}

	if dir, err := os.UserConfigDir(); err == nil {
		l.v.AddConfigPath(filepath.Join(dir, "stagehand"))
	}
	l.v.AddConfigPath(".")

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return l.unmarshal()
}

// LoadFromFile reads and validates configuration from an explicit path.
func (l *Loader) LoadFromFile(path string) (*Config, error) {
	l.v.SetConfigFile(path)
	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return l.unmarshal()
}

func (l *Loader) unmarshal() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if envPath := os.Getenv(EnvPrefix + "_AGENT_PATH"); envPath != "" {
		cfg.Agent.BinaryPath = envPath
	}
	return &cfg, nil
}
