// Package config loads defaults for the subexec command from an optional YAML
// file and SUBEXEC_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvPrefix   = "SUBEXEC"
	defaultName = "subexec"
	defaultType = "yaml"
)

// Keys shared by the config file, the environment and the command's flags.
const (
	KeyTimeout   = "timeout"
	KeyLang      = "lang"
	KeyLogFile   = "log_file"
	KeyLogLevel  = "log_level"
	KeyLogFormat = "log_format"
	KeyReport    = "report"
)

// Config is the resolved configuration of one subexec invocation.
type Config struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	Lang      string        `mapstructure:"lang"`
	LogFile   string        `mapstructure:"log_file"`
	LogLevel  string        `mapstructure:"log_level"`
	LogFormat string        `mapstructure:"log_format"`
	Report    string        `mapstructure:"report"`
}

// Defaults returns the values used when neither file nor environment set a key.
func Defaults() map[string]any {
	return map[string]any{
		KeyTimeout:   time.Duration(0),
		KeyLang:      "",
		KeyLogFile:   "",
		KeyLogLevel:  "warn",
		KeyLogFormat: "console",
		KeyReport:    "none",
	}
}

// Loader resolves Config through viper. Precedence, highest first: values bound by
// the caller (flags), environment, config file, defaults.
type Loader struct {
	v           *viper.Viper
	searchPaths []string
}

// NewLoader returns a loader that looks for subexec.yaml in searchPaths.
func NewLoader(searchPaths ...string) *Loader {
	v := viper.New()
	v.SetConfigName(defaultName)
	v.SetConfigType(defaultType)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}
	return &Loader{v: v, searchPaths: append([]string(nil), searchPaths...)}
}

// Viper exposes the underlying instance so callers can bind flags to keys.
func (l *Loader) Viper() *viper.Viper { return l.v }

// Load reads path, or the first subexec.yaml on the search paths when path is
// empty. A missing default file is not an error; a missing explicit one is.
// It returns the config file actually used, if any.
func (l *Loader) Load(path string) (Config, string, error) {
	if path != "" {
		l.v.SetConfigFile(path)
	} else {
		for _, p := range l.searchPaths {
			l.v.AddConfigPath(p)
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, "", fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return Config{}, "", fmt.Errorf("config: parse: %w", err)
	}
	if cfg.Timeout < 0 {
		return Config{}, "", fmt.Errorf("config: timeout must not be negative, got %s", cfg.Timeout)
	}
	return cfg, l.v.ConfigFileUsed(), nil
}
