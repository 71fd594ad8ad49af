package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces the environment variables read by Load, e.g.
// ISSUE_RESOURCE_LOG_LEVEL.
const EnvPrefix = "ISSUE_RESOURCE"

var ErrConfigNotFound = errors.New("configuration not found")

// Settings are process-level knobs. The issue being tracked comes from the
// request payload, not from here.
type Settings struct {
	LogLevel     string `mapstructure:"log_level"`
	LogFile      string `mapstructure:"log_file"`
	SentryDSN    string `mapstructure:"sentry_dsn"`
	Env          string `mapstructure:"env"`
	GitHubAPIURL string `mapstructure:"github_api_url"`
	GitLabAPIURL string `mapstructure:"gitlab_api_url"`
}

var defaults = map[string]any{
	"log_level":      "info",
	"log_file":       "",
	"sentry_dsn":     "",
	"env":            "production",
	"github_api_url": "",
	"gitlab_api_url": "https://gitlab.com",
}

// Load reads settings from the environment and, when path is set, from a
// YAML file. Environment variables win over the file.
func Load(path string) (*Settings, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if os.IsNotExist(err) || errors.As(err, new(viper.ConfigFileNotFoundError)) {
				return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
			}
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return settings, nil
}

// ConfigPath returns the settings file named by ISSUE_RESOURCE_CONFIG, if any.
func ConfigPath() string {
	return os.Getenv(EnvPrefix + "_CONFIG")
}

func (s *Settings) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level %q: %w", s.LogLevel, err)
	}
	return level, nil
}

func MaskToken(token string) string {
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return fmt.Sprintf("%s***%s", token[:4], token[len(token)-4:])
}
