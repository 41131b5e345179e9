// Package config loads application configuration from environment
// variables, a YAML file, and built-in defaults, in that order of
// decreasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ServerConfig configures the HTTP/WebSocket transport exposed to the UI.
type ServerConfig struct {
	Address string `mapstructure:"address"`
	Port    int    `mapstructure:"port"`
}

// HistoryConfig configures where run history is persisted.
type HistoryConfig struct {
	DatabasePath string `mapstructure:"database_path"`
}

// SecretsConfig holds the keychain service name. The value is loaded but
// not passed on: internal/secrets opens the keychain under its own fixed
// service name.
type SecretsConfig struct {
	ServiceName string `mapstructure:"service_name"`
}

// DefaultsConfig holds connection and retry defaults. Only
// ConnectionTimeoutMs is read, by App.TestConnection and App.GetDatabases;
// run requests carry their own MaintenanceOptions and are not filled in
// from these values.
type DefaultsConfig struct {
	ConnectionTimeoutMs uint64 `mapstructure:"connection_timeout_ms"`
	RequestTimeoutMs    uint64 `mapstructure:"request_timeout_ms"`
	RetryMaxAttempts    uint32 `mapstructure:"retry_max_attempts"`
	RetryBaseDelayMs    uint64 `mapstructure:"retry_base_delay_ms"`
	RetryMaxDelayMs     uint64 `mapstructure:"retry_max_delay_ms"`
}

// LoggingConfig holds the configured log level. The value is loaded but
// not applied: internal/logging loggers always run at INFO.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Config is the fully resolved application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	History  HistoryConfig  `mapstructure:"history"`
	Secrets  SecretsConfig  `mapstructure:"secrets"`
	Defaults DefaultsConfig `mapstructure:"defaults"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// Load reads configuration from (in precedence order) environment
// variables prefixed SQLMAINT_, a config file discovered by findConfigFile
// or the default search path, and the defaults set below.
func Load() (*Config, error) {
	setDefaults()

	if configPath := findConfigFile(); configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("sqlmaint")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/sqlmaint/")
		viper.AddConfigPath("/etc/sqlmaint/")
	}

	viper.SetEnvPrefix("SQLMAINT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.address", "127.0.0.1")
	viper.SetDefault("server.port", 7878)

	home, _ := os.UserHomeDir()
	viper.SetDefault("history.database_path", filepath.Join(home, ".local", "share", "sqlmaint", "history.db"))

	viper.SetDefault("secrets.service_name", "sqlmaint")

	viper.SetDefault("defaults.connection_timeout_ms", 15000)
	viper.SetDefault("defaults.request_timeout_ms", 60000)
	viper.SetDefault("defaults.retry_max_attempts", 3)
	viper.SetDefault("defaults.retry_base_delay_ms", 500)
	viper.SetDefault("defaults.retry_max_delay_ms", 10000)

	viper.SetDefault("logging.level", "info")
}

func findConfigFile() string {
	if path := os.Getenv("SQLMAINT_CONFIG"); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
