package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete LoftFS server configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (LOFTFS_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values
//
// Store Configuration Pattern:
// The credential and archive backends each define their own configuration
// type and factory. The Config struct carries one type-specific section per
// backend (e.g. auth.file, auth.badger) and only the section matching the
// selected type is used.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Server contains server-wide settings
	Server ServerConfig `mapstructure:"server"`

	// Storage locates the two physical trees backing every user space
	Storage StorageConfig `mapstructure:"storage"`

	// Auth specifies the credential store type and type-specific configuration
	Auth AuthConfig `mapstructure:"auth"`

	// Archive specifies the optional off-site archive sink
	Archive ArchiveConfig `mapstructure:"archive"`

	// Metrics controls the optional Prometheus exposition endpoint
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// ServerConfig contains server-wide settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server accepts connections on
	ListenAddr string `mapstructure:"listen_addr" validate:"required"`

	// MaxConnections limits concurrent client connections (0 = unlimited)
	MaxConnections int `mapstructure:"max_connections" validate:"gte=0"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`
}

// StorageConfig locates the canonical and mirror roots.
//
// DataRoot holds every user's canonical working tree; MirrorRoot holds the
// replicas and shared copies. They must be distinct directories.
type StorageConfig struct {
	DataRoot   string `mapstructure:"data_root" validate:"required"`
	MirrorRoot string `mapstructure:"mirror_root" validate:"required"`
}

// AuthConfig specifies credential store configuration.
//
// The Type field determines which backend is used. Only the corresponding
// type-specific section is read.
type AuthConfig struct {
	// Type selects the credential store backend
	// Valid values: file, badger
	Type string `mapstructure:"type" validate:"required,oneof=file badger"`

	// File contains file-backend configuration
	// Only used when Type = "file"
	File map[string]any `mapstructure:"file"`

	// Badger contains BadgerDB-backend configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger"`
}

// MetricsConfig controls Prometheus metrics collection.
type MetricsConfig struct {
	// Enabled turns on metrics collection and the HTTP exposition endpoint
	Enabled bool `mapstructure:"enabled"`

	// Port is the HTTP port /metrics is served on
	Port int `mapstructure:"port" validate:"gte=0,lte=65535"`
}

// ArchiveConfig specifies the archive sink configuration.
type ArchiveConfig struct {
	// Type selects the archive backend
	// Valid values: none, s3
	Type string `mapstructure:"type" validate:"required,oneof=none s3"`

	// S3 contains S3-backend configuration
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses the default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures environment variable support and config file search.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the LOFTFS_ prefix and underscores
	// Example: LOFTFS_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("LOFTFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists. A missing file
// is acceptable; defaults are used.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "loftfs")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "loftfs")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
