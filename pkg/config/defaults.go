package config

import (
	"strings"
	"time"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Called after loading configuration from file and environment variables.
// Zero values are replaced with defaults; explicit values are preserved.
// Backend-specific defaults live in the backend factories.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyStorageDefaults(&cfg.Storage)
	applyAuthDefaults(&cfg.Auth)
	applyArchiveDefaults(&cfg.Archive)
	applyMetricsDefaults(&cfg.Metrics)
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalized to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":9099"
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.DataRoot == "" {
		cfg.DataRoot = "serverStorage"
	}
	if cfg.MirrorRoot == "" {
		cfg.MirrorRoot = "storage"
	}
}

func applyAuthDefaults(cfg *AuthConfig) {
	if cfg.Type == "" {
		cfg.Type = "file"
	}
	if cfg.Type == "file" && cfg.File == nil {
		cfg.File = map[string]any{"path": "users.yaml"}
	}
}

func applyArchiveDefaults(cfg *ArchiveConfig) {
	if cfg.Type == "" {
		cfg.Type = "none"
	}
}
