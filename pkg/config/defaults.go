package config

import (
	"strings"
	"time"

	"github.com/marmos91/httpmemfs/pkg/vfs"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values are replaced with defaults and explicit values are preserved.
// Origin and filter sections get their type-specific defaults only for keys
// that are missing from the map.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyMountDefaults(&cfg.Mount)
	applyOriginDefaults(&cfg.Origin)
	applyWorkersDefaults(&cfg.Workers)
	applyFilesystemDefaults(&cfg.Filesystem)
	applyFilterDefaults(&cfg.Filter)
	applyMetricsDefaults(&cfg.Metrics)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyMountDefaults(cfg *MountConfig) {
	if cfg.MountPoint == "" {
		cfg.MountPoint = "M:\\"
	}
}

// applyOriginDefaults sets origin defaults.
func applyOriginDefaults(cfg *OriginConfig) {
	if cfg.Type == "" {
		cfg.Type = "http"
	}

	if cfg.Type == "http" {
		if cfg.HTTP == nil {
			cfg.HTTP = make(map[string]any)
		}
		setDefault(cfg.HTTP, "base_url", "http://localhost:8080/")
		setDefault(cfg.HTTP, "header_timeout", "10s")
		setDefault(cfg.HTTP, "user_agent", "httpmemfs/1.0")
		setDefault(cfg.HTTP, "max_retries", 3)
	}
}

func applyWorkersDefaults(cfg *WorkersConfig) {
	if cfg.Size == 0 {
		cfg.Size = 4
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = 64
	}
}

// applyFilesystemDefaults mirrors the engine's own fallbacks so the
// effective values are visible in the generated config and in logs.
func applyFilesystemDefaults(cfg *FilesystemConfig) {
	if cfg.WaitTimeout == 0 {
		cfg.WaitTimeout = vfs.DefaultWaitTimeout
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = vfs.DefaultPollInterval
	}
	if cfg.ReadonlyPolicy == "" {
		cfg.ReadonlyPolicy = string(vfs.ReadonlyFromAttributes)
	}
	if cfg.VolumeName == "" {
		cfg.VolumeName = vfs.DefaultVolumeName
	}
	if cfg.MaxFileSize == 0 {
		cfg.MaxFileSize = vfs.DefaultMaxFileSize
	}
}

func applyFilterDefaults(cfg *FilterConfig) {
	if cfg.Type == "" {
		cfg.Type = "glob"
	}
	if cfg.Type == "glob" {
		if cfg.Glob == nil {
			cfg.Glob = make(map[string]any)
		}
		// Shell integration probes that never exist on the origin.
		setDefault(cfg.Glob, "ignore", []string{"desktop.ini", "autorun.inf", "*.lnk", "folder.jpg"})
		setDefault(cfg.Glob, "ignore_case", true)
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func setDefault(m map[string]any, key string, value any) {
	if _, ok := m[key]; !ok {
		m[key] = value
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for generating sample configuration files and for tests.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
