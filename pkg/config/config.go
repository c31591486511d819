package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the complete httpmemfs configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (HTTPMEMFS_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
//
// Origin and filter follow the type-specific section pattern: Type selects
// the implementation and only the matching map is decoded, by the factory
// that builds it.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Server contains process-wide settings
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Mount carries the options handed to the host driver layer
	Mount MountConfig `mapstructure:"mount" yaml:"mount"`

	// Origin selects where unknown paths are fetched from
	Origin OriginConfig `mapstructure:"origin" yaml:"origin"`

	// Workers sizes the download pool
	Workers WorkersConfig `mapstructure:"workers" yaml:"workers"`

	// Filesystem tunes the engine
	Filesystem FilesystemConfig `mapstructure:"filesystem" yaml:"filesystem"`

	// Filter selects paths refused at open
	Filter FilterConfig `mapstructure:"filter" yaml:"filter"`

	// Metrics controls the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// ServerConfig contains process-wide settings.
type ServerConfig struct {
	// ShutdownTimeout bounds the wait for in-flight downloads on exit
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"required,gt=0"`
}

// MountConfig holds the options of the host mount. The engine does not
// interpret them.
type MountConfig struct {
	// MountPoint is the drive letter or directory to mount on
	MountPoint string `mapstructure:"mount_point" yaml:"mount_point" validate:"required"`

	// SingleThread asks the host layer to dispatch requests serially
	SingleThread bool `mapstructure:"single_thread" yaml:"single_thread"`

	// Debug enables the host layer's own debug output
	Debug bool `mapstructure:"debug" yaml:"debug"`

	// Removable mounts as a removable drive
	Removable bool `mapstructure:"removable" yaml:"removable"`
}

// OriginConfig selects the remote origin.
type OriginConfig struct {
	// Type specifies the origin implementation
	// Valid values: http
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=http"`

	// HTTP contains HTTP origin configuration
	// Only used when Type = "http"
	HTTP map[string]any `mapstructure:"http" yaml:"http"`
}

// WorkersConfig sizes the download worker pool.
type WorkersConfig struct {
	// Size is the number of concurrent downloads
	Size int `mapstructure:"size" yaml:"size" validate:"required,gte=1,lte=1024"`

	// QueueSize is the number of downloads that may wait for a worker
	// before opens block
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size" validate:"gte=0"`
}

// FilesystemConfig tunes the engine.
type FilesystemConfig struct {
	// WaitTimeout bounds every wait for remote content
	WaitTimeout time.Duration `mapstructure:"wait_timeout" yaml:"wait_timeout" validate:"required,gt=0"`

	// PollInterval is the delay between checks while waiting
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval" validate:"required,gt=0"`

	// ReadonlyPolicy decides which existing entries are treated as readonly
	// Valid values: attribute, always
	ReadonlyPolicy string `mapstructure:"readonly_policy" yaml:"readonly_policy" validate:"required,oneof=attribute always"`

	// VolumeName is reported to the host
	VolumeName string `mapstructure:"volume_name" yaml:"volume_name" validate:"required,max=32"`

	// MaxFileSize caps the size of local content in bytes
	MaxFileSize int64 `mapstructure:"max_file_size" yaml:"max_file_size" validate:"required,gt=0"`

	// SeedPath optionally points to a YAML/JSON directory tree created at
	// startup
	SeedPath string `mapstructure:"seed_path" yaml:"seed_path"`
}

// FilterConfig selects the ignore-pattern predicate.
type FilterConfig struct {
	// Enabled turns filtering on
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Type specifies the predicate implementation
	// Valid values: glob
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=glob"`

	// Glob contains glob predicate configuration
	// Only used when Type = "glob"
	Glob map[string]any `mapstructure:"glob" yaml:"glob"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled starts the metrics server
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port of the metrics server
	Port int `mapstructure:"port" yaml:"port" validate:"gte=0,lte=65535"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (HTTPMEMFS_*)
//  2. Configuration file
//  3. Default values
//
// A missing configuration file is not an error.
func Load(configPath string) (*Config, error) {
	return LoadWithFlags(configPath, nil)
}

// LoadWithFlags is Load with command line flags layered on top. Only flags
// named in FlagBindings are bound, and only flags the user actually set
// override other sources.
func LoadWithFlags(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

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

// FlagBindings maps command line flag names to configuration keys.
var FlagBindings = map[string]string{
	"log-level":     "logging.level",
	"log-format":    "logging.format",
	"mount-point":   "mount.mount_point",
	"single-thread": "mount.single_thread",
	"mount-debug":   "mount.debug",
	"removable":     "mount.removable",
	"base-url":      "origin.http.base_url",
	"workers":       "workers.size",
	"wait-timeout":  "filesystem.wait_timeout",
	"seed":          "filesystem.seed_path",
	"filter":        "filter.enabled",
	"metrics":       "metrics.enabled",
	"metrics-port":  "metrics.port",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var bindErr error
	flags.Visit(func(f *pflag.Flag) {
		key, ok := FlagBindings[f.Name]
		if !ok || bindErr != nil {
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			bindErr = fmt.Errorf("bind flag --%s: %w", f.Name, err)
		}
	})
	return bindErr
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: HTTPMEMFS_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("HTTPMEMFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/httpmemfs/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// bindEnvKeys registers every key of the default configuration so that
// environment variables apply even when no config file mentions the key.
func bindEnvKeys(v *viper.Viper) {
	data, err := yaml.Marshal(GetDefaultConfig())
	if err != nil {
		return
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return
	}
	for _, key := range flattenKeys("", tree) {
		_ = v.BindEnv(key)
	}
}

func flattenKeys(prefix string, m map[string]any) []string {
	var keys []string
	for k, val := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]any); ok {
			keys = append(keys, flattenKeys(key, sub)...)
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
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
		return filepath.Join(xdgConfig, "httpmemfs")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "httpmemfs")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
