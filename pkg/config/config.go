package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config represents the complete netfs configuration.
//
// This structure captures all configurable aspects of the netfs client:
//   - Logging configuration
//   - Metrics exposure
//   - TNFS client policy (timeouts, retries, pacing, credentials)
//   - Directory listing cache
//   - Backend-specific option maps (http, s3)
//   - Device presentation (directory listing line terminator)
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (NETFS_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
//
// Backend Configuration Pattern:
// Each backend defines its own configuration type. The Backends section
// holds raw option maps that the matching factory decodes.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Metrics controls the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// TNFS contains the client policy for tnfs:// locators
	TNFS TNFSConfig `mapstructure:"tnfs" yaml:"tnfs"`

	// Cache configures the directory listing cache
	Cache CacheConfig `mapstructure:"cache" yaml:"cache"`

	// Backends contains backend-specific option maps
	Backends BackendsConfig `mapstructure:"backends" yaml:"backends"`

	// Device controls how results are presented to the host
	Device DeviceConfig `mapstructure:"device" yaml:"device"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// MetricsConfig controls the metrics HTTP server.
type MetricsConfig struct {
	// Enabled turns on Prometheus collectors and the /metrics endpoint
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for /metrics and /healthz
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// TNFSConfig is the client policy applied to every TNFS session.
type TNFSConfig struct {
	// Timeout bounds each attempt of a transaction
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0" yaml:"timeout"`

	// MaxRetries is the total number of attempts per transaction
	MaxRetries int `mapstructure:"max_retries" validate:"gte=1" yaml:"max_retries"`

	// MinRetryInterval is the client's floor for the delay between attempts.
	// The server may raise it on mount.
	MinRetryInterval time.Duration `mapstructure:"min_retry_interval" validate:"gte=0" yaml:"min_retry_interval"`

	// RequestsPerSecond paces transactions per session. 0 means unlimited.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gte=0" yaml:"requests_per_second"`

	// Burst is the pacing bucket size
	Burst int `mapstructure:"burst" validate:"gte=0" yaml:"burst"`

	// User and Password are sent with MOUNT unless the locator carries its own
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`

	// ClearHandleOnFailedClose forgets the directory handle even when the
	// server rejects CLOSEDIR
	ClearHandleOnFailedClose bool `mapstructure:"clear_handle_on_failed_close" yaml:"clear_handle_on_failed_close"`
}

// CacheConfig configures the directory listing cache.
type CacheConfig struct {
	// Enabled turns the cache on
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// TTL bounds how long a listing is served from the cache
	TTL time.Duration `mapstructure:"ttl" validate:"gte=0" yaml:"ttl"`
}

// BackendsConfig holds the option maps of the optional backends.
type BackendsConfig struct {
	// HTTP configures the http:// and https:// backend
	// Keys: timeout, user_agent
	HTTP map[string]any `mapstructure:"http" yaml:"http"`

	// S3 configures the s3:// backend. The backend is registered only when
	// this section is present.
	// Keys: region, endpoint, access_key_id, secret_access_key, key_prefix,
	// max_retries, verify_bucket
	S3 map[string]any `mapstructure:"s3" yaml:"s3,omitempty"`
}

// DeviceConfig controls presentation to the host.
type DeviceConfig struct {
	// EOL terminates each directory listing line
	// Valid values: lf, cr, atascii (0x9B)
	EOL string `mapstructure:"eol" validate:"required,oneof=lf cr atascii" yaml:"eol"`
}

// EOLByte returns the line terminator selected by EOL.
func (d DeviceConfig) EOLByte() byte {
	switch d.EOL {
	case "cr":
		return '\r'
	case "atascii":
		return 0x9B
	default:
		return '\n'
	}
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (NETFS_*)
//  2. Configuration file
//  3. Default values
//
// A missing configuration file is not an error. configPath may start with
// "~".
func Load(configPath string) (*Config, error) {
	if configPath != "" {
		expanded, err := homedir.Expand(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to expand config path %q: %w", configPath, err)
		}
		configPath = expanded
	}

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

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use NETFS_ prefix and underscores
	// Example: NETFS_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("NETFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only applies to keys viper knows about.
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/netfs/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// envKeys are the scalar keys that can be set from the environment without
// a configuration file.
var envKeys = []string{
	"logging.level", "logging.format", "logging.output",
	"metrics.enabled", "metrics.port",
	"tnfs.timeout", "tnfs.max_retries", "tnfs.min_retry_interval",
	"tnfs.requests_per_second", "tnfs.burst", "tnfs.user", "tnfs.password",
	"tnfs.clear_handle_on_failed_close",
	"cache.enabled", "cache.ttl",
	"device.eol",
}

// readConfigFile reads the configuration file if it exists.
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
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "netfs")
	}

	home, err := homedir.Dir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "netfs")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
