package config

import (
	"strings"

	"github.com/marmos91/netfs/pkg/netfs/cache"
	"github.com/marmos91/netfs/pkg/netfs/webdav"
	"github.com/marmos91/netfs/pkg/tnfs"
)

// Default values not owned by a backend package.
const (
	DefaultMetricsPort = 9090
	DefaultUserAgent   = "netfs"
	DefaultEOL         = "lf"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Backend-specific option maps only get the keys the backend needs
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)
	applyTNFSDefaults(&cfg.TNFS)
	applyCacheDefaults(&cfg.Cache)
	applyBackendsDefaults(&cfg.Backends)
	applyDeviceDefaults(&cfg.Device)
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
		cfg.Output = "stderr"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = DefaultMetricsPort
	}
}

// applyTNFSDefaults mirrors the session defaults so they are visible in a
// generated configuration file.
func applyTNFSDefaults(cfg *TNFSConfig) {
	if cfg.Timeout == 0 {
		cfg.Timeout = tnfs.DefaultTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = tnfs.DefaultMaxRetries
	}
	if cfg.RequestsPerSecond > 0 && cfg.Burst == 0 {
		cfg.Burst = 1
	}
}

func applyCacheDefaults(cfg *CacheConfig) {
	if cfg.TTL == 0 {
		cfg.TTL = cache.DefaultTTL
	}
}

// applyBackendsDefaults fills the http option map. The s3 map is left
// alone: its presence is what enables the backend.
func applyBackendsDefaults(cfg *BackendsConfig) {
	if cfg.HTTP == nil {
		cfg.HTTP = make(map[string]any)
	}
	if _, ok := cfg.HTTP["timeout"]; !ok {
		cfg.HTTP["timeout"] = webdav.DefaultTimeout.String()
	}
	if _, ok := cfg.HTTP["user_agent"]; !ok {
		cfg.HTTP["user_agent"] = DefaultUserAgent
	}
}

func applyDeviceDefaults(cfg *DeviceConfig) {
	if cfg.EOL == "" {
		cfg.EOL = DefaultEOL
	}
	cfg.EOL = strings.ToLower(cfg.EOL)
}

// GetDefaultConfig returns a Config with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
