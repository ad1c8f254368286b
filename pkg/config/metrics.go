package config

import (
	"github.com/marmos91/netfs/pkg/metrics"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// TNFS is the transaction collector (never nil, uses noop if disabled)
	TNFS metrics.TNFSMetrics

	// Adapter is the adapter operation collector (never nil, uses noop if disabled)
	Adapter metrics.AdapterMetrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server
//   - Creates Prometheus-backed metrics instances for all components
//
// If metrics are disabled:
//   - Returns nil server
//   - Returns no-op metrics implementations (zero overhead)
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{
			TNFS:    metrics.NewNoopTNFSMetrics(),
			Adapter: metrics.NewNoopAdapterMetrics(),
		}
	}

	metrics.InitRegistry()

	return &MetricsResult{
		Server: metrics.NewServer(metrics.ServerConfig{
			Port: cfg.Metrics.Port,
		}),
		TNFS:    metrics.NewTNFSMetrics(),
		Adapter: metrics.NewAdapterMetrics(),
	}
}
