package config

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/marmos91/netfs/internal/logger"
	"github.com/marmos91/netfs/pkg/netfs"
	"github.com/marmos91/netfs/pkg/netfs/cache"
)

// Runtime holds the process wide components built from configuration:
// metrics collectors and the shared directory cache.
type Runtime struct {
	// Metrics is never nil; collectors are no-ops when metrics are disabled.
	Metrics *MetricsResult

	// Cache is nil when the cache is disabled.
	Cache netfs.DirCache

	closers []func() error
}

// NewRuntime creates the metrics collectors and, if enabled, the directory
// cache. Close releases them.
func NewRuntime(cfg *Config) (*Runtime, error) {
	rt := &Runtime{Metrics: InitializeMetrics(cfg)}

	if cfg.Cache.Enabled {
		dirCache, err := cache.NewBadgerDirCache(cache.Config{TTL: cfg.Cache.TTL})
		if err != nil {
			return nil, fmt.Errorf("failed to create directory cache: %w", err)
		}
		rt.Cache = dirCache
		rt.closers = append(rt.closers, dirCache.Close)
		logger.Debug("Directory cache enabled (ttl=%s)", cfg.Cache.TTL)
	}

	return rt, nil
}

// Close releases every component. All are attempted.
func (rt *Runtime) Close() error {
	var result *multierror.Error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	rt.closers = nil
	return result.ErrorOrNil()
}
