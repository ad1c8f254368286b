package config

import (
	"github.com/marmos91/netfs/pkg/netfs"
)

// FSOptions returns the adapter options every device channel uses.
func FSOptions(cfg *Config, rt *Runtime) netfs.FSOptions {
	return netfs.FSOptions{
		Cache:   rt.Cache,
		Metrics: rt.Metrics.Adapter,
		EOL:     cfg.Device.EOLByte(),
	}
}
