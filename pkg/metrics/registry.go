// Package metrics collects Prometheus metrics for the TNFS client and the
// filesystem adapters.
//
// Collection is opt-in. Until InitRegistry is called every constructor
// returns a no-op implementation, so sessions and adapters can always be
// handed a collector:
//
//	metrics.InitRegistry()
//	session := tnfs.NewSession(addr, dgram, tnfs.Options{Metrics: metrics.NewTNFSMetrics()})
//	fs := netfs.NewFS(backend, netfs.FSOptions{Metrics: metrics.NewAdapterMetrics()})
package metrics

import (
	"runtime"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// registry is written once by InitRegistry and read afterwards.
	registry     *prometheus.Registry
	registryOnce sync.Once

	// Process wide collectors. Registering the same names twice panics.
	tnfsOnce      sync.Once
	tnfsShared    TNFSMetrics
	adapterOnce   sync.Once
	adapterShared AdapterMetrics
	buildOnce     sync.Once
)

// InitRegistry creates the global registry with the Go runtime and process
// collectors. Later calls are no-ops.
func InitRegistry() {
	registryOnce.Do(func() {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		registry = reg
	})
}

// GetRegistry returns the global registry, or nil while metrics are
// disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}

// RegisterBuildInfo exports netfs_build_info{version,commit,goversion} = 1
// on the global registry. It does nothing while metrics are disabled and
// only the first call counts.
func RegisterBuildInfo(version, commit string) {
	if !IsEnabled() {
		return
	}
	buildOnce.Do(func() {
		registerBuildInfo(GetRegistry(), version, commit)
	})
}

func registerBuildInfo(reg prometheus.Registerer, version, commit string) {
	info := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "netfs_build_info",
		Help: "Build information of the running netfs binary",
	}, []string{"version", "commit", "goversion"})
	reg.MustRegister(info)
	info.WithLabelValues(version, commit, runtime.Version()).Set(1)
}
