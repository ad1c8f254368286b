package tnfs

import (
	"time"

	"github.com/marmos91/netfs/pkg/metrics"
	"github.com/marmos91/netfs/pkg/tnfs/transport"
)

const (
	// DefaultTimeout is how long a single attempt waits for its reply.
	DefaultTimeout = 6 * time.Second

	// DefaultMaxRetries is the number of attempts made per transaction.
	DefaultMaxRetries = 5
)

// Options is the client side policy of a session. The zero value is usable.
type Options struct {
	// Timeout bounds each attempt. Default: DefaultTimeout.
	Timeout time.Duration

	// MaxRetries is the total number of attempts per transaction.
	// Default: DefaultMaxRetries.
	MaxRetries int

	// MinRetryInterval is the delay between attempts used until the server
	// announces its own value on MOUNT. The larger of the two wins.
	MinRetryInterval time.Duration

	// User and Password are sent with MOUNT. Empty means anonymous.
	User     string
	Password string

	// RequestsPerSecond caps the transaction rate of this session. Zero
	// disables pacing.
	RequestsPerSecond float64
	Burst             int

	// ClearHandleOnFailedClose makes CloseDir forget the directory handle
	// even when the server rejects the close. By default the handle is kept
	// so the caller can retry.
	ClearHandleOnFailedClose bool

	// Clock drives timeouts and retry delays. Default: transport.SystemClock.
	Clock transport.Clock

	// Metrics receives transaction metrics. Default: metrics.NewTNFSMetrics.
	Metrics metrics.TNFSMetrics
}

func (o *Options) applyDefaults() {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.MinRetryInterval < 0 {
		o.MinRetryInterval = 0
	}
	if o.Clock == nil {
		o.Clock = transport.SystemClock{}
	}
	if o.Metrics == nil {
		o.Metrics = metrics.NewTNFSMetrics()
	}
}
