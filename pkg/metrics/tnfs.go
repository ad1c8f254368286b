package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Retry reasons reported through TNFSMetrics.RecordRetry.
const (
	RetryTimeout     = "timeout"
	RetrySendFailure = "send_failure"
	RetryMalformed   = "malformed"
)

// TNFSMetrics provides observability for the TNFS transaction engine.
//
// Implementations can collect metrics about transactions, retries, discarded
// replies and server result codes. This interface is optional - if not
// provided to a mount, a no-op implementation is used with zero overhead.
type TNFSMetrics interface {
	// RecordTransaction records a finished transaction.
	//
	// Parameters:
	//   - command: TNFS command name (e.g., "MOUNT", "READDIR")
	//   - duration: Time from first send to matching reply or give up
	//   - attempts: Number of send attempts made
	//   - err: Transport error if no matching reply arrived, nil otherwise
	RecordTransaction(command string, duration time.Duration, attempts int, err error)

	// RecordRetry records that an attempt ended without a reply.
	//
	// Parameters:
	//   - command: TNFS command name
	//   - reason: RetryTimeout, RetrySendFailure or RetryMalformed
	RecordRetry(command string, reason string)

	// RecordDiscardedReply records a reply dropped because its sequence
	// number did not match the request in flight.
	RecordDiscardedReply(command string)

	// RecordResult records the result code of a reply the server sent.
	RecordResult(command string, result string)

	// RecordSessionEvent records mount lifecycle events
	// ("mount", "mount_failed", "unmount").
	RecordSessionEvent(event string)
}

// tnfsMetrics is the Prometheus implementation of TNFSMetrics.
type tnfsMetrics struct {
	transactionsTotal   *prometheus.CounterVec
	transactionDuration *prometheus.HistogramVec
	attempts            *prometheus.HistogramVec
	retriesTotal        *prometheus.CounterVec
	discardedReplies    *prometheus.CounterVec
	resultsTotal        *prometheus.CounterVec
	sessionEvents       *prometheus.CounterVec
}

// NewTNFSMetrics returns the process wide Prometheus-backed TNFSMetrics, or
// a no-op implementation if metrics are not enabled (InitRegistry not called).
func NewTNFSMetrics() TNFSMetrics {
	if !IsEnabled() {
		return NewNoopTNFSMetrics()
	}
	tnfsOnce.Do(func() {
		tnfsShared = NewTNFSMetricsWith(GetRegistry())
	})
	return tnfsShared
}

// NewTNFSMetricsWith registers TNFS metrics on reg. Each registerer may only
// be used once.
func NewTNFSMetricsWith(reg prometheus.Registerer) TNFSMetrics {
	return &tnfsMetrics{
		transactionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "netfs_tnfs_transactions_total",
				Help: "Total number of TNFS transactions by command and outcome",
			},
			[]string{"command", "status"},
		),
		transactionDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "netfs_tnfs_transaction_duration_seconds",
				Help: "Duration of TNFS transactions including retries",
				Buckets: []float64{
					0.001, // 1ms
					0.005, // 5ms
					0.025, // 25ms
					0.1,   // 100ms
					0.5,   // 500ms
					1.0,   // 1s
					5.0,   // 5s
					30.0,  // 30s
				},
			},
			[]string{"command"},
		),
		attempts: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "netfs_tnfs_transaction_attempts",
				Help:    "Number of send attempts per TNFS transaction",
				Buckets: []float64{1, 2, 3, 5, 8},
			},
			[]string{"command"},
		),
		retriesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "netfs_tnfs_retries_total",
				Help: "Total number of TNFS attempts that ended without a reply",
			},
			[]string{"command", "reason"},
		),
		discardedReplies: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "netfs_tnfs_discarded_replies_total",
				Help: "Replies dropped because of a sequence number mismatch",
			},
			[]string{"command"},
		),
		resultsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "netfs_tnfs_results_total",
				Help: "Result codes returned by TNFS servers",
			},
			[]string{"command", "result"},
		),
		sessionEvents: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "netfs_tnfs_session_events_total",
				Help: "TNFS mount lifecycle events",
			},
			[]string{"event"},
		),
	}
}

func (m *tnfsMetrics) RecordTransaction(command string, duration time.Duration, attempts int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	m.transactionsTotal.WithLabelValues(command, status).Inc()
	m.transactionDuration.WithLabelValues(command).Observe(duration.Seconds())
	m.attempts.WithLabelValues(command).Observe(float64(attempts))
}

func (m *tnfsMetrics) RecordRetry(command string, reason string) {
	m.retriesTotal.WithLabelValues(command, reason).Inc()
}

func (m *tnfsMetrics) RecordDiscardedReply(command string) {
	m.discardedReplies.WithLabelValues(command).Inc()
}

func (m *tnfsMetrics) RecordResult(command string, result string) {
	m.resultsTotal.WithLabelValues(command, result).Inc()
}

func (m *tnfsMetrics) RecordSessionEvent(event string) {
	m.sessionEvents.WithLabelValues(event).Inc()
}

// NewNoopTNFSMetrics returns a TNFSMetrics that records nothing.
func NewNoopTNFSMetrics() TNFSMetrics {
	return noopTNFSMetrics{}
}

// noopTNFSMetrics is a no-op implementation of TNFSMetrics with zero overhead.
type noopTNFSMetrics struct{}

func (noopTNFSMetrics) RecordTransaction(command string, duration time.Duration, attempts int, err error) {
}
func (noopTNFSMetrics) RecordRetry(command string, reason string)  {}
func (noopTNFSMetrics) RecordDiscardedReply(command string)        {}
func (noopTNFSMetrics) RecordResult(command string, result string) {}
func (noopTNFSMetrics) RecordSessionEvent(event string)            {}
