package reward

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricBatchesCommitted = "reward_batches_committed_total"
	MetricCommitFailures   = "reward_commit_failures_total"
	MetricAuthorsCredited  = "reward_authors_credited_total"
	MetricBatchAmount      = "reward_batch_amount"
)

// Metrics contains Prometheus metrics for reward distribution.
// All operations are thread-safe.
type Metrics struct {
	batchesCommitted prometheus.Counter
	commitFailures   prometheus.Counter
	authorsCredited  prometheus.Counter
	batchAmount      prometheus.Histogram
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register
// them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		batchesCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricBatchesCommitted,
			Help: "Total number of reward batches committed",
		}),
		commitFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricCommitFailures,
			Help: "Total number of reward batches that failed to commit",
		}),
		authorsCredited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricAuthorsCredited,
			Help: "Total number of author credits written across all batches",
		}),
		batchAmount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricBatchAmount,
			Help:    "Histogram of total voice credited per batch",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.batchesCommitted,
		m.commitFailures,
		m.authorsCredited,
		m.batchAmount,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveCommit records a successful batch commit.
func (m *Metrics) ObserveCommit(ledger Ledger) {
	m.batchesCommitted.Inc()
	m.authorsCredited.Add(float64(len(ledger)))
	m.batchAmount.Observe(ledger.Total())
}

// IncCommitFailures increments the commit failure counter.
func (m *Metrics) IncCommitFailures() {
	m.commitFailures.Inc()
}
