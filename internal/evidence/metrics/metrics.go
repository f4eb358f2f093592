package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the evidence module.
type Metrics struct {
	// Custody ledger appends by outcome
	TransferOutcome *prometheus.CounterVec

	// Status transitions by target status and outcome
	TransitionOutcome *prometheus.CounterVec

	// Latency of the append path including the transactional write
	AppendLatency prometheus.Histogram
}

// New creates a new Metrics instance with all evidence module metrics registered.
func New() *Metrics {
	return &Metrics{
		TransferOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_custody_transfers_total",
			Help: "Total custody transfer attempts by outcome",
		}, []string{"outcome"}), // outcome: "appended", "custody_conflict", "terminal", "error"

		TransitionOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_status_transitions_total",
			Help: "Total evidence status transition attempts by target status and outcome",
		}, []string{"status", "outcome"}),

		AppendLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "custodia_custody_append_duration_seconds",
			Help:    "Duration of custody ledger appends",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementTransfer records one custody transfer attempt.
func (m *Metrics) IncrementTransfer(outcome string) {
	if m != nil {
		m.TransferOutcome.WithLabelValues(outcome).Inc()
	}
}

// IncrementTransition records one status transition attempt.
func (m *Metrics) IncrementTransition(status, outcome string) {
	if m != nil {
		m.TransitionOutcome.WithLabelValues(status, outcome).Inc()
	}
}

// ObserveAppendLatency records the duration of a ledger append.
func (m *Metrics) ObserveAppendLatency(d time.Duration) {
	if m != nil {
		m.AppendLatency.Observe(d.Seconds())
	}
}
