package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the admission module.
type Metrics struct {
	// Intake submissions by outcome
	SubmitOutcome *prometheus.CounterVec

	// Review decisions by decision and outcome
	ReviewOutcome *prometheus.CounterVec
}

// New creates a new Metrics instance with all admission module metrics registered.
func New() *Metrics {
	return &Metrics{
		SubmitOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_access_request_submissions_total",
			Help: "Total access request submissions by outcome",
		}, []string{"outcome"}), // outcome: "accepted", "duplicate", "username_taken", "invalid", "error"

		ReviewOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_access_request_reviews_total",
			Help: "Total access request review decisions by decision and outcome",
		}, []string{"decision", "outcome"}),
	}
}

// IncrementSubmit records one intake submission.
func (m *Metrics) IncrementSubmit(outcome string) {
	if m != nil {
		m.SubmitOutcome.WithLabelValues(outcome).Inc()
	}
}

// IncrementReview records one review decision.
func (m *Metrics) IncrementReview(decision, outcome string) {
	if m != nil {
		m.ReviewOutcome.WithLabelValues(decision, outcome).Inc()
	}
}
