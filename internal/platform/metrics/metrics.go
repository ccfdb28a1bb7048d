package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the onboarding steps.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Applications by validation outcome: "accepted", "rejected", "malformed".
	Applications *prometheus.CounterVec

	// Identity provisioning outcomes: "created", "conflict", "error".
	Identities *prometheus.CounterVec

	MembersStored       prometheus.Counter
	AllocationConflicts prometheus.Counter
	AllocationExhausted prometheus.Counter
	AllocationDuration  prometheus.Histogram

	// Emails by kind and outcome ("sent", "failed").
	Emails *prometheus.CounterVec

	// Handler responses by step and status code.
	Responses *prometheus.CounterVec
}

// New creates and registers all metrics on reg. Pass prometheus.DefaultRegisterer
// in binaries and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Applications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "membership_applications_total",
			Help: "Membership applications by validation outcome",
		}, []string{"outcome"}),
		Identities: f.NewCounterVec(prometheus.CounterOpts{
			Name: "membership_identities_total",
			Help: "Disabled identity provisioning attempts by outcome",
		}, []string{"outcome"}),
		MembersStored: f.NewCounter(prometheus.CounterOpts{
			Name: "membership_members_stored_total",
			Help: "Membership records persisted with a freshly allocated member id",
		}),
		AllocationConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "membership_id_allocation_conflicts_total",
			Help: "Conditional writes that lost a race for a member id and were retried",
		}),
		AllocationExhausted: f.NewCounter(prometheus.CounterOpts{
			Name: "membership_id_allocation_exhausted_total",
			Help: "Allocations that gave up after the maximum number of attempts",
		}),
		AllocationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "membership_id_allocation_duration_seconds",
			Help:    "Duration of member id allocation including retries",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		Emails: f.NewCounterVec(prometheus.CounterOpts{
			Name: "membership_emails_total",
			Help: "Transactional emails by kind and outcome",
		}, []string{"kind", "outcome"}),
		Responses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "membership_handler_responses_total",
			Help: "Handler responses by step and status code",
		}, []string{"step", "status"}),
	}
}

func (m *Metrics) IncApplication(outcome string) {
	if m != nil {
		m.Applications.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncIdentity(outcome string) {
	if m != nil {
		m.Identities.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncMembersStored() {
	if m != nil {
		m.MembersStored.Inc()
	}
}

func (m *Metrics) IncAllocationConflict() {
	if m != nil {
		m.AllocationConflicts.Inc()
	}
}

func (m *Metrics) IncAllocationExhausted() {
	if m != nil {
		m.AllocationExhausted.Inc()
	}
}

// ObserveAllocation records the duration of an allocation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveAllocation(start time.Time) {
	if m != nil {
		m.AllocationDuration.Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) IncEmail(kind, outcome string) {
	if m != nil {
		m.Emails.WithLabelValues(kind, outcome).Inc()
	}
}

func (m *Metrics) IncResponse(step, status string) {
	if m != nil {
		m.Responses.WithLabelValues(step, status).Inc()
	}
}
