package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EscrowMetrics tracks state transitions of the escrow, reputation and dispute
// modules.
type EscrowMetrics struct {
	transitions  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	heldValue    prometheus.Gauge
	openDisputes prometheus.Gauge
}

var (
	escrowOnce     sync.Once
	escrowRegistry *EscrowMetrics
)

func Escrow() *EscrowMetrics {
	escrowOnce.Do(func() {
		escrowRegistry = &EscrowMetrics{
			transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "gig_transitions_total",
				Help: "Count of state transitions by module, operation and outcome kind.",
			}, []string{"module", "op", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "gig_transition_duration_seconds",
				Help:    "Latency distribution of state transitions including commit.",
				Buckets: prometheus.DefBuckets,
			}, []string{"module", "op"}),
			heldValue: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "gig_escrow_held_value",
				Help: "Settlement currency currently held by the escrow vault.",
			}),
			openDisputes: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "gig_disputes_open",
				Help: "Number of disputes created and not yet resolved.",
			}),
		}
		prometheus.MustRegister(
			escrowRegistry.transitions,
			escrowRegistry.latency,
			escrowRegistry.heldValue,
			escrowRegistry.openDisputes,
		)
	})
	return escrowRegistry
}

// ObserveTransition records one transition attempt. outcome is "ok" or the
// error kind name.
func (m *EscrowMetrics) ObserveTransition(module, op, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	module = strings.TrimSpace(module)
	if module == "" {
		module = "unknown"
	}
	if outcome == "" {
		outcome = "ok"
	}
	m.transitions.WithLabelValues(module, op, outcome).Inc()
	m.latency.WithLabelValues(module, op).Observe(duration.Seconds())
}

// SetHeldValue publishes the escrow vault balance. Values beyond float64
// precision are approximated.
func (m *EscrowMetrics) SetHeldValue(v float64) {
	if m == nil {
		return
	}
	m.heldValue.Set(v)
}

// SetOpenDisputes publishes the number of unresolved disputes.
func (m *EscrowMetrics) SetOpenDisputes(n uint64) {
	if m == nil {
		return
	}
	m.openDisputes.Set(float64(n))
}
