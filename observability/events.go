package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type eventMetrics struct {
	committed *prometheus.CounterVec
	dropped   prometheus.Counter
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking committed event records.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			committed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "gig",
				Subsystem: "events",
				Name:      "committed_total",
				Help:      "Count of committed event records segmented by type.",
			}, []string{"type"}),
			dropped: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "gig",
				Subsystem: "events",
				Name:      "subscriber_drops_total",
				Help:      "Count of event records dropped because a subscriber fell behind.",
			}),
		}
		prometheus.MustRegister(eventRegistry.committed, eventRegistry.dropped)
	})
	return eventRegistry
}

// RecordCommitted increments the counter for the supplied event type.
func (m *eventMetrics) RecordCommitted(eventType string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(eventType)
	if normalized == "" {
		normalized = "unknown"
	}
	m.committed.WithLabelValues(normalized).Inc()
}

// RecordDropped counts a record a slow subscriber never received.
func (m *eventMetrics) RecordDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}
