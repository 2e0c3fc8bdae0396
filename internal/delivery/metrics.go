package delivery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "tgrelay"

// Metrics holds the delivery counters. A nil *Metrics records nothing.
type Metrics struct {
	attempts *prometheus.CounterVec
	outcomes *prometheus.CounterVec
	batches  *prometheus.CounterVec
	segments prometheus.Histogram
}

// NewMetrics registers the delivery metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		attempts: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "delivery",
				Name:      "attempts_total",
				Help:      "Transport calls made by the sender, by mode and result.",
			}, []string{"mode", "result"}),

		outcomes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "delivery",
				Name:      "segments_total",
				Help:      "Segments sent, by final outcome.",
			}, []string{"outcome"}),

		batches: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "delivery",
				Name:      "batches_total",
				Help:      "Replies delivered, by result (complete, aborted, empty).",
			}, []string{"result"}),

		segments: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "delivery",
				Name:      "segments_per_reply",
				Help:      "Number of segments a reply was split into.",
				Buckets:   []float64{1, 2, 3, 5, 8, 13},
			}),
	}
}

func (m *Metrics) attempt(mode string, kind ErrorKind, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = kind.String()
	}
	m.attempts.WithLabelValues(mode, result).Inc()
}

func (m *Metrics) outcome(o Outcome) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(o.String()).Inc()
}

func (m *Metrics) batch(r Report) {
	if m == nil {
		return
	}
	result := "complete"
	switch {
	case r.Segments == 0:
		result = "empty"
	case r.Aborted:
		result = "aborted"
	}
	m.batches.WithLabelValues(result).Inc()
	if r.Segments > 0 {
		m.segments.Observe(float64(r.Segments))
	}
}
