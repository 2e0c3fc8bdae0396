package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics counts inbound traffic. A nil *metrics records nothing.
type metrics struct {
	messages      *prometheus.CounterVec
	backendErrors prometheus.Counter
	replyLatency  prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}
	return &metrics{
		messages: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "tgrelay",
			Subsystem: "relay",
			Name:      "messages_total",
			Help:      "Inbound messages by kind.",
		}, []string{"kind"}),
		backendErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "tgrelay",
			Subsystem: "relay",
			Name:      "backend_errors_total",
			Help:      "Model calls that failed and were answered with the apology.",
		}),
		replyLatency: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: "tgrelay",
			Subsystem: "relay",
			Name:      "model_latency_seconds",
			Help:      "Time spent waiting for the model.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}),
	}
}

func (m *metrics) message(kind string) {
	if m != nil {
		m.messages.WithLabelValues(kind).Inc()
	}
}

func (m *metrics) backendError() {
	if m != nil {
		m.backendErrors.Inc()
	}
}

func (m *metrics) latency(seconds float64) {
	if m != nil {
		m.replyLatency.Observe(seconds)
	}
}
