package sources

import "github.com/prometheus/client_golang/prometheus"

// Leg results.
const (
	legHit   = "hit"
	legEmpty = "empty"
	legError = "error"
)

type Metrics struct {
	legs        *prometheus.CounterVec
	resolutions *prometheus.CounterVec
	duration    prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		legs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vibeanime",
			Subsystem: "resolver",
			Name:      "cascade_legs_total",
			Help:      "Source cascade attempts by backend, server and result.",
		}, []string{"backend", "server", "result"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vibeanime",
			Subsystem: "resolver",
			Name:      "resolutions_total",
			Help:      "Source resolutions by outcome (hls or embed).",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vibeanime",
			Subsystem: "resolver",
			Name:      "resolve_duration_seconds",
			Help:      "Wall time of a full source resolution.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		}),
	}
	reg.MustRegister(m.legs, m.resolutions, m.duration)
	return m
}

func (m *Metrics) leg(backend, server, result string) {
	if m == nil {
		return
	}
	m.legs.WithLabelValues(backend, server, result).Inc()
}

func (m *Metrics) resolved(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(outcome).Inc()
	m.duration.Observe(seconds)
}
