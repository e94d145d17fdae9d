package proxy

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Request outcomes.
const (
	outcomePlaylist   = "playlist"
	outcomeSegment    = "segment"
	outcomeBadRequest = "bad_request"
	outcomeForbidden  = "forbidden"
	outcomeUpstream   = "upstream_error"
)

type Metrics struct {
	requests *prometheus.CounterVec
	attempts *prometheus.CounterVec
}

// NewMetrics registers the proxy collectors on reg. cookies, when non-nil,
// backs a gauge of stored session cookies.
func NewMetrics(reg prometheus.Registerer, cookies func() int) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vibeanime",
			Subsystem: "proxy",
			Name:      "requests_total",
			Help:      "Proxy requests by outcome.",
		}, []string{"outcome"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vibeanime",
			Subsystem: "proxy",
			Name:      "upstream_attempts_total",
			Help:      "Outbound attempts by upstream status class (0xx for transport errors).",
		}, []string{"class"}),
	}
	reg.MustRegister(m.requests, m.attempts)
	if cookies != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "vibeanime",
			Subsystem: "proxy",
			Name:      "session_cookies",
			Help:      "Session cookies currently held.",
		}, func() float64 { return float64(cookies()) }))
	}
	return m
}

func (m *Metrics) request(outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
}

// Attempt matches upstream.AttemptFunc.
func (m *Metrics) Attempt(_ int, status int, _ error) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(strconv.Itoa(status/100) + "xx").Inc()
}
