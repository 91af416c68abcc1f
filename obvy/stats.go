package obvy

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatsInternal is the in-process prometheus registry:
// view transitions, frame draw timing, and HTTP traffic.
type StatsInternal struct {
	Registry    *prometheus.Registry
	Transitions *prometheus.CounterVec
	FrameTimer  prometheus.Histogram
	WWW         *prometheus.CounterVec
}

func NewStatsInternal() *StatsInternal {
	reg := prometheus.NewRegistry()

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hypnoscope_view_transitions_total",
		Help: "Completed view transitions by edge",
	}, []string{"from", "to"})

	frameTimer := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "hypnoscope_frame_draw_seconds",
		Help:    "Time spent drawing one frame",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	www := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hypnoscope_http_requests_total",
		Help: "HTTP requests by status and method",
	}, []string{"status", "method"})

	reg.MustRegister(transitions, frameTimer, www)

	return &StatsInternal{
		Registry:    reg,
		Transitions: transitions,
		FrameTimer:  frameTimer,
		WWW:         www,
	}
}

// RecTransition counts one completed edge
func (s *StatsInternal) RecTransition(from, to string) {
	s.Transitions.WithLabelValues(from, to).Inc()
}

// RecFrameTimer records one frame draw duration in seconds
func (s *StatsInternal) RecFrameTimer(seconds float64) {
	s.FrameTimer.Observe(seconds)
}

// RecWWW counts one HTTP request
func (s *StatsInternal) RecWWW(status, method string) {
	s.WWW.WithLabelValues(status, method).Inc()
}

// Handler serves the registry on /metrics
func (s *StatsInternal) Handler() http.Handler {
	return promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{})
}
