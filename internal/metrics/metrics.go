// Package metrics exposes tick-loop instrumentation for the adaptive
// performance controller and the session runner.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the session instruments backed by a private registry, so
// multiple sessions in one process never collide.
type Metrics struct {
	registry *prometheus.Registry

	TickDuration  prometheus.Histogram
	TickRate      prometheus.Gauge
	Profile       prometheus.Gauge
	TimelineLoads prometheus.Counter
	FramesSent    prometheus.Counter
}

// New creates and registers the session instruments.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "visemesync",
			Name:      "tick_duration_seconds",
			Help:      "Processing time of one synchronization tick.",
			Buckets:   []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .025},
		}),
		TickRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "visemesync",
			Name:      "tick_rate",
			Help:      "Smoothed effective ticks per second.",
		}),
		Profile: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "visemesync",
			Name:      "performance_profile",
			Help:      "Active profile: 0 quality, 1 performance.",
		}),
		TimelineLoads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "visemesync",
			Name:      "timeline_loads_total",
			Help:      "Timelines loaded into the engine.",
		}),
		FramesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "visemesync",
			Name:      "frames_sent_total",
			Help:      "Weight frames delivered to the output sink.",
		}),
	}

	reg.MustRegister(m.TickDuration, m.TickRate, m.Profile, m.TimelineLoads, m.FramesSent)
	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
