// Package metrics provides Prometheus instrumentation for the tripwatch
// daemon. All metric collectors are registered via the Init function and
// exposed through the Handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SamplesTotal counts probe outcomes by target and result.
	SamplesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripwatch_samples_total",
			Help: "Total probe samples recorded",
		},
		[]string{"target", "outcome"},
	)

	// WindowFailures tracks the current failure count in each target's window.
	WindowFailures = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tripwatch_window_failures",
			Help: "Failures currently in the sample window",
		},
		[]string{"target"},
	)

	// TripState is 1 while a target is tripped and 0 otherwise.
	TripState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tripwatch_tripped",
			Help: "Whether the target is currently tripped (1) or healthy (0)",
		},
		[]string{"target"},
	)

	// TripsTotal counts trip transitions by target.
	TripsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripwatch_trips_total",
			Help: "Total trip transitions",
		},
		[]string{"target"},
	)

	// ProbeDuration observes probe latency in seconds by target.
	ProbeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tripwatch_probe_duration_seconds",
			Help:    "Probe latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"target"},
	)

	// ConfigReloads counts successful configuration reloads.
	ConfigReloads = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tripwatch_config_reloads_total",
			Help: "Total successful configuration reloads",
		},
	)

	// AuthFailures counts admin API authentication failures by reason.
	AuthFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripwatch_auth_failures_total",
			Help: "Total admin authentication failures",
		},
		[]string{"reason"},
	)
)

// Init registers all metric collectors with the default Prometheus registry.
// Must be called once at startup before monitoring begins.
func Init() {
	prometheus.MustRegister(
		SamplesTotal,
		WindowFailures,
		TripState,
		TripsTotal,
		ProbeDuration,
		ConfigReloads,
		AuthFailures,
	)
}

// Handler returns an http.Handler that serves the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
