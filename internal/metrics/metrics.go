package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	serviceStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "warden",
			Subsystem: "service",
			Name:      "starts_total",
			Help:      "Number of successful service starts.",
		}, []string{"name"},
	)
	serviceStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "warden",
			Subsystem: "service",
			Name:      "stops_total",
			Help:      "Number of stops (graceful or kill).",
		}, []string{"name"},
	)
	serviceStartFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "warden",
			Subsystem: "service",
			Name:      "start_failures_total",
			Help:      "Number of starts that failed within the start grace period.",
		}, []string{"name"},
	)
	watchdogChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "warden",
			Subsystem: "watchdog",
			Name:      "checks_total",
			Help:      "Number of watchdog health checks, partitioned by observed state.",
		}, []string{"name", "state"},
	)
	watchdogRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "warden",
			Subsystem: "watchdog",
			Name:      "restarts_total",
			Help:      "Number of automatic restarts issued by the watchdog.",
		}, []string{"name"},
	)
	serviceUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "warden",
			Subsystem: "service",
			Name:      "up",
			Help:      "Whether the supervised service is currently running (1) or not (0).",
		}, []string{"name"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{serviceStarts, serviceStops, serviceStartFailures, watchdogChecks, watchdogRestarts, serviceUp}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler serving the DefaultGatherer. The caller
// wires the route and server.
func Handler() http.Handler { return promhttp.Handler() }

// Lightweight helpers used by the daemon wiring. They no-op until
// Register has been called.

func IncStart(name string) {
	if regOK.Load() {
		serviceStarts.WithLabelValues(name).Inc()
	}
}

func IncStop(name string) {
	if regOK.Load() {
		serviceStops.WithLabelValues(name).Inc()
	}
}

func IncStartFailure(name string) {
	if regOK.Load() {
		serviceStartFailures.WithLabelValues(name).Inc()
	}
}

func IncWatchdogCheck(name string, running bool) {
	if regOK.Load() {
		state := "down"
		if running {
			state = "up"
		}
		watchdogChecks.WithLabelValues(name, state).Inc()
	}
}

func IncWatchdogRestart(name string) {
	if regOK.Load() {
		watchdogRestarts.WithLabelValues(name).Inc()
	}
}

func SetUp(name string, up bool) {
	if regOK.Load() {
		var v float64
		if up {
			v = 1
		}
		serviceUp.WithLabelValues(name).Set(v)
	}
}
