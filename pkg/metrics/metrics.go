// Package metrics exposes the simulator's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roieman/container-sim/pkg/logger"
)

// Metrics holds every counter/gauge/histogram the simulator publishes.
type Metrics struct {
	ContainersByState   *prometheus.GaugeVec
	ContainersMoving     prometheus.Gauge
	ContainersOnRail     prometheus.Gauge
	EventsEmittedTotal   *prometheus.CounterVec
	BatchWriteDuration   *prometheus.HistogramVec
	BatchWriteFailures   *prometheus.CounterVec
	TickDuration         prometheus.Histogram
	TickOverruns         prometheus.Counter
	CheckpointsTotal     *prometheus.CounterVec
}

// New registers every metric under namespace/subsystem on its own registry.
func New(namespace, subsystem string) *Metrics {
	return &Metrics{
		ContainersByState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "containers_by_state",
			Help:      "Current number of containers in each lifecycle state.",
		}, []string{"state"}),

		ContainersMoving: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "containers_moving",
			Help:      "Number of containers currently in transit (sea, rail, or truck).",
		}),

		ContainersOnRail: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "containers_on_rail",
			Help:      "Number of containers currently routed via rail.",
		}),

		EventsEmittedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "events_emitted_total",
			Help:      "Total telemetry events emitted, by event type.",
		}, []string{"event_type"}),

		BatchWriteDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "batch_write_duration_seconds",
			Help:      "Duration of persistence batch writes, by sink.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"sink"}),

		BatchWriteFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "batch_write_failures_total",
			Help:      "Batch writes dropped after the single retry, by sink.",
		}, []string{"sink"}),

		TickDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tick_duration_seconds",
			Help:      "Wall-clock time spent processing one scheduler tick.",
			Buckets:   prometheus.DefBuckets,
		}),

		TickOverruns: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tick_overruns_total",
			Help:      "Ticks whose processing took longer than the tick interval.",
		}),

		CheckpointsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "checkpoints_total",
			Help:      "Checkpoint save/restore operations, by outcome.",
		}, []string{"op", "outcome"}),
	}
}

// Serve starts a blocking HTTP server exposing /metrics (or cfg.Path).
func Serve(addr, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	logger.Info("metrics server listening", "addr", addr, "path", path)
	return http.ListenAndServe(addr, mux)
}
