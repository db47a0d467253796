// Package metrics provides Prometheus metrics for the scheduling engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	InstancesGenerated  prometheus.Counter
	SweepsRun           prometheus.Counter
	SweepsDebounced     prometheus.Counter
	DosesResolved       *prometheus.CounterVec
	PRNDosesRecorded    prometheus.Counter
	SchedulesReconciled prometheus.Counter
	ResolutionRepairs   prometheus.Counter
	DueListDuration     prometheus.Histogram
	OutboxPending       prometheus.Gauge
	CircuitBreakerState *prometheus.GaugeVec
}

// New creates and registers all metrics
func New() *Metrics {
	m := &Metrics{
		InstancesGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dose_instances_generated_total",
			Help: "Total dose instances generated",
		}),
		SweepsRun: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "horizon_sweeps_total",
			Help: "Total horizon maintenance sweeps run",
		}),
		SweepsDebounced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "horizon_sweeps_debounced_total",
			Help: "Sweeps skipped by the per-caregiver debounce",
		}),
		DosesResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "doses_resolved_total",
			Help: "Total dose instances resolved",
		}, []string{"status"}),
		PRNDosesRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prn_doses_recorded_total",
			Help: "Total PRN doses recorded",
		}),
		SchedulesReconciled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "schedules_reconciled_total",
			Help: "Total schedule edits reconciled",
		}),
		ResolutionRepairs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "resolution_repairs_total",
			Help: "Stuck resolutions repaired by the recovery pass",
		}),
		DueListDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "due_list_duration_seconds",
			Help:    "Due-medications list latency, sweep included",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		OutboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_pending_entries",
			Help: "Pending outbox entries",
		}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),
	}

	prometheus.MustRegister(
		m.InstancesGenerated,
		m.SweepsRun,
		m.SweepsDebounced,
		m.DosesResolved,
		m.PRNDosesRecorded,
		m.SchedulesReconciled,
		m.ResolutionRepairs,
		m.DueListDuration,
		m.OutboxPending,
		m.CircuitBreakerState,
	)

	return m
}

// SweepRun records one horizon sweep
func (m *Metrics) SweepRun() { m.SweepsRun.Inc() }

// SweepDebounced records a sweep skipped by the debounce
func (m *Metrics) SweepDebounced() { m.SweepsDebounced.Inc() }

// InstancesInserted records instances inserted by a top-up
func (m *Metrics) InstancesInserted(count int) {
	m.InstancesGenerated.Add(float64(count))
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
