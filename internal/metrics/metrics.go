package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Analysis: сколько задач разобрано и куда их отнесли
	AnalysisTotal *prometheus.CounterVec

	// Assignments: исход назначения (direct, fallback, overload, emergency, failed)
	AssignmentsTotal *prometheus.CounterVec

	// Latency вызовов трекера
	TrackerDuration *prometheus.HistogramVec

	// Errors: классификация отказов трекера
	TrackerErrors *prometheus.CounterVec

	// Saturation: состояние Circuit Breaker (0 - closed, 1 - half-open, 2 - open)
	CircuitBreakerState *prometheus.GaugeVec

	// Audit: заполненность буфера (backpressure)
	AuditBufferFill prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		AnalysisTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "router_analysis_total",
			Help: "Total number of analyzed issues.",
		}, []string{"agent_type", "priority"}),

		AssignmentsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "router_assignments_total",
			Help: "Total number of assignment decisions by outcome.",
		}, []string{"outcome"}),

		TrackerDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "router_tracker_request_duration_seconds",
			Help:    "Histogram of issue tracker call latencies.",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"op", "status"}),

		TrackerErrors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "router_tracker_errors_total",
			Help: "Total number of issue tracker errors by type.",
		}, []string{"op", "type"}), // типы: throttled, api, breaker_open, rate_limit, network

		CircuitBreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "router_circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 1=half-open, 2=open).",
		}, []string{"name"}),

		AuditBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "router_audit_buffer_utilization",
			Help: "Current number of events in audit buffer.",
		}),
	}
}
