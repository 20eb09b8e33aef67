package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the orchestrator collectors. A nil *Metrics records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	operations  *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	stageErrors *prometheus.CounterVec
	wraps       *prometheus.CounterVec
	gasFee      *prometheus.CounterVec
	httpStatus  *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "koala_operations_total",
				Help: "Orchestrated operations by network, operation and outcome",
			},
			[]string{"network", "operation", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "koala_operation_duration_seconds",
				Help:    "Wall time of orchestrated operations including confirmation",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"network", "operation"},
		),
		stageErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "koala_stage_errors_total",
				Help: "Failed operations by the stage that failed and error kind",
			},
			[]string{"operation", "stage", "kind"},
		),
		wraps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "koala_native_wraps_total",
				Help: "Native currency wrap transactions by network",
			},
			[]string{"network"},
		),
		gasFee: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "koala_gas_fee_native_total",
				Help: "Native currency spent on gas by network",
			},
			[]string{"network"},
		),
		httpStatus: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "koala_http_responses_total",
				Help: "HTTP responses by route and status code",
			},
			[]string{"route", "code"},
		),
	}
}

// ObserveOperation records one finished operation.
func (m *Metrics) ObserveOperation(network, operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(network, operation, outcome).Inc()
	m.duration.WithLabelValues(network, operation).Observe(elapsed.Seconds())
}

// ObserveStageError records the stage and kind of a failed operation.
func (m *Metrics) ObserveStageError(operation, stage, kind string) {
	if m == nil {
		return
	}
	m.stageErrors.WithLabelValues(operation, stage, kind).Inc()
}

// ObserveWrap counts one native wrap.
func (m *Metrics) ObserveWrap(network string) {
	if m == nil {
		return
	}
	m.wraps.WithLabelValues(network).Inc()
}

// ObserveGasFee adds a paid fee in native units.
func (m *Metrics) ObserveGasFee(network string, fee float64) {
	if m == nil || fee <= 0 {
		return
	}
	m.gasFee.WithLabelValues(network).Add(fee)
}

// ObserveHTTP counts one response.
func (m *Metrics) ObserveHTTP(route, code string) {
	if m == nil {
		return
	}
	m.httpStatus.WithLabelValues(route, code).Inc()
}
