package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Исходы завершения саги.
const (
	OutcomeCompleted   = "completed"
	OutcomeCompensated = "compensated"
	OutcomeFailed      = "failed"
	OutcomeExpired     = "expired"
)

// SagaMetrics содержит метрики оркестраторов. Методы безопасны для nil-получателя.
type SagaMetrics struct {
	sagaStarted  *prometheus.CounterVec
	sagaFinished *prometheus.CounterVec

	sagaDuration *prometheus.HistogramVec
	stepDuration *prometheus.HistogramVec

	// Активные экземпляры по типу саги.
	activeSagas *prometheus.GaugeVec
}

// NewSagaMetrics создаёт метрики саг в DefaultRegisterer.
func NewSagaMetrics() *SagaMetrics {
	return NewSagaMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewSagaMetricsWithRegisterer создаёт метрики саг в указанном реестре.
func NewSagaMetricsWithRegisterer(registerer prometheus.Registerer) *SagaMetrics {
	registerer = orDefault(registerer)

	return &SagaMetrics{
		sagaStarted: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "oms_saga_started_total",
			Help: "Total number of saga instances started",
		}, []string{"kind"}),
		sagaFinished: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "oms_saga_finished_total",
			Help: "Total number of saga instances finished by outcome",
		}, []string{"kind", "outcome"}),
		sagaDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "oms_saga_duration_seconds",
			Help:    "Duration of saga instances in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		stepDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "oms_saga_step_duration_seconds",
			Help:    "Duration of individual saga steps in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"kind", "step"}),
		activeSagas: registerGaugeVec(registerer, prometheus.GaugeOpts{
			Name: "oms_active_sagas",
			Help: "Number of currently active saga instances",
		}, []string{"kind"}),
	}
}

// RecordSagaStarted учитывает старт экземпляра.
func (m *SagaMetrics) RecordSagaStarted(kind string) {
	if m == nil {
		return
	}
	m.sagaStarted.WithLabelValues(kind).Inc()
	m.activeSagas.WithLabelValues(kind).Inc()
}

// RecordSagaFinished учитывает завершение экземпляра и его длительность.
func (m *SagaMetrics) RecordSagaFinished(kind, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.sagaFinished.WithLabelValues(kind, outcome).Inc()
	m.activeSagas.WithLabelValues(kind).Dec()
	m.sagaDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordStepDuration записывает время выполнения шага саги.
func (m *SagaMetrics) RecordStepDuration(kind, step string, duration time.Duration) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(kind, step).Observe(duration.Seconds())
}
