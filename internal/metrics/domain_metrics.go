package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BusMetrics описывает отправку команд и доставку событий.
type BusMetrics struct {
	commands     *prometheus.CounterVec
	sendDuration *prometheus.HistogramVec
	events       *prometheus.CounterVec
}

// NewBusMetrics регистрирует метрики шины.
func NewBusMetrics(registerer prometheus.Registerer) *BusMetrics {
	registerer = orDefault(registerer)
	return &BusMetrics{
		commands: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "oms_bus_commands_total",
			Help: "Commands sent through the bus by result",
		}, []string{"command", "result"}),
		sendDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "oms_bus_send_duration_seconds",
			Help:    "Bounded command send latency",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"command"}),
		events: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "oms_bus_events_published_total",
			Help: "Domain events published to subscribers",
		}, []string{"event"}),
	}
}

// RecordSend учитывает результат отправки команды.
func (m *BusMetrics) RecordSend(command, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command, result).Inc()
	m.sendDuration.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordEvent учитывает опубликованное событие.
func (m *BusMetrics) RecordEvent(event string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(event).Inc()
}

// CompensationMetrics считает обратные команды и операции склада.
type CompensationMetrics struct {
	compensations    *prometheus.CounterVec
	reservations     *prometheus.CounterVec
	inventoryClamped prometheus.Counter
	timelineEvents   prometheus.Counter
	outboxEvents     prometheus.Counter
}

// NewCompensationMetrics регистрирует метрики компенсаций и склада.
func NewCompensationMetrics(registerer prometheus.Registerer) *CompensationMetrics {
	registerer = orDefault(registerer)
	return &CompensationMetrics{
		compensations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "oms_compensation_total",
			Help: "Compensating commands issued by action and result",
		}, []string{"action", "result"}),
		reservations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "oms_inventory_reservation_total",
			Help: "Batch inventory reservations by result",
		}, []string{"result"}),
		inventoryClamped: registerCounter(registerer, prometheus.CounterOpts{
			Name: "oms_inventory_clamped_total",
			Help: "Inventory decreases clamped at zero instead of being rejected",
		}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "oms_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "oms_outbox_events_total",
			Help: "Total number of domain events written to the outbox",
		}),
	}
}

// RecordCompensation учитывает одну обратную команду.
func (m *CompensationMetrics) RecordCompensation(action string, ok bool) {
	if m == nil {
		return
	}
	m.compensations.WithLabelValues(action, resultLabel(ok)).Inc()
}

// RecordReservation учитывает исход пакетного списания.
func (m *CompensationMetrics) RecordReservation(ok bool) {
	if m == nil {
		return
	}
	m.reservations.WithLabelValues(resultLabel(ok)).Inc()
}

// RecordInventoryClamped учитывает обнуление остатка вместо отказа.
func (m *CompensationMetrics) RecordInventoryClamped() {
	if m == nil {
		return
	}
	m.inventoryClamped.Inc()
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *CompensationMetrics) RecordTimelineEvent() {
	if m == nil {
		return
	}
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *CompensationMetrics) RecordOutboxEvent() {
	if m == nil {
		return
	}
	m.outboxEvents.Inc()
}

func resultLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
