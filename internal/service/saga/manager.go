// Package saga: оркестраторы жизненного цикла заказа.
//
// Экземпляр саги: значение конечного автомата, которое хранится в
// SagaRepository по ключу (kind, orderId). Manager получает события из шины,
// загружает экземпляр, выполняет переход определения и сохраняет или удаляет
// экземпляр. Проверка стадии отбрасывает повторные и запоздавшие события.
package saga

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/ordersaga/internal/bus"
	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
	"github.com/vladislavdragonenkov/ordersaga/internal/metrics"
)

// DefaultPartitions: число независимых очередей подписки саг.
const DefaultPartitions = 8

// Manager исполняет определения саг поверх арены экземпляров.
type Manager struct {
	store    domain.SagaRepository
	timeline domain.TimelineRepository
	defs     []Definition
	metrics  *metrics.SagaMetrics
	logger   *log.Entry
	tracer   trace.Tracer
	now      func() time.Time
}

// NewManager создаёт исполнителя саг. timeline и metrics могут быть nil.
func NewManager(
	store domain.SagaRepository,
	timeline domain.TimelineRepository,
	m *metrics.SagaMetrics,
	logger *log.Entry,
	defs ...Definition,
) *Manager {
	if logger == nil {
		logger = log.New().WithField("component", "saga")
	}
	return &Manager{
		store:    store,
		timeline: timeline,
		defs:     defs,
		metrics:  m,
		logger:   logger,
		tracer:   otel.Tracer("github.com/vladislavdragonenkov/ordersaga/internal/service/saga"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Subscribe подписывает саги на события шины.
func (m *Manager) Subscribe(sub bus.Subscriber, partitions int) {
	if partitions <= 0 {
		partitions = DefaultPartitions
	}
	sub.Subscribe("saga", partitions, m.Handle)
}

// Handle передаёт событие всем определениям.
func (m *Manager) Handle(ctx context.Context, ev domain.Event) {
	orderID := ev.CorrelationID()
	if orderID == "" {
		return
	}
	for _, def := range m.defs {
		m.handle(ctx, def, orderID, ev)
	}
}

func (m *Manager) handle(ctx context.Context, def Definition, orderID string, ev domain.Event) {
	kind := def.Kind()
	logger := m.logger.WithFields(log.Fields{
		"saga":     string(kind),
		"order_id": orderID,
		"event":    ev.EventName(),
	})

	inst, err := m.store.Get(kind, orderID)
	started := false
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		if !def.Starts(ev) {
			return
		}
		now := m.now()
		inst = domain.SagaInstance{Kind: kind, OrderID: orderID, StartedAt: now, UpdatedAt: now}
		started = true
	default:
		logger.WithError(err).Error("failed to load saga instance")
		return
	}

	ctx, span := m.tracer.Start(ctx, "saga."+string(kind), trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("event", ev.EventName()),
		attribute.String("stage", string(inst.Stage)),
	))
	defer span.End()

	if started {
		m.metrics.RecordSagaStarted(string(kind))
		m.appendTimeline(orderID, domain.TimelineSagaStarted, string(kind))
		logger.Info("saga started")
	}

	tr := def.Handle(ctx, &inst, ev)
	span.SetAttributes(attribute.String("stage.next", string(inst.Stage)))

	switch tr.action {
	case actionIgnore:
		logger.WithFields(log.Fields{"stage": inst.Stage, "reason": tr.reason}).Debug("event ignored")
	case actionSave:
		inst.UpdatedAt = m.now()
		if err := m.store.Save(inst); err != nil {
			logger.WithError(err).Error("failed to save saga instance")
			return
		}
		logger.WithField("stage", inst.Stage).Debug("saga advanced")
	case actionFinish:
		m.end(inst, tr.outcome, tr.reason, logger)
	}
}

func (m *Manager) end(inst domain.SagaInstance, outcome, reason string, logger *log.Entry) {
	if err := m.store.Delete(inst.Kind, inst.OrderID); err != nil {
		logger.WithError(err).Error("failed to delete saga instance")
	}
	m.metrics.RecordSagaFinished(string(inst.Kind), outcome, m.now().Sub(inst.StartedAt))

	note := string(inst.Kind) + ": " + outcome
	if reason != "" {
		note += ": " + reason
	}
	m.appendTimeline(inst.OrderID, domain.TimelineSagaFinished, note)

	entry := logger.WithFields(log.Fields{"outcome": outcome, "reason": reason})
	if outcome == metrics.OutcomeCompleted {
		entry.Info("saga completed")
		return
	}
	entry.Warn("saga ended without completion")
}

// Active возвращает число живых экземпляров.
func (m *Manager) Active() (int, error) {
	list, err := m.store.List()
	if err != nil {
		return 0, err
	}
	return len(list), nil
}

func (m *Manager) appendTimeline(orderID, typ, reason string) {
	if m.timeline == nil {
		return
	}
	err := m.timeline.Append(domain.TimelineEvent{OrderID: orderID, Type: typ, Reason: reason, Occurred: m.now()})
	if err != nil {
		m.logger.WithError(err).WithField("order_id", orderID).Warn("failed to append saga timeline entry")
	}
}
