// Package journal записывает каждое доменное событие в таймлайн заказа
// и в transactional outbox для публикации во внешний брокер.
package journal

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersaga/internal/bus"
	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
	"github.com/vladislavdragonenkov/ordersaga/internal/metrics"
)

// DefaultPartitions: число очередей подписки журнала.
const DefaultPartitions = 4

// Journal: подписчик шины, который фиксирует события.
type Journal struct {
	timeline domain.TimelineRepository
	outbox   domain.OutboxRepository
	metrics  *metrics.CompensationMetrics
	logger   *log.Entry
	now      func() time.Time
}

// New создаёт журнал. outbox может быть nil, тогда события только попадают в таймлайн.
func New(timeline domain.TimelineRepository, outbox domain.OutboxRepository, m *metrics.CompensationMetrics, logger *log.Entry) *Journal {
	if logger == nil {
		logger = log.WithField("component", "journal")
	}
	return &Journal{
		timeline: timeline,
		outbox:   outbox,
		metrics:  m,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Subscribe подписывает журнал на все события шины.
func (j *Journal) Subscribe(sub bus.Subscriber, partitions int) {
	if partitions <= 0 {
		partitions = DefaultPartitions
	}
	sub.Subscribe("journal", partitions, j.Handle)
}

// Handle записывает одно событие. Ошибки хранилищ логируются и не
// останавливают доставку остальных событий.
func (j *Journal) Handle(_ context.Context, ev domain.Event) {
	orderID := ev.CorrelationID()
	logger := j.logger.WithFields(log.Fields{"event": ev.EventName(), "order_id": orderID})

	if j.timeline != nil && orderID != "" {
		entry := domain.TimelineEvent{OrderID: orderID, Type: ev.EventName(), Occurred: j.now()}
		if f, ok := ev.(domain.Failed); ok {
			entry.Reason = f.Reason
		}
		if err := j.timeline.Append(entry); err != nil {
			logger.WithError(err).Warn("failed to append timeline event")
		} else {
			j.metrics.RecordTimelineEvent()
		}
	}

	if j.outbox == nil {
		return
	}
	msg, err := Message(ev)
	if err != nil {
		logger.WithError(err).Error("failed to encode outbox message")
		return
	}
	if _, err := j.outbox.Enqueue(msg); err != nil {
		logger.WithError(err).Error("failed to enqueue outbox message")
		return
	}
	j.metrics.RecordOutboxEvent()
}

// Message строит outbox-сообщение из доменного события.
func Message(ev domain.Event) (domain.OutboxMessage, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return domain.OutboxMessage{}, err
	}
	return domain.OutboxMessage{
		ID:            uuid.NewString(),
		AggregateType: string(AggregateOf(ev)),
		AggregateID:   ev.AggregateID(),
		OrderID:       ev.CorrelationID(),
		EventType:     ev.EventName(),
		Payload:       payload,
	}, nil
}

// AggregateOf определяет вид агрегата по имени события.
func AggregateOf(ev domain.Event) domain.AggregateKind {
	if f, ok := ev.(domain.Failed); ok {
		return f.Aggregate
	}
	name := ev.EventName()
	for _, kind := range []struct {
		suffix string
		kind   domain.AggregateKind
	}{
		{"Order", domain.KindOrder},
		{"Payment", domain.KindPayment},
		{"Delivery", domain.KindDelivery},
		{"Report", domain.KindReport},
		{"Inventory", domain.KindInventory},
	} {
		if strings.HasSuffix(name, kind.suffix) {
			return kind.kind
		}
	}
	return ""
}
