// Package order: обработчик команд агрегата заказа.
package order

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersaga/internal/aggregate"
	"github.com/vladislavdragonenkov/ordersaga/internal/bus"
	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
	"github.com/vladislavdragonenkov/ordersaga/internal/service/handling"
)

// Commands перечисляет команды, которые обслуживает агрегат заказа.
var Commands = []domain.Command{
	domain.CreateOrder{},
	domain.UpdateOrder{},
	domain.DeleteOrder{},
	domain.CompleteOrderCreate{},
	domain.CompleteOrderUpdate{},
	domain.CompleteOrderDelete{},
	domain.CancelCreateOrder{},
	domain.CancelUpdateOrder{},
	domain.CancelDeleteOrder{},
	domain.ForceCancelOrder{},
}

// Service: единственный писатель снимков заказа.
type Service struct {
	orders domain.OrderRepository
	logger *log.Entry
}

// NewService создаёт обработчик команд заказа.
func NewService(orders domain.OrderRepository, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "order-service")
	}
	return &Service{orders: orders, logger: logger}
}

// Register подключает обработчики к шине.
func (s *Service) Register(reg bus.Registry) {
	for _, cmd := range Commands {
		reg.Register(cmd.CommandName(), s.Handle)
	}
}

// Subscribe подписывает заказ на удаление доставки: заказ принудительно отменяется.
// Удаление доставки сагой удаления заказа пропускается: исход решает сама сага.
func (s *Service) Subscribe(sub bus.Subscriber, sender bus.Sender) {
	sub.Subscribe("order-service", 1, func(ctx context.Context, ev domain.Event) {
		deleted, ok := ev.(domain.DeletedDelivery)
		if !ok || deleted.OrderDelete {
			return
		}
		res := sender.Send(ctx, domain.ForceCancelOrder{OrderID: deleted.OrderID, DeliveryID: deleted.DeliveryID})
		if !res.OK() {
			s.logger.WithFields(log.Fields{
				"order_id":    deleted.OrderID,
				"delivery_id": deleted.DeliveryID,
				"kind":        res.Kind.String(),
			}).WithError(res.Err).Warn("force cancel after delivery deletion failed")
		}
	})
}

// Handle выполняет decide-then-apply и сохраняет снимок заказа.
func (s *Service) Handle(_ context.Context, cmd domain.Command) (bus.Outcome, error) {
	id := cmd.Target().ID
	state, err := handling.Load(s.orders, id)
	if err != nil {
		return handling.Failure(s.logger, cmd, id, err)
	}

	next, events, err := aggregate.Execute(state, cmd, aggregate.DecideOrder, aggregate.ApplyOrder)
	if err != nil {
		return handling.Failure(s.logger, cmd, id, err)
	}
	if len(events) == 0 {
		return bus.Outcome{}, nil
	}

	next.UpdatedAt = time.Now().UTC()
	if err := handling.Persist(s.orders, id, next); err != nil {
		return handling.Failure(s.logger, cmd, id, err)
	}

	out := bus.Outcome{Events: events}
	for _, ev := range events {
		cancelled, ok := ev.(domain.CancelledUpdateOrder)
		if !ok || cancelled.Restore == nil {
			continue
		}
		// Откат обновления: повторное UpdateOrder с IsCompensation, которое не запускает новую компенсацию.
		out.FollowUps = append(out.FollowUps, aggregate.CompensatingUpdate(cancelled.OrderID, *cancelled.Restore))
	}

	s.logger.WithFields(log.Fields{
		"order_id": id,
		"command":  cmd.CommandName(),
		"status":   next.Status,
	}).Debug("order command applied")
	return out, nil
}
