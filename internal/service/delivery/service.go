// Package delivery: обработчик команд агрегата доставки.
//
// Переход в DELIVERING допускается только после успешного резервирования
// остатков по позициям заказа. Уход из DELIVERING возвращает остатки.
package delivery

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersaga/internal/aggregate"
	"github.com/vladislavdragonenkov/ordersaga/internal/bus"
	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
	"github.com/vladislavdragonenkov/ordersaga/internal/service/handling"
)

// Commands перечисляет команды агрегата доставки.
var Commands = []domain.Command{
	domain.CreateDelivery{},
	domain.UpdateDelivery{},
	domain.DeleteDelivery{},
	domain.CancelCreateDelivery{},
	domain.CancelUpdateDelivery{},
	domain.CancelDeleteDelivery{},
}

// LineSource отдаёт позиции заказа для резервирования.
type LineSource interface {
	OrderLines(orderID string) ([]domain.OrderLine, error)
}

// Stock: шаг резервирования остатков.
type Stock interface {
	Reserve(ctx context.Context, orderID string, lines []domain.OrderLine) error
	Release(ctx context.Context, orderID string, lines []domain.OrderLine)
}

// Service: единственный писатель снимков доставки.
type Service struct {
	deliveries domain.DeliveryRepository
	lines      LineSource
	stock      Stock
	logger     *log.Entry
}

// NewService создаёт обработчик команд доставки.
func NewService(deliveries domain.DeliveryRepository, lines LineSource, stock Stock, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "delivery-service")
	}
	return &Service{deliveries: deliveries, lines: lines, stock: stock, logger: logger}
}

// Register подключает обработчики к шине.
func (s *Service) Register(reg bus.Registry) {
	for _, cmd := range Commands {
		reg.Register(cmd.CommandName(), s.Handle)
	}
}

// Handle применяет команду доставки, резервируя или возвращая остатки
// при переходах через DELIVERING.
func (s *Service) Handle(ctx context.Context, cmd domain.Command) (bus.Outcome, error) {
	id := cmd.Target().ID
	state, err := handling.Load(s.deliveries, id)
	orderID := handling.OrderID(cmd, state)
	if err != nil {
		return handling.Failure(s.logger, cmd, orderID, err)
	}

	events, err := aggregate.DecideDelivery(state, cmd)
	if err != nil {
		return handling.Failure(s.logger, cmd, orderID, err)
	}

	var (
		reserved  []domain.OrderLine
		releasing bool
	)
	next := state
	for _, ev := range events {
		switch {
		case aggregate.EntersDelivering(next, ev):
			lines, err := s.reserve(ctx, orderID)
			if err != nil {
				return handling.Failure(s.logger, cmd, orderID, err)
			}
			reserved = lines
		case aggregate.LeavesDelivering(next, ev):
			releasing = true
		}
		next = aggregate.ApplyDelivery(next, ev)
	}

	next.UpdatedAt = time.Now().UTC()
	if err := handling.Persist(s.deliveries, id, next); err != nil {
		if reserved != nil {
			s.stock.Release(ctx, orderID, reserved)
		}
		return handling.Failure(s.logger, cmd, orderID, err)
	}

	if releasing {
		s.release(ctx, orderID)
	}

	s.logger.WithFields(log.Fields{
		"delivery_id": id,
		"order_id":    orderID,
		"command":     cmd.CommandName(),
		"status":      next.Status,
	}).Debug("delivery command applied")
	return bus.Outcome{Events: events}, nil
}

func (s *Service) reserve(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	lines, err := s.lines.OrderLines(orderID)
	if err != nil {
		return nil, fmt.Errorf("order lines for %s: %w", orderID, err)
	}
	if err := s.stock.Reserve(ctx, orderID, lines); err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *Service) release(ctx context.Context, orderID string) {
	lines, err := s.lines.OrderLines(orderID)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Error("cannot release stock, order lines unavailable")
		return
	}
	s.stock.Release(ctx, orderID, lines)
}
