// Package payment: обработчик команд агрегата оплаты.
package payment

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersaga/internal/aggregate"
	"github.com/vladislavdragonenkov/ordersaga/internal/bus"
	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
	"github.com/vladislavdragonenkov/ordersaga/internal/service/handling"
)

// Commands перечисляет команды агрегата оплаты.
var Commands = []domain.Command{
	domain.CreatePayment{},
	domain.UpdatePayment{},
	domain.DeletePayment{},
	domain.CancelCreatePayment{},
	domain.CancelUpdatePayment{},
	domain.CancelDeletePayment{},
}

// Service: единственный писатель снимков оплаты.
type Service struct {
	payments domain.PaymentRepository
	logger   *log.Entry
}

// NewService создаёт обработчик команд оплаты.
func NewService(payments domain.PaymentRepository, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "payment-service")
	}
	return &Service{payments: payments, logger: logger}
}

// Register подключает обработчики к шине.
func (s *Service) Register(reg bus.Registry) {
	for _, cmd := range Commands {
		reg.Register(cmd.CommandName(), s.Handle)
	}
}

// Handle применяет команду к снимку оплаты. Ошибка сохранения превращается
// в Failed-событие, которое получает сага-владелец.
func (s *Service) Handle(_ context.Context, cmd domain.Command) (bus.Outcome, error) {
	id := cmd.Target().ID
	state, err := handling.Load(s.payments, id)
	if err != nil {
		return handling.Failure(s.logger, cmd, handling.OrderID(cmd, state), err)
	}

	next, events, err := aggregate.Execute(state, cmd, aggregate.DecidePayment, aggregate.ApplyPayment)
	if err != nil {
		return handling.Failure(s.logger, cmd, handling.OrderID(cmd, state), err)
	}

	next.UpdatedAt = time.Now().UTC()
	if err := handling.Persist(s.payments, id, next); err != nil {
		return handling.Failure(s.logger, cmd, handling.OrderID(cmd, state), err)
	}

	s.logger.WithFields(log.Fields{
		"payment_id": id,
		"order_id":   handling.OrderID(cmd, state),
		"command":    cmd.CommandName(),
		"status":     next.Status,
	}).Debug("payment command applied")
	return bus.Outcome{Events: events}, nil
}
