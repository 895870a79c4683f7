// Package report ведёт сводную проекцию заказа по всем сервисам.
package report

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersaga/internal/aggregate"
	"github.com/vladislavdragonenkov/ordersaga/internal/bus"
	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
	"github.com/vladislavdragonenkov/ordersaga/internal/service/handling"
)

// Commands перечисляет команды отчёта.
var Commands = []domain.Command{
	domain.CreateReport{},
	domain.DeleteReport{},
	domain.CancelCreateReport{},
	domain.CancelDeleteReport{},
}

// Sources: снимки, из которых собирается проекция. Только чтение.
type Sources struct {
	Orders     domain.OrderRepository
	Payments   domain.PaymentRepository
	Deliveries domain.DeliveryRepository
}

// Service: единственный писатель отчётов.
type Service struct {
	reports domain.ReportRepository
	sources Sources
	logger  *log.Entry
}

// NewService создаёт обработчик команд отчёта.
func NewService(reports domain.ReportRepository, sources Sources, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "report-service")
	}
	return &Service{reports: reports, sources: sources, logger: logger}
}

// Register подключает обработчики к шине.
func (s *Service) Register(reg bus.Registry) {
	for _, cmd := range Commands {
		reg.Register(cmd.CommandName(), s.Handle)
	}
}

// Handle применяет команду и обновляет поля проекции. CreateReport по
// существующему id работает как обновление.
func (s *Service) Handle(_ context.Context, cmd domain.Command) (bus.Outcome, error) {
	id := cmd.Target().ID
	state, err := handling.Load(s.reports, id)
	orderID := handling.OrderID(cmd, state)
	if err != nil {
		return handling.Failure(s.logger, cmd, orderID, err)
	}

	next, events, err := aggregate.Execute(state, cmd, aggregate.DecideReport, aggregate.ApplyReport)
	if err != nil {
		return handling.Failure(s.logger, cmd, orderID, err)
	}
	if next.Exists() && !next.Deleted {
		next = s.project(next)
	}

	next.UpdatedAt = time.Now().UTC()
	if err := handling.Persist(s.reports, id, next); err != nil {
		return handling.Failure(s.logger, cmd, orderID, err)
	}
	return bus.Outcome{Events: events}, nil
}

// project копирует актуальные поля заказа, оплаты и доставки. Отсутствующие
// снимки оставляют поля как есть.
func (s *Service) project(r domain.Report) domain.Report {
	logger := s.logger.WithField("order_id", r.OrderID)

	if s.sources.Orders != nil {
		order, err := s.sources.Orders.Get(r.OrderID)
		switch {
		case err == nil:
			r.UserID = order.UserID
			r.OrderStatus = order.Status
			r.TotalAmount = order.TotalAmount
			r.Lines = domain.CloneLines(order.Lines)
			if r.PaymentID == "" {
				r.PaymentID = order.PaymentID
			}
		case !errors.Is(err, domain.ErrNotFound):
			logger.WithError(err).Warn("report projection: order lookup failed")
		}
	}

	if s.sources.Payments != nil {
		payment, err := lookup(s.sources.Payments, r.PaymentID, r.OrderID)
		switch {
		case err == nil:
			r.PaymentID = payment.ID
			r.PaymentStatus = payment.Status
		case !errors.Is(err, domain.ErrNotFound):
			logger.WithError(err).Warn("report projection: payment lookup failed")
		}
	}

	if s.sources.Deliveries != nil {
		delivery, err := lookup(s.sources.Deliveries, r.DeliveryID, r.OrderID)
		switch {
		case err == nil:
			r.DeliveryID = delivery.ID
			r.DeliveryStatus = delivery.Status
		case !errors.Is(err, domain.ErrNotFound):
			logger.WithError(err).Warn("report projection: delivery lookup failed")
		}
	}
	return r
}

func lookup[T domain.Entity](repo domain.SnapshotRepository[T], id, orderID string) (T, error) {
	if id != "" {
		return repo.Get(id)
	}
	return repo.FindByOrder(orderID)
}
