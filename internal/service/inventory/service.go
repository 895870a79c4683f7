// Package inventory: обработчик команд складских позиций.
//
// Изменение остатка меняет только состояние и событий не выпускает. Списание
// больше остатка обнуляет его; такое обнуление отмечается отдельно от ошибок:
// Warn-запись с clamped=true, метрика и запись InventoryClamped в таймлайне заказа.
package inventory

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersaga/internal/aggregate"
	"github.com/vladislavdragonenkov/ordersaga/internal/bus"
	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
	"github.com/vladislavdragonenkov/ordersaga/internal/metrics"
	"github.com/vladislavdragonenkov/ordersaga/internal/service/handling"
)

// Service: единственный писатель остатков.
type Service struct {
	stock    domain.InventoryRepository
	timeline domain.TimelineRepository
	metrics  *metrics.CompensationMetrics
	logger   *log.Entry
}

// NewService создаёт обработчик склада. timeline и metrics могут быть nil.
func NewService(
	stock domain.InventoryRepository,
	timeline domain.TimelineRepository,
	m *metrics.CompensationMetrics,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "inventory-service")
	}
	return &Service{stock: stock, timeline: timeline, metrics: m, logger: logger}
}

// Register подключает обработчики к шине.
func (s *Service) Register(reg bus.Registry) {
	reg.Register(domain.CreateInventory{}.CommandName(), s.Handle)
	reg.Register(domain.AdjustInventoryQty{}.CommandName(), s.Handle)
}

// Handle заводит позицию или меняет её остаток.
func (s *Service) Handle(_ context.Context, cmd domain.Command) (bus.Outcome, error) {
	id := cmd.Target().ID
	if id == "" {
		return bus.Outcome{}, domain.Invalid(domain.ErrProductIDRequired)
	}
	state, err := handling.Load(s.stock, id)
	if err != nil {
		return handling.Failure(s.logger, cmd, cmd.CorrelationID(), err)
	}

	var (
		next    domain.Inventory
		clamped bool
	)
	switch c := cmd.(type) {
	case domain.CreateInventory:
		next, err = aggregate.CreateInventory(state, c)
	case domain.AdjustInventoryQty:
		next, clamped, err = aggregate.AdjustInventory(state, c.Direction, c.Amount)
		if clamped {
			s.recordClamp(c, state.Qty)
		}
	default:
		err = domain.Invalid(fmt.Errorf("unsupported inventory command %s", cmd.CommandName()))
	}
	if err != nil {
		return handling.Failure(s.logger, cmd, cmd.CorrelationID(), err)
	}

	next.UpdatedAt = time.Now().UTC()
	if err := handling.Persist(s.stock, id, next); err != nil {
		return handling.Failure(s.logger, cmd, cmd.CorrelationID(), err)
	}
	return bus.Outcome{}, nil
}

func (s *Service) recordClamp(c domain.AdjustInventoryQty, available int64) {
	s.logger.WithFields(log.Fields{
		"product_id": c.ProductID,
		"order_id":   c.OrderID,
		"requested":  c.Amount,
		"available":  available,
		"clamped":    true,
	}).Warn("inventory decrease clamped at zero")
	s.metrics.RecordInventoryClamped()

	if s.timeline == nil || c.OrderID == "" {
		return
	}
	err := s.timeline.Append(domain.TimelineEvent{
		OrderID:  c.OrderID,
		Type:     domain.TimelineInventoryClamped,
		Reason:   fmt.Sprintf("product %s: requested %d, available %d", c.ProductID, c.Amount, available),
		Occurred: time.Now().UTC(),
	})
	if err != nil {
		s.logger.WithError(err).WithField("order_id", c.OrderID).Warn("failed to append clamp to timeline")
		return
	}
	s.metrics.RecordTimelineEvent()
}
