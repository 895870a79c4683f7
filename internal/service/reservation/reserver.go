// Package reservation: локальная сага резервирования остатков под доставку.
//
// Позиции заказа списываются по одной (DECREASE). Если списание любой позиции
// не удалось, уже списанные позиции возвращаются (INCREASE) в обратном порядке.
package reservation

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/ordersaga/internal/bus"
	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
	"github.com/vladislavdragonenkov/ordersaga/internal/metrics"
)

// Reserver списывает и возвращает остатки через шину команд.
type Reserver struct {
	sender  bus.Sender
	logger  *log.Entry
	metrics *metrics.CompensationMetrics
	tracer  trace.Tracer
}

// NewReserver создаёт шаг резервирования. metrics может быть nil.
func NewReserver(sender bus.Sender, m *metrics.CompensationMetrics, logger *log.Entry) *Reserver {
	if logger == nil {
		logger = log.New().WithField("component", "reservation")
	}
	return &Reserver{
		sender:  sender,
		logger:  logger,
		metrics: m,
		tracer:  otel.Tracer("github.com/vladislavdragonenkov/ordersaga/internal/service/reservation"),
	}
}

// Reserve списывает все позиции или ни одной. При неудаче возвращает ErrReservationFailed.
func (r *Reserver) Reserve(ctx context.Context, orderID string, lines []domain.OrderLine) error {
	ctx, span := r.tracer.Start(ctx, "reservation.reserve", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.Int("lines", len(lines)),
	))
	defer span.End()

	applied := make([]domain.OrderLine, 0, len(lines))
	for _, line := range lines {
		if err := r.adjust(ctx, orderID, line, domain.AdjustDecrease); err != nil {
			r.logger.WithFields(log.Fields{
				"order_id":   orderID,
				"product_id": line.ProductID,
				"applied":    len(applied),
			}).WithError(err).Warn("reservation failed, rolling back applied lines")

			r.rollback(ctx, orderID, applied)
			r.metrics.RecordReservation(false)
			span.SetStatus(codes.Error, "reservation failed")
			span.RecordError(err)
			return fmt.Errorf("order %s, product %s: %w", orderID, line.ProductID, errors.Join(domain.ErrReservationFailed, err))
		}
		applied = append(applied, line)
	}

	r.metrics.RecordReservation(true)
	r.logger.WithFields(log.Fields{"order_id": orderID, "lines": len(lines)}).Debug("stock reserved")
	return nil
}

// Release возвращает остатки всех позиций. Работает по принципу best-effort:
// неудачные возвраты только логируются.
func (r *Reserver) Release(ctx context.Context, orderID string, lines []domain.OrderLine) {
	for _, line := range lines {
		if err := r.adjust(ctx, orderID, line, domain.AdjustIncrease); err != nil {
			r.logger.WithFields(log.Fields{
				"order_id":   orderID,
				"product_id": line.ProductID,
				"qty":        line.Qty,
			}).WithError(err).Error("failed to release reserved stock")
		}
	}
}

// rollback возвращает списанные позиции в обратном порядке.
func (r *Reserver) rollback(ctx context.Context, orderID string, applied []domain.OrderLine) {
	for i := len(applied) - 1; i >= 0; i-- {
		line := applied[i]
		if err := r.adjust(ctx, orderID, line, domain.AdjustIncrease); err != nil {
			r.logger.WithFields(log.Fields{
				"order_id":   orderID,
				"product_id": line.ProductID,
				"qty":        line.Qty,
			}).WithError(err).Error("reservation rollback failed")
		}
	}
}

func (r *Reserver) adjust(ctx context.Context, orderID string, line domain.OrderLine, dir domain.AdjustDirection) error {
	res := r.sender.Send(ctx, domain.AdjustInventoryQty{
		ProductID: line.ProductID,
		OrderID:   orderID,
		Direction: dir,
		Amount:    int64(line.Qty),
	})
	if !res.OK() {
		return fmt.Errorf("%s %s: %s: %w", dir, line.ProductID, res.Kind, res.Err)
	}
	if failed, ok := res.Failed(); ok {
		return fmt.Errorf("%s %s: %s", dir, line.ProductID, failed.Reason)
	}
	return nil
}
