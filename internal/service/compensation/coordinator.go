// Package compensation: обратные операции для шагов саг.
//
// Каждая операция берёт идентификатор из карты корреляции саги и отправляет
// одну ограниченную по времени команду. Неудача компенсации логируется и
// считается в метриках; повторов и компенсации второго порядка нет.
package compensation

import (
	"context"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersaga/internal/bus"
	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
	"github.com/vladislavdragonenkov/ordersaga/internal/metrics"
)

// Coordinator не хранит состояния между вызовами.
type Coordinator struct {
	sender  bus.Sender
	metrics *metrics.CompensationMetrics
	logger  *log.Entry
}

// NewCoordinator создаёт координатор компенсаций. metrics может быть nil.
func NewCoordinator(sender bus.Sender, m *metrics.CompensationMetrics, logger *log.Entry) *Coordinator {
	if logger == nil {
		logger = log.New().WithField("component", "compensation")
	}
	return &Coordinator{sender: sender, metrics: m, logger: logger}
}

func (c *Coordinator) CancelCreateOrder(ctx context.Context, corr domain.Correlation) bool {
	if !c.require(corr, "cancel_create_order", corr.OrderID) {
		return false
	}
	return c.send(ctx, corr, "cancel_create_order", domain.CancelCreateOrder{OrderID: corr.OrderID})
}

func (c *Coordinator) CancelUpdateOrder(ctx context.Context, corr domain.Correlation) bool {
	if !c.require(corr, "cancel_update_order", corr.OrderID) {
		return false
	}
	return c.send(ctx, corr, "cancel_update_order", domain.CancelUpdateOrder{OrderID: corr.OrderID})
}

func (c *Coordinator) CancelDeleteOrder(ctx context.Context, corr domain.Correlation) bool {
	if !c.require(corr, "cancel_delete_order", corr.OrderID) {
		return false
	}
	return c.send(ctx, corr, "cancel_delete_order", domain.CancelDeleteOrder{OrderID: corr.OrderID})
}

func (c *Coordinator) CancelCreatePayment(ctx context.Context, corr domain.Correlation) bool {
	if !c.require(corr, "cancel_create_payment", corr.PaymentID) {
		return false
	}
	return c.send(ctx, corr, "cancel_create_payment", domain.CancelCreatePayment{PaymentID: corr.PaymentID, OrderID: corr.OrderID})
}

func (c *Coordinator) CancelUpdatePayment(ctx context.Context, corr domain.Correlation) bool {
	if !c.require(corr, "cancel_update_payment", corr.PaymentID) {
		return false
	}
	return c.send(ctx, corr, "cancel_update_payment", domain.CancelUpdatePayment{PaymentID: corr.PaymentID, OrderID: corr.OrderID})
}

func (c *Coordinator) CancelDeletePayment(ctx context.Context, corr domain.Correlation) bool {
	if !c.require(corr, "cancel_delete_payment", corr.PaymentID) {
		return false
	}
	return c.send(ctx, corr, "cancel_delete_payment", domain.CancelDeletePayment{PaymentID: corr.PaymentID, OrderID: corr.OrderID})
}

func (c *Coordinator) CancelCreateDelivery(ctx context.Context, corr domain.Correlation) bool {
	if !c.require(corr, "cancel_create_delivery", corr.DeliveryID) {
		return false
	}
	return c.send(ctx, corr, "cancel_create_delivery", domain.CancelCreateDelivery{DeliveryID: corr.DeliveryID, OrderID: corr.OrderID})
}

func (c *Coordinator) CancelUpdateDelivery(ctx context.Context, corr domain.Correlation) bool {
	if !c.require(corr, "cancel_update_delivery", corr.DeliveryID) {
		return false
	}
	return c.send(ctx, corr, "cancel_update_delivery", domain.CancelUpdateDelivery{DeliveryID: corr.DeliveryID, OrderID: corr.OrderID})
}

func (c *Coordinator) CancelDeleteDelivery(ctx context.Context, corr domain.Correlation) bool {
	if !c.require(corr, "cancel_delete_delivery", corr.DeliveryID) {
		return false
	}
	return c.send(ctx, corr, "cancel_delete_delivery", domain.CancelDeleteDelivery{DeliveryID: corr.DeliveryID, OrderID: corr.OrderID})
}

func (c *Coordinator) CancelCreateReport(ctx context.Context, corr domain.Correlation) bool {
	if !c.require(corr, "cancel_create_report", corr.ReportID) {
		return false
	}
	return c.send(ctx, corr, "cancel_create_report", domain.CancelCreateReport{ReportID: corr.ReportID, OrderID: corr.OrderID})
}

// CancelUpdateReport пересобирает проекцию: у отчёта нет отдельного обновления.
func (c *Coordinator) CancelUpdateReport(ctx context.Context, corr domain.Correlation) bool {
	if !c.require(corr, "cancel_update_report", corr.ReportID) {
		return false
	}
	return c.send(ctx, corr, "cancel_update_report", refresh(corr))
}

func (c *Coordinator) CancelDeleteReport(ctx context.Context, corr domain.Correlation) bool {
	if !c.require(corr, "cancel_delete_report", corr.ReportID) {
		return false
	}
	return c.send(ctx, corr, "cancel_delete_report", domain.CancelDeleteReport{ReportID: corr.ReportID, OrderID: corr.OrderID})
}

// RefreshReport пересобирает отчёт по заказу. Без известного id отчёта
// заводится новый.
func (c *Coordinator) RefreshReport(ctx context.Context, corr domain.Correlation) bool {
	if !c.require(corr, "refresh_report", corr.OrderID) {
		return false
	}
	if corr.ReportID == "" {
		corr.ReportID = uuid.NewString()
	}
	return c.send(ctx, corr, "refresh_report", refresh(corr))
}

func refresh(corr domain.Correlation) domain.CreateReport {
	return domain.CreateReport{
		ReportID:   corr.ReportID,
		OrderID:    corr.OrderID,
		PaymentID:  corr.PaymentID,
		DeliveryID: corr.DeliveryID,
	}
}

// require пропускает компенсацию, если в карте корреляции нет нужного id.
func (c *Coordinator) require(corr domain.Correlation, action, id string) bool {
	if id != "" {
		return true
	}
	c.logger.WithFields(log.Fields{
		"order_id": corr.OrderID,
		"action":   action,
	}).Warn("compensation skipped, id missing in correlation")
	c.metrics.RecordCompensation(action, false)
	return false
}

func (c *Coordinator) send(ctx context.Context, corr domain.Correlation, action string, cmd domain.Command) bool {
	res := c.sender.Send(ctx, cmd)
	ok := res.OK()
	reason := ""
	if !ok && res.Err != nil {
		reason = res.Err.Error()
	}
	if failed, isFailed := res.Failed(); isFailed {
		ok = false
		reason = failed.Reason
	}
	c.metrics.RecordCompensation(action, ok)

	logger := c.logger.WithFields(log.Fields{
		"order_id": corr.OrderID,
		"action":   action,
		"command":  cmd.CommandName(),
		"target":   cmd.Target().String(),
	})
	if !ok {
		logger.WithFields(log.Fields{"kind": res.Kind.String(), "reason": reason}).Error("compensation failed")
		return false
	}
	logger.Info("compensation applied")
	return true
}
