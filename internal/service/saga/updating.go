package saga

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
	"github.com/vladislavdragonenkov/ordersaga/internal/metrics"
	"github.com/vladislavdragonenkov/ordersaga/internal/service/compensation"
)

// Updating: сага обновления: UpdatePayment → CompleteOrderUpdate.
//
// Неудача запускает CancelUpdateOrder; заказ сам откатывает изменения
// компенсирующим UpdateOrder с IsCompensation. Такое обновление открывает
// новый экземпляр с флагом компенсации, и его неудача уже не компенсируется.
type Updating struct {
	stepper
	comp   *compensation.Coordinator
	lookup CorrelationLookup
}

// NewUpdating создаёт определение саги обновления.
func NewUpdating(deps Deps) *Updating {
	return &Updating{
		stepper: newStepper(domain.SagaUpdating, deps),
		comp:    deps.Compensation,
		lookup:  deps.Lookup,
	}
}

func (u *Updating) Kind() domain.SagaKind { return domain.SagaUpdating }

func (u *Updating) Starts(ev domain.Event) bool {
	_, ok := ev.(domain.UpdatedOrder)
	return ok
}

func (u *Updating) Handle(ctx context.Context, inst *domain.SagaInstance, ev domain.Event) Transition {
	if cmd, ok := failedCommand(ev); ok {
		return u.onFailed(ctx, inst, cmd)
	}

	switch e := ev.(type) {
	case domain.UpdatedOrder:
		if inst.Stage != "" {
			return ignore("update already in progress")
		}
		inst.IsCompensation = e.IsCompensation
		inst.Correlation = inst.Correlation.Merge(domain.Correlation{OrderID: e.OrderID, PaymentID: e.PaymentID})
		u.resolve(ctx, inst)

		ok := u.send(ctx, domain.SagaStepUpdatePayment, domain.UpdatePayment{
			PaymentID:      inst.Correlation.PaymentID,
			OrderID:        e.OrderID,
			TotalAmount:    e.TotalAmount,
			Lines:          domain.ClonePaymentLines(e.PaymentLines),
			IsCompensation: e.IsCompensation,
		})
		if !ok {
			return u.cancelOrder(ctx, inst)
		}
		return advance(inst, domain.StageAwaitPayment)

	case domain.UpdatedPayment:
		if inst.Stage != domain.StageAwaitPayment {
			return ignore("unexpected stage")
		}
		if e.IsCompensation || inst.IsCompensation {
			u.comp.RefreshReport(ctx, inst.Correlation)
			return finish(metrics.OutcomeCompensated, "payment realigned")
		}
		ok := u.send(ctx, domain.SagaStepCompleteUpdate, domain.CompleteOrderUpdate{OrderID: inst.OrderID})
		if !ok {
			u.comp.CancelUpdatePayment(ctx, inst.Correlation)
			return u.cancelOrder(ctx, inst)
		}
		return advance(inst, domain.StageAwaitCompletion)

	case domain.CompletedUpdateOrder:
		if inst.Stage != domain.StageAwaitCompletion {
			return ignore("unexpected stage")
		}
		u.comp.RefreshReport(ctx, inst.Correlation)
		return finish(metrics.OutcomeCompleted, "")

	case domain.CancelledUpdateOrder:
		if inst.Stage != domain.StageAwaitCancel {
			return ignore("unexpected stage")
		}
		u.comp.RefreshReport(ctx, inst.Correlation)
		return finish(metrics.OutcomeCompensated, "order update cancelled")
	}
	return ignore("not handled")
}

func (u *Updating) onFailed(ctx context.Context, inst *domain.SagaInstance, command string) Transition {
	switch {
	case inst.Stage == domain.StageAwaitPayment && command == domain.UpdatePayment{}.CommandName():
		return u.cancelOrder(ctx, inst)
	case inst.Stage == domain.StageAwaitCompletion && command == domain.CompleteOrderUpdate{}.CommandName():
		u.comp.CancelUpdatePayment(ctx, inst.Correlation)
		return u.cancelOrder(ctx, inst)
	case inst.Stage == domain.StageAwaitCancel && command == domain.CancelUpdateOrder{}.CommandName():
		return finish(metrics.OutcomeFailed, "order update cancellation failed")
	}
	return ignore("failure of another step")
}

// cancelOrder откатывает обновление заказа. Экземпляр с флагом компенсации
// завершается без повторной компенсации.
func (u *Updating) cancelOrder(ctx context.Context, inst *domain.SagaInstance) Transition {
	if inst.IsCompensation {
		u.logger.WithField("order_id", inst.OrderID).Warn("compensating update failed, not compensating again")
		return finish(metrics.OutcomeFailed, "compensating update failed")
	}
	if !u.comp.CancelUpdateOrder(ctx, inst.Correlation) {
		return finish(metrics.OutcomeFailed, "cancel update order failed")
	}
	return advance(inst, domain.StageAwaitCancel)
}

// resolve дополняет карту корреляции id доставки и отчёта. Их отсутствие
// не мешает обновлению оплаты.
func (u *Updating) resolve(ctx context.Context, inst *domain.SagaInstance) {
	if u.lookup == nil {
		return
	}
	corr, err := u.lookup.Correlation(ctx, inst.OrderID)
	if err != nil {
		u.logger.WithFields(log.Fields{"order_id": inst.OrderID}).WithError(err).Debug("correlation lookup failed")
		return
	}
	inst.Correlation = inst.Correlation.Merge(corr)
}
