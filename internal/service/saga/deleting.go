package saga

import (
	"context"

	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
	"github.com/vladislavdragonenkov/ordersaga/internal/metrics"
	"github.com/vladislavdragonenkov/ordersaga/internal/service/compensation"
)

// Deleting: сага удаления: DeletePayment → DeleteDelivery → DeleteReport →
// CompleteOrderDelete. Неудача на шаге k компенсирует шаги 1..k-1 в обратном порядке.
type Deleting struct {
	stepper
	comp   *compensation.Coordinator
	lookup CorrelationLookup
}

// NewDeleting создаёт определение саги удаления.
func NewDeleting(deps Deps) *Deleting {
	return &Deleting{
		stepper: newStepper(domain.SagaDeleting, deps),
		comp:    deps.Compensation,
		lookup:  deps.Lookup,
	}
}

func (d *Deleting) Kind() domain.SagaKind { return domain.SagaDeleting }

func (d *Deleting) Starts(ev domain.Event) bool {
	_, ok := ev.(domain.DeletedOrder)
	return ok
}

func (d *Deleting) Handle(ctx context.Context, inst *domain.SagaInstance, ev domain.Event) Transition {
	if cmd, ok := failedCommand(ev); ok {
		return d.onFailed(ctx, inst, cmd)
	}

	switch e := ev.(type) {
	case domain.DeletedOrder:
		if inst.Stage != "" {
			return ignore("delete already in progress")
		}
		inst.Correlation = inst.Correlation.Merge(domain.Correlation{OrderID: e.OrderID})
		if !d.resolve(ctx, inst) {
			return d.compensate(ctx, inst, domain.SagaStepLookup)
		}
		if !d.send(ctx, domain.SagaStepDeletePayment, domain.DeletePayment{PaymentID: inst.Correlation.PaymentID, OrderID: inst.OrderID}) {
			return d.compensate(ctx, inst, domain.SagaStepDeletePayment)
		}
		return advance(inst, domain.StageAwaitPayment)

	case domain.DeletedPayment:
		if inst.Stage != domain.StageAwaitPayment {
			return ignore("unexpected stage")
		}
		if !d.send(ctx, domain.SagaStepDeleteDelivery, domain.DeleteDelivery{
			DeliveryID:  inst.Correlation.DeliveryID,
			OrderID:     inst.OrderID,
			OrderDelete: true,
		}) {
			return d.compensate(ctx, inst, domain.SagaStepDeleteDelivery)
		}
		return advance(inst, domain.StageAwaitDelivery)

	case domain.DeletedDelivery:
		if inst.Stage != domain.StageAwaitDelivery {
			return ignore("unexpected stage")
		}
		if !d.send(ctx, domain.SagaStepDeleteReport, domain.DeleteReport{ReportID: inst.Correlation.ReportID, OrderID: inst.OrderID}) {
			return d.compensate(ctx, inst, domain.SagaStepDeleteReport)
		}
		return advance(inst, domain.StageAwaitReport)

	case domain.DeletedReport:
		if inst.Stage != domain.StageAwaitReport {
			return ignore("unexpected stage")
		}
		if !d.send(ctx, domain.SagaStepCompleteDelete, domain.CompleteOrderDelete{OrderID: inst.OrderID}) {
			return d.compensate(ctx, inst, domain.SagaStepCompleteDelete)
		}
		return advance(inst, domain.StageAwaitCompletion)

	case domain.CompletedDeleteOrder:
		if inst.Stage != domain.StageAwaitCompletion {
			return ignore("unexpected stage")
		}
		return finish(metrics.OutcomeCompleted, "")

	case domain.CancelledDeleteOrder:
		if inst.Stage != domain.StageAwaitCancel {
			return ignore("unexpected stage")
		}
		return finish(metrics.OutcomeCompensated, "order delete cancelled")
	}
	return ignore("not handled")
}

// failedSteps сопоставляет ожидаемую стадию с командой шага.
var failedSteps = map[domain.SagaStage]struct {
	command string
	step    domain.SagaStep
}{
	domain.StageAwaitPayment:    {domain.DeletePayment{}.CommandName(), domain.SagaStepDeletePayment},
	domain.StageAwaitDelivery:   {domain.DeleteDelivery{}.CommandName(), domain.SagaStepDeleteDelivery},
	domain.StageAwaitReport:     {domain.DeleteReport{}.CommandName(), domain.SagaStepDeleteReport},
	domain.StageAwaitCompletion: {domain.CompleteOrderDelete{}.CommandName(), domain.SagaStepCompleteDelete},
}

func (d *Deleting) onFailed(ctx context.Context, inst *domain.SagaInstance, command string) Transition {
	if inst.Stage == domain.StageAwaitCancel && command == (domain.CancelDeleteOrder{}).CommandName() {
		return finish(metrics.OutcomeFailed, "order delete cancellation failed")
	}
	expected, ok := failedSteps[inst.Stage]
	if !ok || expected.command != command {
		return ignore("failure of another step")
	}
	return d.compensate(ctx, inst, expected.step)
}

// compensate отменяет уже выполненные шаги в обратном порядке. Каждая обратная
// команда отправляется не более одного раза.
func (d *Deleting) compensate(ctx context.Context, inst *domain.SagaInstance, failed domain.SagaStep) Transition {
	d.logger.WithField("order_id", inst.OrderID).WithField("failed_step", failed).Warn("delete step failed, compensating")
	corr := inst.Correlation

	switch failed {
	case domain.SagaStepDeleteDelivery:
		d.comp.CancelDeletePayment(ctx, corr)
	case domain.SagaStepDeleteReport:
		d.comp.CancelDeleteDelivery(ctx, corr)
		d.comp.CancelDeletePayment(ctx, corr)
	case domain.SagaStepCompleteDelete:
		d.comp.CancelDeleteDelivery(ctx, corr)
		d.comp.CancelDeletePayment(ctx, corr)
	}

	orderCancelled := d.comp.CancelDeleteOrder(ctx, corr)
	if failed == domain.SagaStepCompleteDelete {
		d.comp.CancelDeleteReport(ctx, corr)
	}

	if !orderCancelled {
		return finish(metrics.OutcomeFailed, "cancel delete order failed")
	}
	return advance(inst, domain.StageAwaitCancel)
}

// resolve заполняет карту корреляции через запрос. Без неё удаление
// продолжать нельзя.
func (d *Deleting) resolve(ctx context.Context, inst *domain.SagaInstance) bool {
	if d.lookup == nil {
		return false
	}
	corr, err := d.lookup.Correlation(ctx, inst.OrderID)
	if err != nil {
		d.logger.WithField("order_id", inst.OrderID).WithError(err).Warn("correlation lookup failed")
		return false
	}
	inst.Correlation = inst.Correlation.Merge(corr)
	return true
}
