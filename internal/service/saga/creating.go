package saga

import (
	"context"

	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
	"github.com/vladislavdragonenkov/ordersaga/internal/metrics"
	"github.com/vladislavdragonenkov/ordersaga/internal/service/compensation"
)

// Creating: сага создания: CreatePayment → CreateDelivery → CompleteOrderCreate.
// Неудача на любом шаге завершает сагу без компенсации.
type Creating struct {
	stepper
	comp *compensation.Coordinator
}

// NewCreating создаёт определение саги создания.
func NewCreating(deps Deps) *Creating {
	return &Creating{stepper: newStepper(domain.SagaCreating, deps), comp: deps.Compensation}
}

func (c *Creating) Kind() domain.SagaKind { return domain.SagaCreating }

func (c *Creating) Starts(ev domain.Event) bool {
	_, ok := ev.(domain.CreatedOrder)
	return ok
}

func (c *Creating) Handle(ctx context.Context, inst *domain.SagaInstance, ev domain.Event) Transition {
	if cmd, ok := failedCommand(ev); ok {
		return c.onFailed(inst, cmd)
	}

	switch e := ev.(type) {
	case domain.CreatedOrder:
		if inst.Stage != "" {
			return ignore("duplicate start")
		}
		inst.Correlation = inst.Correlation.Merge(domain.Correlation{OrderID: e.OrderID, PaymentID: e.PaymentID})
		ok := c.send(ctx, domain.SagaStepCreatePayment, domain.CreatePayment{
			PaymentID:   e.PaymentID,
			OrderID:     e.OrderID,
			TotalAmount: e.TotalAmount,
			Lines:       domain.ClonePaymentLines(e.PaymentLines),
		})
		if !ok {
			return finish(metrics.OutcomeFailed, "create payment not accepted")
		}
		return advance(inst, domain.StageAwaitPayment)

	case domain.CreatedPayment:
		if inst.Stage != domain.StageAwaitPayment {
			return ignore("unexpected stage")
		}
		deliveryID := domain.DeliveryIDFor(inst.OrderID)
		inst.Correlation = inst.Correlation.Merge(domain.Correlation{PaymentID: e.PaymentID, DeliveryID: deliveryID})
		ok := c.send(ctx, domain.SagaStepCreateDelivery, domain.CreateDelivery{
			DeliveryID: deliveryID,
			OrderID:    inst.OrderID,
			Status:     domain.DeliveryStatusCreated,
		})
		if !ok {
			return finish(metrics.OutcomeFailed, "create delivery not accepted")
		}
		return advance(inst, domain.StageAwaitDelivery)

	case domain.CreatedDelivery:
		if inst.Stage != domain.StageAwaitDelivery {
			return ignore("unexpected stage")
		}
		ok := c.send(ctx, domain.SagaStepCompleteCreate, domain.CompleteOrderCreate{
			OrderID: inst.OrderID,
			Status:  domain.OrderStatusCompleted,
		})
		if !ok {
			return finish(metrics.OutcomeFailed, "complete order create not accepted")
		}
		return advance(inst, domain.StageAwaitCompletion)

	case domain.CompletedCreateOrder:
		if inst.Stage != domain.StageAwaitCompletion {
			return ignore("unexpected stage")
		}
		c.comp.RefreshReport(ctx, inst.Correlation)
		return finish(metrics.OutcomeCompleted, "")
	}
	return ignore("not handled")
}

func (c *Creating) onFailed(inst *domain.SagaInstance, command string) Transition {
	expected := map[domain.SagaStage]string{
		domain.StageAwaitPayment:    domain.CreatePayment{}.CommandName(),
		domain.StageAwaitDelivery:   domain.CreateDelivery{}.CommandName(),
		domain.StageAwaitCompletion: domain.CompleteOrderCreate{}.CommandName(),
	}
	if expected[inst.Stage] != command {
		return ignore("failure of another step")
	}
	return finish(metrics.OutcomeFailed, "Failed"+command)
}
