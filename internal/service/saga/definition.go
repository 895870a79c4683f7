package saga

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersaga/internal/bus"
	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
	"github.com/vladislavdragonenkov/ordersaga/internal/metrics"
	"github.com/vladislavdragonenkov/ordersaga/internal/service/compensation"
)

// Definition описывает конвейер одной саги как переходы конечного автомата.
type Definition interface {
	Kind() domain.SagaKind
	// Starts сообщает, что событие открывает новый экземпляр.
	Starts(ev domain.Event) bool
	// Handle выполняет переход. Экземпляр изменяется на месте.
	Handle(ctx context.Context, inst *domain.SagaInstance, ev domain.Event) Transition
}

// CorrelationLookup находит идентификаторы сервисов по заказу.
type CorrelationLookup interface {
	Correlation(ctx context.Context, orderID string) (domain.Correlation, error)
}

// LookupFunc адаптирует функцию к CorrelationLookup.
type LookupFunc func(ctx context.Context, orderID string) (domain.Correlation, error)

func (f LookupFunc) Correlation(ctx context.Context, orderID string) (domain.Correlation, error) {
	return f(ctx, orderID)
}

type action int

const (
	actionIgnore action = iota
	actionSave
	actionFinish
)

// Transition: итог перехода: игнорировать событие, сохранить экземпляр или завершить сагу.
type Transition struct {
	action  action
	outcome string
	reason  string
}

func ignore(reason string) Transition { return Transition{action: actionIgnore, reason: reason} }

func advance(inst *domain.SagaInstance, stage domain.SagaStage) Transition {
	inst.Stage = stage
	return Transition{action: actionSave}
}

func finish(outcome, reason string) Transition {
	return Transition{action: actionFinish, outcome: outcome, reason: reason}
}

// Deps: общие зависимости определений саг.
type Deps struct {
	Sender       bus.Sender
	Compensation *compensation.Coordinator
	Lookup       CorrelationLookup
	Metrics      *metrics.SagaMetrics
	Logger       *log.Entry
}

// stepper отправляет команды шагов и учитывает их длительность.
type stepper struct {
	kind    domain.SagaKind
	sender  bus.Sender
	metrics *metrics.SagaMetrics
	logger  *log.Entry
}

func newStepper(kind domain.SagaKind, deps Deps) stepper {
	logger := deps.Logger
	if logger == nil {
		logger = log.New().WithField("component", "saga")
	}
	return stepper{
		kind:    kind,
		sender:  deps.Sender,
		metrics: deps.Metrics,
		logger:  logger.WithField("saga", string(kind)),
	}
}

// send отправляет команду с ограниченным ожиданием. Возвращает false, если
// команда отклонена или не уложилась в таймаут. Failed-события приходят
// отдельно через подписку и обрабатываются переходами.
func (s stepper) send(ctx context.Context, step domain.SagaStep, cmd domain.Command) bool {
	start := time.Now()
	res := s.sender.Send(ctx, cmd)
	s.metrics.RecordStepDuration(string(s.kind), string(step), time.Since(start))

	if res.OK() {
		return true
	}
	s.logger.WithFields(log.Fields{
		"order_id": cmd.CorrelationID(),
		"step":     step,
		"command":  cmd.CommandName(),
		"kind":     res.Kind.String(),
	}).WithError(res.Err).Warn("saga step failed")
	return false
}

// failedCommand возвращает имя команды, если событие: Failed-событие.
func failedCommand(ev domain.Event) (string, bool) {
	f, ok := ev.(domain.Failed)
	if !ok {
		return "", false
	}
	return f.Command, true
}
