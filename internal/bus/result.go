package bus

import (
	"context"

	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
)

// FailureKind различает причины неуспешной отправки команды.
type FailureKind int

const (
	// FailureNone: команда принята агрегатом.
	FailureNone FailureKind = iota
	// FailureRejected: агрегат отклонил команду синхронно (валидация, нет обработчика).
	FailureRejected
	// FailureTimeout: исход не получен за отведённое время.
	FailureTimeout
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "ok"
	case FailureRejected:
		return "rejected"
	case FailureTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Result: исход ограниченной по времени отправки команды.
type Result struct {
	// Event: первое событие исхода; nil для команд, которые событий не выпускают.
	Event  domain.Event
	Events []domain.Event
	Kind   FailureKind
	Err    error
}

// OK сообщает, что агрегат принял команду. Принятие не исключает Failed-события.
func (r Result) OK() bool { return r.Kind == FailureNone }

// Failed возвращает Failed-событие исхода, если агрегат не смог применить команду.
func (r Result) Failed() (domain.Failed, bool) {
	f, ok := r.Event.(domain.Failed)
	return f, ok
}

// Outcome: то, что обработчик команды возвращает шине.
type Outcome struct {
	Events []domain.Event
	// FollowUps отправляются асинхронно после публикации событий.
	FollowUps []domain.Command
}

// Handler обрабатывает команду одного агрегата. Ошибка означает отказ (FailureRejected).
type Handler func(ctx context.Context, cmd domain.Command) (Outcome, error)

// EventHandler получает события подписки.
type EventHandler func(ctx context.Context, ev domain.Event)

// Sender: ограниченная по времени синхронная отправка команды.
type Sender interface {
	Send(ctx context.Context, cmd domain.Command) Result
}

// Dispatcher: отправка без ожидания исхода.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd domain.Command)
}

// Registry принимает обработчики команд.
type Registry interface {
	Register(commandName string, h Handler)
}

// Subscriber принимает подписчиков на события.
type Subscriber interface {
	Subscribe(name string, partitions int, h EventHandler)
}
