// Package aggregate содержит чистые конечные автоматы агрегатов.
//
// Для каждого агрегата есть две отдельные функции: Decide проверяет команду
// против текущего состояния и выпускает события, Apply применяет одно событие
// к состоянию. Построение агрегата из истории: свёртка Fold(initial, history).
package aggregate

import "github.com/vladislavdragonenkov/ordersaga/internal/domain"

// Fold последовательно применяет события к начальному состоянию.
func Fold[S any](initial S, history []domain.Event, apply func(S, domain.Event) S) S {
	state := initial
	for _, ev := range history {
		state = apply(state, ev)
	}
	return state
}

// Execute: decide-then-apply: возвращает новое состояние и выпущенные события.
func Execute[S any](
	state S,
	cmd domain.Command,
	decide func(S, domain.Command) ([]domain.Event, error),
	apply func(S, domain.Event) S,
) (S, []domain.Event, error) {
	events, err := decide(state, cmd)
	if err != nil {
		return state, nil, err
	}
	return Fold(state, events, apply), events, nil
}
