// Package handling содержит общий цикл обработки команды агрегата:
// загрузить снимок, decide-then-apply, сохранить, сопоставить ошибку.
package handling

import (
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersaga/internal/bus"
	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
)

// Load возвращает снимок или нулевое значение, если агрегата ещё нет.
func Load[T domain.Entity](repo domain.SnapshotRepository[T], id string) (T, error) {
	state, err := repo.Get(id)
	if errors.Is(err, domain.ErrNotFound) {
		var zero T
		return zero, nil
	}
	return state, err
}

// Persist сохраняет новое состояние; пустое состояние означает удаление снимка.
func Persist[T domain.Versioned[T]](repo domain.SnapshotRepository[T], id string, next T) error {
	if next.EntityID() == "" {
		return repo.Remove(id)
	}
	return repo.Save(next)
}

// Failure сопоставляет ошибку исходу шины: отказ возвращается вызывающему,
// остальное (нет сущности, ошибка хранилища) превращается в Failed-событие.
func Failure(logger *log.Entry, cmd domain.Command, orderID string, err error) (bus.Outcome, error) {
	fields := log.Fields{
		"command":  cmd.CommandName(),
		"target":   cmd.Target().String(),
		"order_id": orderID,
	}
	if domain.IsRejection(err) {
		logger.WithFields(fields).WithError(err).Info("command rejected")
		return bus.Outcome{}, err
	}
	logger.WithFields(fields).WithError(err).Warn("command failed, publishing failure event")
	return bus.Outcome{Events: []domain.Event{domain.FailedFor(cmd, orderID, err)}}, nil
}

// OrderID выбирает orderId команды, а при его отсутствии из снимка.
func OrderID(cmd domain.Command, state domain.Entity) string {
	if id := cmd.CorrelationID(); id != "" {
		return id
	}
	return state.EntityOrderID()
}
