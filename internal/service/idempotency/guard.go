// Package idempotency хранит ответы на lifecycle-запросы по Idempotency-Key
// и удаляет просроченные ключи.
package idempotency

import (
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
)

// DefaultTTL: срок хранения ответа по ключу.
const DefaultTTL = 24 * time.Hour

// ErrInProgress: запрос с этим ключом ещё обрабатывается.
var ErrInProgress = errors.New("request with this idempotency key is in progress")

// Guard решает, выполнять ли запрос или вернуть сохранённый ответ.
type Guard struct {
	repo domain.IdempotencyRepository
	ttl  time.Duration
	now  func() time.Time
}

// NewGuard создаёт guard поверх хранилища ключей.
func NewGuard(repo domain.IdempotencyRepository, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Guard{repo: repo, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

// Begin резервирует ключ в пределах scope. Если запрос уже завершён,
// возвращает сохранённую запись и replay=true. Тот же ключ с другим телом даёт
// domain.ErrIdempotencyHashMismatch, незавершённый запрос ErrInProgress.
func (g *Guard) Begin(scope domain.IdempotencyScope, key, requestHash string) (record domain.IdempotencyRecord, replay bool, err error) {
	record, err = g.repo.CreateProcessing(scope, key, requestHash, g.now().Add(g.ttl))
	switch {
	case err == nil:
		return record, false, nil
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		if record.Status == domain.IdempotencyStatusProcessing {
			return record, false, ErrInProgress
		}
		return record, true, nil
	default:
		return record, false, err
	}
}

// Finish сохраняет ответ. Ответы 5xx помечают ключ как failed.
func (g *Guard) Finish(scope domain.IdempotencyScope, key string, httpStatus int, body []byte) error {
	var err error
	if httpStatus >= 500 {
		err = g.repo.MarkFailed(scope, key, body, httpStatus)
	} else {
		err = g.repo.MarkDone(scope, key, body, httpStatus)
	}
	if err != nil {
		return fmt.Errorf("store idempotent response for %s %s: %w", scope, key, err)
	}
	return nil
}
