package memory

import (
	"strings"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
)

// replyID: идентичность сохранённого ответа.
type replyID struct {
	command  string
	resource string
	key      string
}

// IdempotencyRepository хранит ответы lifecycle-запросов в памяти процесса.
type IdempotencyRepository struct {
	mu      sync.Mutex
	replies map[replyID]domain.IdempotencyRecord
	now     func() time.Time
}

// NewIdempotencyRepository создаёт пустое хранилище ответов.
func NewIdempotencyRepository() *IdempotencyRepository {
	return &IdempotencyRepository{
		replies: make(map[replyID]domain.IdempotencyRecord),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func resolveReplyID(scope domain.IdempotencyScope, key string) (domain.IdempotencyScope, replyID, error) {
	scope, err := scope.Normalize()
	if err != nil {
		return scope, replyID{}, err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return scope, replyID{}, domain.ErrIdempotencyKeyRequired
	}
	return scope, replyID{command: scope.Command, resource: scope.ResourceID, key: key}, nil
}

// CreateProcessing занимает ключ в пределах scope. Живая запись возвращается
// вместе с ошибкой конфликта, просроченная перезаписывается.
func (r *IdempotencyRepository) CreateProcessing(scope domain.IdempotencyScope, key, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	scope, id, err := resolveReplyID(scope, key)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}
	requestHash = strings.TrimSpace(requestHash)
	if requestHash == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyRequestHashRequired
	}

	now := r.now()
	if ttlAt.IsZero() {
		ttlAt = now.Add(24 * time.Hour)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if held, ok := r.replies[id]; ok && !held.Expired(now) {
		err := domain.ErrIdempotencyKeyAlreadyExists
		if held.RequestHash != requestHash {
			err = domain.ErrIdempotencyHashMismatch
		}
		return copyReply(held), err
	}

	rec := domain.IdempotencyRecord{
		Scope:       scope,
		Key:         id.key,
		RequestHash: requestHash,
		Status:      domain.IdempotencyStatusProcessing,
		TTLAt:       ttlAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.replies[id] = rec
	return copyReply(rec), nil
}

// Get возвращает запись ключа в пределах scope.
func (r *IdempotencyRepository) Get(scope domain.IdempotencyScope, key string) (domain.IdempotencyRecord, error) {
	_, id, err := resolveReplyID(scope, key)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.replies[id]
	if !ok {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
	}
	return copyReply(rec), nil
}

// MarkDone сохраняет успешный ответ.
func (r *IdempotencyRepository) MarkDone(scope domain.IdempotencyScope, key string, responseBody []byte, httpStatus int) error {
	return r.settle(scope, key, domain.IdempotencyStatusDone, responseBody, httpStatus)
}

// MarkFailed сохраняет ответ, завершившийся ошибкой сервера.
func (r *IdempotencyRepository) MarkFailed(scope domain.IdempotencyScope, key string, responseBody []byte, httpStatus int) error {
	return r.settle(scope, key, domain.IdempotencyStatusFailed, responseBody, httpStatus)
}

func (r *IdempotencyRepository) settle(scope domain.IdempotencyScope, key string, status domain.IdempotencyStatus, body []byte, httpStatus int) error {
	_, id, err := resolveReplyID(scope, key)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.replies[id]
	if !ok {
		return domain.ErrIdempotencyKeyNotFound
	}
	rec.Status = status
	rec.ResponseBody = append([]byte(nil), body...)
	rec.HTTPStatus = httpStatus
	rec.UpdatedAt = r.now()
	r.replies[id] = rec
	return nil
}

// DeleteExpired удаляет не более limit записей с ttl <= before; limit<=0 снимает ограничение.
func (r *IdempotencyRepository) DeleteExpired(before time.Time, limit int) (int, error) {
	if before.IsZero() {
		before = r.now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, rec := range r.replies {
		if limit > 0 && removed >= limit {
			break
		}
		if rec.Expired(before) {
			delete(r.replies, id)
			removed++
		}
	}
	return removed, nil
}

func copyReply(rec domain.IdempotencyRecord) domain.IdempotencyRecord {
	rec.ResponseBody = append([]byte(nil), rec.ResponseBody...)
	return rec
}

var _ domain.IdempotencyRepository = (*IdempotencyRepository)(nil)
