package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// IdempotencyStatus описывает жизненный цикл ключа идемпотентности.
type IdempotencyStatus string

const (
	// IdempotencyStatusProcessing означает, что запрос принят и ещё обрабатывается.
	IdempotencyStatusProcessing IdempotencyStatus = "processing"
	// IdempotencyStatusDone означает, что запрос завершён и ответ сохранён.
	IdempotencyStatusDone IdempotencyStatus = "done"
	// IdempotencyStatusFailed означает, что обработка завершилась ошибкой.
	IdempotencyStatusFailed IdempotencyStatus = "failed"
)

var (
	ErrIdempotencyKeyRequired         = errors.New("idempotency key is required")
	ErrIdempotencyCommandRequired     = errors.New("idempotency command is required")
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	ErrIdempotencyKeyAlreadyExists    = errors.New("idempotency key already exists")
	ErrIdempotencyHashMismatch        = errors.New("idempotency key reused with a different request")
	ErrIdempotencyKeyNotFound         = errors.New("idempotency key not found")
)

// IdempotencyScope привязывает ключ к lifecycle-команде и её объекту.
// ResourceID: id заказа или товара; пуст для создания заказа, пока id не выдан.
// Один и тот же ключ в разных scope хранится независимо.
type IdempotencyScope struct {
	Command    string
	ResourceID string
}

// Normalize обрезает пробелы и проверяет, что команда задана.
func (s IdempotencyScope) Normalize() (IdempotencyScope, error) {
	s.Command = strings.TrimSpace(s.Command)
	s.ResourceID = strings.TrimSpace(s.ResourceID)
	if s.Command == "" {
		return s, ErrIdempotencyCommandRequired
	}
	return s, nil
}

func (s IdempotencyScope) String() string {
	if s.ResourceID == "" {
		return s.Command
	}
	return s.Command + "/" + s.ResourceID
}

// IdempotencyRecord хранит состояние обработки lifecycle-запроса с idempotency-key.
type IdempotencyRecord struct {
	Scope        IdempotencyScope
	Key          string
	RequestHash  string
	ResponseBody []byte
	HTTPStatus   int
	Status       IdempotencyStatus
	TTLAt        time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s IdempotencyStatus) Valid() bool {
	switch s {
	case IdempotencyStatusProcessing, IdempotencyStatusDone, IdempotencyStatusFailed:
		return true
	default:
		return false
	}
}

// Expired сообщает, что срок жизни записи истёк к моменту now.
func (r IdempotencyRecord) Expired(now time.Time) bool {
	return !r.TTLAt.After(now)
}

// HashRequest возвращает отпечаток тела запроса для сверки повторов.
func HashRequest(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
