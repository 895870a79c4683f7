package domain

import "time"

// Entity: снимок агрегата, который умеет хранить SnapshotRepository.
type Entity interface {
	EntityID() string
	EntityOrderID() string
}

// SnapshotRepository хранит последнее применённое состояние агрегата.
type SnapshotRepository[T Entity] interface {
	// Get возвращает снимок по идентификатору или ErrNotFound.
	Get(id string) (T, error)
	// FindByOrder ищет снимок по коррелирующему orderId или возвращает ErrNotFound.
	FindByOrder(orderID string) (T, error)
	// Save сохраняет снимок с optimistic locking по Version.
	Save(entity T) error
	// Remove удаляет снимок окончательно (отмена создания).
	Remove(id string) error
}

type (
	OrderRepository     = SnapshotRepository[Order]
	PaymentRepository   = SnapshotRepository[Payment]
	DeliveryRepository  = SnapshotRepository[Delivery]
	InventoryRepository = SnapshotRepository[Inventory]
	ReportRepository    = SnapshotRepository[Report]
)

// SagaRepository: арена экземпляров саг, индексированная по (kind, orderId).
type SagaRepository interface {
	Get(kind SagaKind, orderID string) (SagaInstance, error)
	Save(instance SagaInstance) error
	Delete(kind SagaKind, orderID string) error
	List() ([]SagaInstance, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(orderID string) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит ответы lifecycle-запросов. Запись
// идентифицируется парой scope и ключа.
type IdempotencyRepository interface {
	CreateProcessing(scope IdempotencyScope, key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(scope IdempotencyScope, key string) (IdempotencyRecord, error)
	MarkDone(scope IdempotencyScope, key string, responseBody []byte, httpStatus int) error
	MarkFailed(scope IdempotencyScope, key string, responseBody []byte, httpStatus int) error
	DeleteExpired(before time.Time, limit int) (int, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	OrderID       string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
