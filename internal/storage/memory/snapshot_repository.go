package memory

import (
	"fmt"
	"sync"

	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
)

// snapshotRepositoryInMemory хранит последние снимки агрегатов и индекс по orderId.
type snapshotRepositoryInMemory[T domain.Versioned[T]] struct {
	mu      sync.RWMutex
	kind    domain.AggregateKind
	items   map[string]T
	byOrder map[string]string
}

// NewSnapshotRepository возвращает in-memory репозиторий снимков для локальной разработки и тестов.
func NewSnapshotRepository[T domain.Versioned[T]](kind domain.AggregateKind) domain.SnapshotRepository[T] {
	return &snapshotRepositoryInMemory[T]{
		kind:    kind,
		items:   make(map[string]T),
		byOrder: make(map[string]string),
	}
}

func NewOrderRepository() domain.OrderRepository {
	return NewSnapshotRepository[domain.Order](domain.KindOrder)
}

func NewPaymentRepository() domain.PaymentRepository {
	return NewSnapshotRepository[domain.Payment](domain.KindPayment)
}

func NewDeliveryRepository() domain.DeliveryRepository {
	return NewSnapshotRepository[domain.Delivery](domain.KindDelivery)
}

func NewInventoryRepository() domain.InventoryRepository {
	return NewSnapshotRepository[domain.Inventory](domain.KindInventory)
}

func NewReportRepository() domain.ReportRepository {
	return NewSnapshotRepository[domain.Report](domain.KindReport)
}

// Get возвращает снимок или ErrNotFound.
func (r *snapshotRepositoryInMemory[T]) Get(id string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[id]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s %s: %w", r.kind, id, domain.ErrNotFound)
	}
	return item, nil
}

// FindByOrder возвращает снимок, связанный с заказом.
func (r *snapshotRepositoryInMemory[T]) FindByOrder(orderID string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var zero T
	id, ok := r.byOrder[orderID]
	if !ok {
		return zero, fmt.Errorf("%s for order %s: %w", r.kind, orderID, domain.ErrNotFound)
	}
	item, ok := r.items[id]
	if !ok {
		return zero, fmt.Errorf("%s for order %s: %w", r.kind, orderID, domain.ErrNotFound)
	}
	return item, nil
}

// Save перезаписывает снимок, проверяя версию (optimistic locking).
func (r *snapshotRepositoryInMemory[T]) Save(entity T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := entity.EntityID()
	if current, ok := r.items[id]; ok && current.EntityVersion() != entity.EntityVersion() {
		return fmt.Errorf("%s %s: %w", r.kind, id, domain.ErrVersionConflict)
	}
	// Инкрементируем версию перед сохранением.
	r.items[id] = entity.WithVersion(entity.EntityVersion() + 1)
	if orderID := entity.EntityOrderID(); orderID != "" {
		r.byOrder[orderID] = id
	}
	return nil
}

// Remove удаляет снимок; отсутствие записи не считается ошибкой.
func (r *snapshotRepositoryInMemory[T]) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok {
		return nil
	}
	delete(r.items, id)
	if orderID := item.EntityOrderID(); r.byOrder[orderID] == id {
		delete(r.byOrder, orderID)
	}
	return nil
}

var _ domain.OrderRepository = (*snapshotRepositoryInMemory[domain.Order])(nil)
