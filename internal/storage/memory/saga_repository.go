package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
)

type sagaKey struct {
	kind    domain.SagaKind
	orderID string
}

// sagaRepositoryInMemory: арена экземпляров саг с индексом (kind, orderId).
type sagaRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[sagaKey]domain.SagaInstance
}

// NewSagaRepository создаёт in-memory реализацию SagaRepository.
func NewSagaRepository() domain.SagaRepository {
	return &sagaRepositoryInMemory{items: make(map[sagaKey]domain.SagaInstance)}
}

func (r *sagaRepositoryInMemory) Get(kind domain.SagaKind, orderID string) (domain.SagaInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inst, ok := r.items[sagaKey{kind, orderID}]
	if !ok {
		return domain.SagaInstance{}, fmt.Errorf("%s saga for order %s: %w", kind, orderID, domain.ErrNotFound)
	}
	return inst, nil
}

func (r *sagaRepositoryInMemory) Save(inst domain.SagaInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[sagaKey{inst.Kind, inst.OrderID}] = inst
	return nil
}

func (r *sagaRepositoryInMemory) Delete(kind domain.SagaKind, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.items, sagaKey{kind, orderID})
	return nil
}

// List возвращает активные экземпляры от самых старых к новым.
func (r *sagaRepositoryInMemory) List() ([]domain.SagaInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.SagaInstance, 0, len(r.items))
	for _, inst := range r.items {
		result = append(result, inst)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartedAt.Equal(result[j].StartedAt) {
			return result[i].StartedAt.Before(result[j].StartedAt)
		}
		return result[i].OrderID < result[j].OrderID
	})
	return result, nil
}

var _ domain.SagaRepository = (*sagaRepositoryInMemory)(nil)
