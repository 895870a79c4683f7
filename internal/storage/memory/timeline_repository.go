package memory

import (
	"slices"
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
)

// TimelineRepository держит таймлайны заказов в памяти, каждый отсортирован по Occurred.
type TimelineRepository struct {
	mu     sync.RWMutex
	orders map[string][]domain.TimelineEvent
}

// NewTimelineRepository создаёт пустое хранилище таймлайнов.
func NewTimelineRepository() *TimelineRepository {
	return &TimelineRepository{orders: make(map[string][]domain.TimelineEvent)}
}

// Append вставляет запись после всех записей с тем же или более ранним временем,
// поэтому одновременные записи остаются в порядке поступления.
func (r *TimelineRepository) Append(event domain.TimelineEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	line := r.orders[event.OrderID]
	at := sort.Search(len(line), func(i int) bool {
		return line[i].Occurred.After(event.Occurred)
	})
	r.orders[event.OrderID] = slices.Insert(line, at, event)
	return nil
}

// List возвращает копию таймлайна заказа.
func (r *TimelineRepository) List(orderID string) ([]domain.TimelineEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.TimelineEvent{}, r.orders[orderID]...), nil
}

var _ domain.TimelineRepository = (*TimelineRepository)(nil)
