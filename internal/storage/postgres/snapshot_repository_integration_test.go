package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
)

func sampleOrder(id string) domain.Order {
	return domain.Order{
		ID:          id,
		UserID:      "user-1",
		OrderedAt:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Status:      domain.OrderStatusCreated,
		TotalAmount: 300,
		Lines: []domain.OrderLine{
			{ProductID: "p-1", Qty: 2, LineAmount: 200},
			{ProductID: "p-2", Qty: 1, LineAmount: 100},
		},
		PaymentID:    "pay-" + id,
		PaymentLines: []domain.PaymentLine{{Kind: "card", Amount: 300}},
	}
}

func TestSnapshotRepository_PostgresSaveGetAndFindByOrder(t *testing.T) {
	store := integrationStore(t)
	repo := NewOrderRepository(store)

	order := sampleOrder("order-1")
	require.NoError(t, repo.Save(order))

	got, err := repo.Get("order-1")
	require.NoError(t, err)
	require.Equal(t, int64(1), got.Version)
	require.Equal(t, order.Lines, got.Lines)
	require.Equal(t, order.PaymentLines, got.PaymentLines)
	require.True(t, order.OrderedAt.Equal(got.OrderedAt))

	byOrder, err := repo.FindByOrder("order-1")
	require.NoError(t, err)
	require.Equal(t, got.ID, byOrder.ID)

	got.Status = domain.OrderStatusCompleted
	require.NoError(t, repo.Save(got))

	updated, err := repo.Get("order-1")
	require.NoError(t, err)
	require.Equal(t, int64(2), updated.Version)
	require.Equal(t, domain.OrderStatusCompleted, updated.Status)
}

func TestSnapshotRepository_PostgresVersionConflict(t *testing.T) {
	store := integrationStore(t)
	repo := NewOrderRepository(store)

	require.NoError(t, repo.Save(sampleOrder("order-conflict")))
	stale, err := repo.Get("order-conflict")
	require.NoError(t, err)

	require.NoError(t, repo.Save(stale))

	err = repo.Save(stale)
	require.ErrorIs(t, err, domain.ErrVersionConflict)
	require.True(t, domain.IsVersionConflict(err))
}

func TestSnapshotRepository_PostgresKindsAreIsolated(t *testing.T) {
	store := integrationStore(t)
	orders := NewOrderRepository(store)
	payments := NewPaymentRepository(store)
	inventory := NewInventoryRepository(store)

	require.NoError(t, orders.Save(sampleOrder("shared-id")))

	_, err := payments.Get("shared-id")
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, inventory.Save(domain.Inventory{ProductID: "p-1", ProductName: "Widget", UnitPrice: 100, Qty: 5}))
	item, err := inventory.Get("p-1")
	require.NoError(t, err)
	require.Equal(t, int64(5), item.Qty)

	_, err = inventory.FindByOrder("")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSnapshotRepository_PostgresRemove(t *testing.T) {
	store := integrationStore(t)
	repo := NewOrderRepository(store)

	require.NoError(t, repo.Save(sampleOrder("order-removed")))
	require.NoError(t, repo.Remove("order-removed"))
	require.NoError(t, repo.Remove("order-removed"))

	_, err := repo.Get("order-removed")
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = repo.FindByOrder("order-removed")
	require.ErrorIs(t, err, domain.ErrNotFound)
}
