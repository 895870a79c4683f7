package memory_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
	"github.com/vladislavdragonenkov/ordersaga/internal/storage/memory"
)

func TestSnapshotRepository_SaveGetFind(t *testing.T) {
	repo := memory.NewPaymentRepository()

	_, err := repo.Get("pay-1")
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, repo.Save(domain.Payment{ID: "pay-1", OrderID: "O1", TotalAmount: 100}))

	got, err := repo.Get("pay-1")
	require.NoError(t, err)
	require.Equal(t, int64(1), got.Version)

	byOrder, err := repo.FindByOrder("O1")
	require.NoError(t, err)
	require.Equal(t, "pay-1", byOrder.ID)
}

func TestSnapshotRepository_VersionConflict(t *testing.T) {
	repo := memory.NewOrderRepository()
	require.NoError(t, repo.Save(domain.Order{ID: "O1"}))

	current, err := repo.Get("O1")
	require.NoError(t, err)

	require.NoError(t, repo.Save(current))
	err = repo.Save(current)
	require.ErrorIs(t, err, domain.ErrVersionConflict)
}

func TestSnapshotRepository_Remove(t *testing.T) {
	repo := memory.NewDeliveryRepository()
	require.NoError(t, repo.Save(domain.Delivery{ID: "SHIP_O1", OrderID: "O1"}))

	require.NoError(t, repo.Remove("SHIP_O1"))
	require.NoError(t, repo.Remove("SHIP_O1"))

	_, err := repo.FindByOrder("O1")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSagaRepository_ArenaByKindAndOrder(t *testing.T) {
	repo := memory.NewSagaRepository()

	require.NoError(t, repo.Save(domain.SagaInstance{Kind: domain.SagaCreating, OrderID: "O1", Stage: domain.StageAwaitPayment}))
	require.NoError(t, repo.Save(domain.SagaInstance{Kind: domain.SagaUpdating, OrderID: "O1", Stage: domain.StageAwaitPayment}))

	inst, err := repo.Get(domain.SagaCreating, "O1")
	require.NoError(t, err)
	require.Equal(t, domain.StageAwaitPayment, inst.Stage)

	require.NoError(t, repo.Delete(domain.SagaCreating, "O1"))
	_, err = repo.Get(domain.SagaCreating, "O1")
	require.ErrorIs(t, err, domain.ErrNotFound)

	all, err := repo.List()
	require.NoError(t, err)
	require.Len(t, all, 1)
}
