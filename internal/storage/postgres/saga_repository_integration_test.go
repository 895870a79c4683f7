package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
)

func TestSagaRepository_PostgresSaveGetListDelete(t *testing.T) {
	store := integrationStore(t)
	repo := NewSagaRepository(store)

	started := time.Now().UTC().Add(-time.Minute).Round(time.Microsecond)
	older := domain.SagaInstance{
		Kind:        domain.SagaCreating,
		OrderID:     "order-1",
		Stage:       domain.StageAwaitPayment,
		Correlation: domain.Correlation{OrderID: "order-1", PaymentID: "pay-1"},
		StartedAt:   started,
		UpdatedAt:   started,
	}
	newer := domain.SagaInstance{
		Kind:        domain.SagaDeleting,
		OrderID:     "order-2",
		Stage:       domain.StageAwaitDelivery,
		Correlation: domain.Correlation{OrderID: "order-2", DeliveryID: "ship-2"},
		StartedAt:   started.Add(time.Second),
		UpdatedAt:   started.Add(time.Second),
	}
	require.NoError(t, repo.Save(newer))
	require.NoError(t, repo.Save(older))

	got, err := repo.Get(domain.SagaCreating, "order-1")
	require.NoError(t, err)
	require.Equal(t, domain.StageAwaitPayment, got.Stage)
	require.Equal(t, "pay-1", got.Correlation.PaymentID)

	_, err = repo.Get(domain.SagaUpdating, "order-1")
	require.ErrorIs(t, err, domain.ErrNotFound)

	got.Stage = domain.StageAwaitDelivery
	got.IsCompensation = true
	got.UpdatedAt = started.Add(2 * time.Second)
	require.NoError(t, repo.Save(got))

	list, err := repo.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "order-1", list[0].OrderID)
	require.True(t, list[0].IsCompensation)
	require.Equal(t, domain.StageAwaitDelivery, list[0].Stage)
	require.Equal(t, "order-2", list[1].OrderID)

	require.NoError(t, repo.Delete(domain.SagaCreating, "order-1"))
	require.NoError(t, repo.Delete(domain.SagaCreating, "order-1"))

	list, err = repo.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
}
