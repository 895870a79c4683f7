package aggregate_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/ordersaga/internal/aggregate"
	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
)

func createdPayment(t *testing.T) domain.Payment {
	t.Helper()
	state, _, err := aggregate.Execute(domain.Payment{}, domain.CreatePayment{
		PaymentID:   "pay-1",
		OrderID:     "O1",
		TotalAmount: 20000,
		Lines:       []domain.PaymentLine{{Kind: "CARD", Amount: 12000}, {Kind: "POINT", Amount: 8000}},
	}, aggregate.DecidePayment, aggregate.ApplyPayment)
	require.NoError(t, err)
	return state
}

func TestDecidePayment_CreateValidatesLines(t *testing.T) {
	_, err := aggregate.DecidePayment(domain.Payment{}, domain.CreatePayment{
		PaymentID:   "pay-1",
		OrderID:     "O1",
		TotalAmount: 20000,
		Lines:       []domain.PaymentLine{{Kind: "CARD", Amount: 1}},
	})
	require.ErrorIs(t, err, domain.ErrPaymentMismatch)
	require.True(t, domain.IsRejection(err))
}

func TestDecidePayment_UpdateMissingIsNotFound(t *testing.T) {
	_, err := aggregate.DecidePayment(domain.Payment{}, domain.UpdatePayment{PaymentID: "pay-1", TotalAmount: 0})
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.False(t, domain.IsRejection(err))
}

func TestPaymentUpdateAndCancel(t *testing.T) {
	state := createdPayment(t)

	state, events, err := aggregate.Execute(state, domain.UpdatePayment{
		PaymentID:   "pay-1",
		TotalAmount: 30000,
		Lines:       []domain.PaymentLine{{Kind: "CARD", Amount: 30000}},
	}, aggregate.DecidePayment, aggregate.ApplyPayment)
	require.NoError(t, err)
	require.Equal(t, "O1", events[0].CorrelationID())
	require.Equal(t, domain.PaymentStatusUpdated, state.Status)
	require.NotNil(t, state.Previous)

	state, _, err = aggregate.Execute(state, domain.CancelUpdatePayment{PaymentID: "pay-1"}, aggregate.DecidePayment, aggregate.ApplyPayment)
	require.NoError(t, err)
	require.Equal(t, int64(20000), state.TotalAmount)
	require.Equal(t, domain.PaymentStatusCreated, state.Status)
	require.Nil(t, state.Previous)
}

func TestPaymentDeleteAndRestore(t *testing.T) {
	state := createdPayment(t)

	state, _, err := aggregate.Execute(state, domain.DeletePayment{PaymentID: "pay-1"}, aggregate.DecidePayment, aggregate.ApplyPayment)
	require.NoError(t, err)
	require.True(t, state.Deleted)

	_, err = aggregate.DecidePayment(state, domain.DeletePayment{PaymentID: "pay-1"})
	require.ErrorIs(t, err, domain.ErrNotFound)

	state, _, err = aggregate.Execute(state, domain.CancelDeletePayment{PaymentID: "pay-1"}, aggregate.DecidePayment, aggregate.ApplyPayment)
	require.NoError(t, err)
	require.False(t, state.Deleted)

	state, _, err = aggregate.Execute(state, domain.CancelCreatePayment{PaymentID: "pay-1"}, aggregate.DecidePayment, aggregate.ApplyPayment)
	require.NoError(t, err)
	require.False(t, state.Exists())
}
