package saga_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
)

func TestDeleting_HappyPath(t *testing.T) {
	s := newSystem(t)
	s.createCompleted(t, "O1")

	require.True(t, s.bus.Send(context.Background(), domain.DeleteOrder{OrderID: "O1"}).OK())
	s.waitIdle(t)

	assert.Equal(t, []string{"DeletePayment", "DeleteDelivery", "DeleteReport", "CompleteOrderDelete"}, s.sender.names())
	assert.Equal(t, domain.OrderStatusDeleted, s.order(t, "O1").Status)

	p, err := s.repos.Payments.Get("pay-O1")
	require.NoError(t, err)
	assert.True(t, p.Deleted)
	d, err := s.repos.Deliveries.Get("SHIP_O1")
	require.NoError(t, err)
	assert.True(t, d.Deleted)
	r, err := s.repos.Reports.FindByOrder("O1")
	require.NoError(t, err)
	assert.True(t, r.Deleted)
	assert.Zero(t, s.activeSagas(t))
}

func TestDeleting_DeliveryFailureCompensatesInReverse(t *testing.T) {
	s := newSystem(t)
	s.createCompleted(t, "O1")
	require.NoError(t, s.repos.Deliveries.Remove("SHIP_O1"))

	require.True(t, s.bus.Send(context.Background(), domain.DeleteOrder{OrderID: "O1"}).OK())
	s.waitIdle(t)

	assert.Equal(t, []string{"DeletePayment", "DeleteDelivery", "CancelDeletePayment", "CancelDeleteOrder"}, s.sender.names())
	assert.Zero(t, s.sender.count("DeleteReport"))

	assert.Equal(t, domain.OrderStatusCompleted, s.order(t, "O1").Status)
	p, err := s.repos.Payments.Get("pay-O1")
	require.NoError(t, err)
	assert.False(t, p.Deleted)
	assert.Zero(t, s.activeSagas(t))
}

func TestDeleting_ReportFailureCompensatesDeliveryPaymentOrder(t *testing.T) {
	s := newSystem(t)
	s.createCompleted(t, "O1")
	rep, err := s.repos.Reports.FindByOrder("O1")
	require.NoError(t, err)
	require.NoError(t, s.repos.Reports.Remove(rep.ID))

	require.True(t, s.bus.Send(context.Background(), domain.DeleteOrder{OrderID: "O1"}).OK())
	s.waitIdle(t)

	assert.Equal(t, []string{
		"DeletePayment", "DeleteDelivery", "DeleteReport",
		"CancelDeleteDelivery", "CancelDeletePayment", "CancelDeleteOrder",
	}, s.sender.names())

	d, err := s.repos.Deliveries.Get("SHIP_O1")
	require.NoError(t, err)
	assert.False(t, d.Deleted)
	p, err := s.repos.Payments.Get("pay-O1")
	require.NoError(t, err)
	assert.False(t, p.Deleted)

	o := s.order(t, "O1")
	assert.Equal(t, domain.OrderStatusCompleted, o.Status)
	assert.False(t, o.DeletePending)
	assert.Zero(t, s.activeSagas(t))
}

// Удаление доставки внутри саги удаления не должно отменять заказ после отката.
func TestDeleting_CompensatedOrderStaysCompleted(t *testing.T) {
	s := newSystem(t)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("O%d", i)
		s.createCompleted(t, id)
		rep, err := s.repos.Reports.FindByOrder(id)
		require.NoError(t, err)
		require.NoError(t, s.repos.Reports.Remove(rep.ID))

		require.True(t, s.bus.Send(ctx, domain.DeleteOrder{OrderID: id}).OK())
		s.waitIdle(t)

		require.Equal(t, domain.OrderStatusCompleted, s.order(t, id).Status, id)
	}
	assert.Zero(t, s.activeSagas(t))
}

func TestDeleting_CompletionFailureCompensatesAll(t *testing.T) {
	s := newSystem(t)
	s.createCompleted(t, "O1")
	s.sender.rejectCommand("CompleteOrderDelete")

	require.True(t, s.bus.Send(context.Background(), domain.DeleteOrder{OrderID: "O1"}).OK())
	s.waitIdle(t)

	assert.Equal(t, []string{
		"DeletePayment", "DeleteDelivery", "DeleteReport", "CompleteOrderDelete",
		"CancelDeleteDelivery", "CancelDeletePayment", "CancelDeleteOrder", "CancelDeleteReport",
	}, s.sender.names())

	o := s.order(t, "O1")
	assert.Equal(t, domain.OrderStatusCompleted, o.Status)
	assert.False(t, o.DeletePending)
	p, err := s.repos.Payments.Get("pay-O1")
	require.NoError(t, err)
	assert.False(t, p.Deleted)
	d, err := s.repos.Deliveries.Get("SHIP_O1")
	require.NoError(t, err)
	assert.False(t, d.Deleted)
	r, err := s.repos.Reports.FindByOrder("O1")
	require.NoError(t, err)
	assert.False(t, r.Deleted)
	assert.Zero(t, s.activeSagas(t))
}

func TestDeleting_PaymentFailureCompensatesOrderOnly(t *testing.T) {
	s := newSystem(t)
	s.createCompleted(t, "O1")
	require.NoError(t, s.repos.Payments.Remove("pay-O1"))

	require.True(t, s.bus.Send(context.Background(), domain.DeleteOrder{OrderID: "O1"}).OK())
	s.waitIdle(t)

	assert.Equal(t, []string{"DeletePayment", "CancelDeleteOrder"}, s.sender.names())
	assert.Equal(t, domain.OrderStatusCompleted, s.order(t, "O1").Status)
	assert.Zero(t, s.activeSagas(t))
}

func TestDeleting_LookupFailureCancelsDelete(t *testing.T) {
	s := newSystem(t)
	ctx := context.Background()
	// Заказ без оплаты, доставки и отчёта: карту корреляции собрать не из чего.
	require.True(t, s.bus.Send(ctx, createOrderCmd("O1")).OK())
	s.waitIdle(t)
	for _, remove := range []func() error{
		func() error { return s.repos.Payments.Remove("pay-O1") },
		func() error { return s.repos.Deliveries.Remove("SHIP_O1") },
		func() error {
			rep, err := s.repos.Reports.FindByOrder("O1")
			if err != nil {
				return err
			}
			return s.repos.Reports.Remove(rep.ID)
		},
	} {
		require.NoError(t, remove())
	}
	s.sender.reset()

	require.True(t, s.bus.Send(ctx, domain.DeleteOrder{OrderID: "O1"}).OK())
	s.waitIdle(t)

	assert.Equal(t, []string{"CancelDeleteOrder"}, s.sender.names())
	assert.Equal(t, domain.OrderStatusCompleted, s.order(t, "O1").Status)
	assert.Zero(t, s.activeSagas(t))
}
