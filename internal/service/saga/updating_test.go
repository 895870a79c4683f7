package saga_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
)

func updateTo30000(orderID string) domain.UpdateOrder {
	return domain.UpdateOrder{
		OrderID:      orderID,
		TotalAmount:  30000,
		Lines:        []domain.OrderLine{{ProductID: "P1", Qty: 3, LineAmount: 30000}},
		PaymentLines: []domain.PaymentLine{{Kind: "CARD", Amount: 30000}},
	}
}

func TestUpdating_HappyPath(t *testing.T) {
	s := newSystem(t)
	s.createCompleted(t, "O1")

	require.True(t, s.bus.Send(context.Background(), updateTo30000("O1")).OK())
	s.waitIdle(t)

	assert.Equal(t, []string{"UpdatePayment", "CompleteOrderUpdate", "CreateReport"}, s.sender.names())
	o := s.order(t, "O1")
	assert.Equal(t, domain.OrderStatusCompleted, o.Status)
	assert.Equal(t, int64(30000), o.TotalAmount)

	p, err := s.repos.Payments.Get("pay-O1")
	require.NoError(t, err)
	assert.Equal(t, int64(30000), p.TotalAmount)

	rep, err := s.repos.Reports.FindByOrder("O1")
	require.NoError(t, err)
	assert.Equal(t, int64(30000), rep.TotalAmount)
	assert.Zero(t, s.activeSagas(t))
}

func TestUpdating_PaymentFailureRestoresOrder(t *testing.T) {
	s := newSystem(t)
	s.createCompleted(t, "O1")
	// Платёж пропал: UpdatePayment завершится FailedUpdatePayment.
	require.NoError(t, s.repos.Payments.Remove("pay-O1"))

	require.True(t, s.bus.Send(context.Background(), updateTo30000("O1")).OK())
	s.waitIdle(t)

	o := s.order(t, "O1")
	assert.Equal(t, domain.OrderStatusCancelled, o.Status)
	assert.Equal(t, int64(20000), o.TotalAmount)
	assert.Equal(t, int32(2), o.Lines[0].Qty)

	// Компенсирующее обновление тоже не находит платёж, но вторая отмена не выпускается.
	assert.Equal(t, 1, s.sender.count("CancelUpdateOrder"))
	assert.Equal(t, 2, s.sender.count("UpdatePayment"))
	assert.Zero(t, s.sender.count("CompleteOrderUpdate"))
	assert.Zero(t, s.activeSagas(t))
}

func TestUpdating_LocallyRejectedUpdateStartsNoSaga(t *testing.T) {
	s := newSystem(t)
	s.createCompleted(t, "O1")

	// План оплаты не меняется и не сходится с новой суммой заказа.
	cmd := updateTo30000("O1")
	cmd.PaymentLines = nil
	res := s.bus.Send(context.Background(), cmd)
	assert.ErrorIs(t, res.Err, domain.ErrInvalidCommand, "order rejects plan mismatch locally")
	s.waitIdle(t)
	assert.Empty(t, s.sender.names())
	assert.Equal(t, domain.OrderStatusCompleted, s.order(t, "O1").Status)
}

func TestUpdating_CompensationRealignsPayment(t *testing.T) {
	s := newSystem(t)
	s.createCompleted(t, "O1")
	ctx := context.Background()

	require.True(t, s.bus.Send(ctx, updateTo30000("O1")).OK())
	s.waitIdle(t)
	s.sender.reset()

	// Возвращаем заказ в UPDATED, как будто CompleteOrderUpdate ещё не применён,
	// и отменяем обновление так, как это сделала бы сага.
	o := s.order(t, "O1")
	o.Status = domain.OrderStatusUpdated
	require.NoError(t, s.repos.Orders.Save(o))

	require.True(t, s.bus.Send(ctx, domain.CancelUpdateOrder{OrderID: "O1"}).OK())
	s.waitIdle(t)

	o = s.order(t, "O1")
	assert.Equal(t, domain.OrderStatusCancelled, o.Status)
	assert.Equal(t, int64(20000), o.TotalAmount)

	p, err := s.repos.Payments.Get("pay-O1")
	require.NoError(t, err)
	assert.Equal(t, int64(20000), p.TotalAmount)
	assert.Equal(t, []string{"UpdatePayment", "CreateReport"}, s.sender.names())
	assert.Zero(t, s.activeSagas(t))
}
