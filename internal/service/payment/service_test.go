package payment_test

import (
	"context"
	"errors"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/ordersaga/internal/bus"
	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
	"github.com/vladislavdragonenkov/ordersaga/internal/service/payment"
	"github.com/vladislavdragonenkov/ordersaga/internal/storage/memory"
)

// failingRepository отказывает в сохранении, чтобы проверить Failed-событие.
type failingRepository struct {
	domain.PaymentRepository
	saveErr error
}

func (r *failingRepository) Save(p domain.Payment) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	return r.PaymentRepository.Save(p)
}

func newTestBus(t *testing.T, repo domain.PaymentRepository) *bus.Bus {
	t.Helper()
	logger := log.New().WithField("test", t.Name())
	b := bus.New(bus.WithTimeout(time.Second), bus.WithLogger(logger))
	t.Cleanup(b.Close)
	payment.NewService(repo, logger).Register(b)
	return b
}

func createPayment() domain.CreatePayment {
	return domain.CreatePayment{
		PaymentID:   "pay-1",
		OrderID:     "O1",
		TotalAmount: 20000,
		Lines:       []domain.PaymentLine{{Kind: "CARD", Amount: 20000}},
	}
}

func TestService_CreateAndUpdate(t *testing.T) {
	repo := memory.NewPaymentRepository()
	b := newTestBus(t, repo)
	ctx := context.Background()

	res := b.Send(ctx, createPayment())
	require.True(t, res.OK())
	require.IsType(t, domain.CreatedPayment{}, res.Event)

	res = b.Send(ctx, domain.UpdatePayment{
		PaymentID:   "pay-1",
		OrderID:     "O1",
		TotalAmount: 30000,
		Lines:       []domain.PaymentLine{{Kind: "CARD", Amount: 30000}},
	})
	require.True(t, res.OK())
	require.IsType(t, domain.UpdatedPayment{}, res.Event)

	stored, err := repo.Get("pay-1")
	require.NoError(t, err)
	assert.Equal(t, int64(30000), stored.TotalAmount)
	require.NotNil(t, stored.Previous)
	assert.Equal(t, int64(20000), stored.Previous.TotalAmount)
}

func TestService_UpdateOfMissingPaymentCarriesCompensationFlag(t *testing.T) {
	b := newTestBus(t, memory.NewPaymentRepository())

	res := b.Send(context.Background(), domain.UpdatePayment{
		PaymentID:      "pay-missing",
		OrderID:        "O1",
		TotalAmount:    100,
		Lines:          []domain.PaymentLine{{Kind: "CARD", Amount: 100}},
		IsCompensation: true,
	})
	require.True(t, res.OK())
	failed, ok := res.Failed()
	require.True(t, ok)
	assert.Equal(t, "FailedUpdatePayment", failed.EventName())
	assert.Equal(t, "O1", failed.OrderID)
	assert.True(t, failed.IsCompensation)
}

func TestService_SaveFailureBecomesFailedEvent(t *testing.T) {
	repo := &failingRepository{PaymentRepository: memory.NewPaymentRepository(), saveErr: errors.New("disk full")}
	b := newTestBus(t, repo)

	res := b.Send(context.Background(), createPayment())
	require.True(t, res.OK())
	failed, ok := res.Failed()
	require.True(t, ok)
	assert.Equal(t, "FailedCreatePayment", failed.EventName())
	assert.Contains(t, failed.Reason, "disk full")
}

func TestService_InvalidPlanIsRejected(t *testing.T) {
	b := newTestBus(t, memory.NewPaymentRepository())
	cmd := createPayment()
	cmd.Lines = []domain.PaymentLine{{Kind: "CARD", Amount: 1}}

	res := b.Send(context.Background(), cmd)
	assert.Equal(t, bus.FailureRejected, res.Kind)
	assert.ErrorIs(t, res.Err, domain.ErrInvalidCommand)
}

func TestService_CancelCreateRemovesSnapshot(t *testing.T) {
	repo := memory.NewPaymentRepository()
	b := newTestBus(t, repo)
	ctx := context.Background()
	require.True(t, b.Send(ctx, createPayment()).OK())

	res := b.Send(ctx, domain.CancelCreatePayment{PaymentID: "pay-1", OrderID: "O1"})
	require.True(t, res.OK())
	require.IsType(t, domain.CancelledCreatePayment{}, res.Event)

	_, err := repo.Get("pay-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestService_DeleteAndCancelDelete(t *testing.T) {
	repo := memory.NewPaymentRepository()
	b := newTestBus(t, repo)
	ctx := context.Background()
	require.True(t, b.Send(ctx, createPayment()).OK())

	require.IsType(t, domain.DeletedPayment{}, b.Send(ctx, domain.DeletePayment{PaymentID: "pay-1", OrderID: "O1"}).Event)
	stored, err := repo.Get("pay-1")
	require.NoError(t, err)
	assert.True(t, stored.Deleted)

	require.IsType(t, domain.CancelledDeletePayment{}, b.Send(ctx, domain.CancelDeletePayment{PaymentID: "pay-1", OrderID: "O1"}).Event)
	stored, err = repo.Get("pay-1")
	require.NoError(t, err)
	assert.False(t, stored.Deleted)
}
