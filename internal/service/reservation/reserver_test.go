package reservation_test

import (
	"context"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/ordersaga/internal/bus"
	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
	"github.com/vladislavdragonenkov/ordersaga/internal/service/inventory"
	"github.com/vladislavdragonenkov/ordersaga/internal/service/reservation"
	"github.com/vladislavdragonenkov/ordersaga/internal/storage/memory"
)

// recordingSender запоминает отправленные команды перед передачей в шину.
type recordingSender struct {
	next bus.Sender
	mu   sync.Mutex
	sent []domain.AdjustInventoryQty
}

func (s *recordingSender) Send(ctx context.Context, cmd domain.Command) bus.Result {
	if adjust, ok := cmd.(domain.AdjustInventoryQty); ok {
		s.mu.Lock()
		s.sent = append(s.sent, adjust)
		s.mu.Unlock()
	}
	return s.next.Send(ctx, cmd)
}

type fixture struct {
	stock    domain.InventoryRepository
	sender   *recordingSender
	reserver *reservation.Reserver
}

func newFixture(t *testing.T, stock map[string]int64) fixture {
	t.Helper()
	logger := log.New().WithField("test", t.Name())
	b := bus.New(bus.WithTimeout(time.Second), bus.WithLogger(logger))
	t.Cleanup(b.Close)

	repo := memory.NewInventoryRepository()
	inventory.NewService(repo, nil, nil, logger).Register(b)
	for id, qty := range stock {
		res := b.Send(context.Background(), domain.CreateInventory{ProductID: id, Qty: qty})
		require.True(t, res.OK(), "create %s: %v", id, res.Err)
	}

	sender := &recordingSender{next: b}
	return fixture{
		stock:    repo,
		sender:   sender,
		reserver: reservation.NewReserver(sender, nil, logger),
	}
}

func (f fixture) qty(t *testing.T, productID string) int64 {
	t.Helper()
	item, err := f.stock.Get(productID)
	require.NoError(t, err)
	return item.Qty
}

func TestReserve_AllLines(t *testing.T) {
	f := newFixture(t, map[string]int64{"P1": 10, "P2": 5})

	err := f.reserver.Reserve(context.Background(), "O1", []domain.OrderLine{
		{ProductID: "P1", Qty: 2, LineAmount: 2000},
		{ProductID: "P2", Qty: 5, LineAmount: 5000},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(8), f.qty(t, "P1"))
	assert.Equal(t, int64(0), f.qty(t, "P2"))
}

func TestReserve_FailureRollsBackInReverseOrder(t *testing.T) {
	f := newFixture(t, map[string]int64{"P1": 10, "P2": 5, "P3": 7})

	err := f.reserver.Reserve(context.Background(), "O1", []domain.OrderLine{
		{ProductID: "P1", Qty: 2},
		{ProductID: "P2", Qty: 3},
		{ProductID: "P404", Qty: 1},
		{ProductID: "P3", Qty: 1},
	})
	require.ErrorIs(t, err, domain.ErrReservationFailed)

	assert.Equal(t, int64(10), f.qty(t, "P1"))
	assert.Equal(t, int64(5), f.qty(t, "P2"))
	assert.Equal(t, int64(7), f.qty(t, "P3"))

	want := []domain.AdjustInventoryQty{
		{ProductID: "P1", OrderID: "O1", Direction: domain.AdjustDecrease, Amount: 2},
		{ProductID: "P2", OrderID: "O1", Direction: domain.AdjustDecrease, Amount: 3},
		{ProductID: "P404", OrderID: "O1", Direction: domain.AdjustDecrease, Amount: 1},
		{ProductID: "P2", OrderID: "O1", Direction: domain.AdjustIncrease, Amount: 3},
		{ProductID: "P1", OrderID: "O1", Direction: domain.AdjustIncrease, Amount: 2},
	}
	assert.Equal(t, want, f.sender.sent)
}

func TestReserve_RejectedLineFails(t *testing.T) {
	f := newFixture(t, map[string]int64{"P1": 10})

	err := f.reserver.Reserve(context.Background(), "O1", []domain.OrderLine{
		{ProductID: "P1", Qty: 4},
		{ProductID: "", Qty: 1},
	})
	require.ErrorIs(t, err, domain.ErrReservationFailed)
	assert.Equal(t, int64(10), f.qty(t, "P1"))
}

func TestRelease_ReturnsStock(t *testing.T) {
	f := newFixture(t, map[string]int64{"P1": 10})
	lines := []domain.OrderLine{{ProductID: "P1", Qty: 4}}

	require.NoError(t, f.reserver.Reserve(context.Background(), "O1", lines))
	assert.Equal(t, int64(6), f.qty(t, "P1"))

	f.reserver.Release(context.Background(), "O1", lines)
	assert.Equal(t, int64(10), f.qty(t, "P1"))
}

func TestReserve_RollbackOfClampedLineReturnsOrderedQty(t *testing.T) {
	f := newFixture(t, map[string]int64{"P1": 1})

	err := f.reserver.Reserve(context.Background(), "O1", []domain.OrderLine{
		{ProductID: "P1", Qty: 3},
		{ProductID: "P404", Qty: 1},
	})
	require.ErrorIs(t, err, domain.ErrReservationFailed)

	// DECREASE 3 clamped 1 → 0, rollback INCREASE 3 → 3: above the pre-batch value.
	assert.Equal(t, int64(3), f.qty(t, "P1"))
}
