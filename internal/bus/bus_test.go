package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
)

func waitIdle(t *testing.T, b *Bus) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, b.WaitIdle(ctx))
}

func TestSendReturnsFirstEvent(t *testing.T) {
	b := New()
	defer b.Close()

	b.Register("DeleteOrder", func(_ context.Context, cmd domain.Command) (Outcome, error) {
		c := cmd.(domain.DeleteOrder)
		return Outcome{Events: []domain.Event{domain.DeletedOrder{OrderID: c.OrderID}}}, nil
	})

	res := b.Send(context.Background(), domain.DeleteOrder{OrderID: "O1"})
	require.True(t, res.OK())
	require.Equal(t, domain.DeletedOrder{OrderID: "O1"}, res.Event)
	_, failed := res.Failed()
	require.False(t, failed)
}

func TestSendRejected(t *testing.T) {
	b := New()
	defer b.Close()

	b.Register("DeleteOrder", func(context.Context, domain.Command) (Outcome, error) {
		return Outcome{}, domain.Invalid(domain.ErrOrderIDRequired)
	})

	res := b.Send(context.Background(), domain.DeleteOrder{})
	require.Equal(t, FailureRejected, res.Kind)
	require.ErrorIs(t, res.Err, domain.ErrOrderIDRequired)

	res = b.Send(context.Background(), domain.CompleteOrderDelete{OrderID: "O1"})
	require.Equal(t, FailureRejected, res.Kind)
	require.ErrorIs(t, res.Err, domain.ErrNoHandler)
}

func TestSendTimeout(t *testing.T) {
	b := New(WithTimeout(20 * time.Millisecond))
	defer b.Close()

	release := make(chan struct{})
	b.Register("DeleteOrder", func(context.Context, domain.Command) (Outcome, error) {
		<-release
		return Outcome{}, nil
	})

	res := b.Send(context.Background(), domain.DeleteOrder{OrderID: "O1"})
	close(release)

	require.Equal(t, FailureTimeout, res.Kind)
	require.ErrorIs(t, res.Err, context.DeadlineExceeded)
	waitIdle(t, b)
}

func TestSingleWriterPerAggregate(t *testing.T) {
	b := New()
	defer b.Close()

	var inFlight, maxInFlight atomic.Int32
	b.Register("AdjustInventoryQty", func(context.Context, domain.Command) (Outcome, error) {
		n := inFlight.Add(1)
		for {
			cur := maxInFlight.Load()
			if n <= cur || maxInFlight.CompareAndSwap(cur, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		inFlight.Add(-1)
		return Outcome{}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := b.Send(context.Background(), domain.AdjustInventoryQty{ProductID: "P1", Direction: domain.AdjustDecrease, Amount: 1})
			assert.True(t, res.OK())
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), maxInFlight.Load())
	require.Zero(t, b.locks.size())
}

func TestDifferentAggregatesRunConcurrently(t *testing.T) {
	b := New(WithTimeout(time.Second))
	defer b.Close()

	entered := make(chan struct{}, 2)
	release := make(chan struct{})
	b.Register("AdjustInventoryQty", func(context.Context, domain.Command) (Outcome, error) {
		entered <- struct{}{}
		<-release
		return Outcome{}, nil
	})

	for _, id := range []string{"P1", "P2"} {
		go b.Send(context.Background(), domain.AdjustInventoryQty{ProductID: id, Direction: domain.AdjustIncrease, Amount: 1})
	}

	for i := 0; i < 2; i++ {
		select {
		case <-entered:
		case <-time.After(time.Second):
			t.Fatal("handlers for different aggregates must not block each other")
		}
	}
	close(release)
	waitIdle(t, b)
}

func TestSubscribersKeepOrderPerCorrelation(t *testing.T) {
	b := New()
	defer b.Close()

	var mu sync.Mutex
	seen := make(map[string][]int)
	b.Subscribe("recorder", 4, func(_ context.Context, ev domain.Event) {
		e := ev.(domain.UpdatedOrder)
		mu.Lock()
		seen[e.OrderID] = append(seen[e.OrderID], int(e.TotalAmount))
		mu.Unlock()
	})

	for i := 0; i < 50; i++ {
		for _, id := range []string{"O1", "O2", "O3"} {
			b.Publish(domain.UpdatedOrder{OrderID: id, TotalAmount: int64(i)})
		}
	}
	waitIdle(t, b)

	for _, id := range []string{"O1", "O2", "O3"} {
		require.Len(t, seen[id], 50)
		for i, v := range seen[id] {
			require.Equal(t, i, v, "order %s out of sequence", id)
		}
	}
}

func TestFollowUpsAreDispatched(t *testing.T) {
	b := New()
	defer b.Close()

	var updates atomic.Int32
	b.Register("CancelUpdateOrder", func(_ context.Context, cmd domain.Command) (Outcome, error) {
		c := cmd.(domain.CancelUpdateOrder)
		return Outcome{
			Events:    []domain.Event{domain.CancelledUpdateOrder{OrderID: c.OrderID}},
			FollowUps: []domain.Command{domain.UpdateOrder{OrderID: c.OrderID, IsCompensation: true}},
		}, nil
	})
	b.Register("UpdateOrder", func(_ context.Context, cmd domain.Command) (Outcome, error) {
		if !cmd.(domain.UpdateOrder).IsCompensation {
			return Outcome{}, errors.New("expected compensating update")
		}
		updates.Add(1)
		return Outcome{}, nil
	})

	res := b.Send(context.Background(), domain.CancelUpdateOrder{OrderID: "O1"})
	require.True(t, res.OK())
	waitIdle(t, b)
	require.Equal(t, int32(1), updates.Load())
}

func TestSubscriberPanicDoesNotStopMailbox(t *testing.T) {
	b := New()
	defer b.Close()

	var handled atomic.Int32
	b.Subscribe("fragile", 1, func(_ context.Context, ev domain.Event) {
		if ev.AggregateID() == "boom" {
			panic(fmt.Sprintf("bad event %s", ev.EventName()))
		}
		handled.Add(1)
	})

	b.Publish(domain.DeletedOrder{OrderID: "boom"}, domain.DeletedOrder{OrderID: "O1"})
	waitIdle(t, b)
	require.Equal(t, int32(1), handled.Load())
}
