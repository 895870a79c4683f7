package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
	"github.com/vladislavdragonenkov/ordersaga/internal/metrics"
)

type stubRepo struct {
	domain.IdempotencyRepository
	batches []int
	err     error
	calls   int
}

func (s *stubRepo) DeleteExpired(time.Time, int) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	if s.calls >= len(s.batches) {
		return 0, nil
	}
	n := s.batches[s.calls]
	s.calls++
	return n, nil
}

func TestCleanupWorker_DeleteExpiredInBatches(t *testing.T) {
	repo := &stubRepo{batches: []int{2, 2, 1}}
	w := NewCleanupWorker(repo, nil, 2, nil)

	deleted, err := w.DeleteExpired(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 5, deleted)
	assert.Equal(t, 3, repo.calls)
}

func TestCleanupWorker_DeleteExpiredError(t *testing.T) {
	w := NewCleanupWorker(&stubRepo{err: errors.New("db down")}, nil, 10, nil)
	_, err := w.DeleteExpired(context.Background(), time.Now())
	assert.Error(t, err)
}

func TestCleanupWorker_StartRunsImmediately(t *testing.T) {
	repo := &stubRepo{batches: []int{3}}
	reg := prometheus.NewRegistry()
	w := NewCleanupWorker(repo, metrics.NewIdempotencyMetrics(reg), 10, nil)

	require.NoError(t, w.Start(context.Background(), "@every 1h"))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	w.Stop(ctx)

	assert.Equal(t, 1, repo.calls)
	families, err := reg.Gather()
	require.NoError(t, err)
	var deleted float64
	for _, mf := range families {
		if mf.GetName() == "oms_idempotency_cleanup_deleted_total" {
			deleted = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.Equal(t, float64(3), deleted)
}

func TestCleanupWorker_StartRejectsBadSchedule(t *testing.T) {
	w := NewCleanupWorker(&stubRepo{}, nil, 0, nil)
	assert.Error(t, w.Start(context.Background(), "every so often"))
}
