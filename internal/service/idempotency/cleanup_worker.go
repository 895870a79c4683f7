package idempotency

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
	"github.com/vladislavdragonenkov/ordersaga/internal/metrics"
)

const (
	// DefaultCleanupSchedule: расписание очистки просроченных ключей.
	DefaultCleanupSchedule  = "@every 10m"
	defaultCleanupBatchSize = 500
)

// CleanupWorker по расписанию удаляет просроченные записи идемпотентности.
type CleanupWorker struct {
	repo      domain.IdempotencyRepository
	metrics   *metrics.IdempotencyMetrics
	logger    *log.Entry
	batchSize int
	cron      *cron.Cron
	now       func() time.Time
}

// NewCleanupWorker создаёт воркер очистки. m может быть nil.
func NewCleanupWorker(repo domain.IdempotencyRepository, m *metrics.IdempotencyMetrics, batchSize int, logger *log.Entry) *CleanupWorker {
	if batchSize <= 0 {
		batchSize = defaultCleanupBatchSize
	}
	if logger == nil {
		logger = log.WithField("component", "idempotency-cleanup")
	}
	return &CleanupWorker{
		repo:      repo,
		metrics:   m,
		logger:    logger,
		batchSize: batchSize,
		cron:      cron.New(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start выполняет очистку сразу и затем по расписанию.
func (w *CleanupWorker) Start(ctx context.Context, schedule string) error {
	if schedule == "" {
		schedule = DefaultCleanupSchedule
	}
	if _, err := w.cron.AddFunc(schedule, func() { w.cleanup(ctx) }); err != nil {
		return err
	}
	w.cleanup(ctx)
	w.cron.Start()
	w.logger.WithField("schedule", schedule).Info("idempotency cleanup started")
	return nil
}

// Stop останавливает расписание и ждёт текущий проход.
func (w *CleanupWorker) Stop(ctx context.Context) {
	select {
	case <-w.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (w *CleanupWorker) cleanup(ctx context.Context) {
	deleted, err := w.DeleteExpired(ctx, w.now())
	if ctx.Err() != nil {
		return
	}
	w.metrics.RecordCleanup(deleted, err)
	if err != nil {
		w.logger.WithError(err).Warn("idempotency cleanup run failed")
		return
	}
	if deleted > 0 {
		w.logger.WithField("deleted", deleted).Info("idempotency cleanup completed")
	}
}

// DeleteExpired удаляет все записи с ttl <= before порциями batchSize.
func (w *CleanupWorker) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		deleted, err := w.repo.DeleteExpired(before, w.batchSize)
		if err != nil {
			return total, err
		}
		total += deleted
		if deleted < w.batchSize {
			return total, nil
		}
	}
}
