package saga

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
	"github.com/vladislavdragonenkov/ordersaga/internal/metrics"
)

const (
	// DefaultTTL: время простоя, после которого экземпляр считается зависшим.
	DefaultTTL = 10 * time.Minute
	// DefaultReapSchedule: расписание проверки зависших экземпляров.
	DefaultReapSchedule = "@every 1m"
)

// Reaper завершает экземпляры, которые не получали событий дольше TTL
// (например, исход шага потерян после таймаута).
type Reaper struct {
	store    domain.SagaRepository
	timeline domain.TimelineRepository
	metrics  *metrics.SagaMetrics
	ttl      time.Duration
	logger   *log.Entry
	cron     *cron.Cron
	now      func() time.Time
}

// NewReaper создаёт сборщик зависших саг.
func NewReaper(
	store domain.SagaRepository,
	timeline domain.TimelineRepository,
	m *metrics.SagaMetrics,
	ttl time.Duration,
	logger *log.Entry,
) *Reaper {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = log.New().WithField("component", "saga-reaper")
	}
	return &Reaper{
		store:    store,
		timeline: timeline,
		metrics:  m,
		ttl:      ttl,
		logger:   logger,
		cron:     cron.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start запускает проверку по cron-расписанию.
func (r *Reaper) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultReapSchedule
	}
	if _, err := r.cron.AddFunc(schedule, func() { r.Sweep() }); err != nil {
		return err
	}
	r.cron.Start()
	r.logger.WithFields(log.Fields{"schedule": schedule, "ttl": r.ttl}).Info("saga reaper started")
	return nil
}

// Stop останавливает расписание и ждёт текущую проверку.
func (r *Reaper) Stop(ctx context.Context) {
	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
	}
	r.logger.Info("saga reaper stopped")
}

// Sweep завершает просроченные экземпляры и возвращает их число.
func (r *Reaper) Sweep() int {
	list, err := r.store.List()
	if err != nil {
		r.logger.WithError(err).Error("failed to list saga instances")
		return 0
	}

	now := r.now()
	expired := 0
	for _, inst := range list {
		if now.Sub(inst.UpdatedAt) < r.ttl {
			continue
		}
		if err := r.store.Delete(inst.Kind, inst.OrderID); err != nil {
			r.logger.WithError(err).WithField("order_id", inst.OrderID).Error("failed to expire saga instance")
			continue
		}
		expired++
		r.metrics.RecordSagaFinished(string(inst.Kind), metrics.OutcomeExpired, now.Sub(inst.StartedAt))
		if r.timeline != nil {
			_ = r.timeline.Append(domain.TimelineEvent{
				OrderID:  inst.OrderID,
				Type:     domain.TimelineSagaExpired,
				Reason:   string(inst.Kind) + " at " + string(inst.Stage),
				Occurred: now,
			})
		}
		r.logger.WithFields(log.Fields{
			"saga":     string(inst.Kind),
			"order_id": inst.OrderID,
			"stage":    inst.Stage,
			"idle":     now.Sub(inst.UpdatedAt).String(),
		}).Warn("saga instance expired")
	}
	return expired
}
