package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/ordersaga/internal/health"
	"github.com/vladislavdragonenkov/ordersaga/internal/storage/memory"
	"github.com/vladislavdragonenkov/ordersaga/internal/storage/postgres"
)

// runtimeDependencies: репозитории выбранного драйвера хранения.
type runtimeDependencies struct {
	orders      domain.OrderRepository
	payments    domain.PaymentRepository
	deliveries  domain.DeliveryRepository
	inventory   domain.InventoryRepository
	reports     domain.ReportRepository
	sagas       domain.SagaRepository
	timeline    domain.TimelineRepository
	outbox      domain.OutboxRepository
	idempotency domain.IdempotencyRepository

	// storageChecker есть только у внешнего хранилища.
	storageChecker healthcheck.Checker
	closeFn        func() error
}

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.StorageDriver)) {
	case "", StorageDriverMemory:
		logger.Info("using in-memory storage")
		return &runtimeDependencies{
			orders:      memory.NewOrderRepository(),
			payments:    memory.NewPaymentRepository(),
			deliveries:  memory.NewDeliveryRepository(),
			inventory:   memory.NewInventoryRepository(),
			reports:     memory.NewReportRepository(),
			sagas:       memory.NewSagaRepository(),
			timeline:    memory.NewTimelineRepository(),
			outbox:      memory.NewOutboxRepository(),
			idempotency: memory.NewIdempotencyRepository(),
		}, nil
	case StorageDriverPostgres:
		return initPostgresDependencies(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

func initPostgresDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("postgres dsn is required for postgres storage driver")
	}

	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	if cfg.PostgresAutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("apply postgres migrations: %w", err)
		}
		logger.Info("postgres migrations applied")
	}

	version, applied, err := store.MigrationStatus(ctx)
	if err != nil {
		logger.WithError(err).Warn("failed to read migration status")
	} else {
		logger.WithFields(log.Fields{
			"schema_version": version,
			"applied":        applied,
		}).Info("using postgres storage")
	}

	return &runtimeDependencies{
		orders:         postgres.NewOrderRepository(store),
		payments:       postgres.NewPaymentRepository(store),
		deliveries:     postgres.NewDeliveryRepository(store),
		inventory:      postgres.NewInventoryRepository(store),
		reports:        postgres.NewReportRepository(store),
		sagas:          postgres.NewSagaRepository(store),
		timeline:       postgres.NewTimelineRepository(store),
		outbox:         postgres.NewOutboxRepository(store),
		idempotency:    postgres.NewIdempotencyRepository(store),
		storageChecker: healthcheck.NewChecker("postgres", store.Ping),
		closeFn:        store.Close,
	}, nil
}

func (d *runtimeDependencies) close(logger *log.Entry) {
	if d == nil || d.closeFn == nil {
		return
	}
	if err := d.closeFn(); err != nil {
		logger.WithError(err).Warn("failed to close storage")
	}
}
