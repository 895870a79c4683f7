package app

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/ordersaga/internal/bus"
	"github.com/vladislavdragonenkov/ordersaga/internal/cache"
	"github.com/vladislavdragonenkov/ordersaga/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/ordersaga/internal/health"
	"github.com/vladislavdragonenkov/ordersaga/internal/metrics"
	"github.com/vladislavdragonenkov/ordersaga/internal/query"
	"github.com/vladislavdragonenkov/ordersaga/internal/service/compensation"
	"github.com/vladislavdragonenkov/ordersaga/internal/service/delivery"
	"github.com/vladislavdragonenkov/ordersaga/internal/service/httpapi"
	"github.com/vladislavdragonenkov/ordersaga/internal/service/idempotency"
	"github.com/vladislavdragonenkov/ordersaga/internal/service/inventory"
	"github.com/vladislavdragonenkov/ordersaga/internal/service/journal"
	"github.com/vladislavdragonenkov/ordersaga/internal/service/order"
	"github.com/vladislavdragonenkov/ordersaga/internal/service/outbox"
	"github.com/vladislavdragonenkov/ordersaga/internal/service/payment"
	"github.com/vladislavdragonenkov/ordersaga/internal/service/report"
	"github.com/vladislavdragonenkov/ordersaga/internal/service/reservation"
	"github.com/vladislavdragonenkov/ordersaga/internal/service/saga"
	"github.com/vladislavdragonenkov/ordersaga/internal/version"
)

const tracerName = "github.com/vladislavdragonenkov/ordersaga"

// system: собранный граф компонентов одного процесса.
type system struct {
	deps    *runtimeDependencies
	bus     *bus.Bus
	reader  *query.Service
	api     *httpapi.Handler
	health  *healthcheck.Handler
	cache   cache.Cache
	kafka   *kafkaRuntime
	outbox  *outbox.Worker
	reaper  *saga.Reaper
	cleanup *idempotency.CleanupWorker

	sagaSchedule    string
	cleanupSchedule string
}

// buildSystem связывает обработчики команд, саги и подписчиков на одной шине.
// Kafka подключается, только если заданы брокеры; без неё outbox не пополняется.
func buildSystem(
	cfg Config,
	deps *runtimeDependencies,
	registerer prometheus.Registerer,
	tracerProvider trace.TracerProvider,
	logger *log.Entry,
) *system {
	busMetrics := metrics.NewBusMetrics(registerer)
	compMetrics := metrics.NewCompensationMetrics(registerer)
	sagaMetrics := metrics.NewSagaMetricsWithRegisterer(registerer)

	opts := []bus.Option{
		bus.WithTimeout(cfg.CommandTimeout),
		bus.WithLogger(logger.WithField("component", "bus")),
		bus.WithMetrics(busMetrics),
	}
	if tracerProvider != nil {
		opts = append(opts, bus.WithTracer(tracerProvider.Tracer(tracerName)))
	}
	b := bus.New(opts...)

	s := &system{
		deps:            deps,
		bus:             b,
		health:          healthcheck.NewHandler(version.GetVersion()),
		sagaSchedule:    cfg.SagaReapSchedule,
		cleanupSchedule: cfg.IdempotencyCleanupSchedule,
	}

	s.cache = cache.NewMemoryCache("ordersaga")
	if cfg.RedisAddr != "" {
		s.cache = cache.NewRedisCache(cfg.RedisAddr, "ordersaga")
		s.health.RegisterChecker("redis", healthcheck.NewOptionalChecker("redis", func(ctx context.Context) error {
			return cache.Ping(ctx, s.cache)
		}))
	}
	if deps.storageChecker != nil {
		s.health.RegisterChecker("storage", deps.storageChecker)
	}

	s.reader = query.NewService(query.Repositories{
		Orders:     deps.orders,
		Payments:   deps.payments,
		Deliveries: deps.deliveries,
		Reports:    deps.reports,
		Inventory:  deps.inventory,
		Timeline:   deps.timeline,
	}, s.cache, logger.WithField("component", "query"))
	s.reader.Subscribe(b)

	orders := order.NewService(deps.orders, logger.WithField("component", "order-service"))
	orders.Register(b)
	orders.Subscribe(b, b)
	payment.NewService(deps.payments, logger.WithField("component", "payment-service")).Register(b)
	inventory.NewService(deps.inventory, deps.timeline, compMetrics,
		logger.WithField("component", "inventory-service")).Register(b)
	delivery.NewService(deps.deliveries, s.reader,
		reservation.NewReserver(b, compMetrics, logger.WithField("component", "reservation")),
		logger.WithField("component", "delivery-service")).Register(b)
	report.NewService(deps.reports, report.Sources{
		Orders:     deps.orders,
		Payments:   deps.payments,
		Deliveries: deps.deliveries,
	}, logger.WithField("component", "report-service")).Register(b)

	sagaLogger := logger.WithField("component", "saga")
	sagaDeps := saga.Deps{
		Sender:       b,
		Compensation: compensation.NewCoordinator(b, compMetrics, logger.WithField("component", "compensation")),
		Lookup:       s.reader,
		Metrics:      sagaMetrics,
		Logger:       sagaLogger,
	}
	saga.NewManager(deps.sagas, deps.timeline, sagaMetrics, sagaLogger,
		saga.NewCreating(sagaDeps), saga.NewUpdating(sagaDeps), saga.NewDeleting(sagaDeps),
	).Subscribe(b, cfg.SagaPartitions)
	s.reaper = saga.NewReaper(deps.sagas, deps.timeline, sagaMetrics, cfg.SagaTTL,
		logger.WithField("component", "saga-reaper"))

	kafkaLogger := logger.WithField("component", "kafka")
	k, err := initKafka(cfg, b, kafkaLogger)
	if err != nil {
		s.health.RegisterChecker("kafka", healthcheck.NewOptionalChecker("kafka", func(context.Context) error {
			return err
		}))
	}
	s.kafka = k

	// Без Kafka outbox некому вычитывать, поэтому журнал пишет только timeline.
	var outboxRepo domain.OutboxRepository
	if k != nil {
		outboxRepo = deps.outbox
		s.outbox = outbox.NewWorker(deps.outbox, k.publisher,
			outbox.WithLogger(logger.WithField("component", "outbox-worker")),
			outbox.WithMetrics(metrics.NewOutboxMetrics(registerer)),
			outbox.WithDLQPublisher(k.dlq),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		)
	}
	journal.New(deps.timeline, outboxRepo, compMetrics, logger.WithField("component", "journal")).
		Subscribe(b, journal.DefaultPartitions)

	guard := idempotency.NewGuard(deps.idempotency, cfg.IdempotencyTTL)
	s.cleanup = idempotency.NewCleanupWorker(deps.idempotency,
		metrics.NewIdempotencyMetrics(registerer), cfg.IdempotencyCleanupBatchSize,
		logger.WithField("component", "idempotency-cleanup"))
	s.api = httpapi.NewHandler(b, s.reader, guard, logger.WithField("component", "http-api"))

	return s
}

// start запускает фоновые воркеры. Воркеры останавливаются отменой ctx и stop.
func (s *system) start(ctx context.Context, logger *log.Entry) error {
	if err := s.reaper.Start(s.sagaSchedule); err != nil {
		return err
	}
	if err := s.cleanup.Start(ctx, s.cleanupSchedule); err != nil {
		return err
	}
	if s.outbox != nil {
		go s.outbox.Run(ctx)
	}
	if err := s.kafka.start(ctx, logger); err != nil {
		logger.WithError(err).Warn("kafka consumer is not running")
	}
	return nil
}

// stop останавливает приём команд, дожидается обработки событий и закрывает ресурсы.
func (s *system) stop(ctx context.Context, logger *log.Entry) {
	closeKafka(s.kafka, logger)
	if err := s.bus.WaitIdle(ctx); err != nil {
		logger.WithError(err).Warn("bus did not drain before shutdown")
	}
	s.reaper.Stop(ctx)
	s.cleanup.Stop(ctx)
	s.bus.Close()
	if err := cache.Close(s.cache); err != nil {
		logger.WithError(err).Warn("failed to close cache")
	}
	s.deps.close(logger)
}
