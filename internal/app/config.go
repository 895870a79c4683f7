package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersaga/internal/bus"
	"github.com/vladislavdragonenkov/ordersaga/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/ordersaga/internal/service/idempotency"
	"github.com/vladislavdragonenkov/ordersaga/internal/service/saga"
)

const (
	// StorageDriverMemory хранит всё в памяти процесса.
	StorageDriverMemory = "memory"
	// StorageDriverPostgres хранит снимки, саги, outbox и журнал в PostgreSQL.
	StorageDriverPostgres = "postgres"
)

// Имена переменных окружения.
const (
	EnvHTTPAddr                    = "OMS_HTTP_ADDR"
	EnvGRPCAddr                    = "OMS_GRPC_ADDR"
	EnvMetricsAddr                 = "OMS_METRICS_ADDR"
	EnvLogLevel                    = "OMS_LOG_LEVEL"
	EnvCommandTimeout              = "OMS_COMMAND_TIMEOUT"
	EnvSagaPartitions              = "OMS_SAGA_PARTITIONS"
	EnvSagaTTL                     = "OMS_SAGA_TTL"
	EnvSagaReapSchedule            = "OMS_SAGA_REAP_SCHEDULE"
	EnvStorageDriver               = "OMS_STORAGE_DRIVER"
	EnvPostgresDSN                 = "OMS_POSTGRES_DSN"
	EnvPostgresAutoMigrate         = "OMS_POSTGRES_AUTO_MIGRATE"
	EnvKafkaBrokers                = "KAFKA_BROKERS"
	EnvKafkaEventsTopic            = "OMS_KAFKA_EVENTS_TOPIC"
	EnvKafkaCommandsTopic          = "OMS_KAFKA_COMMANDS_TOPIC"
	EnvKafkaDLQTopic               = "OMS_KAFKA_DLQ_TOPIC"
	EnvKafkaGroupID                = "OMS_KAFKA_GROUP_ID"
	EnvKafkaMaxAttempts            = "OMS_KAFKA_MAX_ATTEMPTS"
	EnvRedisAddr                   = "REDIS_ADDR"
	EnvOTLPEndpoint                = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvTraceSamplingRatio          = "OMS_TRACE_SAMPLING_RATIO"
	EnvOutboxPollInterval          = "OMS_OUTBOX_POLL_INTERVAL"
	EnvOutboxBatchSize             = "OMS_OUTBOX_BATCH_SIZE"
	EnvOutboxMaxAttempts           = "OMS_OUTBOX_MAX_ATTEMPTS"
	EnvOutboxRetryDelay            = "OMS_OUTBOX_RETRY_DELAY"
	EnvIdempotencyTTL              = "OMS_IDEMPOTENCY_TTL"
	EnvIdempotencyCleanupSchedule  = "OMS_IDEMPOTENCY_CLEANUP_SCHEDULE"
	EnvIdempotencyCleanupBatchSize = "OMS_IDEMPOTENCY_CLEANUP_BATCH_SIZE"
	EnvShutdownTimeout             = "OMS_SHUTDOWN_TIMEOUT"
)

// Config описывает настройки запуска сервиса.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	MetricsAddr string
	LogLevel    log.Level

	CommandTimeout   time.Duration
	SagaPartitions   int
	SagaTTL          time.Duration
	SagaReapSchedule string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	// KafkaBrokers пустой: сервис работает без Kafka и без outbox.
	KafkaBrokers       []string
	KafkaEventsTopic   string
	KafkaCommandsTopic string
	KafkaDLQTopic      string
	KafkaGroupID       string
	KafkaMaxAttempts   int

	// RedisAddr пустой: кэш деталей заказа держится в памяти.
	RedisAddr string

	OTLPEndpoint       string
	TraceSamplingRatio float64

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	IdempotencyTTL              time.Duration
	IdempotencyCleanupSchedule  string
	IdempotencyCleanupBatchSize int

	ShutdownTimeout time.Duration
}

// DefaultConfig возвращает настройки для локального запуска без внешних систем.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:                    ":8080",
		GRPCAddr:                    ":50051",
		MetricsAddr:                 ":9090",
		LogLevel:                    log.InfoLevel,
		CommandTimeout:              bus.DefaultTimeout,
		SagaPartitions:              saga.DefaultPartitions,
		SagaTTL:                     saga.DefaultTTL,
		SagaReapSchedule:            saga.DefaultReapSchedule,
		StorageDriver:               StorageDriverMemory,
		PostgresAutoMigrate:         true,
		KafkaEventsTopic:            kafka.TopicOrderEvents,
		KafkaCommandsTopic:          kafka.TopicOrderCommands,
		KafkaDLQTopic:               kafka.TopicCommandsDLQ,
		KafkaGroupID:                "ordersaga",
		KafkaMaxAttempts:            3,
		TraceSamplingRatio:          1,
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             100,
		OutboxMaxAttempts:           3,
		OutboxRetryDelay:            50 * time.Millisecond,
		IdempotencyTTL:              idempotency.DefaultTTL,
		IdempotencyCleanupSchedule:  idempotency.DefaultCleanupSchedule,
		IdempotencyCleanupBatchSize: 500,
		ShutdownTimeout:             5 * time.Second,
	}
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []error
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, fmt.Errorf("%s is required for %s storage", EnvPostgresDSN, StorageDriverPostgres))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http address is required"))
	}
	if c.MetricsAddr == "" {
		errs = append(errs, errors.New("metrics address is required"))
	}
	if c.GRPCAddr == "" {
		errs = append(errs, errors.New("grpc address is required"))
	}
	if c.CommandTimeout <= 0 {
		errs = append(errs, errors.New("command timeout must be > 0"))
	}
	return errors.Join(errs...)
}

// EnvLookup читает переменную окружения; сигнатура совпадает с os.LookupEnv.
type EnvLookup func(key string) (string, bool)

// LoadConfig подгружает envFile (если он есть) и читает настройки из окружения.
// Нераспознанные значения не прерывают запуск: они возвращаются предупреждениями,
// а поле сохраняет значение по умолчанию.
func LoadConfig(envFile string) (Config, []string, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	cfg, warnings := ConfigFromEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return cfg, warnings, err
	}
	return cfg, warnings, nil
}

// ConfigFromEnv накладывает переменные окружения на DefaultConfig.
func ConfigFromEnv(lookup EnvLookup) (Config, []string) {
	cfg := DefaultConfig()
	r := envReader{lookup: lookup}

	r.str(EnvHTTPAddr, &cfg.HTTPAddr)
	r.str(EnvGRPCAddr, &cfg.GRPCAddr)
	r.str(EnvMetricsAddr, &cfg.MetricsAddr)
	if raw, ok := r.value(EnvLogLevel); ok {
		level, err := log.ParseLevel(raw)
		if err != nil {
			r.warn(EnvLogLevel, raw, err)
		} else {
			cfg.LogLevel = level
		}
	}

	r.duration(EnvCommandTimeout, &cfg.CommandTimeout, positiveDuration, "must be > 0")
	r.integer(EnvSagaPartitions, &cfg.SagaPartitions, positiveInt, "must be > 0")
	r.duration(EnvSagaTTL, &cfg.SagaTTL, positiveDuration, "must be > 0")
	r.str(EnvSagaReapSchedule, &cfg.SagaReapSchedule)

	if raw, ok := r.value(EnvStorageDriver); ok {
		cfg.StorageDriver = strings.ToLower(raw)
	}
	r.str(EnvPostgresDSN, &cfg.PostgresDSN)
	r.boolean(EnvPostgresAutoMigrate, &cfg.PostgresAutoMigrate)

	if raw, ok := r.value(EnvKafkaBrokers); ok {
		cfg.KafkaBrokers = splitList(raw)
	}
	r.str(EnvKafkaEventsTopic, &cfg.KafkaEventsTopic)
	r.str(EnvKafkaCommandsTopic, &cfg.KafkaCommandsTopic)
	r.str(EnvKafkaDLQTopic, &cfg.KafkaDLQTopic)
	r.str(EnvKafkaGroupID, &cfg.KafkaGroupID)
	r.integer(EnvKafkaMaxAttempts, &cfg.KafkaMaxAttempts, positiveInt, "must be > 0")

	r.str(EnvRedisAddr, &cfg.RedisAddr)
	r.str(EnvOTLPEndpoint, &cfg.OTLPEndpoint)
	if raw, ok := r.value(EnvTraceSamplingRatio); ok {
		ratio, err := strconv.ParseFloat(raw, 64)
		switch {
		case err != nil:
			r.warn(EnvTraceSamplingRatio, raw, err)
		case ratio <= 0 || ratio > 1:
			r.warn(EnvTraceSamplingRatio, raw, errors.New("must be in (0, 1]"))
		default:
			cfg.TraceSamplingRatio = ratio
		}
	}

	r.duration(EnvOutboxPollInterval, &cfg.OutboxPollInterval, positiveDuration, "must be > 0")
	r.integer(EnvOutboxBatchSize, &cfg.OutboxBatchSize, positiveInt, "must be > 0")
	r.integer(EnvOutboxMaxAttempts, &cfg.OutboxMaxAttempts, positiveInt, "must be > 0")
	r.duration(EnvOutboxRetryDelay, &cfg.OutboxRetryDelay, nonNegativeDuration, "must be >= 0")

	r.duration(EnvIdempotencyTTL, &cfg.IdempotencyTTL, positiveDuration, "must be > 0")
	r.str(EnvIdempotencyCleanupSchedule, &cfg.IdempotencyCleanupSchedule)
	r.integer(EnvIdempotencyCleanupBatchSize, &cfg.IdempotencyCleanupBatchSize, positiveInt, "must be > 0")

	r.duration(EnvShutdownTimeout, &cfg.ShutdownTimeout, positiveDuration, "must be > 0")

	return cfg, r.warnings
}

type envReader struct {
	lookup   EnvLookup
	warnings []string
}

func (r *envReader) value(key string) (string, bool) {
	raw, ok := r.lookup(key)
	if !ok {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

func (r *envReader) warn(key, raw string, err error) {
	r.warnings = append(r.warnings, fmt.Sprintf("%s=%q ignored: %v", key, raw, err))
}

func (r *envReader) str(key string, dst *string) {
	if raw, ok := r.value(key); ok {
		*dst = raw
	}
}

func (r *envReader) boolean(key string, dst *bool) {
	raw, ok := r.value(key)
	if !ok {
		return
	}
	v, err := parseBool(raw)
	if err != nil {
		r.warn(key, raw, err)
		return
	}
	*dst = v
}

func (r *envReader) integer(key string, dst *int, valid func(int) bool, rule string) {
	raw, ok := r.value(key)
	if !ok {
		return
	}
	v, err := parseInt(raw, valid, rule)
	if err != nil {
		r.warn(key, raw, err)
		return
	}
	*dst = v
}

func (r *envReader) duration(key string, dst *time.Duration, valid func(time.Duration) bool, rule string) {
	raw, ok := r.value(key)
	if !ok {
		return
	}
	v, err := parseDuration(raw, valid, rule)
	if err != nil {
		r.warn(key, raw, err)
		return
	}
	*dst = v
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", raw)
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if valid != nil && !valid(v) {
		return 0, fmt.Errorf("value %d %s", v, rule)
	}
	return v, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if valid != nil && !valid(v) {
		return 0, fmt.Errorf("value %s %s", v, rule)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func positiveInt(v int) bool { return v > 0 }

func positiveDuration(v time.Duration) bool { return v > 0 }

func nonNegativeDuration(v time.Duration) bool { return v >= 0 }
