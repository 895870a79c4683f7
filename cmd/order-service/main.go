package main

import (
	"context"
	"errors"
	"flag"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersaga/internal/app"
	"github.com/vladislavdragonenkov/ordersaga/internal/version"
)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(level log.Level) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(level)
}

// configFields отбирает настройки для стартового лога; пароль в DSN скрыт.
func configFields(cfg app.Config) log.Fields {
	fields := log.Fields{
		"http_addr":      cfg.HTTPAddr,
		"grpc_addr":      cfg.GRPCAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"storage_driver": cfg.StorageDriver,
		"kafka_enabled":  len(cfg.KafkaBrokers) > 0,
		"redis_enabled":  cfg.RedisAddr != "",
		"tracing":        cfg.OTLPEndpoint != "",
	}
	if cfg.PostgresDSN != "" {
		fields["postgres_dsn"] = redactDSN(cfg.PostgresDSN)
	}
	return fields
}

func redactDSN(dsn string) string {
	u, err := url.Parse(strings.TrimSpace(dsn))
	if err != nil || u.Scheme == "" {
		return "<redacted>"
	}
	return u.Redacted()
}

func main() {
	envFile := flag.String("env-file", ".env", "optional dotenv file with OMS_* settings")
	flag.Parse()

	cfg, warnings, err := app.LoadConfig(*envFile)
	if err != nil {
		setupLogger(log.InfoLevel)
		log.WithError(err).Fatal("invalid configuration")
	}
	setupLogger(cfg.LogLevel)
	for _, warning := range warnings {
		log.Warn(warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(configFields(cfg)).WithField("version", version.String()).Info("starting order service")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("service exited with error")
	}

	log.Info("order service stopped")
}
