package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersaga/internal/messaging/kafka"
)

const (
	defaultReplayLimit = 100
	defaultMaxRetries  = 5
	defaultIdleTimeout = 2 * time.Second
)

type config struct {
	brokers       []string
	sourceTopic   string
	fallbackTopic string
	limit         int
	maxRetries    int
	execute       bool
	idleTimeout   time.Duration
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	_ = godotenv.Load()

	cfg, err := parseConfig(os.Args[1:], os.Getenv)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.WithError(err).Fatal("invalid arguments")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdout); err != nil {
		log.WithError(err).Fatal("dlq replay failed")
	}
}

// parseConfig разбирает флаги; брокеры берутся из KAFKA_BROKERS, если флаг не задан.
func parseConfig(args []string, getenv func(string) string) (config, error) {
	var (
		cfg        config
		brokersRaw string
	)
	fs := flag.NewFlagSet("dlq-reprocess", flag.ContinueOnError)
	fs.StringVar(&brokersRaw, "brokers", "", "Kafka brokers as comma-separated list (fallback: KAFKA_BROKERS)")
	fs.StringVar(&cfg.sourceTopic, "source-topic", kafka.TopicCommandsDLQ, "DLQ source topic")
	fs.StringVar(&cfg.fallbackTopic, "fallback-topic", kafka.TopicOrderCommands, "target topic for messages without the original topic header")
	fs.IntVar(&cfg.limit, "limit", defaultReplayLimit, "max number of messages to scan")
	fs.IntVar(&cfg.maxRetries, "max-retries", defaultMaxRetries, "skip messages replayed at least this many times")
	fs.BoolVar(&cfg.execute, "execute", false, "execute replay; default is dry-run")
	fs.DurationVar(&cfg.idleTimeout, "idle-timeout", defaultIdleTimeout, "idle timeout per partition")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	if strings.TrimSpace(brokersRaw) == "" {
		brokersRaw = getenv("KAFKA_BROKERS")
	}
	cfg.brokers = parseBrokers(brokersRaw)
	if len(cfg.brokers) == 0 {
		return config{}, errors.New("kafka brokers are required (-brokers or KAFKA_BROKERS)")
	}
	if cfg.limit <= 0 {
		return config{}, fmt.Errorf("limit must be > 0, got %d", cfg.limit)
	}
	return cfg, nil
}

func parseBrokers(raw string) []string {
	var brokers []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			brokers = append(brokers, part)
		}
	}
	return brokers
}

func run(ctx context.Context, cfg config, out io.Writer) error {
	client, err := sarama.NewClient(cfg.brokers, sarama.NewConfig())
	if err != nil {
		return fmt.Errorf("create kafka client: %w", err)
	}
	defer client.Close()

	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		return fmt.Errorf("create kafka consumer: %w", err)
	}
	defer consumer.Close()

	var sink kafka.ReplaySink
	if cfg.execute {
		producer, err := kafka.NewProducer(cfg.brokers)
		if err != nil {
			return err
		}
		defer producer.Close()
		sink = producer
	}

	return replay(ctx, kafka.NewReplayer(client, consumer, sink, replayOptions(cfg)), cfg, out)
}

func replayOptions(cfg config) kafka.ReplayOptions {
	return kafka.ReplayOptions{
		SourceTopic:   cfg.sourceTopic,
		FallbackTopic: cfg.fallbackTopic,
		Limit:         cfg.limit,
		MaxRetries:    cfg.maxRetries,
		Execute:       cfg.execute,
		IdleTimeout:   cfg.idleTimeout,
	}
}

type replayRunner interface {
	Run(ctx context.Context) (kafka.ReplayStats, error)
}

func replay(ctx context.Context, r replayRunner, cfg config, out io.Writer) error {
	stats, err := r.Run(ctx)
	mode := "dry-run"
	if cfg.execute {
		mode = "execute"
	}
	_, _ = fmt.Fprintf(out, "dlq replay %s: source=%s processed=%d replayed=%d skipped=%d\n",
		mode, cfg.sourceTopic, stats.Processed, stats.Replayed, stats.Skipped)
	return err
}
