package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersaga/internal/bus"
	"github.com/vladislavdragonenkov/ordersaga/internal/messaging/kafka"
)

// kafkaRuntime: producer событий и consumer входящих команд.
type kafkaRuntime struct {
	producer  *kafka.Producer
	publisher *kafka.OutboxTopicPublisher
	dlq       *kafka.OutboxTopicPublisher
	consumer  *kafka.Consumer
}

// initKafkaProducer создаёт producer, если брокеры заданы.
// Пустой список брокеров не ошибка: сервис работает без Kafka.
func initKafkaProducer(brokers []string, logger *log.Entry) (*kafka.Producer, error) {
	if len(brokers) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokers)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil, err
	}

	logger.WithField("brokers", brokers).Info("kafka producer initialized")
	return producer, nil
}

// initKafka поднимает публикацию outbox и consumer команд поверх sender.
// Ошибка consumer не отключает публикацию событий.
func initKafka(cfg Config, sender bus.Sender, logger *log.Entry) (*kafkaRuntime, error) {
	producer, err := initKafkaProducer(cfg.KafkaBrokers, logger)
	if err != nil || producer == nil {
		return nil, err
	}

	rt := &kafkaRuntime{
		producer:  producer,
		publisher: kafka.NewOutboxPublisher(producer, cfg.KafkaEventsTopic),
		dlq:       kafka.NewOutboxPublisher(producer, cfg.KafkaEventsTopic+".dlq"),
	}

	consumer, err := kafka.NewConsumer(
		cfg.KafkaBrokers,
		cfg.KafkaGroupID,
		[]string{cfg.KafkaCommandsTopic},
		kafka.NewCommandHandler(sender, logger.WithField("layer", "kafka-commands")),
		kafka.ConsumerOptions{
			DLQProducer: producer,
			DLQTopic:    cfg.KafkaDLQTopic,
			MaxAttempts: cfg.KafkaMaxAttempts,
		},
	)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka command consumer, commands are accepted over http only")
		return rt, nil
	}
	rt.consumer = consumer
	return rt, nil
}

// start запускает чтение команд.
func (k *kafkaRuntime) start(ctx context.Context, logger *log.Entry) error {
	if k == nil || k.consumer == nil {
		return nil
	}
	if err := k.consumer.Start(ctx); err != nil {
		return fmt.Errorf("start kafka consumer: %w", err)
	}
	logger.Info("kafka command consumer started")
	return nil
}

// closeKafka останавливает consumer и закрывает producer.
func closeKafka(k *kafkaRuntime, logger *log.Entry) {
	if k == nil {
		return
	}
	if k.consumer != nil {
		if err := k.consumer.Stop(); err != nil {
			logger.WithError(err).Warn("failed to stop kafka consumer")
		}
	}
	if k.producer == nil {
		return
	}
	if err := k.producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}
