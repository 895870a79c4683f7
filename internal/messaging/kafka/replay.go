package kafka

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// OffsetClient: часть sarama.Client, нужная для чтения границ партиций.
type OffsetClient interface {
	GetOffset(topic string, partition int32, time int64) (int64, error)
	Partitions(topic string) ([]int32, error)
}

// PartitionSource открывает чтение партиции.
type PartitionSource interface {
	ConsumePartition(topic string, partition int32, offset int64) (sarama.PartitionConsumer, error)
}

// ReplaySink принимает переигрываемые сообщения.
type ReplaySink interface {
	Send(topic, key string, value []byte, headers map[string]string) error
}

// ReplayOptions: параметры переигрывания DLQ.
type ReplayOptions struct {
	SourceTopic string
	// FallbackTopic используется, если у сообщения нет заголовка исходного топика.
	FallbackTopic string
	Limit         int
	// MaxRetries пропускает сообщения, которые уже переигрывались столько раз.
	MaxRetries  int
	Execute     bool
	IdleTimeout time.Duration
}

// ReplayStats: итог переигрывания.
type ReplayStats struct {
	Processed int
	Replayed  int
	Skipped   int
}

// Replayer возвращает сообщения из DLQ в исходные топики.
type Replayer struct {
	client OffsetClient
	source PartitionSource
	sink   ReplaySink
	opts   ReplayOptions
	logger *log.Entry
}

// NewReplayer создаёт переигрыватель. sink может быть nil в режиме dry-run.
func NewReplayer(client OffsetClient, source PartitionSource, sink ReplaySink, opts ReplayOptions) *Replayer {
	if opts.SourceTopic == "" {
		opts.SourceTopic = TopicCommandsDLQ
	}
	if opts.FallbackTopic == "" {
		opts.FallbackTopic = TopicOrderCommands
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 2 * time.Second
	}
	return &Replayer{
		client: client,
		source: source,
		sink:   sink,
		opts:   opts,
		logger: log.WithField("component", "dlq-replay"),
	}
}

// Run читает партиции DLQ от старых сообщений к новым, не более Limit штук.
func (r *Replayer) Run(ctx context.Context) (ReplayStats, error) {
	var total ReplayStats
	if r.opts.Execute && r.sink == nil {
		return total, fmt.Errorf("producer is required in execute mode")
	}

	partitions, err := r.client.Partitions(r.opts.SourceTopic)
	if err != nil {
		return total, fmt.Errorf("get partitions for topic %s: %w", r.opts.SourceTopic, err)
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })

	for _, partition := range partitions {
		remaining := r.opts.Limit - total.Processed
		if r.opts.Limit > 0 && remaining <= 0 {
			break
		}
		stats, err := r.partition(ctx, partition, remaining)
		total.Processed += stats.Processed
		total.Replayed += stats.Replayed
		total.Skipped += stats.Skipped
		if err != nil {
			return total, err
		}
	}

	r.logger.WithFields(log.Fields{
		"execute":   r.opts.Execute,
		"processed": total.Processed,
		"replayed":  total.Replayed,
		"skipped":   total.Skipped,
	}).Info("dlq replay finished")
	return total, nil
}

func (r *Replayer) partition(ctx context.Context, partition int32, limit int) (ReplayStats, error) {
	var stats ReplayStats
	topic := r.opts.SourceTopic

	oldest, err := r.client.GetOffset(topic, partition, sarama.OffsetOldest)
	if err != nil {
		return stats, fmt.Errorf("get oldest offset for partition %d: %w", partition, err)
	}
	newest, err := r.client.GetOffset(topic, partition, sarama.OffsetNewest)
	if err != nil {
		return stats, fmt.Errorf("get newest offset for partition %d: %w", partition, err)
	}
	if newest <= oldest {
		return stats, nil
	}

	pc, err := r.source.ConsumePartition(topic, partition, oldest)
	if err != nil {
		return stats, fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = pc.Close() }()

	idle := time.NewTimer(r.opts.IdleTimeout)
	defer idle.Stop()

	for limit <= 0 || stats.Processed < limit {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case <-idle.C:
			return stats, nil
		case cerr, ok := <-pc.Errors():
			if ok && cerr != nil {
				return stats, fmt.Errorf("partition %d consumer error: %w", partition, cerr)
			}
		case msg, ok := <-pc.Messages():
			if !ok || msg == nil || msg.Offset >= newest {
				return stats, nil
			}
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(r.opts.IdleTimeout)

			stats.Processed++
			replayed, err := r.replay(msg)
			if err != nil {
				return stats, err
			}
			if replayed {
				stats.Replayed++
			} else {
				stats.Skipped++
			}
			if msg.Offset+1 >= newest {
				return stats, nil
			}
		}
	}
	return stats, nil
}

func (r *Replayer) replay(msg *sarama.ConsumerMessage) (bool, error) {
	retries := RetryCount(msg)
	target := Header(msg, HeaderOriginalTopic)
	if target == "" {
		target = r.opts.FallbackTopic
	}
	fields := log.Fields{
		"partition":    msg.Partition,
		"offset":       msg.Offset,
		"target_topic": target,
		"retry_count":  retries,
		"reason":       Header(msg, HeaderErrorMessage),
	}

	if r.opts.MaxRetries > 0 && retries > r.opts.MaxRetries {
		r.logger.WithFields(fields).Warn("skip dlq message over retry limit")
		return false, nil
	}
	if !r.opts.Execute {
		r.logger.WithFields(fields).Info("dlq replay candidate")
		return true, nil
	}
	if err := r.sink.Send(target, string(msg.Key), msg.Value, map[string]string{
		HeaderRetryCount: strconv.Itoa(retries),
	}); err != nil {
		return false, fmt.Errorf("publish replay message: %w", err)
	}
	return true, nil
}
