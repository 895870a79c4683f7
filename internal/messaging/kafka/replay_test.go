package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
)

type fakeOffsets struct {
	oldest, newest int64
}

func (f fakeOffsets) GetOffset(_ string, _ int32, at int64) (int64, error) {
	if at == sarama.OffsetOldest {
		return f.oldest, nil
	}
	return f.newest, nil
}

func (f fakeOffsets) Partitions(string) ([]int32, error) { return []int32{0}, nil }

type sentMessage struct {
	topic, key string
	headers    map[string]string
}

type recordingSink struct {
	sent []sentMessage
}

func (s *recordingSink) Send(topic, key string, _ []byte, headers map[string]string) error {
	s.sent = append(s.sent, sentMessage{topic: topic, key: key, headers: headers})
	return nil
}

func dlqMessage(offset int64, retries string) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{
		Offset: offset,
		Key:    []byte("O1"),
		Value:  []byte(`{"command":"DeleteOrder","payload":{"order_id":"O1"}}`),
		Headers: []*sarama.RecordHeader{
			{Key: []byte(HeaderOriginalTopic), Value: []byte(TopicOrderCommands)},
			{Key: []byte(HeaderRetryCount), Value: []byte(retries)},
		},
	}
}

func TestReplayer_RepublishesToOriginalTopic(t *testing.T) {
	consumer := mocks.NewConsumer(t, nil)
	pc := consumer.ExpectConsumePartition(TopicCommandsDLQ, 0, 0)
	pc.YieldMessage(dlqMessage(0, "1"))
	pc.YieldMessage(dlqMessage(1, "5"))

	sink := &recordingSink{}
	r := NewReplayer(fakeOffsets{oldest: 0, newest: 2}, consumer, sink, ReplayOptions{
		MaxRetries:  3,
		Execute:     true,
		IdleTimeout: time.Second,
	})

	stats, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if stats.Processed != 2 || stats.Replayed != 1 || stats.Skipped != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(sink.sent) != 1 {
		t.Fatalf("expected one replayed message, got %d", len(sink.sent))
	}
	got := sink.sent[0]
	if got.topic != TopicOrderCommands || got.key != "O1" || got.headers[HeaderRetryCount] != "1" {
		t.Fatalf("unexpected replay %+v", got)
	}
}

func TestReplayer_DryRunDoesNotPublish(t *testing.T) {
	consumer := mocks.NewConsumer(t, nil)
	consumer.ExpectConsumePartition(TopicCommandsDLQ, 0, 0).YieldMessage(dlqMessage(0, "1"))

	r := NewReplayer(fakeOffsets{oldest: 0, newest: 1}, consumer, nil, ReplayOptions{IdleTimeout: time.Second})
	stats, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	if stats.Replayed != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestReplayer_ExecuteRequiresSink(t *testing.T) {
	r := NewReplayer(fakeOffsets{}, mocks.NewConsumer(t, nil), nil, ReplayOptions{Execute: true})
	if _, err := r.Run(context.Background()); err == nil {
		t.Fatal("expected error without producer")
	}
}

func TestReplayer_EmptyPartitionIsSkipped(t *testing.T) {
	r := NewReplayer(fakeOffsets{oldest: 3, newest: 3}, mocks.NewConsumer(t, nil), nil, ReplayOptions{})
	stats, err := r.Run(context.Background())
	if err != nil || stats.Processed != 0 {
		t.Fatalf("unexpected result stats=%+v err=%v", stats, err)
	}
}
