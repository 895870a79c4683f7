package kafka

import (
	"encoding/json"
	"time"
)

// Топики сервиса.
const (
	TopicOrderEvents   = "oms.order-events"
	TopicOrderCommands = "oms.order-commands"
	TopicCommandsDLQ   = "oms.order-commands.dlq"
)

// Заголовки сообщений.
const (
	HeaderEventType     = "x-event-type"
	HeaderCommand       = "x-command"
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// EventEnvelope: формат доменного события в топике событий.
type EventEnvelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	OrderID       string          `json:"order_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// CommandEnvelope: формат входящей команды жизненного цикла.
type CommandEnvelope struct {
	Command string          `json:"command"`
	Payload json.RawMessage `json:"payload"`
}
