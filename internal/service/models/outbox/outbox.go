package outbox

import (
	"time"
)

// OutboxMessage represents an order event that failed to reach the broker.
//
// For RabbitMQ ExchangeName/RoutingKey address the message; for Kafka the
// RoutingKey is the topic and QueueName carries the message key.
type OutboxMessage struct {
	ID           int64
	QueueName    string
	ExchangeName string
	RoutingKey   string
	Payload      []byte
	ContentType  string
	RetryCount   int
	MaxRetries   int
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	NextRetryAt  time.Time
}
