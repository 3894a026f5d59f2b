package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/ieventpublisher"
	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/backend-labs/checkout/internal/service/models/event"
	"github.com/corray333/backend-labs/checkout/internal/service/models/outbox"
)

const defaultSendTimeout = 5 * time.Second

// Publisher encodes order events and hands them to a broker. When the broker
// is unavailable the message goes to the outbox and the relay retries it.
type Publisher struct {
	broker      ieventpublisher.IBroker
	outboxRepo  ioutboxrepo.IOutboxRepository
	exchange    string
	destination string
	sendTimeout time.Duration
}

type option func(*Publisher)

// WithExchange sets the AMQP exchange; empty means the default exchange.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithExchange(exchange string) option {
	return func(p *Publisher) {
		p.exchange = exchange
	}
}

// WithOutbox enables the outbox fallback.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithOutbox(repo ioutboxrepo.IOutboxRepository) option {
	return func(p *Publisher) {
		p.outboxRepo = repo
	}
}

//goland:noinspection GoExportedFuncWithUnexportedType
func WithSendTimeout(d time.Duration) option {
	return func(p *Publisher) {
		p.sendTimeout = d
	}
}

// NewPublisher publishes to destination, which is a queue name for RabbitMQ
// and a topic for Kafka.
func NewPublisher(broker ieventpublisher.IBroker, destination string, opts ...option) *Publisher {
	p := &Publisher{
		broker:      broker,
		destination: destination,
		sendTimeout: defaultSendTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Encode builds the broker message for an order event.
func (p *Publisher) Encode(e event.OrderEvent) (outbox.OutboxMessage, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return outbox.OutboxMessage{}, fmt.Errorf("failed to marshal order event: %w", err)
	}

	return outbox.OutboxMessage{
		QueueName:    strconv.FormatInt(e.OrderID, 10),
		ExchangeName: p.exchange,
		RoutingKey:   p.destination,
		Payload:      payload,
		ContentType:  "application/json",
	}, nil
}

func (p *Publisher) Publish(ctx context.Context, e event.OrderEvent) error {
	msg, err := p.Encode(e)
	if err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, p.sendTimeout)
	defer cancel()

	sendErr := p.broker.Send(sendCtx, msg)
	if sendErr == nil {
		return nil
	}
	if p.outboxRepo == nil {
		return fmt.Errorf("failed to publish order event: %w", sendErr)
	}

	slog.Warn("Broker unavailable, order event moved to outbox",
		"order_id", e.OrderID,
		"type", e.Type,
		"error", sendErr,
	)
	msg.LastError = sendErr.Error()
	if err := p.outboxRepo.Insert(ctx, msg); err != nil {
		return fmt.Errorf("failed to save order event to outbox: %w", err)
	}

	return nil
}

// LogBroker writes messages to the log. Used when no broker is configured.
type LogBroker struct{}

func (LogBroker) Send(_ context.Context, msg outbox.OutboxMessage) error {
	slog.Info("Order event", "destination", msg.RoutingKey, "key", msg.QueueName, "payload", string(msg.Payload))

	return nil
}
