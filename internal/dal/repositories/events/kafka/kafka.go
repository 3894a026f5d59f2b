package kafka

import (
	"context"
	"time"

	"github.com/corray333/backend-labs/checkout/internal/service/models/outbox"
	"github.com/segmentio/kafka-go"
)

// messageWriter is the part of *kafka.Writer the broker needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Broker struct {
	writer messageWriter
}

func NewBroker(writer messageWriter) *Broker {
	return &Broker{writer: writer}
}

func (b *Broker) Send(ctx context.Context, msg outbox.OutboxMessage) error {
	return b.writer.WriteMessages(ctx, kafka.Message{
		Topic: msg.RoutingKey,
		Key:   []byte(msg.QueueName),
		Value: msg.Payload,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte(msg.ContentType)},
		},
		Time: time.Now().UTC(),
	})
}

func (b *Broker) Close() error {
	return b.writer.Close()
}
