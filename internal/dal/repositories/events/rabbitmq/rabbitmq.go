package rabbitmq

import (
	"context"
	"fmt"

	"github.com/corray333/backend-labs/checkout/internal/dal/rabbitmq"
	"github.com/corray333/backend-labs/checkout/internal/service/models/outbox"
	"github.com/streadway/amqp"
)

type Broker struct {
	client *rabbitmq.Client
}

// NewBroker declares the durable events queue and returns a broker bound to it.
func NewBroker(client *rabbitmq.Client, queue string) (*Broker, error) {
	if _, err := client.DeclareQueue(rabbitmq.DeclareQueueConfig{
		Name:    queue,
		Durable: true,
	}); err != nil {
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	return &Broker{client: client}, nil
}

func (b *Broker) Send(ctx context.Context, msg outbox.OutboxMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return b.client.Channel().Publish(
		msg.ExchangeName,
		msg.RoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  msg.ContentType,
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.QueueName,
			Body:         msg.Payload,
		},
	)
}
