package ieventpublisher

import (
	"context"

	"github.com/corray333/backend-labs/checkout/internal/service/models/event"
	"github.com/corray333/backend-labs/checkout/internal/service/models/outbox"
)

// IEventPublisher delivers order events to a broker.
type IEventPublisher interface {
	Publish(ctx context.Context, e event.OrderEvent) error
}

// IBroker sends one already encoded message. The outbox relay and the
// publishers share it.
type IBroker interface {
	Send(ctx context.Context, msg outbox.OutboxMessage) error
}
