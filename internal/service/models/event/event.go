package event

import (
	"time"

	"github.com/corray333/backend-labs/checkout/internal/service/models/currency"
)

type Type string

const (
	TypeOrderPaid   Type = "order.paid"
	TypeOrderFailed Type = "order.failed"
)

// OrderEvent is published whenever an order reaches a terminal status.
type OrderEvent struct {
	Type             Type              `json:"type"`
	OrderID          int64             `json:"orderId"`
	UserID           *int64            `json:"userId,omitempty"`
	Provider         string            `json:"provider"`
	PaymentID        string            `json:"paymentId"`
	TotalCents       int64             `json:"totalCents"`
	Currency         currency.Currency `json:"currency"`
	FulfillmentIssue string            `json:"fulfillmentIssue,omitempty"`
	OccurredAt       time.Time         `json:"occurredAt"`
}
