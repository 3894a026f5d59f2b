package iorderrepo

import (
	"context"

	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
)

// IOrderRepository is an interface for order repository.
type IOrderRepository interface {
	// Insert stores a new order (without its items) and returns it with the generated id.
	Insert(ctx context.Context, o order.Order) (order.Order, error)
	// GetByID returns errs.ErrNotFound when no order has the id.
	GetByID(ctx context.Context, id int64) (order.Order, error)
	Query(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error)
	// SetPayment records the provider's payment reference on a freshly created order.
	SetPayment(ctx context.Context, id int64, paymentID, confirmationURL string) error
	// TransitionStatus sets status to 'to' only if it currently equals 'from'.
	// It reports whether a row was changed.
	TransitionStatus(ctx context.Context, id int64, from, to order.Status) (bool, error)
	// SetStatus unconditionally overwrites status and payment id.
	SetStatus(ctx context.Context, id int64, status order.Status, paymentID string) error
	SetFulfillmentIssue(ctx context.Context, id int64, issue string) error
	// Delete removes an order and its items. Missing orders are not an error.
	Delete(ctx context.Context, id int64) error
}
