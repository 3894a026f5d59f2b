package ibasketrepo

import (
	"context"

	"github.com/corray333/backend-labs/checkout/internal/service/models/basket"
)

// IBasketRepository manages cart snapshot rows.
type IBasketRepository interface {
	Add(ctx context.Context, item basket.Item) error
	ListByUser(ctx context.Context, userID int64) ([]basket.Item, error)
	// SyncProduct refreshes available quantity on every cart row of the product
	// and clamps quantity down to it. Returns the number of rows touched.
	SyncProduct(ctx context.Context, productID string, available int) (int64, error)
	RenameProduct(ctx context.Context, oldID, newID string) error
	ClearUser(ctx context.Context, userID int64) error
}
