package ilovelistrepo

import (
	"context"

	"github.com/corray333/backend-labs/checkout/internal/service/models/lovelist"
)

// ILovelistRepository manages wishlist snapshot rows.
type ILovelistRepository interface {
	Add(ctx context.Context, item lovelist.Item) error
	ListByUser(ctx context.Context, userID int64) ([]lovelist.Item, error)
	SyncProduct(ctx context.Context, productID string, available int) (int64, error)
	RenameProduct(ctx context.Context, oldID, newID string) error
}
