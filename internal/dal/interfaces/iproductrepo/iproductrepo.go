package iproductrepo

import (
	"context"

	"github.com/corray333/backend-labs/checkout/internal/service/models/product"
)

// IProductRepository reads and writes catalog stock.
type IProductRepository interface {
	// Get returns errs.ErrNotFound when the product does not exist.
	Get(ctx context.Context, id string) (product.Product, error)
	Upsert(ctx context.Context, p product.Product) error
	// DecreaseStock subtracts qty only if at least qty units are available.
	// It returns the new available quantity and whether the decrement happened.
	DecreaseStock(ctx context.Context, id string, qty int) (int, bool, error)
	// SetStock returns errs.ErrNotFound when the product does not exist.
	SetStock(ctx context.Context, id string, qty int) error
}
