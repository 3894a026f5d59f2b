package inventorysvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/ibasketrepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/ilovelistrepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/iproductrepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/uow"
	"github.com/corray333/backend-labs/checkout/internal/service/errs"
	"github.com/corray333/backend-labs/checkout/internal/service/models/orderitem"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Tx is the slice of a unit of work the inventory operations write through.
// Every method runs inside whatever transaction the caller has opened.
type Tx interface {
	ProductRepository() iproductrepo.IProductRepository
	BasketRepository() ibasketrepo.IBasketRepository
	LovelistRepository() ilovelistrepo.ILovelistRepository
}

// InventoryService keeps product stock and every basket and wishlist
// snapshot of it consistent.
type InventoryService struct {
	newUOW uow.Factory
}

// option is a function that configures the InventoryService.
type option func(*InventoryService)

// MustNewInventoryService creates a new InventoryService.
func MustNewInventoryService(opts ...option) *InventoryService {
	s := &InventoryService{}
	for _, opt := range opts {
		opt(s)
	}

	if s.newUOW == nil {
		panic("inventorysvc: unit of work factory is required")
	}

	return s
}

// WithUnitOfWork sets the unit of work factory used by the standalone operations.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithUnitOfWork(factory uow.Factory) option {
	return func(s *InventoryService) {
		s.newUOW = factory
	}
}

// SyncBasketQuantities clamps every cart row of the product to newAvailable
// and refreshes its snapshot availability. Idempotent.
func (s *InventoryService) SyncBasketQuantities(ctx context.Context, tx Tx, productID string, newAvailable int) error {
	n, err := tx.BasketRepository().SyncProduct(ctx, productID, newAvailable)
	if err != nil {
		return err
	}
	slog.Debug("Basket snapshots synced", "product_id", productID, "available", newAvailable, "rows", n)

	return nil
}

// SyncWishlistAvailability refreshes every wishlist snapshot of the product. Idempotent.
func (s *InventoryService) SyncWishlistAvailability(ctx context.Context, tx Tx, productID string, newAvailable int) error {
	n, err := tx.LovelistRepository().SyncProduct(ctx, productID, newAvailable)
	if err != nil {
		return err
	}
	slog.Debug("Wishlist snapshots synced", "product_id", productID, "available", newAvailable, "rows", n)

	return nil
}

func (s *InventoryService) propagate(ctx context.Context, tx Tx, productID string, available int) error {
	if err := s.SyncBasketQuantities(ctx, tx, productID, available); err != nil {
		return fmt.Errorf("sync basket for %s: %w", productID, err)
	}
	if err := s.SyncWishlistAvailability(ctx, tx, productID, available); err != nil {
		return fmt.Errorf("sync wishlist for %s: %w", productID, err)
	}

	return nil
}

// DecreaseStock takes every line item out of stock and propagates the new
// levels. The first line that cannot be covered fails the call with
// errs.ErrInventoryConflict; the caller must roll the transaction back.
// Products no longer in the catalog are skipped. Rows are locked in product
// id order so concurrent settlements sharing products cannot deadlock.
func (s *InventoryService) DecreaseStock(ctx context.Context, tx Tx, items []orderitem.OrderItem) error {
	ctx, span := otel.Tracer("checkout-svc").Start(ctx, "inventory.DecreaseStock")
	defer span.End()

	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b orderitem.OrderItem) int {
		return strings.Compare(a.ProductID, b.ProductID)
	})

	for _, item := range sorted {
		if item.Quantity <= 0 {
			continue
		}

		available, ok, err := tx.ProductRepository().DecreaseStock(ctx, item.ProductID, item.Quantity)
		if err != nil {
			return fmt.Errorf("decrease stock for %s: %w", item.ProductID, err)
		}
		if !ok {
			p, err := tx.ProductRepository().Get(ctx, item.ProductID)
			if errors.Is(err, errs.ErrNotFound) {
				slog.Warn("Product missing from catalog, skipping stock decrement", "product_id", item.ProductID)

				continue
			}
			if err != nil {
				return fmt.Errorf("get product %s: %w", item.ProductID, err)
			}
			span.SetAttributes(attribute.String("conflict.product_id", item.ProductID))

			return fmt.Errorf("%w: product %s has %d, need %d",
				errs.ErrInventoryConflict, item.ProductID, p.AvailableQuantity, item.Quantity)
		}

		if err := s.propagate(ctx, tx, item.ProductID, available); err != nil {
			return err
		}
	}

	return nil
}

// SetStock overwrites a product's stock level and propagates it.
func (s *InventoryService) SetStock(ctx context.Context, productID string, qty int) error {
	if qty < 0 {
		return fmt.Errorf("%w: stock cannot be negative", errs.ErrValidation)
	}

	return s.inTx(ctx, func(tx uow.UnitOfWork) error {
		if err := tx.ProductRepository().SetStock(ctx, productID, qty); err != nil {
			return err
		}

		return s.propagate(ctx, tx, productID, qty)
	})
}

// RenameProduct moves every snapshot of oldID to newID.
func (s *InventoryService) RenameProduct(ctx context.Context, oldID, newID string) error {
	if oldID == "" || newID == "" || oldID == newID {
		return fmt.Errorf("%w: invalid product rename %q -> %q", errs.ErrValidation, oldID, newID)
	}

	return s.inTx(ctx, func(tx uow.UnitOfWork) error {
		if err := tx.BasketRepository().RenameProduct(ctx, oldID, newID); err != nil {
			return err
		}

		return tx.LovelistRepository().RenameProduct(ctx, oldID, newID)
	})
}

// RemoveProduct marks every snapshot of a removed product as unavailable.
// Rows are kept so users still see what they had saved.
func (s *InventoryService) RemoveProduct(ctx context.Context, productID string) error {
	return s.inTx(ctx, func(tx uow.UnitOfWork) error {
		return s.propagate(ctx, tx, productID, 0)
	})
}

func (s *InventoryService) inTx(ctx context.Context, fn func(tx uow.UnitOfWork) error) error {
	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return err
	}
	defer func() {
		if err := work.Rollback(ctx); err != nil {
			slog.Error("Failed to rollback inventory transaction", "error", err)
		}
	}()

	if err := fn(work); err != nil {
		return err
	}

	return work.Commit(ctx)
}
