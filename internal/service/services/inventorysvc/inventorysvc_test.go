package inventorysvc

import (
	"context"
	"testing"

	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/iproductrepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/memory"
	"github.com/corray333/backend-labs/checkout/internal/service/errs"
	"github.com/corray333/backend-labs/checkout/internal/service/models/basket"
	"github.com/corray333/backend-labs/checkout/internal/service/models/lovelist"
	"github.com/corray333/backend-labs/checkout/internal/service/models/orderitem"
	"github.com/corray333/backend-labs/checkout/internal/service/models/product"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*InventoryService, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	ctx := context.Background()
	work := store.NewUnitOfWork()

	require.NoError(t, work.ProductRepository().Upsert(ctx, product.Product{ID: "A", Title: "Lamp", AvailableQuantity: 5}))
	require.NoError(t, work.ProductRepository().Upsert(ctx, product.Product{ID: "B", Title: "Vase", AvailableQuantity: 1}))

	require.NoError(t, work.BasketRepository().Add(ctx, basket.Item{UserID: 1, ProductID: "B", Quantity: 1, AvailableQuantity: 1}))
	require.NoError(t, work.BasketRepository().Add(ctx, basket.Item{UserID: 2, ProductID: "A", Quantity: 4, AvailableQuantity: 5}))
	require.NoError(t, work.LovelistRepository().Add(ctx, lovelist.Item{UserID: 2, ProductID: "B", AvailableQuantity: 1}))

	return MustNewInventoryService(WithUnitOfWork(store.Factory())), store
}

func TestDecreaseStock_PropagatesToSnapshots(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()

	work := store.NewUnitOfWork()
	require.NoError(t, work.Begin(ctx))
	err := svc.DecreaseStock(ctx, work, []orderitem.OrderItem{
		{ProductID: "A", Quantity: 3},
		{ProductID: "B", Quantity: 1},
	})
	require.NoError(t, err)
	require.NoError(t, work.Commit(ctx))

	check := store.NewUnitOfWork()
	a, err := check.ProductRepository().Get(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 2, a.AvailableQuantity)

	b, err := check.ProductRepository().Get(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, 0, b.AvailableQuantity)

	cart1, _ := check.BasketRepository().ListByUser(ctx, 1)
	require.Len(t, cart1, 1, "clamped rows are kept")
	assert.Equal(t, 0, cart1[0].Quantity)
	assert.Equal(t, 0, cart1[0].AvailableQuantity)

	cart2, _ := check.BasketRepository().ListByUser(ctx, 2)
	require.Len(t, cart2, 1)
	assert.Equal(t, 2, cart2[0].Quantity)
	assert.Equal(t, 2, cart2[0].AvailableQuantity)

	wish, _ := check.LovelistRepository().ListByUser(ctx, 2)
	require.Len(t, wish, 1)
	assert.Equal(t, 0, wish[0].AvailableQuantity)
}

func TestDecreaseStock_ConflictLeavesStockUntouchedAfterRollback(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()

	work := store.NewUnitOfWork()
	require.NoError(t, work.Begin(ctx))
	err := svc.DecreaseStock(ctx, work, []orderitem.OrderItem{
		{ProductID: "A", Quantity: 2},
		{ProductID: "B", Quantity: 2},
	})
	assert.ErrorIs(t, err, errs.ErrInventoryConflict)
	require.NoError(t, work.Rollback(ctx))

	a, err := store.NewUnitOfWork().ProductRepository().Get(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 5, a.AvailableQuantity)
}

// lockRecorder records the order in which product rows are decremented.
type lockRecorder struct {
	Tx
	locked []string
}

func (r *lockRecorder) ProductRepository() iproductrepo.IProductRepository {
	return recordingProducts{IProductRepository: r.Tx.ProductRepository(), rec: r}
}

type recordingProducts struct {
	iproductrepo.IProductRepository
	rec *lockRecorder
}

func (p recordingProducts) DecreaseStock(ctx context.Context, id string, qty int) (int, bool, error) {
	p.rec.locked = append(p.rec.locked, id)

	return p.IProductRepository.DecreaseStock(ctx, id, qty)
}

func TestDecreaseStock_LocksInProductOrder(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()

	work := store.NewUnitOfWork()
	require.NoError(t, work.Begin(ctx))
	rec := &lockRecorder{Tx: work}
	items := []orderitem.OrderItem{
		{ProductID: "B", Quantity: 1},
		{ProductID: "A", Quantity: 1},
	}

	require.NoError(t, svc.DecreaseStock(ctx, rec, items))
	require.NoError(t, work.Commit(ctx))

	assert.Equal(t, []string{"A", "B"}, rec.locked)
	assert.Equal(t, "B", items[0].ProductID, "caller's slice is not reordered")
}

func TestDecreaseStock_SkipsUnknownProduct(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()

	err := svc.DecreaseStock(ctx, store.NewUnitOfWork(), []orderitem.OrderItem{{ProductID: "gone", Quantity: 1}})
	assert.NoError(t, err)
}

func TestSyncBasketQuantities_Idempotent(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()
	work := store.NewUnitOfWork()

	require.NoError(t, svc.SyncBasketQuantities(ctx, work, "A", 3))
	first, _ := work.BasketRepository().ListByUser(ctx, 2)

	require.NoError(t, svc.SyncBasketQuantities(ctx, work, "A", 3))
	second, _ := work.BasketRepository().ListByUser(ctx, 2)

	require.Len(t, second, 1)
	assert.Equal(t, first[0].Quantity, second[0].Quantity)
	assert.Equal(t, 3, second[0].Quantity)
	assert.Equal(t, 3, second[0].AvailableQuantity)
}

func TestSyncBasketQuantities_NeverRaisesQuantity(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()
	work := store.NewUnitOfWork()

	require.NoError(t, svc.SyncBasketQuantities(ctx, work, "A", 100))
	cart, _ := work.BasketRepository().ListByUser(ctx, 2)
	assert.Equal(t, 4, cart[0].Quantity)
	assert.Equal(t, 100, cart[0].AvailableQuantity)
}

func TestSetStockAndRemoveProduct(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()

	require.NoError(t, svc.SetStock(ctx, "A", 1))
	cart, _ := store.NewUnitOfWork().BasketRepository().ListByUser(ctx, 2)
	assert.Equal(t, 1, cart[0].Quantity)

	assert.ErrorIs(t, svc.SetStock(ctx, "missing", 1), errs.ErrNotFound)
	assert.ErrorIs(t, svc.SetStock(ctx, "A", -1), errs.ErrValidation)

	require.NoError(t, svc.RemoveProduct(ctx, "B"))
	wish, _ := store.NewUnitOfWork().LovelistRepository().ListByUser(ctx, 2)
	require.Len(t, wish, 1)
	assert.Equal(t, 0, wish[0].AvailableQuantity)
}

func TestRenameProduct(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()

	require.NoError(t, svc.RenameProduct(ctx, "B", "B2"))

	cart, _ := store.NewUnitOfWork().BasketRepository().ListByUser(ctx, 1)
	require.Len(t, cart, 1)
	assert.Equal(t, "B2", cart[0].ProductID)

	wish, _ := store.NewUnitOfWork().LovelistRepository().ListByUser(ctx, 2)
	assert.Equal(t, "B2", wish[0].ProductID)

	assert.ErrorIs(t, svc.RenameProduct(ctx, "A", "A"), errs.ErrValidation)
}
