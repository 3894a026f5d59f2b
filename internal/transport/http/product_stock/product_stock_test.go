package productstock

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/corray333/backend-labs/checkout/internal/dal/memory"
	"github.com/corray333/backend-labs/checkout/internal/service/models/basket"
	"github.com/corray333/backend-labs/checkout/internal/service/models/product"
	"github.com/corray333/backend-labs/checkout/internal/service/services/inventorysvc"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T) (*chi.Mux, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	ctx := context.Background()
	work := store.NewUnitOfWork()
	require.NoError(t, work.ProductRepository().Upsert(ctx, product.Product{ID: "lamp", AvailableQuantity: 9}))
	require.NoError(t, work.BasketRepository().Add(ctx, basket.Item{UserID: 1, ProductID: "lamp", Quantity: 6, AvailableQuantity: 9}))

	svc := inventorysvc.MustNewInventoryService(inventorysvc.WithUnitOfWork(store.Factory()))
	r := chi.NewRouter()
	r.Put("/products/{id}/stock", func(w http.ResponseWriter, r *http.Request) { SetStock(w, r, svc) })
	r.Put("/products/{id}/rename", func(w http.ResponseWriter, r *http.Request) { Rename(w, r, svc) })
	r.Delete("/products/{id}/snapshots", func(w http.ResponseWriter, r *http.Request) { Remove(w, r, svc) })

	return r, store
}

func TestSetStock_ClampsBaskets(t *testing.T) {
	r, store := newRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/products/lamp/stock", strings.NewReader(`{"quantity":4}`)))
	require.Equal(t, http.StatusNoContent, rec.Code)

	cart, err := store.NewUnitOfWork().BasketRepository().ListByUser(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, cart, 1)
	assert.Equal(t, 4, cart[0].Quantity)
}

func TestSetStock_RejectsMissingQuantity(t *testing.T) {
	r, _ := newRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/products/lamp/stock", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRenameAndRemove(t *testing.T) {
	r, store := newRouter(t)
	ctx := context.Background()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/products/lamp/rename", strings.NewReader(`{"newId":"lamp-v2"}`)))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/products/lamp-v2/snapshots", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	cart, err := store.NewUnitOfWork().BasketRepository().ListByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, cart, 1)
	assert.Equal(t, "lamp-v2", cart[0].ProductID)
	assert.Equal(t, 0, cart[0].Quantity)
	assert.Equal(t, 0, cart[0].AvailableQuantity)
}
