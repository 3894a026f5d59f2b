package httptransport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/corray333/backend-labs/checkout/internal/service/errs"
	"github.com/corray333/backend-labs/checkout/internal/service/models/auditlog"
	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/service/models/user"
	"github.com/corray333/backend-labs/checkout/internal/service/services/ordersvc"
	"github.com/corray333/backend-labs/checkout/internal/service/services/settlementsvc"
	"github.com/corray333/backend-labs/checkout/internal/transport/http/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubOrders struct {
	lastCaller *user.User
}

func (s *stubOrders) CreateOrder(_ context.Context, m ordersvc.CreateOrderModel, caller *user.User) (order.Order, error) {
	s.lastCaller = caller
	m.Order.ID = 1

	return m.Order, nil
}

func (s *stubOrders) GetOrder(_ context.Context, id int64, caller *user.User, token string) (order.Order, error) {
	s.lastCaller = caller
	if token != "tok" && caller == nil {
		return order.Order{}, errs.ErrNotFound
	}

	return order.Order{ID: id}, nil
}

func (s *stubOrders) ListOrders(_ context.Context, caller *user.User, _, _ int) ([]order.Order, error) {
	s.lastCaller = caller

	return []order.Order{}, nil
}

func (s *stubOrders) UpdateOrder(_ context.Context, id int64, m ordersvc.UpdateOrderModel, _ *user.User) (order.Order, error) {
	return order.Order{ID: id, Status: order.Status(m.Status)}, nil
}

func (s *stubOrders) AuditTrail(_ context.Context, _ int64, _ *user.User) ([]auditlog.OrderStatusAudit, error) {
	return nil, nil
}

type stubSettlement struct{ calls int }

func (s *stubSettlement) HandleStripe(context.Context, []byte, string) (settlementsvc.Result, error) {
	s.calls++

	return settlementsvc.Result{}, nil
}

func (s *stubSettlement) HandleMollie(context.Context, url.Values) (settlementsvc.Result, error) {
	s.calls++

	return settlementsvc.Result{}, nil
}

func (s *stubSettlement) HandleYooKassa(context.Context, []byte, string) (settlementsvc.Result, error) {
	s.calls++

	return settlementsvc.Result{}, nil
}

type stubInventory struct{ stock map[string]int }

func (s *stubInventory) SetStock(_ context.Context, id string, qty int) error {
	s.stock[id] = qty

	return nil
}

func (s *stubInventory) RenameProduct(context.Context, string, string) error { return nil }

func (s *stubInventory) RemoveProduct(context.Context, string) error { return nil }

type fixture struct {
	handler    http.Handler
	orders     *stubOrders
	settlement *stubSettlement
	inventory  *stubInventory
	customer   string
	admin      string
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	authn := auth.New("test-secret")
	f := fixture{
		orders:     &stubOrders{},
		settlement: &stubSettlement{},
		inventory:  &stubInventory{stock: map[string]int{}},
	}

	var err error
	f.customer, err = authn.Issue(user.User{ID: 7}, time.Hour)
	require.NoError(t, err)
	f.admin, err = authn.Issue(user.User{ID: 1, Role: user.RoleAdmin}, time.Hour)
	require.NoError(t, err)

	h := NewHTTPTransport(
		WithOrderService(f.orders),
		WithSettlementService(f.settlement),
		WithInventoryService(f.inventory),
		WithAuthenticator(authn),
	)
	h.RegisterRoutes()
	f.handler = h.Handler()

	return f
}

func (f fixture) do(method, target, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	return rec
}

func TestRoutes_Auth(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		method string
		target string
		token  string
		body   string
		status int
	}{
		{"list requires auth", http.MethodGet, "/api/orders", "", "", http.StatusUnauthorized},
		{"list as customer", http.MethodGet, "/api/orders", f.customer, "", http.StatusOK},
		{"get with token", http.MethodGet, "/api/orders/5?token=tok", "", "", http.StatusOK},
		{"get without token", http.MethodGet, "/api/orders/5", "", "", http.StatusNotFound},
		{"update as customer", http.MethodPut, "/api/orders/5", f.customer, `{"status":"paid"}`, http.StatusForbidden},
		{"update as admin", http.MethodPut, "/api/orders/5", f.admin, `{"status":"paid"}`, http.StatusOK},
		{"stock as customer", http.MethodPut, "/api/products/lamp/stock", f.customer, `{"quantity":3}`, http.StatusForbidden},
		{"stock as admin", http.MethodPut, "/api/products/lamp/stock", f.admin, `{"quantity":3}`, http.StatusNoContent},
		{"healthz", http.MethodGet, "/healthz", "", "", http.StatusOK},
		{"openapi", http.MethodGet, "/swagger/doc.yaml", "", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(tt.method, tt.target, tt.token, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	assert.Equal(t, 3, f.inventory.stock["lamp"])
}

func TestRoutes_OptionalAuthIgnoresBadToken(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/orders/5?token=tok", "not-a-jwt", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, f.orders.lastCaller)
}

func TestRoutes_Webhooks(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"stripewebhook", "molliewebhook", "yookassawebhook"} {
		rec := f.do(http.MethodPost, "/api/orders/"+path, "", "{}")
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
	assert.Equal(t, 3, f.settlement.calls)
}
