package ordersvc

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/corray333/backend-labs/checkout/internal/dal/memory"
	"github.com/corray333/backend-labs/checkout/internal/service/errs"
	"github.com/corray333/backend-labs/checkout/internal/service/models/currency"
	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/service/models/orderitem"
	"github.com/corray333/backend-labs/checkout/internal/service/models/product"
	"github.com/corray333/backend-labs/checkout/internal/service/models/user"
	"github.com/corray333/backend-labs/checkout/internal/service/payment"
	"github.com/corray333/backend-labs/checkout/internal/service/services/inventorysvc"
	"github.com/corray333/backend-labs/checkout/internal/service/services/settlementsvc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name       string
	settlement currency.Currency
	outcome    payment.Outcome
	err        error

	charged   []order.Order
	returnURL string
	onCharge  func(o order.Order)
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) SettlementCurrency() currency.Currency { return p.settlement }

func (p *fakeProvider) ProcessPayment(_ context.Context, o order.Order, returnURL string) (payment.Result, error) {
	if p.onCharge != nil {
		p.onCharge(o)
	}
	if p.err != nil {
		return payment.Result{}, p.err
	}
	p.charged = append(p.charged, o)
	p.returnURL = returnURL
	outcome := p.outcome
	if outcome == "" {
		outcome = payment.OutcomePending
	}

	return payment.Result{
		PaymentID:       fmt.Sprintf("%s_%d", p.name, o.ID),
		ConfirmationURL: "https://pay.example/" + p.name,
		Outcome:         outcome,
	}, nil
}

type fixedRates struct{ factor int64 }

func (r fixedRates) Convert(_ context.Context, cents int64, from, to currency.Currency) (int64, error) {
	if from == to {
		return cents, nil
	}

	return cents * r.factor, nil
}

func newService(t *testing.T, providers ...payment.Provider) (*OrderService, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	require.NoError(t, store.NewUnitOfWork().ProductRepository().Upsert(context.Background(),
		product.Product{ID: "lamp", Title: "Lamp", AvailableQuantity: 4}))

	inv := inventorysvc.MustNewInventoryService(inventorysvc.WithUnitOfWork(store.Factory()))
	settler := settlementsvc.MustNewSettlementService(
		settlementsvc.WithUnitOfWork(store.Factory()),
		settlementsvc.WithInventory(inv),
	)

	svc := MustNewOrderService(
		WithUnitOfWork(store.Factory()),
		WithSelector(payment.NewSelector(providers...)),
		WithRates(fixedRates{factor: 100}),
		WithSettler(settler),
	)

	return svc, store
}

func checkout(provider string) CreateOrderModel {
	return CreateOrderModel{
		Order: order.Order{
			OriginalTotalCents:  2500,
			OriginalCurrency:    currency.CurrencyEUR,
			ShippingCostCents:   500,
			PaymentProviderName: provider,
			DeliveryData:        order.DeliveryData{Name: "Ada", Email: "ada@example.com"},
			OrderItems: []orderitem.OrderItem{
				{ProductID: "lamp", Title: "Lamp", Quantity: 2, PriceCents: 1200, SaleCents: 1000},
			},
		},
		ReturnURL: "https://shop.example/checkout/",
	}
}

func countOrders(t *testing.T, store *memory.Store) int {
	t.Helper()
	orders, err := store.NewUnitOfWork().OrderRepository().Query(context.Background(), &order.QueryOrdersModel{})
	require.NoError(t, err)

	return len(orders)
}

func TestCreateOrder_GuestCanReadWithToken(t *testing.T) {
	stripe := &fakeProvider{name: "Stripe"}
	svc, _ := newService(t, stripe)
	ctx := context.Background()

	created, err := svc.CreateOrder(ctx, checkout("Stripe"), nil)
	require.NoError(t, err)

	assert.Equal(t, order.StatusPending, created.Status)
	assert.Nil(t, created.UserID)
	assert.NotEmpty(t, created.Token)
	assert.Equal(t, "Stripe_1", created.PaymentID)
	assert.Equal(t, int64(2000), created.SubtotalCents)
	assert.Equal(t, "Order", created.Description)
	assert.Equal(t, fmt.Sprintf("https://shop.example/checkout/?orderId=%d", created.ID), stripe.returnURL)

	got, err := svc.GetOrder(ctx, created.ID, nil, created.Token)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	require.Len(t, got.OrderItems, 1)

	_, err = svc.GetOrder(ctx, created.ID, nil, "")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = svc.GetOrder(ctx, created.ID, &user.User{ID: 99}, "wrong-token")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestCreateOrder_OwnerReadsWithoutToken(t *testing.T) {
	svc, _ := newService(t, &fakeProvider{name: "Stripe"})
	ctx := context.Background()
	owner := &user.User{ID: 5}

	created, err := svc.CreateOrder(ctx, checkout("Stripe"), owner)
	require.NoError(t, err)
	require.NotNil(t, created.UserID)
	assert.Equal(t, int64(5), *created.UserID)

	_, err = svc.GetOrder(ctx, created.ID, owner, "")
	assert.NoError(t, err)
}

func TestCreateOrder_UnknownProviderStoresNothing(t *testing.T) {
	svc, store := newService(t, &fakeProvider{name: "Stripe"})

	_, err := svc.CreateOrder(context.Background(), checkout("PayPal"), nil)
	assert.ErrorIs(t, err, errs.ErrUnknownProvider)
	assert.Equal(t, 400, errs.HTTPStatus(err))
	assert.Zero(t, countOrders(t, store))
}

func TestCreateOrder_ProviderFailureRollsBack(t *testing.T) {
	failing := &fakeProvider{name: "Mollie", err: fmt.Errorf("%w: card declined", errs.ErrProvider)}
	svc, store := newService(t, failing)

	_, err := svc.CreateOrder(context.Background(), checkout("Mollie"), nil)
	assert.ErrorIs(t, err, errs.ErrProvider)
	assert.Zero(t, countOrders(t, store))
}

func TestCreateOrder_NoTransactionDuringProviderCall(t *testing.T) {
	for _, failure := range []error{nil, fmt.Errorf("%w: card declined", errs.ErrProvider)} {
		provider := &fakeProvider{name: "Mollie", err: failure}
		svc, store := newService(t, provider)

		provider.onCharge = func(o order.Order) {
			found := make(chan error, 1)
			go func() {
				_, err := store.NewUnitOfWork().OrderRepository().GetByID(context.Background(), o.ID)
				found <- err
			}()

			select {
			case err := <-found:
				assert.NoError(t, err, "order is committed before the provider is called")
			case <-time.After(2 * time.Second):
				t.Error("store is still locked by the checkout transaction")
			}
		}

		_, err := svc.CreateOrder(context.Background(), checkout("Mollie"), nil)
		if failure != nil {
			assert.ErrorIs(t, err, errs.ErrProvider)
			assert.Zero(t, countOrders(t, store), "failed checkout is deleted again")

			continue
		}
		require.NoError(t, err)
		assert.Equal(t, 1, countOrders(t, store))
	}
}

func TestCreateOrder_ConvertsToSettlementCurrency(t *testing.T) {
	yk := &fakeProvider{name: "YooKassa", settlement: currency.CurrencyRUB}
	svc, _ := newService(t, yk)

	created, err := svc.CreateOrder(context.Background(), checkout("YooKassa"), nil)
	require.NoError(t, err)

	assert.Equal(t, currency.CurrencyRUB, created.Currency)
	assert.Equal(t, int64(250000), created.TotalCents)
	assert.Equal(t, currency.CurrencyEUR, created.OriginalCurrency)
	assert.Equal(t, int64(2500), created.OriginalTotalCents)
	require.Len(t, yk.charged, 1)
	assert.Equal(t, int64(250000), yk.charged[0].TotalCents)
}

func TestCreateOrder_ImmediatePaymentSettles(t *testing.T) {
	svc, store := newService(t, &fakeProvider{name: "Stripe", outcome: payment.OutcomeSucceeded})

	created, err := svc.CreateOrder(context.Background(), checkout("Stripe"), nil)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPaid, created.Status)

	p, err := store.NewUnitOfWork().ProductRepository().Get(context.Background(), "lamp")
	require.NoError(t, err)
	assert.Equal(t, 2, p.AvailableQuantity)
}

func TestCreateOrder_Validation(t *testing.T) {
	svc, _ := newService(t, &fakeProvider{name: "Stripe"})

	m := checkout("Stripe")
	m.Order.OrderItems = nil
	m.ReturnURL = ""

	_, err := svc.CreateOrder(context.Background(), m, nil)
	assert.ErrorIs(t, err, errs.ErrValidation)
	assert.Contains(t, err.Error(), "no items")
	assert.Contains(t, err.Error(), "return url")
}

func TestListOrders(t *testing.T) {
	svc, _ := newService(t, &fakeProvider{name: "Stripe"})
	ctx := context.Background()
	alice, bob := &user.User{ID: 1}, &user.User{ID: 2}

	for range 2 {
		_, err := svc.CreateOrder(ctx, checkout("Stripe"), alice)
		require.NoError(t, err)
	}
	_, err := svc.CreateOrder(ctx, checkout("Stripe"), bob)
	require.NoError(t, err)

	orders, err := svc.ListOrders(ctx, alice, 0, 0)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	for _, o := range orders {
		assert.True(t, o.OwnedBy(alice.ID))
		assert.Len(t, o.OrderItems, 1)
	}

	_, err = svc.ListOrders(ctx, nil, 0, 0)
	assert.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestUpdateOrder_WritesAuditTrail(t *testing.T) {
	svc, _ := newService(t, &fakeProvider{name: "Stripe"})
	ctx := context.Background()
	admin := &user.User{ID: 42, Role: user.RoleAdmin}

	created, err := svc.CreateOrder(ctx, checkout("Stripe"), nil)
	require.NoError(t, err)

	paymentID := "manual_1"
	updated, err := svc.UpdateOrder(ctx, created.ID, UpdateOrderModel{Status: "paid", PaymentID: &paymentID}, admin)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPaid, updated.Status)
	assert.Equal(t, "manual_1", updated.PaymentID)

	// the override bypasses the state machine
	updated, err = svc.UpdateOrder(ctx, created.ID, UpdateOrderModel{Status: "pending"}, admin)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, updated.Status)
	assert.Equal(t, "manual_1", updated.PaymentID)

	trail, err := svc.AuditTrail(ctx, created.ID, admin)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, "pending", trail[0].FromStatus)
	assert.Equal(t, "paid", trail[0].ToStatus)
	assert.Equal(t, created.PaymentID, trail[0].FromPaymentID)
	assert.Equal(t, int64(42), trail[1].ActorID)
}

func TestUpdateOrder_Errors(t *testing.T) {
	svc, _ := newService(t, &fakeProvider{name: "Stripe"})
	ctx := context.Background()
	admin := &user.User{ID: 1, Role: user.RoleAdmin}

	_, err := svc.UpdateOrder(ctx, 1, UpdateOrderModel{Status: "paid"}, &user.User{ID: 1, Role: "USER"})
	assert.ErrorIs(t, err, errs.ErrForbidden)

	_, err = svc.UpdateOrder(ctx, 1, UpdateOrderModel{Status: "shipped"}, admin)
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = svc.UpdateOrder(ctx, 999, UpdateOrderModel{Status: "paid"}, admin)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}
