package ordersvc

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/corray333/backend-labs/checkout/internal/dal/uow"
	"github.com/corray333/backend-labs/checkout/internal/service/errs"
	"github.com/corray333/backend-labs/checkout/internal/service/models/auditlog"
	"github.com/corray333/backend-labs/checkout/internal/service/models/currency"
	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/service/models/orderitem"
	"github.com/corray333/backend-labs/checkout/internal/service/models/user"
	"github.com/corray333/backend-labs/checkout/internal/service/payment"
	"github.com/corray333/backend-labs/checkout/internal/service/services/settlementsvc"
	"github.com/corray333/backend-labs/checkout/pkg/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const defaultDescription = "Order"

type providerSelector interface {
	GetProvider(name string) (payment.Provider, error)
}

type converter interface {
	Convert(ctx context.Context, cents int64, from, to currency.Currency) (int64, error)
}

type settler interface {
	Settle(ctx context.Context, n payment.Notification) (settlementsvc.Result, error)
}

// OrderService is a service for managing orders.
type OrderService struct {
	newUOW   uow.Factory
	selector providerSelector
	rates    converter
	settler  settler
	metrics  *metrics.CheckoutMetrics
}

// option is a function that configures the OrderService.
type option func(*OrderService)

// MustNewOrderService creates a new OrderService.
func MustNewOrderService(opts ...option) *OrderService {
	s := &OrderService{}
	for _, opt := range opts {
		opt(s)
	}

	if s.newUOW == nil {
		panic("ordersvc: unit of work factory is required")
	}
	if s.selector == nil {
		panic("ordersvc: payment provider selector is required")
	}

	return s
}

// WithUnitOfWork sets the unit of work factory for the OrderService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithUnitOfWork(factory uow.Factory) option {
	return func(s *OrderService) {
		s.newUOW = factory
	}
}

//goland:noinspection GoExportedFuncWithUnexportedType
func WithSelector(selector providerSelector) option {
	return func(s *OrderService) {
		s.selector = selector
	}
}

// WithRates enables charging providers in their settlement currency.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithRates(rates converter) option {
	return func(s *OrderService) {
		s.rates = rates
	}
}

// WithSettler settles orders whose payment completes during checkout.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithSettler(st settler) option {
	return func(s *OrderService) {
		s.settler = st
	}
}

//goland:noinspection GoExportedFuncWithUnexportedType
func WithMetrics(m *metrics.CheckoutMetrics) option {
	return func(s *OrderService) {
		s.metrics = m
	}
}

// CreateOrderModel is a checkout request. Amounts are in OriginalCurrency,
// as quoted to the customer.
type CreateOrderModel struct {
	Order     order.Order
	ReturnURL string
}

func validateCreate(m CreateOrderModel) error {
	var problems []string
	if len(m.Order.OrderItems) == 0 {
		problems = append(problems, "order has no items")
	}
	for i, it := range m.Order.OrderItems {
		if it.ProductID == "" || it.Quantity <= 0 {
			problems = append(problems, "item "+strconv.Itoa(i)+" needs a product id and a positive quantity")
		}
		if it.PriceCents < 0 || it.SaleCents < 0 {
			problems = append(problems, "item "+strconv.Itoa(i)+" has a negative price")
		}
	}
	if m.Order.OriginalTotalCents < 0 || m.Order.ShippingCostCents < 0 || m.Order.PromocodeDiscountCents < 0 {
		problems = append(problems, "amounts cannot be negative")
	}
	if m.Order.PaymentProviderName == "" {
		problems = append(problems, "payment provider is required")
	}
	if m.ReturnURL == "" {
		problems = append(problems, "return url is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", errs.ErrValidation, strings.Join(problems, "; "))
	}

	return nil
}

// CreateOrder persists a pending order and initiates its payment. The order
// is committed before the provider is called so no transaction stays open
// across the network round trip; if the provider fails the order is deleted
// again and nothing is left stored.
func (s *OrderService) CreateOrder(ctx context.Context, m CreateOrderModel, caller *user.User) (order.Order, error) {
	ctx, span := otel.Tracer("checkout-svc").Start(ctx, "orders.CreateOrder")
	defer span.End()

	if err := validateCreate(m); err != nil {
		return order.Order{}, err
	}

	provider, err := s.selector.GetProvider(m.Order.PaymentProviderName)
	if err != nil {
		return order.Order{}, err
	}
	span.SetAttributes(attribute.String("payment.provider", provider.Name()))

	o, err := s.prepare(ctx, m.Order, provider, caller)
	if err != nil {
		return order.Order{}, err
	}

	o, err = s.insert(ctx, o)
	if err != nil {
		return order.Order{}, err
	}

	returnURL := strings.TrimRight(m.ReturnURL, "/") + "/?orderId=" + strconv.FormatInt(o.ID, 10)
	result, err := provider.ProcessPayment(ctx, o, returnURL)
	s.metrics.PaymentInitiated(provider.Name(), err)
	if err != nil {
		slog.Error("Payment provider rejected checkout", "provider", provider.Name(), "order_id", o.ID, "error", err)
		s.discard(ctx, o.ID)

		return order.Order{}, err
	}

	if err := s.newUOW().OrderRepository().SetPayment(ctx, o.ID, result.PaymentID, result.ConfirmationURL); err != nil {
		return order.Order{}, fmt.Errorf("failed to save payment reference: %w", err)
	}
	o.PaymentID = result.PaymentID
	o.ConfirmationURL = result.ConfirmationURL

	slog.Info("Order created",
		"order_id", o.ID,
		"provider", provider.Name(),
		"payment_id", o.PaymentID,
		"total_cents", o.TotalCents,
		"currency", o.Currency,
	)

	if result.Outcome.IsTerminal() && s.settler != nil {
		res, err := s.settler.Settle(ctx, payment.Notification{
			OrderID:   o.ID,
			PaymentID: result.PaymentID,
			Outcome:   result.Outcome,
			Event:     "checkout",
		})
		if err != nil {
			slog.Error("Failed to settle order at checkout", "order_id", o.ID, "error", err)
		} else {
			res.Order.OrderItems = o.OrderItems
			o = res.Order
		}
	}

	return o, nil
}

// insert stores the order with its items in one transaction.
func (s *OrderService) insert(ctx context.Context, o order.Order) (order.Order, error) {
	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return order.Order{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := work.Rollback(ctx); err != nil {
			slog.Error("Failed to rollback checkout transaction", "error", err)
		}
	}()

	items := o.OrderItems
	o, err := work.OrderRepository().Insert(ctx, o)
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to insert order: %w", err)
	}
	for i := range items {
		items[i].OrderID = o.ID
	}
	o.OrderItems, err = work.OrderItemRepository().BulkInsert(ctx, items)
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to insert order items: %w", err)
	}

	if err := work.Commit(ctx); err != nil {
		return order.Order{}, fmt.Errorf("failed to commit order: %w", err)
	}

	return o, nil
}

// discard removes an order whose payment could not be initiated. It runs
// even if the request context is already cancelled.
func (s *OrderService) discard(ctx context.Context, id int64) {
	if err := s.newUOW().OrderRepository().Delete(context.WithoutCancel(ctx), id); err != nil {
		slog.Error("Failed to delete order after payment failure", "order_id", id, "error", err)
	}
}

// prepare fills the server-owned fields and converts the charge into the
// provider's settlement currency when it has one.
func (s *OrderService) prepare(ctx context.Context, o order.Order, provider payment.Provider, caller *user.User) (order.Order, error) {
	o.ID = 0
	o.Token = uuid.NewString()
	o.UserID = caller.IDPtr()
	o.Status = order.StatusPending
	o.PaymentID = ""
	o.ConfirmationURL = ""
	o.FulfillmentIssue = ""
	if o.Description == "" {
		o.Description = defaultDescription
	}
	if o.OriginalCurrency == "" {
		o.OriginalCurrency = currency.Default
	}
	if o.SubtotalCents == 0 {
		for _, it := range o.OrderItems {
			o.SubtotalCents += it.LineCents()
		}
	}

	o.Currency = o.OriginalCurrency
	o.TotalCents = o.OriginalTotalCents

	scp, ok := provider.(payment.SettlementCurrencyProvider)
	if !ok || scp.SettlementCurrency() == "" || scp.SettlementCurrency() == o.OriginalCurrency {
		return o, nil
	}
	if s.rates == nil {
		return order.Order{}, fmt.Errorf("%w: %s charges in %s and no exchange rates are configured",
			errs.ErrProvider, provider.Name(), scp.SettlementCurrency())
	}

	total, err := s.rates.Convert(ctx, o.OriginalTotalCents, o.OriginalCurrency, scp.SettlementCurrency())
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to convert order total: %w", err)
	}
	o.TotalCents = total
	o.Currency = scp.SettlementCurrency()

	return o, nil
}

// GetOrder returns the order to its owner, or to anyone presenting its token.
// Any other caller gets errs.ErrNotFound so order ids cannot be probed.
func (s *OrderService) GetOrder(ctx context.Context, id int64, caller *user.User, token string) (order.Order, error) {
	work := s.newUOW()

	o, err := work.OrderRepository().GetByID(ctx, id)
	if err != nil {
		return order.Order{}, err
	}

	owner := caller != nil && o.OwnedBy(caller.ID)
	tokenOK := token != "" && subtle.ConstantTimeCompare([]byte(token), []byte(o.Token)) == 1
	if !owner && !tokenOK {
		return order.Order{}, fmt.Errorf("order %d: %w", id, errs.ErrNotFound)
	}

	o.OrderItems, err = work.OrderItemRepository().Query(ctx, &orderitem.QueryOrderItemsModel{OrderIds: []int64{id}})
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to load order items: %w", err)
	}

	return o, nil
}

// ListOrders returns the caller's orders, newest first, with their items.
func (s *OrderService) ListOrders(ctx context.Context, caller *user.User, limit, offset int) ([]order.Order, error) {
	if caller == nil {
		return nil, errs.ErrUnauthorized
	}

	work := s.newUOW()

	orders, err := work.OrderRepository().Query(ctx, &order.QueryOrdersModel{
		UserIds: []int64{caller.ID},
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		return nil, err
	}

	if len(orders) == 0 {
		return []order.Order{}, nil
	}

	orderItemQuery := &orderitem.QueryOrderItemsModel{}
	for _, o := range orders {
		orderItemQuery.OrderIds = append(orderItemQuery.OrderIds, o.ID)
	}
	orderItems, err := work.OrderItemRepository().Query(ctx, orderItemQuery)
	if err != nil {
		return nil, err
	}

	byOrder := make(map[int64][]orderitem.OrderItem, len(orders))
	for _, item := range orderItems {
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}
	for i := range orders {
		orders[i].OrderItems = byOrder[orders[i].ID]
		if orders[i].OrderItems == nil {
			orders[i].OrderItems = []orderitem.OrderItem{}
		}
	}

	return orders, nil
}

// UpdateOrderModel is an administrative override. A nil PaymentID keeps the current one.
type UpdateOrderModel struct {
	Status    string
	PaymentID *string
}

// UpdateOrder sets status and payment id directly, bypassing the state
// machine. It writes an audit row in the same transaction and never runs
// settlement side effects.
func (s *OrderService) UpdateOrder(ctx context.Context, id int64, m UpdateOrderModel, actor *user.User) (order.Order, error) {
	if !actor.IsAdmin() {
		return order.Order{}, errs.ErrForbidden
	}
	status, err := order.ParseStatus(m.Status)
	if err != nil {
		return order.Order{}, fmt.Errorf("%w: status %q", errs.ErrValidation, m.Status)
	}

	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return order.Order{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := work.Rollback(ctx); err != nil {
			slog.Error("Failed to rollback order update", "error", err)
		}
	}()

	current, err := work.OrderRepository().GetByID(ctx, id)
	if err != nil {
		return order.Order{}, err
	}

	paymentID := current.PaymentID
	if m.PaymentID != nil {
		paymentID = *m.PaymentID
	}

	if err := work.OrderRepository().SetStatus(ctx, id, status, paymentID); err != nil {
		return order.Order{}, fmt.Errorf("failed to update order: %w", err)
	}
	if err := work.AuditRepository().Insert(ctx, auditlog.OrderStatusAudit{
		OrderID:       id,
		ActorID:       actor.ID,
		FromStatus:    current.Status.String(),
		ToStatus:      status.String(),
		FromPaymentID: current.PaymentID,
		ToPaymentID:   paymentID,
	}); err != nil {
		return order.Order{}, fmt.Errorf("failed to write audit entry: %w", err)
	}

	updated, err := work.OrderRepository().GetByID(ctx, id)
	if err != nil {
		return order.Order{}, err
	}
	updated.OrderItems, err = work.OrderItemRepository().Query(ctx, &orderitem.QueryOrderItemsModel{OrderIds: []int64{id}})
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to load order items: %w", err)
	}

	if err := work.Commit(ctx); err != nil {
		return order.Order{}, fmt.Errorf("failed to commit order update: %w", err)
	}

	if current.Status != status {
		slog.Warn("Order status overridden",
			"order_id", id,
			"actor_id", actor.ID,
			"from", current.Status,
			"to", status,
		)
	}

	return updated, nil
}

// AuditTrail lists the privileged changes made to an order.
func (s *OrderService) AuditTrail(ctx context.Context, id int64, actor *user.User) ([]auditlog.OrderStatusAudit, error) {
	if !actor.IsAdmin() {
		return nil, errs.ErrForbidden
	}

	entries, err := s.newUOW().AuditRepository().ListByOrder(ctx, id)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}
	if entries == nil {
		entries = []auditlog.OrderStatusAudit{}
	}

	return entries, nil
}
