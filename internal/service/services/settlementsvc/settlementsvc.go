package settlementsvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/ieventpublisher"
	"github.com/corray333/backend-labs/checkout/internal/dal/uow"
	"github.com/corray333/backend-labs/checkout/internal/service/errs"
	"github.com/corray333/backend-labs/checkout/internal/service/models/event"
	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/service/models/orderitem"
	"github.com/corray333/backend-labs/checkout/internal/service/payment"
	"github.com/corray333/backend-labs/checkout/internal/service/services/inventorysvc"
	"github.com/corray333/backend-labs/checkout/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

type inventory interface {
	DecreaseStock(ctx context.Context, tx inventorysvc.Tx, items []orderitem.OrderItem) error
}

type mailer interface {
	SendOrderDetails(ctx context.Context, o order.Order) error
}

type stripeNotifier interface {
	ParseNotification(payload []byte, signature string) (payment.Notification, error)
}

type mollieNotifier interface {
	ParseNotification(ctx context.Context, form url.Values) (payment.Notification, error)
}

type yookassaNotifier interface {
	ParseNotification(ctx context.Context, body []byte, remoteAddr string) (payment.Notification, error)
}

// Result describes what a notification did to its order.
type Result struct {
	Order order.Order
	// Applied is false when the notification changed nothing: a replay, a
	// non-terminal outcome or an ignored event.
	Applied bool
}

// SettlementService turns provider notifications into order state changes.
// Every order settles at most once; redelivered notifications are acknowledged
// without repeating side effects.
type SettlementService struct {
	newUOW    uow.Factory
	inventory inventory
	mailer    mailer
	publisher ieventpublisher.IEventPublisher
	metrics   *metrics.CheckoutMetrics

	stripe   stripeNotifier
	mollie   mollieNotifier
	yookassa yookassaNotifier
}

// option is a function that configures the SettlementService.
type option func(*SettlementService)

// MustNewSettlementService creates a new SettlementService.
func MustNewSettlementService(opts ...option) *SettlementService {
	s := &SettlementService{}
	for _, opt := range opts {
		opt(s)
	}

	if s.newUOW == nil {
		panic("settlementsvc: unit of work factory is required")
	}
	if s.inventory == nil {
		panic("settlementsvc: inventory service is required")
	}

	return s
}

//goland:noinspection GoExportedFuncWithUnexportedType
func WithUnitOfWork(factory uow.Factory) option {
	return func(s *SettlementService) {
		s.newUOW = factory
	}
}

//goland:noinspection GoExportedFuncWithUnexportedType
func WithInventory(inv inventory) option {
	return func(s *SettlementService) {
		s.inventory = inv
	}
}

//goland:noinspection GoExportedFuncWithUnexportedType
func WithMailer(m mailer) option {
	return func(s *SettlementService) {
		s.mailer = m
	}
}

//goland:noinspection GoExportedFuncWithUnexportedType
func WithPublisher(p ieventpublisher.IEventPublisher) option {
	return func(s *SettlementService) {
		s.publisher = p
	}
}

//goland:noinspection GoExportedFuncWithUnexportedType
func WithMetrics(m *metrics.CheckoutMetrics) option {
	return func(s *SettlementService) {
		s.metrics = m
	}
}

//goland:noinspection GoExportedFuncWithUnexportedType
func WithStripe(n stripeNotifier) option {
	return func(s *SettlementService) {
		s.stripe = n
	}
}

//goland:noinspection GoExportedFuncWithUnexportedType
func WithMollie(n mollieNotifier) option {
	return func(s *SettlementService) {
		s.mollie = n
	}
}

//goland:noinspection GoExportedFuncWithUnexportedType
func WithYooKassa(n yookassaNotifier) option {
	return func(s *SettlementService) {
		s.yookassa = n
	}
}

var errProviderDisabled = fmt.Errorf("%w: provider is not configured", errs.ErrNotFound)

// HandleStripe settles a signed Stripe webhook.
func (s *SettlementService) HandleStripe(ctx context.Context, payload []byte, signature string) (Result, error) {
	if s.stripe == nil {
		return Result{}, errProviderDisabled
	}
	n, err := s.stripe.ParseNotification(payload, signature)
	if err != nil {
		return Result{}, err
	}

	return s.handle(ctx, "Stripe", n)
}

// HandleMollie settles a Mollie webhook after re-reading the payment from the API.
func (s *SettlementService) HandleMollie(ctx context.Context, form url.Values) (Result, error) {
	if s.mollie == nil {
		return Result{}, errProviderDisabled
	}
	n, err := s.mollie.ParseNotification(ctx, form)
	if err != nil {
		return Result{}, err
	}

	return s.handle(ctx, "Mollie", n)
}

// HandleYooKassa settles a YooKassa notification from an allowed source address.
func (s *SettlementService) HandleYooKassa(ctx context.Context, body []byte, remoteAddr string) (Result, error) {
	if s.yookassa == nil {
		return Result{}, errProviderDisabled
	}
	n, err := s.yookassa.ParseNotification(ctx, body, remoteAddr)
	if err != nil {
		return Result{}, err
	}

	return s.handle(ctx, "YooKassa", n)
}

func (s *SettlementService) handle(ctx context.Context, provider string, n payment.Notification) (Result, error) {
	s.metrics.Notification(provider, string(n.Outcome))
	slog.Info("Payment notification received",
		"provider", provider,
		"event", n.Event,
		"order_id", n.OrderID,
		"payment_id", n.PaymentID,
		"outcome", n.Outcome,
	)

	if n.Outcome == "" && n.OrderID == 0 {
		return Result{}, nil
	}

	return s.Settle(ctx, n)
}

// Settle applies a normalised outcome to its order.
//
// Succeeded moves a pending order to paid and takes its items out of stock in
// the same transaction. If stock cannot cover the order it is still marked
// paid, since the money was taken, and flagged with a fulfillment issue.
// Failed moves a pending order to failed. Orders that are already terminal
// are left untouched.
func (s *SettlementService) Settle(ctx context.Context, n payment.Notification) (Result, error) {
	ctx, span := otel.Tracer("checkout-svc").Start(ctx, "settlement.Settle")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("order.id", n.OrderID),
		attribute.String("payment.outcome", string(n.Outcome)),
	)

	ord, err := s.newUOW().OrderRepository().GetByID(ctx, n.OrderID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load order %d: %w", n.OrderID, err)
	}

	if !n.Outcome.IsTerminal() {
		return Result{Order: ord}, nil
	}
	if ord.Status.IsTerminal() {
		return s.replay(ord, n), nil
	}

	switch n.Outcome {
	case payment.OutcomeSucceeded:
		return s.settlePaid(ctx, ord, n)
	default:
		return s.settleFailed(ctx, ord, n)
	}
}

func (s *SettlementService) replay(ord order.Order, n payment.Notification) Result {
	s.metrics.Settlement("replay")
	slog.Info("Order already settled, notification acknowledged",
		"order_id", ord.ID,
		"status", ord.Status,
		"outcome", n.Outcome,
	)

	return Result{Order: ord}
}

func (s *SettlementService) settlePaid(ctx context.Context, ord order.Order, n payment.Notification) (Result, error) {
	applied, err := s.payAndReserve(ctx, ord.ID)
	if errors.Is(err, errs.ErrInventoryConflict) {
		s.metrics.InventoryConflict()
		slog.Error("Paid order cannot be fulfilled from stock",
			"order_id", ord.ID,
			"payment_id", n.PaymentID,
			"error", err,
		)
		applied, err = s.payWithIssue(ctx, ord.ID, order.FulfillmentInsufficientStock)
	}
	if err != nil {
		return Result{}, err
	}
	if !applied {
		return s.replay(ord, n), nil
	}

	settled, err := s.newUOW().OrderRepository().GetByID(ctx, ord.ID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to reload order %d: %w", ord.ID, err)
	}

	s.metrics.Settlement("paid")
	slog.Info("Order paid", "order_id", settled.ID, "payment_id", settled.PaymentID, "fulfillment_issue", settled.FulfillmentIssue)

	s.afterPaid(ctx, settled)

	return Result{Order: settled, Applied: true}, nil
}

// payAndReserve runs pending->paid and the stock decrement as one transaction.
func (s *SettlementService) payAndReserve(ctx context.Context, orderID int64) (bool, error) {
	applied := false
	err := s.inTx(ctx, func(tx uow.UnitOfWork) error {
		ok, err := tx.OrderRepository().TransitionStatus(ctx, orderID, order.StatusPending, order.StatusPaid)
		if err != nil {
			return fmt.Errorf("failed to mark order paid: %w", err)
		}
		if !ok {
			return nil
		}

		items, err := tx.OrderItemRepository().Query(ctx, &orderitem.QueryOrderItemsModel{OrderIds: []int64{orderID}})
		if err != nil {
			return fmt.Errorf("failed to load order items: %w", err)
		}
		if err := s.inventory.DecreaseStock(ctx, tx, items); err != nil {
			return err
		}
		applied = true

		return nil
	})

	return applied, err
}

func (s *SettlementService) payWithIssue(ctx context.Context, orderID int64, issue string) (bool, error) {
	applied := false
	err := s.inTx(ctx, func(tx uow.UnitOfWork) error {
		ok, err := tx.OrderRepository().TransitionStatus(ctx, orderID, order.StatusPending, order.StatusPaid)
		if err != nil {
			return fmt.Errorf("failed to mark order paid: %w", err)
		}
		if !ok {
			return nil
		}
		if err := tx.OrderRepository().SetFulfillmentIssue(ctx, orderID, issue); err != nil {
			return fmt.Errorf("failed to flag order: %w", err)
		}
		applied = true

		return nil
	})

	return applied, err
}

func (s *SettlementService) settleFailed(ctx context.Context, ord order.Order, n payment.Notification) (Result, error) {
	ok, err := s.newUOW().OrderRepository().TransitionStatus(ctx, ord.ID, order.StatusPending, order.StatusFailed)
	if err != nil {
		return Result{}, fmt.Errorf("failed to mark order failed: %w", err)
	}
	if !ok {
		return s.replay(ord, n), nil
	}

	ord.Status = order.StatusFailed
	s.metrics.Settlement("failed")
	slog.Info("Order payment failed", "order_id", ord.ID, "payment_id", ord.PaymentID)

	s.publish(ctx, event.TypeOrderFailed, ord)

	return Result{Order: ord, Applied: true}, nil
}

// afterPaid runs the side effects of a fresh payment. Failures are logged;
// the settlement itself is already committed.
func (s *SettlementService) afterPaid(ctx context.Context, ord order.Order) {
	if ord.UserID != nil {
		if err := s.newUOW().BasketRepository().ClearUser(ctx, *ord.UserID); err != nil {
			slog.Error("Failed to clear basket", "order_id", ord.ID, "user_id", *ord.UserID, "error", err)
		}
	}

	if s.mailer != nil && ord.Email != "" {
		if len(ord.OrderItems) == 0 {
			items, err := s.newUOW().OrderItemRepository().Query(ctx, &orderitem.QueryOrderItemsModel{OrderIds: []int64{ord.ID}})
			if err != nil {
				slog.Error("Failed to load order items for email", "order_id", ord.ID, "error", err)
			}
			ord.OrderItems = items
		}
		if err := s.mailer.SendOrderDetails(ctx, ord); err != nil {
			slog.Error("Failed to send order email", "order_id", ord.ID, "error", err)
		}
	}

	s.publish(ctx, event.TypeOrderPaid, ord)
}

func (s *SettlementService) publish(ctx context.Context, typ event.Type, ord order.Order) {
	if s.publisher == nil {
		return
	}

	e := event.OrderEvent{
		Type:             typ,
		OrderID:          ord.ID,
		UserID:           ord.UserID,
		Provider:         ord.PaymentProviderName,
		PaymentID:        ord.PaymentID,
		TotalCents:       ord.TotalCents,
		Currency:         ord.Currency,
		FulfillmentIssue: ord.FulfillmentIssue,
		OccurredAt:       time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		slog.Error("Failed to publish order event", "order_id", ord.ID, "type", typ, "error", err)
	}
}

func (s *SettlementService) inTx(ctx context.Context, fn func(tx uow.UnitOfWork) error) error {
	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := work.Rollback(ctx); err != nil {
			slog.Error("Failed to rollback settlement transaction", "error", err)
		}
	}()

	if err := fn(work); err != nil {
		return err
	}

	return work.Commit(ctx)
}
