// Package stripe settles orders through Stripe Checkout Sessions.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/corray333/backend-labs/checkout/internal/service/errs"
	"github.com/corray333/backend-labs/checkout/internal/service/models/currency"
	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/service/payment"
	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

const Name = "Stripe"

const (
	eventSessionCompleted      = "checkout.session.completed"
	eventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	eventAsyncPaymentFailed    = "checkout.session.async_payment_failed"
	eventSessionExpired        = "checkout.session.expired"
)

// MapPaymentStatus maps a Checkout Session payment_status.
func MapPaymentStatus(status string) payment.Outcome {
	switch status {
	case "paid", "no_payment_required":
		return payment.OutcomeSucceeded
	default:
		return payment.OutcomePending
	}
}

type sessionCreator interface {
	New(params *stripego.CheckoutSessionParams) (*stripego.CheckoutSession, error)
}

type Config struct {
	SecretKey          string
	WebhookSecret      string
	SettlementCurrency currency.Currency
}

// ConfigFromViper reads payments.stripe.* and the STRIPE_* secrets.
func ConfigFromViper() Config {
	return Config{
		SecretKey:          os.Getenv("STRIPE_SECRET_KEY"),
		WebhookSecret:      os.Getenv("STRIPE_WEBHOOK_SECRET"),
		SettlementCurrency: payment.ConfiguredCurrency("payments.stripe.settlement_currency"),
	}
}

type Provider struct {
	sessions      sessionCreator
	webhookSecret string
	settlement    currency.Currency
}

func New(cfg Config) *Provider {
	sc := client.New(cfg.SecretKey, nil)

	return &Provider{
		sessions:      sc.CheckoutSessions,
		webhookSecret: cfg.WebhookSecret,
		settlement:    cfg.SettlementCurrency,
	}
}

func (p *Provider) Name() string {
	return Name
}

func (p *Provider) SettlementCurrency() currency.Currency {
	return p.settlement
}

// ProcessPayment opens a Checkout Session with a single line item for the whole order.
func (p *Provider) ProcessPayment(_ context.Context, o order.Order, returnURL string) (payment.Result, error) {
	description := o.Description
	if description == "" {
		description = fmt.Sprintf("Order #%d", o.ID)
	}

	params := &stripego.CheckoutSessionParams{
		Mode: stripego.String(string(stripego.CheckoutSessionModePayment)),
		LineItems: []*stripego.CheckoutSessionLineItemParams{
			{
				PriceData: &stripego.CheckoutSessionLineItemPriceDataParams{
					Currency: stripego.String(o.Currency.Lower()),
					ProductData: &stripego.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripego.String(description),
					},
					UnitAmount: stripego.Int64(o.TotalCents),
				},
				Quantity: stripego.Int64(1),
			},
		},
		SuccessURL:        stripego.String(returnURL),
		CancelURL:         stripego.String(returnURL),
		ClientReferenceID: stripego.String(strconv.FormatInt(o.ID, 10)),
	}
	params.AddMetadata(payment.MetadataOrderID, strconv.FormatInt(o.ID, 10))
	if o.Email != "" {
		params.CustomerEmail = stripego.String(o.Email)
	}

	session, err := p.sessions.New(params)
	if err != nil {
		return payment.Result{}, fmt.Errorf("%w: stripe: %v", errs.ErrProvider, err)
	}

	return payment.Result{
		PaymentID:       session.ID,
		ConfirmationURL: session.URL,
		Outcome:         MapPaymentStatus(string(session.PaymentStatus)),
	}, nil
}

// ParseNotification verifies the Stripe-Signature header over the raw body
// and reduces a checkout.session.* event to a notification.
func (p *Provider) ParseNotification(payload []byte, signature string) (payment.Notification, error) {
	if p.webhookSecret == "" {
		return payment.Notification{}, fmt.Errorf("%w: stripe webhook secret is not configured", errs.ErrNotFound)
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return payment.Notification{}, fmt.Errorf("%w: stripe signature: %v", errs.ErrValidation, err)
	}

	n := payment.Notification{Event: string(event.Type)}

	var outcome payment.Outcome
	switch n.Event {
	case eventSessionCompleted:
		outcome = payment.OutcomePending
	case eventAsyncPaymentSucceeded:
		outcome = payment.OutcomeSucceeded
	case eventAsyncPaymentFailed, eventSessionExpired:
		outcome = payment.OutcomeFailed
	default:
		return n, nil
	}

	if event.Data == nil {
		return n, fmt.Errorf("%w: stripe event without data", errs.ErrValidation)
	}
	var session stripego.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return n, fmt.Errorf("%w: stripe session: %v", errs.ErrValidation, err)
	}
	if n.Event == eventSessionCompleted {
		outcome = MapPaymentStatus(string(session.PaymentStatus))
	}

	orderID, err := payment.ParseOrderID(session.Metadata[payment.MetadataOrderID])
	if err != nil {
		return n, err
	}

	n.OrderID = orderID
	n.PaymentID = session.ID
	n.Outcome = outcome

	return n, nil
}
