package stripe

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/corray333/backend-labs/checkout/internal/service/errs"
	"github.com/corray333/backend-labs/checkout/internal/service/models/currency"
	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/service/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

const testSecret = "whsec_test"

type fakeSessions struct {
	params  *stripego.CheckoutSessionParams
	session *stripego.CheckoutSession
	err     error
}

func (f *fakeSessions) New(params *stripego.CheckoutSessionParams) (*stripego.CheckoutSession, error) {
	f.params = params

	return f.session, f.err
}

func newTestProvider(sessions *fakeSessions) *Provider {
	return &Provider{sessions: sessions, webhookSecret: testSecret}
}

func TestProcessPayment_BuildsSession(t *testing.T) {
	sessions := &fakeSessions{session: &stripego.CheckoutSession{
		ID:            "cs_test_1",
		URL:           "https://checkout.stripe.com/c/pay/cs_test_1",
		PaymentStatus: stripego.CheckoutSessionPaymentStatusUnpaid,
	}}
	p := newTestProvider(sessions)

	res, err := p.ProcessPayment(context.Background(), order.Order{
		ID:          12,
		TotalCents:  4599,
		Currency:    currency.CurrencyEUR,
		Description: "Order",
	}, "https://shop.example/?orderId=12")
	require.NoError(t, err)

	assert.Equal(t, "cs_test_1", res.PaymentID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", res.ConfirmationURL)
	assert.Equal(t, payment.OutcomePending, res.Outcome)

	require.Len(t, sessions.params.LineItems, 1)
	item := sessions.params.LineItems[0]
	assert.Equal(t, int64(4599), *item.PriceData.UnitAmount)
	assert.Equal(t, "eur", *item.PriceData.Currency)
	assert.Equal(t, "12", sessions.params.Metadata[payment.MetadataOrderID])
	assert.Equal(t, "https://shop.example/?orderId=12", *sessions.params.SuccessURL)
}

func TestProcessPayment_ProviderError(t *testing.T) {
	p := newTestProvider(&fakeSessions{err: errors.New("card_declined")})

	_, err := p.ProcessPayment(context.Background(), order.Order{ID: 1, TotalCents: 100, Currency: currency.CurrencyEUR}, "https://x")
	assert.ErrorIs(t, err, errs.ErrProvider)
}

func signed(t *testing.T, body string) *webhook.SignedPayload {
	t.Helper()

	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: []byte(body),
		Secret:  testSecret,
	})
}

func TestParseNotification(t *testing.T) {
	p := newTestProvider(&fakeSessions{})

	tests := []struct {
		name    string
		body    string
		outcome payment.Outcome
		orderID int64
	}{
		{
			name:    "completed and paid",
			body:    `{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_1","object":"checkout.session","payment_status":"paid","metadata":{"orderId":"7"}}}}`,
			outcome: payment.OutcomeSucceeded,
			orderID: 7,
		},
		{
			name:    "completed but async payment pending",
			body:    `{"id":"evt_2","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_2","object":"checkout.session","payment_status":"unpaid","metadata":{"orderId":"8"}}}}`,
			outcome: payment.OutcomePending,
			orderID: 8,
		},
		{
			name:    "expired",
			body:    `{"id":"evt_3","object":"event","type":"checkout.session.expired","data":{"object":{"id":"cs_3","object":"checkout.session","payment_status":"unpaid","metadata":{"orderId":"9"}}}}`,
			outcome: payment.OutcomeFailed,
			orderID: 9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sp := signed(t, tt.body)

			n, err := p.ParseNotification(sp.Payload, sp.Header)
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, n.Outcome)
			assert.Equal(t, tt.orderID, n.OrderID)
		})
	}
}

func TestParseNotification_Rejects(t *testing.T) {
	p := newTestProvider(&fakeSessions{})
	body := `{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_1","object":"checkout.session","payment_status":"paid","metadata":{}}}}`

	_, err := p.ParseNotification([]byte(body), "t=1,v1=deadbeef")
	assert.ErrorIs(t, err, errs.ErrValidation, "bad signature")

	sp := signed(t, body)
	_, err = p.ParseNotification(sp.Payload, sp.Header)
	assert.ErrorIs(t, err, errs.ErrValidation, "missing order id")
}

func TestParseNotification_IgnoresOtherEvents(t *testing.T) {
	p := newTestProvider(&fakeSessions{})
	sp := signed(t, `{"id":"evt_9","object":"event","type":"customer.created","data":{"object":{"id":"cus_1","object":"customer"}}}`)

	n, err := p.ParseNotification(sp.Payload, sp.Header)
	require.NoError(t, err)
	assert.Empty(t, n.Outcome)
	assert.Equal(t, "customer.created", n.Event)
}

func TestParseNotification_WithoutWebhookSecret(t *testing.T) {
	p := &Provider{sessions: &fakeSessions{}}
	sp := signed(t, `{"id":"evt_1","object":"event","type":"customer.created","data":{"object":{"id":"cus_1","object":"customer"}}}`)

	_, err := p.ParseNotification(sp.Payload, sp.Header)
	require.ErrorIs(t, err, errs.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, errs.HTTPStatus(err))
}
