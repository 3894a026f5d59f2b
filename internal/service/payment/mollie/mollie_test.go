package mollie

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/corray333/backend-labs/checkout/internal/service/errs"
	"github.com/corray333/backend-labs/checkout/internal/service/models/currency"
	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/service/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "10.00", FormatAmount(1000))
	assert.Equal(t, "0.05", FormatAmount(5))
	assert.Equal(t, "1234.56", FormatAmount(123456))
}

func TestMapStatus(t *testing.T) {
	assert.Equal(t, payment.OutcomeSucceeded, MapStatus("paid"))
	assert.Equal(t, payment.OutcomePending, MapStatus("open"))
	assert.Equal(t, payment.OutcomePending, MapStatus("authorized"))
	assert.Equal(t, payment.OutcomeFailed, MapStatus("expired"))
	assert.Equal(t, payment.OutcomeFailed, MapStatus("canceled"))
}

func TestProcessPayment(t *testing.T) {
	var got createPaymentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payments", r.URL.Path)
		assert.Equal(t, "Bearer test_key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"tr_abc","status":"open","_links":{"checkout":{"href":"https://mollie.test/checkout/tr_abc"}}}`))
	}))
	defer srv.Close()

	p := New(Config{APIKey: "test_key", BaseURL: srv.URL, WebhookURL: "https://shop.example/api/orders/molliewebhook"})

	res, err := p.ProcessPayment(context.Background(), order.Order{
		ID:          5,
		TotalCents:  2550,
		Currency:    currency.CurrencyEUR,
		Description: "Order",
	}, "https://shop.example/?orderId=5")
	require.NoError(t, err)

	assert.Equal(t, "tr_abc", res.PaymentID)
	assert.Equal(t, "https://mollie.test/checkout/tr_abc", res.ConfirmationURL)
	assert.Equal(t, payment.OutcomePending, res.Outcome)

	assert.Equal(t, "25.50", got.Amount.Value)
	assert.Equal(t, "EUR", got.Amount.Currency)
	assert.Equal(t, "5", got.Metadata[payment.MetadataOrderID])
	assert.Equal(t, "https://shop.example/api/orders/molliewebhook", got.WebhookURL)
}

func TestProcessPayment_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"status":422,"title":"Unprocessable Entity"}`, http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	p := New(Config{APIKey: "k", BaseURL: srv.URL})
	_, err := p.ProcessPayment(context.Background(), order.Order{ID: 1, TotalCents: 1, Currency: currency.CurrencyEUR}, "https://x")
	assert.ErrorIs(t, err, errs.ErrProvider)
}

func TestParseNotification_FetchesPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/tr_paid", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"tr_paid","status":"paid","metadata":{"orderId":"77"}}`))
	}))
	defer srv.Close()

	p := New(Config{APIKey: "k", BaseURL: srv.URL})

	n, err := p.ParseNotification(context.Background(), url.Values{"id": {"tr_paid"}})
	require.NoError(t, err)
	assert.Equal(t, int64(77), n.OrderID)
	assert.Equal(t, "tr_paid", n.PaymentID)
	assert.Equal(t, payment.OutcomeSucceeded, n.Outcome)
}

func TestParseNotification_Invalid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/payments/tr_missing" {
			http.NotFound(w, r)

			return
		}
		_, _ = w.Write([]byte(`{"id":"tr_nometa","status":"paid","metadata":null}`))
	}))
	defer srv.Close()

	p := New(Config{APIKey: "k", BaseURL: srv.URL})

	_, err := p.ParseNotification(context.Background(), url.Values{})
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = p.ParseNotification(context.Background(), url.Values{"id": {"tr_missing"}})
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = p.ParseNotification(context.Background(), url.Values{"id": {"tr_nometa"}})
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestParseNotification_Outage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := New(Config{APIKey: "k", BaseURL: srv.URL})

	_, err := p.ParseNotification(context.Background(), url.Values{"id": {"tr_1"}})
	require.ErrorIs(t, err, errs.ErrUpstream)
	assert.Equal(t, http.StatusBadGateway, errs.HTTPStatus(err))

	_, err = p.ProcessPayment(context.Background(), order.Order{ID: 1, TotalCents: 1, Currency: currency.CurrencyEUR}, "https://x")
	require.ErrorIs(t, err, errs.ErrProvider)
	assert.Equal(t, http.StatusBadRequest, errs.HTTPStatus(err), "checkout keeps reporting provider rejections as 400")
}
