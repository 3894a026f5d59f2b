// Package mollie talks to the Mollie Payments API v2.
package mollie

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/corray333/backend-labs/checkout/internal/service/errs"
	"github.com/corray333/backend-labs/checkout/internal/service/models/currency"
	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/service/payment"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	Name           = "Mollie"
	defaultBaseURL = "https://api.mollie.com/v2"
)

// MapStatus maps a Mollie payment status.
func MapStatus(status string) payment.Outcome {
	switch status {
	case "paid":
		return payment.OutcomeSucceeded
	case "canceled", "expired", "failed":
		return payment.OutcomeFailed
	default:
		// open, pending, authorized
		return payment.OutcomePending
	}
}

type Config struct {
	APIKey             string
	BaseURL            string
	WebhookURL         string
	Timeout            time.Duration
	SettlementCurrency currency.Currency
}

func ConfigFromViper() Config {
	return Config{
		APIKey:             os.Getenv("MOLLIE_API_KEY"),
		BaseURL:            viper.GetString("payments.mollie.base_url"),
		WebhookURL:         viper.GetString("payments.mollie.webhook_url"),
		Timeout:            viper.GetDuration("payments.mollie.timeout"),
		SettlementCurrency: payment.ConfiguredCurrency("payments.mollie.settlement_currency"),
	}
}

type Provider struct {
	apiKey     string
	baseURL    string
	webhookURL string
	settlement currency.Currency
	client     *http.Client
}

func New(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	return &Provider{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		webhookURL: cfg.WebhookURL,
		settlement: cfg.SettlementCurrency,
		client:     &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *Provider) Name() string {
	return Name
}

func (p *Provider) SettlementCurrency() currency.Currency {
	return p.settlement
}

type amount struct {
	Currency string `json:"currency"`
	Value    string `json:"value"`
}

type createPaymentRequest struct {
	Amount      amount            `json:"amount"`
	Description string            `json:"description"`
	RedirectURL string            `json:"redirectUrl"`
	WebhookURL  string            `json:"webhookUrl,omitempty"`
	Metadata    map[string]string `json:"metadata"`
}

type paymentResponse struct {
	ID       string            `json:"id"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata"`
	Links    struct {
		Checkout struct {
			Href string `json:"href"`
		} `json:"checkout"`
	} `json:"_links"`
}

// FormatAmount renders minor units the way Mollie expects: "10.00".
func FormatAmount(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

func (p *Provider) ProcessPayment(ctx context.Context, o order.Order, returnURL string) (payment.Result, error) {
	description := o.Description
	if description == "" {
		description = "Order"
	}

	body, err := json.Marshal(createPaymentRequest{
		Amount: amount{
			Currency: o.Currency.String(),
			Value:    FormatAmount(o.TotalCents),
		},
		Description: description,
		RedirectURL: returnURL,
		WebhookURL:  p.webhookURL,
		Metadata:    map[string]string{payment.MetadataOrderID: strconv.FormatInt(o.ID, 10)},
	})
	if err != nil {
		return payment.Result{}, err
	}

	var resp paymentResponse
	if err := p.do(ctx, http.MethodPost, "/payments", body, &resp); err != nil {
		return payment.Result{}, err
	}

	return payment.Result{
		PaymentID:       resp.ID,
		ConfirmationURL: resp.Links.Checkout.Href,
		Outcome:         MapStatus(resp.Status),
	}, nil
}

// ParseNotification handles Mollie's form-encoded "id=tr_..." webhook. The
// call is unsigned, so the payment is fetched back from the API and only the
// API's answer is trusted.
func (p *Provider) ParseNotification(ctx context.Context, form url.Values) (payment.Notification, error) {
	id := form.Get("id")
	if id == "" {
		return payment.Notification{}, fmt.Errorf("%w: payment id is missing", errs.ErrValidation)
	}

	var resp paymentResponse
	if err := p.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(id), nil, &resp); err != nil {
		return payment.Notification{}, payment.Upstream(err)
	}

	orderID, err := payment.ParseOrderID(resp.Metadata[payment.MetadataOrderID])
	if err != nil {
		return payment.Notification{}, err
	}

	return payment.Notification{
		OrderID:   orderID,
		PaymentID: resp.ID,
		Outcome:   MapStatus(resp.Status),
		Event:     "payment." + resp.Status,
	}, nil
}

func (p *Provider) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: mollie: %v", errs.ErrProvider, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: mollie: %v", errs.ErrProvider, err)
	}

	if res.StatusCode == http.StatusNotFound && method == http.MethodGet {
		return fmt.Errorf("mollie payment: %w", errs.ErrNotFound)
	}
	if res.StatusCode >= 300 {
		return fmt.Errorf("%w: mollie returned %d: %s", errs.ErrProvider, res.StatusCode, bytes.TrimSpace(raw))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: mollie: malformed response: %v", errs.ErrProvider, err)
	}

	return nil
}
