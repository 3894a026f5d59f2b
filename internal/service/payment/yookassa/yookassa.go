// Package yookassa talks to the YooKassa API v3.
package yookassa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/corray333/backend-labs/checkout/internal/service/errs"
	"github.com/corray333/backend-labs/checkout/internal/service/models/currency"
	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/service/payment"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	Name           = "YooKassa"
	defaultBaseURL = "https://api.yookassa.ru/v3"
)

const (
	EventSucceeded         = "payment.succeeded"
	EventCanceled          = "payment.canceled"
	EventFailed            = "payment.failed"
	EventWaitingForCapture = "payment.waiting_for_capture"
)

// MapStatus maps a YooKassa payment status.
func MapStatus(status string) payment.Outcome {
	switch status {
	case "succeeded":
		return payment.OutcomeSucceeded
	case "canceled":
		return payment.OutcomeFailed
	default:
		// pending, waiting_for_capture
		return payment.OutcomePending
	}
}

// MapEvent maps a notification event name. Unknown events map to "".
func MapEvent(event string) payment.Outcome {
	switch event {
	case EventSucceeded:
		return payment.OutcomeSucceeded
	case EventCanceled, EventFailed:
		return payment.OutcomeFailed
	case EventWaitingForCapture:
		return payment.OutcomePending
	default:
		return ""
	}
}

type Config struct {
	ShopID             string
	SecretKey          string
	BaseURL            string
	Timeout            time.Duration
	SettlementCurrency currency.Currency
	// VerifyNotifications re-fetches the payment and trusts only the API's status.
	VerifyNotifications bool
	// AllowedNetworks restricts notification sources. Empty allows any.
	AllowedNetworks []string
}

func ConfigFromViper() Config {
	return Config{
		ShopID:              os.Getenv("YOOKASSA_SHOP_ID"),
		SecretKey:           os.Getenv("YOOKASSA_SECRET_KEY"),
		BaseURL:             viper.GetString("payments.yookassa.base_url"),
		Timeout:             viper.GetDuration("payments.yookassa.timeout"),
		SettlementCurrency:  payment.ConfiguredCurrency("payments.yookassa.settlement_currency"),
		VerifyNotifications: viper.GetBool("payments.yookassa.verify_notifications"),
		AllowedNetworks:     viper.GetStringSlice("payments.yookassa.allowed_networks"),
	}
}

type Provider struct {
	shopID     string
	secretKey  string
	baseURL    string
	settlement currency.Currency
	verify     bool
	allowed    []*net.IPNet
	client     *http.Client
}

// New panics on a malformed network in cfg.AllowedNetworks.
func New(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	allowed := make([]*net.IPNet, 0, len(cfg.AllowedNetworks))
	for _, cidr := range cfg.AllowedNetworks {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid yookassa network %q: %v", cidr, err))
		}
		allowed = append(allowed, network)
	}

	return &Provider{
		shopID:     cfg.ShopID,
		secretKey:  cfg.SecretKey,
		baseURL:    cfg.BaseURL,
		settlement: cfg.SettlementCurrency,
		verify:     cfg.VerifyNotifications,
		allowed:    allowed,
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
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type confirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

type createPaymentRequest struct {
	Amount       amount            `json:"amount"`
	Capture      bool              `json:"capture"`
	Confirmation confirmation      `json:"confirmation"`
	Description  string            `json:"description"`
	Metadata     map[string]string `json:"metadata"`
}

type paymentObject struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Confirmation *confirmation     `json:"confirmation,omitempty"`
	Metadata     map[string]string `json:"metadata"`
}

type notification struct {
	Type   string         `json:"type"`
	Event  string         `json:"event"`
	Object *paymentObject `json:"object"`
}

func (p *Provider) ProcessPayment(ctx context.Context, o order.Order, returnURL string) (payment.Result, error) {
	description := o.Description
	if description == "" {
		description = "Order"
	}

	body, err := json.Marshal(createPaymentRequest{
		Amount: amount{
			Value:    decimal.New(o.TotalCents, -2).StringFixed(2),
			Currency: o.Currency.String(),
		},
		Capture: true,
		Confirmation: confirmation{
			Type:      "redirect",
			ReturnURL: returnURL,
		},
		Description: description,
		Metadata:    map[string]string{payment.MetadataOrderID: strconv.FormatInt(o.ID, 10)},
	})
	if err != nil {
		return payment.Result{}, err
	}

	var resp paymentObject
	if err := p.do(ctx, http.MethodPost, "/payments", body, &resp); err != nil {
		return payment.Result{}, err
	}

	result := payment.Result{
		PaymentID: resp.ID,
		Outcome:   MapStatus(resp.Status),
	}
	if resp.Confirmation != nil {
		result.ConfirmationURL = resp.Confirmation.ConfirmationURL
	}

	return result, nil
}

// ParseNotification validates the source address and decodes the JSON body.
func (p *Provider) ParseNotification(ctx context.Context, body []byte, remoteAddr string) (payment.Notification, error) {
	if !p.sourceAllowed(remoteAddr) {
		return payment.Notification{}, fmt.Errorf("%w: notification source %s", errs.ErrForbidden, remoteAddr)
	}

	var n notification
	if err := json.Unmarshal(body, &n); err != nil || n.Object == nil {
		return payment.Notification{}, fmt.Errorf("%w: invalid notification data", errs.ErrValidation)
	}

	obj := *n.Object
	outcome := MapEvent(n.Event)
	if outcome == "" {
		return payment.Notification{PaymentID: obj.ID, Event: n.Event}, nil
	}

	if p.verify {
		if obj.ID == "" {
			return payment.Notification{}, fmt.Errorf("%w: payment id is missing", errs.ErrValidation)
		}
		var fetched paymentObject
		if err := p.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(obj.ID), nil, &fetched); err != nil {
			return payment.Notification{}, payment.Upstream(err)
		}
		obj = fetched
		outcome = MapStatus(fetched.Status)
	}

	orderID, err := payment.ParseOrderID(obj.Metadata[payment.MetadataOrderID])
	if err != nil {
		return payment.Notification{}, err
	}

	return payment.Notification{
		OrderID:   orderID,
		PaymentID: obj.ID,
		Outcome:   outcome,
		Event:     n.Event,
	}, nil
}

func (p *Provider) sourceAllowed(remoteAddr string) bool {
	if len(p.allowed) == 0 {
		return true
	}

	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	for _, network := range p.allowed {
		if network.Contains(ip) {
			return true
		}
	}

	return false
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
	req.SetBasicAuth(p.shopID, p.secretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotence-Key", uuid.NewString())
	}

	res, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: yookassa: %v", errs.ErrProvider, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: yookassa: %v", errs.ErrProvider, err)
	}

	if res.StatusCode == http.StatusNotFound && method == http.MethodGet {
		return fmt.Errorf("yookassa payment: %w", errs.ErrNotFound)
	}
	if res.StatusCode >= 300 {
		return fmt.Errorf("%w: yookassa returned %d: %s", errs.ErrProvider, res.StatusCode, bytes.TrimSpace(raw))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: yookassa: malformed response: %v", errs.ErrProvider, err)
	}

	return nil
}
