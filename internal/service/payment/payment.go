// Package payment defines the uniform contract every payment processor
// adapter implements and the registry used to select one by name.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/corray333/backend-labs/checkout/internal/service/errs"
	"github.com/corray333/backend-labs/checkout/internal/service/models/currency"
	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/spf13/viper"
)

// MetadataOrderID is the metadata key every adapter embeds the order id under.
const MetadataOrderID = "orderId"

// Outcome is a provider status normalised to the order state machine.
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// OrderStatus maps an outcome to the order status it settles to.
func (o Outcome) OrderStatus() order.Status {
	switch o {
	case OutcomeSucceeded:
		return order.StatusPaid
	case OutcomeFailed:
		return order.StatusFailed
	default:
		return order.StatusPending
	}
}

// IsTerminal reports whether the outcome settles the order.
func (o Outcome) IsTerminal() bool {
	return o == OutcomeSucceeded || o == OutcomeFailed
}

// Result is what an adapter returns after initiating a payment.
type Result struct {
	PaymentID       string
	ConfirmationURL string
	Outcome         Outcome
}

// Notification is a webhook call reduced to what settlement needs.
// An empty Outcome means the event is acknowledged but carries no state change.
type Notification struct {
	OrderID   int64
	PaymentID string
	Outcome   Outcome
	Event     string
}

// Provider initiates payments with one processor.
type Provider interface {
	Name() string
	// ProcessPayment charges order.TotalCents in order.Currency and embeds the
	// order id in provider metadata. It never mutates the order.
	ProcessPayment(ctx context.Context, o order.Order, returnURL string) (Result, error)
}

// SettlementCurrencyProvider is implemented by adapters that can only charge
// in one currency. An empty currency means "charge as quoted".
type SettlementCurrencyProvider interface {
	SettlementCurrency() currency.Currency
}

// Selector maps provider names to adapters.
type Selector struct {
	providers map[string]Provider
}

func NewSelector(providers ...Provider) *Selector {
	s := &Selector{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		s.Register(p)
	}

	return s
}

// Register adds p under p.Name(), replacing any previous adapter with that name.
func (s *Selector) Register(p Provider) {
	s.providers[p.Name()] = p
}

// GetProvider returns errs.ErrUnknownProvider for unregistered names.
func (s *Selector) GetProvider(name string) (Provider, error) {
	p, ok := s.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errs.ErrUnknownProvider, name)
	}

	return p, nil
}

// Names lists the registered providers in sorted order.
func (s *Selector) Names() []string {
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// ParseOrderID reads the order id embedded in provider metadata.
func ParseOrderID(raw string) (int64, error) {
	if raw == "" {
		return 0, fmt.Errorf("%w: order id not found in metadata", errs.ErrValidation)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: malformed order id %q", errs.ErrValidation, raw)
	}

	return id, nil
}

// Upstream reclassifies a provider API failure hit while resolving a
// notification. The notification itself was fine, so it must not be
// answered with a 4xx.
func Upstream(err error) error {
	if errors.Is(err, errs.ErrProvider) {
		return fmt.Errorf("%w: %v", errs.ErrUpstream, err)
	}

	return err
}

// ConfiguredCurrency reads an optional settlement currency from viper.
// Unset or invalid values yield "", which means "charge as quoted".
func ConfiguredCurrency(key string) currency.Currency {
	raw := viper.GetString(key)
	if raw == "" {
		return ""
	}
	c, err := currency.ParseCurrency(raw)
	if err != nil {
		slog.Warn("Ignoring invalid settlement currency", "key", key, "value", raw)

		return ""
	}

	return c
}
