package currency

import (
	"database/sql/driver"
	"errors"
	"strings"
)

type Currency string

const (
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
	CurrencyGBP Currency = "GBP"
	CurrencyRUB Currency = "RUB"
)

// Default is used when a checkout request does not name a currency.
const Default = CurrencyEUR

var ErrInvalidCurrency = errors.New("invalid currency")

func (c Currency) String() string {
	return string(c)
}

// Lower returns the ISO code in lower case, as Stripe expects it.
func (c Currency) Lower() string {
	return strings.ToLower(string(c))
}

func (c Currency) Value() (driver.Value, error) {
	return c.String(), nil
}

// ParseCurrency accepts ISO codes in any case. An empty string yields Default.
func ParseCurrency(s string) (Currency, error) {
	if s == "" {
		return Default, nil
	}
	switch c := Currency(strings.ToUpper(s)); c {
	case CurrencyEUR, CurrencyUSD, CurrencyGBP, CurrencyRUB:
		return c, nil
	default:
		return "", ErrInvalidCurrency
	}
}
