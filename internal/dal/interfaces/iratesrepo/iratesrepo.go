package iratesrepo

import (
	"context"
	"time"

	"github.com/corray333/backend-labs/checkout/internal/service/models/currency"
	"github.com/shopspring/decimal"
)

// IRatesRepository caches exchange rates.
type IRatesRepository interface {
	// Get reports false when no fresh rate is cached.
	Get(ctx context.Context, from, to currency.Currency) (decimal.Decimal, bool, error)
	Set(ctx context.Context, from, to currency.Currency, rate decimal.Decimal, ttl time.Duration) error
}
