package redisrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/corray333/backend-labs/checkout/internal/service/models/currency"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const keyPrefix = "checkout:rate:"

// RatesRepository caches exchange rates as decimal strings with a TTL.
type RatesRepository struct {
	client *redis.Client
}

func NewRatesRepository(client *redis.Client) *RatesRepository {
	return &RatesRepository{client: client}
}

func key(from, to currency.Currency) string {
	return keyPrefix + from.String() + ":" + to.String()
}

func (r *RatesRepository) Get(ctx context.Context, from, to currency.Currency) (decimal.Decimal, bool, error) {
	raw, err := r.client.Get(ctx, key(from, to)).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to get rate: %w", err)
	}

	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to parse cached rate %q: %w", raw, err)
	}

	return rate, true, nil
}

func (r *RatesRepository) Set(
	ctx context.Context,
	from, to currency.Currency,
	rate decimal.Decimal,
	ttl time.Duration,
) error {
	if err := r.client.Set(ctx, key(from, to), rate.String(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to set rate: %w", err)
	}

	return nil
}
