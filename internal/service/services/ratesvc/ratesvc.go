package ratesvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/iratesrepo"
	"github.com/corray333/backend-labs/checkout/internal/service/errs"
	"github.com/corray333/backend-labs/checkout/internal/service/models/currency"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"github.com/spf13/viper"
)

const defaultBaseURL = "https://data.fixer.io/api"

type Config struct {
	BaseURL   string
	AccessKey string
	CacheTTL  time.Duration
	Timeout   time.Duration
	// FailureThreshold consecutive upstream failures open the breaker for OpenTimeout.
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

func ConfigFromViper() Config {
	return Config{
		BaseURL:          viper.GetString("rates.base_url"),
		AccessKey:        os.Getenv("FIXER_ACCESS_KEY"),
		CacheTTL:         viper.GetDuration("rates.cache_ttl"),
		Timeout:          viper.GetDuration("rates.timeout"),
		FailureThreshold: viper.GetUint32("rates.breaker.failure_threshold"),
		OpenTimeout:      viper.GetDuration("rates.breaker.open_timeout"),
	}
}

// RatesService converts amounts between currencies using a Fixer-compatible
// rates API, with a cache in front and a circuit breaker around the API.
type RatesService struct {
	baseURL   string
	accessKey string
	ttl       time.Duration
	cache     iratesrepo.IRatesRepository
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker[decimal.Decimal]
}

// NewRatesService creates a RatesService. cache may be nil.
func NewRatesService(cfg Config, cache iratesrepo.IRatesRepository) *RatesService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = time.Hour
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	threshold := cfg.FailureThreshold
	breaker := gobreaker.NewCircuitBreaker[decimal.Decimal](gobreaker.Settings{
		Name:        "exchange-rates",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return &RatesService{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		accessKey: cfg.AccessKey,
		ttl:       cfg.CacheTTL,
		cache:     cache,
		client:    &http.Client{Timeout: cfg.Timeout},
		breaker:   breaker,
	}
}

// Convert converts minor units of from into minor units of to, rounding half away from zero.
func (s *RatesService) Convert(ctx context.Context, cents int64, from, to currency.Currency) (int64, error) {
	if from == to {
		return cents, nil
	}

	rate, err := s.Rate(ctx, from, to)
	if err != nil {
		return 0, err
	}

	return decimal.New(cents, -2).Mul(rate).Round(2).Shift(2).IntPart(), nil
}

// Rate returns how many units of to one unit of from buys.
func (s *RatesService) Rate(ctx context.Context, from, to currency.Currency) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	if s.cache != nil {
		rate, ok, err := s.cache.Get(ctx, from, to)
		if err != nil {
			slog.Warn("Exchange rate cache read failed", "from", from, "to", to, "error", err)
		} else if ok {
			return rate, nil
		}
	}

	rate, err := s.breaker.Execute(func() (decimal.Decimal, error) {
		return s.fetch(ctx, from, to)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return decimal.Zero, fmt.Errorf("%w: exchange rates unavailable: %v", errs.ErrProvider, err)
		}

		return decimal.Zero, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, from, to, rate, s.ttl); err != nil {
			slog.Warn("Exchange rate cache write failed", "from", from, "to", to, "error", err)
		}
	}

	return rate, nil
}

type latestResponse struct {
	Success bool                       `json:"success"`
	Base    string                     `json:"base"`
	Rates   map[string]decimal.Decimal `json:"rates"`
	Error   *struct {
		Code int    `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
}

// fetch asks for both currencies against the API's base and derives the cross rate.
func (s *RatesService) fetch(ctx context.Context, from, to currency.Currency) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("access_key", s.accessKey)
	q.Set("symbols", from.String()+","+to.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/latest?"+q.Encode(), nil)
	if err != nil {
		return decimal.Zero, err
	}

	res, err := s.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: exchange rates: %v", errs.ErrProvider, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("%w: exchange rates returned %d", errs.ErrProvider, res.StatusCode)
	}

	var body latestResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("%w: exchange rates: %v", errs.ErrProvider, err)
	}
	if !body.Success {
		info := "unknown error"
		if body.Error != nil {
			info = body.Error.Info
		}

		return decimal.Zero, fmt.Errorf("%w: exchange rates: %s", errs.ErrProvider, info)
	}

	if body.Rates == nil {
		return decimal.Zero, fmt.Errorf("%w: exchange rates: empty response", errs.ErrProvider)
	}
	if body.Base != "" {
		if _, ok := body.Rates[body.Base]; !ok {
			body.Rates[body.Base] = decimal.NewFromInt(1)
		}
	}

	fromRate, ok := body.Rates[from.String()]
	if !ok || fromRate.IsZero() {
		return decimal.Zero, fmt.Errorf("%w: no rate for %s", errs.ErrProvider, from)
	}
	toRate, ok := body.Rates[to.String()]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no rate for %s", errs.ErrProvider, to)
	}

	return toRate.DivRound(fromRate, 8), nil
}
