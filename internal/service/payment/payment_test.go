package payment

import (
	"context"
	"testing"

	"github.com/corray333/backend-labs/checkout/internal/service/errs"
	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name string
}

func (f fakeProvider) Name() string { return f.name }

func (f fakeProvider) ProcessPayment(context.Context, order.Order, string) (Result, error) {
	return Result{}, nil
}

func TestSelector_GetProvider(t *testing.T) {
	s := NewSelector(fakeProvider{name: "Stripe"}, fakeProvider{name: "Mollie"})

	p, err := s.GetProvider("Stripe")
	require.NoError(t, err)
	assert.Equal(t, "Stripe", p.Name())

	_, err = s.GetProvider("PayPal")
	assert.ErrorIs(t, err, errs.ErrUnknownProvider)

	_, err = s.GetProvider("stripe")
	assert.ErrorIs(t, err, errs.ErrUnknownProvider, "lookup is exact")

	assert.Equal(t, []string{"Mollie", "Stripe"}, s.Names())
}

func TestOutcome_OrderStatus(t *testing.T) {
	assert.Equal(t, order.StatusPaid, OutcomeSucceeded.OrderStatus())
	assert.Equal(t, order.StatusFailed, OutcomeFailed.OrderStatus())
	assert.Equal(t, order.StatusPending, OutcomePending.OrderStatus())
	assert.Equal(t, order.StatusPending, Outcome("").OrderStatus())
	assert.False(t, OutcomePending.IsTerminal())
}

func TestParseOrderID(t *testing.T) {
	id, err := ParseOrderID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, raw := range []string{"", "abc", "-1", "0"} {
		_, err := ParseOrderID(raw)
		assert.ErrorIs(t, err, errs.ErrValidation, raw)
	}
}
