package app

import (
	"testing"

	"github.com/corray333/backend-labs/checkout/internal/service/payment"
	"github.com/corray333/backend-labs/checkout/internal/service/payment/mollie"
	"github.com/corray333/backend-labs/checkout/internal/service/payment/stripe"
	"github.com/stretchr/testify/assert"
)

func TestMustInitProviders_StripeNeedsWebhookSecret(t *testing.T) {
	t.Setenv("MOLLIE_API_KEY", "test_key")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_key")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "")
	t.Setenv("YOOKASSA_SHOP_ID", "")
	t.Setenv("YOOKASSA_SECRET_KEY", "")

	selector := payment.NewSelector()
	n := mustInitProviders(selector)

	assert.Equal(t, []string{mollie.Name}, selector.Names())
	assert.Nil(t, n.stripe)
	assert.NotNil(t, n.mollie)

	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_test")

	selector = payment.NewSelector()
	n = mustInitProviders(selector)

	assert.Equal(t, []string{mollie.Name, stripe.Name}, selector.Names())
	assert.NotNil(t, n.stripe)
}

func TestMustInitProviders_PanicsWithoutProviders(t *testing.T) {
	t.Setenv("MOLLIE_API_KEY", "")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_key")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "")
	t.Setenv("YOOKASSA_SHOP_ID", "")
	t.Setenv("YOOKASSA_SECRET_KEY", "")

	assert.Panics(t, func() { mustInitProviders(payment.NewSelector()) })
}
