package mailer

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/corray333/backend-labs/checkout/internal/service/models/currency"
	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/service/models/orderitem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleOrder() order.Order {
	return order.Order{
		ID:                       42,
		OriginalTotalCents:       12350,
		OriginalCurrency:         currency.CurrencyEUR,
		ShippingCostCents:        500,
		Promocode:                "SPRING",
		PromocodeDiscountCents:   1000,
		PromocodeDiscountPercent: 10,
		CreatedAt:                time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		DeliveryData: order.DeliveryData{
			Country:   "Netherlands",
			City:      "Utrecht",
			Address:   "Oudegracht 1",
			Apartment: "2b",
			Name:      "Sam",
			Surname:   "Jansen",
			Email:     "sam@example.com",
		},
		OrderItems: []orderitem.OrderItem{
			{Title: "Lamp <deluxe>", Quantity: 2, PriceCents: 5000, SaleCents: 4500, Photo: "lamp.png"},
			{Title: "Vase", Quantity: 1, PriceCents: 2350},
		},
	}
}

func TestRenderOrderDetails(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderOrderDetails(&buf, sampleOrder(), "https://cdn.example/"))
	html := buf.String()

	assert.Contains(t, html, "№42")
	assert.Contains(t, html, "45.00 EUR", "sale price wins")
	assert.Contains(t, html, "23.50 EUR")
	assert.Contains(t, html, "123.50 EUR")
	assert.Contains(t, html, `Promocode "SPRING" (-10%)`)
	assert.Contains(t, html, "11 March 2025")
	assert.Contains(t, html, "apt. 2b")
	assert.Contains(t, html, "https://cdn.example/lamp.png")
	assert.Contains(t, html, "Lamp &lt;deluxe&gt;", "titles are escaped")
}

func TestSendOrderDetails_SkipsWithoutEmail(t *testing.T) {
	m, err := New(Config{Host: "localhost", From: "shop@example.com"})
	require.NoError(t, err)

	o := sampleOrder()
	o.Email = ""
	assert.NoError(t, m.SendOrderDetails(context.Background(), o))
}
