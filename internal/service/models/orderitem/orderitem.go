package orderitem

import (
	"time"
)

// OrderItem is a frozen snapshot of a cart line at checkout time.
type OrderItem struct {
	ID         int64     `json:"id"`
	OrderID    int64     `json:"orderId"`
	ProductID  string    `json:"productId"`
	Quantity   int       `json:"quantity"`
	Title      string    `json:"title"`
	Photo      string    `json:"photo,omitempty"`
	PriceCents int64     `json:"priceCents"`
	SaleCents  int64     `json:"saleCents,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// UnitCents is the price the customer pays per unit: the sale price when one is set.
func (i OrderItem) UnitCents() int64 {
	if i.SaleCents > 0 {
		return i.SaleCents
	}

	return i.PriceCents
}

// LineCents is UnitCents times quantity.
func (i OrderItem) LineCents() int64 {
	return i.UnitCents() * int64(i.Quantity)
}
