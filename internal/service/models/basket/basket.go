package basket

import "time"

// Item is a product snapshot in a user's cart. The basket id is the user id.
//
// Quantity never exceeds AvailableQuantity as of the last stock sync.
type Item struct {
	UserID            int64     `json:"userId"`
	ProductID         string    `json:"productId"`
	Quantity          int       `json:"quantity"`
	Title             string    `json:"title"`
	Description       string    `json:"description,omitempty"`
	Photo             string    `json:"photo,omitempty"`
	PriceCents        int64     `json:"priceCents"`
	SaleCents         int64     `json:"saleCents,omitempty"`
	AvailableQuantity int       `json:"availableQuantity"`
	Rating            float64   `json:"rating"`
	IsNew             bool      `json:"isNew"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Clamp applies a new stock level to the snapshot.
func (i *Item) Clamp(available int) {
	i.AvailableQuantity = available
	if i.Quantity > available {
		i.Quantity = available
	}
}
