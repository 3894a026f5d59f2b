package lovelist

import "time"

// Item is a product snapshot in a user's wishlist.
type Item struct {
	UserID            int64     `json:"userId"`
	ProductID         string    `json:"productId"`
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
