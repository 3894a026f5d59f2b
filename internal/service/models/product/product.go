package product

// Product is the catalog view this service needs: identity, display fields and stock.
type Product struct {
	ID                string  `json:"id"`
	Title             string  `json:"title"`
	Description       string  `json:"description,omitempty"`
	Photo             string  `json:"photo,omitempty"`
	PriceCents        int64   `json:"priceCents"`
	SaleCents         int64   `json:"saleCents,omitempty"`
	AvailableQuantity int     `json:"availableQuantity"`
	Rating            float64 `json:"rating"`
	IsNew             bool    `json:"isNew"`
}
