package order

import (
	"time"

	"github.com/corray333/backend-labs/checkout/internal/service/models/currency"
	"github.com/corray333/backend-labs/checkout/internal/service/models/orderitem"
)

// FulfillmentInsufficientStock marks a paid order whose items could not be taken from stock.
const FulfillmentInsufficientStock = "insufficient_stock"

// DeliveryData is where and to whom the order ships.
type DeliveryData struct {
	Country     string `json:"country"`
	City        string `json:"city"`
	PostalCode  string `json:"postalCode"`
	Address     string `json:"address"`
	Apartment   string `json:"apartment,omitempty"`
	Company     string `json:"company,omitempty"`
	Name        string `json:"name"`
	Surname     string `json:"surname"`
	PhoneNumber string `json:"phoneNumber"`
	Email       string `json:"email"`
}

// Order represents a checkout order.
//
// TotalCents/Currency is the amount actually charged by the payment provider,
// OriginalTotalCents/OriginalCurrency is what the customer was quoted.
type Order struct {
	ID     int64  `json:"id"`
	Token  string `json:"token"`
	UserID *int64 `json:"userId"`

	SubtotalCents      int64             `json:"subtotalCents"`
	TotalCents         int64             `json:"totalCents"`
	Currency           currency.Currency `json:"currency"`
	OriginalTotalCents int64             `json:"originalTotalCents"`
	OriginalCurrency   currency.Currency `json:"originalCurrency"`
	ShippingCostCents  int64             `json:"shippingCostCents"`

	Promocode                string `json:"promocode,omitempty"`
	PromocodeDiscountCents   int64  `json:"promocodeDiscountCents"`
	PromocodeDiscountPercent int    `json:"promocodeDiscountPercent"`

	Description         string `json:"description"`
	PaymentProviderName string `json:"paymentProviderName"`
	Status              Status `json:"status"`
	PaymentID           string `json:"paymentId,omitempty"`
	ConfirmationURL     string `json:"confirmationUrl,omitempty"`
	FulfillmentIssue    string `json:"fulfillmentIssue,omitempty"`

	DeliveryData

	CreatedAt  time.Time             `json:"createdAt"`
	UpdatedAt  time.Time             `json:"updatedAt"`
	OrderItems []orderitem.OrderItem `json:"items"`
}

// OwnedBy reports whether the order belongs to the given user.
func (o *Order) OwnedBy(userID int64) bool {
	return o.UserID != nil && *o.UserID == userID
}
