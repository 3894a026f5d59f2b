package createorder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/corray333/backend-labs/checkout/internal/service/errs"
	"github.com/corray333/backend-labs/checkout/internal/service/models/currency"
	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/service/models/orderitem"
	"github.com/corray333/backend-labs/checkout/internal/service/models/user"
	"github.com/corray333/backend-labs/checkout/internal/service/services/ordersvc"
	"github.com/corray333/backend-labs/checkout/internal/transport/http/auth"
	"github.com/corray333/backend-labs/checkout/internal/transport/http/respond"
	"github.com/go-playground/validator/v10"
)

// service is an interface for the service layer.
type service interface {
	CreateOrder(ctx context.Context, m ordersvc.CreateOrderModel, caller *user.User) (order.Order, error)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// itemInCreateOrderRequest is one cart line as the storefront priced it.
type itemInCreateOrderRequest struct {
	ProductID  string `json:"productId"  validate:"required"`
	Title      string `json:"title"      validate:"required"`
	Quantity   int    `json:"quantity"   validate:"gt=0"`
	PriceCents int64  `json:"priceCents" validate:"gte=0"`
	SaleCents  int64  `json:"saleCents"  validate:"gte=0"`
	Photo      string `json:"photo"`
}

func (r *itemInCreateOrderRequest) toModel() orderitem.OrderItem {
	return orderitem.OrderItem{
		ProductID:  r.ProductID,
		Title:      r.Title,
		Quantity:   r.Quantity,
		PriceCents: r.PriceCents,
		SaleCents:  r.SaleCents,
		Photo:      r.Photo,
	}
}

type deliveryInCreateOrderRequest struct {
	Country     string `json:"country"     validate:"required"`
	City        string `json:"city"        validate:"required"`
	PostalCode  string `json:"postalCode"`
	Address     string `json:"address"     validate:"required"`
	Apartment   string `json:"apartment"`
	Company     string `json:"company"`
	Name        string `json:"name"        validate:"required"`
	Surname     string `json:"surname"`
	PhoneNumber string `json:"phoneNumber"`
	Email       string `json:"email"       validate:"omitempty,email"`
}

// createOrderRequest represents a create order request.
type createOrderRequest struct {
	Items                    []itemInCreateOrderRequest   `json:"items"                    validate:"required,min=1,dive"`
	TotalCents               int64                        `json:"totalCents"               validate:"gte=0"`
	Currency                 string                       `json:"currency"`
	Promocode                string                       `json:"promocode"`
	PromocodeDiscountCents   int64                        `json:"promocodeDiscountCents"   validate:"gte=0"`
	PromocodeDiscountPercent int                          `json:"promocodeDiscountPercent" validate:"gte=0,lte=100"`
	PaymentProviderName      string                       `json:"paymentProviderName"      validate:"required"`
	ShippingCostCents        int64                        `json:"shippingCostCents"        validate:"gte=0"`
	DeliveryData             deliveryInCreateOrderRequest `json:"deliveryData"`
	Description              string                       `json:"description"`
	ReturnURL                string                       `json:"returnUrl"                validate:"required,url"`
}

// Validate validates the create order request.
func (r *createOrderRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}

	return nil
}

func (r *createOrderRequest) toModel() (ordersvc.CreateOrderModel, error) {
	cur, err := currency.ParseCurrency(r.Currency)
	if err != nil {
		return ordersvc.CreateOrderModel{}, fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}

	items := make([]orderitem.OrderItem, len(r.Items))
	for i := range r.Items {
		items[i] = r.Items[i].toModel()
	}

	d := r.DeliveryData

	return ordersvc.CreateOrderModel{
		Order: order.Order{
			OriginalTotalCents:       r.TotalCents,
			OriginalCurrency:         cur,
			ShippingCostCents:        r.ShippingCostCents,
			Promocode:                r.Promocode,
			PromocodeDiscountCents:   r.PromocodeDiscountCents,
			PromocodeDiscountPercent: r.PromocodeDiscountPercent,
			PaymentProviderName:      r.PaymentProviderName,
			Description:              r.Description,
			DeliveryData: order.DeliveryData{
				Country:     d.Country,
				City:        d.City,
				PostalCode:  d.PostalCode,
				Address:     d.Address,
				Apartment:   d.Apartment,
				Company:     d.Company,
				Name:        d.Name,
				Surname:     d.Surname,
				PhoneNumber: d.PhoneNumber,
				Email:       d.Email,
			},
			OrderItems: items,
		},
		ReturnURL: r.ReturnURL,
	}, nil
}

// CreateOrder handles checkout. Anonymous callers get a guest order whose
// token is the only way to read it back.
func CreateOrder(w http.ResponseWriter, r *http.Request, service service) {
	req := createOrderRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, fmt.Errorf("%w: %v", errs.ErrValidation, err), "Error decoding request body for create order")

		return
	}

	if err := req.Validate(); err != nil {
		respond.Error(w, err, "Error validating request body for create order")

		return
	}

	model, err := req.toModel()
	if err != nil {
		respond.Error(w, err, "Error converting create order request to model")

		return
	}

	created, err := service.CreateOrder(r.Context(), model, auth.UserFromContext(r.Context()))
	if err != nil {
		respond.Error(w, err, "Error creating order")

		return
	}

	respond.JSON(w, http.StatusOK, created)
}
