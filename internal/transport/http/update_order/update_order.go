package updateorder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/corray333/backend-labs/checkout/internal/service/errs"
	"github.com/corray333/backend-labs/checkout/internal/service/models/auditlog"
	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/service/models/user"
	"github.com/corray333/backend-labs/checkout/internal/service/services/ordersvc"
	"github.com/corray333/backend-labs/checkout/internal/transport/http/auth"
	getorder "github.com/corray333/backend-labs/checkout/internal/transport/http/get_order"
	"github.com/corray333/backend-labs/checkout/internal/transport/http/respond"
	"github.com/go-playground/validator/v10"
)

type service interface {
	UpdateOrder(ctx context.Context, id int64, m ordersvc.UpdateOrderModel, actor *user.User) (order.Order, error)
	AuditTrail(ctx context.Context, id int64, actor *user.User) ([]auditlog.OrderStatusAudit, error)
}

var validate = validator.New()

type updateOrderRequest struct {
	Status    string  `json:"status"    validate:"required,oneof=pending paid failed"`
	PaymentID *string `json:"paymentId" validate:"omitempty,max=255"`
}

// UpdateOrder is the administrative override of status and payment id.
func UpdateOrder(w http.ResponseWriter, r *http.Request, service service) {
	id, err := getorder.ParseID(r)
	if err != nil {
		respond.Error(w, err, "Error parsing order id")

		return
	}

	req := updateOrderRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, fmt.Errorf("%w: %v", errs.ErrValidation, err), "Error decoding request body for update order")

		return
	}
	if err := validate.Struct(req); err != nil {
		respond.Error(w, fmt.Errorf("%w: %v", errs.ErrValidation, err), "Error validating request body for update order")

		return
	}

	updated, err := service.UpdateOrder(r.Context(), id, ordersvc.UpdateOrderModel{
		Status:    req.Status,
		PaymentID: req.PaymentID,
	}, auth.UserFromContext(r.Context()))
	if err != nil {
		respond.Error(w, err, "Error updating order")

		return
	}

	respond.JSON(w, http.StatusOK, updated)
}

// AuditTrail lists the overrides applied to an order.
func AuditTrail(w http.ResponseWriter, r *http.Request, service service) {
	id, err := getorder.ParseID(r)
	if err != nil {
		respond.Error(w, err, "Error parsing order id")

		return
	}

	entries, err := service.AuditTrail(r.Context(), id, auth.UserFromContext(r.Context()))
	if err != nil {
		respond.Error(w, err, "Error getting audit trail")

		return
	}

	respond.JSON(w, http.StatusOK, entries)
}
