package listorders

import (
	"context"
	"fmt"
	"net/http"

	"github.com/corray333/backend-labs/checkout/internal/service/errs"
	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/service/models/user"
	"github.com/corray333/backend-labs/checkout/internal/transport/http/auth"
	"github.com/corray333/backend-labs/checkout/internal/transport/http/respond"
	"github.com/gorilla/schema"
)

const maxLimit = 100

type service interface {
	ListOrders(ctx context.Context, caller *user.User, limit, offset int) ([]order.Order, error)
}

var decoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)

	return d
}()

type queryOrdersRequest struct {
	Limit  int `schema:"limit"`
	Offset int `schema:"offset"`
}

func (q *queryOrdersRequest) validate() error {
	if q.Limit < 0 || q.Offset < 0 {
		return fmt.Errorf("%w: limit and offset cannot be negative", errs.ErrValidation)
	}
	if q.Limit == 0 || q.Limit > maxLimit {
		q.Limit = maxLimit
	}

	return nil
}

// ListOrders returns the caller's own orders.
func ListOrders(w http.ResponseWriter, r *http.Request, service service) {
	query := &queryOrdersRequest{}
	if err := decoder.Decode(query, r.URL.Query()); err != nil {
		respond.Error(w, fmt.Errorf("%w: %v", errs.ErrValidation, err), "Error decoding request")

		return
	}
	if err := query.validate(); err != nil {
		respond.Error(w, err, "Error validating request")

		return
	}

	orders, err := service.ListOrders(r.Context(), auth.UserFromContext(r.Context()), query.Limit, query.Offset)
	if err != nil {
		respond.Error(w, err, "Error getting orders")

		return
	}

	respond.JSON(w, http.StatusOK, orders)
}
