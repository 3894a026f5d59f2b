package getorder

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/corray333/backend-labs/checkout/internal/service/errs"
	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/service/models/user"
	"github.com/corray333/backend-labs/checkout/internal/transport/http/auth"
	"github.com/corray333/backend-labs/checkout/internal/transport/http/respond"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/schema"
)

type service interface {
	GetOrder(ctx context.Context, id int64, caller *user.User, token string) (order.Order, error)
}

var decoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)

	return d
}()

type getOrderRequest struct {
	Token string `schema:"token"`
}

// ParseID reads the {id} route parameter.
func ParseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid order id", errs.ErrValidation)
	}

	return id, nil
}

// GetOrder serves an order to its owner or to a holder of its token.
func GetOrder(w http.ResponseWriter, r *http.Request, service service) {
	id, err := ParseID(r)
	if err != nil {
		respond.Error(w, err, "Error parsing order id")

		return
	}

	query := &getOrderRequest{}
	if err := decoder.Decode(query, r.URL.Query()); err != nil {
		respond.Error(w, fmt.Errorf("%w: %v", errs.ErrValidation, err), "Error decoding request")

		return
	}

	o, err := service.GetOrder(r.Context(), id, auth.UserFromContext(r.Context()), query.Token)
	if err != nil {
		respond.Error(w, err, "Error getting order")

		return
	}

	respond.JSON(w, http.StatusOK, o)
}
