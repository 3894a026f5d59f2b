// Package productstock exposes the catalog change hooks that keep cart and
// wishlist snapshots in line with the catalog.
package productstock

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/corray333/backend-labs/checkout/internal/service/errs"
	"github.com/corray333/backend-labs/checkout/internal/transport/http/respond"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type service interface {
	SetStock(ctx context.Context, productID string, qty int) error
	RenameProduct(ctx context.Context, oldID, newID string) error
	RemoveProduct(ctx context.Context, productID string) error
}

var validate = validator.New()

type setStockRequest struct {
	Quantity *int `json:"quantity" validate:"required,gte=0"`
}

type renameRequest struct {
	NewID string `json:"newId" validate:"required,max=255"`
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}

	return nil
}

// SetStock overwrites a product's stock and propagates it to snapshots.
func SetStock(w http.ResponseWriter, r *http.Request, service service) {
	req := setStockRequest{}
	if err := decode(r, &req); err != nil {
		respond.Error(w, err, "Error decoding set stock request")

		return
	}

	if err := service.SetStock(r.Context(), chi.URLParam(r, "id"), *req.Quantity); err != nil {
		respond.Error(w, err, "Error setting stock")

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Rename moves snapshots of a product to its new id.
func Rename(w http.ResponseWriter, r *http.Request, service service) {
	req := renameRequest{}
	if err := decode(r, &req); err != nil {
		respond.Error(w, err, "Error decoding rename request")

		return
	}

	if err := service.RenameProduct(r.Context(), chi.URLParam(r, "id"), req.NewID); err != nil {
		respond.Error(w, err, "Error renaming product")

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Remove marks snapshots of a deleted product as unavailable.
func Remove(w http.ResponseWriter, r *http.Request, service service) {
	if err := service.RemoveProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		respond.Error(w, err, "Error removing product")

		return
	}

	w.WriteHeader(http.StatusNoContent)
}
