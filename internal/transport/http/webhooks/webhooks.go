// Package webhooks receives payment provider notifications.
//
// A 2xx tells the provider to stop redelivering, so it is returned for every
// notification that was applied or safely ignored, including replays.
package webhooks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/corray333/backend-labs/checkout/internal/service/errs"
	"github.com/corray333/backend-labs/checkout/internal/service/services/settlementsvc"
	"github.com/corray333/backend-labs/checkout/internal/transport/http/respond"
)

const maxBodyBytes = 64 << 10

type service interface {
	HandleStripe(ctx context.Context, payload []byte, signature string) (settlementsvc.Result, error)
	HandleMollie(ctx context.Context, form url.Values) (settlementsvc.Result, error)
	HandleYooKassa(ctx context.Context, body []byte, remoteAddr string) (settlementsvc.Result, error)
}

type ack struct {
	Received bool `json:"received"`
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", errs.ErrValidation, err)
	}

	return body, nil
}

// Stripe verifies the Stripe-Signature header against the raw body.
func Stripe(w http.ResponseWriter, r *http.Request, service service) {
	payload, err := readBody(w, r)
	if err != nil {
		respond.Error(w, err, "Error reading Stripe webhook")

		return
	}

	if _, err := service.HandleStripe(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		respond.Error(w, err, "Error handling Stripe webhook")

		return
	}

	respond.JSON(w, http.StatusOK, ack{Received: true})
}

// Mollie receives a form with the payment id only.
func Mollie(w http.ResponseWriter, r *http.Request, service service) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		respond.Error(w, fmt.Errorf("%w: %v", errs.ErrValidation, err), "Error parsing Mollie webhook")

		return
	}

	if _, err := service.HandleMollie(r.Context(), r.PostForm); err != nil {
		respond.Error(w, err, "Error handling Mollie webhook")

		return
	}

	w.WriteHeader(http.StatusOK)
}

// YooKassa checks the sender address, so RemoteAddr must be the real client
// address (see server.http.trust_proxy).
func YooKassa(w http.ResponseWriter, r *http.Request, service service) {
	body, err := readBody(w, r)
	if err != nil {
		respond.Error(w, err, "Error reading YooKassa webhook")

		return
	}

	if _, err := service.HandleYooKassa(r.Context(), body, r.RemoteAddr); err != nil {
		respond.Error(w, err, "Error handling YooKassa webhook")

		return
	}

	respond.JSON(w, http.StatusOK, ack{Received: true})
}
