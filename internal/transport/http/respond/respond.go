// Package respond writes JSON responses and maps service errors to status codes.
package respond

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/corray333/backend-labs/checkout/internal/service/errs"
)

type errorResponse struct {
	Message string `json:"message"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error sending response", "error", err)
	}
}

// Error logs err under msg and writes it with the status errs.HTTPStatus
// assigns. Internal errors are not echoed to the client.
func Error(w http.ResponseWriter, err error, msg string) {
	status := errs.HTTPStatus(err)

	message := err.Error()
	if status >= http.StatusInternalServerError {
		message = http.StatusText(status)
		slog.Error(msg, "error", err, "status", status)
	} else {
		slog.Warn(msg, "error", err, "status", status)
	}

	JSON(w, status, errorResponse{Message: message})
}
