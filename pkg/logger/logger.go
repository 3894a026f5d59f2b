package logger

import (
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// NewHandler returns a JSON handler when APP_ENV is "production" and a text
// handler otherwise. A nil opts takes its level from LOG_LEVEL.
func NewHandler(opts *slog.HandlerOptions) slog.Handler {
	if opts == nil {
		opts = &slog.HandlerOptions{Level: levelFromEnv()}
	}

	if strings.EqualFold(os.Getenv("APP_ENV"), "production") {
		return slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.NewTextHandler(os.Stdout, opts)
}

func levelFromEnv() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(os.Getenv("LOG_LEVEL"))); err != nil {
		return slog.LevelInfo
	}

	return level
}

// NewLoggerMiddleware logs one line per request once the response is written.
func NewLoggerMiddleware(log *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}

				attrs := []any{
					"method", r.Method,
					"path", r.URL.Path,
					"status", status,
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()),
					"remote_addr", r.RemoteAddr,
				}
				switch {
				case status >= http.StatusInternalServerError:
					log.Error("Request served", attrs...)
				case status >= http.StatusBadRequest:
					log.Warn("Request served", attrs...)
				default:
					log.Info("Request served", attrs...)
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
