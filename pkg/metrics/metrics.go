package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "checkout"

type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

func NewServerMetrics(reg prometheus.Registerer, service string) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})

	reg.MustRegister(requests, latency)

	return &ServerMetrics{Requests: requests, LatencyMS: latency}
}

// Middleware labels requests with the matched chi route pattern.
func (m *ServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		handler := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			handler = r.Method + " " + rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.Requests.WithLabelValues(handler, strconv.Itoa(status)).Inc()
		m.LatencyMS.WithLabelValues(handler).Observe(float64(time.Since(start).Milliseconds()))
	})
}

// CheckoutMetrics counts payment and settlement activity. A nil
// *CheckoutMetrics is valid and records nothing.
type CheckoutMetrics struct {
	Payments           *prometheus.CounterVec
	Notifications      *prometheus.CounterVec
	Settlements        *prometheus.CounterVec
	InventoryConflicts prometheus.Counter
}

func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	m := &CheckoutMetrics{
		Payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_initiated_total",
			Help:      "Payments initiated with a provider.",
		}, []string{"provider", "result"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_notifications_total",
			Help:      "Webhook notifications received per provider and normalised outcome.",
		}, []string{"provider", "outcome"}),
		Settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_total",
			Help:      "Settlement attempts by result.",
		}, []string{"result"}),
		InventoryConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inventory_conflicts_total",
			Help:      "Paid orders that could not be covered from stock.",
		}),
	}
	reg.MustRegister(m.Payments, m.Notifications, m.Settlements, m.InventoryConflicts)

	return m
}

func (m *CheckoutMetrics) PaymentInitiated(provider string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Payments.WithLabelValues(provider, result).Inc()
}

func (m *CheckoutMetrics) Notification(provider, outcome string) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "ignored"
	}
	m.Notifications.WithLabelValues(provider, outcome).Inc()
}

func (m *CheckoutMetrics) Settlement(result string) {
	if m == nil {
		return
	}
	m.Settlements.WithLabelValues(result).Inc()
}

func (m *CheckoutMetrics) InventoryConflict() {
	if m == nil {
		return
	}
	m.InventoryConflicts.Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}
