package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/corray333/backend-labs/checkout/api"
	"github.com/corray333/backend-labs/checkout/internal/otel"
	"github.com/corray333/backend-labs/checkout/internal/service/models/auditlog"
	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/service/models/user"
	"github.com/corray333/backend-labs/checkout/internal/service/services/ordersvc"
	"github.com/corray333/backend-labs/checkout/internal/service/services/settlementsvc"
	"github.com/corray333/backend-labs/checkout/internal/transport/http/auth"
	createorder "github.com/corray333/backend-labs/checkout/internal/transport/http/create_order"
	getorder "github.com/corray333/backend-labs/checkout/internal/transport/http/get_order"
	listorders "github.com/corray333/backend-labs/checkout/internal/transport/http/list_orders"
	productstock "github.com/corray333/backend-labs/checkout/internal/transport/http/product_stock"
	"github.com/corray333/backend-labs/checkout/internal/transport/http/respond"
	updateorder "github.com/corray333/backend-labs/checkout/internal/transport/http/update_order"
	"github.com/corray333/backend-labs/checkout/internal/transport/http/webhooks"
	"github.com/corray333/backend-labs/checkout/pkg/http/middleware/ratelimit"
	"github.com/corray333/backend-labs/checkout/pkg/http/middleware/trace"
	"github.com/corray333/backend-labs/checkout/pkg/logger"
	"github.com/corray333/backend-labs/checkout/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

type orderService interface {
	CreateOrder(ctx context.Context, m ordersvc.CreateOrderModel, caller *user.User) (order.Order, error)
	GetOrder(ctx context.Context, id int64, caller *user.User, token string) (order.Order, error)
	ListOrders(ctx context.Context, caller *user.User, limit, offset int) ([]order.Order, error)
	UpdateOrder(ctx context.Context, id int64, m ordersvc.UpdateOrderModel, actor *user.User) (order.Order, error)
	AuditTrail(ctx context.Context, id int64, actor *user.User) ([]auditlog.OrderStatusAudit, error)
}

type settlementService interface {
	HandleStripe(ctx context.Context, payload []byte, signature string) (settlementsvc.Result, error)
	HandleMollie(ctx context.Context, form url.Values) (settlementsvc.Result, error)
	HandleYooKassa(ctx context.Context, body []byte, remoteAddr string) (settlementsvc.Result, error)
}

type inventoryService interface {
	SetStock(ctx context.Context, productID string, qty int) error
	RenameProduct(ctx context.Context, oldID, newID string) error
	RemoveProduct(ctx context.Context, productID string) error
}

type HTTPTransport struct {
	server     *http.Server
	router     *chi.Mux
	orders     orderService
	settlement settlementService
	inventory  inventoryService
	authn      *auth.Authenticator
	webhookRL  *ratelimit.Limiter
}

type option func(*HTTPTransport)

//goland:noinspection GoExportedFuncWithUnexportedType
func WithOrderService(svc orderService) option {
	return func(h *HTTPTransport) {
		h.orders = svc
	}
}

//goland:noinspection GoExportedFuncWithUnexportedType
func WithSettlementService(svc settlementService) option {
	return func(h *HTTPTransport) {
		h.settlement = svc
	}
}

//goland:noinspection GoExportedFuncWithUnexportedType
func WithInventoryService(svc inventoryService) option {
	return func(h *HTTPTransport) {
		h.inventory = svc
	}
}

//goland:noinspection GoExportedFuncWithUnexportedType
func WithAuthenticator(a *auth.Authenticator) option {
	return func(h *HTTPTransport) {
		h.authn = a
	}
}

// WithServerMetrics records per-route request counters and latency.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithServerMetrics(m *metrics.ServerMetrics) option {
	return func(h *HTTPTransport) {
		h.router.Use(m.Middleware)
	}
}

// NewHTTPTransport builds the router and server. Options that add middleware
// must come before RegisterRoutes.
func NewHTTPTransport(opts ...option) *HTTPTransport {
	router := newRouter()
	h := &HTTPTransport{
		server:    newServer(router),
		router:    router,
		webhookRL: newWebhookLimiter(),
	}
	for _, opt := range opts {
		opt(h)
	}

	if h.orders == nil || h.settlement == nil || h.inventory == nil || h.authn == nil {
		panic("http transport requires order, settlement and inventory services and an authenticator")
	}

	return h
}

func (h *HTTPTransport) Run() error {
	return h.server.ListenAndServe()
}

func (h *HTTPTransport) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (h *HTTPTransport) Handler() http.Handler {
	return h.router
}

// RegisterRoutes registers the routes for the HTTPTransport.
func (h *HTTPTransport) RegisterRoutes() {
	h.router.Get("/healthz", healthz)
	h.router.Handle("/metrics", metrics.Handler())
	h.router.Get("/swagger/doc.yaml", openAPI)
	h.router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.yaml")))

	h.router.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.webhookRL.Middleware)
			r.Post("/orders/stripewebhook", h.stripeWebhook)
			r.Post("/orders/molliewebhook", h.mollieWebhook)
			r.Post("/orders/yookassawebhook", h.yookassaWebhook)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.authn.Optional)
			r.Post("/orders/create", h.createOrder)
			r.Get("/orders/{id}", h.getOrder)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.authn.Required)
			r.Get("/orders", h.listOrders)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAdmin)
				r.Put("/orders/{id}", h.updateOrder)
				r.Get("/orders/{id}/audit", h.auditTrail)
				r.Put("/products/{id}/stock", h.setStock)
				r.Put("/products/{id}/rename", h.renameProduct)
				r.Delete("/products/{id}/snapshots", h.removeProduct)
			})
		})
	})
}

func (h *HTTPTransport) createOrder(w http.ResponseWriter, r *http.Request) {
	createorder.CreateOrder(w, r, h.orders)
}

func (h *HTTPTransport) getOrder(w http.ResponseWriter, r *http.Request) {
	getorder.GetOrder(w, r, h.orders)
}

func (h *HTTPTransport) listOrders(w http.ResponseWriter, r *http.Request) {
	listorders.ListOrders(w, r, h.orders)
}

func (h *HTTPTransport) updateOrder(w http.ResponseWriter, r *http.Request) {
	updateorder.UpdateOrder(w, r, h.orders)
}

func (h *HTTPTransport) auditTrail(w http.ResponseWriter, r *http.Request) {
	updateorder.AuditTrail(w, r, h.orders)
}

func (h *HTTPTransport) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	webhooks.Stripe(w, r, h.settlement)
}

func (h *HTTPTransport) mollieWebhook(w http.ResponseWriter, r *http.Request) {
	webhooks.Mollie(w, r, h.settlement)
}

func (h *HTTPTransport) yookassaWebhook(w http.ResponseWriter, r *http.Request) {
	webhooks.YooKassa(w, r, h.settlement)
}

func (h *HTTPTransport) setStock(w http.ResponseWriter, r *http.Request) {
	productstock.SetStock(w, r, h.inventory)
}

func (h *HTTPTransport) renameProduct(w http.ResponseWriter, r *http.Request) {
	productstock.Rename(w, r, h.inventory)
}

func (h *HTTPTransport) removeProduct(w http.ResponseWriter, r *http.Request) {
	productstock.Remove(w, r, h.inventory)
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func openAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	if _, err := w.Write(api.OpenAPI); err != nil {
		slog.Error("Failed to write OpenAPI document", "error", err)
	}
}

func newWebhookLimiter() *ratelimit.Limiter {
	perSecond := viper.GetFloat64("server.http.webhook_rate_limit.per_second")
	if perSecond <= 0 {
		perSecond = 20
	}
	burst := viper.GetInt("server.http.webhook_rate_limit.burst")
	if burst <= 0 {
		burst = 40
	}

	return ratelimit.New(perSecond, burst)
}

func newRouter() *chi.Mux {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	// YooKassa source checks read RemoteAddr, so only trust forwarding
	// headers behind a known proxy.
	if viper.GetBool("server.http.trust_proxy") {
		router.Use(middleware.RealIP)
	}
	router.Use(middleware.Recoverer)
	router.Use(logger.NewLoggerMiddleware(slog.Default()))
	router.Use(trace.NewTraceMiddleware(otel.ServiceName))

	allowedOrigins := viper.GetStringSlice("server.http.cors.allowed_origins")
	allowedMethods := viper.GetStringSlice("server.http.cors.allowed_methods")
	allowedHeaders := viper.GetStringSlice("server.http.cors.allowed_headers")
	exposedHeaders := viper.GetStringSlice("server.http.cors.exposed_headers")
	allowCredentials := viper.GetBool("server.http.cors.allow_credentials")
	maxAge := viper.GetInt("server.http.cors.max_age")

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   allowedMethods,
		AllowedHeaders:   allowedHeaders,
		ExposedHeaders:   exposedHeaders,
		AllowCredentials: allowCredentials,
		MaxAge:           maxAge,
	})

	router.Use(c.Handler)

	return router
}

func newServer(router http.Handler) *http.Server {
	return &http.Server{
		Addr:              "0.0.0.0:" + viper.GetString("server.http.port"),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
