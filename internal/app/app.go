package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/ieventpublisher"
	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/kafka"
	"github.com/corray333/backend-labs/checkout/internal/dal/memory"
	"github.com/corray333/backend-labs/checkout/internal/dal/postgres"
	"github.com/corray333/backend-labs/checkout/internal/dal/rabbitmq"
	"github.com/corray333/backend-labs/checkout/internal/dal/redis"
	"github.com/corray333/backend-labs/checkout/internal/dal/repositories/events"
	kafkabroker "github.com/corray333/backend-labs/checkout/internal/dal/repositories/events/kafka"
	rabbitbroker "github.com/corray333/backend-labs/checkout/internal/dal/repositories/events/rabbitmq"
	outboxrepo "github.com/corray333/backend-labs/checkout/internal/dal/repositories/outbox/postgres"
	ratesrepo "github.com/corray333/backend-labs/checkout/internal/dal/repositories/rates/redis"
	"github.com/corray333/backend-labs/checkout/internal/dal/uow"
	"github.com/corray333/backend-labs/checkout/internal/otel"
	"github.com/corray333/backend-labs/checkout/internal/service/mailer"
	"github.com/corray333/backend-labs/checkout/internal/service/models/currency"
	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/service/payment"
	"github.com/corray333/backend-labs/checkout/internal/service/payment/mollie"
	"github.com/corray333/backend-labs/checkout/internal/service/payment/stripe"
	"github.com/corray333/backend-labs/checkout/internal/service/payment/yookassa"
	"github.com/corray333/backend-labs/checkout/internal/service/services/inventorysvc"
	"github.com/corray333/backend-labs/checkout/internal/service/services/ordersvc"
	"github.com/corray333/backend-labs/checkout/internal/service/services/ratesvc"
	"github.com/corray333/backend-labs/checkout/internal/service/services/settlementsvc"
	httptransport "github.com/corray333/backend-labs/checkout/internal/transport/http"
	"github.com/corray333/backend-labs/checkout/internal/transport/http/auth"
	outboxworker "github.com/corray333/backend-labs/checkout/internal/worker/outbox"
	"github.com/corray333/backend-labs/checkout/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

type closer struct {
	name  string
	close func() error
}

// App represents the application.
type App struct {
	transport      *httptransport.HTTPTransport
	outboxWorker   *outboxworker.Worker
	otelController *otel.OtelController
	closers        []closer
}

// MustNewApp creates a new application.
func MustNewApp() *App {
	a := &App{}
	a.otelController = otel.MustInitOtel()

	factory, outboxRepository := a.mustInitStorage()
	broker := a.mustInitBroker()

	reg := prometheus.DefaultRegisterer
	checkoutMetrics := metrics.NewCheckoutMetrics(reg)

	publisher := events.NewPublisher(
		broker,
		viper.GetString("events.destination"),
		events.WithExchange(viper.GetString("events.exchange")),
		events.WithOutbox(outboxRepository),
	)

	inventorySvc := inventorysvc.MustNewInventoryService(
		inventorysvc.WithUnitOfWork(factory),
	)

	selector := payment.NewSelector()
	parsers := mustInitProviders(selector)

	settlementSvc := settlementsvc.MustNewSettlementService(
		settlementsvc.WithUnitOfWork(factory),
		settlementsvc.WithInventory(inventorySvc),
		settlementsvc.WithMailer(mustInitMailer()),
		settlementsvc.WithPublisher(publisher),
		settlementsvc.WithMetrics(checkoutMetrics),
		settlementsvc.WithStripe(parsers.stripe),
		settlementsvc.WithMollie(parsers.mollie),
		settlementsvc.WithYooKassa(parsers.yookassa),
	)

	orderSvc := ordersvc.MustNewOrderService(
		ordersvc.WithUnitOfWork(factory),
		ordersvc.WithSelector(selector),
		ordersvc.WithRates(a.initRates()),
		ordersvc.WithSettler(settlementSvc),
		ordersvc.WithMetrics(checkoutMetrics),
	)

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		panic("JWT_SECRET is not set")
	}

	a.transport = httptransport.NewHTTPTransport(
		httptransport.WithOrderService(orderSvc),
		httptransport.WithSettlementService(settlementSvc),
		httptransport.WithInventoryService(inventorySvc),
		httptransport.WithAuthenticator(auth.New(secret)),
		httptransport.WithServerMetrics(metrics.NewServerMetrics(reg, "http")),
	)
	a.transport.RegisterRoutes()

	a.outboxWorker = outboxworker.NewWorker(outboxRepository, broker)

	return a
}

func (a *App) onClose(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, close: fn})
}

// mustInitStorage picks the backend from storage.driver: "postgres" (default)
// or "memory" for local runs without a database.
func (a *App) mustInitStorage() (uow.Factory, ioutboxrepo.IOutboxRepository) {
	switch driver := viper.GetString("storage.driver"); driver {
	case "memory":
		slog.Warn("Using in-memory storage, data is lost on restart")

		return memory.NewStore().Factory(), memory.NewOutboxRepository()
	case "", "postgres":
		postgresClient := postgres.MustNewClient()
		a.onClose("PostgreSQL", postgresClient.Close)

		return uow.NewFactory(postgresClient), outboxrepo.NewOutboxRepository(postgresClient.DB())
	default:
		panic("unknown storage.driver: " + driver)
	}
}

// mustInitBroker picks the event broker from events.broker: "rabbitmq",
// "kafka" or "log".
func (a *App) mustInitBroker() ieventpublisher.IBroker {
	switch name := viper.GetString("events.broker"); name {
	case "rabbitmq":
		client := rabbitmq.MustNewClient()
		a.onClose("RabbitMQ", client.Close)

		broker, err := rabbitbroker.NewBroker(client, viper.GetString("events.destination"))
		if err != nil {
			panic(err)
		}

		return broker
	case "kafka":
		broker := kafkabroker.NewBroker(kafka.MustNewClient().NewWriter())
		a.onClose("Kafka writer", broker.Close)

		return broker
	case "", "log":
		return events.LogBroker{}
	default:
		panic("unknown events.broker: " + name)
	}
}

type converter interface {
	Convert(ctx context.Context, cents int64, from, to currency.Currency) (int64, error)
}

// initRates returns nil when no rates API key is configured; orders are then
// charged in their quoted currency.
func (a *App) initRates() converter {
	cfg := ratesvc.ConfigFromViper()
	if cfg.AccessKey == "" {
		slog.Warn("FIXER_ACCESS_KEY is not set, currency conversion disabled")

		return nil
	}

	if viper.GetString("redis.addr") == "" {
		return ratesvc.NewRatesService(cfg, nil)
	}

	redisClient := redis.MustNewClient()
	a.onClose("Redis", redisClient.Close)

	return ratesvc.NewRatesService(cfg, ratesrepo.NewRatesRepository(redisClient.Redis()))
}

// notifiers holds the webhook parsers of configured providers. Fields stay
// nil interfaces for providers without credentials so their webhooks are
// rejected.
type notifiers struct {
	stripe interface {
		ParseNotification(payload []byte, signature string) (payment.Notification, error)
	}
	mollie interface {
		ParseNotification(ctx context.Context, form url.Values) (payment.Notification, error)
	}
	yookassa interface {
		ParseNotification(ctx context.Context, body []byte, remoteAddr string) (payment.Notification, error)
	}
}

// mustInitProviders registers every provider that has credentials. Stripe
// also needs its webhook secret, since its payments could never settle.
func mustInitProviders(selector *payment.Selector) notifiers {
	n := notifiers{}

	if cfg := stripe.ConfigFromViper(); cfg.SecretKey != "" {
		if cfg.WebhookSecret == "" {
			slog.Warn("STRIPE_WEBHOOK_SECRET is not set, Stripe is disabled")
		} else {
			p := stripe.New(cfg)
			selector.Register(p)
			n.stripe = p
		}
	}
	if cfg := mollie.ConfigFromViper(); cfg.APIKey != "" {
		p := mollie.New(cfg)
		selector.Register(p)
		n.mollie = p
	}
	if cfg := yookassa.ConfigFromViper(); cfg.ShopID != "" && cfg.SecretKey != "" {
		p := yookassa.New(cfg)
		selector.Register(p)
		n.yookassa = p
	}

	if len(selector.Names()) == 0 {
		panic("no payment provider is configured")
	}
	slog.Info("Payment providers registered", "providers", selector.Names())

	return n
}

type orderMailer interface {
	SendOrderDetails(ctx context.Context, o order.Order) error
}

func mustInitMailer() orderMailer {
	cfg := mailer.ConfigFromViper()
	if cfg.Host == "" {
		slog.Warn("SMTP_HOST is not set, order emails are logged only")

		return mailer.LogMailer{}
	}

	m, err := mailer.New(cfg)
	if err != nil {
		panic(err)
	}

	return m
}

// Run starts the application.
// Tracks interrupt signal to gracefully shut down the application.
func (a *App) Run() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Starting HTTP server")
		if err := a.transport.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	g.Go(func() error {
		slog.Info("Starting outbox worker")

		return a.outboxWorker.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return a.transport.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Application stopped with error", "error", err)
	}

	a.gracefulShutdown()
}

// gracefulShutdown closes storage, brokers and the trace provider in the
// reverse order they were opened.
func (a *App) gracefulShutdown() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(); err != nil {
			slog.Error("Close error", "component", c.name, "error", err)
		} else {
			slog.Info("Closed gracefully", "component", c.name)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.otelController.Shutdown(ctx); err != nil {
		slog.Error("Otel trace provider shutdown error", "error", err)
	} else {
		slog.Info("Otel trace provider stopped gracefully")
	}

	slog.Info("Application shutdown complete")
}
