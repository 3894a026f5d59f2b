package outbox

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/ieventpublisher"
	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/backend-labs/checkout/internal/service/models/outbox"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

// Worker relays order events that could not be published at settlement time.
type Worker struct {
	outboxRepo    ioutboxrepo.IOutboxRepository
	broker        ieventpublisher.IBroker
	pollInterval  time.Duration
	batchSize     int
	concurrency   int
	retryInterval time.Duration
}

type option func(*Worker)

//goland:noinspection GoExportedFuncWithUnexportedType
func WithPollInterval(d time.Duration) option {
	return func(w *Worker) {
		w.pollInterval = d
	}
}

//goland:noinspection GoExportedFuncWithUnexportedType
func WithRetryInterval(d time.Duration) option {
	return func(w *Worker) {
		w.retryInterval = d
	}
}

//goland:noinspection GoExportedFuncWithUnexportedType
func WithBatchSize(n int) option {
	return func(w *Worker) {
		w.batchSize = n
	}
}

// NewWorker reads outbox.* settings and applies opts on top.
func NewWorker(
	outboxRepo ioutboxrepo.IOutboxRepository,
	broker ieventpublisher.IBroker,
	opts ...option,
) *Worker {
	w := &Worker{
		outboxRepo:    outboxRepo,
		broker:        broker,
		pollInterval:  secondsOr("outbox.poll_interval_seconds", 10),
		batchSize:     viper.GetInt("outbox.batch_size"),
		concurrency:   viper.GetInt("outbox.concurrency"),
		retryInterval: secondsOr("outbox.retry_interval_seconds", 30),
	}
	if w.batchSize == 0 {
		w.batchSize = 100
	}
	if w.concurrency == 0 {
		w.concurrency = 3
	}
	for _, opt := range opts {
		opt(w)
	}

	return w
}

func secondsOr(key string, def int) time.Duration {
	s := viper.GetInt(key)
	if s == 0 {
		s = def
	}

	return time.Duration(s) * time.Second
}

// Run polls the outbox until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	slog.Info("Outbox worker started", "poll_interval", w.pollInterval, "batch_size", w.batchSize)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Outbox worker shutting down")

			return nil
		case <-ticker.C:
			w.ProcessMessages(ctx)
		}
	}
}

// backoff doubles the retry interval per attempt: 60s, 120s, 240s with the default 30s.
func (w *Worker) backoff(retryCount int) time.Duration {
	return time.Duration(math.Pow(2, float64(retryCount)) * float64(w.retryInterval))
}

// ProcessMessages sends one batch of due messages.
func (w *Worker) ProcessMessages(ctx context.Context) {
	messages, err := w.outboxRepo.GetPendingMessages(ctx, w.batchSize)
	if err != nil {
		slog.Error("Failed to get pending messages from outbox", "error", err)

		return
	}
	if len(messages) == 0 {
		return
	}

	slog.Info("Processing outbox messages", "count", len(messages))

	var g errgroup.Group
	g.SetLimit(w.concurrency)
	for _, msg := range messages {
		g.Go(func() error {
			w.relay(ctx, msg)

			return nil
		})
	}
	_ = g.Wait()
}

func (w *Worker) relay(ctx context.Context, msg outbox.OutboxMessage) {
	if err := w.broker.Send(ctx, msg); err != nil {
		retryCount := msg.RetryCount + 1
		nextRetryAt := time.Now().Add(w.backoff(retryCount))

		slog.Warn("Failed to relay order event, will retry",
			"outbox_id", msg.ID,
			"retry_count", retryCount,
			"next_retry", nextRetryAt,
			"error", err,
		)
		if retryCount >= msg.MaxRetries {
			slog.Error("Order event exhausted its retries", "outbox_id", msg.ID, "key", msg.QueueName)
		}

		if err := w.outboxRepo.UpdateRetry(ctx, msg.ID, retryCount, err.Error(), nextRetryAt); err != nil {
			slog.Error("Failed to update retry information", "outbox_id", msg.ID, "error", err)
		}

		return
	}

	if err := w.outboxRepo.Delete(ctx, msg.ID); err != nil {
		slog.Error("Failed to delete relayed message from outbox", "outbox_id", msg.ID, "error", err)

		return
	}
	slog.Info("Order event relayed", "outbox_id", msg.ID, "key", msg.QueueName)
}
