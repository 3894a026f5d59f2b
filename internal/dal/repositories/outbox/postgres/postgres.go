package postgresrepo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/checkout/internal/service/models/outbox"
)

const (
	outboxTable       = "outbox"
	defaultMaxRetries = 10
)

// id is generated; the rest are written on insert.
var outboxColumns = []string{
	"id",
	"queue_name",
	"exchange_name",
	"routing_key",
	"payload",
	"content_type",
	"retry_count",
	"max_retries",
	"last_error",
	"created_at",
	"updated_at",
	"next_retry_at",
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// OutboxRepository keeps undelivered order events. It runs on database/sql
// so it stays usable outside the unit of work.
type OutboxRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewOutboxRepository(db *sql.DB) *OutboxRepository {
	return &OutboxRepository{
		db:  db,
		now: time.Now,
	}
}

// Insert stores a message. Zero timestamps and retry limits get defaults so
// the message is picked up on the next relay tick.
func (r *OutboxRepository) Insert(ctx context.Context, msg outbox.OutboxMessage) error {
	now := r.now()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	if msg.UpdatedAt.IsZero() {
		msg.UpdatedAt = now
	}
	if msg.NextRetryAt.IsZero() {
		msg.NextRetryAt = now
	}
	if msg.MaxRetries == 0 {
		msg.MaxRetries = defaultMaxRetries
	}

	query, args, err := psql.Insert(outboxTable).
		Columns(outboxColumns[1:]...).
		Values(
			msg.QueueName, msg.ExchangeName, msg.RoutingKey, msg.Payload, msg.ContentType,
			msg.RetryCount, msg.MaxRetries, msg.LastError,
			msg.CreatedAt, msg.UpdatedAt, msg.NextRetryAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert outbox message: %w", err)
	}

	return nil
}

// GetPendingMessages returns due messages that still have retries left, oldest schedule first.
func (r *OutboxRepository) GetPendingMessages(ctx context.Context, limit int) ([]outbox.OutboxMessage, error) {
	query, args, err := psql.Select(outboxColumns...).
		From(outboxTable).
		Where(sq.LtOrEq{"next_retry_at": r.now()}).
		Where("retry_count < max_retries").
		OrderBy("next_retry_at ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox messages: %w", err)
	}
	defer rows.Close()

	messages := make([]outbox.OutboxMessage, 0, limit)
	for rows.Next() {
		var m outbox.OutboxMessage
		if err := rows.Scan(
			&m.ID, &m.QueueName, &m.ExchangeName, &m.RoutingKey, &m.Payload, &m.ContentType,
			&m.RetryCount, &m.MaxRetries, &m.LastError,
			&m.CreatedAt, &m.UpdatedAt, &m.NextRetryAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan outbox message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outbox messages: %w", err)
	}

	return messages, nil
}

func (r *OutboxRepository) Delete(ctx context.Context, id int64) error {
	query, args, err := psql.Delete(outboxTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete outbox message: %w", err)
	}

	return nil
}

func (r *OutboxRepository) UpdateRetry(
	ctx context.Context,
	id int64,
	retryCount int,
	lastError string,
	nextRetryAt time.Time,
) error {
	query, args, err := psql.Update(outboxTable).
		SetMap(map[string]any{
			"retry_count":   retryCount,
			"last_error":    lastError,
			"next_retry_at": nextRetryAt,
			"updated_at":    r.now(),
		}).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update outbox message: %w", err)
	}

	return nil
}
