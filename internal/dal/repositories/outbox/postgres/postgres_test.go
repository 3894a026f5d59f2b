package postgresrepo

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/corray333/backend-labs/checkout/internal/service/models/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*OutboxRepository, sqlmock.Sqlmock, time.Time) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	repo := NewOutboxRepository(db)
	repo.now = func() time.Time { return now }

	return repo, mock, now
}

func TestOutboxRepository_InsertFillsDefaults(t *testing.T) {
	repo, mock, now := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO outbox (queue_name,exchange_name,routing_key,payload,content_type,retry_count,max_retries,last_error,created_at,updated_at,next_retry_at)")).
		WithArgs("9", "", "checkout.order.events", []byte(`{}`), "application/json", 0, defaultMaxRetries, "boom", now, now, now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Insert(context.Background(), outbox.OutboxMessage{
		QueueName:   "9",
		RoutingKey:  "checkout.order.events",
		Payload:     []byte(`{}`),
		ContentType: "application/json",
		LastError:   "boom",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_GetPendingMessages(t *testing.T) {
	repo, mock, now := newMockRepo(t)

	rows := sqlmock.NewRows(outboxColumns).
		AddRow(int64(3), "9", "", "events", []byte(`{"a":1}`), "application/json", 1, 10, "down", now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, queue_name, exchange_name, routing_key, payload, content_type, retry_count, max_retries, last_error, created_at, updated_at, next_retry_at FROM outbox WHERE next_retry_at <= $1 AND retry_count < max_retries ORDER BY next_retry_at ASC LIMIT 50")).
		WithArgs(now).
		WillReturnRows(rows)

	msgs, err := repo.GetPendingMessages(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(3), msgs[0].ID)
	assert.Equal(t, 1, msgs[0].RetryCount)
	assert.Equal(t, "down", msgs[0].LastError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_UpdateRetry(t *testing.T) {
	repo, mock, now := newMockRepo(t)
	next := now.Add(time.Minute)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE outbox SET last_error = $1, next_retry_at = $2, retry_count = $3, updated_at = $4 WHERE id = $5")).
		WithArgs("timeout", next, 2, now, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateRetry(context.Background(), 3, 2, "timeout", next))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_DeleteError(t *testing.T) {
	repo, mock, _ := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM outbox WHERE id = $1")).
		WithArgs(int64(3)).
		WillReturnError(errors.New("connection reset"))

	err := repo.Delete(context.Background(), 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to delete outbox message")
}
