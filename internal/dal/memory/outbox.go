package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/corray333/backend-labs/checkout/internal/service/models/outbox"
)

// OutboxRepository is an in-memory outbox table.
type OutboxRepository struct {
	mu       sync.Mutex
	seq      int64
	messages map[int64]outbox.OutboxMessage
}

func NewOutboxRepository() *OutboxRepository {
	return &OutboxRepository{messages: make(map[int64]outbox.OutboxMessage)}
}

func (r *OutboxRepository) Insert(_ context.Context, msg outbox.OutboxMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	msg.ID = r.seq
	now := time.Now()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	msg.UpdatedAt = now
	if msg.NextRetryAt.IsZero() {
		msg.NextRetryAt = now
	}
	if msg.MaxRetries == 0 {
		msg.MaxRetries = 10
	}
	r.messages[msg.ID] = msg

	return nil
}

func (r *OutboxRepository) GetPendingMessages(_ context.Context, limit int) ([]outbox.OutboxMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	pending := []outbox.OutboxMessage{}
	for _, m := range r.messages {
		if !m.NextRetryAt.After(now) && m.RetryCount < m.MaxRetries {
			pending = append(pending, m)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].NextRetryAt.Before(pending[j].NextRetryAt) })
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}

	return pending, nil
}

func (r *OutboxRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.messages, id)

	return nil
}

func (r *OutboxRepository) UpdateRetry(
	_ context.Context,
	id int64,
	retryCount int,
	lastError string,
	nextRetryAt time.Time,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.messages[id]
	if !ok {
		return nil
	}
	m.RetryCount = retryCount
	m.LastError = lastError
	m.NextRetryAt = nextRetryAt
	m.UpdatedAt = time.Now()
	r.messages[id] = m

	return nil
}
