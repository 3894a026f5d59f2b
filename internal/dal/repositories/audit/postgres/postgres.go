package postgresrepo

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/checkout/internal/dal/postgres"
	"github.com/corray333/backend-labs/checkout/internal/service/models/auditlog"
)

// PostgresAuditRepository writes order_status_audit rows.
type PostgresAuditRepository struct {
	conn postgres.Conn
	sb   sq.StatementBuilderType
}

func NewPostgresAuditRepository(conn postgres.Conn) *PostgresAuditRepository {
	return &PostgresAuditRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *PostgresAuditRepository) Insert(ctx context.Context, entry auditlog.OrderStatusAudit) error {
	query, args, err := r.sb.Insert("order_status_audit").
		Columns(
			"order_id",
			"actor_id",
			"from_status",
			"to_status",
			"from_payment_id",
			"to_payment_id",
			"created_at",
		).
		Values(
			entry.OrderID,
			entry.ActorID,
			entry.FromStatus,
			entry.ToStatus,
			entry.FromPaymentID,
			entry.ToPaymentID,
			entry.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}

	return nil
}

func (r *PostgresAuditRepository) ListByOrder(ctx context.Context, orderID int64) ([]auditlog.OrderStatusAudit, error) {
	query, args, err := r.sb.Select(
		"id",
		"order_id",
		"actor_id",
		"from_status",
		"to_status",
		"from_payment_id",
		"to_payment_id",
		"created_at",
	).
		From("order_status_audit").
		Where(sq.Eq{"order_id": orderID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	entries := []auditlog.OrderStatusAudit{}
	for rows.Next() {
		var e auditlog.OrderStatusAudit
		if err := rows.Scan(
			&e.ID,
			&e.OrderID,
			&e.ActorID,
			&e.FromStatus,
			&e.ToStatus,
			&e.FromPaymentID,
			&e.ToPaymentID,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return entries, nil
}
