package postgresrepo

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/checkout/internal/dal/postgres"
	"github.com/corray333/backend-labs/checkout/internal/service/models/lovelist"
)

// PostgresLovelistRepository manages lovelist_products rows.
type PostgresLovelistRepository struct {
	conn postgres.Conn
	sb   sq.StatementBuilderType
}

func NewPostgresLovelistRepository(conn postgres.Conn) *PostgresLovelistRepository {
	return &PostgresLovelistRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *PostgresLovelistRepository) Add(ctx context.Context, item lovelist.Item) error {
	query, args, err := r.sb.Insert("lovelist_products").
		Columns(
			"lovelist_id",
			"product_id",
			"title",
			"description",
			"photo",
			"price_cents",
			"sale_cents",
			"available_quantity",
			"rating",
			"is_new",
			"updated_at",
		).
		Values(
			item.UserID,
			item.ProductID,
			item.Title,
			item.Description,
			item.Photo,
			item.PriceCents,
			item.SaleCents,
			item.AvailableQuantity,
			item.Rating,
			item.IsNew,
			time.Now(),
		).
		Suffix("ON CONFLICT (lovelist_id, product_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to add lovelist product: %w", err)
	}

	return nil
}

func (r *PostgresLovelistRepository) ListByUser(ctx context.Context, userID int64) ([]lovelist.Item, error) {
	query, args, err := r.sb.Select(
		"lovelist_id",
		"product_id",
		"title",
		"description",
		"photo",
		"price_cents",
		"sale_cents",
		"available_quantity",
		"rating",
		"is_new",
		"updated_at",
	).
		From("lovelist_products").
		Where(sq.Eq{"lovelist_id": userID}).
		OrderBy("product_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lovelist: %w", err)
	}
	defer rows.Close()

	items := []lovelist.Item{}
	for rows.Next() {
		var it lovelist.Item
		if err := rows.Scan(
			&it.UserID,
			&it.ProductID,
			&it.Title,
			&it.Description,
			&it.Photo,
			&it.PriceCents,
			&it.SaleCents,
			&it.AvailableQuantity,
			&it.Rating,
			&it.IsNew,
			&it.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan lovelist product: %w", err)
		}
		items = append(items, it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return items, nil
}

// SyncProduct is a bulk update of the snapshot availability.
func (r *PostgresLovelistRepository) SyncProduct(ctx context.Context, productID string, available int) (int64, error) {
	query, args, err := r.sb.Update("lovelist_products").
		Set("available_quantity", available).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"product_id": productID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to sync lovelist availability: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (r *PostgresLovelistRepository) RenameProduct(ctx context.Context, oldID, newID string) error {
	query, args, err := r.sb.Update("lovelist_products").
		Set("product_id", newID).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"product_id": oldID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to rename lovelist product: %w", err)
	}

	return nil
}
