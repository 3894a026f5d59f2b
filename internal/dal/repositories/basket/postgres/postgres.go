package postgresrepo

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/checkout/internal/dal/postgres"
	"github.com/corray333/backend-labs/checkout/internal/service/models/basket"
)

// PostgresBasketRepository manages basket_products rows.
type PostgresBasketRepository struct {
	conn postgres.Conn
	sb   sq.StatementBuilderType
}

func NewPostgresBasketRepository(conn postgres.Conn) *PostgresBasketRepository {
	return &PostgresBasketRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Add puts a product into the cart, replacing the previous snapshot of it.
func (r *PostgresBasketRepository) Add(ctx context.Context, item basket.Item) error {
	query, args, err := r.sb.Insert("basket_products").
		Columns(
			"basket_id",
			"product_id",
			"quantity",
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
			item.Quantity,
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
		Suffix(`ON CONFLICT (basket_id, product_id) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			photo = EXCLUDED.photo,
			price_cents = EXCLUDED.price_cents,
			sale_cents = EXCLUDED.sale_cents,
			available_quantity = EXCLUDED.available_quantity,
			rating = EXCLUDED.rating,
			is_new = EXCLUDED.is_new,
			updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to add basket product: %w", err)
	}

	return nil
}

func (r *PostgresBasketRepository) ListByUser(ctx context.Context, userID int64) ([]basket.Item, error) {
	query, args, err := r.sb.Select(
		"basket_id",
		"product_id",
		"quantity",
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
		From("basket_products").
		Where(sq.Eq{"basket_id": userID}).
		OrderBy("product_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query basket: %w", err)
	}
	defer rows.Close()

	items := []basket.Item{}
	for rows.Next() {
		var it basket.Item
		if err := rows.Scan(
			&it.UserID,
			&it.ProductID,
			&it.Quantity,
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
			return nil, fmt.Errorf("failed to scan basket product: %w", err)
		}
		items = append(items, it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return items, nil
}

// SyncProduct clamps quantity with LEAST so rows are corrected, never removed.
func (r *PostgresBasketRepository) SyncProduct(ctx context.Context, productID string, available int) (int64, error) {
	query, args, err := r.sb.Update("basket_products").
		Set("available_quantity", available).
		Set("quantity", sq.Expr("LEAST(quantity, ?)", available)).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"product_id": productID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to sync basket quantities: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (r *PostgresBasketRepository) RenameProduct(ctx context.Context, oldID, newID string) error {
	query, args, err := r.sb.Update("basket_products").
		Set("product_id", newID).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"product_id": oldID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to rename basket product: %w", err)
	}

	return nil
}

func (r *PostgresBasketRepository) ClearUser(ctx context.Context, userID int64) error {
	query, args, err := r.sb.Delete("basket_products").
		Where(sq.Eq{"basket_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to clear basket: %w", err)
	}

	return nil
}
