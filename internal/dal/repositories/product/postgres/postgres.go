package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/checkout/internal/dal/postgres"
	"github.com/corray333/backend-labs/checkout/internal/service/errs"
	"github.com/corray333/backend-labs/checkout/internal/service/models/product"
	"github.com/jackc/pgx/v5"
)

// PostgresProductRepository reads and writes product stock.
type PostgresProductRepository struct {
	conn postgres.Conn
	sb   sq.StatementBuilderType
}

func NewPostgresProductRepository(conn postgres.Conn) *PostgresProductRepository {
	return &PostgresProductRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *PostgresProductRepository) Get(ctx context.Context, id string) (product.Product, error) {
	query, args, err := r.sb.Select(
		"id",
		"title",
		"description",
		"photo",
		"price_cents",
		"sale_cents",
		"available_quantity",
		"rating",
		"is_new",
	).
		From("products").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return product.Product{}, fmt.Errorf("failed to build query: %w", err)
	}

	var p product.Product
	err = r.conn.QueryRow(ctx, query, args...).Scan(
		&p.ID,
		&p.Title,
		&p.Description,
		&p.Photo,
		&p.PriceCents,
		&p.SaleCents,
		&p.AvailableQuantity,
		&p.Rating,
		&p.IsNew,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return product.Product{}, fmt.Errorf("product %s: %w", id, errs.ErrNotFound)
		}

		return product.Product{}, fmt.Errorf("failed to get product: %w", err)
	}

	return p, nil
}

// Upsert inserts a product or overwrites every field of an existing one.
func (r *PostgresProductRepository) Upsert(ctx context.Context, p product.Product) error {
	query, args, err := r.sb.Insert("products").
		Columns(
			"id",
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
			p.ID,
			p.Title,
			p.Description,
			p.Photo,
			p.PriceCents,
			p.SaleCents,
			p.AvailableQuantity,
			p.Rating,
			p.IsNew,
			time.Now(),
		).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
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
		return fmt.Errorf("failed to build upsert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}

	return nil
}

// DecreaseStock is a conditional decrement: the row lock taken by the UPDATE
// serialises concurrent buyers, and the WHERE clause rejects overselling.
func (r *PostgresProductRepository) DecreaseStock(ctx context.Context, id string, qty int) (int, bool, error) {
	query, args, err := r.sb.Update("products").
		Set("available_quantity", sq.Expr("available_quantity - ?", qty)).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": id}).
		Where(sq.GtOrEq{"available_quantity": qty}).
		Suffix("RETURNING available_quantity").
		ToSql()
	if err != nil {
		return 0, false, fmt.Errorf("failed to build decrement query: %w", err)
	}

	var available int
	if err := r.conn.QueryRow(ctx, query, args...).Scan(&available); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}

		return 0, false, fmt.Errorf("failed to decrease stock: %w", err)
	}

	return available, true, nil
}

func (r *PostgresProductRepository) SetStock(ctx context.Context, id string, qty int) error {
	query, args, err := r.sb.Update("products").
		Set("available_quantity", qty).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to set stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %s: %w", id, errs.ErrNotFound)
	}

	return nil
}
