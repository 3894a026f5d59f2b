package postgresrepo

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/checkout/internal/dal/postgres"
	"github.com/corray333/backend-labs/checkout/internal/service/models/orderitem"
	"github.com/jackc/pgx/v5/pgtype"
)

// OrderItemDal represents order item data access layer model.
type OrderItemDal struct {
	Id         int64
	OrderId    int64
	ProductId  string
	Quantity   int
	Title      string
	Photo      string
	PriceCents int64
	SaleCents  int64
	CreatedAt  time.Time
}

// ToModel converts OrderItemDal to service layer OrderItem model.
func (oi *OrderItemDal) ToModel() orderitem.OrderItem {
	return orderitem.OrderItem{
		ID:         oi.Id,
		OrderID:    oi.OrderId,
		ProductID:  oi.ProductId,
		Quantity:   oi.Quantity,
		Title:      oi.Title,
		Photo:      oi.Photo,
		PriceCents: oi.PriceCents,
		SaleCents:  oi.SaleCents,
		CreatedAt:  oi.CreatedAt,
	}
}

// PostgresOrderItemRepository represents a Postgres order item repository.
type PostgresOrderItemRepository struct {
	conn postgres.Conn
	sb   sq.StatementBuilderType
}

// NewPostgresOrderItemRepository creates a new Postgres order item repository.
func NewPostgresOrderItemRepository(conn postgres.Conn) *PostgresOrderItemRepository {
	return &PostgresOrderItemRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// BulkInsert inserts order items with one unnest statement and returns them with ids.
func (r *PostgresOrderItemRepository) BulkInsert(
	ctx context.Context,
	orderItems []orderitem.OrderItem,
) ([]orderitem.OrderItem, error) {
	if len(orderItems) == 0 {
		return []orderitem.OrderItem{}, nil
	}

	sql := `
		INSERT INTO order_items (order_id, product_id, quantity, title, photo, price_cents, sale_cents, created_at)
		SELECT order_id, product_id, quantity, title, photo, price_cents, sale_cents, created_at
		FROM unnest($1::bigint[], $2::text[], $3::int[], $4::text[], $5::text[], $6::bigint[], $7::bigint[], $8::timestamptz[])
		AS t(order_id, product_id, quantity, title, photo, price_cents, sale_cents, created_at)
		RETURNING id, order_id, product_id, quantity, title, photo, price_cents, sale_cents, created_at
	`

	orderIds := make([]int64, len(orderItems))
	productIds := make([]string, len(orderItems))
	quantities := make([]int32, len(orderItems))
	titles := make([]string, len(orderItems))
	photos := make([]string, len(orderItems))
	prices := make([]int64, len(orderItems))
	sales := make([]int64, len(orderItems))
	createdAts := make([]time.Time, len(orderItems))

	for i, oi := range orderItems {
		orderIds[i] = oi.OrderID
		productIds[i] = oi.ProductID
		quantities[i] = int32(oi.Quantity)
		titles[i] = oi.Title
		photos[i] = oi.Photo
		prices[i] = oi.PriceCents
		sales[i] = oi.SaleCents
		createdAts[i] = oi.CreatedAt
	}

	rows, err := r.conn.Query(ctx, sql,
		orderIds, productIds, quantities, titles, photos, prices, sales, createdAts)
	if err != nil {
		return nil, fmt.Errorf("failed to bulk insert order items: %w", err)
	}
	defer rows.Close()

	return scanOrderItems(rows)
}

// Query retrieves order items based on filter criteria.
func (r *PostgresOrderItemRepository) Query(
	ctx context.Context,
	filter *orderitem.QueryOrderItemsModel,
) ([]orderitem.OrderItem, error) {
	query := r.sb.
		Select(
			"id",
			"order_id",
			"product_id",
			"quantity",
			"title",
			"photo",
			"price_cents",
			"sale_cents",
			"created_at",
		).
		From("order_items")

	if len(filter.Ids) > 0 {
		query = query.Where(sq.Eq{"id": filter.Ids})
	}

	if len(filter.OrderIds) > 0 {
		query = query.Where(sq.Eq{"order_id": filter.OrderIds})
	}

	if len(filter.ProductIds) > 0 {
		query = query.Where(sq.Eq{"product_id": filter.ProductIds})
	}

	query = query.OrderBy("id")

	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit))
	}

	if filter.Offset > 0 {
		query = query.Offset(uint64(filter.Offset))
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	return scanOrderItems(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanOrderItems(rows rowScanner) ([]orderitem.OrderItem, error) {
	result := []orderitem.OrderItem{}
	for rows.Next() {
		var dal OrderItemDal
		var createdAt pgtype.Timestamptz

		err := rows.Scan(
			&dal.Id,
			&dal.OrderId,
			&dal.ProductId,
			&dal.Quantity,
			&dal.Title,
			&dal.Photo,
			&dal.PriceCents,
			&dal.SaleCents,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}

		dal.CreatedAt = createdAt.Time

		result = append(result, dal.ToModel())
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}
