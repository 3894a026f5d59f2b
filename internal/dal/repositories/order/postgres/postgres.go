package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/checkout/internal/dal/postgres"
	"github.com/corray333/backend-labs/checkout/internal/service/errs"
	"github.com/corray333/backend-labs/checkout/internal/service/models/currency"
	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/service/models/orderitem"
	"github.com/jackc/pgx/v5"
)

var orderColumns = []string{
	"id",
	"token",
	"user_id",
	"subtotal_cents",
	"total_cents",
	"currency",
	"original_total_cents",
	"original_currency",
	"shipping_cost_cents",
	"promocode",
	"promocode_discount_cents",
	"promocode_discount_percent",
	"description",
	"payment_provider_name",
	"status",
	"payment_id",
	"confirmation_url",
	"fulfillment_issue",
	"country",
	"city",
	"postal_code",
	"address",
	"apartment",
	"company",
	"name",
	"surname",
	"phone_number",
	"email",
	"created_at",
	"updated_at",
}

// OrderDal represents order data access layer model.
type OrderDal struct {
	Id                       int64
	Token                    string
	UserId                   *int64
	SubtotalCents            int64
	TotalCents               int64
	Currency                 string
	OriginalTotalCents       int64
	OriginalCurrency         string
	ShippingCostCents        int64
	Promocode                string
	PromocodeDiscountCents   int64
	PromocodeDiscountPercent int
	Description              string
	PaymentProviderName      string
	Status                   string
	PaymentId                string
	ConfirmationUrl          string
	FulfillmentIssue         string
	Country                  string
	City                     string
	PostalCode               string
	Address                  string
	Apartment                string
	Company                  string
	Name                     string
	Surname                  string
	PhoneNumber              string
	Email                    string
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

func (o *OrderDal) scanTargets() []any {
	return []any{
		&o.Id,
		&o.Token,
		&o.UserId,
		&o.SubtotalCents,
		&o.TotalCents,
		&o.Currency,
		&o.OriginalTotalCents,
		&o.OriginalCurrency,
		&o.ShippingCostCents,
		&o.Promocode,
		&o.PromocodeDiscountCents,
		&o.PromocodeDiscountPercent,
		&o.Description,
		&o.PaymentProviderName,
		&o.Status,
		&o.PaymentId,
		&o.ConfirmationUrl,
		&o.FulfillmentIssue,
		&o.Country,
		&o.City,
		&o.PostalCode,
		&o.Address,
		&o.Apartment,
		&o.Company,
		&o.Name,
		&o.Surname,
		&o.PhoneNumber,
		&o.Email,
		&o.CreatedAt,
		&o.UpdatedAt,
	}
}

// ToModel converts OrderDal to service layer Order model.
func (o *OrderDal) ToModel() (*order.Order, error) {
	cur, err := currency.ParseCurrency(o.Currency)
	if err != nil {
		return nil, err
	}
	origCur, err := currency.ParseCurrency(o.OriginalCurrency)
	if err != nil {
		return nil, err
	}
	status, err := order.ParseStatus(o.Status)
	if err != nil {
		return nil, err
	}

	return &order.Order{
		ID:                       o.Id,
		Token:                    o.Token,
		UserID:                   o.UserId,
		SubtotalCents:            o.SubtotalCents,
		TotalCents:               o.TotalCents,
		Currency:                 cur,
		OriginalTotalCents:       o.OriginalTotalCents,
		OriginalCurrency:         origCur,
		ShippingCostCents:        o.ShippingCostCents,
		Promocode:                o.Promocode,
		PromocodeDiscountCents:   o.PromocodeDiscountCents,
		PromocodeDiscountPercent: o.PromocodeDiscountPercent,
		Description:              o.Description,
		PaymentProviderName:      o.PaymentProviderName,
		Status:                   status,
		PaymentID:                o.PaymentId,
		ConfirmationURL:          o.ConfirmationUrl,
		FulfillmentIssue:         o.FulfillmentIssue,
		DeliveryData: order.DeliveryData{
			Country:     o.Country,
			City:        o.City,
			PostalCode:  o.PostalCode,
			Address:     o.Address,
			Apartment:   o.Apartment,
			Company:     o.Company,
			Name:        o.Name,
			Surname:     o.Surname,
			PhoneNumber: o.PhoneNumber,
			Email:       o.Email,
		},
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
		OrderItems: []orderitem.OrderItem{}, // Will be populated separately
	}, nil
}

// PostgresOrderRepository represents a Postgres order repository.
type PostgresOrderRepository struct {
	conn postgres.Conn
	sb   sq.StatementBuilderType
}

// NewPostgresOrderRepository creates a new Postgres order repository.
func NewPostgresOrderRepository(conn postgres.Conn) *PostgresOrderRepository {
	return &PostgresOrderRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Insert inserts an order and returns it with the generated id and timestamps.
func (r *PostgresOrderRepository) Insert(ctx context.Context, o order.Order) (order.Order, error) {
	query, args, err := r.sb.Insert("orders").
		Columns(orderColumns[1 : len(orderColumns)-2]...).
		Values(
			o.Token,
			o.UserID,
			o.SubtotalCents,
			o.TotalCents,
			o.Currency.String(),
			o.OriginalTotalCents,
			o.OriginalCurrency.String(),
			o.ShippingCostCents,
			o.Promocode,
			o.PromocodeDiscountCents,
			o.PromocodeDiscountPercent,
			o.Description,
			o.PaymentProviderName,
			o.Status.String(),
			o.PaymentID,
			o.ConfirmationURL,
			o.FulfillmentIssue,
			o.Country,
			o.City,
			o.PostalCode,
			o.Address,
			o.Apartment,
			o.Company,
			o.Name,
			o.Surname,
			o.PhoneNumber,
			o.Email,
		).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to build insert query: %w", err)
	}

	if err := r.conn.QueryRow(ctx, query, args...).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return order.Order{}, fmt.Errorf("failed to insert order: %w", err)
	}

	return o, nil
}

// GetByID returns a single order without its items.
func (r *PostgresOrderRepository) GetByID(ctx context.Context, id int64) (order.Order, error) {
	query, args, err := r.sb.Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to build query: %w", err)
	}

	var dal OrderDal
	if err := r.conn.QueryRow(ctx, query, args...).Scan(dal.scanTargets()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.Order{}, fmt.Errorf("order %d: %w", id, errs.ErrNotFound)
		}

		return order.Order{}, fmt.Errorf("failed to get order: %w", err)
	}

	model, err := dal.ToModel()
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to convert order dal to model: %w", err)
	}

	return *model, nil
}

// Query retrieves orders based on filter criteria, newest first.
func (r *PostgresOrderRepository) Query(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error) {
	query := r.sb.Select(orderColumns...).From("orders")

	if len(filter.Ids) > 0 {
		query = query.Where(sq.Eq{"id": filter.Ids})
	}

	if len(filter.UserIds) > 0 {
		query = query.Where(sq.Eq{"user_id": filter.UserIds})
	}

	query = query.OrderBy("created_at DESC", "id DESC")

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
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	result := []order.Order{}
	for rows.Next() {
		var dal OrderDal
		if err := rows.Scan(dal.scanTargets()...); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		model, err := dal.ToModel()
		if err != nil {
			return nil, fmt.Errorf("failed to convert order dal to model: %w", err)
		}
		result = append(result, *model)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

// SetPayment stores the provider payment reference.
func (r *PostgresOrderRepository) SetPayment(
	ctx context.Context,
	id int64,
	paymentID, confirmationURL string,
) error {
	return r.update(ctx, r.sb.Update("orders").
		Set("payment_id", paymentID).
		Set("confirmation_url", confirmationURL).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": id}))
}

// TransitionStatus is the guarded compare-and-set on status.
func (r *PostgresOrderRepository) TransitionStatus(
	ctx context.Context,
	id int64,
	from, to order.Status,
) (bool, error) {
	sql, args, err := r.sb.Update("orders").
		Set("status", to.String()).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": id, "status": from.String()}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("failed to transition order status: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// SetStatus overwrites status and payment id.
func (r *PostgresOrderRepository) SetStatus(
	ctx context.Context,
	id int64,
	status order.Status,
	paymentID string,
) error {
	return r.update(ctx, r.sb.Update("orders").
		Set("status", status.String()).
		Set("payment_id", paymentID).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": id}))
}

// SetFulfillmentIssue flags an order for manual review.
func (r *PostgresOrderRepository) SetFulfillmentIssue(ctx context.Context, id int64, issue string) error {
	return r.update(ctx, r.sb.Update("orders").
		Set("fulfillment_issue", issue).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": id}))
}

// Delete removes an order; its items and audit rows go with it by cascade.
func (r *PostgresOrderRepository) Delete(ctx context.Context, id int64) error {
	sql, args, err := r.sb.Delete("orders").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}

	return nil
}

func (r *PostgresOrderRepository) update(ctx context.Context, b sq.UpdateBuilder) error {
	sql, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}

	return nil
}
