package uow

import (
	"context"
	"errors"
	"fmt"

	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/iauditrepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/ibasketrepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/ilovelistrepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/iorderitemrepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/iproductrepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/postgres"
	auditrepo "github.com/corray333/backend-labs/checkout/internal/dal/repositories/audit/postgres"
	basketrepo "github.com/corray333/backend-labs/checkout/internal/dal/repositories/basket/postgres"
	lovelistrepo "github.com/corray333/backend-labs/checkout/internal/dal/repositories/lovelist/postgres"
	orderrepo "github.com/corray333/backend-labs/checkout/internal/dal/repositories/order/postgres"
	orderitemrepo "github.com/corray333/backend-labs/checkout/internal/dal/repositories/orderitem/postgres"
	productrepo "github.com/corray333/backend-labs/checkout/internal/dal/repositories/product/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrTxInProgress = errors.New("transaction already in progress")

// UnitOfWork groups the repositories that must change together.
//
// Before Begin the repositories run on the pool; after Begin they are rebound
// to the transaction until Commit or Rollback. A UnitOfWork is not safe for
// concurrent use; take a fresh one from a Factory per operation.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	OrderRepository() iorderrepo.IOrderRepository
	OrderItemRepository() iorderitemrepo.IOrderItemRepository
	ProductRepository() iproductrepo.IProductRepository
	BasketRepository() ibasketrepo.IBasketRepository
	LovelistRepository() ilovelistrepo.ILovelistRepository
	AuditRepository() iauditrepo.IAuditRepository
}

// Factory creates a fresh UnitOfWork.
type Factory func() UnitOfWork

type unitOfWork struct {
	pool *pgxpool.Pool
	tx   pgx.Tx

	orderRepo     iorderrepo.IOrderRepository
	orderItemRepo iorderitemrepo.IOrderItemRepository
	productRepo   iproductrepo.IProductRepository
	basketRepo    ibasketrepo.IBasketRepository
	lovelistRepo  ilovelistrepo.ILovelistRepository
	auditRepo     iauditrepo.IAuditRepository
}

// NewFactory returns a Factory backed by the Postgres pool.
func NewFactory(client *postgres.Client) Factory {
	return func() UnitOfWork {
		return NewUnitOfWork(client.Pool())
	}
}

// NewUnitOfWork creates a unit of work bound to the pool.
func NewUnitOfWork(pool *pgxpool.Pool) *unitOfWork {
	u := &unitOfWork{pool: pool}
	u.bind(pool)

	return u
}

func (u *unitOfWork) bind(conn postgres.Conn) {
	u.orderRepo = orderrepo.NewPostgresOrderRepository(conn)
	u.orderItemRepo = orderitemrepo.NewPostgresOrderItemRepository(conn)
	u.productRepo = productrepo.NewPostgresProductRepository(conn)
	u.basketRepo = basketrepo.NewPostgresBasketRepository(conn)
	u.lovelistRepo = lovelistrepo.NewPostgresLovelistRepository(conn)
	u.auditRepo = auditrepo.NewPostgresAuditRepository(conn)
}

func (u *unitOfWork) OrderRepository() iorderrepo.IOrderRepository {
	return u.orderRepo
}

func (u *unitOfWork) OrderItemRepository() iorderitemrepo.IOrderItemRepository {
	return u.orderItemRepo
}

func (u *unitOfWork) ProductRepository() iproductrepo.IProductRepository {
	return u.productRepo
}

func (u *unitOfWork) BasketRepository() ibasketrepo.IBasketRepository {
	return u.basketRepo
}

func (u *unitOfWork) LovelistRepository() ilovelistrepo.ILovelistRepository {
	return u.lovelistRepo
}

func (u *unitOfWork) AuditRepository() iauditrepo.IAuditRepository {
	return u.auditRepo
}

func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return ErrTxInProgress
	}

	tx, err := u.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	// Rebind repositories to the transaction
	u.bind(tx)

	return nil
}

func (u *unitOfWork) Commit(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}
	err := u.tx.Commit(ctx)
	u.release()

	return err
}

// Rollback is a no-op after Commit, so it is safe to defer.
func (u *unitOfWork) Rollback(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}
	err := u.tx.Rollback(ctx)
	u.release()
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}

	return err
}

func (u *unitOfWork) release() {
	u.tx = nil
	u.bind(u.pool)
}
