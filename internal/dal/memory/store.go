// Package memory keeps every repository in process memory behind the same
// unit-of-work contract as the Postgres backend. Transactions are serialised
// by a store-wide lock and applied copy-on-commit.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/iauditrepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/ibasketrepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/ilovelistrepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/iorderitemrepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/iproductrepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/uow"
	"github.com/corray333/backend-labs/checkout/internal/service/models/auditlog"
	"github.com/corray333/backend-labs/checkout/internal/service/models/basket"
	"github.com/corray333/backend-labs/checkout/internal/service/models/lovelist"
	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/service/models/orderitem"
	"github.com/corray333/backend-labs/checkout/internal/service/models/product"
)

type state struct {
	orderSeq int64
	itemSeq  int64
	auditSeq int64

	orders    map[int64]order.Order
	items     map[int64][]orderitem.OrderItem
	products  map[string]product.Product
	baskets   map[int64]map[string]basket.Item
	lovelists map[int64]map[string]lovelist.Item
	audits    []auditlog.OrderStatusAudit
}

func newState() *state {
	return &state{
		orders:    make(map[int64]order.Order),
		items:     make(map[int64][]orderitem.OrderItem),
		products:  make(map[string]product.Product),
		baskets:   make(map[int64]map[string]basket.Item),
		lovelists: make(map[int64]map[string]lovelist.Item),
	}
}

func (s *state) clone() *state {
	c := &state{
		orderSeq:  s.orderSeq,
		itemSeq:   s.itemSeq,
		auditSeq:  s.auditSeq,
		orders:    maps.Clone(s.orders),
		items:     make(map[int64][]orderitem.OrderItem, len(s.items)),
		products:  maps.Clone(s.products),
		baskets:   make(map[int64]map[string]basket.Item, len(s.baskets)),
		lovelists: make(map[int64]map[string]lovelist.Item, len(s.lovelists)),
		audits:    slices.Clone(s.audits),
	}
	for k, v := range s.items {
		c.items[k] = slices.Clone(v)
	}
	for k, v := range s.baskets {
		c.baskets[k] = maps.Clone(v)
	}
	for k, v := range s.lovelists {
		c.lovelists[k] = maps.Clone(v)
	}

	return c
}

// Store is an in-memory database.
type Store struct {
	mu sync.Mutex
	st *state
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{st: newState()}
}

// NewUnitOfWork creates a unit of work over the store.
func (s *Store) NewUnitOfWork() uow.UnitOfWork {
	return &unitOfWork{store: s}
}

// Factory adapts the store to uow.Factory.
func (s *Store) Factory() uow.Factory {
	return s.NewUnitOfWork
}

type unitOfWork struct {
	store *Store
	tx    *state
}

// Begin holds the store lock until Commit or Rollback.
func (u *unitOfWork) Begin(_ context.Context) error {
	if u.tx != nil {
		return uow.ErrTxInProgress
	}
	u.store.mu.Lock()
	u.tx = u.store.st.clone()

	return nil
}

func (u *unitOfWork) Commit(_ context.Context) error {
	if u.tx == nil {
		return nil
	}
	u.store.st = u.tx
	u.tx = nil
	u.store.mu.Unlock()

	return nil
}

func (u *unitOfWork) Rollback(_ context.Context) error {
	if u.tx == nil {
		return nil
	}
	u.tx = nil
	u.store.mu.Unlock()

	return nil
}

// do runs fn against the transaction snapshot, or against the committed
// state under the store lock when no transaction is open.
func (u *unitOfWork) do(fn func(s *state) error) error {
	if u.tx != nil {
		return fn(u.tx)
	}
	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	return fn(u.store.st)
}

func (u *unitOfWork) OrderRepository() iorderrepo.IOrderRepository {
	return &orderRepository{u: u}
}

func (u *unitOfWork) OrderItemRepository() iorderitemrepo.IOrderItemRepository {
	return &orderItemRepository{u: u}
}

func (u *unitOfWork) ProductRepository() iproductrepo.IProductRepository {
	return &productRepository{u: u}
}

func (u *unitOfWork) BasketRepository() ibasketrepo.IBasketRepository {
	return &basketRepository{u: u}
}

func (u *unitOfWork) LovelistRepository() ilovelistrepo.ILovelistRepository {
	return &lovelistRepository{u: u}
}

func (u *unitOfWork) AuditRepository() iauditrepo.IAuditRepository {
	return &auditRepository{u: u}
}
