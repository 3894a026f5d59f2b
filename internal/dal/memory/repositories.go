package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/corray333/backend-labs/checkout/internal/service/errs"
	"github.com/corray333/backend-labs/checkout/internal/service/models/auditlog"
	"github.com/corray333/backend-labs/checkout/internal/service/models/basket"
	"github.com/corray333/backend-labs/checkout/internal/service/models/lovelist"
	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/service/models/orderitem"
	"github.com/corray333/backend-labs/checkout/internal/service/models/product"
)

type orderRepository struct {
	u *unitOfWork
}

func (r *orderRepository) Insert(_ context.Context, o order.Order) (order.Order, error) {
	err := r.u.do(func(s *state) error {
		for _, existing := range s.orders {
			if existing.Token == o.Token {
				return fmt.Errorf("duplicate order token %s", o.Token)
			}
		}
		s.orderSeq++
		now := time.Now()
		o.ID = s.orderSeq
		o.CreatedAt = now
		o.UpdatedAt = now
		stored := o
		stored.OrderItems = nil
		s.orders[o.ID] = stored

		return nil
	})

	return o, err
}

func (r *orderRepository) GetByID(_ context.Context, id int64) (order.Order, error) {
	var o order.Order
	err := r.u.do(func(s *state) error {
		found, ok := s.orders[id]
		if !ok {
			return fmt.Errorf("order %d: %w", id, errs.ErrNotFound)
		}
		o = found

		return nil
	})
	o.OrderItems = []orderitem.OrderItem{}

	return o, err
}

func (r *orderRepository) Query(_ context.Context, filter *order.QueryOrdersModel) ([]order.Order, error) {
	result := []order.Order{}
	_ = r.u.do(func(s *state) error {
		for _, o := range s.orders {
			if len(filter.Ids) > 0 && !slices.Contains(filter.Ids, o.ID) {
				continue
			}
			if len(filter.UserIds) > 0 && (o.UserID == nil || !slices.Contains(filter.UserIds, *o.UserID)) {
				continue
			}
			o.OrderItems = []orderitem.OrderItem{}
			result = append(result, o)
		}

		return nil
	})

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}

		return result[i].ID > result[j].ID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []order.Order{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

func (r *orderRepository) modify(id int64, fn func(o *order.Order) bool) (bool, error) {
	changed := false
	err := r.u.do(func(s *state) error {
		o, ok := s.orders[id]
		if !ok {
			return fmt.Errorf("order %d: %w", id, errs.ErrNotFound)
		}
		if fn(&o) {
			o.UpdatedAt = time.Now()
			s.orders[id] = o
			changed = true
		}

		return nil
	})

	return changed, err
}

func (r *orderRepository) SetPayment(_ context.Context, id int64, paymentID, confirmationURL string) error {
	_, err := r.modify(id, func(o *order.Order) bool {
		o.PaymentID = paymentID
		o.ConfirmationURL = confirmationURL

		return true
	})

	return err
}

func (r *orderRepository) TransitionStatus(_ context.Context, id int64, from, to order.Status) (bool, error) {
	changed, err := r.modify(id, func(o *order.Order) bool {
		if o.Status != from {
			return false
		}
		o.Status = to

		return true
	})
	if errors.Is(err, errs.ErrNotFound) {
		// a missing row is just "no row changed", as in Postgres
		return false, nil
	}

	return changed, err
}

func (r *orderRepository) SetStatus(_ context.Context, id int64, status order.Status, paymentID string) error {
	_, err := r.modify(id, func(o *order.Order) bool {
		o.Status = status
		o.PaymentID = paymentID

		return true
	})

	return err
}

func (r *orderRepository) SetFulfillmentIssue(_ context.Context, id int64, issue string) error {
	_, err := r.modify(id, func(o *order.Order) bool {
		o.FulfillmentIssue = issue

		return true
	})

	return err
}

func (r *orderRepository) Delete(_ context.Context, id int64) error {
	return r.u.do(func(s *state) error {
		delete(s.orders, id)
		delete(s.items, id)

		return nil
	})
}

type orderItemRepository struct {
	u *unitOfWork
}

func (r *orderItemRepository) BulkInsert(
	_ context.Context,
	orderItems []orderitem.OrderItem,
) ([]orderitem.OrderItem, error) {
	result := make([]orderitem.OrderItem, 0, len(orderItems))
	err := r.u.do(func(s *state) error {
		for _, it := range orderItems {
			if _, ok := s.orders[it.OrderID]; !ok {
				return fmt.Errorf("order %d: %w", it.OrderID, errs.ErrNotFound)
			}
		}
		for _, it := range orderItems {
			s.itemSeq++
			it.ID = s.itemSeq
			if it.CreatedAt.IsZero() {
				it.CreatedAt = time.Now()
			}
			s.items[it.OrderID] = append(s.items[it.OrderID], it)
			result = append(result, it)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (r *orderItemRepository) Query(
	_ context.Context,
	filter *orderitem.QueryOrderItemsModel,
) ([]orderitem.OrderItem, error) {
	result := []orderitem.OrderItem{}
	_ = r.u.do(func(s *state) error {
		for orderID, items := range s.items {
			if len(filter.OrderIds) > 0 && !slices.Contains(filter.OrderIds, orderID) {
				continue
			}
			for _, it := range items {
				if len(filter.Ids) > 0 && !slices.Contains(filter.Ids, it.ID) {
					continue
				}
				if len(filter.ProductIds) > 0 && !slices.Contains(filter.ProductIds, it.ProductID) {
					continue
				}
				result = append(result, it)
			}
		}

		return nil
	})

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []orderitem.OrderItem{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

type productRepository struct {
	u *unitOfWork
}

func (r *productRepository) Get(_ context.Context, id string) (product.Product, error) {
	var p product.Product
	err := r.u.do(func(s *state) error {
		found, ok := s.products[id]
		if !ok {
			return fmt.Errorf("product %s: %w", id, errs.ErrNotFound)
		}
		p = found

		return nil
	})

	return p, err
}

func (r *productRepository) Upsert(_ context.Context, p product.Product) error {
	return r.u.do(func(s *state) error {
		s.products[p.ID] = p

		return nil
	})
}

func (r *productRepository) DecreaseStock(_ context.Context, id string, qty int) (int, bool, error) {
	var (
		available int
		ok        bool
	)
	err := r.u.do(func(s *state) error {
		p, found := s.products[id]
		if !found || p.AvailableQuantity < qty {
			return nil
		}
		p.AvailableQuantity -= qty
		s.products[id] = p
		available, ok = p.AvailableQuantity, true

		return nil
	})

	return available, ok, err
}

func (r *productRepository) SetStock(_ context.Context, id string, qty int) error {
	return r.u.do(func(s *state) error {
		p, ok := s.products[id]
		if !ok {
			return fmt.Errorf("product %s: %w", id, errs.ErrNotFound)
		}
		p.AvailableQuantity = qty
		s.products[id] = p

		return nil
	})
}

type basketRepository struct {
	u *unitOfWork
}

func (r *basketRepository) Add(_ context.Context, item basket.Item) error {
	return r.u.do(func(s *state) error {
		if s.baskets[item.UserID] == nil {
			s.baskets[item.UserID] = make(map[string]basket.Item)
		}
		item.UpdatedAt = time.Now()
		s.baskets[item.UserID][item.ProductID] = item

		return nil
	})
}

func (r *basketRepository) ListByUser(_ context.Context, userID int64) ([]basket.Item, error) {
	items := []basket.Item{}
	_ = r.u.do(func(s *state) error {
		for _, it := range s.baskets[userID] {
			items = append(items, it)
		}

		return nil
	})
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

	return items, nil
}

func (r *basketRepository) SyncProduct(_ context.Context, productID string, available int) (int64, error) {
	var n int64
	err := r.u.do(func(s *state) error {
		for _, b := range s.baskets {
			it, ok := b[productID]
			if !ok {
				continue
			}
			it.Clamp(available)
			it.UpdatedAt = time.Now()
			b[productID] = it
			n++
		}

		return nil
	})

	return n, err
}

func (r *basketRepository) RenameProduct(_ context.Context, oldID, newID string) error {
	return r.u.do(func(s *state) error {
		for _, b := range s.baskets {
			it, ok := b[oldID]
			if !ok {
				continue
			}
			delete(b, oldID)
			it.ProductID = newID
			b[newID] = it
		}

		return nil
	})
}

func (r *basketRepository) ClearUser(_ context.Context, userID int64) error {
	return r.u.do(func(s *state) error {
		delete(s.baskets, userID)

		return nil
	})
}

type lovelistRepository struct {
	u *unitOfWork
}

func (r *lovelistRepository) Add(_ context.Context, item lovelist.Item) error {
	return r.u.do(func(s *state) error {
		if s.lovelists[item.UserID] == nil {
			s.lovelists[item.UserID] = make(map[string]lovelist.Item)
		}
		if _, exists := s.lovelists[item.UserID][item.ProductID]; exists {
			return nil
		}
		item.UpdatedAt = time.Now()
		s.lovelists[item.UserID][item.ProductID] = item

		return nil
	})
}

func (r *lovelistRepository) ListByUser(_ context.Context, userID int64) ([]lovelist.Item, error) {
	items := []lovelist.Item{}
	_ = r.u.do(func(s *state) error {
		for _, it := range s.lovelists[userID] {
			items = append(items, it)
		}

		return nil
	})
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

	return items, nil
}

func (r *lovelistRepository) SyncProduct(_ context.Context, productID string, available int) (int64, error) {
	var n int64
	err := r.u.do(func(s *state) error {
		for _, l := range s.lovelists {
			it, ok := l[productID]
			if !ok {
				continue
			}
			it.AvailableQuantity = available
			it.UpdatedAt = time.Now()
			l[productID] = it
			n++
		}

		return nil
	})

	return n, err
}

func (r *lovelistRepository) RenameProduct(_ context.Context, oldID, newID string) error {
	return r.u.do(func(s *state) error {
		for _, l := range s.lovelists {
			it, ok := l[oldID]
			if !ok {
				continue
			}
			delete(l, oldID)
			it.ProductID = newID
			l[newID] = it
		}

		return nil
	})
}

type auditRepository struct {
	u *unitOfWork
}

func (r *auditRepository) Insert(_ context.Context, entry auditlog.OrderStatusAudit) error {
	return r.u.do(func(s *state) error {
		s.auditSeq++
		entry.ID = s.auditSeq
		s.audits = append(s.audits, entry)

		return nil
	})
}

func (r *auditRepository) ListByOrder(_ context.Context, orderID int64) ([]auditlog.OrderStatusAudit, error) {
	entries := []auditlog.OrderStatusAudit{}
	_ = r.u.do(func(s *state) error {
		for _, e := range s.audits {
			if e.OrderID == orderID {
				entries = append(entries, e)
			}
		}

		return nil
	})

	return entries, nil
}
