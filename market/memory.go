package market

import (
	"context"
	"sort"

	"github.com/rushteam/shoprec/core"
)

// MemoryMarket 是基于 Fixture 的内存实现，用于测试/开发。
type MemoryMarket struct {
	products   map[string]core.Product
	byCategory map[string][]string
	orders     []core.Order
}

var (
	_ core.Catalog         = (*MemoryMarket)(nil)
	_ core.PurchaseHistory = (*MemoryMarket)(nil)
	_ core.OrderFeed       = (*MemoryMarket)(nil)
)

func NewMemoryMarket(f *Fixture) *MemoryMarket {
	m := &MemoryMarket{
		products:   make(map[string]core.Product, len(f.Products)),
		byCategory: make(map[string][]string),
	}
	for _, p := range f.Products {
		m.products[p.ID] = core.Product{ID: p.ID, CategoryID: p.CategoryID, Name: p.Name, PriceCents: p.PriceCents}
		m.byCategory[p.CategoryID] = append(m.byCategory[p.CategoryID], p.ID)
	}
	for _, ids := range m.byCategory {
		sort.Strings(ids)
	}

	sums := make(map[string]int)
	for _, r := range f.Reviews {
		p, ok := m.products[r.ProductID]
		if !ok {
			continue
		}
		sums[r.ProductID] += r.Rating
		p.RatingCount++
		p.AverageRating = float64(sums[r.ProductID]) / float64(p.RatingCount)
		m.products[r.ProductID] = p
	}

	for _, o := range f.Orders {
		if o.Status != OrderStatusCompleted || o.CompletedAt.IsZero() {
			continue
		}
		m.orders = append(m.orders, core.Order{
			ID:          o.ID,
			UserID:      o.UserID,
			CompletedAt: o.CompletedAt.UTC(),
			ProductIDs:  append([]string(nil), o.ProductIDs...),
		})
	}
	sort.Slice(m.orders, func(i, j int) bool { return orderLess(m.orders[i], m.orders[j]) })
	return m
}

func orderLess(a, b core.Order) bool {
	if !a.CompletedAt.Equal(b.CompletedAt) {
		return a.CompletedAt.Before(b.CompletedAt)
	}
	return a.ID < b.ID
}

func (m *MemoryMarket) ProductsByCategory(ctx context.Context, categoryID string, limit int) ([]string, error) {
	ids := m.byCategory[categoryID]
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return append([]string(nil), ids...), nil
}

func (m *MemoryMarket) GetProducts(ctx context.Context, ids []string) ([]core.Product, error) {
	out := make([]core.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MemoryMarket) TopRated(ctx context.Context, limit int) ([]core.Product, error) {
	all := make([]core.Product, 0, len(m.products))
	for _, p := range m.products {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].AverageRating != all[j].AverageRating {
			return all[i].AverageRating > all[j].AverageRating
		}
		if all[i].RatingCount != all[j].RatingCount {
			return all[i].RatingCount > all[j].RatingCount
		}
		return all[i].ID < all[j].ID
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *MemoryMarket) PurchasedProducts(ctx context.Context, userID string) ([]string, error) {
	seen := make(map[string]struct{})
	for _, o := range m.orders {
		if o.UserID != userID {
			continue
		}
		for _, pid := range o.ProductIDs {
			seen[pid] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for pid := range seen {
		out = append(out, pid)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryMarket) CompletedOrdersAfter(ctx context.Context, cursor core.OrderCursor, limit int) ([]core.Order, error) {
	after := core.Order{ID: cursor.OrderID, CompletedAt: cursor.CompletedAt}
	var out []core.Order
	for _, o := range m.orders {
		if !cursor.CompletedAt.IsZero() && !orderLess(after, o) {
			continue
		}
		out = append(out, o)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
