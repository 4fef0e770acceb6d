package market

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rushteam/shoprec/core"
)

type marketUnderTest interface {
	core.Catalog
	core.PurchaseHistory
	core.OrderFeed
}

func loadTestFixture(t *testing.T) *Fixture {
	t.Helper()
	f, err := LoadFixture("testdata/market.yaml")
	if err != nil {
		t.Fatalf("加载 fixture 失败: %v", err)
	}
	return f
}

func newGormMarket(t *testing.T) *GormMarket {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	m, err := Open("sqlite", dsn, true)
	if err != nil {
		t.Fatalf("打开 sqlite 失败: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	if err := Seed(context.Background(), m.DB(), loadTestFixture(t)); err != nil {
		t.Fatalf("灌库失败: %v", err)
	}
	return m
}

func TestMarkets(t *testing.T) {
	impls := []struct {
		name string
		open func(t *testing.T) marketUnderTest
	}{
		{"gorm-sqlite", func(t *testing.T) marketUnderTest { return newGormMarket(t) }},
		{"memory", func(t *testing.T) marketUnderTest { return NewMemoryMarket(loadTestFixture(t)) }},
	}

	for _, impl := range impls {
		t.Run(impl.name, func(t *testing.T) {
			m := impl.open(t)
			ctx := context.Background()

			t.Run("ProductsByCategory", func(t *testing.T) {
				ids, err := m.ProductsByCategory(ctx, "images", 2)
				if err != nil {
					t.Fatalf("ProductsByCategory 失败: %v", err)
				}
				if !reflect.DeepEqual(ids, []string{"img-1", "img-2"}) {
					t.Errorf("ProductsByCategory = %v", ids)
				}
				if ids, _ := m.ProductsByCategory(ctx, "nothing", 10); len(ids) != 0 {
					t.Errorf("未知类目应返回空，实际 %v", ids)
				}
			})

			t.Run("GetProductsSkipsMissing", func(t *testing.T) {
				ps, err := m.GetProducts(ctx, []string{"ghost", "img-3", "img-1"})
				if err != nil {
					t.Fatalf("GetProducts 失败: %v", err)
				}
				if len(ps) != 2 || ps[0].ID != "img-3" || ps[1].ID != "img-1" {
					t.Fatalf("GetProducts = %+v", ps)
				}
				if ps[1].AverageRating != 4.5 || ps[1].RatingCount != 2 || ps[1].Name != "Sunset Print" {
					t.Errorf("img-1 = %+v", ps[1])
				}
			})

			t.Run("TopRated", func(t *testing.T) {
				ps, err := m.TopRated(ctx, 3)
				if err != nil {
					t.Fatalf("TopRated 失败: %v", err)
				}
				var ids []string
				for _, p := range ps {
					ids = append(ids, p.ID)
				}
				if !reflect.DeepEqual(ids, []string{"mus-2", "img-1", "img-3"}) {
					t.Errorf("TopRated = %v", ids)
				}
			})

			t.Run("PurchasedProducts", func(t *testing.T) {
				ids, err := m.PurchasedProducts(ctx, "u2")
				if err != nil {
					t.Fatalf("PurchasedProducts 失败: %v", err)
				}
				// 未完成订单 o3 中的 img-2 不算已购
				if !reflect.DeepEqual(ids, []string{"A", "img-1", "mus-1"}) {
					t.Errorf("PurchasedProducts = %v", ids)
				}
			})

			t.Run("CompletedOrdersAfter", func(t *testing.T) {
				tests := []struct {
					name   string
					cursor core.OrderCursor
					limit  int
					want   []string
				}{
					{"从头开始", core.OrderCursor{}, 0, []string{"o1", "o2", "o4"}},
					{"同一时刻按 ID 推进", core.OrderCursor{CompletedAt: time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC), OrderID: "o1"}, 0, []string{"o2", "o4"}},
					{"限制条数", core.OrderCursor{}, 1, []string{"o1"}},
					{"已到末尾", core.OrderCursor{CompletedAt: time.Date(2024, 1, 3, 9, 30, 0, 0, time.UTC), OrderID: "o4"}, 0, nil},
				}
				for _, tt := range tests {
					t.Run(tt.name, func(t *testing.T) {
						orders, err := m.CompletedOrdersAfter(ctx, tt.cursor, tt.limit)
						if err != nil {
							t.Fatalf("CompletedOrdersAfter 失败: %v", err)
						}
						var ids []string
						for _, o := range orders {
							ids = append(ids, o.ID)
						}
						if !reflect.DeepEqual(ids, tt.want) {
							t.Errorf("订单 = %v, 期望 %v", ids, tt.want)
						}
					})
				}

				orders, _ := m.CompletedOrdersAfter(ctx, core.OrderCursor{}, 1)
				if len(orders) == 1 && !reflect.DeepEqual(orders[0].ProductIDs, []string{"A", "B"}) {
					t.Errorf("o1 商品 = %v", orders[0].ProductIDs)
				}
			})
		})
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	if _, err := Open("oracle", "", false); !core.IsInvalidInput(err) {
		t.Errorf("期望 INVALID_INPUT，实际 %v", err)
	}
}
