package cooccur

import (
	"context"
	"testing"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/market"
	"github.com/rushteam/shoprec/relation"
	"github.com/rushteam/shoprec/store"
)

func newMiner(t *testing.T) (*Miner, *relation.Store) {
	t.Helper()
	f, err := market.LoadFixture("../market/testdata/market.yaml")
	if err != nil {
		t.Fatalf("LoadFixture 失败: %v", err)
	}
	kv := store.NewMemoryStore()
	t.Cleanup(func() { kv.Close() })
	rels := relation.NewStore(kv)
	return NewMiner(market.NewMemoryMarket(f), rels, kv), rels
}

func strength(t *testing.T, rels *relation.Store, p, q string) int64 {
	t.Helper()
	r, err := rels.GetRelation(context.Background(), p, q)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return 0
		}
		t.Fatalf("GetRelation 失败: %v", err)
	}
	return r.Strength
}

func TestMiner_Run(t *testing.T) {
	m, rels := newMiner(t)
	m.BatchSize = 2
	ctx := context.Background()

	stats, err := m.Run(ctx)
	if err != nil {
		t.Fatalf("Run 失败: %v", err)
	}
	// o1 [A B] 2 对，o2 [A img-1 mus-1] 6 对，o4 [img-3] 0 对；o3 未完成
	if stats.Orders != 3 || stats.Pairs != 8 {
		t.Errorf("stats = %+v, 期望 3 笔订单 8 对", stats)
	}
	if stats.Cursor.OrderID != "o4" {
		t.Errorf("游标 = %s, 期望 o4", stats.Cursor.OrderID)
	}

	tests := []struct {
		p, q string
		want int64
	}{
		{"A", "B", 1},
		{"B", "A", 1},
		{"img-1", "mus-1", 1},
		{"A", "img-2", 0},
	}
	for _, tt := range tests {
		if got := strength(t, rels, tt.p, tt.q); got != tt.want {
			t.Errorf("%s→%s strength = %d, 期望 %d", tt.p, tt.q, got, tt.want)
		}
	}

	r, err := rels.GetRelation(ctx, "A", "B")
	if err != nil {
		t.Fatalf("GetRelation 失败: %v", err)
	}
	if r.Type != core.RelationFrequentlyBoughtTogether {
		t.Errorf("type = %s, 期望 frequently_bought_together", r.Type)
	}

	// 再次运行不会重复计数
	again, err := m.Run(ctx)
	if err != nil {
		t.Fatalf("Run 失败: %v", err)
	}
	if again.Orders != 0 {
		t.Errorf("第二次运行处理了 %d 笔订单, 期望 0", again.Orders)
	}
	if got := strength(t, rels, "A", "B"); got != 1 {
		t.Errorf("A→B strength = %d, 期望 1", got)
	}
}

func TestMiner_KeepsExistingType(t *testing.T) {
	m, rels := newMiner(t)
	ctx := context.Background()
	if err := rels.RecordCooccurrence(ctx, "A", "B", core.RelationComplementary); err != nil {
		t.Fatalf("RecordCooccurrence 失败: %v", err)
	}
	if _, err := m.Run(ctx); err != nil {
		t.Fatalf("Run 失败: %v", err)
	}
	r, err := rels.GetRelation(ctx, "A", "B")
	if err != nil {
		t.Fatalf("GetRelation 失败: %v", err)
	}
	if r.Strength != 2 || r.Type != core.RelationComplementary {
		t.Errorf("relation = %+v, 期望 strength 2 且 type 保持 complementary", r)
	}
}

func TestMiner_MaxItemsPerOrder(t *testing.T) {
	m, rels := newMiner(t)
	m.MaxItemsPerOrder = 2

	stats, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run 失败: %v", err)
	}
	// o2 排序后截断为 [A img-1]
	if stats.Pairs != 4 {
		t.Errorf("pairs = %d, 期望 4", stats.Pairs)
	}
	if got := strength(t, rels, "A", "mus-1"); got != 0 {
		t.Errorf("超出上限的商品不应被记录, strength = %d", got)
	}
}

func TestDistinct(t *testing.T) {
	got := distinct([]string{"b", "a", "b", "", "c"})
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("distinct = %v, 期望 %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("distinct = %v, 期望 %v", got, want)
		}
	}
}

func TestNewScheduler_InvalidSchedule(t *testing.T) {
	m, _ := newMiner(t)
	if _, err := NewScheduler(m, "every minute", false); err == nil {
		t.Error("非法 cron 表达式应返回错误")
	}
	if _, err := NewScheduler(m, "*/15 * * * *", true); err != nil {
		t.Errorf("合法表达式不应失败: %v", err)
	}
}
