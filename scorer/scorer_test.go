package scorer

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/filter"
	"github.com/rushteam/shoprec/interest"
	"github.com/rushteam/shoprec/market"
	"github.com/rushteam/shoprec/ranking"
	"github.com/rushteam/shoprec/relation"
	"github.com/rushteam/shoprec/store"
)

type env struct {
	kv        *store.MemoryStore
	interests *interest.Store
	relations *relation.Store
	ranking   *ranking.Store
	market    *market.MemoryMarket
}

func newEnv(t *testing.T) *env {
	t.Helper()
	f, err := market.LoadFixture("../market/testdata/market.yaml")
	if err != nil {
		t.Fatalf("LoadFixture 失败: %v", err)
	}
	kv := store.NewMemoryStore()
	t.Cleanup(func() { kv.Close() })
	return &env{
		kv:        kv,
		interests: interest.NewStore(kv),
		relations: relation.NewStore(kv),
		ranking:   ranking.NewStore(kv),
		market:    market.NewMemoryMarket(f),
	}
}

func (e *env) deps() Deps {
	return Deps{
		Interests: e.interests,
		Relations: e.relations,
		History:   e.market,
		Catalog:   e.market,
		Ranking:   e.ranking,
		Blacklist: filter.NewStoreAdapter(e.kv),
	}
}

func (e *env) scorer(t *testing.T, cfg Config) *Scorer {
	t.Helper()
	s, err := New(e.deps(), cfg)
	if err != nil {
		t.Fatalf("New 失败: %v", err)
	}
	return s
}

func (e *env) interact(t *testing.T, userID, categoryID string, times int) {
	t.Helper()
	for i := 0; i < times; i++ {
		if err := e.interests.RecordInteraction(context.Background(), userID, categoryID, core.ActionView); err != nil {
			t.Fatalf("RecordInteraction 失败: %v", err)
		}
	}
}

func (e *env) relate(t *testing.T, p, r string, typ core.RelationType, times int) {
	t.Helper()
	for i := 0; i < times; i++ {
		if err := e.relations.RecordCooccurrence(context.Background(), p, r, typ); err != nil {
			t.Fatalf("RecordCooccurrence 失败: %v", err)
		}
	}
}

type want struct {
	id     string
	score  float64
	reason core.Reason
}

func check(t *testing.T, got []core.ProductRecommendation, expected []want) {
	t.Helper()
	if len(got) != len(expected) {
		t.Fatalf("结果数 = %d, 期望 %d: %+v", len(got), len(expected), got)
	}
	for i, w := range expected {
		g := got[i]
		if g.ProductID != w.id || math.Abs(g.Score-w.score) > 1e-9 || g.Reason != w.reason {
			t.Errorf("第 %d 个 = {%s %v %s}, 期望 {%s %v %s}", i, g.ProductID, g.Score, g.Reason, w.id, w.score, w.reason)
		}
	}
}

func TestRecompute_CategoryInterest(t *testing.T) {
	e := newEnv(t)
	// u4 没有订单：images 交互 3 次，music 交互 1 次
	e.interact(t, "u4", "images", 3)
	e.interact(t, "u4", "music", 1)

	recs, err := e.scorer(t, DefaultConfig()).Recompute(context.Background(), "u4")
	if err != nil {
		t.Fatalf("Recompute 失败: %v", err)
	}
	check(t, recs, []want{
		{"img-1", 1.0, core.ReasonCategoryInterest},
		{"img-2", 1.0, core.ReasonCategoryInterest},
		{"img-3", 1.0, core.ReasonCategoryInterest},
		{"mus-1", 0.8, core.ReasonCategoryInterest},
		{"mus-2", 0.8, core.ReasonCategoryInterest},
	})

	// 读路径与写入结果一致
	listed, err := e.ranking.List(context.Background(), "u4", 0)
	if err != nil {
		t.Fatalf("List 失败: %v", err)
	}
	check(t, listed, []want{
		{"img-1", 1.0, core.ReasonCategoryInterest},
		{"img-2", 1.0, core.ReasonCategoryInterest},
		{"img-3", 1.0, core.ReasonCategoryInterest},
		{"mus-1", 0.8, core.ReasonCategoryInterest},
		{"mus-2", 0.8, core.ReasonCategoryInterest},
	})
}

func TestRecompute_ComplementaryRelation(t *testing.T) {
	e := newEnv(t)
	// u2 购买过 A, img-1, mus-1
	e.relate(t, "A", "B", core.RelationComplementary, 7)

	recs, err := e.scorer(t, DefaultConfig()).Recompute(context.Background(), "u2")
	if err != nil {
		t.Fatalf("Recompute 失败: %v", err)
	}
	check(t, recs, []want{{"B", 0.7, core.ReasonComplementary}})
}

func TestRecompute_ExcludesPurchasedAndSums(t *testing.T) {
	e := newEnv(t)
	e.interact(t, "u2", "images", 2)
	e.relate(t, "A", "img-2", core.RelationSimilar, 3)
	e.relate(t, "A", "img-1", core.RelationComplementary, 9)
	e.relate(t, "img-1", "B", core.RelationFrequentlyBoughtTogether, 2)

	recs, err := e.scorer(t, DefaultConfig()).Recompute(context.Background(), "u2")
	if err != nil {
		t.Fatalf("Recompute 失败: %v", err)
	}
	// img-1 已购被排除；img-2 = 1.0 + 0.3，reason 由关系阶段覆盖
	check(t, recs, []want{
		{"img-2", 1.3, core.ReasonSimilarPurchases},
		{"img-3", 1.0, core.ReasonCategoryInterest},
		{"B", 0.2, core.ReasonSimilarPurchases},
	})
	for _, r := range recs {
		switch r.ProductID {
		case "A", "img-1", "mus-1":
			t.Errorf("已购商品 %s 不应出现", r.ProductID)
		}
	}
}

func TestRecompute_ReplacesCompletely(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.interact(t, "u4", "music", 1)

	s := e.scorer(t, Config{BlacklistKey: "catalog:delisted"})
	if _, err := s.Recompute(ctx, "u4"); err != nil {
		t.Fatalf("Recompute 失败: %v", err)
	}

	if err := filter.NewStoreAdapter(e.kv).SetBlacklist(ctx, "catalog:delisted", []string{"mus-1"}); err != nil {
		t.Fatalf("SetBlacklist 失败: %v", err)
	}
	if _, err := s.Recompute(ctx, "u4"); err != nil {
		t.Fatalf("Recompute 失败: %v", err)
	}

	listed, err := e.ranking.List(ctx, "u4", 0)
	if err != nil {
		t.Fatalf("List 失败: %v", err)
	}
	check(t, listed, []want{{"mus-2", 1.0, core.ReasonCategoryInterest}})
}

func TestRecompute_Limits(t *testing.T) {
	e := newEnv(t)
	e.interact(t, "u4", "images", 2)
	e.interact(t, "u4", "music", 1)

	tests := []struct {
		name string
		cfg  Config
		want int
	}{
		{"MaxResults", Config{MaxResults: 2}, 2},
		{"TopCategories", Config{TopCategories: 1}, 3},
		{"ProductsPerCategory", Config{ProductsPerCategory: 1}, 2},
		{"FilterExpr", Config{FilterExpr: `item.score >= 0.9`}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := e.scorer(t, tt.cfg).Recompute(context.Background(), "u4")
			if err != nil {
				t.Fatalf("Recompute 失败: %v", err)
			}
			if len(recs) != tt.want {
				t.Errorf("结果数 = %d, 期望 %d", len(recs), tt.want)
			}
		})
	}
}

func TestRecompute_WeightMonotonic(t *testing.T) {
	e := newEnv(t)
	// 类目排名越靠前，商品分数越高
	e.interact(t, "u5", "music", 4)
	e.interact(t, "u5", "images", 2)
	e.interact(t, "u5", "gear", 1)

	recs, err := e.scorer(t, DefaultConfig()).Recompute(context.Background(), "u5")
	if err != nil {
		t.Fatalf("Recompute 失败: %v", err)
	}
	byID := make(map[string]float64, len(recs))
	for _, r := range recs {
		byID[r.ProductID] = r.Score
	}
	if !(byID["mus-1"] > byID["img-1"] && byID["img-1"] > byID["A"]) {
		t.Errorf("分数应随类目排名递减: %v", byID)
	}
}

type failingHistory struct{}

func (failingHistory) PurchasedProducts(context.Context, string) ([]string, error) {
	return nil, errors.New("orders unavailable")
}

func TestRecompute_FailureKeepsOldRanking(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	old := []core.ProductRecommendation{{UserID: "u4", ProductID: "img-1", Score: 1, Reason: core.ReasonCategoryInterest, GeneratedAt: time.Now()}}
	if err := e.ranking.Replace(ctx, "u4", old); err != nil {
		t.Fatalf("Replace 失败: %v", err)
	}
	e.interact(t, "u4", "music", 1)

	deps := e.deps()
	deps.History = failingHistory{}
	s, err := New(deps, DefaultConfig())
	if err != nil {
		t.Fatalf("New 失败: %v", err)
	}
	if _, err := s.Recompute(ctx, "u4"); err == nil {
		t.Fatal("读取已购失败时 Recompute 应返回错误")
	}

	listed, err := e.ranking.List(ctx, "u4", 0)
	if err != nil {
		t.Fatalf("List 失败: %v", err)
	}
	check(t, listed, []want{{"img-1", 1, core.ReasonCategoryInterest}})
}

func TestNew_InvalidExpr(t *testing.T) {
	e := newEnv(t)
	if _, err := New(e.deps(), Config{FilterExpr: "item.score >"}); !core.IsInvalidInput(err) {
		t.Errorf("非法表达式应返回 INVALID_INPUT, 实际 %v", err)
	}
	if _, err := e.scorer(t, DefaultConfig()).Recompute(context.Background(), ""); !core.IsInvalidInput(err) {
		t.Errorf("空 user id 应返回 INVALID_INPUT, 实际 %v", err)
	}
}
