package service

import (
	"context"
	"reflect"
	"strconv"
	"sync"
	"testing"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/interest"
	"github.com/rushteam/shoprec/market"
	"github.com/rushteam/shoprec/ranking"
	"github.com/rushteam/shoprec/recall"
	"github.com/rushteam/shoprec/relation"
	"github.com/rushteam/shoprec/scorer"
	"github.com/rushteam/shoprec/store"
)

type recordingQueue struct {
	mu    sync.Mutex
	users []string
}

func (q *recordingQueue) Enqueue(_ context.Context, userID, _ string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.users = append(q.users, userID)
	return nil
}

type fixture struct {
	svc       *Service
	kv        *store.MemoryStore
	ranking   *ranking.Store
	interests *interest.Store
	relations *relation.Store
}

func newFixture(t *testing.T, mode Mode, queue Enqueuer) *fixture {
	t.Helper()
	f, err := market.LoadFixture("../market/testdata/market.yaml")
	if err != nil {
		t.Fatalf("LoadFixture 失败: %v", err)
	}
	kv := store.NewMemoryStore()
	t.Cleanup(func() { kv.Close() })

	mkt := market.NewMemoryMarket(f)
	interests := interest.NewStore(kv)
	relations := relation.NewStore(kv)
	rankings := ranking.NewStore(kv)
	sc, err := scorer.New(scorer.Deps{
		Interests: interests,
		Relations: relations,
		History:   mkt,
		Catalog:   mkt,
		Ranking:   rankings,
	}, scorer.DefaultConfig())
	if err != nil {
		t.Fatalf("scorer.New 失败: %v", err)
	}

	svc := New(Deps{
		Interests: interests,
		Relations: relations,
		Ranking:   rankings,
		Catalog:   mkt,
		Scorer:    sc,
		Popular:   recall.NewHot(mkt, kv, recall.BreakerConfig{}),
		Queue:     queue,
		Mode:      mode,
	})
	return &fixture{svc: svc, kv: kv, ranking: rankings, interests: interests, relations: relations}
}

func productIDs(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestGetRecommendations_Fallback(t *testing.T) {
	fx := newFixture(t, ModeSync, nil)
	ctx := context.Background()

	tests := []struct {
		name   string
		userID string
		limit  int
		want   []string
	}{
		{"新用户", "u9", 3, []string{"mus-2", "img-1", "img-3"}},
		{"匿名", "", 2, []string{"mus-2", "img-1"}},
		{"默认 limit", "u9", 0, []string{"mus-2", "img-1", "img-3", "A", "B", "img-2", "mus-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := fx.svc.GetRecommendations(ctx, tt.userID, tt.limit)
			if err != nil {
				t.Fatalf("GetRecommendations 失败: %v", err)
			}
			if res.Source != SourcePopular {
				t.Errorf("source = %s, 期望 popular", res.Source)
			}
			if got := productIDs(res.Items); !sameIDs(got, tt.want) {
				t.Errorf("结果 = %v, 期望 %v", got, tt.want)
			}
			for _, it := range res.Items {
				if it.Reason != core.ReasonRatingBased {
					t.Errorf("%s reason = %s, 期望 rating_based", it.ID, it.Reason)
				}
			}
		})
	}

	// 兜底结果不写回
	recs, err := fx.ranking.List(ctx, "u9", 0)
	if err != nil {
		t.Fatalf("List 失败: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("兜底结果不应写回推荐存储: %v", recs)
	}
}

func TestRecordInteraction_Sync(t *testing.T) {
	fx := newFixture(t, ModeSync, nil)
	ctx := context.Background()

	if err := fx.svc.RecordInteraction(ctx, "u4", "images", core.ActionView); err != nil {
		t.Fatalf("RecordInteraction 失败: %v", err)
	}

	res, err := fx.svc.GetRecommendations(ctx, "u4", 2)
	if err != nil {
		t.Fatalf("GetRecommendations 失败: %v", err)
	}
	if res.Source != SourcePersonalized {
		t.Fatalf("source = %s, 期望 personalized", res.Source)
	}
	if got := productIDs(res.Items); !sameIDs(got, []string{"img-1", "img-2"}) {
		t.Errorf("结果 = %v", got)
	}
	if res.Items[0].Name != "Sunset Print" || res.Items[0].Reason != core.ReasonCategoryInterest {
		t.Errorf("商品摘要未关联: %+v", res.Items[0])
	}
	if res.GeneratedAt == nil {
		t.Error("应返回 generated_at")
	}
}

func TestRecordInteraction_Async(t *testing.T) {
	q := &recordingQueue{}
	fx := newFixture(t, ModeAsync, q)
	ctx := context.Background()

	if err := fx.svc.RecordInteraction(ctx, "u4", "music", core.ActionPurchase); err != nil {
		t.Fatalf("RecordInteraction 失败: %v", err)
	}
	ui, err := fx.interests.GetInterest(ctx, "u4", "music")
	if err != nil {
		t.Fatalf("GetInterest 失败: %v", err)
	}
	if ui.InteractionCount != 1 || ui.PurchaseCount != 1 {
		t.Errorf("兴趣计数 = %+v", ui)
	}
	if len(q.users) != 1 || q.users[0] != "u4" {
		t.Errorf("队列 = %v, 期望 [u4]", q.users)
	}

	// 重算尚未执行
	recs, err := fx.ranking.List(ctx, "u4", 0)
	if err != nil {
		t.Fatalf("List 失败: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("异步模式不应在请求内重算: %v", recs)
	}

	async, err := fx.svc.RequestRecompute(ctx, "u4", "manual")
	if err != nil || !async {
		t.Errorf("RequestRecompute = (%v, %v), 期望异步", async, err)
	}
}

func TestMode_AsyncWithoutQueue(t *testing.T) {
	fx := newFixture(t, ModeAsync, nil)
	if fx.svc.Mode() != ModeSync {
		t.Errorf("没有队列时应退化为同步")
	}
}

func TestGetRecommendations_DropsUnknownProducts(t *testing.T) {
	fx := newFixture(t, ModeSync, nil)
	ctx := context.Background()
	err := fx.ranking.Replace(ctx, "u7", []core.ProductRecommendation{
		{UserID: "u7", ProductID: "ghost", Score: 2, Reason: core.ReasonComplementary},
		{UserID: "u7", ProductID: "img-3", Score: 1, Reason: core.ReasonCategoryInterest},
	})
	if err != nil {
		t.Fatalf("Replace 失败: %v", err)
	}

	res, err := fx.svc.GetRecommendations(ctx, "u7", 10)
	if err != nil {
		t.Fatalf("GetRecommendations 失败: %v", err)
	}
	if got := productIDs(res.Items); !sameIDs(got, []string{"img-3"}) {
		t.Errorf("结果 = %v, 期望 [img-3]", got)
	}
}

func TestUpdateProductRelations(t *testing.T) {
	fx := newFixture(t, ModeSync, nil)
	ctx := context.Background()

	if err := fx.svc.UpdateProductRelations(ctx, "A", "A", core.RelationSimilar); !core.IsInvalidInput(err) {
		t.Errorf("自关联应返回 INVALID_INPUT, 实际 %v", err)
	}
	for i := 0; i < 7; i++ {
		if err := fx.svc.UpdateProductRelations(ctx, "A", "B", core.RelationComplementary); err != nil {
			t.Fatalf("UpdateProductRelations 失败: %v", err)
		}
	}

	// u2 购买过 A
	recs, err := fx.svc.GenerateRecommendations(ctx, "u2")
	if err != nil {
		t.Fatalf("GenerateRecommendations 失败: %v", err)
	}
	if len(recs) != 1 || recs[0].ProductID != "B" || recs[0].Score != 0.7 || recs[0].Reason != core.ReasonComplementary {
		t.Errorf("结果 = %+v, 期望 B 0.7 complementary", recs)
	}
}

func TestGetRecommendations_Idempotent(t *testing.T) {
	fx := newFixture(t, ModeSync, nil)
	ctx := context.Background()

	if err := fx.svc.RecordInteraction(ctx, "u4", "images", core.ActionView); err != nil {
		t.Fatalf("RecordInteraction 失败: %v", err)
	}

	t.Run("个性化", func(t *testing.T) {
		first, err := fx.svc.GetRecommendations(ctx, "u4", 10)
		if err != nil {
			t.Fatalf("GetRecommendations 失败: %v", err)
		}
		second, err := fx.svc.GetRecommendations(ctx, "u4", 10)
		if err != nil {
			t.Fatalf("GetRecommendations 失败: %v", err)
		}
		if first.Source != SourcePersonalized || len(first.Items) == 0 {
			t.Fatalf("首次结果 = %+v", first)
		}
		if !reflect.DeepEqual(first, second) {
			t.Errorf("两次读取不一致:\n%+v\n%+v", first, second)
		}
	})

	t.Run("热门兜底缓存未命中后命中", func(t *testing.T) {
		if n, _ := fx.kv.ZCard(ctx, "hot:products"); n != 0 {
			t.Fatalf("首次读取前缓存应为空, ZCard = %d", n)
		}
		first, err := fx.svc.GetRecommendations(ctx, "u9", 5)
		if err != nil {
			t.Fatalf("GetRecommendations 失败: %v", err)
		}
		if n, _ := fx.kv.ZCard(ctx, "hot:products"); n == 0 {
			t.Fatal("首次读取后应写入热门缓存")
		}
		second, err := fx.svc.GetRecommendations(ctx, "u9", 5)
		if err != nil {
			t.Fatalf("GetRecommendations 失败: %v", err)
		}
		if first.Source != SourcePopular || len(first.Items) == 0 {
			t.Fatalf("首次结果 = %+v", first)
		}
		if !reflect.DeepEqual(first, second) {
			t.Errorf("缓存命中前后结果不一致:\n%+v\n%+v", first, second)
		}
	})
}

// staticSource 按固定顺序返回候选
type staticSource []core.ScoredMember

func (s staticSource) Name() string { return "static" }

func (s staticSource) Recall(context.Context, *core.RecommendContext) ([]*core.Item, error) {
	out := make([]*core.Item, 0, len(s))
	for _, m := range s {
		it := core.NewItem(m.Member)
		it.Score = m.Score
		out = append(out, it)
	}
	return out, nil
}

func TestGetRecommendations_FallbackFillsLimitPastUnknownProducts(t *testing.T) {
	fx := newFixture(t, ModeSync, nil)
	fx.svc.deps.Popular = staticSource{
		{Member: "ghost", Score: 5},
		{Member: "mus-2", Score: 4.8},
		{Member: "delisted", Score: 4.7},
		{Member: "img-1", Score: 4.5},
		{Member: "img-3", Score: 4.2},
	}

	tests := []struct {
		limit int
		want  []string
	}{
		{1, []string{"mus-2"}},
		{2, []string{"mus-2", "img-1"}},
		{3, []string{"mus-2", "img-1", "img-3"}},
		{10, []string{"mus-2", "img-1", "img-3"}},
	}
	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.limit), func(t *testing.T) {
			res, err := fx.svc.GetRecommendations(context.Background(), "u9", tt.limit)
			if err != nil {
				t.Fatalf("GetRecommendations 失败: %v", err)
			}
			if got := productIDs(res.Items); !sameIDs(got, tt.want) {
				t.Errorf("limit=%d 结果 = %v, 期望 %v", tt.limit, got, tt.want)
			}
		})
	}
}
