package recall

import (
	"context"
	"errors"
	"sort"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pipeline"
	"github.com/rushteam/shoprec/pkg/logging"
	"github.com/rushteam/shoprec/pkg/metrics"
	"github.com/rushteam/shoprec/pkg/utils"
)

const (
	DefaultHotKey      = "hot:products"
	DefaultHotPoolSize = 100
	DefaultHotTTL      = 10 * time.Minute
)

// RatingSource 提供比目录聚合更新鲜的平均评分（例如在线特征库），可选。
type RatingSource interface {
	AverageRatings(ctx context.Context, productIDs []string) (map[string]float64, error)
}

// BreakerConfig 是热门源熔断配置
type BreakerConfig struct {
	FailureThreshold uint32
	Timeout          time.Duration
}

// Hot 是热门召回源：按平均评分降序的商品，用作无个性化结果时的兜底。
//
//   - 优先读取 KeyValueStore 中的有序集合缓存（Key，默认 hot:products）
//   - 缓存缺失时从 Catalog.TopRated 加载并回写缓存（TTL 过期）
//   - 加载经过熔断器：连续失败后熔断打开，期间直接返回空列表
//
// Hot 同时实现了 Source 和 Node 接口，可以直接在 Pipeline 中使用
type Hot struct {
	Catalog  core.Catalog
	Ratings  RatingSource
	Store    core.KeyValueStore
	Key      string
	TTL      time.Duration
	PoolSize int

	breaker *gobreaker.CircuitBreaker[[]core.Product]
}

func NewHot(catalog core.Catalog, kv core.KeyValueStore, cfg BreakerConfig) *Hot {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	h := &Hot{
		Catalog:  catalog,
		Store:    kv,
		Key:      DefaultHotKey,
		TTL:      DefaultHotTTL,
		PoolSize: DefaultHotPoolSize,
	}
	h.breaker = gobreaker.NewCircuitBreaker[[]core.Product](gobreaker.Settings{
		Name:    "popularity",
		Timeout: cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
			if to == gobreaker.StateOpen {
				metrics.PopularityBreakerState.Set(1)
			} else {
				metrics.PopularityBreakerState.Set(0)
			}
		},
	})
	return h
}

func (r *Hot) Name() string        { return "recall.hot" }
func (r *Hot) Kind() pipeline.Kind { return pipeline.KindRecall }

// Process 实现 Node 接口，直接调用 Recall
func (r *Hot) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

// Recall 实现 Source 接口：返回热门商品，分数为平均评分，reason 为 rating_based
func (r *Hot) Recall(ctx context.Context, _ *core.RecommendContext) ([]*core.Item, error) {
	scored, err := r.popular(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*core.Item, 0, len(scored))
	for _, s := range scored {
		it := core.NewItem(s.Member)
		it.Score = s.Score
		it.SetLabel(core.LabelReason, utils.Label{Value: string(core.ReasonRatingBased), Source: "recall"})
		out = append(out, it)
	}
	return out, nil
}

func (r *Hot) key() string {
	if r.Key == "" {
		return DefaultHotKey
	}
	return r.Key
}

func (r *Hot) poolSize() int {
	if r.PoolSize <= 0 {
		return DefaultHotPoolSize
	}
	return r.PoolSize
}

func (r *Hot) popular(ctx context.Context) ([]core.ScoredMember, error) {
	if r.Store != nil {
		cached, err := r.Store.ZRangeWithScores(ctx, r.key(), 0, int64(r.poolSize()-1))
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("popularity cache read failed")
		} else if len(cached) > 0 {
			metrics.PopularityCache.WithLabelValues("hit").Inc()
			sortByScoreThenID(cached)
			return cached, nil
		}
	}
	metrics.PopularityCache.WithLabelValues("miss").Inc()

	products, err := r.load(ctx)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		logging.Ctx(ctx).Warn().Err(err).Msg("popularity source unavailable, serving empty list")
		return nil, nil
	}
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleCatalog, core.ErrorCodeUnavailable, "popularity: load top rated", err)
	}

	scored := make([]core.ScoredMember, 0, len(products))
	for _, p := range products {
		scored = append(scored, core.ScoredMember{Member: p.ID, Score: p.AverageRating})
	}
	sortByScoreThenID(scored)
	r.writeCache(ctx, scored)
	return scored, nil
}

// load 经过熔断器从目录加载热门商品，Ratings 存在时用其覆盖平均评分
func (r *Hot) load(ctx context.Context) ([]core.Product, error) {
	run := func() ([]core.Product, error) {
		products, err := r.Catalog.TopRated(ctx, r.poolSize())
		if err != nil || r.Ratings == nil || len(products) == 0 {
			return products, err
		}

		ids := make([]string, len(products))
		for i, p := range products {
			ids[i] = p.ID
		}
		fresh, err := r.Ratings.AverageRatings(ctx, ids)
		if err != nil {
			// 在线评分不可用时退回目录聚合值，不计入熔断
			logging.Ctx(ctx).Warn().Err(err).Msg("rating source failed, using catalog ratings")
			return products, nil
		}
		for i := range products {
			if v, ok := fresh[products[i].ID]; ok {
				products[i].AverageRating = v
			}
		}
		return products, nil
	}
	if r.breaker == nil {
		return run()
	}
	return r.breaker.Execute(run)
}

func (r *Hot) writeCache(ctx context.Context, scored []core.ScoredMember) {
	if r.Store == nil || len(scored) == 0 {
		return
	}
	ttl := r.TTL
	if ttl <= 0 {
		ttl = DefaultHotTTL
	}
	key := r.key()
	err := r.Store.Atomic(ctx, func(tx core.KeyValueTx) error {
		tx.Delete(key)
		for _, s := range scored {
			tx.ZAdd(key, s.Score, s.Member)
		}
		tx.Expire(key, ttlSeconds(ttl))
		return nil
	})
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("popularity cache write failed")
	}
}

// Invalidate 删除热门缓存，下次读取时重新加载
func (r *Hot) Invalidate(ctx context.Context) error {
	if r.Store == nil {
		return nil
	}
	return r.Store.Delete(ctx, r.key())
}

// ttlSeconds 向上取整到秒，至少为 1
func ttlSeconds(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}

func sortByScoreThenID(members []core.ScoredMember) {
	sort.SliceStable(members, func(i, j int) bool {
		if members[i].Score != members[j].Score {
			return members[i].Score > members[j].Score
		}
		return members[i].Member < members[j].Member
	})
}
