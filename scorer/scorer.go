// Package scorer 重算单个用户的推荐结果并整体替换物化的排名。
//
// 一次重算是一条 Pipeline：
//
//	recall.Fanout(MergeSum)   类目兴趣召回（按排名加权） + 已购商品的关系召回（strength / 10）
//	filter.FilterNode         排除已购 / 黑名单 / 规则表达式
//	rerank.SortNode           分数降序，同分按商品 ID 升序
//	rerank.TopNNode           截取前 MaxResults 个
//
// 任一步骤失败都不会写入；写入是一个原子批次。
package scorer

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/filter"
	"github.com/rushteam/shoprec/pipeline"
	"github.com/rushteam/shoprec/pkg/conv"
	"github.com/rushteam/shoprec/pkg/logging"
	"github.com/rushteam/shoprec/pkg/metrics"
	"github.com/rushteam/shoprec/recall"
	"github.com/rushteam/shoprec/rerank"
)

// Config 是打分参数
type Config struct {
	TopCategories       int     `koanf:"top_categories" validate:"min=1"`
	ProductsPerCategory int     `koanf:"products_per_category" validate:"min=1"`
	RelationsPerProduct int     `koanf:"relations_per_product" validate:"min=1"`
	StrengthDivisor     float64 `koanf:"strength_divisor" validate:"gt=0"`
	MaxResults          int     `koanf:"max_results" validate:"min=1"`

	// MaxConcurrent 限制召回源的并发数，0 表示不限制
	MaxConcurrent int `koanf:"max_concurrent" validate:"min=0"`

	// FilterExpr 是可选的 CEL 保留条件，例如 item.score >= 0.4
	FilterExpr string `koanf:"filter_expr"`

	// BlacklistKey 是 KV 中下架商品列表的 key，空表示不启用
	BlacklistKey string `koanf:"blacklist_key"`
}

func DefaultConfig() Config {
	return Config{
		TopCategories:       5,
		ProductsPerCategory: 10,
		RelationsPerProduct: 5,
		StrengthDivisor:     recall.DefaultStrengthDivisor,
		MaxResults:          20,
		MaxConcurrent:       8,
	}
}

// Deps 是 Scorer 依赖的存储与协作方
type Deps struct {
	Interests core.InterestStore
	Relations core.RelationStore
	History   core.PurchaseHistory
	Catalog   core.Catalog
	Ranking   core.RecommendationStore

	// Blacklist 可选，配合 Config.BlacklistKey 使用
	Blacklist filter.BlacklistStore
}

type Scorer struct {
	deps    Deps
	cfg     Config
	filters []filter.Filter
	now     func() time.Time
}

// New 创建 Scorer；FilterExpr 非法时返回 INVALID_INPUT。
func New(deps Deps, cfg Config) (*Scorer, error) {
	def := DefaultConfig()
	if cfg.TopCategories <= 0 {
		cfg.TopCategories = def.TopCategories
	}
	if cfg.ProductsPerCategory <= 0 {
		cfg.ProductsPerCategory = def.ProductsPerCategory
	}
	if cfg.RelationsPerProduct <= 0 {
		cfg.RelationsPerProduct = def.RelationsPerProduct
	}
	if cfg.StrengthDivisor <= 0 {
		cfg.StrengthDivisor = def.StrengthDivisor
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = def.MaxResults
	}

	filters := []filter.Filter{&filter.PurchasedFilter{}}
	if deps.Blacklist != nil && cfg.BlacklistKey != "" {
		filters = append(filters, &filter.BlacklistFilter{Store: deps.Blacklist, Key: cfg.BlacklistKey})
	}
	if cfg.FilterExpr != "" {
		f, err := filter.NewExprFilter(cfg.FilterExpr)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}

	return &Scorer{
		deps:    deps,
		cfg:     cfg,
		filters: filters,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Recompute 重算 userID 的推荐结果并原子替换，返回写入的结果（已按分数降序）。
func (s *Scorer) Recompute(ctx context.Context, userID string) ([]core.ProductRecommendation, error) {
	if userID == "" {
		return nil, core.NewDomainError(core.ModuleScorer, core.ErrorCodeInvalidInput, "scorer: user id is required")
	}

	start := time.Now()
	recs, err := s.recompute(ctx, userID)
	metrics.RecomputeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RecomputeTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.RecomputeTotal.WithLabelValues("ok").Inc()
	metrics.RecomputeCandidates.Observe(float64(len(recs)))

	logging.Ctx(ctx).Info().
		Str("user_id", userID).
		Int("candidates", len(recs)).
		Dur("duration", time.Since(start)).
		Msg("recommendations recomputed")
	return recs, nil
}

func (s *Scorer) recompute(ctx context.Context, userID string) ([]core.ProductRecommendation, error) {
	rctx, err := s.loadContext(ctx, userID)
	if err != nil {
		return nil, err
	}

	p := &pipeline.Pipeline{
		Nodes: []pipeline.Node{
			&recall.Fanout{
				Sources:       s.sources(rctx),
				MaxConcurrent: s.cfg.MaxConcurrent,
				MergeStrategy: recall.MergeSum,
			},
			&filter.FilterNode{Filters: s.filters},
			&rerank.SortNode{},
			&rerank.TopNNode{N: s.cfg.MaxResults},
		},
	}
	items, err := p.Run(ctx, rctx, nil)
	if err != nil {
		return nil, fmt.Errorf("score %s: %w", userID, err)
	}

	generatedAt := s.now()
	recs := make([]core.ProductRecommendation, 0, len(items))
	for _, it := range items {
		recs = append(recs, core.ProductRecommendation{
			UserID:      userID,
			ProductID:   it.ID,
			Score:       it.Score,
			Reason:      it.Reason(),
			GeneratedAt: generatedAt,
		})
	}

	if err := s.deps.Ranking.Replace(ctx, userID, recs); err != nil {
		return nil, fmt.Errorf("replace ranking %s: %w", userID, err)
	}
	return recs, nil
}

// loadContext 并发读取兴趣与已购集合
func (s *Scorer) loadContext(ctx context.Context, userID string) (*core.RecommendContext, error) {
	var (
		interests []core.UserInterest
		purchased []string
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		interests, err = s.deps.Interests.TopInterests(egCtx, userID, s.cfg.TopCategories)
		if err != nil {
			return fmt.Errorf("top interests: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		var err error
		purchased, err = s.deps.History.PurchasedProducts(egCtx, userID)
		if err != nil {
			return fmt.Errorf("purchase history: %w", err)
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	rctx := core.NewRecommendContext(userID)
	rctx.Interests = interests
	for _, id := range purchased {
		rctx.Purchased[id] = struct{}{}
	}
	return rctx, nil
}

// sources 构建召回源：先类目（按排名），后关系（按已购商品 ID 排序），顺序决定 reason 的覆盖关系。
func (s *Scorer) sources(rctx *core.RecommendContext) []recall.Source {
	out := make([]recall.Source, 0, len(rctx.Interests)+len(rctx.Purchased))
	for i, ui := range rctx.Interests {
		out = append(out, &recall.CategoryInterest{
			Catalog:    s.deps.Catalog,
			CategoryID: ui.CategoryID,
			Weight:     recall.CategoryWeight(i, s.cfg.TopCategories),
			Limit:      s.cfg.ProductsPerCategory,
		})
	}

	for _, id := range conv.SortedKeys(rctx.Purchased) {
		out = append(out, &recall.Related{
			Store:     s.deps.Relations,
			ProductID: id,
			Limit:     s.cfg.RelationsPerProduct,
			Divisor:   s.cfg.StrengthDivisor,
		})
	}
	return out
}
