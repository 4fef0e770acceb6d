// Package service 编排推荐子系统的读写路径：
// 读取物化的推荐结果（空时回退到热门），记录交互与共现，触发重算。
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pkg/logging"
	"github.com/rushteam/shoprec/pkg/metrics"
	"github.com/rushteam/shoprec/ranking"
	"github.com/rushteam/shoprec/recall"
)

// DefaultLimit 是 limit <= 0 时返回的推荐数
const DefaultLimit = 10

// Mode 决定交互之后的重算方式
type Mode string

const (
	// ModeSync 在请求内同步重算
	ModeSync Mode = "sync"
	// ModeAsync 发布到重算队列，由 refresh.Worker 去抖后执行
	ModeAsync Mode = "async"
)

// Source 标识结果来源
type Source string

const (
	SourcePersonalized Source = "personalized"
	SourcePopular      Source = "popular"
)

// Recomputer 重算单个用户（scorer.Scorer）
type Recomputer interface {
	Recompute(ctx context.Context, userID string) ([]core.ProductRecommendation, error)
}

// Enqueuer 发布重算请求（refresh.Queue）
type Enqueuer interface {
	Enqueue(ctx context.Context, userID, reason string) error
}

// metaReader 是可选能力：ranking.Store 记录了每次重算的元信息
type metaReader interface {
	Meta(ctx context.Context, userID string) (*ranking.Meta, error)
}

// Deps 是 Service 的全部依赖，在进程启动时构造一次
type Deps struct {
	Interests core.InterestStore
	Relations core.RelationStore
	Ranking   core.RecommendationStore
	Catalog   core.Catalog
	Scorer    Recomputer

	// Popular 是热门兜底源（recall.Hot）
	Popular recall.Source

	// Queue 为 nil 时 ModeAsync 退化为同步
	Queue Enqueuer
	Mode  Mode
}

// Item 是一条带商品摘要的推荐
type Item struct {
	core.Product
	Score  float64     `json:"score"`
	Reason core.Reason `json:"reason"`
}

// Result 是 GetRecommendations 的返回
type Result struct {
	UserID      string     `json:"user_id"`
	Source      Source     `json:"source"`
	Items       []Item     `json:"items"`
	GeneratedAt *time.Time `json:"generated_at,omitempty"`
}

type Service struct {
	deps Deps
}

func New(deps Deps) *Service {
	if deps.Mode == "" {
		deps.Mode = ModeAsync
	}
	return &Service{deps: deps}
}

func (s *Service) Mode() Mode {
	if s.deps.Mode == ModeAsync && s.deps.Queue == nil {
		return ModeSync
	}
	return s.deps.Mode
}

// GetRecommendations 返回按分数降序的推荐；用户没有推荐结果时返回热门兜底。
// 目录中已不存在的商品被静默丢弃。兜底结果不会写回推荐存储。
func (s *Service) GetRecommendations(ctx context.Context, userID string, limit int) (*Result, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	if userID != "" {
		recs, err := s.deps.Ranking.List(ctx, userID, limit)
		if err != nil {
			return nil, fmt.Errorf("list recommendations: %w", err)
		}
		if len(recs) > 0 {
			return s.personalized(ctx, userID, recs)
		}
	}
	return s.popular(ctx, userID, limit)
}

func (s *Service) personalized(ctx context.Context, userID string, recs []core.ProductRecommendation) (*Result, error) {
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ProductID
	}
	products, err := s.lookup(ctx, ids)
	if err != nil {
		return nil, err
	}

	res := &Result{UserID: userID, Source: SourcePersonalized, Items: make([]Item, 0, len(recs))}
	for _, r := range recs {
		p, ok := products[r.ProductID]
		if !ok {
			continue
		}
		res.Items = append(res.Items, Item{Product: p, Score: r.Score, Reason: r.Reason})
	}

	if mr, ok := s.deps.Ranking.(metaReader); ok {
		if meta, err := mr.Meta(ctx, userID); err == nil && meta != nil && !meta.GeneratedAt.IsZero() {
			res.GeneratedAt = &meta.GeneratedAt
		}
	}
	metrics.RecommendationsServed.WithLabelValues(string(SourcePersonalized)).Inc()
	return res, nil
}

func (s *Service) popular(ctx context.Context, userID string, limit int) (*Result, error) {
	res := &Result{UserID: userID, Source: SourcePopular, Items: []Item{}}
	if s.deps.Popular == nil {
		return res, nil
	}

	items, err := s.deps.Popular.Recall(ctx, core.NewRecommendContext(userID))
	if err != nil {
		return nil, fmt.Errorf("popular fallback: %w", err)
	}
	// 先与目录关联再截断，目录缺失的商品不占 limit 名额
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	products, err := s.lookup(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		p, ok := products[it.ID]
		if !ok {
			continue
		}
		res.Items = append(res.Items, Item{Product: p, Score: it.Score, Reason: core.ReasonRatingBased})
		if len(res.Items) == limit {
			break
		}
	}

	metrics.RecommendationsServed.WithLabelValues(string(SourcePopular)).Inc()
	return res, nil
}

func (s *Service) lookup(ctx context.Context, ids []string) (map[string]core.Product, error) {
	if len(ids) == 0 {
		return map[string]core.Product{}, nil
	}
	products, err := s.deps.Catalog.GetProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("catalog lookup: %w", err)
	}
	out := make(map[string]core.Product, len(products))
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

// UpdateUserInterests 记录一次交互到兴趣计数，不触发重算。
func (s *Service) UpdateUserInterests(ctx context.Context, userID, categoryID string, action core.Action) error {
	if err := s.deps.Interests.RecordInteraction(ctx, userID, categoryID, action); err != nil {
		return err
	}
	metrics.InteractionsRecorded.WithLabelValues(string(action)).Inc()
	return nil
}

// UpdateProductRelations 记录一次商品共现。
func (s *Service) UpdateProductRelations(ctx context.Context, productID, relatedID string, typ core.RelationType) error {
	if err := s.deps.Relations.RecordCooccurrence(ctx, productID, relatedID, typ); err != nil {
		return err
	}
	metrics.RelationsRecorded.WithLabelValues("api").Inc()
	return nil
}

// GenerateRecommendations 同步重算并替换 userID 的推荐结果。
func (s *Service) GenerateRecommendations(ctx context.Context, userID string) ([]core.ProductRecommendation, error) {
	return s.deps.Scorer.Recompute(ctx, userID)
}

// RecordInteraction 是写接口的入口：先更新兴趣计数，再按 Mode 触发重算。
func (s *Service) RecordInteraction(ctx context.Context, userID, categoryID string, action core.Action) error {
	if err := s.UpdateUserInterests(ctx, userID, categoryID, action); err != nil {
		return err
	}
	if _, err := s.RequestRecompute(ctx, userID, "interaction"); err != nil {
		return err
	}
	return nil
}

// RequestRecompute 按 Mode 触发重算，返回是否为异步。
func (s *Service) RequestRecompute(ctx context.Context, userID, reason string) (bool, error) {
	if s.Mode() == ModeAsync {
		if err := s.deps.Queue.Enqueue(ctx, userID, reason); err != nil {
			return true, fmt.Errorf("enqueue recompute: %w", err)
		}
		logging.Ctx(ctx).Debug().Str("user_id", userID).Str("reason", reason).Msg("recompute enqueued")
		return true, nil
	}
	if _, err := s.GenerateRecommendations(ctx, userID); err != nil {
		return false, err
	}
	return false, nil
}
