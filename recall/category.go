package recall

import (
	"context"
	"fmt"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pkg/utils"
)

// CategoryInterest 召回用户某个兴趣类目下的商品，每个商品得到相同的权重分。
// 权重由调用方按类目排名计算：排名越靠前权重越大。
type CategoryInterest struct {
	Catalog    core.Catalog
	CategoryID string
	Weight     float64
	Limit      int
}

func (r *CategoryInterest) Name() string { return "recall.category:" + r.CategoryID }

func (r *CategoryInterest) Recall(ctx context.Context, _ *core.RecommendContext) ([]*core.Item, error) {
	ids, err := r.Catalog.ProductsByCategory(ctx, r.CategoryID, r.Limit)
	if err != nil {
		return nil, fmt.Errorf("category %s: %w", r.CategoryID, err)
	}

	out := make([]*core.Item, 0, len(ids))
	for _, id := range ids {
		it := core.NewItem(id)
		it.Score = r.Weight
		it.Meta["category_id"] = r.CategoryID
		it.SetLabel(core.LabelReason, utils.Label{Value: string(core.ReasonCategoryInterest), Source: "recall"})
		out = append(out, it)
	}
	return out, nil
}

// CategoryWeight 返回排名 rank（从 0 开始）的类目权重：(topN - rank) / topN。
func CategoryWeight(rank, topN int) float64 {
	if topN <= 0 || rank >= topN {
		return 0
	}
	return float64(topN-rank) / float64(topN)
}
