package recall

import (
	"context"
	"fmt"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pkg/utils"
)

// DefaultStrengthDivisor 把共现强度换算为分数：strength / 10
const DefaultStrengthDivisor = 10.0

// Related 召回与一个已购商品关系最强的商品。
// 分数为 strength / Divisor；关系类型为 complementary 时 reason 为 complementary，否则为 similar_purchases。
type Related struct {
	Store     core.RelationStore
	ProductID string
	Limit     int
	Divisor   float64
}

func (r *Related) Name() string { return "recall.related:" + r.ProductID }

func (r *Related) Recall(ctx context.Context, _ *core.RecommendContext) ([]*core.Item, error) {
	rels, err := r.Store.TopRelations(ctx, r.ProductID, r.Limit)
	if err != nil {
		return nil, fmt.Errorf("relations of %s: %w", r.ProductID, err)
	}

	divisor := r.Divisor
	if divisor <= 0 {
		divisor = DefaultStrengthDivisor
	}

	out := make([]*core.Item, 0, len(rels))
	for _, rel := range rels {
		it := core.NewItem(rel.RelatedProductID)
		it.Score = float64(rel.Strength) / divisor
		it.Meta["via_product_id"] = r.ProductID

		reason := core.ReasonSimilarPurchases
		if rel.Type == core.RelationComplementary {
			reason = core.ReasonComplementary
		}
		it.SetLabel(core.LabelReason, utils.Label{Value: string(reason), Source: "recall"})
		out = append(out, it)
	}
	return out, nil
}
