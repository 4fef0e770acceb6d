package core

import "github.com/rushteam/shoprec/pkg/utils"

// RecommendContext 承载一次重算所需的用户状态，贯穿整个 Pipeline 透传。
type RecommendContext struct {
	UserID string

	// Interests 是按 interactionCount 降序排好的前 N 个类目兴趣，下标即排名
	Interests []UserInterest

	// Purchased 是用户已购商品集合，召回与过滤阶段都要排除
	Purchased map[string]struct{}

	// Labels 是用户级标签，例如 cold_start
	Labels map[string]utils.Label

	// Params 请求级参数（例如 CEL 过滤表达式用到的阈值）
	Params map[string]any
}

// NewRecommendContext 创建空的上下文。
func NewRecommendContext(userID string) *RecommendContext {
	return &RecommendContext{
		UserID:    userID,
		Purchased: make(map[string]struct{}),
		Labels:    make(map[string]utils.Label),
		Params:    make(map[string]any),
	}
}

// HasPurchased 报告用户是否已购买过 productID。
func (rctx *RecommendContext) HasPurchased(productID string) bool {
	if rctx == nil || rctx.Purchased == nil {
		return false
	}
	_, ok := rctx.Purchased[productID]
	return ok
}

// PutLabel 写入用户级 Label。
func (rctx *RecommendContext) PutLabel(key string, lbl utils.Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]utils.Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}

// GetLabel 获取用户级 Label。
func (rctx *RecommendContext) GetLabel(key string) (utils.Label, bool) {
	if rctx.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}
