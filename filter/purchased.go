package filter

import (
	"context"

	"github.com/rushteam/shoprec/core"
)

// PurchasedFilter 过滤用户已购买过的商品（已完成订单中出现过的商品）。
type PurchasedFilter struct{}

func (f *PurchasedFilter) Name() string {
	return "filter.purchased"
}

func (f *PurchasedFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	return rctx.HasPurchased(item.ID), nil
}
