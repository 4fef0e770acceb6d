// Package rerank 是打分之后的定序阶段：排序并截断到物化的条数。
package rerank

import (
	"context"
	"sort"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pipeline"
	"github.com/rushteam/shoprec/pkg/logging"
)

// SortNode 按分数降序排序，分数相同按商品 ID 升序，保证输出可复现。
type SortNode struct{}

func (n *SortNode) Name() string        { return "rerank.sort" }
func (n *SortNode) Kind() pipeline.Kind { return pipeline.KindReRank }

func (n *SortNode) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

// TopNNode 保留前 N 个候选，N <= 0 时不截断。需放在 SortNode 之后。
type TopNNode struct {
	N int
}

func (n *TopNNode) Name() string        { return "rerank.topn" }
func (n *TopNNode) Kind() pipeline.Kind { return pipeline.KindReRank }

func (n *TopNNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if n.N <= 0 || len(items) <= n.N {
		return items, nil
	}
	ev := logging.Ctx(ctx).Debug().Int("kept", n.N).Int("dropped", len(items)-n.N)
	if rctx != nil {
		ev = ev.Str("user_id", rctx.UserID)
	}
	ev.Msg("candidates truncated")
	return items[:n.N], nil
}
