package recall

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pipeline"
	"github.com/rushteam/shoprec/pkg/logging"
	"github.com/rushteam/shoprec/pkg/utils"
)

// MergeStrategy 决定多个召回源命中同一商品时如何合并。
type MergeStrategy string

const (
	// MergeFirst 按 ID 去重，保留最先出现的（按 Sources 顺序），合并 labels
	MergeFirst MergeStrategy = "first"
	// MergeSum 按 ID 累加分数；reason 由后出现的源覆盖，其它 labels 累积
	MergeSum MergeStrategy = "sum"
)

// Fanout 是一个 Recall Node：并发执行多个召回源，并按 Sources 顺序合并结果。
// 合并顺序与各召回源的完成顺序无关，结果是确定的。
type Fanout struct {
	Sources       []Source
	Timeout       time.Duration // 每个召回源的超时时间
	MaxConcurrent int           // 最大并发数（0 表示无限制）
	MergeStrategy MergeStrategy

	// IgnoreErrors 为 true 时，单个召回源失败只记录日志并视为空结果；
	// 默认任一召回源失败则整个 Fanout 失败
	IgnoreErrors bool
}

func (n *Fanout) Name() string        { return "recall.fanout" }
func (n *Fanout) Kind() pipeline.Kind { return pipeline.KindRecall }

func (n *Fanout) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	if len(n.Sources) == 0 {
		return nil, nil
	}

	results := make([][]*core.Item, len(n.Sources))
	eg, egCtx := errgroup.WithContext(ctx)
	if n.MaxConcurrent > 0 {
		eg.SetLimit(n.MaxConcurrent)
	}

	for i, src := range n.Sources {
		eg.Go(func() error {
			recallCtx := egCtx
			if n.Timeout > 0 {
				var cancel context.CancelFunc
				recallCtx, cancel = context.WithTimeout(egCtx, n.Timeout)
				defer cancel()
			}

			items, err := src.Recall(recallCtx, rctx)
			if err != nil {
				if n.IgnoreErrors {
					logging.Ctx(ctx).Warn().Err(err).Str("source", src.Name()).Msg("recall source failed, skipped")
					return nil
				}
				return err
			}

			// 记录召回来源 label，方便 explain / 观测
			for _, it := range items {
				it.PutLabel(core.LabelRecallSource, utils.Label{Value: src.Name(), Source: "recall"})
			}
			results[i] = items
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	switch n.MergeStrategy {
	case MergeSum:
		return mergeSum(results), nil
	default:
		return mergeFirst(results), nil
	}
}

// mergeFirst 按 ID 去重，保留第一个出现的（默认策略）。
func mergeFirst(results [][]*core.Item) []*core.Item {
	seen := make(map[string]*core.Item)
	var out []*core.Item
	for _, items := range results {
		for _, it := range items {
			if it == nil {
				continue
			}
			if old, ok := seen[it.ID]; ok {
				for k, v := range it.Labels {
					old.PutLabel(k, v)
				}
				continue
			}
			seen[it.ID] = it
			out = append(out, it)
		}
	}
	return out
}

// mergeSum 按 ID 累加分数，输出顺序为首次出现的顺序。
func mergeSum(results [][]*core.Item) []*core.Item {
	seen := make(map[string]*core.Item)
	var out []*core.Item
	for _, items := range results {
		for _, it := range items {
			if it == nil {
				continue
			}
			old, ok := seen[it.ID]
			if !ok {
				seen[it.ID] = it
				out = append(out, it)
				continue
			}
			old.Score += it.Score
			for k, v := range it.Labels {
				if k == core.LabelReason {
					old.SetLabel(k, v)
					continue
				}
				old.PutLabel(k, v)
			}
		}
	}
	return out
}
