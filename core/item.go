package core

import "github.com/rushteam/shoprec/pkg/utils"

// 约定的 Label key
const (
	// LabelReason 推荐理由，取值为 Reason；同一商品被多个召回源命中时后写入者覆盖
	LabelReason = "reason"
	// LabelRecallSource 命中该商品的召回源名称，按 MergeLabel 累积，用于排查
	LabelRecallSource = "recall_source"
)

// Item 是打分链路中的统一承载结构：商品 ID、累积分数、元信息、标签。
// Labels 用于解释与策略驱动；Score 用于排序决策。
type Item struct {
	ID     string
	Score  float64
	Meta   map[string]any
	Labels map[string]utils.Label
}

func NewItem(id string) *Item {
	return &Item{
		ID:     id,
		Score:  0,
		Meta:   make(map[string]any),
		Labels: make(map[string]utils.Label),
	}
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (it *Item) PutLabel(key string, lbl utils.Label) {
	if it.Labels == nil {
		it.Labels = make(map[string]utils.Label)
	}
	if old, ok := it.Labels[key]; ok {
		it.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	it.Labels[key] = lbl
}

// SetLabel 覆盖写入 Label。
func (it *Item) SetLabel(key string, lbl utils.Label) {
	if it.Labels == nil {
		it.Labels = make(map[string]utils.Label)
	}
	it.Labels[key] = lbl
}

// Reason 返回当前的推荐理由，未设置时为空。
func (it *Item) Reason() Reason {
	if it.Labels == nil {
		return ""
	}
	return Reason(it.Labels[LabelReason].Value)
}
