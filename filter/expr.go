package filter

import (
	"context"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pkg/dsl"
)

// ExprFilter 用 CEL 表达式描述“保留”条件，表达式为 false 的候选被过滤。
//
// 示例：`item.score >= 0.4`、`label.reason != "similar_purchases"`
type ExprFilter struct {
	program *dsl.Program
}

// NewExprFilter 编译表达式；表达式非法时返回错误，以便在启动时发现。
func NewExprFilter(expr string) (*ExprFilter, error) {
	p, err := dsl.Compile(expr)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleScorer, core.ErrorCodeInvalidInput, "filter expression", err)
	}
	return &ExprFilter{program: p}, nil
}

func (f *ExprFilter) Name() string {
	return "filter.expr"
}

func (f *ExprFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	keep, err := f.program.Match(item, rctx)
	if err != nil {
		return false, err
	}
	return !keep, nil
}
