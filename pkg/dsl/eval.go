package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/shoprec/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

// getCELEnv 获取或创建 CEL 环境，定义 item / label / rctx 三个变量
func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("item", cel.DynType),
			cel.Variable("label", cel.DynType),
			cel.Variable("rctx", cel.DynType),
		)
	})
	return celEnv, celEnvErr
}

// Program 是编译好的规则表达式，使用 CEL (Common Expression Language) 语法。
// 编译一次，可并发地对多个候选求值。
//
// 可用变量：
//   - item.id / item.score / item.reason / item.meta
//   - label.<key>：Label 的 value，例如 label.reason == "complementary"
//   - rctx.user_id / rctx.params / rctx.interest_categories / rctx.purchased_count
//
// 示例：
//   - `item.score >= 0.4`
//   - `label.reason != "similar_purchases" || item.score > 1.0`
//   - `!(item.meta.category_id in ["adult"])`
//
// 不存在的 key 会导致求值错误，可以先用 `"key" in item.meta` 判断。
type Program struct {
	expr string
	prg  cel.Program
}

// Compile 编译表达式，要求返回 bool
func Compile(expr string) (*Program, error) {
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, issues.Err())
	}
	if ast.OutputType() != cel.BoolType && ast.OutputType() != cel.DynType {
		return nil, fmt.Errorf("compile %q: expression must return bool, got %v", expr, ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", expr, err)
	}
	return &Program{expr: expr, prg: prg}, nil
}

func (p *Program) String() string { return p.expr }

// Match 对单个候选求值
func (p *Program) Match(item *core.Item, rctx *core.RecommendContext) (bool, error) {
	out, _, err := p.prg.Eval(buildInput(item, rctx))
	if err != nil {
		return false, fmt.Errorf("eval %q: %w", p.expr, err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("eval %q: expression must return bool, got %T", p.expr, out.Value())
	}
	return result, nil
}

// Eval 编译并执行一次表达式，空表达式视为 true。
func Eval(expr string, item *core.Item, rctx *core.RecommendContext) (bool, error) {
	if expr == "" {
		return true, nil
	}
	p, err := Compile(expr)
	if err != nil {
		return false, err
	}
	return p.Match(item, rctx)
}

// buildInput 构建 CEL 表达式的输入数据
func buildInput(item *core.Item, rctx *core.RecommendContext) map[string]any {
	labels := make(map[string]any, len(item.Labels))
	for k, v := range item.Labels {
		labels[k] = v.Value
	}

	meta := item.Meta
	if meta == nil {
		meta = map[string]any{}
	}

	rctxInput := map[string]any{}
	if rctx != nil {
		categories := make([]string, 0, len(rctx.Interests))
		for _, ui := range rctx.Interests {
			categories = append(categories, ui.CategoryID)
		}
		params := rctx.Params
		if params == nil {
			params = map[string]any{}
		}
		rctxInput = map[string]any{
			"user_id":             rctx.UserID,
			"params":              params,
			"interest_categories": categories,
			"purchased_count":     len(rctx.Purchased),
		}
	}

	return map[string]any{
		"item": map[string]any{
			"id":     item.ID,
			"score":  item.Score,
			"reason": string(item.Reason()),
			"meta":   meta,
		},
		"label": labels,
		"rctx":  rctxInput,
	}
}
