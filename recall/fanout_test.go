package recall

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pkg/utils"
)

// staticSource 返回固定结果，可选延迟，用于验证合并顺序与完成顺序无关
type staticSource struct {
	name   string
	delay  time.Duration
	items  map[string]float64
	order  []string
	reason core.Reason
	err    error
}

func (s *staticSource) Name() string { return s.name }

func (s *staticSource) Recall(ctx context.Context, _ *core.RecommendContext) ([]*core.Item, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	out := make([]*core.Item, 0, len(s.order))
	for _, id := range s.order {
		it := core.NewItem(id)
		it.Score = s.items[id]
		it.SetLabel(core.LabelReason, utils.Label{Value: string(s.reason), Source: "recall"})
		out = append(out, it)
	}
	return out, nil
}

func TestFanout_MergeSum(t *testing.T) {
	// 先注册的源故意更慢，验证合并不依赖完成顺序
	first := &staticSource{
		name: "first", delay: 20 * time.Millisecond, reason: core.ReasonCategoryInterest,
		order: []string{"p1", "p2"}, items: map[string]float64{"p1": 1.0, "p2": 0.8},
	}
	second := &staticSource{
		name: "second", reason: core.ReasonComplementary,
		order: []string{"p2", "p3"}, items: map[string]float64{"p2": 0.7, "p3": 0.3},
	}

	f := &Fanout{Sources: []Source{first, second}, MergeStrategy: MergeSum}
	items, err := f.Process(context.Background(), core.NewRecommendContext("u1"), nil)
	if err != nil {
		t.Fatalf("Process 失败: %v", err)
	}

	tests := []struct {
		id     string
		score  float64
		reason core.Reason
	}{
		{"p1", 1.0, core.ReasonCategoryInterest},
		{"p2", 1.5, core.ReasonComplementary},
		{"p3", 0.3, core.ReasonComplementary},
	}
	if len(items) != len(tests) {
		t.Fatalf("合并结果 = %d 个, 期望 %d", len(items), len(tests))
	}
	for i, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			it := items[i]
			if it.ID != tt.id || it.Reason() != tt.reason {
				t.Errorf("第 %d 个 = %s/%s, 期望 %s/%s", i, it.ID, it.Reason(), tt.id, tt.reason)
			}
			if diff := it.Score - tt.score; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("%s 分数 = %v, 期望 %v", it.ID, it.Score, tt.score)
			}
		})
	}

	if lbl := items[1].Labels[core.LabelRecallSource]; lbl.Value != "first|second" {
		t.Errorf("recall_source = %q, 期望累积两个来源", lbl.Value)
	}
}

func TestFanout_MergeFirst(t *testing.T) {
	a := &staticSource{name: "a", order: []string{"p1"}, items: map[string]float64{"p1": 1}, reason: core.ReasonCategoryInterest}
	b := &staticSource{name: "b", order: []string{"p1"}, items: map[string]float64{"p1": 5}, reason: core.ReasonComplementary}

	f := &Fanout{Sources: []Source{a, b}}
	items, err := f.Process(context.Background(), core.NewRecommendContext("u1"), nil)
	if err != nil {
		t.Fatalf("Process 失败: %v", err)
	}
	if len(items) != 1 || items[0].Score != 1 {
		t.Errorf("MergeFirst 应保留第一个出现的，实际 %+v", items)
	}
}

func TestFanout_Errors(t *testing.T) {
	boom := errors.New("boom")
	ok := &staticSource{name: "ok", order: []string{"p1"}, items: map[string]float64{"p1": 1}}
	bad := &staticSource{name: "bad", err: boom}

	t.Run("默认失败即中止", func(t *testing.T) {
		f := &Fanout{Sources: []Source{ok, bad}, MergeStrategy: MergeSum}
		if _, err := f.Process(context.Background(), core.NewRecommendContext("u1"), nil); !errors.Is(err, boom) {
			t.Errorf("期望 boom，实际 %v", err)
		}
	})

	t.Run("IgnoreErrors", func(t *testing.T) {
		f := &Fanout{Sources: []Source{ok, bad}, MergeStrategy: MergeSum, IgnoreErrors: true}
		items, err := f.Process(context.Background(), core.NewRecommendContext("u1"), nil)
		if err != nil || len(items) != 1 {
			t.Errorf("Process = %v, %v", items, err)
		}
	})

	t.Run("超时", func(t *testing.T) {
		slow := &staticSource{name: "slow", delay: time.Second}
		f := &Fanout{Sources: []Source{slow}, Timeout: 10 * time.Millisecond}
		if _, err := f.Process(context.Background(), core.NewRecommendContext("u1"), nil); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("期望超时，实际 %v", err)
		}
	})
}

func TestFanout_Empty(t *testing.T) {
	items, err := (&Fanout{}).Process(context.Background(), core.NewRecommendContext("u1"), nil)
	if err != nil || items != nil {
		t.Errorf("Process = %v, %v", items, err)
	}
}
