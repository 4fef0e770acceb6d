package interest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	kv := store.NewMemoryStore()
	t.Cleanup(func() { _ = kv.Close() })
	return NewStore(kv)
}

func TestRecordInteraction_Counts(t *testing.T) {
	tests := []struct {
		name          string
		views, buys   int
		wantInteract  int64
		wantPurchases int64
	}{
		{"只浏览", 3, 0, 3, 0},
		{"只购买", 0, 2, 2, 2},
		{"混合", 4, 3, 7, 3},
		{"单次购买", 0, 1, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			ctx := context.Background()

			for i := 0; i < tt.views; i++ {
				if err := s.RecordInteraction(ctx, "u1", "books", core.ActionView); err != nil {
					t.Fatalf("RecordInteraction 失败: %v", err)
				}
			}
			for i := 0; i < tt.buys; i++ {
				if err := s.RecordInteraction(ctx, "u1", "books", core.ActionPurchase); err != nil {
					t.Fatalf("RecordInteraction 失败: %v", err)
				}
			}

			ui, err := s.GetInterest(ctx, "u1", "books")
			if err != nil {
				t.Fatalf("GetInterest 失败: %v", err)
			}
			if ui.InteractionCount != tt.wantInteract || ui.PurchaseCount != tt.wantPurchases {
				t.Errorf("计数 = (%d, %d), 期望 (%d, %d)", ui.InteractionCount, ui.PurchaseCount, tt.wantInteract, tt.wantPurchases)
			}
			if ui.AverageTimeSpent != 0 {
				t.Errorf("AverageTimeSpent 应保持 0，实际 %v", ui.AverageTimeSpent)
			}
		})
	}
}

func TestRecordInteraction_ReviewCountsAsInteraction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.RecordInteraction(ctx, "u1", "music", core.ActionReview); err != nil {
		t.Fatalf("RecordInteraction 失败: %v", err)
	}
	ui, _ := s.GetInterest(ctx, "u1", "music")
	if ui.InteractionCount != 1 || ui.PurchaseCount != 0 {
		t.Errorf("review 计数 = (%d, %d)", ui.InteractionCount, ui.PurchaseCount)
	}
}

func TestRecordInteraction_RefreshesLastInteraction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return t0 }
	_ = s.RecordInteraction(ctx, "u1", "books", core.ActionView)

	t1 := t0.Add(time.Hour)
	s.Now = func() time.Time { return t1 }
	_ = s.RecordInteraction(ctx, "u1", "books", core.ActionView)

	ui, _ := s.GetInterest(ctx, "u1", "books")
	if !ui.LastInteraction.Equal(t1) {
		t.Errorf("LastInteraction = %v, 期望 %v", ui.LastInteraction, t1)
	}
}

func TestRecordInteraction_InvalidInput(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		user     string
		category string
		action   core.Action
	}{
		{"未知 action", "u1", "books", core.Action("like")},
		{"缺少用户", "", "books", core.ActionView},
		{"缺少类目", "u1", "", core.ActionView},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.RecordInteraction(ctx, tt.user, tt.category, tt.action)
			if !core.IsInvalidInput(err) {
				t.Errorf("期望 INVALID_INPUT，实际 %v", err)
			}
		})
	}
}

func TestRecordInteraction_Concurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			action := core.ActionView
			if i%5 == 0 {
				action = core.ActionPurchase
			}
			if err := s.RecordInteraction(ctx, "u1", "books", action); err != nil {
				t.Errorf("RecordInteraction 失败: %v", err)
			}
		}(i)
	}
	wg.Wait()

	ui, _ := s.GetInterest(ctx, "u1", "books")
	if ui.InteractionCount != n || ui.PurchaseCount != n/5 {
		t.Errorf("并发计数 = (%d, %d), 期望 (%d, %d)", ui.InteractionCount, ui.PurchaseCount, n, n/5)
	}
}

func TestTopInterests(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	counts := map[string]int{"books": 5, "music": 3, "games": 7, "toys": 1}
	for cat, c := range counts {
		for i := 0; i < c; i++ {
			_ = s.RecordInteraction(ctx, "u1", cat, core.ActionView)
		}
	}

	top, err := s.TopInterests(ctx, "u1", 3)
	if err != nil {
		t.Fatalf("TopInterests 失败: %v", err)
	}
	want := []string{"games", "books", "music"}
	if len(top) != len(want) {
		t.Fatalf("TopInterests 长度 = %d, 期望 %d", len(top), len(want))
	}
	for i, ui := range top {
		if ui.CategoryID != want[i] {
			t.Errorf("第 %d 位 = %s, 期望 %s", i, ui.CategoryID, want[i])
		}
		if ui.InteractionCount != int64(counts[want[i]]) {
			t.Errorf("%s 计数 = %d", ui.CategoryID, ui.InteractionCount)
		}
	}

	if top, _ := s.TopInterests(ctx, "nobody", 5); len(top) != 0 {
		t.Errorf("无交互用户应返回空，实际 %v", top)
	}
}

func TestGetInterest_NotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetInterest(context.Background(), "u1", "none"); !core.IsStoreNotFound(err) {
		t.Errorf("期望 NOT_FOUND，实际 %v", err)
	}
}

func TestRecordInteraction_IDsWithSeparatorAreIsolated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.RecordInteraction(ctx, "a:b", "c", core.ActionView); err != nil {
		t.Fatalf("RecordInteraction 失败: %v", err)
	}
	if err := s.RecordInteraction(ctx, "a", "b:c", core.ActionPurchase); err != nil {
		t.Fatalf("RecordInteraction 失败: %v", err)
	}

	tests := []struct {
		user, category string
		wantInteract   int64
		wantPurchases  int64
	}{
		{"a:b", "c", 1, 0},
		{"a", "b:c", 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.user+"/"+tt.category, func(t *testing.T) {
			ui, err := s.GetInterest(ctx, tt.user, tt.category)
			if err != nil {
				t.Fatalf("GetInterest 失败: %v", err)
			}
			if ui.InteractionCount != tt.wantInteract || ui.PurchaseCount != tt.wantPurchases {
				t.Errorf("计数 = %d/%d, 期望 %d/%d", ui.InteractionCount, ui.PurchaseCount, tt.wantInteract, tt.wantPurchases)
			}
		})
	}

	top, err := s.TopInterests(ctx, "a", 5)
	if err != nil {
		t.Fatalf("TopInterests 失败: %v", err)
	}
	if len(top) != 1 || top[0].CategoryID != "b:c" {
		t.Errorf("TopInterests(a) = %+v", top)
	}
}
