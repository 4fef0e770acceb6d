package relation

import (
	"context"
	"testing"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	kv := store.NewMemoryStore()
	t.Cleanup(func() { _ = kv.Close() })
	return NewStore(kv)
}

// runRelationSuite 对任意 RelationStore 实现运行同一组语义测试
func runRelationSuite(t *testing.T, s core.RelationStore) {
	ctx := context.Background()

	t.Run("CreateThenIncrement", func(t *testing.T) {
		if err := s.RecordCooccurrence(ctx, "A", "B", core.RelationComplementary); err != nil {
			t.Fatalf("RecordCooccurrence 失败: %v", err)
		}
		rel, err := s.GetRelation(ctx, "A", "B")
		if err != nil {
			t.Fatalf("GetRelation 失败: %v", err)
		}
		if rel.Strength != 1 || rel.Type != core.RelationComplementary {
			t.Errorf("首次写入 = %+v", rel)
		}
		if rel.CreatedAt.IsZero() {
			t.Errorf("created_at 未设置")
		}

		// 后续观测携带不同 type 也只递增 strength
		for i := 0; i < 6; i++ {
			if err := s.RecordCooccurrence(ctx, "A", "B", core.RelationSimilar); err != nil {
				t.Fatalf("RecordCooccurrence 失败: %v", err)
			}
		}
		rel, _ = s.GetRelation(ctx, "A", "B")
		if rel.Strength != 7 || rel.Type != core.RelationComplementary {
			t.Errorf("递增后 = %+v, 期望 strength=7 type=complementary", rel)
		}
	})

	t.Run("Directional", func(t *testing.T) {
		if _, err := s.GetRelation(ctx, "B", "A"); !core.IsStoreNotFound(err) {
			t.Errorf("反向关系不应存在，实际 %v", err)
		}
	})

	t.Run("TopRelationsOrdering", func(t *testing.T) {
		for related, n := range map[string]int{"C": 3, "D": 1, "E": 5} {
			for i := 0; i < n; i++ {
				_ = s.RecordCooccurrence(ctx, "X", related, core.RelationFrequentlyBoughtTogether)
			}
		}
		top, err := s.TopRelations(ctx, "X", 2)
		if err != nil {
			t.Fatalf("TopRelations 失败: %v", err)
		}
		if len(top) != 2 || top[0].RelatedProductID != "E" || top[1].RelatedProductID != "C" {
			t.Errorf("TopRelations = %+v", top)
		}
		if top[0].Strength != 5 {
			t.Errorf("strength = %d, 期望 5", top[0].Strength)
		}
	})

	t.Run("InvalidInput", func(t *testing.T) {
		tests := []struct {
			name string
			p, r string
			typ  core.RelationType
		}{
			{"自关联", "A", "A", core.RelationSimilar},
			{"未知类型", "A", "B", core.RelationType("rival")},
			{"缺少 ID", "", "B", core.RelationSimilar},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if err := s.RecordCooccurrence(ctx, tt.p, tt.r, tt.typ); !core.IsInvalidInput(err) {
					t.Errorf("期望 INVALID_INPUT，实际 %v", err)
				}
			})
		}
	})
}

func TestStore(t *testing.T) {
	runRelationSuite(t, newTestStore(t))
}

func TestStore_TopRelationsEmpty(t *testing.T) {
	s := newTestStore(t)
	top, err := s.TopRelations(context.Background(), "nothing", 5)
	if err != nil || len(top) != 0 {
		t.Errorf("TopRelations = %v, %v", top, err)
	}
}

func TestStore_IDsWithSeparatorAreIsolated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_ = s.RecordCooccurrence(ctx, "a:b", "c", core.RelationSimilar)
	for i := 0; i < 3; i++ {
		_ = s.RecordCooccurrence(ctx, "a", "b:c", core.RelationComplementary)
	}

	tests := []struct {
		p, r         string
		wantStrength int64
		wantType     core.RelationType
	}{
		{"a:b", "c", 1, core.RelationSimilar},
		{"a", "b:c", 3, core.RelationComplementary},
	}
	for _, tt := range tests {
		t.Run(tt.p+"->"+tt.r, func(t *testing.T) {
			rel, err := s.GetRelation(ctx, tt.p, tt.r)
			if err != nil {
				t.Fatalf("GetRelation 失败: %v", err)
			}
			if rel.Strength != tt.wantStrength || rel.Type != tt.wantType {
				t.Errorf("关系 = %+v, 期望 strength=%d type=%s", rel, tt.wantStrength, tt.wantType)
			}
		})
	}
}
