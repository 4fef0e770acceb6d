// Package ranking 保存每个用户的物化推荐结果（core.RecommendationStore）。
//
// 存储布局：
//   - {prefix}:rank:{userID}    有序集合：member=productID，score=累积分数
//   - {prefix}:reason:{userID}  Hash：productID -> reason
//   - {prefix}:meta:{userID}    Hash：generated_at / count
//
// userID 段按 core.StoreKey 编码，形如 "meta:bob" 的用户 ID 不会覆盖 bob 的 key。
//
// Replace 在一个 Atomic 批次内先删后写，读者不会看到新旧混合的结果。
package ranking

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/rushteam/shoprec/core"
)

const (
	DefaultKeyPrefix = "rec"

	fieldGeneratedAt = "generated_at"
	fieldCount       = "count"
)

// Meta 是一次重算的元信息
type Meta struct {
	GeneratedAt time.Time
	Count       int
}

type Store struct {
	KV        core.KeyValueStore
	KeyPrefix string
}

var _ core.RecommendationStore = (*Store)(nil)

func NewStore(kv core.KeyValueStore) *Store {
	return &Store{KV: kv, KeyPrefix: DefaultKeyPrefix}
}

func (s *Store) prefix() string {
	if s.KeyPrefix == "" {
		return DefaultKeyPrefix
	}
	return s.KeyPrefix
}

func (s *Store) rankKey(userID string) string   { return core.StoreKey(s.prefix(), "rank", userID) }
func (s *Store) reasonKey(userID string) string { return core.StoreKey(s.prefix(), "reason", userID) }
func (s *Store) metaKey(userID string) string   { return core.StoreKey(s.prefix(), "meta", userID) }

// Replace 删除用户的全部旧结果并写入 recs（recs 为空时等价于清空）。
func (s *Store) Replace(ctx context.Context, userID string, recs []core.ProductRecommendation) error {
	if userID == "" {
		return core.NewDomainError(core.ModuleRanking, core.ErrorCodeInvalidInput, "ranking: user id is required")
	}

	generatedAt := time.Now().UTC()
	if len(recs) > 0 && !recs[0].GeneratedAt.IsZero() {
		generatedAt = recs[0].GeneratedAt.UTC()
	}

	rankKey, reasonKey, metaKey := s.rankKey(userID), s.reasonKey(userID), s.metaKey(userID)
	err := s.KV.Atomic(ctx, func(tx core.KeyValueTx) error {
		tx.Delete(rankKey)
		tx.Delete(reasonKey)
		tx.Delete(metaKey)
		for _, rec := range recs {
			tx.ZAdd(rankKey, rec.Score, rec.ProductID)
			tx.HSet(reasonKey, rec.ProductID, []byte(rec.Reason))
		}
		tx.HSet(metaKey, fieldGeneratedAt, []byte(generatedAt.Format(time.RFC3339Nano)))
		tx.HSet(metaKey, fieldCount, []byte(strconv.Itoa(len(recs))))
		return nil
	})
	if err != nil {
		return fmt.Errorf("ranking: replace %s: %w", userID, err)
	}
	return nil
}

// List 按 score 降序返回用户的推荐结果；分数相同按商品 ID 升序。limit <= 0 表示全部。
func (s *Store) List(ctx context.Context, userID string, limit int) ([]core.ProductRecommendation, error) {
	scored, err := s.KV.ZRangeWithScores(ctx, s.rankKey(userID), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("ranking: list %s: %w", userID, err)
	}
	if len(scored) == 0 {
		return nil, nil
	}
	reasons, err := s.KV.HGetAll(ctx, s.reasonKey(userID))
	if err != nil {
		return nil, fmt.Errorf("ranking: reasons %s: %w", userID, err)
	}
	meta, err := s.Meta(ctx, userID)
	if err != nil && !core.IsStoreNotFound(err) {
		return nil, err
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Member < scored[j].Member
	})
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}

	out := make([]core.ProductRecommendation, 0, len(scored))
	for _, m := range scored {
		rec := core.ProductRecommendation{
			UserID:    userID,
			ProductID: m.Member,
			Score:     m.Score,
			Reason:    core.Reason(reasons[m.Member]),
		}
		if meta != nil {
			rec.GeneratedAt = meta.GeneratedAt
		}
		out = append(out, rec)
	}
	return out, nil
}

// Meta 读取最近一次重算的元信息；从未重算过时返回 core.ErrStoreNotFound
func (s *Store) Meta(ctx context.Context, userID string) (*Meta, error) {
	fields, err := s.KV.HGetAll(ctx, s.metaKey(userID))
	if err != nil {
		return nil, fmt.Errorf("ranking: meta %s: %w", userID, err)
	}
	if len(fields) == 0 {
		return nil, core.ErrStoreNotFound
	}

	m := &Meta{}
	if raw, ok := fields[fieldGeneratedAt]; ok {
		if m.GeneratedAt, err = time.Parse(time.RFC3339Nano, string(raw)); err != nil {
			return nil, fmt.Errorf("ranking: decode generated_at: %w", err)
		}
	}
	if raw, ok := fields[fieldCount]; ok {
		if m.Count, err = strconv.Atoi(string(raw)); err != nil {
			return nil, fmt.Errorf("ranking: decode count: %w", err)
		}
	}
	return m, nil
}
