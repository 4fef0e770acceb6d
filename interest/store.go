// Package interest 基于 KeyValueStore 实现 core.InterestStore。
//
// 存储布局：
//   - {prefix}:h:{userID}:{categoryID}  Hash：interaction_count / purchase_count / last_interaction / average_time_spent
//   - {prefix}:rank:{userID}            有序集合：member=categoryID，score=interactionCount
//
// ID 段按 core.StoreKey 编码（带长度前缀），不同 (用户, 类目) 不会映射到同一个 key。
//
// 一次交互在一个 Atomic 批次中完成所有服务端递增，并发写入不会丢失计数。
package interest

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rushteam/shoprec/core"
)

const (
	fieldInteractionCount = "interaction_count"
	fieldPurchaseCount    = "purchase_count"
	fieldLastInteraction  = "last_interaction"
	fieldAverageTimeSpent = "average_time_spent"

	DefaultKeyPrefix = "interest"
)

// Store 是 core.InterestStore 的 KV 实现。
type Store struct {
	KV core.KeyValueStore

	// KeyPrefix 默认 "interest"
	KeyPrefix string

	// Now 用于测试注入时间，默认 time.Now
	Now func() time.Time
}

var _ core.InterestStore = (*Store)(nil)

func NewStore(kv core.KeyValueStore) *Store {
	return &Store{KV: kv, KeyPrefix: DefaultKeyPrefix, Now: time.Now}
}

func (s *Store) prefix() string {
	if s.KeyPrefix == "" {
		return DefaultKeyPrefix
	}
	return s.KeyPrefix
}

func (s *Store) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *Store) interestKey(userID, categoryID string) string {
	return core.StoreKey(s.prefix(), "h", userID, categoryID)
}

func (s *Store) rankKey(userID string) string {
	return core.StoreKey(s.prefix(), "rank", userID)
}

func invalid(msg string) error {
	return core.NewDomainError(core.ModuleInterest, core.ErrorCodeInvalidInput, msg)
}

// RecordInteraction 记录一次 (用户, 类目) 交互。
// 首次交互创建记录（interactionCount=1，purchase 时 purchaseCount=1），之后只做递增。
func (s *Store) RecordInteraction(ctx context.Context, userID, categoryID string, action core.Action) error {
	if userID == "" || categoryID == "" {
		return invalid("interest: user id and category id are required")
	}
	if !action.Valid() {
		return invalid(fmt.Sprintf("interest: unknown action %q", action))
	}

	var purchased int64
	if action == core.ActionPurchase {
		purchased = 1
	}
	key := s.interestKey(userID, categoryID)
	ts := []byte(s.now().UTC().Format(time.RFC3339Nano))

	err := s.KV.Atomic(ctx, func(tx core.KeyValueTx) error {
		tx.HIncrBy(key, fieldInteractionCount, 1)
		// delta 为 0 时同样会在首次写入时把字段初始化为 0
		tx.HIncrBy(key, fieldPurchaseCount, purchased)
		tx.HSet(key, fieldLastInteraction, ts)
		tx.HSetNX(key, fieldAverageTimeSpent, []byte("0"))
		tx.ZIncrBy(s.rankKey(userID), 1, categoryID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("interest: record %s/%s: %w", userID, categoryID, err)
	}
	return nil
}

// GetInterest 读取单条兴趣记录；不存在时返回 core.ErrStoreNotFound。
func (s *Store) GetInterest(ctx context.Context, userID, categoryID string) (*core.UserInterest, error) {
	fields, err := s.KV.HGetAll(ctx, s.interestKey(userID, categoryID))
	if err != nil {
		return nil, fmt.Errorf("interest: get %s/%s: %w", userID, categoryID, err)
	}
	if len(fields) == 0 {
		return nil, core.ErrStoreNotFound
	}
	return decode(userID, categoryID, fields)
}

// TopInterests 返回按 interactionCount 降序的前 n 个类目兴趣。
func (s *Store) TopInterests(ctx context.Context, userID string, n int) ([]core.UserInterest, error) {
	if n <= 0 {
		return nil, nil
	}
	categories, err := s.KV.ZRange(ctx, s.rankKey(userID), 0, int64(n-1))
	if err != nil {
		return nil, fmt.Errorf("interest: rank %s: %w", userID, err)
	}

	out := make([]core.UserInterest, 0, len(categories))
	for _, categoryID := range categories {
		ui, err := s.GetInterest(ctx, userID, categoryID)
		if core.IsStoreNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *ui)
	}
	return out, nil
}

func decode(userID, categoryID string, fields map[string][]byte) (*core.UserInterest, error) {
	ui := &core.UserInterest{UserID: userID, CategoryID: categoryID}

	var err error
	if raw, ok := fields[fieldInteractionCount]; ok {
		if ui.InteractionCount, err = strconv.ParseInt(string(raw), 10, 64); err != nil {
			return nil, fmt.Errorf("interest: decode %s: %w", fieldInteractionCount, err)
		}
	}
	if raw, ok := fields[fieldPurchaseCount]; ok {
		if ui.PurchaseCount, err = strconv.ParseInt(string(raw), 10, 64); err != nil {
			return nil, fmt.Errorf("interest: decode %s: %w", fieldPurchaseCount, err)
		}
	}
	if raw, ok := fields[fieldLastInteraction]; ok {
		if ui.LastInteraction, err = time.Parse(time.RFC3339Nano, string(raw)); err != nil {
			return nil, fmt.Errorf("interest: decode %s: %w", fieldLastInteraction, err)
		}
	}
	if raw, ok := fields[fieldAverageTimeSpent]; ok {
		if ui.AverageTimeSpent, err = strconv.ParseFloat(string(raw), 64); err != nil {
			return nil, fmt.Errorf("interest: decode %s: %w", fieldAverageTimeSpent, err)
		}
	}
	return ui, nil
}
