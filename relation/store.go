// Package relation 实现商品共现关系存储（core.RelationStore）。
//
// 两种后端：
//   - Store：基于 KeyValueStore，Hash 保存属性，有序集合按 strength 排名
//   - Neo4jStore：基于 Neo4j，关系建模为 (:Product)-[:RELATED]->(:Product)
package relation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rushteam/shoprec/core"
)

const (
	fieldStrength  = "strength"
	fieldType      = "type"
	fieldCreatedAt = "created_at"

	DefaultKeyPrefix = "relation"
)

// Store 是 core.RelationStore 的 KV 实现。
//
// 存储布局：
//   - {prefix}:{productID}:{relatedID}  Hash：strength / type / created_at
//   - {prefix}:rank:{productID}         有序集合：member=relatedID，score=strength
type Store struct {
	KV        core.KeyValueStore
	KeyPrefix string
	Now       func() time.Time
}

var _ core.RelationStore = (*Store)(nil)

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

func (s *Store) relationKey(productID, relatedID string) string {
	return core.StoreKey(s.prefix(), "h", productID, relatedID)
}

func (s *Store) rankKey(productID string) string {
	return core.StoreKey(s.prefix(), "rank", productID)
}

// validate 校验一次共现写入的参数
func validate(productID, relatedID string, typ core.RelationType) error {
	switch {
	case productID == "" || relatedID == "":
		return core.NewDomainError(core.ModuleRelation, core.ErrorCodeInvalidInput, "relation: product ids are required")
	case productID == relatedID:
		return core.NewDomainError(core.ModuleRelation, core.ErrorCodeInvalidInput, "relation: a product cannot relate to itself")
	case !typ.Valid():
		return core.NewDomainError(core.ModuleRelation, core.ErrorCodeInvalidInput, fmt.Sprintf("relation: unknown type %q", typ))
	}
	return nil
}

// RecordCooccurrence 记录一次共现：不存在时以 strength=1 创建，否则只递增 strength。
// type 与 created_at 用 HSETNX 写入，首次写入后不再改变。
func (s *Store) RecordCooccurrence(ctx context.Context, productID, relatedID string, typ core.RelationType) error {
	if err := validate(productID, relatedID, typ); err != nil {
		return err
	}

	key := s.relationKey(productID, relatedID)
	ts := []byte(s.now().UTC().Format(time.RFC3339Nano))
	err := s.KV.Atomic(ctx, func(tx core.KeyValueTx) error {
		tx.HIncrBy(key, fieldStrength, 1)
		tx.HSetNX(key, fieldType, []byte(typ))
		tx.HSetNX(key, fieldCreatedAt, ts)
		tx.ZIncrBy(s.rankKey(productID), 1, relatedID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("relation: record %s->%s: %w", productID, relatedID, err)
	}
	return nil
}

// GetRelation 读取单条关系；不存在时返回 core.ErrStoreNotFound。
func (s *Store) GetRelation(ctx context.Context, productID, relatedID string) (*core.ProductRelation, error) {
	fields, err := s.KV.HGetAll(ctx, s.relationKey(productID, relatedID))
	if err != nil {
		return nil, fmt.Errorf("relation: get %s->%s: %w", productID, relatedID, err)
	}
	if len(fields) == 0 {
		return nil, core.ErrStoreNotFound
	}

	rel := &core.ProductRelation{
		ProductID:        productID,
		RelatedProductID: relatedID,
		Type:             core.RelationType(fields[fieldType]),
	}
	if raw, ok := fields[fieldStrength]; ok {
		if rel.Strength, err = strconv.ParseInt(string(raw), 10, 64); err != nil {
			return nil, fmt.Errorf("relation: decode strength: %w", err)
		}
	}
	if raw, ok := fields[fieldCreatedAt]; ok {
		if rel.CreatedAt, err = time.Parse(time.RFC3339Nano, string(raw)); err != nil {
			return nil, fmt.Errorf("relation: decode created_at: %w", err)
		}
	}
	return rel, nil
}

// TopRelations 返回 productID 出发、按 strength 降序的前 n 条关系。
func (s *Store) TopRelations(ctx context.Context, productID string, n int) ([]core.ProductRelation, error) {
	if n <= 0 {
		return nil, nil
	}
	related, err := s.KV.ZRange(ctx, s.rankKey(productID), 0, int64(n-1))
	if err != nil {
		return nil, fmt.Errorf("relation: rank %s: %w", productID, err)
	}

	out := make([]core.ProductRelation, 0, len(related))
	for _, relatedID := range related {
		rel, err := s.GetRelation(ctx, productID, relatedID)
		if core.IsStoreNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *rel)
	}
	return out, nil
}
