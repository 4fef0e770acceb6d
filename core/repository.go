package core

import "context"

// InterestStore 是用户类目兴趣计数的领域接口。
//
// 设计原则：
//   - 定义在领域层（core），由 interest 包基于 KeyValueStore 实现
//   - (userID, categoryID) 唯一，计数只增不减
//   - RecordInteraction 的递增在存储端原子完成，并发调用不会丢失更新
type InterestStore interface {
	// RecordInteraction 记录一次交互：interactionCount+1，purchase 时 purchaseCount+1，刷新 lastInteraction
	RecordInteraction(ctx context.Context, userID, categoryID string, action Action) error

	// GetInterest 读取单个 (用户, 类目) 计数；不存在返回 ErrStoreNotFound
	GetInterest(ctx context.Context, userID, categoryID string) (*UserInterest, error)

	// TopInterests 返回按 interactionCount 降序的前 n 个类目兴趣
	TopInterests(ctx context.Context, userID string, n int) ([]UserInterest, error)
}

// RelationStore 是商品共现关系的领域接口。
//
// 实现：
//   - relation.Store（基于 KeyValueStore）
//   - relation.Neo4jStore（基于 Neo4j 图数据库）
type RelationStore interface {
	// RecordCooccurrence 记录一次共现：不存在则以 strength=1 创建，存在则只递增 strength，type 保持首次写入的值
	RecordCooccurrence(ctx context.Context, productID, relatedProductID string, typ RelationType) error

	// GetRelation 读取单条关系；不存在返回 ErrStoreNotFound
	GetRelation(ctx context.Context, productID, relatedProductID string) (*ProductRelation, error)

	// TopRelations 返回以 productID 为起点、按 strength 降序的前 n 条关系
	TopRelations(ctx context.Context, productID string, n int) ([]ProductRelation, error)
}

// RecommendationStore 是物化推荐结果的领域接口。
type RecommendationStore interface {
	// Replace 在一个原子批次内删除用户的全部旧结果并写入 recs
	Replace(ctx context.Context, userID string, recs []ProductRecommendation) error

	// List 按 score 降序读取用户的推荐结果，limit <= 0 表示全部
	List(ctx context.Context, userID string, limit int) ([]ProductRecommendation, error)
}
