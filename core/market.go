package core

import "context"

// Catalog 是商品目录的只读领域接口（外部协作方）。
//
// 实现：
//   - market.GormMarket（SQL 商品表 + 评价表）
//   - market.MemoryMarket（YAML fixture，用于测试/开发）
type Catalog interface {
	// ProductsByCategory 返回类目下最多 limit 个商品 ID（顺序由存储决定）
	ProductsByCategory(ctx context.Context, categoryID string, limit int) ([]string, error)

	// GetProducts 按 ids 的顺序返回商品摘要；不存在的 ID 静默跳过
	GetProducts(ctx context.Context, ids []string) ([]Product, error)

	// TopRated 返回按平均评分降序的前 limit 个商品（冷启动兜底）
	TopRated(ctx context.Context, limit int) ([]Product, error)
}

// PurchaseHistory 是已完成订单的只读视图，用于构建已购排除集合。
type PurchaseHistory interface {
	// PurchasedProducts 返回用户所有已完成订单中出现过的商品 ID（去重）
	PurchasedProducts(ctx context.Context, userID string) ([]string, error)
}

// OrderFeed 按 (CompletedAt, OrderID) 递增顺序遍历已完成订单，供共现挖掘使用。
type OrderFeed interface {
	// CompletedOrdersAfter 返回严格位于 cursor 之后的最多 limit 笔已完成订单
	CompletedOrdersAfter(ctx context.Context, cursor OrderCursor, limit int) ([]Order, error)
}
