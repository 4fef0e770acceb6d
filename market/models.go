// Package market 是商城的只读视图：商品目录、评价聚合、已完成订单。
//
// 这些表由商城主系统维护，这里只读取；AutoMigrate 仅用于开发和测试环境建表。
package market

import "time"

// OrderStatusCompleted 是唯一参与推荐计算的订单状态
const OrderStatusCompleted = "completed"

type ProductRow struct {
	ID         string `gorm:"primaryKey;size:64"`
	CategoryID string `gorm:"size:64;index"`
	Name       string
	PriceCents int64
	CreatedAt  time.Time
}

func (ProductRow) TableName() string { return "products" }

type ReviewRow struct {
	ID        uint   `gorm:"primaryKey"`
	ProductID string `gorm:"size:64;index"`
	UserID    string `gorm:"size:64"`
	Rating    int
	CreatedAt time.Time
}

func (ReviewRow) TableName() string { return "reviews" }

type OrderRow struct {
	ID          string         `gorm:"primaryKey;size:64"`
	UserID      string         `gorm:"size:64;index"`
	Status      string         `gorm:"size:32;index"`
	CompletedAt *time.Time     `gorm:"index"`
	Items       []OrderItemRow `gorm:"foreignKey:OrderID"`
}

func (OrderRow) TableName() string { return "orders" }

type OrderItemRow struct {
	ID        uint   `gorm:"primaryKey"`
	OrderID   string `gorm:"size:64;index"`
	ProductID string `gorm:"size:64;index"`
	Quantity  int
}

func (OrderItemRow) TableName() string { return "order_items" }

// Models 返回需要建表的全部模型
func Models() []any {
	return []any{&ProductRow{}, &ReviewRow{}, &OrderRow{}, &OrderItemRow{}}
}
