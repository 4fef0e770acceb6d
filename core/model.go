package core

import "time"

// Action 是用户对某个类目下商品的交互类型。
type Action string

const (
	ActionView     Action = "view"
	ActionPurchase Action = "purchase"
	ActionReview   Action = "review"
)

// Valid 报告 a 是否为已知交互类型。
func (a Action) Valid() bool {
	switch a {
	case ActionView, ActionPurchase, ActionReview:
		return true
	}
	return false
}

// RelationType 是商品关系类型，在首次写入时确定，之后不再修改。
type RelationType string

const (
	RelationComplementary            RelationType = "complementary"
	RelationSimilar                  RelationType = "similar"
	RelationFrequentlyBoughtTogether RelationType = "frequently_bought_together"
)

func (t RelationType) Valid() bool {
	switch t {
	case RelationComplementary, RelationSimilar, RelationFrequentlyBoughtTogether:
		return true
	}
	return false
}

// Reason 是推荐理由。
type Reason string

const (
	ReasonSimilarPurchases Reason = "similar_purchases"
	ReasonCategoryInterest Reason = "category_interest"
	ReasonRatingBased      Reason = "rating_based"
	ReasonComplementary    Reason = "complementary"
)

// UserInterest 是 (用户, 类目) 维度的交互计数，首次交互时创建，之后只增不删。
type UserInterest struct {
	UserID           string    `json:"user_id"`
	CategoryID       string    `json:"category_id"`
	InteractionCount int64     `json:"interaction_count"`
	PurchaseCount    int64     `json:"purchase_count"`
	LastInteraction  time.Time `json:"last_interaction"`

	// AverageTimeSpent 创建时写 0，目前没有任何更新逻辑
	AverageTimeSpent float64 `json:"average_time_spent"`
}

// ProductRelation 是有序商品对 (ProductID → RelatedProductID) 的共现强度。
type ProductRelation struct {
	ProductID        string       `json:"product_id"`
	RelatedProductID string       `json:"related_product_id"`
	Strength         int64        `json:"strength"`
	Type             RelationType `json:"type"`
	CreatedAt        time.Time    `json:"created_at"`
}

// ProductRecommendation 是物化的推荐结果，每次重算时整体替换。
type ProductRecommendation struct {
	UserID      string    `json:"user_id"`
	ProductID   string    `json:"product_id"`
	Score       float64   `json:"score"`
	Reason      Reason    `json:"reason"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Product 是商品目录中的商品摘要。
type Product struct {
	ID            string  `json:"product_id" yaml:"id"`
	CategoryID    string  `json:"category_id" yaml:"category_id"`
	Name          string  `json:"name" yaml:"name"`
	PriceCents    int64   `json:"price_cents" yaml:"price_cents"`
	AverageRating float64 `json:"average_rating" yaml:"average_rating"`
	RatingCount   int64   `json:"rating_count" yaml:"rating_count"`
}

// Order 是一笔已完成订单及其行项目中的商品。
type Order struct {
	ID          string
	UserID      string
	CompletedAt time.Time
	ProductIDs  []string
}

// OrderCursor 标识已完成订单流中的位置：(CompletedAt, OrderID) 严格递增。
type OrderCursor struct {
	CompletedAt time.Time `json:"completed_at"`
	OrderID     string    `json:"order_id"`
}
