package market

import (
	"context"
	"fmt"
	"time"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pkg/logging"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// GormMarket 通过 gorm 读取商城数据库，实现 Catalog / PurchaseHistory / OrderFeed。
type GormMarket struct {
	db *gorm.DB
}

var (
	_ core.Catalog         = (*GormMarket)(nil)
	_ core.PurchaseHistory = (*GormMarket)(nil)
	_ core.OrderFeed       = (*GormMarket)(nil)
)

// gormWriter 把 gorm 的日志转到 zerolog
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...any) {
	logger := logging.WithComponent("gorm")
	logger.Warn().Msgf(format, args...)
}

// Open 按 driver（sqlite / postgres）打开数据库，autoMigrate 为 true 时建表
func Open(driver, dsn string, autoMigrate bool) (*GormMarket, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, core.NewDomainError(core.ModuleCatalog, core.ErrorCodeInvalidInput, fmt.Sprintf("market: unsupported driver %q", driver))
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger: gormLogger.New(gormWriter{}, gormLogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleCatalog, core.ErrorCodeUnavailable, "market: open database", err)
	}
	if autoMigrate {
		if err := db.AutoMigrate(Models()...); err != nil {
			return nil, fmt.Errorf("market: auto migrate: %w", err)
		}
	}
	return &GormMarket{db: db}, nil
}

func NewGormMarket(db *gorm.DB) *GormMarket {
	return &GormMarket{db: db}
}

func (m *GormMarket) DB() *gorm.DB { return m.db }

func (m *GormMarket) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (m *GormMarket) ProductsByCategory(ctx context.Context, categoryID string, limit int) ([]string, error) {
	var ids []string
	q := m.db.WithContext(ctx).Model(&ProductRow{}).
		Where("category_id = ?", categoryID).
		Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("market: products of category %s: %w", categoryID, err)
	}
	return ids, nil
}

// productStats 是商品行加上评价聚合
type productStats struct {
	ID            string
	CategoryID    string
	Name          string
	PriceCents    int64
	AverageRating float64
	RatingCount   int64
}

func (p productStats) toProduct() core.Product {
	return core.Product{
		ID:            p.ID,
		CategoryID:    p.CategoryID,
		Name:          p.Name,
		PriceCents:    p.PriceCents,
		AverageRating: p.AverageRating,
		RatingCount:   p.RatingCount,
	}
}

func (m *GormMarket) statsQuery(ctx context.Context) *gorm.DB {
	return m.db.WithContext(ctx).
		Table("products AS p").
		Select("p.id, p.category_id, p.name, p.price_cents, " +
			"COALESCE(AVG(r.rating), 0) AS average_rating, COUNT(r.id) AS rating_count").
		Joins("LEFT JOIN reviews AS r ON r.product_id = p.id").
		Group("p.id, p.category_id, p.name, p.price_cents")
}

// GetProducts 按 ids 的顺序返回商品；不存在的 ID 被跳过
func (m *GormMarket) GetProducts(ctx context.Context, ids []string) ([]core.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []productStats
	if err := m.statsQuery(ctx).Where("p.id IN ?", ids).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("market: get products: %w", err)
	}

	byID := make(map[string]productStats, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}
	out := make([]core.Product, 0, len(rows))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			out = append(out, r.toProduct())
		}
	}
	return out, nil
}

// TopRated 按平均评分降序，评分相同按评价数降序、商品 ID 升序
func (m *GormMarket) TopRated(ctx context.Context, limit int) ([]core.Product, error) {
	var rows []productStats
	q := m.statsQuery(ctx).Order("average_rating DESC, rating_count DESC, p.id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("market: top rated: %w", err)
	}
	out := make([]core.Product, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toProduct())
	}
	return out, nil
}

func (m *GormMarket) PurchasedProducts(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := m.db.WithContext(ctx).
		Table("order_items AS oi").
		Joins("JOIN orders AS o ON o.id = oi.order_id").
		Where("o.user_id = ? AND o.status = ?", userID, OrderStatusCompleted).
		Distinct("oi.product_id").
		Order("oi.product_id").
		Pluck("oi.product_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("market: purchased products of %s: %w", userID, err)
	}
	return ids, nil
}

// CompletedOrdersAfter 按 (completed_at, id) 递增返回严格位于 cursor 之后的订单
func (m *GormMarket) CompletedOrdersAfter(ctx context.Context, cursor core.OrderCursor, limit int) ([]core.Order, error) {
	q := m.db.WithContext(ctx).
		Preload("Items").
		Where("status = ? AND completed_at IS NOT NULL", OrderStatusCompleted)
	if !cursor.CompletedAt.IsZero() {
		at := cursor.CompletedAt.UTC()
		q = q.Where("(completed_at > ? OR (completed_at = ? AND id > ?))", at, at, cursor.OrderID)
	}
	q = q.Order("completed_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []OrderRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("market: completed orders: %w", err)
	}

	out := make([]core.Order, 0, len(rows))
	for _, r := range rows {
		o := core.Order{ID: r.ID, UserID: r.UserID}
		if r.CompletedAt != nil {
			o.CompletedAt = r.CompletedAt.UTC()
		}
		for _, it := range r.Items {
			o.ProductIDs = append(o.ProductIDs, it.ProductID)
		}
		out = append(out, o)
	}
	return out, nil
}
