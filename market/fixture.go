package market

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// Fixture 是商城数据的 YAML 描述，用于 MemoryMarket、开发环境灌库与测试。
//
//	products:
//	  - {id: p1, category_id: books, name: Go 语言, price_cents: 5900}
//	reviews:
//	  - {product_id: p1, user_id: u2, rating: 5}
//	orders:
//	  - {id: o1, user_id: u1, status: completed, completed_at: 2024-01-02T10:00:00Z, product_ids: [p1, p2]}
type Fixture struct {
	Products []FixtureProduct `yaml:"products"`
	Reviews  []FixtureReview  `yaml:"reviews"`
	Orders   []FixtureOrder   `yaml:"orders"`
}

type FixtureProduct struct {
	ID         string `yaml:"id"`
	CategoryID string `yaml:"category_id"`
	Name       string `yaml:"name"`
	PriceCents int64  `yaml:"price_cents"`
}

type FixtureReview struct {
	ProductID string `yaml:"product_id"`
	UserID    string `yaml:"user_id"`
	Rating    int    `yaml:"rating"`
}

type FixtureOrder struct {
	ID          string    `yaml:"id"`
	UserID      string    `yaml:"user_id"`
	Status      string    `yaml:"status"`
	CompletedAt time.Time `yaml:"completed_at"`
	ProductIDs  []string  `yaml:"product_ids"`
}

// LoadFixture 读取 YAML 文件
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("market: read fixture: %w", err)
	}
	return ParseFixture(data)
}

func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("market: parse fixture: %w", err)
	}
	return &f, nil
}

// Seed 把 fixture 写入数据库（单个事务）
func Seed(ctx context.Context, db *gorm.DB, f *Fixture) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range f.Products {
			row := ProductRow{ID: p.ID, CategoryID: p.CategoryID, Name: p.Name, PriceCents: p.PriceCents}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("seed product %s: %w", p.ID, err)
			}
		}
		for _, r := range f.Reviews {
			row := ReviewRow{ProductID: r.ProductID, UserID: r.UserID, Rating: r.Rating}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("seed review: %w", err)
			}
		}
		for _, o := range f.Orders {
			row := OrderRow{ID: o.ID, UserID: o.UserID, Status: o.Status}
			if !o.CompletedAt.IsZero() {
				at := o.CompletedAt.UTC()
				row.CompletedAt = &at
			}
			for _, pid := range o.ProductIDs {
				row.Items = append(row.Items, OrderItemRow{ProductID: pid, Quantity: 1})
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("seed order %s: %w", o.ID, err)
			}
		}
		return nil
	})
}
