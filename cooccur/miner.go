// Package cooccur 从已完成订单中挖掘商品共现关系，写入 RelationStore。
//
// 每笔订单中任意两个不同商品 (p, q) 记录为有序对 p→q 与 q→p，类型为
// frequently_bought_together。已处理的位置以游标 (completed_at, order_id) 保存在 KV 中，
// 重复运行只处理游标之后的新订单。
package cooccur

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pkg/logging"
	"github.com/rushteam/shoprec/pkg/metrics"
)

const (
	DefaultCursorKey        = "cooccur:cursor"
	DefaultBatchSize        = 500
	DefaultMaxItemsPerOrder = 20
)

// Stats 是一次 Run 的统计
type Stats struct {
	Orders int
	Pairs  int
	Cursor core.OrderCursor
}

type Miner struct {
	Orders    core.OrderFeed
	Relations core.RelationStore
	Store     core.Store

	CursorKey        string
	BatchSize        int
	MaxItemsPerOrder int

	// 同一时刻只允许一个 Run，避免同一订单被重复计数
	mu sync.Mutex
}

func NewMiner(orders core.OrderFeed, relations core.RelationStore, s core.Store) *Miner {
	return &Miner{
		Orders:           orders,
		Relations:        relations,
		Store:            s,
		CursorKey:        DefaultCursorKey,
		BatchSize:        DefaultBatchSize,
		MaxItemsPerOrder: DefaultMaxItemsPerOrder,
	}
}

// Run 处理游标之后的全部已完成订单。
// 游标在每笔订单处理完后推进；单笔订单中途失败时，该订单已写入的对会在下次运行时再计一次。
func (m *Miner) Run(ctx context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	cursor, err := m.LoadCursor(ctx)
	if err != nil {
		metrics.CooccurRunErrors.Inc()
		return Stats{}, err
	}

	stats := Stats{Cursor: cursor}
	for {
		orders, err := m.Orders.CompletedOrdersAfter(ctx, stats.Cursor, m.batchSize())
		if err != nil {
			metrics.CooccurRunErrors.Inc()
			return stats, fmt.Errorf("read orders after %s: %w", stats.Cursor.OrderID, err)
		}

		for _, o := range orders {
			pairs, err := m.record(ctx, o)
			stats.Pairs += pairs
			if err != nil {
				metrics.CooccurRunErrors.Inc()
				return stats, fmt.Errorf("order %s: %w", o.ID, err)
			}

			next := core.OrderCursor{CompletedAt: o.CompletedAt, OrderID: o.ID}
			if err := m.saveCursor(ctx, next); err != nil {
				metrics.CooccurRunErrors.Inc()
				return stats, err
			}
			stats.Cursor = next
			stats.Orders++
			metrics.CooccurOrdersProcessed.Inc()
		}

		if len(orders) < m.batchSize() {
			break
		}
	}

	logging.Ctx(ctx).Info().
		Int("orders", stats.Orders).
		Int("pairs", stats.Pairs).
		Str("cursor", stats.Cursor.OrderID).
		Dur("duration", time.Since(start)).
		Msg("co-occurrence mining done")
	return stats, nil
}

func (m *Miner) record(ctx context.Context, o core.Order) (int, error) {
	products := distinct(o.ProductIDs)
	if limit := m.maxItems(); len(products) > limit {
		products = products[:limit]
	}

	pairs := 0
	for _, p := range products {
		for _, q := range products {
			if p == q {
				continue
			}
			if err := m.Relations.RecordCooccurrence(ctx, p, q, core.RelationFrequentlyBoughtTogether); err != nil {
				return pairs, err
			}
			pairs++
			metrics.RelationsRecorded.WithLabelValues("miner").Inc()
		}
	}
	return pairs, nil
}

// LoadCursor 读取游标，未保存过时返回零值（从头开始）
func (m *Miner) LoadCursor(ctx context.Context) (core.OrderCursor, error) {
	var cursor core.OrderCursor
	data, err := m.Store.Get(ctx, m.cursorKey())
	if err != nil {
		if core.IsStoreNotFound(err) {
			return cursor, nil
		}
		return cursor, fmt.Errorf("load cursor: %w", err)
	}
	if err := json.Unmarshal(data, &cursor); err != nil {
		return cursor, fmt.Errorf("decode cursor: %w", err)
	}
	return cursor, nil
}

func (m *Miner) saveCursor(ctx context.Context, cursor core.OrderCursor) error {
	data, err := json.Marshal(cursor)
	if err != nil {
		return err
	}
	if err := m.Store.Set(ctx, m.cursorKey(), data); err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}

func (m *Miner) cursorKey() string {
	if m.CursorKey == "" {
		return DefaultCursorKey
	}
	return m.CursorKey
}

func (m *Miner) batchSize() int {
	if m.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return m.BatchSize
}

func (m *Miner) maxItems() int {
	if m.MaxItemsPerOrder <= 0 {
		return DefaultMaxItemsPerOrder
	}
	return m.MaxItemsPerOrder
}

// distinct 去重并排序，空 ID 丢弃
func distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
