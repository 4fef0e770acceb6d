package filter

import (
	"context"
	"sync"

	"github.com/rushteam/shoprec/core"
)

// BlacklistFilter 是黑名单过滤器，过滤掉黑名单中的物品（例如已下架商品）。
type BlacklistFilter struct {
	// ItemIDs 是内存中的黑名单物品 ID 列表
	ItemIDs []string

	// Store 用于从存储中读取黑名单（可选）
	Store BlacklistStore

	// Key 是 Store 中的黑名单 key（可选）
	Key string

	mu  sync.RWMutex
	set map[string]struct{}
}

// BlacklistStore 是黑名单存储接口。
type BlacklistStore interface {
	// GetBlacklist 获取黑名单物品 ID 列表，key 不存在时返回空列表
	GetBlacklist(ctx context.Context, key string) ([]string, error)
}

// NewBlacklistFilter 创建一个黑名单过滤器。
func NewBlacklistFilter(itemIDs []string, storeAdapter *StoreAdapter, key string) *BlacklistFilter {
	var store BlacklistStore
	if storeAdapter != nil {
		store = storeAdapter
	}
	return &BlacklistFilter{
		ItemIDs: itemIDs,
		Store:   store,
		Key:     key,
	}
}

func (f *BlacklistFilter) Name() string {
	return "filter.blacklist"
}

// Prepare 合并内存列表与 Store 中的黑名单，每次 Process 读取一次 Store。
func (f *BlacklistFilter) Prepare(ctx context.Context, _ *core.RecommendContext) error {
	set := make(map[string]struct{}, len(f.ItemIDs))
	for _, id := range f.ItemIDs {
		set[id] = struct{}{}
	}

	if f.Store != nil && f.Key != "" {
		ids, err := f.Store.GetBlacklist(ctx, f.Key)
		if err != nil {
			return err
		}
		for _, id := range ids {
			set[id] = struct{}{}
		}
	}

	f.mu.Lock()
	f.set = set
	f.mu.Unlock()
	return nil
}

func (f *BlacklistFilter) ShouldFilter(
	ctx context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil {
		return true, nil
	}

	f.mu.RLock()
	set := f.set
	f.mu.RUnlock()
	if set == nil {
		if err := f.Prepare(ctx, rctx); err != nil {
			return false, err
		}
		f.mu.RLock()
		set = f.set
		f.mu.RUnlock()
	}

	_, ok := set[item.ID]
	return ok, nil
}
