package store

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rushteam/shoprec/core"
)

// MemoryStore 是内存实现的 KeyValueStore，用于测试/开发/原型。
// 支持 TTL（过期时间），但进程重启后数据丢失。
//
// 字符串、Hash、有序集合分别存放；同名 key 的 TTL 与 Delete 作用于三者。
type MemoryStore struct {
	mu      sync.RWMutex
	data    map[string][]byte
	hashes  map[string]map[string][]byte  // hash key -> field -> value
	zsets   map[string]map[string]float64 // zset key -> member -> score
	expires map[string]time.Time
	clean   *time.Ticker
	done    chan struct{}
	once    sync.Once
}

func NewMemoryStore() *MemoryStore {
	ms := &MemoryStore{
		data:    make(map[string][]byte),
		hashes:  make(map[string]map[string][]byte),
		zsets:   make(map[string]map[string]float64),
		expires: make(map[string]time.Time),
		clean:   time.NewTicker(10 * time.Second),
		done:    make(chan struct{}),
	}
	go ms.cleanup()
	return ms
}

var _ core.KeyValueStore = (*MemoryStore)(nil)

func (m *MemoryStore) Name() string { return "memory" }

// expiredLocked 判断 key 是否已过期；调用方需持有锁
func (m *MemoryStore) expiredLocked(key string, now time.Time) bool {
	exp, ok := m.expires[key]
	return ok && now.After(exp)
}

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok || m.expiredLocked(key, time.Now()) {
		return nil, ErrNotFound
	}
	return v, nil
}

func (m *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl ...int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.setLocked(key, value, ttl...)
	return nil
}

func (m *MemoryStore) setLocked(key string, value []byte, ttl ...int) {
	m.data[key] = value
	if len(ttl) > 0 && ttl[0] > 0 {
		m.expires[key] = time.Now().Add(time.Duration(ttl[0]) * time.Second)
	} else {
		delete(m.expires, key)
	}
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deleteLocked(key)
	return nil
}

func (m *MemoryStore) deleteLocked(key string) {
	delete(m.data, key)
	delete(m.hashes, key)
	delete(m.zsets, key)
	delete(m.expires, key)
}

func (m *MemoryStore) BatchGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string][]byte, len(keys))
	now := time.Now()
	for _, k := range keys {
		v, ok := m.data[k]
		if !ok || m.expiredLocked(k, now) {
			continue
		}
		result[k] = v
	}
	return result, nil
}

func (m *MemoryStore) BatchSet(ctx context.Context, kvs map[string][]byte, ttl ...int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, v := range kvs {
		m.setLocked(k, v, ttl...)
	}
	return nil
}

func (m *MemoryStore) Close() error {
	m.once.Do(func() {
		m.clean.Stop()
		close(m.done)
	})
	return nil
}

func (m *MemoryStore) cleanup() {
	for {
		select {
		case <-m.done:
			return
		case now := <-m.clean.C:
			m.mu.Lock()
			for k := range m.expires {
				if m.expiredLocked(k, now) {
					m.deleteLocked(k)
				}
			}
			m.mu.Unlock()
		}
	}
}

// KeyValueStore 扩展方法

func (m *MemoryStore) ZAdd(ctx context.Context, key string, score float64, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.zaddLocked(key, score, member, false)
	return nil
}

func (m *MemoryStore) zaddLocked(key string, score float64, member string, incr bool) {
	if m.expiredLocked(key, time.Now()) {
		m.deleteLocked(key)
	}
	if m.zsets[key] == nil {
		m.zsets[key] = make(map[string]float64)
	}
	if incr {
		m.zsets[key][member] += score
		return
	}
	m.zsets[key][member] = score
}

func (m *MemoryStore) scoredLocked(key string) []core.ScoredMember {
	zset, ok := m.zsets[key]
	if !ok || len(zset) == 0 || m.expiredLocked(key, time.Now()) {
		return nil
	}
	members := make([]core.ScoredMember, 0, len(zset))
	for member, score := range zset {
		members = append(members, core.ScoredMember{Member: member, Score: score})
	}
	sortScored(members)
	return members
}

func (m *MemoryStore) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return membersOf(sliceRange(m.scoredLocked(key), start, stop)), nil
}

func (m *MemoryStore) ZRangeWithScores(ctx context.Context, key string, start, stop int64) ([]core.ScoredMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return sliceRange(m.scoredLocked(key), start, stop), nil
}

func (m *MemoryStore) ZScore(ctx context.Context, key string, member string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	zset, ok := m.zsets[key]
	if !ok || m.expiredLocked(key, time.Now()) {
		return 0, ErrNotFound
	}
	score, ok := zset[member]
	if !ok {
		return 0, ErrNotFound
	}
	return score, nil
}

func (m *MemoryStore) ZCard(ctx context.Context, key string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.expiredLocked(key, time.Now()) {
		return 0, nil
	}
	return int64(len(m.zsets[key])), nil
}

func (m *MemoryStore) HGet(ctx context.Context, key, field string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.hashes[key]
	if !ok || m.expiredLocked(key, time.Now()) {
		return nil, ErrNotFound
	}
	v, ok := h[field]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (m *MemoryStore) HSet(ctx context.Context, key, field string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hsetLocked(key, field, value, false)
	return nil
}

func (m *MemoryStore) hashLocked(key string) map[string][]byte {
	if m.expiredLocked(key, time.Now()) {
		m.deleteLocked(key)
	}
	h := m.hashes[key]
	if h == nil {
		h = make(map[string][]byte)
		m.hashes[key] = h
	}
	return h
}

func (m *MemoryStore) hsetLocked(key, field string, value []byte, nx bool) {
	h := m.hashLocked(key)
	if _, exists := h[field]; nx && exists {
		return
	}
	h[field] = value
}

func (m *MemoryStore) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string][]byte)
	if m.expiredLocked(key, time.Now()) {
		return result, nil
	}
	for f, v := range m.hashes[key] {
		result[f] = v
	}
	return result, nil
}

func (m *MemoryStore) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.hincrLocked(key, field, delta)
}

func (m *MemoryStore) hincrLocked(key, field string, delta int64) (int64, error) {
	h := m.hashLocked(key)
	var cur int64
	if raw, ok := h[field]; ok {
		n, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return 0, core.WrapDomainError(core.ModuleStore, core.ErrorCodeInvalidInput, "store: hash value is not an integer", err)
		}
		cur = n
	}
	cur += delta
	h[field] = []byte(strconv.FormatInt(cur, 10))
	return cur, nil
}

// Atomic 先收集 fn 排队的操作，fn 成功后在同一把写锁内依次应用。
func (m *MemoryStore) Atomic(ctx context.Context, fn func(tx core.KeyValueTx) error) error {
	tx := &opLog{}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// 先校验递增目标，保证要么全部生效要么全部不生效
	for _, op := range tx.ops {
		if op.kind != opHIncrBy {
			continue
		}
		if raw, ok := m.hashes[op.key][op.field]; ok && !m.expiredLocked(op.key, time.Now()) {
			if _, err := strconv.ParseInt(string(raw), 10, 64); err != nil {
				return core.WrapDomainError(core.ModuleStore, core.ErrorCodeInvalidInput, "store: hash value is not an integer", err)
			}
		}
	}

	for _, op := range tx.ops {
		switch op.kind {
		case opSet:
			m.setLocked(op.key, op.value, op.ttl)
		case opDelete:
			m.deleteLocked(op.key)
		case opExpire:
			if op.ttl > 0 {
				m.expires[op.key] = time.Now().Add(time.Duration(op.ttl) * time.Second)
			}
		case opHSet:
			m.hsetLocked(op.key, op.field, op.value, false)
		case opHSetNX:
			m.hsetLocked(op.key, op.field, op.value, true)
		case opHIncrBy:
			_, _ = m.hincrLocked(op.key, op.field, op.delta)
		case opZAdd:
			m.zaddLocked(op.key, op.score, op.member, false)
		case opZIncrBy:
			m.zaddLocked(op.key, op.score, op.member, true)
		}
	}
	return nil
}
