package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rushteam/shoprec/core"
)

// key 前缀：字符串、Hash 字段、有序集合成员分别编码
const (
	badgerStringPrefix = "k\x00"
	badgerHashPrefix   = "h\x00"
	badgerZSetPrefix   = "z\x00"

	// badgerMaxRetries 是事务冲突（ErrConflict）时的最大重试次数
	badgerMaxRetries = 64
)

// BadgerStore 是基于 BadgerDB 的嵌入式 KeyValueStore，适合单机部署时持久化。
//
// Hash 与有序集合被展开为每个字段/成员一条记录：
//   - h\x00{key}\x00{field} -> value
//   - z\x00{key}\x00{member} -> score（十进制文本）
//
// Atomic 使用一个读写事务，冲突时整体重试，递增基于事务内读到的值，因此不会丢失更新。
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore 打开（或创建）dir 下的数据库；dir 为空时使用纯内存模式。
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleStore, core.ErrorCodeUnavailable, "store: open badger", err)
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStore 包装已打开的 DB，Close 时一并关闭
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

var _ core.KeyValueStore = (*BadgerStore)(nil)

func (b *BadgerStore) Name() string { return "badger" }

func stringKey(key string) []byte { return []byte(badgerStringPrefix + key) }

func hashPrefix(key string) []byte { return []byte(badgerHashPrefix + key + "\x00") }

func hashKey(key, field string) []byte { return []byte(badgerHashPrefix + key + "\x00" + field) }

func zsetPrefix(key string) []byte { return []byte(badgerZSetPrefix + key + "\x00") }

func zsetKey(key, member string) []byte { return []byte(badgerZSetPrefix + key + "\x00" + member) }

func ttlDuration(ttl int) time.Duration { return time.Duration(ttl) * time.Second }

// update 执行读写事务，遇到 ErrConflict 时重试
func (b *BadgerStore) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < badgerMaxRetries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = b.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("store: badger transaction conflict after %d attempts: %w", badgerMaxRetries, err)
}

func getValue(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (b *BadgerStore) Get(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		v, err := getValue(txn, stringKey(key))
		out = v
		return err
	})
	return out, err
}

func setEntry(txn *badger.Txn, key, value []byte, ttl int) error {
	e := badger.NewEntry(key, value)
	if ttl > 0 {
		e = e.WithTTL(ttlDuration(ttl))
	}
	return txn.SetEntry(e)
}

func (b *BadgerStore) Set(ctx context.Context, key string, value []byte, ttl ...int) error {
	return b.update(ctx, func(txn *badger.Txn) error {
		return setEntry(txn, stringKey(key), value, firstTTL(ttl))
	})
}

// prefixKeys 收集 prefix 下的所有 key（不取值）
func prefixKeys(txn *badger.Txn, prefix []byte) [][]byte {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys
}

func deleteAll(txn *badger.Txn, key string) error {
	if err := txn.Delete(stringKey(key)); err != nil {
		return err
	}
	for _, prefix := range [][]byte{hashPrefix(key), zsetPrefix(key)} {
		for _, k := range prefixKeys(txn, prefix) {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *BadgerStore) Delete(ctx context.Context, key string) error {
	return b.update(ctx, func(txn *badger.Txn) error {
		return deleteAll(txn, key)
	})
}

func (b *BadgerStore) BatchGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	err := b.db.View(func(txn *badger.Txn) error {
		for _, k := range keys {
			v, err := getValue(txn, stringKey(k))
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			result[k] = v
		}
		return nil
	})
	return result, err
}

func (b *BadgerStore) BatchSet(ctx context.Context, kvs map[string][]byte, ttl ...int) error {
	return b.update(ctx, func(txn *badger.Txn) error {
		for k, v := range kvs {
			if err := setEntry(txn, stringKey(k), v, firstTTL(ttl)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BadgerStore) Close() error {
	return b.db.Close()
}

func parseScore(raw []byte) (float64, error) {
	return strconv.ParseFloat(string(raw), 64)
}

func formatScore(score float64) []byte {
	return []byte(strconv.FormatFloat(score, 'g', -1, 64))
}

func (b *BadgerStore) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return b.update(ctx, func(txn *badger.Txn) error {
		return txn.Set(zsetKey(key, member), formatScore(score))
	})
}

func (b *BadgerStore) scored(key string) ([]core.ScoredMember, error) {
	var members []core.ScoredMember
	prefix := zsetPrefix(key)
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			member := string(item.Key()[len(prefix):])
			err := item.Value(func(val []byte) error {
				score, err := parseScore(val)
				if err != nil {
					return err
				}
				members = append(members, core.ScoredMember{Member: member, Score: score})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortScored(members)
	return members, nil
}

func (b *BadgerStore) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	members, err := b.scored(key)
	if err != nil {
		return nil, err
	}
	return membersOf(sliceRange(members, start, stop)), nil
}

func (b *BadgerStore) ZRangeWithScores(ctx context.Context, key string, start, stop int64) ([]core.ScoredMember, error) {
	members, err := b.scored(key)
	if err != nil {
		return nil, err
	}
	return sliceRange(members, start, stop), nil
}

func (b *BadgerStore) ZScore(ctx context.Context, key string, member string) (float64, error) {
	raw, err := b.view(zsetKey(key, member))
	if err != nil {
		return 0, err
	}
	return parseScore(raw)
}

func (b *BadgerStore) ZCard(ctx context.Context, key string) (int64, error) {
	var n int64
	err := b.db.View(func(txn *badger.Txn) error {
		n = int64(len(prefixKeys(txn, zsetPrefix(key))))
		return nil
	})
	return n, err
}

func (b *BadgerStore) view(key []byte) ([]byte, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		v, err := getValue(txn, key)
		out = v
		return err
	})
	return out, err
}

func (b *BadgerStore) HGet(ctx context.Context, key, field string) ([]byte, error) {
	return b.view(hashKey(key, field))
}

func (b *BadgerStore) HSet(ctx context.Context, key, field string, value []byte) error {
	return b.update(ctx, func(txn *badger.Txn) error {
		return txn.Set(hashKey(key, field), value)
	})
}

func (b *BadgerStore) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	result := make(map[string][]byte)
	prefix := hashPrefix(key)
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			result[string(item.Key()[len(prefix):])] = v
		}
		return nil
	})
	return result, err
}

func hincr(txn *badger.Txn, key, field string, delta int64) (int64, error) {
	k := hashKey(key, field)
	var cur int64
	raw, err := getValue(txn, k)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return 0, err
	default:
		cur, err = strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return 0, core.WrapDomainError(core.ModuleStore, core.ErrorCodeInvalidInput, "store: hash value is not an integer", err)
		}
	}
	cur += delta
	return cur, txn.Set(k, []byte(strconv.FormatInt(cur, 10)))
}

func (b *BadgerStore) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	var out int64
	err := b.update(ctx, func(txn *badger.Txn) error {
		n, err := hincr(txn, key, field, delta)
		out = n
		return err
	})
	return out, err
}

// expire 为 key 下的所有记录（字符串、Hash 字段、有序集合成员）重设 TTL
func expire(txn *badger.Txn, key string, ttl int) error {
	if ttl <= 0 {
		return nil
	}
	keys := prefixKeys(txn, hashPrefix(key))
	keys = append(keys, prefixKeys(txn, zsetPrefix(key))...)
	keys = append(keys, stringKey(key))
	for _, k := range keys {
		v, err := getValue(txn, k)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if err := setEntry(txn, k, v, ttl); err != nil {
			return err
		}
	}
	return nil
}

func applyOp(txn *badger.Txn, o op) error {
	switch o.kind {
	case opSet:
		return setEntry(txn, stringKey(o.key), o.value, o.ttl)
	case opDelete:
		return deleteAll(txn, o.key)
	case opExpire:
		return expire(txn, o.key, o.ttl)
	case opHSet:
		return txn.Set(hashKey(o.key, o.field), o.value)
	case opHSetNX:
		_, err := getValue(txn, hashKey(o.key, o.field))
		if errors.Is(err, ErrNotFound) {
			return txn.Set(hashKey(o.key, o.field), o.value)
		}
		return err
	case opHIncrBy:
		_, err := hincr(txn, o.key, o.field, o.delta)
		return err
	case opZAdd:
		return txn.Set(zsetKey(o.key, o.member), formatScore(o.score))
	case opZIncrBy:
		k := zsetKey(o.key, o.member)
		var cur float64
		raw, err := getValue(txn, k)
		switch {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			return err
		default:
			if cur, err = parseScore(raw); err != nil {
				return err
			}
		}
		return txn.Set(k, formatScore(cur+o.score))
	}
	return nil
}

// Atomic 在一个 Badger 读写事务内回放 fn 排队的操作；冲突时整体重试。
func (b *BadgerStore) Atomic(ctx context.Context, fn func(tx core.KeyValueTx) error) error {
	tx := &opLog{}
	if err := fn(tx); err != nil {
		return err
	}
	return b.update(ctx, func(txn *badger.Txn) error {
		for _, o := range tx.ops {
			if err := applyOp(txn, o); err != nil {
				return err
			}
		}
		return nil
	})
}
