package store

import "github.com/rushteam/shoprec/core"

type opKind int

const (
	opSet opKind = iota
	opDelete
	opExpire
	opHSet
	opHSetNX
	opHIncrBy
	opZAdd
	opZIncrBy
)

type op struct {
	kind   opKind
	key    string
	field  string
	member string
	value  []byte
	ttl    int
	delta  int64
	score  float64
}

// opLog 记录 Atomic 批次中排队的写操作，由 MemoryStore / BadgerStore 回放。
type opLog struct {
	ops []op
}

var _ core.KeyValueTx = (*opLog)(nil)

func firstTTL(ttl []int) int {
	if len(ttl) > 0 {
		return ttl[0]
	}
	return 0
}

func (l *opLog) Set(key string, value []byte, ttl ...int) {
	l.ops = append(l.ops, op{kind: opSet, key: key, value: value, ttl: firstTTL(ttl)})
}

func (l *opLog) Delete(key string) {
	l.ops = append(l.ops, op{kind: opDelete, key: key})
}

func (l *opLog) Expire(key string, ttl int) {
	l.ops = append(l.ops, op{kind: opExpire, key: key, ttl: ttl})
}

func (l *opLog) HSet(key, field string, value []byte) {
	l.ops = append(l.ops, op{kind: opHSet, key: key, field: field, value: value})
}

func (l *opLog) HSetNX(key, field string, value []byte) {
	l.ops = append(l.ops, op{kind: opHSetNX, key: key, field: field, value: value})
}

func (l *opLog) HIncrBy(key, field string, delta int64) {
	l.ops = append(l.ops, op{kind: opHIncrBy, key: key, field: field, delta: delta})
}

func (l *opLog) ZAdd(key string, score float64, member string) {
	l.ops = append(l.ops, op{kind: opZAdd, key: key, score: score, member: member})
}

func (l *opLog) ZIncrBy(key string, delta float64, member string) {
	l.ops = append(l.ops, op{kind: opZIncrBy, key: key, score: delta, member: member})
}
