package store

import (
	"sort"

	"github.com/rushteam/shoprec/core"
)

// 注意：此包只包含实现，接口定义在 core 包。
// 使用 core.Store 和 core.KeyValueStore 接口。
//
// 示例：
//   var store core.Store = NewMemoryStore()
//   var kvStore core.KeyValueStore = NewMemoryStore()

// ErrNotFound 是 core.ErrStoreNotFound 的别名，便于包内使用
var ErrNotFound = core.ErrStoreNotFound

// sortScored 按分数降序排序；分数相同时按 member 降序，与 Redis ZREVRANGE 保持一致。
func sortScored(members []core.ScoredMember) {
	sort.Slice(members, func(i, j int) bool {
		if members[i].Score != members[j].Score {
			return members[i].Score > members[j].Score
		}
		return members[i].Member > members[j].Member
	})
}

// sliceRange 按 Redis 的闭区间语义截取 [start, stop]，stop < 0 表示到末尾。
func sliceRange(members []core.ScoredMember, start, stop int64) []core.ScoredMember {
	n := int64(len(members))
	if start < 0 {
		start = 0
	}
	if stop < 0 || stop >= n {
		stop = n - 1
	}
	if start > stop {
		return nil
	}
	return members[start : stop+1]
}

func membersOf(scored []core.ScoredMember) []string {
	out := make([]string, len(scored))
	for i, s := range scored {
		out[i] = s.Member
	}
	return out
}
