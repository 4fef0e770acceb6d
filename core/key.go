package core

import (
	"strconv"
	"strings"
)

// StoreKey 拼出 KV key：{prefix}:{kind}:{len}:{id}:{len}:{id}...
//
// kind 固定在 prefix 之后，每个 ID 前带字节长度，因此 ID 中的 ':' 无法伪造
// 其他 kind 或其他 ID 组合的 key。
func StoreKey(prefix, kind string, ids ...string) string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteByte(':')
	b.WriteString(kind)
	for _, id := range ids {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(len(id)))
		b.WriteByte(':')
		b.WriteString(id)
	}
	return b.String()
}
