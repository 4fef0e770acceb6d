//go:build integration

package store

import (
	"context"
	"testing"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pkg/testinfra"
)

func TestRedisStore(t *testing.T) {
	c := testinfra.StartRedis(t)

	runKeyValueSuite(t, func(t *testing.T) core.KeyValueStore {
		s, err := NewRedisStore(c.Addr, "", 0)
		if err != nil {
			t.Fatalf("连接 Redis 失败: %v", err)
		}
		t.Cleanup(func() {
			_ = s.client.FlushDB(context.Background()).Err()
			_ = s.Close()
		})
		return s
	})
}
