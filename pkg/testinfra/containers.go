//go:build integration

// Package testinfra 为集成测试启动 Redis / Neo4j 容器。
package testinfra

import (
	"context"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	RedisImage = "redis:7-alpine"
	Neo4jImage = "neo4j:5-community"

	// Neo4jPassword 是测试容器的初始密码
	Neo4jPassword = "shoprec-test"
)

// SkipIfNoDocker 在没有 Docker 的环境中跳过测试
func SkipIfNoDocker(t *testing.T) {
	t.Helper()

	if !IsDockerAvailable() {
		t.Skip("跳过：Docker 不可用")
	}
}

// IsDockerAvailable 检查 Docker daemon 是否可访问
func IsDockerAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return exec.CommandContext(ctx, "docker", "info").Run() == nil
}

// Container 是启动后的容器及其对外地址（host:port）
type Container struct {
	testcontainers.Container
	Addr string
}

func start(ctx context.Context, req testcontainers.ContainerRequest, port string) (*Container, error) {
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", req.Image, err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		c.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get container host: %w", err)
	}
	mapped, err := c.MappedPort(ctx, port)
	if err != nil {
		c.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get mapped port: %w", err)
	}
	return &Container{Container: c, Addr: fmt.Sprintf("%s:%s", host, mapped.Port())}, nil
}

// StartRedis 启动 Redis 容器，测试结束时自动销毁
func StartRedis(t *testing.T) *Container {
	t.Helper()
	SkipIfNoDocker(t)

	ctx := context.Background()
	c, err := start(ctx, testcontainers.ContainerRequest{
		Image:        RedisImage,
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}, "6379")
	if err != nil {
		t.Fatalf("启动 Redis 容器失败: %v", err)
	}
	t.Cleanup(func() { cleanup(t, c) })
	return c
}

// StartNeo4j 启动 Neo4j 容器，Addr 为 bolt 端口
func StartNeo4j(t *testing.T) *Container {
	t.Helper()
	SkipIfNoDocker(t)

	ctx := context.Background()
	c, err := start(ctx, testcontainers.ContainerRequest{
		Image:        Neo4jImage,
		ExposedPorts: []string{"7687/tcp"},
		Env: map[string]string{
			"NEO4J_AUTH": "neo4j/" + Neo4jPassword,
		},
		WaitingFor: wait.ForLog("Started.").WithStartupTimeout(120 * time.Second),
	}, "7687")
	if err != nil {
		t.Fatalf("启动 Neo4j 容器失败: %v", err)
	}
	t.Cleanup(func() { cleanup(t, c) })
	return c
}

func cleanup(t *testing.T, c *Container) {
	if err := c.Terminate(context.Background()); err != nil {
		t.Logf("销毁容器失败: %v", err)
	}
}
