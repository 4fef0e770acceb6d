// Package supervisor 用 suture 监督树托管长期运行的服务：
//
//   - jobs：共现挖掘定时任务
//   - refresh：异步重算 worker
//   - api：HTTP 服务
//
// 某一层反复崩溃时只在该层内退避重启，不影响其它层。
package supervisor

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/rushteam/shoprec/pkg/logging"
)

type TreeConfig struct {
	// 失败次数超过阈值后进入退避，默认 5
	FailureThreshold float64
	// 失败计数的衰减速率（秒），默认 30
	FailureDecay float64
	// 默认 15s
	FailureBackoff time.Duration
	// 单个服务的停止等待时间，默认 10s
	ShutdownTimeout time.Duration
}

func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

type Tree struct {
	root    *suture.Supervisor
	jobs    *suture.Supervisor
	refresh *suture.Supervisor
	api     *suture.Supervisor
	config  TreeConfig
}

func NewTree(logger zerolog.Logger, config TreeConfig) *Tree {
	def := DefaultTreeConfig()
	if config.FailureThreshold == 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.FailureDecay == 0 {
		config.FailureDecay = def.FailureDecay
	}
	if config.FailureBackoff == 0 {
		config.FailureBackoff = def.FailureBackoff
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = def.ShutdownTimeout
	}

	rootSpec := suture.Spec{
		EventHook:        EventHook(logger),
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}
	// 子监督者加入 root 后继承 EventHook
	childSpec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	t := &Tree{
		root:    suture.New("shoprec", rootSpec),
		jobs:    suture.New("jobs-layer", childSpec),
		refresh: suture.New("refresh-layer", childSpec),
		api:     suture.New("api-layer", childSpec),
		config:  config,
	}
	t.root.Add(t.jobs)
	t.root.Add(t.refresh)
	t.root.Add(t.api)
	return t
}

func (t *Tree) AddJob(svc suture.Service) suture.ServiceToken     { return t.jobs.Add(svc) }
func (t *Tree) AddRefresh(svc suture.Service) suture.ServiceToken { return t.refresh.Add(svc) }
func (t *Tree) AddAPI(svc suture.Service) suture.ServiceToken     { return t.api.Add(svc) }

// Serve 阻塞直到 ctx 取消
func (t *Tree) Serve(ctx context.Context) error {
	logging.Info().Msg("supervisor tree starting")
	return t.root.Serve(ctx)
}

func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport 列出超时未停止的服务
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
