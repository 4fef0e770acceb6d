// Command shoprec 运行商品推荐服务：HTTP 接口、异步重算 worker 与共现挖掘定时任务，
// 三者由 suture 监督树托管。
//
// 配置按 默认值 → YAML 文件（SHOPREC_CONFIG 或 ./config.yaml）→ SHOPREC_ 环境变量 的顺序叠加，
// 启动时会先加载当前目录下的 .env。
//
//	SHOPREC_STORE__BACKEND=redis SHOPREC_STORE__REDIS__ADDR=localhost:6379 ./shoprec
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/rushteam/shoprec/api"
	"github.com/rushteam/shoprec/config"
	"github.com/rushteam/shoprec/pkg/logging"
	"github.com/rushteam/shoprec/supervisor"
)

func init() {
	_ = godotenv.Load()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Init(logging.Config{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		Caller:    cfg.Log.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := build(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize")
	}
	defer app.close()

	tree := supervisor.NewTree(logging.Logger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	handler := api.NewHandler(app.service, api.Options{
		DefaultLimit: cfg.Service.DefaultLimit,
		MaxLimit:     cfg.Service.MaxLimit,
	})
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewRouter(handler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	tree.AddAPI(supervisor.NewHTTPService(server, cfg.Server.ShutdownTimeout))
	if app.worker != nil {
		tree.AddRefresh(app.worker)
	}
	if app.scheduler != nil {
		tree.AddJob(app.scheduler)
	}

	logging.Info().
		Str("addr", cfg.Server.Addr).
		Str("store", cfg.Store.Backend).
		Str("relations", cfg.Relations.Backend).
		Str("market", cfg.Market.Driver).
		Str("mode", string(app.service.Mode())).
		Msg("shoprec starting")

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("service failed to stop")
	}
	logging.Info().Msg("shoprec stopped")
}
