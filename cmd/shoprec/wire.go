package main

import (
	"context"
	"fmt"

	"github.com/rushteam/shoprec/config"
	"github.com/rushteam/shoprec/cooccur"
	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/feast"
	"github.com/rushteam/shoprec/filter"
	"github.com/rushteam/shoprec/interest"
	"github.com/rushteam/shoprec/market"
	"github.com/rushteam/shoprec/pkg/logging"
	"github.com/rushteam/shoprec/ranking"
	"github.com/rushteam/shoprec/recall"
	"github.com/rushteam/shoprec/refresh"
	"github.com/rushteam/shoprec/relation"
	"github.com/rushteam/shoprec/scorer"
	"github.com/rushteam/shoprec/service"
	"github.com/rushteam/shoprec/store"
)

// marketSource 是商品目录、购买记录与订单流的只读数据源
type marketSource interface {
	core.Catalog
	core.PurchaseHistory
	core.OrderFeed
}

type app struct {
	service   *service.Service
	worker    *refresh.Worker
	scheduler *cooccur.Scheduler
	closers   []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func build(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	kv, err := openStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = kv.Close() })

	relations, err := openRelations(ctx, cfg.Relations, kv)
	if err != nil {
		return nil, err
	}
	if n, ok := relations.(*relation.Neo4jStore); ok {
		a.closers = append(a.closers, func() { _ = n.Close(context.Background()) })
	}

	mkt, closeMarket, err := openMarket(ctx, cfg.Market)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeMarket)

	interests := interest.NewStore(kv)
	rankings := ranking.NewStore(kv)

	sc, err := scorer.New(scorer.Deps{
		Interests: interests,
		Relations: relations,
		History:   mkt,
		Catalog:   mkt,
		Ranking:   rankings,
		Blacklist: filter.NewStoreAdapter(kv),
	}, cfg.Scorer)
	if err != nil {
		return nil, err
	}

	hot := recall.NewHot(mkt, kv, recall.BreakerConfig{
		FailureThreshold: cfg.Popularity.FailureThreshold,
		Timeout:          cfg.Popularity.BreakerTimeout,
	})
	hot.Key = cfg.Popularity.CacheKey
	hot.TTL = cfg.Popularity.TTL
	hot.PoolSize = cfg.Popularity.PoolSize
	if cfg.Feast.Enabled {
		client, err := feast.NewClient(cfg.Feast.Client())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		ratings := feast.NewRatingSource(client)
		if cfg.Feast.Feature != "" {
			ratings.Feature = cfg.Feast.Feature
		}
		hot.Ratings = ratings
	}

	deps := service.Deps{
		Interests: interests,
		Relations: relations,
		Ranking:   rankings,
		Catalog:   mkt,
		Scorer:    sc,
		Popular:   hot,
		Mode:      service.Mode(cfg.Service.RecomputeMode),
	}
	if deps.Mode == service.ModeAsync {
		bus := refresh.NewGoChannel(cfg.Refresh.Buffer)
		a.closers = append(a.closers, func() { _ = bus.Close() })
		deps.Queue = refresh.NewQueue(bus, cfg.Refresh.Topic)
		a.worker = refresh.NewWorker(bus, sc, refresh.WorkerConfig{
			Topic:       cfg.Refresh.Topic,
			Debounce:    cfg.Refresh.Debounce,
			Concurrency: cfg.Refresh.Concurrency,
			Timeout:     cfg.Refresh.Timeout,
		})
	}
	a.service = service.New(deps)

	if cfg.Cooccur.Enabled {
		miner := cooccur.NewMiner(mkt, relations, kv)
		miner.CursorKey = cfg.Cooccur.CursorKey
		miner.BatchSize = cfg.Cooccur.BatchSize
		miner.MaxItemsPerOrder = cfg.Cooccur.MaxItemsPerOrder
		a.scheduler, err = cooccur.NewScheduler(miner, cfg.Cooccur.Schedule, cfg.Cooccur.RunOnStart)
		if err != nil {
			return nil, err
		}
	}
	return a, nil
}

func openStore(cfg config.StoreConfig) (core.KeyValueStore, error) {
	switch cfg.Backend {
	case "redis":
		return store.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	case "badger":
		return store.OpenBadgerStore(cfg.BadgerDir)
	case "memory", "":
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.Backend)
	}
}

func openRelations(ctx context.Context, cfg config.RelationsConfig, kv core.KeyValueStore) (core.RelationStore, error) {
	if cfg.Backend != "neo4j" {
		return relation.NewStore(kv), nil
	}
	return relation.OpenNeo4jStore(ctx, relation.Neo4jConfig{
		URI:      cfg.Neo4j.URI,
		User:     cfg.Neo4j.User,
		Password: cfg.Neo4j.Password,
		Database: cfg.Neo4j.Database,
		Timeout:  cfg.Neo4j.Timeout,
		MaxPool:  cfg.Neo4j.MaxPool,
	})
}

func openMarket(ctx context.Context, cfg config.MarketConfig) (marketSource, func(), error) {
	if cfg.Driver == "memory" {
		f, err := market.LoadFixture(cfg.Fixture)
		if err != nil {
			return nil, nil, err
		}
		return market.NewMemoryMarket(f), func() {}, nil
	}

	m, err := market.Open(cfg.Driver, cfg.DSN, cfg.AutoMigrate)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() { _ = m.Close() }
	if cfg.Fixture == "" {
		return m, closeFn, nil
	}

	var n int64
	if err := m.DB().WithContext(ctx).Model(&market.ProductRow{}).Count(&n).Error; err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("count products: %w", err)
	}
	if n > 0 {
		return m, closeFn, nil
	}
	f, err := market.LoadFixture(cfg.Fixture)
	if err == nil {
		err = market.Seed(ctx, m.DB(), f)
	}
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	logging.Info().Str("fixture", cfg.Fixture).Int("products", len(f.Products)).Msg("market seeded")
	return m, closeFn, nil
}
