// Package config 加载进程配置：默认值 → YAML 文件 → 环境变量，后者覆盖前者。
//
// 环境变量以 SHOPREC_ 为前缀，双下划线表示层级，例如
// SHOPREC_STORE__BACKEND=redis 对应 store.backend，SHOPREC_SCORER__MAX_RESULTS=30 对应 scorer.max_results。
package config

import (
	"time"

	"github.com/rushteam/shoprec/feast"
	"github.com/rushteam/shoprec/scorer"
)

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Log        LogConfig        `koanf:"log"`
	Store      StoreConfig      `koanf:"store"`
	Relations  RelationsConfig  `koanf:"relations"`
	Market     MarketConfig     `koanf:"market"`
	Scorer     scorer.Config    `koanf:"scorer"`
	Service    ServiceConfig    `koanf:"service"`
	Refresh    RefreshConfig    `koanf:"refresh"`
	Popularity PopularityConfig `koanf:"popularity"`
	Cooccur    CooccurConfig    `koanf:"cooccur"`
	Feast      FeastConfig      `koanf:"feast"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// StoreConfig 选择 KeyValueStore 后端
type StoreConfig struct {
	Backend string      `koanf:"backend" validate:"oneof=memory redis badger"`
	Redis   RedisConfig `koanf:"redis"`

	// BadgerDir 为空时 Badger 以内存模式运行
	BadgerDir string `koanf:"badger_dir"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db" validate:"min=0"`
}

// RelationsConfig 选择商品关系的存储：kv 使用 Store，neo4j 使用图数据库
type RelationsConfig struct {
	Backend string      `koanf:"backend" validate:"oneof=kv neo4j"`
	Neo4j   Neo4jConfig `koanf:"neo4j"`
}

type Neo4jConfig struct {
	URI      string        `koanf:"uri"`
	User     string        `koanf:"user"`
	Password string        `koanf:"password"`
	Database string        `koanf:"database"`
	Timeout  time.Duration `koanf:"timeout"`
	MaxPool  int           `koanf:"max_pool" validate:"min=0"`
}

// MarketConfig 是商品目录与订单的只读数据源
type MarketConfig struct {
	Driver      string `koanf:"driver" validate:"oneof=sqlite postgres memory"`
	DSN         string `koanf:"dsn"`
	AutoMigrate bool   `koanf:"auto_migrate"`

	// Fixture 是 YAML 种子数据：driver=memory 时直接加载，否则在 auto_migrate 后写入数据库
	Fixture string `koanf:"fixture"`
}

type ServiceConfig struct {
	RecomputeMode string `koanf:"recompute_mode" validate:"oneof=sync async"`
	DefaultLimit  int    `koanf:"default_limit" validate:"min=1"`
	MaxLimit      int    `koanf:"max_limit" validate:"gtefield=DefaultLimit"`
}

type RefreshConfig struct {
	Topic       string        `koanf:"topic" validate:"required"`
	Debounce    time.Duration `koanf:"debounce" validate:"min=0"`
	Concurrency int           `koanf:"concurrency" validate:"min=1"`
	Timeout     time.Duration `koanf:"timeout" validate:"gt=0"`
	Buffer      int64         `koanf:"buffer" validate:"min=0"`
}

type PopularityConfig struct {
	CacheKey         string        `koanf:"cache_key" validate:"required"`
	TTL              time.Duration `koanf:"ttl" validate:"gt=0"`
	PoolSize         int           `koanf:"pool_size" validate:"min=1"`
	FailureThreshold uint32        `koanf:"failure_threshold" validate:"min=1"`
	BreakerTimeout   time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
}

type CooccurConfig struct {
	Enabled          bool   `koanf:"enabled"`
	Schedule         string `koanf:"schedule" validate:"required_if=Enabled true"`
	RunOnStart       bool   `koanf:"run_on_start"`
	BatchSize        int    `koanf:"batch_size" validate:"min=1"`
	MaxItemsPerOrder int    `koanf:"max_items_per_order" validate:"min=2"`
	CursorKey        string `koanf:"cursor_key" validate:"required"`
}

// FeastConfig 开启后热门兜底使用在线特征库中的平均评分
type FeastConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Endpoint string        `koanf:"endpoint"`
	Project  string        `koanf:"project"`
	Token    string        `koanf:"token"`
	TLS      bool          `koanf:"tls"`
	Timeout  time.Duration `koanf:"timeout" validate:"gt=0"`
	Feature  string        `koanf:"feature"`
}

// Client 返回 feast 客户端配置
func (c FeastConfig) Client() feast.Config {
	return feast.Config{
		Endpoint: c.Endpoint,
		Project:  c.Project,
		Token:    c.Token,
		TLS:      c.TLS,
		Timeout:  c.Timeout,
	}
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Store: StoreConfig{
			Backend: "memory",
			Redis:   RedisConfig{Addr: "127.0.0.1:6379"},
		},
		Relations: RelationsConfig{
			Backend: "kv",
			Neo4j: Neo4jConfig{
				URI:     "neo4j://127.0.0.1:7687",
				User:    "neo4j",
				Timeout: 10 * time.Second,
				MaxPool: 50,
			},
		},
		Market: MarketConfig{
			Driver:      "sqlite",
			DSN:         "file:shoprec.db?cache=shared",
			AutoMigrate: true,
		},
		Scorer: scorer.DefaultConfig(),
		Service: ServiceConfig{
			RecomputeMode: "async",
			DefaultLimit:  10,
			MaxLimit:      100,
		},
		Refresh: RefreshConfig{
			Topic:       "shoprec.refresh",
			Debounce:    2 * time.Second,
			Concurrency: 4,
			Timeout:     30 * time.Second,
			Buffer:      1024,
		},
		Popularity: PopularityConfig{
			CacheKey:         "hot:products",
			TTL:              10 * time.Minute,
			PoolSize:         100,
			FailureThreshold: 5,
			BreakerTimeout:   30 * time.Second,
		},
		Cooccur: CooccurConfig{
			Enabled:          true,
			Schedule:         "*/15 * * * *",
			BatchSize:        500,
			MaxItemsPerOrder: 20,
			CursorKey:        "cooccur:cursor",
		},
		Feast: FeastConfig{
			Endpoint: "127.0.0.1:6566",
			Timeout:  2 * time.Second,
			Feature:  feast.DefaultRatingFeature,
		},
	}
}
