package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	// PathEnvVar 指定配置文件路径
	PathEnvVar = "SHOPREC_CONFIG"
	// EnvPrefix 是环境变量前缀
	EnvPrefix = "SHOPREC_"
)

// DefaultPaths 在未设置 SHOPREC_CONFIG 时依次查找
var DefaultPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/shoprec/config.yaml",
}

// Load 按 默认值 → 配置文件 → 环境变量 的顺序加载并校验配置。
func Load() (*Config, error) {
	return LoadFile(findConfigFile())
}

// LoadFile 同 Load，但显式指定配置文件（空字符串表示不加载文件）。
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// envTransform: SHOPREC_SCORER__MAX_RESULTS -> scorer.max_results
func envTransform(key string) string {
	key = strings.TrimPrefix(key, EnvPrefix)
	key = strings.ToLower(key)
	return strings.ReplaceAll(key, "__", ".")
}

func findConfigFile() string {
	if p := os.Getenv(PathEnvVar); p != "" {
		return p
	}
	for _, p := range DefaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate 校验字段约束以及跨 section 的约束
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}

	if c.Store.Backend == "redis" && c.Store.Redis.Addr == "" {
		return errors.New("store.redis.addr is required when store.backend=redis")
	}
	if c.Relations.Backend == "neo4j" && c.Relations.Neo4j.URI == "" {
		return errors.New("relations.neo4j.uri is required when relations.backend=neo4j")
	}
	if c.Market.Driver != "memory" && c.Market.DSN == "" {
		return fmt.Errorf("market.dsn is required for driver %s", c.Market.Driver)
	}
	if c.Market.Driver == "memory" && c.Market.Fixture == "" {
		return errors.New("market.fixture is required when market.driver=memory")
	}
	if c.Feast.Enabled && c.Feast.Endpoint == "" {
		return errors.New("feast.endpoint is required when feast.enabled=true")
	}
	return nil
}
