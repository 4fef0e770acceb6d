package relation

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rushteam/shoprec/core"
)

// Neo4jConfig 是 Neo4j 连接配置
type Neo4jConfig struct {
	URI      string
	User     string
	Password string
	Database string
	Timeout  time.Duration
	MaxPool  int
}

// Neo4jStore 把商品关系保存为图：(:Product {id})-[:RELATED {strength, type, created_at}]->(:Product {id})。
// MERGE 保证有序商品对唯一，ON MATCH 只递增 strength。
type Neo4jStore struct {
	Driver   neo4j.DriverWithContext
	Database string
}

var _ core.RelationStore = (*Neo4jStore)(nil)

// OpenNeo4jStore 创建驱动并验证连通性，同时初始化唯一约束
func OpenNeo4jStore(ctx context.Context, cfg Neo4jConfig) (*Neo4jStore, error) {
	if cfg.User == "" {
		cfg.User = "neo4j"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxPool <= 0 {
		cfg.MaxPool = 50
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""), func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = cfg.MaxPool
		c.SocketConnectTimeout = cfg.Timeout
	})
	if err != nil {
		return nil, fmt.Errorf("relation: init neo4j driver: %w", err)
	}

	vctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, core.WrapDomainError(core.ModuleRelation, core.ErrorCodeUnavailable, "relation: neo4j unreachable", err)
	}

	s := &Neo4jStore{Driver: driver, Database: cfg.Database}
	if err := s.ensureSchema(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}
	return s, nil
}

func (s *Neo4jStore) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.Driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: s.Database})
}

func (s *Neo4jStore) ensureSchema(ctx context.Context) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	res, err := session.Run(ctx, `CREATE CONSTRAINT product_id_unique IF NOT EXISTS FOR (p:Product) REQUIRE p.id IS UNIQUE`, nil)
	if err != nil {
		return fmt.Errorf("relation: neo4j schema: %w", err)
	}
	_, err = res.Consume(ctx)
	return err
}

const mergeRelation = `
MERGE (a:Product {id: $product_id})
MERGE (b:Product {id: $related_id})
MERGE (a)-[r:RELATED]->(b)
ON CREATE SET r.strength = 1, r.type = $type, r.created_at = $now
ON MATCH SET r.strength = r.strength + 1
`

func (s *Neo4jStore) RecordCooccurrence(ctx context.Context, productID, relatedID string, typ core.RelationType) error {
	if err := validate(productID, relatedID, typ); err != nil {
		return err
	}

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, mergeRelation, map[string]any{
			"product_id": productID,
			"related_id": relatedID,
			"type":       string(typ),
			"now":        time.Now().UTC().UnixMilli(),
		})
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	if err != nil {
		return fmt.Errorf("relation: neo4j record %s->%s: %w", productID, relatedID, err)
	}
	return nil
}

const selectRelations = `
MATCH (a:Product {id: $product_id})-[r:RELATED]->(b:Product)
WHERE $related_id IS NULL OR b.id = $related_id
RETURN b.id AS related_id, r.strength AS strength, r.type AS type, r.created_at AS created_at
ORDER BY r.strength DESC, b.id DESC
LIMIT $limit
`

func (s *Neo4jStore) query(ctx context.Context, productID string, relatedID any, limit int) ([]core.ProductRelation, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, selectRelations, map[string]any{
			"product_id": productID,
			"related_id": relatedID,
			"limit":      int64(limit),
		})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}

		rels := make([]core.ProductRelation, 0, len(records))
		for _, rec := range records {
			rel := core.ProductRelation{ProductID: productID}
			if v, ok := rec.Get("related_id"); ok {
				rel.RelatedProductID, _ = v.(string)
			}
			if v, ok := rec.Get("strength"); ok {
				rel.Strength, _ = v.(int64)
			}
			if v, ok := rec.Get("type"); ok {
				t, _ := v.(string)
				rel.Type = core.RelationType(t)
			}
			if v, ok := rec.Get("created_at"); ok {
				if ms, ok := v.(int64); ok {
					rel.CreatedAt = time.UnixMilli(ms).UTC()
				}
			}
			rels = append(rels, rel)
		}
		return rels, nil
	})
	if err != nil {
		return nil, fmt.Errorf("relation: neo4j query %s: %w", productID, err)
	}
	return out.([]core.ProductRelation), nil
}

func (s *Neo4jStore) GetRelation(ctx context.Context, productID, relatedID string) (*core.ProductRelation, error) {
	rels, err := s.query(ctx, productID, relatedID, 1)
	if err != nil {
		return nil, err
	}
	if len(rels) == 0 {
		return nil, core.ErrStoreNotFound
	}
	return &rels[0], nil
}

func (s *Neo4jStore) TopRelations(ctx context.Context, productID string, n int) ([]core.ProductRelation, error) {
	if n <= 0 {
		return nil, nil
	}
	return s.query(ctx, productID, nil, n)
}

func (s *Neo4jStore) Close(ctx context.Context) error {
	if s.Driver == nil {
		return nil
	}
	return s.Driver.Close(ctx)
}
