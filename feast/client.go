package feast

import (
	"context"
	"time"
)

// Client 是 Feast Feature Store 在线特征的客户端接口。
//
// 这里只用到在线存储（Online Store）：评分等聚合特征由离线任务物化到在线存储，
// 服务端按实体批量读取。
//
// 实现：
//   - GrpcClient：基于官方 SDK (github.com/feast-dev/feast/sdk/go)
//
// 参考：https://github.com/feast-dev/feast
type Client interface {
	// GetOnlineFeatures 获取在线特征
	//
	// 参数：
	//   - features: 特征名称列表，例如 ["product_stats:avg_rating"]
	//   - entityRows: 实体行，例如 [{"product_id": "p1"}]
	GetOnlineFeatures(ctx context.Context, req *GetOnlineFeaturesRequest) (*GetOnlineFeaturesResponse, error)

	// Close 关闭客户端连接
	Close() error
}

// GetOnlineFeaturesRequest 获取在线特征请求
type GetOnlineFeaturesRequest struct {
	// Features 特征名称列表，例如 ["product_stats:avg_rating"]
	Features []string

	// EntityRows 实体行，例如 [{"product_id": "p1"}, {"product_id": "p2"}]
	EntityRows []map[string]any

	// Project 项目名称（可选）
	Project string
}

// GetOnlineFeaturesResponse 获取在线特征响应
type GetOnlineFeaturesResponse struct {
	// FeatureVectors 特征向量列表，每个元素对应一个实体行
	FeatureVectors []FeatureVector
}

// FeatureVector 特征向量
type FeatureVector struct {
	// Values 特征值，key 为特征名称；缺失的特征不出现在 map 中
	Values map[string]any

	// EntityRow 对应的实体行
	EntityRow map[string]any
}

// Config Feast 客户端配置
type Config struct {
	// Endpoint 服务端点，例如 "localhost:6566" 或 "grpc://feast:6566"
	Endpoint string

	// Project 项目名称
	Project string

	// Timeout 单次请求超时
	Timeout time.Duration

	// Token 静态 Token 认证（可选）
	Token string

	// TLS 是否启用 TLS
	TLS bool
}
