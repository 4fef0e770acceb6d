package feast

import (
	"context"
	"fmt"
	"time"

	feastsdk "github.com/feast-dev/feast/sdk/go"
	"github.com/feast-dev/feast/sdk/go/protos/feast/types"
)

// DefaultGrpcPort 是 Feast Serving 的默认 gRPC 端口
const DefaultGrpcPort = 6566

// GrpcClient 是基于官方 Feast Go SDK 的 gRPC 客户端实现。
type GrpcClient struct {
	// client 官方 SDK 的 gRPC 客户端
	client *feastsdk.GrpcClient

	// Project 项目名称
	Project string

	// Endpoint 服务端点（用于日志）
	Endpoint string

	timeout time.Duration
}

var _ Client = (*GrpcClient)(nil)

// NewGrpcClient 创建一个基于官方 SDK 的 Feast gRPC 客户端。
func NewGrpcClient(host string, port int, cfg Config) (*GrpcClient, error) {
	if port == 0 {
		port = DefaultGrpcPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}

	var (
		client *feastsdk.GrpcClient
		err    error
	)
	if cfg.Token != "" || cfg.TLS {
		security := feastsdk.SecurityConfig{EnableTLS: cfg.TLS}
		if cfg.Token != "" {
			security.Credential = feastsdk.NewStaticCredential(cfg.Token)
		}
		client, err = feastsdk.NewSecureGrpcClient(host, port, security)
	} else {
		client, err = feastsdk.NewGrpcClient(host, port)
	}
	if err != nil {
		return nil, fmt.Errorf("create feast grpc client: %w", err)
	}

	return &GrpcClient{
		client:   client,
		Project:  cfg.Project,
		Endpoint: fmt.Sprintf("%s:%d", host, port),
		timeout:  cfg.Timeout,
	}, nil
}

// GetOnlineFeatures 获取在线特征（实现 Client 接口）
func (c *GrpcClient) GetOnlineFeatures(ctx context.Context, req *GetOnlineFeaturesRequest) (*GetOnlineFeaturesResponse, error) {
	if len(req.Features) == 0 {
		return nil, fmt.Errorf("features are required")
	}
	if len(req.EntityRows) == 0 {
		return &GetOnlineFeaturesResponse{}, nil
	}

	project := req.Project
	if project == "" {
		project = c.Project
	}
	if project == "" {
		return nil, fmt.Errorf("project is required")
	}

	// SDK 的 Row 类型是 map[string]*types.Value
	entityRows := make([]feastsdk.Row, len(req.EntityRows))
	for i, row := range req.EntityRows {
		entityRow := make(feastsdk.Row, len(row))
		for k, v := range row {
			entityRow[k] = convertToSDKValue(v)
		}
		entityRows[i] = entityRow
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	sdkResp, err := c.client.GetOnlineFeatures(ctx, &feastsdk.OnlineFeaturesRequest{
		Features: req.Features,
		Entities: entityRows,
		Project:  project,
	})
	if err != nil {
		return nil, fmt.Errorf("feast get online features: %w", err)
	}

	rows := sdkResp.Rows()
	if len(rows) != len(req.EntityRows) {
		return nil, fmt.Errorf("response row count mismatch: expected %d, got %d", len(req.EntityRows), len(rows))
	}

	vectors := make([]FeatureVector, len(rows))
	for i, row := range rows {
		values := make(map[string]any, len(req.Features))
		for _, name := range req.Features {
			if v, ok := convertFromSDKValue(row[name]); ok {
				values[name] = v
			}
		}
		vectors[i] = FeatureVector{Values: values, EntityRow: req.EntityRows[i]}
	}
	return &GetOnlineFeaturesResponse{FeatureVectors: vectors}, nil
}

// Close 关闭客户端连接（实现 Client 接口）
func (c *GrpcClient) Close() error {
	// SDK 没有显式的 Close，连接由 gRPC 库管理
	c.client = nil
	return nil
}

// convertToSDKValue 将实体值转换为 SDK 的 *types.Value
func convertToSDKValue(v any) *types.Value {
	switch val := v.(type) {
	case string:
		return feastsdk.StrVal(val)
	case int:
		return feastsdk.Int64Val(int64(val))
	case int64:
		return feastsdk.Int64Val(val)
	case int32:
		return feastsdk.Int64Val(int64(val))
	case float64:
		return feastsdk.DoubleVal(val)
	case float32:
		return feastsdk.FloatVal(val)
	case bool:
		return feastsdk.BoolVal(val)
	case []byte:
		return feastsdk.BytesVal(val)
	default:
		return feastsdk.StrVal(fmt.Sprintf("%v", val))
	}
}

// convertFromSDKValue 提取标量特征值，数值统一为 float64；未设置的值返回 false
func convertFromSDKValue(v *types.Value) (any, bool) {
	if v == nil {
		return nil, false
	}
	switch x := v.GetVal().(type) {
	case *types.Value_DoubleVal:
		return x.DoubleVal, true
	case *types.Value_FloatVal:
		return float64(x.FloatVal), true
	case *types.Value_Int64Val:
		return float64(x.Int64Val), true
	case *types.Value_Int32Val:
		return float64(x.Int32Val), true
	case *types.Value_StringVal:
		return x.StringVal, true
	case *types.Value_BoolVal:
		return x.BoolVal, true
	case *types.Value_BytesVal:
		return string(x.BytesVal), true
	default:
		return nil, false
	}
}
