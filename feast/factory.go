package feast

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// NewClient 按 Config.Endpoint（host[:port]，可带 grpc:// 前缀）创建 gRPC 客户端。
func NewClient(cfg Config) (*GrpcClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("feast: endpoint is required")
	}
	host, port, err := parseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	return NewGrpcClient(host, port, cfg)
}

// parseEndpoint 未写端口时 port 为 0，由 NewGrpcClient 使用默认端口
func parseEndpoint(endpoint string) (string, int, error) {
	if _, rest, ok := strings.Cut(endpoint, "://"); ok {
		endpoint = rest
	}
	endpoint = strings.TrimSuffix(endpoint, "/")

	host, rawPort, err := net.SplitHostPort(endpoint)
	if err != nil {
		// 没有端口
		return endpoint, 0, nil
	}
	port, err := strconv.Atoi(rawPort)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("feast: invalid port in endpoint %q", endpoint)
	}
	return host, port, nil
}
