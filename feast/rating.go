package feast

import (
	"context"
	"fmt"

	"github.com/rushteam/shoprec/pkg/conv"
)

const (
	DefaultRatingFeature = "product_stats:avg_rating"
	DefaultEntityKey     = "product_id"
)

// RatingSource 从在线特征库读取商品平均评分，供热门兜底使用。
// 特征库中没有值的商品不出现在结果中，调用方回退到目录聚合值。
type RatingSource struct {
	Client    Client
	Feature   string
	EntityKey string
}

func NewRatingSource(c Client) *RatingSource {
	return &RatingSource{Client: c, Feature: DefaultRatingFeature, EntityKey: DefaultEntityKey}
}

func (s *RatingSource) AverageRatings(ctx context.Context, productIDs []string) (map[string]float64, error) {
	if len(productIDs) == 0 {
		return map[string]float64{}, nil
	}

	feature := s.Feature
	if feature == "" {
		feature = DefaultRatingFeature
	}
	entityKey := s.EntityKey
	if entityKey == "" {
		entityKey = DefaultEntityKey
	}

	rows := make([]map[string]any, len(productIDs))
	for i, id := range productIDs {
		rows[i] = map[string]any{entityKey: id}
	}
	resp, err := s.Client.GetOnlineFeatures(ctx, &GetOnlineFeaturesRequest{
		Features:   []string{feature},
		EntityRows: rows,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.FeatureVectors) != len(productIDs) {
		return nil, fmt.Errorf("feast: expected %d vectors, got %d", len(productIDs), len(resp.FeatureVectors))
	}

	out := make(map[string]float64, len(productIDs))
	for i, fv := range resp.FeatureVectors {
		raw, ok := fv.Values[feature]
		if !ok {
			continue
		}
		if v, ok := conv.ToFloat64(raw); ok {
			out[productIDs[i]] = v
		}
	}
	return out, nil
}
