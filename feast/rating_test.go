package feast

import (
	"context"
	"errors"
	"testing"
)

type fakeClient struct {
	values map[string]any
	err    error
	req    *GetOnlineFeaturesRequest
}

func (c *fakeClient) GetOnlineFeatures(_ context.Context, req *GetOnlineFeaturesRequest) (*GetOnlineFeaturesResponse, error) {
	c.req = req
	if c.err != nil {
		return nil, c.err
	}
	resp := &GetOnlineFeaturesResponse{}
	for _, row := range req.EntityRows {
		values := map[string]any{}
		if v, ok := c.values[row[DefaultEntityKey].(string)]; ok {
			values[DefaultRatingFeature] = v
		}
		resp.FeatureVectors = append(resp.FeatureVectors, FeatureVector{Values: values, EntityRow: row})
	}
	return resp, nil
}

func (c *fakeClient) Close() error { return nil }

func TestRatingSource_AverageRatings(t *testing.T) {
	client := &fakeClient{values: map[string]any{"p1": 4.5, "p2": "bad", "p3": float64(3)}}
	src := NewRatingSource(client)

	got, err := src.AverageRatings(context.Background(), []string{"p1", "p2", "p3", "p4"})
	if err != nil {
		t.Fatalf("AverageRatings 失败: %v", err)
	}
	if len(got) != 2 || got["p1"] != 4.5 || got["p3"] != 3 {
		t.Errorf("结果 = %v, 期望只包含 p1=4.5 p3=3", got)
	}
	if len(client.req.Features) != 1 || client.req.Features[0] != "product_stats:avg_rating" {
		t.Errorf("请求特征 = %v", client.req.Features)
	}
}

func TestRatingSource_Errors(t *testing.T) {
	src := NewRatingSource(&fakeClient{err: errors.New("unavailable")})
	if _, err := src.AverageRatings(context.Background(), []string{"p1"}); err == nil {
		t.Error("客户端错误应返回")
	}

	got, err := src.AverageRatings(context.Background(), nil)
	if err != nil || len(got) != 0 {
		t.Errorf("空输入应返回空结果, 实际 %v, %v", got, err)
	}
}
