// Package refresh 把交互触发的重算从请求路径上移走：写接口发布重算请求，
// Worker 订阅后按用户去抖，再调用 Scorer。
package refresh

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pkg/metrics"
)

// DefaultTopic 是重算请求的主题
const DefaultTopic = "shoprec.refresh"

// Request 是一次重算请求的消息体
type Request struct {
	UserID      string    `json:"user_id"`
	Reason      string    `json:"reason,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// Queue 发布重算请求。
type Queue struct {
	pub   message.Publisher
	topic string
}

func NewQueue(pub message.Publisher, topic string) *Queue {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Queue{pub: pub, topic: topic}
}

func (q *Queue) Topic() string { return q.topic }

// Enqueue 发布 userID 的重算请求，不等待重算完成。
func (q *Queue) Enqueue(ctx context.Context, userID, reason string) error {
	if userID == "" {
		return core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidInput, "refresh: user id is required")
	}
	payload, err := json.Marshal(Request{UserID: userID, Reason: reason, RequestedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode refresh request: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	if err := q.pub.Publish(q.topic, msg); err != nil {
		return core.WrapDomainError(core.ModuleService, core.ErrorCodeUnavailable, "refresh: publish", err)
	}
	metrics.RefreshEnqueued.Inc()
	return nil
}

// NewGoChannel 创建进程内的 Pub/Sub，发布与订阅共用同一个实例。
func NewGoChannel(buffer int64) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: buffer,
	}, NewLoggerAdapter())
}
