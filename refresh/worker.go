package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pkg/logging"
	"github.com/rushteam/shoprec/pkg/metrics"
)

// Recomputer 是 Worker 依赖的重算能力（scorer.Scorer 实现此接口）
type Recomputer interface {
	Recompute(ctx context.Context, userID string) ([]core.ProductRecommendation, error)
}

// WorkerConfig 是 Worker 配置
type WorkerConfig struct {
	Topic string

	// Debounce 窗口内同一用户的多次请求合并为一次重算，0 表示立即执行
	Debounce time.Duration

	// Concurrency 限制同时进行的重算数量
	Concurrency int

	// Timeout 是单次重算的超时
	Timeout time.Duration
}

// Worker 订阅重算请求并按用户去抖执行，实现 suture.Service。
// 重算失败只记录日志与指标，不重试。
type Worker struct {
	sub        message.Subscriber
	recomputer Recomputer
	cfg        WorkerConfig
	sem        chan struct{}
	ready      chan struct{}
	readyOnce  sync.Once
	name       string
}

func NewWorker(sub message.Subscriber, r Recomputer, cfg WorkerConfig) *Worker {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Worker{
		sub:        sub,
		recomputer: r,
		cfg:        cfg,
		sem:        make(chan struct{}, cfg.Concurrency),
		ready:      make(chan struct{}),
		name:       "refresh-worker",
	}
}

// Serve 实现 suture.Service，阻塞直到 ctx 取消。
func (w *Worker) Serve(ctx context.Context) error {
	msgs, err := w.sub.Subscribe(ctx, w.cfg.Topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", w.cfg.Topic, err)
	}
	w.readyOnce.Do(func() { close(w.ready) })

	logger := logging.WithComponent(w.name)
	logger.Info().Str("topic", w.cfg.Topic).Dur("debounce", w.cfg.Debounce).Msg("refresh worker starting")

	due := make(chan string)
	done := make(chan struct{})
	pending := make(map[string]*time.Timer)
	var wg sync.WaitGroup
	defer func() {
		close(done)
		for _, t := range pending {
			t.Stop()
		}
		metrics.RefreshPending.Set(0)
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("refresh worker shutting down")
			return ctx.Err()

		case msg, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errors.New("refresh subscription closed")
			}
			userID, ok := decode(msg)
			if !ok {
				continue
			}
			if _, exists := pending[userID]; exists {
				metrics.RefreshDebounced.Inc()
				continue
			}
			pending[userID] = time.AfterFunc(w.cfg.Debounce, func() { deliver(due, done, userID) })
			metrics.RefreshPending.Set(float64(len(pending)))

		case userID := <-due:
			delete(pending, userID)
			metrics.RefreshPending.Set(float64(len(pending)))

			select {
			case w.sem <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-w.sem }()
				w.run(ctx, userID)
			}()
		}
	}
}

// deliver 把到期的用户交回主循环；Serve 已退出（done 关闭）时直接放弃
func deliver(due chan<- string, done <-chan struct{}, userID string) {
	select {
	case due <- userID:
	case <-done:
	}
}

// Ready 在首次订阅成功后关闭
func (w *Worker) Ready() <-chan struct{} {
	return w.ready
}

func (w *Worker) run(ctx context.Context, userID string) {
	runCtx, cancel := context.WithTimeout(logging.ContextWithNewCorrelationID(ctx), w.cfg.Timeout)
	defer cancel()

	if _, err := w.recomputer.Recompute(runCtx, userID); err != nil {
		logging.Ctx(runCtx).Warn().Err(err).Str("user_id", userID).Msg("async recompute failed")
	}
}

// decode 解析消息并立即 Ack；格式错误的消息丢弃
func decode(msg *message.Message) (string, bool) {
	defer msg.Ack()

	var req Request
	if err := json.Unmarshal(msg.Payload, &req); err != nil || req.UserID == "" {
		logging.Warn().Str("message_uuid", msg.UUID).Err(err).Msg("malformed refresh request dropped")
		return "", false
	}
	return req.UserID, true
}

func (w *Worker) String() string {
	return w.name
}
