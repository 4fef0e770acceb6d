package cooccur

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/rushteam/shoprec/pkg/logging"
)

// 标准 5 段 cron 表达式
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Scheduler 按 cron 表达式周期运行 Miner，实现 suture.Service。
type Scheduler struct {
	miner      *Miner
	schedule   string
	runOnStart bool
	name       string
}

// NewScheduler 校验 cron 表达式并创建 Scheduler
func NewScheduler(m *Miner, schedule string, runOnStart bool) (*Scheduler, error) {
	if _, err := cronParser.Parse(schedule); err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	return &Scheduler{
		miner:      m,
		schedule:   schedule,
		runOnStart: runOnStart,
		name:       "cooccur-scheduler",
	}, nil
}

func (s *Scheduler) Serve(ctx context.Context) error {
	logger := cronLogger{}
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(s.schedule, func() { s.run(ctx) }); err != nil {
		return fmt.Errorf("schedule miner: %w", err)
	}

	logging.Info().Str("schedule", s.schedule).Msg("co-occurrence scheduler starting")
	if s.runOnStart {
		s.run(ctx)
	}
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	logging.Info().Msg("co-occurrence scheduler stopped")
	return ctx.Err()
}

func (s *Scheduler) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.miner.Run(logging.ContextWithNewCorrelationID(ctx)); err != nil {
		logging.Warn().Err(err).Msg("co-occurrence mining failed")
	}
}

func (s *Scheduler) String() string {
	return s.name
}

// cronLogger 把 cron 的日志接到 zerolog
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	logging.Debug().Str("component", "cron").Fields(keysAndValues).Msg(msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	logging.Error().Str("component", "cron").Err(err).Fields(keysAndValues).Msg(msg)
}
