package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"ats-radar/internal/orchestrator"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrRunning 表示上一次同步尚未结束。
var ErrRunning = errors.New("sync already running")

// Config 用于调度配置。Interval 可以是 Go duration（"6h"）或五段式 cron 表达式。
type Config struct {
	Interval string `yaml:"interval" json:"interval"`
	Timeout  string `yaml:"timeout" json:"timeout"`
}

// Runner 执行一次完整同步。
type Runner interface {
	Run(ctx context.Context, sources ...string) (orchestrator.Summary, error)
}

// Scheduler 负责周期性触发同步，并保证同一时刻只有一次同步在运行。
type Scheduler struct {
	runner    Runner
	interval  time.Duration
	cron      cron.Schedule
	timeout   time.Duration
	running   atomic.Bool
	newTicker func(time.Duration) ticker
	now       func() time.Time
	log       zerolog.Logger
}

type ticker interface {
	C() <-chan time.Time
	Stop()
}

// NewScheduler 创建 Scheduler，解析配置的间隔与超时。
func NewScheduler(r Runner, cfg Config, log zerolog.Logger) *Scheduler {
	interval, schedule := parseSchedule(cfg.Interval)
	timeout := 2 * time.Hour
	if cfg.Timeout != "" {
		if d, err := time.ParseDuration(cfg.Timeout); err == nil && d > 0 {
			timeout = d
		}
	}

	return &Scheduler{
		runner:    r,
		interval:  interval,
		cron:      schedule,
		timeout:   timeout,
		newTicker: defaultTicker,
		now:       time.Now,
		log:       log,
	}
}

// ValidateSchedule 检查 Interval 是否为合法的 duration 或 cron 表达式。
func ValidateSchedule(value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	if d, err := time.ParseDuration(trimmed); err == nil {
		if d <= 0 {
			return fmt.Errorf("interval must be positive: %s", trimmed)
		}
		return nil
	}
	if _, err := cron.ParseStandard(trimmed); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", trimmed, err)
	}
	return nil
}

// Start 启动调度循环，直到上下文取消。
func (s *Scheduler) Start(ctx context.Context) error {
	if s.runner == nil {
		return fmt.Errorf("scheduler missing runner")
	}

	g, ctx := errgroup.WithContext(ctx)

	if s.cron != nil {
		g.Go(func() error {
			return s.startCron(ctx)
		})
	} else {
		tick := s.newTicker(s.interval)
		ch := tick.C()

		g.Go(func() error {
			defer tick.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ch:
					s.tick(ctx)
				drain:
					for {
						select {
						case <-ch:
							continue
						default:
							break drain
						}
					}
				}
			}
		})
	}

	return g.Wait()
}

// RunOnce 对外暴露单次同步接口，便于手动刷新。已有同步在运行时返回 ErrRunning。
func (s *Scheduler) RunOnce(ctx context.Context, sources ...string) (orchestrator.Summary, error) {
	return s.runOnce(ctx, sources...)
}

func (s *Scheduler) runOnce(ctx context.Context, sources ...string) (orchestrator.Summary, error) {
	if s.running.Swap(true) {
		return orchestrator.Summary{}, ErrRunning
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.runner.Run(ctx, sources...)
}

// tick 执行一次定时同步，错误只记录，调度继续。
func (s *Scheduler) tick(ctx context.Context) {
	summary, err := s.runOnce(ctx)
	switch {
	case errors.Is(err, ErrRunning):
		s.log.Warn().Msg("previous sync still running, tick skipped")
	case err != nil:
		s.log.Error().Err(err).Msg("scheduled sync failed")
	default:
		s.log.Info().Int("sources", len(summary.Reports)).Int("created", summary.Created()).Bool("failed", summary.Failed()).Msg("scheduled sync done")
	}
}

func defaultTicker(d time.Duration) ticker {
	t := time.NewTicker(d)
	return tickerWrapper{t}
}

type tickerWrapper struct {
	*time.Ticker
}

func (t tickerWrapper) C() <-chan time.Time { return t.Ticker.C }
func (t tickerWrapper) Stop()               { t.Ticker.Stop() }

func (s *Scheduler) startCron(ctx context.Context) error {
	for {
		next := s.cron.Next(s.now())
		if next.IsZero() {
			return fmt.Errorf("cron schedule has no next time")
		}
		wait := next.Sub(s.now())
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			s.tick(ctx)
		}
	}
}

func parseSchedule(value string) (time.Duration, cron.Schedule) {
	trimmed := strings.TrimSpace(value)
	if trimmed != "" {
		if d, err := time.ParseDuration(trimmed); err == nil && d > 0 {
			return d, nil
		}
		if schedule, err := cron.ParseStandard(trimmed); err == nil {
			return 0, schedule
		}
	}

	return 6 * time.Hour, nil
}
