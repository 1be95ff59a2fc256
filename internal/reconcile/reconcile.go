// Package reconcile 把来源不再返回的职位标记为 closed。
// 关闭过期职位只是尽力而为的维护工作：存储错误写入报告，不会中断抓取流程。
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Strategy 是 GC 策略。
type Strategy string

const (
	// StrategyGracePeriod 关闭 last_synced_at 早于 now-N 天的活跃职位，容忍来源偶尔漏返职位。
	StrategyGracePeriod Strategy = "grace-period"
	// StrategySyncSession 关闭 sync_id 不是本次抓取的活跃职位，只能在本次抓取完整时使用。
	StrategySyncSession Strategy = "sync-session"
)

const (
	DefaultGracePeriodDays = 7
	DefaultMinJobCount     = 5
)

// ParseStrategy 解析策略名，空字符串表示默认的 grace-period。
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategyGracePeriod:
		return StrategyGracePeriod, nil
	case StrategySyncSession:
		return StrategySyncSession, nil
	default:
		return "", fmt.Errorf("unknown gc strategy %q", s)
	}
}

// Config 定义 GC 行为。
type Config struct {
	Strategy        Strategy `yaml:"strategy" json:"strategy"`
	GracePeriodDays int      `yaml:"grace_period_days" json:"grace_period_days"`
	MinJobCount     int      `yaml:"min_job_count" json:"min_job_count"`
}

// Store 是持久层需要提供的按条件关闭操作，范围限定在单个来源内。
type Store interface {
	CloseStaleJobs(ctx context.Context, source string, before time.Time) (int64, error)
	CloseJobsNotInSync(ctx context.Context, source, syncID string) (int64, error)
}

// Request 描述一次抓取的结果。
type Request struct {
	Source string
	SyncID string
	// Observed 为来源本次列出的职位数，用于安全下限判断。
	Observed int
	// Complete 为 false 时本次抓取有职位失败或未持久化，sync-session 会降级为 grace-period。
	Complete bool
}

// Report 是一次 GC 的结果。
type Report struct {
	Source   string
	Strategy Strategy
	Skipped  bool
	Reason   string
	Closed   int64
	Err      error
}

// Engine 执行 GC。
type Engine struct {
	store Store
	cfg   Config
	now   func() time.Time
	log   zerolog.Logger
}

// Option 定制 Engine。
type Option func(*Engine)

// WithClock 替换时间来源。
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger 指定日志。
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// NewEngine 创建 Engine，零值配置使用默认值。
func NewEngine(store Store, cfg Config, opts ...Option) *Engine {
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyGracePeriod
	}
	if cfg.GracePeriodDays <= 0 {
		cfg.GracePeriodDays = DefaultGracePeriodDays
	}
	if cfg.MinJobCount <= 0 {
		cfg.MinJobCount = DefaultMinJobCount
	}
	e := &Engine{store: store, cfg: cfg, now: time.Now, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SafetyCheckJobCount 判断本次抓取的职位数是否达到最小值。
// 低于下限时应跳过 GC，避免把来源故障误判为 "所有职位都已关闭"。
func SafetyCheckJobCount(count, minExpected int) bool {
	return count >= minExpected
}

// Reconcile 按配置的策略关闭过期职位。
func (e *Engine) Reconcile(ctx context.Context, req Request) Report {
	report := Report{Source: req.Source, Strategy: e.cfg.Strategy}
	log := e.log.With().Str("source", req.Source).Str("sync_id", req.SyncID).Logger()

	if !SafetyCheckJobCount(req.Observed, e.cfg.MinJobCount) {
		report.Skipped = true
		report.Reason = fmt.Sprintf("only %d jobs fetched, below safety floor %d", req.Observed, e.cfg.MinJobCount)
		log.Warn().Int("observed", req.Observed).Int("min", e.cfg.MinJobCount).Msg("skip gc, too few jobs fetched")
		return report
	}

	if report.Strategy == StrategySyncSession && !req.Complete {
		report.Strategy = StrategyGracePeriod
		log.Info().Msg("fetch incomplete, sync-session gc downgraded to grace-period")
	}

	var err error
	switch report.Strategy {
	case StrategySyncSession:
		report.Closed, err = e.store.CloseJobsNotInSync(ctx, req.Source, req.SyncID)
	default:
		cutoff := e.now().UTC().AddDate(0, 0, -e.cfg.GracePeriodDays)
		report.Closed, err = e.store.CloseStaleJobs(ctx, req.Source, cutoff)
	}
	if err != nil {
		report.Err = fmt.Errorf("gc %s: %w", report.Strategy, err)
		log.Error().Err(err).Str("strategy", string(report.Strategy)).Msg("gc failed")
		return report
	}

	log.Info().Str("strategy", string(report.Strategy)).Int64("closed", report.Closed).Msg("gc done")
	return report
}
