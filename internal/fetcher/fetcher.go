// Package fetcher 从各个 ATS 拉取职位并归一化为 model.Job。
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ats-radar/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// 来源名称，同时作为职位 ID 前缀。
const (
	SourceGreenhouse = "greenhouse"
	SourceLever      = "lever"
	SourceAshby      = "ashby"
)

// Board 是某个来源下的一个公司职位板。
// Token 在 Greenhouse 中是 board token，在 Lever 中是 site 名，在 Ashby 中是组织名。
type Board struct {
	Token   string `yaml:"token" json:"token"`
	Company string `yaml:"company" json:"company"`
	LogoURL string `yaml:"logo_url" json:"logo_url"`
}

// SourceConfig 是单个来源的配置，BaseURL 为空时使用官方地址。
type SourceConfig struct {
	Enabled bool    `yaml:"enabled" json:"enabled"`
	BaseURL string  `yaml:"base_url" json:"base_url"`
	Boards  []Board `yaml:"boards" json:"boards"`
}

// Config 定义抓取配置。
type Config struct {
	RequestDelay time.Duration `yaml:"request_delay" json:"request_delay"`
	Greenhouse   SourceConfig  `yaml:"greenhouse" json:"greenhouse"`
	Lever        SourceConfig  `yaml:"lever" json:"lever"`
	Ashby        SourceConfig  `yaml:"ashby" json:"ashby"`
}

// JobFetcher 抓取统一接口。
type JobFetcher interface {
	Name() string
	Fetch(ctx context.Context) (Batch, error)
}

// Batch 是一次抓取的结果。单个职位失败或被分类器拒绝只体现在计数中，不会让 Fetch 返回错误。
type Batch struct {
	Source   string
	SyncID   string
	SyncedAt time.Time
	Jobs     []model.Job
	// Listed 为来源列表接口返回的职位数。
	Listed   int
	Failed   int
	Rejected int
	// Errors 记录失败的职位板，对应职位板上的职位本次没有被观察到。
	Errors []string
}

// Succeeded 返回成功归一化的职位数。
func (b Batch) Succeeded() int {
	return len(b.Jobs)
}

// Observed 返回本次实际拿到详情的职位数（成功与被分类器拒绝的），
// 作为 GC 安全下限的依据。详情接口整体失败时为 0。
func (b Batch) Observed() int {
	return len(b.Jobs) + b.Rejected
}

// Complete 判断本次是否完整观察到了来源当前的全部职位。
func (b Batch) Complete() bool {
	return b.Failed == 0 && len(b.Errors) == 0
}

// Summary 返回批次摘要，例如 "2 successful, 1 failed, 0 rejected (3 listed)"。
func (b Batch) Summary() string {
	return fmt.Sprintf("%d successful, %d failed, %d rejected (%d listed)", b.Succeeded(), b.Failed, b.Rejected, b.Listed)
}

// Option 定制抓取器。
type Option func(*base)

// WithLogger 指定日志。
func WithLogger(l zerolog.Logger) Option {
	return func(b *base) { b.log = l }
}

// WithClock 替换时间来源。
func WithClock(now func() time.Time) Option {
	return func(b *base) {
		if now != nil {
			b.now = now
		}
	}
}

// WithSleep 替换请求间隔的等待函数。
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(b *base) {
		if fn != nil {
			b.sleep = fn
		}
	}
}

// base 是三个来源共用的部分：HTTP、限速、归一化与计数。
type base struct {
	name       string
	cfg        SourceConfig
	delay      time.Duration
	client     *http.Client
	normalizer *Normalizer
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
	log        zerolog.Logger
}

func newBase(name string, cfg SourceConfig, delay time.Duration, n *Normalizer, client *http.Client, opts []Option) base {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	b := base{
		name:       name,
		cfg:        cfg,
		delay:      delay,
		client:     client,
		normalizer: n,
		now:        time.Now,
		sleep:      sleepContext,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&b)
	}
	b.log = b.log.With().Str("source", name).Logger()
	return b
}

func (b *base) Name() string {
	return b.name
}

func (b *base) newBatch() Batch {
	return Batch{Source: b.name, SyncID: uuid.NewString(), SyncedAt: b.now().UTC()}
}

// boardsOrError 在没有配置职位板时返回错误。
func (b *base) boardsOrError() ([]Board, error) {
	if len(b.cfg.Boards) == 0 {
		return nil, fmt.Errorf("%s: no boards configured", b.name)
	}
	return b.cfg.Boards, nil
}

// getJSON 发送 GET 请求并解析 JSON。
func (b *base) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "ats-radar/1.0")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// process 归一化单个职位并计入批次，错误只记录不返回。
func (b *base) process(ctx context.Context, batch *Batch, p Posting) {
	job, err := b.normalizer.Normalize(ctx, p, batch.SyncID, batch.SyncedAt)
	switch {
	case err == nil:
		batch.Jobs = append(batch.Jobs, job)
	case isRejected(err):
		batch.Rejected++
		b.log.Info().Str("external_id", p.ExternalID).Str("title", p.Title).Msg("job outside taxonomy, dropped")
	default:
		batch.Failed++
		b.log.Error().Err(err).Str("external_id", p.ExternalID).Str("title", p.Title).Msg("normalize job failed")
	}
}

// finish 在所有职位板都失败时返回错误，表示该来源本次整体失败。
func (b *base) finish(batch Batch, boards int, lastErr error) (Batch, error) {
	b.log.Info().
		Str("sync_id", batch.SyncID).
		Int("listed", batch.Listed).
		Int("succeeded", batch.Succeeded()).
		Int("failed", batch.Failed).
		Int("rejected", batch.Rejected).
		Msg("fetch done")
	if lastErr != nil && len(batch.Errors) == boards {
		return batch, fmt.Errorf("%s: all boards failed: %w", b.name, lastErr)
	}
	return batch, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// New 按名称创建抓取器。
func New(name string, cfg Config, n *Normalizer, client *http.Client, opts ...Option) (JobFetcher, error) {
	switch name {
	case SourceGreenhouse:
		return NewGreenhouseFetcher(cfg.Greenhouse, cfg.RequestDelay, n, client, opts...), nil
	case SourceLever:
		return NewLeverFetcher(cfg.Lever, cfg.RequestDelay, n, client, opts...), nil
	case SourceAshby:
		return NewAshbyFetcher(cfg.Ashby, cfg.RequestDelay, n, client, opts...), nil
	default:
		return nil, fmt.Errorf("unknown source %q", name)
	}
}

// Enabled 返回所有启用的抓取器，顺序固定为 greenhouse、lever、ashby。
func Enabled(cfg Config, n *Normalizer, client *http.Client, opts ...Option) []JobFetcher {
	var out []JobFetcher
	for _, src := range []struct {
		name string
		cfg  SourceConfig
	}{{SourceGreenhouse, cfg.Greenhouse}, {SourceLever, cfg.Lever}, {SourceAshby, cfg.Ashby}} {
		if !src.cfg.Enabled {
			continue
		}
		f, _ := New(src.name, cfg, n, client, opts...)
		out = append(out, f)
	}
	return out
}
