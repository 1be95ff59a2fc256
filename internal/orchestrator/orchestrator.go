// Package orchestrator 依次运行各来源的抓取，负责写库、GC、通知与抓取记录。
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"ats-radar/internal/fetcher"
	"ats-radar/internal/lock"
	"ats-radar/internal/model"
	"ats-radar/internal/notifier"
	"ats-radar/internal/reconcile"
	"ats-radar/internal/storage"

	"github.com/rs/zerolog"
)

const (
	lockKey        = "sync"
	defaultLockTTL = 2 * time.Hour
)

// Store 是编排器需要的持久层操作。
type Store interface {
	EnsureCompany(ctx context.Context, name, logoURL string) (model.Company, error)
	UpsertJobs(ctx context.Context, jobs []model.Job) storage.UpsertResult
	RecordSyncRun(ctx context.Context, run *model.SyncRun) error
}

// Reconciler 关闭过期职位。
type Reconciler interface {
	Reconcile(ctx context.Context, req reconcile.Request) reconcile.Report
}

// Report 是单个来源一次运行的结果。
type Report struct {
	Source        string
	Batch         fetcher.Batch
	Err           error
	Persisted     int
	PersistFailed int
	Created       int
	GC            reconcile.Report
	Duration      time.Duration
}

// Summary 汇总一次运行中所有来源的结果。
type Summary struct {
	Reports []Report
}

// Failed 在任一来源整体抓取失败时返回 true。
func (s Summary) Failed() bool {
	for _, r := range s.Reports {
		if r.Err != nil {
			return true
		}
	}
	return false
}

// Created 返回本次新建的职位总数。
func (s Summary) Created() int {
	n := 0
	for _, r := range s.Reports {
		n += r.Created
	}
	return n
}

// Print 输出每个来源一行的摘要。
func (s Summary) Print(w io.Writer) {
	for _, r := range s.Reports {
		if r.Err != nil {
			fmt.Fprintf(w, "%s: failed: %v\n", r.Source, r.Err)
			continue
		}
		line := fmt.Sprintf("%s: %s, %d persisted, %d new", r.Source, r.Batch.Summary(), r.Persisted, r.Created)
		if r.PersistFailed > 0 {
			line += fmt.Sprintf(", %d persist failed", r.PersistFailed)
		}
		switch {
		case r.GC.Skipped:
			line += ", gc skipped (" + r.GC.Reason + ")"
		case r.GC.Err != nil:
			line += fmt.Sprintf(", gc error: %v", r.GC.Err)
		default:
			line += fmt.Sprintf(", %d closed (%s)", r.GC.Closed, r.GC.Strategy)
		}
		fmt.Fprintln(w, line)
	}
}

// Orchestrator 串行执行各来源，不同来源之间互不影响。
type Orchestrator struct {
	fetchers []fetcher.JobFetcher
	store    Store
	gc       Reconciler
	notif    notifier.Notifier
	locker   lock.Locker
	lockTTL  time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

// Option 定制 Orchestrator。
type Option func(*Orchestrator)

// WithNotifier 设置新增职位通知器。
func WithNotifier(n notifier.Notifier) Option {
	return func(o *Orchestrator) { o.notif = n }
}

// WithLocker 设置跨进程锁。
func WithLocker(l lock.Locker, ttl time.Duration) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.locker = l
		}
		if ttl > 0 {
			o.lockTTL = ttl
		}
	}
}

// WithLogger 指定日志。
func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithClock 替换时间来源。
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New 创建 Orchestrator，fetchers 的顺序即执行顺序。
func New(fetchers []fetcher.JobFetcher, store Store, gc Reconciler, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		fetchers: fetchers,
		store:    store,
		gc:       gc,
		locker:   lock.Noop{},
		lockTTL:  defaultLockTTL,
		now:      time.Now,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Sources 返回已注册的来源名称。
func (o *Orchestrator) Sources() []string {
	names := make([]string, 0, len(o.fetchers))
	for _, f := range o.fetchers {
		names = append(names, f.Name())
	}
	return names
}

// Run 运行指定来源，未指定时运行全部。只有配置错误、锁冲突与上下文取消会返回 error，
// 单个来源的失败记录在 Summary 中。
func (o *Orchestrator) Run(ctx context.Context, sources ...string) (Summary, error) {
	selected, err := o.selectFetchers(sources)
	if err != nil {
		return Summary{}, err
	}

	release, err := o.locker.Acquire(ctx, lockKey, o.lockTTL)
	if err != nil {
		return Summary{}, fmt.Errorf("acquire run lock: %w", err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			o.log.Warn().Err(err).Msg("release run lock failed")
		}
	}()

	var summary Summary
	for _, f := range selected {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Reports = append(summary.Reports, o.runSource(ctx, f))
	}
	return summary, nil
}

func (o *Orchestrator) selectFetchers(sources []string) ([]fetcher.JobFetcher, error) {
	if len(sources) == 0 {
		return o.fetchers, nil
	}
	byName := make(map[string]fetcher.JobFetcher, len(o.fetchers))
	for _, f := range o.fetchers {
		byName[f.Name()] = f
	}
	out := make([]fetcher.JobFetcher, 0, len(sources))
	for _, name := range sources {
		f, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("source %q is not enabled", name)
		}
		out = append(out, f)
	}
	return out, nil
}

func (o *Orchestrator) runSource(ctx context.Context, f fetcher.JobFetcher) Report {
	started := o.now()
	log := o.log.With().Str("source", f.Name()).Logger()
	report := Report{Source: f.Name()}

	batch, err := f.Fetch(ctx)
	report.Batch = batch
	if err != nil {
		report.Err = err
		report.Duration = o.now().Sub(started)
		log.Error().Err(err).Msg("source failed")
		o.record(ctx, report, started)
		return report
	}

	o.attachCompanies(ctx, batch.Jobs, log)
	res := o.store.UpsertJobs(ctx, batch.Jobs)
	report.Persisted = res.Persisted
	report.PersistFailed = res.Failed
	report.Created = res.Created
	for _, perr := range res.Errors {
		log.Error().Err(perr).Msg("persist job failed")
	}

	report.GC = o.gc.Reconcile(ctx, reconcile.Request{
		Source:   batch.Source,
		SyncID:   batch.SyncID,
		Observed: batch.Observed(),
		Complete: batch.Complete() && res.Failed == 0,
	})

	if o.notif != nil && len(res.NewJobs) > 0 {
		if err := o.notif.Notify(ctx, res.NewJobs); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn().Err(err).Msg("notify failed")
		}
	}

	report.Duration = o.now().Sub(started)
	log.Info().
		Int("persisted", report.Persisted).
		Int("created", report.Created).
		Int64("closed", report.GC.Closed).
		Dur("duration", report.Duration).
		Msg(batch.Summary())
	o.record(ctx, report, started)
	return report
}

// attachCompanies 为职位关联公司记录，同名公司在一次运行中只查询一次。失败时保留公司名继续写入。
func (o *Orchestrator) attachCompanies(ctx context.Context, jobs []model.Job, log zerolog.Logger) {
	ids := make(map[string]uint)
	for i := range jobs {
		name := jobs[i].CompanyName
		id, ok := ids[name]
		if !ok {
			company, err := o.store.EnsureCompany(ctx, name, jobs[i].CompanyLogoURL)
			if err != nil {
				log.Warn().Err(err).Str("company", name).Msg("ensure company failed")
			}
			id = company.ID
			ids[name] = id
		}
		jobs[i].CompanyID = id
	}
}

func (o *Orchestrator) record(ctx context.Context, r Report, started time.Time) {
	finished := o.now()
	id := r.Batch.SyncID
	if id == "" {
		id = fmt.Sprintf("%s-%d", r.Source, started.UnixNano())
	}
	run := &model.SyncRun{
		ID:            id,
		Source:        r.Source,
		StartedAt:     started,
		FinishedAt:    &finished,
		Listed:        r.Batch.Listed,
		Succeeded:     r.Batch.Succeeded(),
		Failed:        r.Batch.Failed,
		Rejected:      r.Batch.Rejected,
		Persisted:     r.Persisted,
		PersistFailed: r.PersistFailed,
		Created:       r.Created,
		Closed:        r.GC.Closed,
		GCStrategy:    string(r.GC.Strategy),
		GCSkipped:     r.GC.Skipped,
	}
	if r.Err != nil {
		run.Error = r.Err.Error()
	} else if r.GC.Err != nil {
		run.Error = r.GC.Err.Error()
	}
	if err := o.store.RecordSyncRun(context.WithoutCancel(ctx), run); err != nil {
		o.log.Warn().Err(err).Str("source", r.Source).Msg("record sync run failed")
	}
}
