package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"ats-radar/internal/category"
	"ats-radar/internal/config"
	"ats-radar/internal/enhance"
	"ats-radar/internal/fetcher"
	"ats-radar/internal/llm"
	"ats-radar/internal/lock"
	"ats-radar/internal/logger"
	"ats-radar/internal/notifier"
	"ats-radar/internal/orchestrator"
	"ats-radar/internal/reconcile"
	"ats-radar/internal/scheduler"
	"ats-radar/internal/storage"
	"ats-radar/internal/tags"
)

// appDeps 是命令运行所需的组件，dry-run 时 store、runner、sched 为空。
type appDeps struct {
	fetchers []fetcher.JobFetcher
	runner   scheduler.Runner
	sched    *scheduler.Scheduler
	store    *storage.Store
}

type buildOptions struct {
	dryRun bool
}

// depsBuilder 根据配置构造依赖，返回的 cleanup 负责释放连接。
type depsBuilder func(ctx context.Context, cfg config.AppConfig, opts buildOptions) (appDeps, func(), error)

func buildDeps(ctx context.Context, cfg config.AppConfig, opts buildOptions) (appDeps, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	client := &http.Client{Timeout: 30 * time.Second}

	providers, err := llm.BuildProviders(ctx, cfg.AI, client)
	if err != nil {
		return appDeps{}, cleanup, fmt.Errorf("build ai providers: %w", err)
	}
	chain := llm.NewChain(cfg.AI.Chain, providers, llm.WithLogger(logger.Component("llm")))
	if !chain.Configured() {
		llmLog := logger.Component("llm")
		llmLog.Warn().Msg("no ai provider configured, descriptions use html conversion and keyword tags")
	}

	taxonomy := category.DefaultTaxonomy()
	if cfg.TaxonomyFile != "" {
		if taxonomy, err = category.LoadTaxonomy(cfg.TaxonomyFile); err != nil {
			return appDeps{}, cleanup, err
		}
	}
	classifier, err := category.NewKeywordClassifier(taxonomy)
	if err != nil {
		return appDeps{}, cleanup, fmt.Errorf("build classifier: %w", err)
	}

	normalizer := fetcher.NewNormalizer(
		classifier,
		enhance.New(cfg.Enhance, chain, nil, enhance.WithLogger(logger.Component("enhance"))),
		tags.NewExtractor(chain, tags.WithLogger(logger.Component("tags"))),
	)
	fetchers := fetcher.Enabled(cfg.Fetcher, normalizer, client, fetcher.WithLogger(logger.Component("fetcher")))

	deps := appDeps{fetchers: fetchers}
	if opts.dryRun {
		return deps, cleanup, nil
	}

	store, err := storage.Open(cfg.Database)
	if err != nil {
		return appDeps{}, cleanup, fmt.Errorf("init store: %w", err)
	}
	closers = append(closers, func() { _ = store.Close() })

	var locker lock.Locker = lock.Noop{}
	if cfg.Redis.URL != "" {
		redisLocker, rdb, err := lock.NewRedisLockerFromURL(cfg.Redis.URL, cfg.Redis.Prefix)
		if err != nil {
			return appDeps{}, cleanup, err
		}
		closers = append(closers, func() { _ = rdb.Close() })
		locker = redisLocker
	}

	engine := reconcile.NewEngine(store, cfg.GC, reconcile.WithLogger(logger.Component("gc")))
	orch := orchestrator.New(fetchers, store, engine,
		orchestrator.WithNotifier(notifier.NewLogNotifier(logger.Component("notify"))),
		orchestrator.WithLocker(locker, cfg.Redis.LockTTL),
		orchestrator.WithLogger(logger.Component("orchestrator")),
	)

	deps.store = store
	deps.runner = orch
	deps.sched = scheduler.NewScheduler(orch, cfg.Schedule, logger.Component("scheduler"))
	return deps, cleanup, nil
}
