package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"ats-radar/internal/config"
	"ats-radar/internal/fetcher"
	"ats-radar/internal/orchestrator"
)

// runSync 构造依赖并执行一次同步，输出每个来源的摘要。
func runSync(ctx context.Context, cfg config.AppConfig, build depsBuilder, sources []string, out io.Writer) (orchestrator.Summary, error) {
	deps, cleanup, err := build(ctx, cfg, buildOptions{})
	defer cleanup()
	if err != nil {
		return orchestrator.Summary{}, err
	}
	if deps.runner == nil {
		return orchestrator.Summary{}, fmt.Errorf("sync runner not configured")
	}

	summary, err := deps.runner.Run(ctx, sources...)
	if err != nil {
		return summary, fmt.Errorf("run sync: %w", err)
	}
	summary.Print(out)
	return summary, nil
}

// runDryRun 只抓取与归一化，把职位以 JSON 输出，不写库也不做 GC。
func runDryRun(ctx context.Context, cfg config.AppConfig, build depsBuilder, sources []string, out io.Writer) error {
	deps, cleanup, err := build(ctx, cfg, buildOptions{dryRun: true})
	defer cleanup()
	if err != nil {
		return err
	}

	selected, err := selectFetchers(deps.fetchers, sources)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	failed := false
	for _, f := range selected {
		batch, err := f.Fetch(ctx)
		if err != nil {
			failed = true
			fmt.Fprintf(out, "%s: failed: %v\n", f.Name(), err)
			continue
		}
		if err := enc.Encode(batch.Jobs); err != nil {
			return fmt.Errorf("encode jobs: %w", err)
		}
		fmt.Fprintf(out, "%s: %s\n", f.Name(), batch.Summary())
	}
	if failed {
		return errSourcesFailed
	}
	return nil
}

func selectFetchers(all []fetcher.JobFetcher, sources []string) ([]fetcher.JobFetcher, error) {
	if len(sources) == 0 {
		return all, nil
	}
	out := make([]fetcher.JobFetcher, 0, len(sources))
	for _, name := range sources {
		found := false
		for _, f := range all {
			if f.Name() == name {
				out = append(out, f)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("source %q is not enabled", name)
		}
	}
	return out, nil
}
