package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ats-radar/internal/config"
	"ats-radar/internal/fetcher"
	"ats-radar/internal/model"
	"ats-radar/internal/orchestrator"
)

func TestRunSyncPrintsSummary(t *testing.T) {
	t.Parallel()

	stub := &stubRunner{summary: orchestrator.Summary{Reports: []orchestrator.Report{
		{Source: "greenhouse", Batch: fetcher.Batch{Listed: 3, Failed: 1, Jobs: make([]model.Job, 2)}},
	}}}
	builds := 0
	cleaned := 0

	var out bytes.Buffer
	summary, err := runSync(context.Background(), config.AppConfig{}, func(context.Context, config.AppConfig, buildOptions) (appDeps, func(), error) {
		builds++
		return appDeps{runner: stub}, func() { cleaned++ }, nil
	}, []string{"greenhouse"}, &out)
	if err != nil {
		t.Fatalf("runSync error: %v", err)
	}
	if summary.Failed() {
		t.Fatalf("expected summary without failed sources")
	}
	if builds != 1 || cleaned != 1 {
		t.Fatalf("expected builder and cleanup called once, got %d / %d", builds, cleaned)
	}
	if stub.calls != 1 || len(stub.sources) != 1 || stub.sources[0] != "greenhouse" {
		t.Fatalf("unexpected runner calls %d with %v", stub.calls, stub.sources)
	}
	if !strings.Contains(out.String(), "greenhouse: 2 successful, 1 failed, 0 rejected (3 listed)") {
		t.Fatalf("summary not printed: %s", out.String())
	}
}

func TestRunSyncBuilderError(t *testing.T) {
	t.Parallel()

	cleaned := 0
	_, err := runSync(context.Background(), config.AppConfig{}, func(context.Context, config.AppConfig, buildOptions) (appDeps, func(), error) {
		return appDeps{}, func() { cleaned++ }, errors.New("build fail")
	}, nil, &bytes.Buffer{})
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if cleaned != 1 {
		t.Fatalf("expected cleanup even on builder error")
	}
}

const testConfig = `
database:
  dsn: ":memory:"
fetcher:
  lever:
    enabled: true
    boards:
      - token: moonstudio
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(testConfig), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestSyncCommandExitsNonZeroOnFailedSource(t *testing.T) {
	stub := &stubRunner{summary: orchestrator.Summary{Reports: []orchestrator.Report{
		{Source: "lever", Err: errors.New("lever: all boards failed")},
	}}}
	root := newRootCmd(stubBuilder(appDeps{runner: stub}))

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"sync", "--config", writeTestConfig(t)})

	err := root.ExecuteContext(context.Background())
	if !errors.Is(err, errSourcesFailed) {
		t.Fatalf("expected errSourcesFailed, got %v", err)
	}
	if !strings.Contains(out.String(), "lever: failed") {
		t.Fatalf("expected failure line, got %s", out.String())
	}
}

func TestSourceCommandRunsSingleSource(t *testing.T) {
	stub := &stubRunner{}
	root := newRootCmd(stubBuilder(appDeps{runner: stub}))
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"lever", "--config", writeTestConfig(t)})

	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("execute error: %v", err)
	}
	if len(stub.sources) != 1 || stub.sources[0] != "lever" {
		t.Fatalf("expected lever only, got %v", stub.sources)
	}
}

func TestInvalidConfigFailsBeforeFetching(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("gc:\n  strategy: nuke\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	stub := &stubRunner{}
	root := newRootCmd(stubBuilder(appDeps{runner: stub}))
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"sync", "--config", path})

	if err := root.ExecuteContext(context.Background()); err == nil {
		t.Fatalf("expected config error")
	}
	if stub.calls != 0 {
		t.Fatalf("expected no sync on invalid config")
	}
}

func TestDryRunPrintsJobs(t *testing.T) {
	f := &stubFetcher{name: "lever", batch: fetcher.Batch{
		Listed: 1,
		Jobs:   []model.Job{{ID: "lever-1", Title: "Environment Artist"}},
	}}
	var gotOpts buildOptions
	root := newRootCmd(func(_ context.Context, _ config.AppConfig, opts buildOptions) (appDeps, func(), error) {
		gotOpts = opts
		return appDeps{fetchers: []fetcher.JobFetcher{f}}, func() {}, nil
	})

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"sync", "--dry-run", "--config", writeTestConfig(t)})

	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("execute error: %v", err)
	}
	if !gotOpts.dryRun {
		t.Fatalf("expected dry-run build options")
	}
	if !strings.Contains(out.String(), `"title": "Environment Artist"`) {
		t.Fatalf("expected job JSON, got %s", out.String())
	}
	if !strings.Contains(out.String(), "lever: 1 successful, 0 failed, 0 rejected (1 listed)") {
		t.Fatalf("expected batch summary, got %s", out.String())
	}
}

func TestSelectFetchers(t *testing.T) {
	t.Parallel()

	all := []fetcher.JobFetcher{&stubFetcher{name: "greenhouse"}, &stubFetcher{name: "ashby"}}
	got, err := selectFetchers(all, []string{"ashby"})
	if err != nil || len(got) != 1 || got[0].Name() != "ashby" {
		t.Fatalf("unexpected selection %v, %v", got, err)
	}
	if _, err := selectFetchers(all, []string{"lever"}); err == nil {
		t.Fatalf("expected error for disabled source")
	}
}

// --- stubs ---

func stubBuilder(deps appDeps) depsBuilder {
	return func(context.Context, config.AppConfig, buildOptions) (appDeps, func(), error) {
		return deps, func() {}, nil
	}
}

type stubRunner struct {
	summary orchestrator.Summary
	calls   int
	sources []string
}

func (s *stubRunner) Run(_ context.Context, sources ...string) (orchestrator.Summary, error) {
	s.calls++
	s.sources = sources
	return s.summary, nil
}

type stubFetcher struct {
	name  string
	batch fetcher.Batch
}

func (f *stubFetcher) Name() string { return f.name }

func (f *stubFetcher) Fetch(context.Context) (fetcher.Batch, error) {
	return f.batch, nil
}
