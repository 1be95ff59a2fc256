package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestChainFallsBackInOrder(t *testing.T) {
	t.Parallel()

	first := &stubCompleter{err: errors.New("boom")}
	third := &stubCompleter{response: "  enhanced  "}
	sleeper := &recordingSleep{}

	chain := NewChain(ChainConfig{CallDelay: time.Second, ProviderDelay: 3 * time.Second}, []Provider{
		{Name: "a", Client: first},
		{Name: "b"},
		{Name: "c", Client: third},
	}, WithSleep(sleeper.sleep))

	res, err := chain.Run(context.Background(), "prompt", nil)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.Provider != "c" || res.Text != "enhanced" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if first.calls != 1 || third.calls != 1 {
		t.Fatalf("expected one call each, got %d and %d", first.calls, third.calls)
	}

	want := []time.Duration{time.Second, 3 * time.Second, time.Second}
	got := sleeper.durations()
	if len(got) != len(want) {
		t.Fatalf("expected sleeps %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected sleeps %v, got %v", want, got)
		}
	}
}

func TestChainValidationFailureAdvances(t *testing.T) {
	t.Parallel()

	short := &stubCompleter{response: "tiny"}
	long := &stubCompleter{response: "long enough output"}
	chain := NewChain(ChainConfig{}, []Provider{{Name: "short", Client: short}, {Name: "long", Client: long}}, WithSleep(noSleep))

	res, err := chain.Run(context.Background(), "prompt", func(text string) error {
		if len(text) < 10 {
			return errors.New("too short")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.Provider != "long" {
		t.Fatalf("expected long provider to win, got %s", res.Provider)
	}
}

func TestChainErrors(t *testing.T) {
	t.Parallel()

	empty := NewChain(ChainConfig{}, []Provider{{Name: "a"}, {Name: "b"}}, WithSleep(noSleep))
	if empty.Configured() {
		t.Fatalf("chain without clients should not be configured")
	}
	if _, err := empty.Run(context.Background(), "p", nil); !errors.Is(err, ErrUnconfigured) {
		t.Fatalf("expected ErrUnconfigured, got %v", err)
	}

	failing := NewChain(ChainConfig{}, []Provider{
		{Name: "a", Client: &stubCompleter{err: errors.New("x")}},
		{Name: "b", Client: &stubCompleter{response: "   "}},
	}, WithSleep(noSleep))
	if _, err := failing.Run(context.Background(), "p", nil); !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
}

func TestChainBreakerSkipsDeadProvider(t *testing.T) {
	t.Parallel()

	dead := &stubCompleter{err: errors.New("503")}
	backup := &stubCompleter{response: "ok"}
	chain := NewChain(ChainConfig{BreakerFailures: 2, BreakerCooldown: time.Hour}, []Provider{
		{Name: "dead", Client: dead},
		{Name: "backup", Client: backup},
	}, WithSleep(noSleep))

	for i := 0; i < 4; i++ {
		if _, err := chain.Run(context.Background(), "p", nil); err != nil {
			t.Fatalf("Run %d error: %v", i, err)
		}
	}
	if dead.calls != 2 {
		t.Fatalf("expected breaker to stop calls after 2 failures, got %d", dead.calls)
	}
	if backup.calls != 4 {
		t.Fatalf("expected backup to serve every run, got %d", backup.calls)
	}
}

func TestChainTimeoutCountsAsFailure(t *testing.T) {
	t.Parallel()

	slow := &blockingCompleter{}
	fast := &stubCompleter{response: "fast"}
	chain := NewChain(ChainConfig{Timeout: 20 * time.Millisecond}, []Provider{
		{Name: "slow", Client: slow},
		{Name: "fast", Client: fast},
	}, WithSleep(noSleep))

	res, err := chain.Run(context.Background(), "p", nil)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.Provider != "fast" {
		t.Fatalf("expected fallback after timeout, got %s", res.Provider)
	}
}

func TestChainStopsWhenContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &stubCompleter{response: "ok"}
	chain := NewChain(ChainConfig{CallDelay: time.Second}, []Provider{{Name: "a", Client: client}})
	if _, err := chain.Run(ctx, "p", nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if client.calls != 0 {
		t.Fatalf("expected no call after cancellation, got %d", client.calls)
	}
}

type stubCompleter struct {
	response string
	err      error
	calls    int
	prompts  []string
}

func (s *stubCompleter) Complete(_ context.Context, prompt string) (string, error) {
	s.calls++
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

type blockingCompleter struct{}

func (blockingCompleter) Complete(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

type recordingSleep struct {
	mu    sync.Mutex
	slept []time.Duration
}

func (r *recordingSleep) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slept = append(r.slept, d)
	return nil
}

func (r *recordingSleep) durations() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.slept...)
}

func noSleep(context.Context, time.Duration) error { return nil }
