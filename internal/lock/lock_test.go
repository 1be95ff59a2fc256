package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// fakeRedis 在内存中模拟 SET NX 与释放脚本。
type fakeRedis struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	if _, ok := f.values[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = value.(string)
	f.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) compareAndDelete(keys []string, args []interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.values[keys[0]] == args[0].(string) {
		delete(f.values, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (f *fakeRedis) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.compareAndDelete(keys, args)
}

func (f *fakeRedis) EvalSha(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.compareAndDelete(keys, args)
}

func (f *fakeRedis) EvalRO(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	return f.Eval(ctx, script, keys, args...)
}

func (f *fakeRedis) EvalShaRO(ctx context.Context, sha string, keys []string, args ...interface{}) *redis.Cmd {
	return f.EvalSha(ctx, sha, keys, args...)
}

func (f *fakeRedis) ScriptExists(_ context.Context, hashes ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult(make([]bool, len(hashes)), nil)
}

func (f *fakeRedis) ScriptLoad(_ context.Context, _ string) *redis.StringCmd {
	return redis.NewStringResult("", nil)
}

func newTestLocker(f *fakeRedis) *RedisLocker {
	n := 0
	return &RedisLocker{client: f, prefix: "ats-radar:", token: func() string {
		n++
		return fmt.Sprintf("token-%d", n)
	}}
}

func TestRedisLockerAcquireAndRelease(t *testing.T) {
	t.Parallel()

	f := newFakeRedis()
	locker := newTestLocker(f)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "sync", time.Minute)
	if err != nil {
		t.Fatalf("Acquire error: %v", err)
	}
	if f.ttls["ats-radar:sync"] != time.Minute {
		t.Fatalf("expected ttl to be forwarded, got %v", f.ttls["ats-radar:sync"])
	}

	if _, err := locker.Acquire(ctx, "sync", time.Minute); !errors.Is(err, ErrHeld) {
		t.Fatalf("expected ErrHeld for second acquire, got %v", err)
	}

	if err := release(ctx); err != nil {
		t.Fatalf("release error: %v", err)
	}
	if _, ok := f.values["ats-radar:sync"]; ok {
		t.Fatalf("expected key to be deleted after release")
	}

	if _, err := locker.Acquire(ctx, "sync", time.Minute); err != nil {
		t.Fatalf("expected acquire after release to succeed, got %v", err)
	}
}

func TestRedisLockerReleaseKeepsForeignLock(t *testing.T) {
	t.Parallel()

	f := newFakeRedis()
	locker := newTestLocker(f)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "sync", time.Minute)
	if err != nil {
		t.Fatalf("Acquire error: %v", err)
	}

	// 锁过期后被其他进程重新获取。
	f.values["ats-radar:sync"] = "someone-else"
	if err := release(ctx); err != nil {
		t.Fatalf("release error: %v", err)
	}
	if f.values["ats-radar:sync"] != "someone-else" {
		t.Fatalf("expected foreign lock to survive release")
	}
}

func TestRedisLockerPropagatesErrors(t *testing.T) {
	t.Parallel()

	f := newFakeRedis()
	f.err = errors.New("connection refused")
	locker := newTestLocker(f)

	_, err := locker.Acquire(context.Background(), "sync", time.Minute)
	if err == nil || errors.Is(err, ErrHeld) {
		t.Fatalf("expected connection error, got %v", err)
	}
}

func TestNoopLocker(t *testing.T) {
	t.Parallel()

	release, err := Noop{}.Acquire(context.Background(), "sync", time.Minute)
	if err != nil {
		t.Fatalf("Acquire error: %v", err)
	}
	if err := release(context.Background()); err != nil {
		t.Fatalf("release error: %v", err)
	}
}

func TestNewRedisLockerFromURL(t *testing.T) {
	t.Parallel()

	locker, rdb, err := NewRedisLockerFromURL("redis://localhost:6379/2", "p:")
	if err != nil {
		t.Fatalf("NewRedisLockerFromURL error: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	if locker.prefix != "p:" {
		t.Fatalf("unexpected prefix %q", locker.prefix)
	}
	if rdb.Options().DB != 2 {
		t.Fatalf("expected db 2, got %d", rdb.Options().DB)
	}

	if _, _, err := NewRedisLockerFromURL("://bad", ""); err == nil {
		t.Fatalf("expected error for malformed url")
	}
}
