// Package lock 提供跨进程的抓取互斥锁，避免两个进程同时同步同一批来源。
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrHeld 表示锁已被其他持有者占用。
var ErrHeld = errors.New("lock held by another process")

// Release 释放已获取的锁。
type Release func(ctx context.Context) error

// Locker 获取一个带过期时间的锁。
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error)
}

// Noop 总是获取成功，用于未配置 Redis 的单进程部署。
type Noop struct{}

// Acquire 实现 Locker。
func (Noop) Acquire(context.Context, string, time.Duration) (Release, error) {
	return func(context.Context) error { return nil }, nil
}

// releaseScript 只删除仍属于当前持有者的 key。
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// client 是 RedisLocker 用到的 go-redis 命令子集。
type client interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisLocker 基于 SET NX PX 的分布式锁。
type RedisLocker struct {
	client client
	prefix string
	token  func() string
}

// NewRedisLocker 创建 RedisLocker，key 统一加上 prefix。
func NewRedisLocker(c redis.Cmdable, prefix string) *RedisLocker {
	return &RedisLocker{client: c, prefix: prefix, token: uuid.NewString}
}

// NewRedisLockerFromURL 解析 redis:// URL 并创建 RedisLocker。
func NewRedisLockerFromURL(rawURL, prefix string) (*RedisLocker, *redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	return NewRedisLocker(rdb, prefix), rdb, nil
}

// Acquire 获取锁，已被占用时返回 ErrHeld。
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	fullKey := l.prefix + key
	token := l.token()

	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", fullKey, err)
	}
	if !ok {
		return nil, fmt.Errorf("acquire lock %s: %w", fullKey, ErrHeld)
	}

	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{fullKey}, token).Err(); err != nil {
			return fmt.Errorf("release lock %s: %w", fullKey, err)
		}
		return nil
	}, nil
}
