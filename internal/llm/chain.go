// Package llm 封装文本生成服务：统一的 Completer 接口、具体客户端，
// 以及按顺序回退的 Chain。
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

var (
	// ErrExhausted 表示所有已配置的服务都失败了。
	ErrExhausted = errors.New("llm: all providers failed")
	// ErrUnconfigured 表示没有任何可用的服务。
	ErrUnconfigured = errors.New("llm: no provider configured")
)

// Completer 抽象一次 "发送提示词、取回文本" 的调用，便于测试注入。
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Provider 是 Chain 中的一个节点，Client 为 nil 表示未配置，直接跳过。
type Provider struct {
	Name   string
	Client Completer
}

// ChainConfig 控制限速、超时与熔断。
type ChainConfig struct {
	CallDelay       time.Duration `yaml:"call_delay" json:"call_delay"`
	ProviderDelay   time.Duration `yaml:"provider_delay" json:"provider_delay"`
	Timeout         time.Duration `yaml:"timeout" json:"timeout"`
	BreakerFailures uint32        `yaml:"breaker_failures" json:"breaker_failures"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown" json:"breaker_cooldown"`
}

// DefaultChainConfig 返回默认配置。
func DefaultChainConfig() ChainConfig {
	return ChainConfig{
		CallDelay:       time.Second,
		ProviderDelay:   3 * time.Second,
		Timeout:         30 * time.Second,
		BreakerFailures: 3,
		BreakerCooldown: 5 * time.Minute,
	}
}

// Result 记录成功的文本以及产出它的服务名。
type Result struct {
	Text     string
	Provider string
}

// ValidateFunc 校验服务输出，返回错误时视为该服务失败。
type ValidateFunc func(text string) error

// SleepFunc 在 ctx 取消时提前返回。
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option 定制 Chain。
type Option func(*Chain)

// WithLogger 指定日志。
func WithLogger(l zerolog.Logger) Option {
	return func(c *Chain) { c.log = l }
}

// WithSleep 替换等待函数，测试中用来跳过真实延迟。
func WithSleep(fn SleepFunc) Option {
	return func(c *Chain) {
		if fn != nil {
			c.sleep = fn
		}
	}
}

type node struct {
	name    string
	client  Completer
	breaker *gobreaker.CircuitBreaker
}

// Chain 按顺序尝试各个服务，第一个通过校验的结果胜出。
// 每次外部调用前固定等待 CallDelay，切换到下一个服务前再等待 ProviderDelay；
// 连续失败的服务会被熔断一段时间，不再为每条职位白白消耗一次超时。
type Chain struct {
	cfg   ChainConfig
	nodes []node
	sleep SleepFunc
	log   zerolog.Logger
}

// NewChain 创建 Chain，零值配置项使用默认值。
func NewChain(cfg ChainConfig, providers []Provider, opts ...Option) *Chain {
	def := DefaultChainConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = def.BreakerFailures
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = def.BreakerCooldown
	}

	c := &Chain{cfg: cfg, sleep: sleepContext, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}

	failures := cfg.BreakerFailures
	for _, p := range providers {
		n := node{name: p.Name, client: p.Client}
		if p.Client != nil {
			n.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
				Name:        p.Name,
				MaxRequests: 1,
				Timeout:     cfg.BreakerCooldown,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures >= failures
				},
				OnStateChange: func(name string, from, to gobreaker.State) {
					c.log.Warn().Str("provider", name).Str("from", from.String()).Str("to", to.String()).Msg("breaker state changed")
				},
			})
		}
		c.nodes = append(c.nodes, n)
	}
	return c
}

// Configured 判断是否至少有一个服务可用。
func (c *Chain) Configured() bool {
	if c == nil {
		return false
	}
	for _, n := range c.nodes {
		if n.client != nil {
			return true
		}
	}
	return false
}

// Run 依次尝试各个服务，全部失败时返回 ErrExhausted，没有可用服务时返回 ErrUnconfigured。
func (c *Chain) Run(ctx context.Context, prompt string, validate ValidateFunc) (Result, error) {
	if c == nil {
		return Result{}, ErrUnconfigured
	}

	attempted := 0
	for _, n := range c.nodes {
		if n.client == nil {
			continue
		}
		if n.breaker.State() == gobreaker.StateOpen {
			c.log.Debug().Str("provider", n.name).Msg("skip provider, breaker open")
			continue
		}
		if attempted > 0 {
			if err := c.sleep(ctx, c.cfg.ProviderDelay); err != nil {
				return Result{}, err
			}
		}
		attempted++

		text, err := c.call(ctx, n, prompt, validate)
		if err == nil {
			return Result{Text: text, Provider: n.name}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		c.log.Warn().Err(err).Str("provider", n.name).Msg("provider failed, trying next")
	}

	if attempted == 0 {
		return Result{}, ErrUnconfigured
	}
	return Result{}, ErrExhausted
}

func (c *Chain) call(ctx context.Context, n node, prompt string, validate ValidateFunc) (string, error) {
	if err := c.sleep(ctx, c.cfg.CallDelay); err != nil {
		return "", err
	}

	out, err := n.breaker.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()

		text, err := n.client.Complete(callCtx, prompt)
		if err != nil {
			return nil, err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, errors.New("empty completion")
		}
		if validate != nil {
			if err := validate(text); err != nil {
				return nil, fmt.Errorf("validate: %w", err)
			}
		}
		return text, nil
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", n.name, err)
	}
	return out.(string), nil
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
