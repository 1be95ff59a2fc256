// Package enhance 把来源的原始职位描述整理成统一的 Markdown：
// 优先调用文本生成服务按模板精简，失败时退回确定性的 HTML 转换。
package enhance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"ats-radar/internal/llm"
	"ats-radar/internal/markdown"

	"github.com/rs/zerolog"
)

const (
	minInputChars    = 50
	minResultChars   = 200
	minAIChars       = 300
	minAIRatio       = 0.15
	maxPromptRunes   = 12000
	minHeadingsFound = 2
)

var errTooShort = errors.New("result too short")

// Runner 是 llm.Chain 的抽象。
type Runner interface {
	Run(ctx context.Context, prompt string, validate llm.ValidateFunc) (llm.Result, error)
}

// Config 描述增强参数。
type Config struct {
	Locale    string `yaml:"locale" json:"locale"`
	CacheSize int    `yaml:"cache_size" json:"cache_size"`
}

// Enhancer 负责描述增强，Enhance 永不返回错误且结果中永远不含 HTML。
type Enhancer struct {
	runner   Runner
	cache    *Cache
	template Template
	log      zerolog.Logger
}

// Option 定制 Enhancer。
type Option func(*Enhancer)

// WithLogger 指定日志。
func WithLogger(l zerolog.Logger) Option {
	return func(e *Enhancer) { e.log = l }
}

// New 创建 Enhancer。runner 可以为 nil，此时只走 HTML 转换；cache 为 nil 时按配置新建。
func New(cfg Config, runner Runner, cache *Cache, opts ...Option) *Enhancer {
	if cache == nil {
		cache = NewCache(cfg.CacheSize)
	}
	e := &Enhancer{runner: runner, cache: cache, template: TemplateFor(cfg.Locale), log: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enhance 返回精简后的 Markdown 描述。
func (e *Enhancer) Enhance(ctx context.Context, raw, title, company string) string {
	trimmed := strings.TrimSpace(raw)
	if utf8.RuneCountInString(trimmed) < minInputChars {
		return stripHTML(trimmed)
	}

	key := Fingerprint(title, raw)
	if cached, ok := e.cache.Get(key); ok {
		return cached
	}

	var result string
	if looksEnhanced(trimmed) {
		result = cleanup(trimmed)
	} else {
		result = e.generate(ctx, trimmed, title, company)
	}

	result = stripHTML(result)
	// 被取消或超时时得到的是退回结果，不缓存，下次仍可尝试增强。
	if ctx.Err() == nil {
		e.cache.Put(key, result)
	}
	return result
}

func (e *Enhancer) generate(ctx context.Context, raw, title, company string) string {
	converted := cleanup(markdown.Convert(raw, markdown.Options{}))
	if e.runner == nil {
		return converted
	}

	input := truncateRunes(converted, maxPromptRunes)
	res, err := e.runner.Run(ctx, buildPrompt(e.template, title, company, input), validateLength(utf8.RuneCountInString(converted)))
	if err != nil {
		e.log.Info().Err(err).Str("title", title).Msg("enhancement fell back to html conversion")
		return converted
	}

	out := cleanup(markdown.DecodeEntities(res.Text))
	if utf8.RuneCountInString(out) < minResultChars {
		e.log.Info().Str("title", title).Str("provider", res.Provider).Int("chars", utf8.RuneCountInString(out)).Msg("enhanced text too short, using html conversion")
		return converted
	}
	e.log.Debug().Str("title", title).Str("provider", res.Provider).Msg("description enhanced")
	return out
}

// validateLength 拒绝近乎为空的 "成功"：少于 300 字符且不足输入的 15%。
func validateLength(inputChars int) llm.ValidateFunc {
	return func(text string) error {
		n := utf8.RuneCountInString(text)
		if n < minAIChars && float64(n) < minAIRatio*float64(inputChars) {
			return fmt.Errorf("%w: %d chars for %d input chars", errTooShort, n, inputChars)
		}
		return nil
	}
}

// looksEnhanced 判断文本是否已经是模板化的 Markdown，这种输入只做清理，保证重复增强不改变结果。
func looksEnhanced(s string) bool {
	if markdown.ContainsHTML(markdown.DecodeEntities(s)) {
		return false
	}
	found := 0
	for _, h := range templateHeadings() {
		if strings.Contains(s, h) {
			found++
		}
	}
	return found >= minHeadingsFound
}

func stripHTML(s string) string {
	if !markdown.ContainsHTML(s) {
		return s
	}
	return strings.TrimSpace(markdown.StripTags(s))
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
