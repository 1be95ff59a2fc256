package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiConfig 定义 Gemini 调用参数。
type GeminiConfig struct {
	APIKey      string  `yaml:"api_key" json:"api_key"`
	Model       string  `yaml:"model" json:"model"`
	Temperature float64 `yaml:"temperature" json:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens"`
}

// GeminiClient 通过 langchaingo 调用 Gemini，实现 Completer。
type GeminiClient struct {
	model llms.Model
	opts  []llms.CallOption
}

// NewGeminiClient 创建客户端，未提供 key 时返回 ErrUnconfigured。
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrUnconfigured
	}
	name := strings.TrimSpace(cfg.Model)
	if name == "" {
		name = defaultGeminiModel
	}
	m, err := googleai.New(ctx,
		googleai.WithAPIKey(cfg.APIKey),
		googleai.WithDefaultModel(name),
	)
	if err != nil {
		return nil, fmt.Errorf("new gemini client: %w", err)
	}
	return NewModelClient(m, cfg), nil
}

// NewModelClient 包装任意 langchaingo 模型。
func NewModelClient(m llms.Model, cfg GeminiConfig) *GeminiClient {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &GeminiClient{
		model: m,
		opts: []llms.CallOption{
			llms.WithTemperature(cfg.Temperature),
			llms.WithMaxTokens(maxTokens),
		},
	}
}

func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt, c.opts...)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", errors.New("gemini response empty")
	}
	return out, nil
}
