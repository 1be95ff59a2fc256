package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// Config 汇总所有文本生成服务的配置。
type Config struct {
	Gemini             GeminiConfig `yaml:"gemini" json:"gemini"`
	GeminiSecondaryKey string       `yaml:"gemini_secondary_key" json:"gemini_secondary_key"`
	Alternate          ChatConfig   `yaml:"alternate" json:"alternate"`
	Chain              ChainConfig  `yaml:"chain" json:"chain"`
}

// 服务名，同时用于日志与熔断器。
const (
	ProviderGeminiPrimary   = "gemini-primary"
	ProviderAlternate       = "alternate"
	ProviderGeminiSecondary = "gemini-secondary"
)

// BuildProviders 按固定顺序组装服务：Gemini 主 key、OpenAI 兼容的备用服务、Gemini 备用 key。
// 未配置的服务仍占位但 Client 为 nil。
func BuildProviders(ctx context.Context, cfg Config, httpClient *http.Client) ([]Provider, error) {
	primary, err := geminiProvider(ctx, ProviderGeminiPrimary, cfg.Gemini)
	if err != nil {
		return nil, err
	}

	alternate := Provider{Name: ProviderAlternate}
	if strings.TrimSpace(cfg.Alternate.APIKey) != "" {
		alternate.Client = NewChatClient(cfg.Alternate, httpClient)
	}

	secondaryCfg := cfg.Gemini
	secondaryCfg.APIKey = cfg.GeminiSecondaryKey
	secondary, err := geminiProvider(ctx, ProviderGeminiSecondary, secondaryCfg)
	if err != nil {
		return nil, err
	}

	return []Provider{primary, alternate, secondary}, nil
}

func geminiProvider(ctx context.Context, name string, cfg GeminiConfig) (Provider, error) {
	client, err := NewGeminiClient(ctx, cfg)
	if errors.Is(err, ErrUnconfigured) {
		return Provider{Name: name}, nil
	}
	if err != nil {
		return Provider{}, err
	}
	return Provider{Name: name, Client: client}, nil
}
