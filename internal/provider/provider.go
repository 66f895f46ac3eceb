// Package provider implements the LLM backends that perform the actual
// translation. All providers are single-shot chat completions; batch
// calls number the lines so the response can be realigned.
package provider

import (
	"context"
	"fmt"
	"time"
)

// Known provider names. The set is closed; settings and task rows only
// accept these values.
const (
	NameOpenAI   = "openai"
	NameClaude   = "claude"
	NameDeepSeek = "deepseek"
	NameGLM      = "glm"
)

// Names lists every supported provider.
func Names() []string {
	return []string{NameOpenAI, NameClaude, NameDeepSeek, NameGLM}
}

// Known reports whether name is a supported provider.
func Known(name string) bool {
	switch name {
	case NameOpenAI, NameClaude, NameDeepSeek, NameGLM:
		return true
	}
	return false
}

// Provider translates subtitle text.
type Provider interface {
	// Name returns the provider identifier.
	Name() string
	// Translate translates a single text.
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
	// TranslateBatch translates texts preserving order. The result
	// always has exactly len(texts) entries; entries the model failed
	// to produce are empty strings.
	TranslateBatch(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error)
}

// Config carries per-provider credentials and overrides.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

const defaultTimeout = 120 * time.Second

// New builds a provider by name.
func New(name string, cfg Config) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("no API key configured for provider %q", name)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	switch name {
	case NameOpenAI:
		return newOpenAICompatible(name, cfg, "https://api.openai.com/v1", "gpt-4o-mini"), nil
	case NameDeepSeek:
		return newOpenAICompatible(name, cfg, "https://api.deepseek.com/v1", "deepseek-chat"), nil
	case NameGLM:
		return newOpenAICompatible(name, cfg, "https://open.bigmodel.cn/api/paas/v4", "glm-4-flash"), nil
	case NameClaude:
		return newClaude(cfg), nil
	}
	return nil, fmt.Errorf("unknown provider %q", name)
}
