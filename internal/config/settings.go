package config

import (
	"strconv"
	"strings"

	"github.com/subautotrans/subautotrans/internal/provider"
)

// Output formats. "mkv" means the translated subtitle is muxed into the
// container; "srt" and "ass" produce a sidecar file next to the video.
const (
	OutputMKV = "mkv"
	OutputSRT = "srt"
	OutputASS = "ass"
)

// Settings is the runtime configuration persisted in the database and
// edited through the API. The zero value is not useful; use
// DefaultSettings as the base.
type Settings struct {
	DefaultProvider       string `json:"default_provider"`
	DefaultTargetLanguage string `json:"default_target_language"`
	MaxConcurrentTasks    int    `json:"max_concurrent_tasks"`
	BilingualOutput       bool   `json:"bilingual_output"`
	OutputFormat          string `json:"output_format"`
	OverwriteMKV          bool   `json:"overwrite_mkv"`

	OpenAIAPIKey   string `json:"openai_api_key"`
	OpenAIModel    string `json:"openai_model"`
	OpenAIBaseURL  string `json:"openai_base_url"`
	ClaudeAPIKey   string `json:"claude_api_key"`
	ClaudeModel    string `json:"claude_model"`
	DeepSeekAPIKey string `json:"deepseek_api_key"`
	DeepSeekModel  string `json:"deepseek_model"`
	GLMAPIKey      string `json:"glm_api_key"`
	GLMModel       string `json:"glm_model"`
}

// DefaultSettings returns the settings used before anything is saved.
// Environment API keys seed the provider credentials.
func DefaultSettings(cfg *Config) Settings {
	s := Settings{
		DefaultProvider:       provider.NameOpenAI,
		DefaultTargetLanguage: "Chinese",
		MaxConcurrentTasks:    1,
		BilingualOutput:       true,
		OutputFormat:          OutputSRT,
	}
	if cfg != nil {
		s.OpenAIAPIKey = cfg.OpenAIAPIKey
		s.ClaudeAPIKey = cfg.ClaudeAPIKey
		s.DeepSeekAPIKey = cfg.DeepSeekAPIKey
		s.GLMAPIKey = cfg.GLMAPIKey
	}
	return s
}

// Normalize enforces the output policy invariants: overwrite implies
// the MKV format, and choosing a sidecar format turns overwrite off.
// Unknown formats fall back to srt, unknown providers to openai.
// Applied on both save and load so stale rows cannot resurface an
// inconsistent combination.
func (s *Settings) Normalize() {
	switch s.OutputFormat {
	case OutputMKV, OutputSRT, OutputASS:
	default:
		s.OutputFormat = OutputSRT
	}

	if s.OverwriteMKV {
		s.OutputFormat = OutputMKV
	}

	if !provider.Known(s.DefaultProvider) {
		s.DefaultProvider = provider.NameOpenAI
	}
	if s.MaxConcurrentTasks < 1 {
		s.MaxConcurrentTasks = 1
	}
}

// ProviderConfig assembles the credentials for one provider.
func (s *Settings) ProviderConfig(name string) provider.Config {
	switch name {
	case provider.NameClaude:
		return provider.Config{APIKey: s.ClaudeAPIKey, Model: s.ClaudeModel}
	case provider.NameDeepSeek:
		return provider.Config{APIKey: s.DeepSeekAPIKey, Model: s.DeepSeekModel}
	case provider.NameGLM:
		return provider.Config{APIKey: s.GLMAPIKey, Model: s.GLMModel}
	default:
		return provider.Config{APIKey: s.OpenAIAPIKey, Model: s.OpenAIModel, BaseURL: s.OpenAIBaseURL}
	}
}

// Masked returns a copy safe to expose through the API: API keys keep
// only their last four characters.
func (s Settings) Masked() Settings {
	s.OpenAIAPIKey = maskKey(s.OpenAIAPIKey)
	s.ClaudeAPIKey = maskKey(s.ClaudeAPIKey)
	s.DeepSeekAPIKey = maskKey(s.DeepSeekAPIKey)
	s.GLMAPIKey = maskKey(s.GLMAPIKey)
	return s
}

func maskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}

// Storage keys for the app_settings table. The set is fixed; unknown
// keys in the table are ignored on load.
const (
	keyDefaultProvider = "default_provider"
	keyDefaultLanguage = "default_target_language"
	keyMaxConcurrent   = "max_concurrent_tasks"
	keyBilingual       = "bilingual_output"
	keyOutputFormat    = "output_format"
	keyOverwriteMKV    = "overwrite_mkv"
	keyOpenAIAPIKey    = "openai_api_key"
	keyOpenAIModel     = "openai_model"
	keyOpenAIBaseURL   = "openai_base_url"
	keyClaudeAPIKey    = "claude_api_key"
	keyClaudeModel     = "claude_model"
	keyDeepSeekAPIKey  = "deepseek_api_key"
	keyDeepSeekModel   = "deepseek_model"
	keyGLMAPIKey       = "glm_api_key"
	keyGLMModel        = "glm_model"
)

// ToMap flattens settings into storage rows. Normalize is applied
// first so the stored state is always consistent.
func (s Settings) ToMap() map[string]string {
	s.Normalize()
	return map[string]string{
		keyDefaultProvider: s.DefaultProvider,
		keyDefaultLanguage: s.DefaultTargetLanguage,
		keyMaxConcurrent:   strconv.Itoa(s.MaxConcurrentTasks),
		keyBilingual:       strconv.FormatBool(s.BilingualOutput),
		keyOutputFormat:    s.OutputFormat,
		keyOverwriteMKV:    strconv.FormatBool(s.OverwriteMKV),
		keyOpenAIAPIKey:    s.OpenAIAPIKey,
		keyOpenAIModel:     s.OpenAIModel,
		keyOpenAIBaseURL:   s.OpenAIBaseURL,
		keyClaudeAPIKey:    s.ClaudeAPIKey,
		keyClaudeModel:     s.ClaudeModel,
		keyDeepSeekAPIKey:  s.DeepSeekAPIKey,
		keyDeepSeekModel:   s.DeepSeekModel,
		keyGLMAPIKey:       s.GLMAPIKey,
		keyGLMModel:        s.GLMModel,
	}
}

// SettingsFromMap rebuilds settings from storage rows on top of the
// defaults, then normalizes.
func SettingsFromMap(values map[string]string, defaults Settings) Settings {
	s := defaults
	for key, value := range values {
		switch key {
		case keyDefaultProvider:
			s.DefaultProvider = value
		case keyDefaultLanguage:
			s.DefaultTargetLanguage = value
		case keyMaxConcurrent:
			if n, err := strconv.Atoi(value); err == nil {
				s.MaxConcurrentTasks = n
			}
		case keyBilingual:
			s.BilingualOutput = parseBool(value, s.BilingualOutput)
		case keyOutputFormat:
			s.OutputFormat = value
		case keyOverwriteMKV:
			s.OverwriteMKV = parseBool(value, s.OverwriteMKV)
		case keyOpenAIAPIKey:
			s.OpenAIAPIKey = value
		case keyOpenAIModel:
			s.OpenAIModel = value
		case keyOpenAIBaseURL:
			s.OpenAIBaseURL = value
		case keyClaudeAPIKey:
			s.ClaudeAPIKey = value
		case keyClaudeModel:
			s.ClaudeModel = value
		case keyDeepSeekAPIKey:
			s.DeepSeekAPIKey = value
		case keyDeepSeekModel:
			s.DeepSeekModel = value
		case keyGLMAPIKey:
			s.GLMAPIKey = value
		case keyGLMModel:
			s.GLMModel = value
		}
	}
	s.Normalize()
	return s
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return fallback
}
