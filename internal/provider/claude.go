package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	claudeBaseURL      = "https://api.anthropic.com/v1"
	claudeDefaultModel = "claude-3-5-haiku-latest"
	claudeVersion      = "2023-06-01"
	claudeMaxTokens    = 4096
)

// claude speaks the Anthropic messages protocol, which differs from
// chat completions in auth headers, the system field and the response
// shape.
type claude struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

func newClaude(cfg Config) *claude {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = claudeBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = claudeDefaultModel
	}
	return &claude{
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type claudeRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Messages  []chatMessage `json:"messages"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *claude) Name() string { return NameClaude }

func (p *claude) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	return p.complete(ctx, systemPrompt(sourceLang, targetLang), text)
}

func (p *claude) TranslateBatch(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	response, err := p.complete(ctx, systemPrompt(sourceLang, targetLang), batchUserPrompt(texts))
	if err != nil {
		return nil, err
	}
	return ParseBatchResponse(response, len(texts)), nil
}

func (p *claude) complete(ctx context.Context, system, user string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(retryDelay(attempt)):
			}
		}
		text, retryable, err := p.completeOnce(ctx, system, user)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return "", lastErr
}

func (p *claude) completeOnce(ctx context.Context, system, user string) (string, bool, error) {
	request := claudeRequest{
		Model:     p.model,
		MaxTokens: claudeMaxTokens,
		System:    system,
		Messages: []chatMessage{
			{Role: "user", Content: user},
		},
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return "", false, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", claudeVersion)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("claude request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("failed to read response body: %w", err)
	}

	if retryableStatus(resp.StatusCode) {
		return "", true, fmt.Errorf("claude API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var parsed claudeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", false, fmt.Errorf("failed to parse claude response: %w", err)
	}

	if parsed.Error != nil && parsed.Error.Message != "" {
		return "", false, fmt.Errorf("claude API error: %s", parsed.Error.Message)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", false, fmt.Errorf("claude API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", false, fmt.Errorf("no text content in claude response")
	}

	return strings.TrimSpace(text.String()), false, nil
}

var _ Provider = (*claude)(nil)
