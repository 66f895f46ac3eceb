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

// openAICompatible speaks the OpenAI chat completions protocol. OpenAI,
// DeepSeek and GLM differ only in base URL and default model.
type openAICompatible struct {
	name       string
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

func newOpenAICompatible(name string, cfg Config, defaultBaseURL, defaultModel string) *openAICompatible {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &openAICompatible{
		name:    name,
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (p *openAICompatible) Name() string { return p.name }

func (p *openAICompatible) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	return p.complete(ctx, systemPrompt(sourceLang, targetLang), text)
}

func (p *openAICompatible) TranslateBatch(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	response, err := p.complete(ctx, systemPrompt(sourceLang, targetLang), batchUserPrompt(texts))
	if err != nil {
		return nil, err
	}
	return ParseBatchResponse(response, len(texts)), nil
}

func (p *openAICompatible) complete(ctx context.Context, system, user string) (string, error) {
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

func (p *openAICompatible) completeOnce(ctx context.Context, system, user string) (string, bool, error) {
	request := chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.3,
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return "", false, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("%s request failed: %w", p.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("failed to read response body: %w", err)
	}

	if retryableStatus(resp.StatusCode) {
		return "", true, fmt.Errorf("%s API request failed with status %d: %s", p.name, resp.StatusCode, string(body))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", false, fmt.Errorf("failed to parse %s response: %w", p.name, err)
	}

	if parsed.Error != nil && parsed.Error.Message != "" {
		return "", false, fmt.Errorf("%s API error: %s", p.name, parsed.Error.Message)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", false, fmt.Errorf("%s API request failed with status %d: %s", p.name, resp.StatusCode, string(body))
	}
	if len(parsed.Choices) == 0 {
		return "", false, fmt.Errorf("no choices in %s response", p.name)
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), false, nil
}

var _ Provider = (*openAICompatible)(nil)

// maxAttempts bounds retries on transient failures such as network
// errors, rate limits and upstream 5xx responses.
const maxAttempts = 3

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func retryDelay(attempt int) time.Duration {
	return time.Duration(attempt) * 2 * time.Second
}
