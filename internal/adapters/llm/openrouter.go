package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/vantage-intel/vantage/internal/adapters/config"
)

const openRouterAPIURL = "https://openrouter.ai/api/v1/chat/completions"

// OpenRouterProvider talks to the OpenRouter chat completions API.
// Configured as the fallback behind Gemini.
type OpenRouterProvider struct {
	key    string
	model  string
	client *http.Client
}

// NewOpenRouterProvider creates the OpenRouter backend from config.
func NewOpenRouterProvider(cfg *config.LLMConfig) *OpenRouterProvider {
	return &OpenRouterProvider{
		key:    cfg.OpenRouterAPIKey,
		model:  cfg.OpenRouterModel,
		client: &http.Client{Timeout: cfg.RequestTimeout},
	}
}

func (o *OpenRouterProvider) Name() string {
	return "openrouter"
}

func (o *OpenRouterProvider) Keys() []string {
	return []string{o.key}
}

func (o *OpenRouterProvider) Models() []string {
	return []string{o.model}
}

// Call issues one chat completion request.
func (o *OpenRouterProvider) Call(ctx context.Context, key, model string, req Request) (string, error) {
	reqBody := map[string]interface{}{
		"model": model,
		"messages": []map[string]string{
			{"role": "user", "content": req.Prompt},
		},
		"temperature": req.Temperature,
		"max_tokens":  req.MaxTokens,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", openRouterAPIURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+key)
	httpReq.Header.Set("HTTP-Referer", "https://vantage-intel.dev")
	httpReq.Header.Set("X-Title", "Vantage")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &apiError{provider: "openrouter", status: resp.StatusCode, body: string(body)}
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("empty response from openrouter")
	}

	return result.Choices[0].Message.Content, nil
}
