package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ReviewRelay/internal/config"
	"ReviewRelay/internal/ports"
)

// OpenAIClient implements ports.ReplyGenerator backed by OpenAI-compatible
// chat completion APIs.
type OpenAIClient struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ ports.ReplyGenerator = (*OpenAIClient)(nil)

// NewOpenAIClient builds a client from configuration.
func NewOpenAIClient(cfg config.OpenAIConfig) *OpenAIClient {
	return &OpenAIClient{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

// Generate runs one chat completion and returns the reply text plus the
// reported token usage.
func (c *OpenAIClient) Generate(ctx context.Context, req ports.GenerationRequest) (ports.GenerationResult, error) {
	if c == nil {
		return ports.GenerationResult{}, fmt.Errorf("openai client is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return ports.GenerationResult{}, fmt.Errorf("openai client misconfigured")
	}

	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": req.System},
			{"role": "user", "content": req.User},
		},
		"max_tokens":  req.MaxTokens,
		"temperature": req.Temperature,
	})
	if err != nil {
		return ports.GenerationResult{}, fmt.Errorf("marshal completion payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return ports.GenerationResult{}, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return ports.GenerationResult{}, fmt.Errorf("request completion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return ports.GenerationResult{}, fmt.Errorf("openai error %s: %s",
			resp.Status, strings.TrimSpace(string(detail)))
	}

	var payload struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			TotalTokens int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return ports.GenerationResult{}, fmt.Errorf("decode completion: %w", err)
	}

	if len(payload.Choices) == 0 {
		return ports.GenerationResult{}, fmt.Errorf("completion returned no choices")
	}
	text := strings.TrimSpace(payload.Choices[0].Message.Content)
	if text == "" {
		return ports.GenerationResult{}, fmt.Errorf("completion returned empty text")
	}

	return ports.GenerationResult{
		Text:      text,
		TokenCost: payload.Usage.TotalTokens,
	}, nil
}
