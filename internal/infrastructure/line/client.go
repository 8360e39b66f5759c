package line

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

const defaultBaseURL = "https://api.line.me"

// Client sends push and reply messages through the LINE Messaging API.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

var _ ports.Messenger = (*Client)(nil)

// NewClient builds a client from configuration.
func NewClient(cfg config.LineConfig, httpClient *http.Client) *Client {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{
		baseURL: baseURL,
		token:   cfg.ChannelToken,
		client:  httpClient,
	}
}

// PushPrompt sends the interactive approval bubble to the operator channel.
func (c *Client) PushPrompt(ctx context.Context, channelID string, prompt ports.ReviewPrompt) error {
	payload := map[string]any{
		"to":       channelID,
		"messages": []any{flexMessage(prompt)},
	}
	return c.post(ctx, "/v2/bot/message/push", payload)
}

// Reply answers an inbound callback through its reply token.
func (c *Client) Reply(ctx context.Context, replyToken, text string) error {
	payload := map[string]any{
		"replyToken": replyToken,
		"messages": []any{
			map[string]string{"type": "text", "text": text},
		},
	}
	return c.post(ctx, "/v2/bot/message/reply", payload)
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	if c.token == "" {
		return fmt.Errorf("line client misconfigured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal line payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send line message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("line error %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	return nil
}
