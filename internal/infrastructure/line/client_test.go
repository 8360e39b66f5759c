package line

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ReviewRelay/internal/config"
	"ReviewRelay/internal/ports"
)

var testPrompt = ports.ReviewPrompt{
	ReviewID:  "r1",
	Rating:    4,
	Author:    "Alice",
	Comment:   "Nice place",
	DraftText: "Thank you!",
}

func TestPushPrompt(t *testing.T) {
	t.Parallel()

	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/bot/message/push", r.URL.Path)
		assert.Equal(t, "Bearer channel-token", r.Header.Get("Authorization"))
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(config.LineConfig{
		BaseURL:      server.URL,
		ChannelToken: "channel-token",
	}, server.Client())

	err := client.PushPrompt(context.Background(), "U-operator", testPrompt)
	require.NoError(t, err)

	var payload struct {
		To       string            `json:"to"`
		Messages []json.RawMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "U-operator", payload.To)
	require.Len(t, payload.Messages, 1)

	// The bubble carries the draft and one postback button per action, each
	// holding "action:reviewID" so the callback resolves the review.
	message := string(payload.Messages[0])
	assert.Contains(t, message, `"flex"`)
	assert.Contains(t, message, "Thank you!")
	assert.Contains(t, message, "Nice place")
	assert.Contains(t, message, `"approve:r1"`)
	assert.Contains(t, message, `"edit:r1"`)
	assert.Contains(t, message, `"dismiss:r1"`)
}

func TestReply(t *testing.T) {
	t.Parallel()

	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/bot/message/reply", r.URL.Path)
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(config.LineConfig{
		BaseURL:      server.URL,
		ChannelToken: "channel-token",
	}, server.Client())

	err := client.Reply(context.Background(), "tok-1", "Correction saved.")
	require.NoError(t, err)

	var payload struct {
		ReplyToken string `json:"replyToken"`
		Messages   []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "tok-1", payload.ReplyToken)
	require.Len(t, payload.Messages, 1)
	assert.Equal(t, "text", payload.Messages[0].Type)
	assert.Equal(t, "Correction saved.", payload.Messages[0].Text)
}

func TestPushPromptAPIError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message": "invalid channel"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(config.LineConfig{
		BaseURL:      server.URL,
		ChannelToken: "channel-token",
	}, server.Client())

	err := client.PushPrompt(context.Background(), "U-bad", testPrompt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid channel")
}

func TestMissingTokenFailsFast(t *testing.T) {
	t.Parallel()

	client := NewClient(config.LineConfig{BaseURL: "http://unused"}, nil)
	assert.Error(t, client.Reply(context.Background(), "tok", "text"))
}

func TestFlexMessageStructure(t *testing.T) {
	t.Parallel()

	message := flexMessage(testPrompt)
	assert.Equal(t, "flex", message["type"])
	assert.NotEmpty(t, message["altText"])

	bubble := message["contents"].(map[string]any)
	body := bubble["body"].(map[string]any)
	contents := body["contents"].([]any)

	var buttons []string
	for _, node := range contents {
		m := node.(map[string]any)
		if m["type"] != "button" {
			continue
		}
		action := m["action"].(map[string]any)
		buttons = append(buttons, action["data"].(string))
	}
	assert.Equal(t, []string{"approve:r1", "edit:r1", "dismiss:r1"}, buttons)
}
