package claude

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/intellidoctor/medgemma-triage/internal/llm"
)

const messageReply = `{
	"id": "msg_01",
	"type": "message",
	"role": "assistant",
	"model": "claude-sonnet-4-5",
	"content": [{"type": "text", "text": "{\"category\": \"STANDARD\"}"}],
	"stop_reason": "end_turn",
	"usage": {"input_tokens": 55, "output_tokens": 9}
}`

func newTestClient(t *testing.T, capture *map[string]any) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("path = %q, want /v1/messages", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(capture); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(messageReply))
	}))
	c := New("test-key", "claude-sonnet-4-5", option.WithBaseURL(srv.URL))
	return c, srv
}

func TestGenerateText(t *testing.T) {
	t.Parallel()

	var captured map[string]any
	c, srv := newTestClient(t, &captured)
	defer srv.Close()

	resp, err := c.GenerateText(context.Background(), &llm.GenerateRequest{
		Prompt:       "classify this patient",
		SystemPrompt: "you are a triage nurse",
		MaxTokens:    1024,
		Temperature:  0.1,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if resp.Text != `{"category": "STANDARD"}` {
		t.Errorf("text = %q", resp.Text)
	}
	if resp.Usage.InputTokens != 55 || resp.Usage.OutputTokens != 9 {
		t.Errorf("usage = %+v", resp.Usage)
	}
	if captured["model"] != "claude-sonnet-4-5" {
		t.Errorf("model = %v", captured["model"])
	}
	if captured["max_tokens"] != float64(1024) {
		t.Errorf("max_tokens = %v", captured["max_tokens"])
	}
	if captured["system"] == nil {
		t.Error("system prompt not sent")
	}
}

func TestAnalyzeImage(t *testing.T) {
	t.Parallel()

	var captured map[string]any
	c, srv := newTestClient(t, &captured)
	defer srv.Close()

	if _, err := c.AnalyzeImage(context.Background(), &llm.ImageRequest{
		Prompt:   "describe the image",
		Image:    []byte{0x89, 0x50},
		MIMEType: "image/png",
	}); err != nil {
		t.Fatalf("analyze: %v", err)
	}

	msgs, _ := captured["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("messages = %#v", captured["messages"])
	}
	msg, _ := msgs[0].(map[string]any)
	content, _ := msg["content"].([]any)
	if len(content) != 2 {
		t.Fatalf("content len = %d, want image then text", len(content))
	}
	img, _ := content[0].(map[string]any)
	if img["type"] != "image" {
		t.Errorf("first block type = %v, want image", img["type"])
	}
	src, _ := img["source"].(map[string]any)
	if src["media_type"] != "image/png" || src["type"] != "base64" {
		t.Errorf("image source = %#v", src)
	}
}

func TestGenerateText_APIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"type":"error","error":{"type":"overloaded_error","message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New("test-key", "claude-sonnet-4-5", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	if _, err := c.GenerateText(context.Background(), &llm.GenerateRequest{Prompt: "hi"}); err == nil {
		t.Fatal("expected error from API failure")
	}
}
