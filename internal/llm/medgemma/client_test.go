package medgemma

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/intellidoctor/medgemma-triage/internal/llm"
)

func completionsHandler(t *testing.T, capture *request, reply string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(capture); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(reply))
	}
}

func TestGenerateText(t *testing.T) {
	t.Parallel()

	var captured request
	srv := httptest.NewServer(completionsHandler(t, &captured,
		`{"model":"medgemma-27b","choices":[{"message":{"content":"{\"category\":\"URGENT\"}"}}],"usage":{"prompt_tokens":42,"completion_tokens":7}}`))
	defer srv.Close()

	c := New(srv.URL, "test-token", "medgemma-27b")
	resp, err := c.GenerateText(context.Background(), &llm.GenerateRequest{
		Prompt:       "classify this",
		SystemPrompt: "you are a triage nurse",
		MaxTokens:    1024,
		Temperature:  0.1,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if resp.Text != `{"category":"URGENT"}` {
		t.Errorf("text = %q", resp.Text)
	}
	if resp.Usage.InputTokens != 42 || resp.Usage.OutputTokens != 7 {
		t.Errorf("usage = %+v", resp.Usage)
	}
	if captured.Model != "medgemma-27b" {
		t.Errorf("model = %q", captured.Model)
	}
	if captured.MaxTokens != 1024 || captured.Temperature != 0.1 {
		t.Errorf("params = %d/%v", captured.MaxTokens, captured.Temperature)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" {
		t.Fatalf("messages = %+v, want system then user", captured.Messages)
	}
}

func TestGenerateText_NoSystemPrompt(t *testing.T) {
	t.Parallel()

	var captured request
	srv := httptest.NewServer(completionsHandler(t, &captured,
		`{"choices":[{"message":{"content":"ok"}}]}`))
	defer srv.Close()

	c := New(srv.URL, "test-token", "medgemma-27b")
	if _, err := c.GenerateText(context.Background(), &llm.GenerateRequest{Prompt: "hi"}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(captured.Messages) != 1 || captured.Messages[0].Role != "user" {
		t.Errorf("messages = %+v, want single user message", captured.Messages)
	}
}

func TestAnalyzeImage_DataURL(t *testing.T) {
	t.Parallel()

	var captured request
	srv := httptest.NewServer(completionsHandler(t, &captured,
		`{"choices":[{"message":{"content":"{\"severity\":\"MILD\"}"}}]}`))
	defer srv.Close()

	c := New(srv.URL, "test-token", "medgemma-27b")
	resp, err := c.AnalyzeImage(context.Background(), &llm.ImageRequest{
		Prompt:   "describe the image",
		Image:    []byte{0xFF, 0xD8, 0xFF},
		MIMEType: "image/jpeg",
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if resp.Text != `{"severity":"MILD"}` {
		t.Errorf("text = %q", resp.Text)
	}

	user := captured.Messages[len(captured.Messages)-1]
	parts, ok := user.Content.([]any)
	if !ok || len(parts) != 2 {
		t.Fatalf("user content = %#v, want two parts", user.Content)
	}
	img, _ := parts[1].(map[string]any)
	iu, _ := img["image_url"].(map[string]any)
	url, _ := iu["url"].(string)
	if !strings.HasPrefix(url, "data:image/jpeg;base64,") {
		t.Errorf("image url = %q, want data URL", url)
	}
}

func TestSend_ErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(srv.URL, "test-token", "medgemma-27b")
	_, err := c.GenerateText(context.Background(), &llm.GenerateRequest{Prompt: "hi"})
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("err = %v, want status in error", err)
	}
}

func TestSend_NoChoices(t *testing.T) {
	t.Parallel()

	var captured request
	srv := httptest.NewServer(completionsHandler(t, &captured, `{"choices":[]}`))
	defer srv.Close()

	c := New(srv.URL, "test-token", "medgemma-27b")
	if _, err := c.GenerateText(context.Background(), &llm.GenerateRequest{Prompt: "hi"}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}
