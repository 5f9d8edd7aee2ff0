// Package medgemma is an OpenAI-compatible chat-completions client for
// MedGemma deployed on a Vertex AI dedicated endpoint.
package medgemma

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/intellidoctor/medgemma-triage/internal/llm"
)

// Client implements llm.Provider against an OpenAI-style
// /v1/chat/completions endpoint.
type Client struct {
	baseURL    string
	token      string
	model      string
	httpClient *http.Client
}

// New creates a MedGemma client. baseURL is the endpoint root without the
// /chat/completions suffix; token is the bearer token for the endpoint.
func New(baseURL, token, model string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		model:   model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// message is one chat-completions message. Content is a string for text
// turns and a []contentPart for multimodal turns.
type message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type request struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type response struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// GenerateText implements llm.Provider.
func (c *Client) GenerateText(ctx context.Context, req *llm.GenerateRequest) (*llm.Response, error) {
	msgs := systemAnd(req.SystemPrompt, message{Role: "user", Content: req.Prompt})
	return c.send(ctx, &request{
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
}

// AnalyzeImage implements llm.Provider. The image travels inline as a
// base64 data URL, the only transport the dedicated endpoint accepts.
func (c *Client) AnalyzeImage(ctx context.Context, req *llm.ImageRequest) (*llm.Response, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s",
		req.MIMEType, base64.StdEncoding.EncodeToString(req.Image))
	user := message{Role: "user", Content: []contentPart{
		{Type: "text", Text: req.Prompt},
		{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
	}}
	return c.send(ctx, &request{
		Messages:    systemAnd(req.SystemPrompt, user),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
}

func systemAnd(system string, user message) []message {
	var msgs []message
	if system != "" {
		msgs = append(msgs, message{Role: "system", Content: system})
	}
	return append(msgs, user)
}

func (c *Client) send(ctx context.Context, req *request) (*llm.Response, error) {
	req.Model = c.model

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("medgemma api error %d: %s", resp.StatusCode, string(respBody))
	}

	var out response
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("medgemma response has no choices")
	}

	return &llm.Response{
		Text:  out.Choices[0].Message.Content,
		Model: out.Model,
		Usage: llm.Usage{
			InputTokens:  out.Usage.PromptTokens,
			OutputTokens: out.Usage.CompletionTokens,
		},
	}, nil
}
