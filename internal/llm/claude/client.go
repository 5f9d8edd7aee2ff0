// Package claude implements llm.Provider on the Anthropic Messages API.
// It exists as the fallback backend for deployments without a MedGemma
// endpoint.
package claude

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/intellidoctor/medgemma-triage/internal/llm"
)

// Client implements llm.Provider for the Claude API.
type Client struct {
	client anthropic.Client
	model  string
}

// New creates a Claude client. Extra request options are passed through to
// the SDK, which lets tests point the client at a local server.
func New(apiKey, model string, opts ...option.RequestOption) *Client {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Client{
		client: anthropic.NewClient(opts...),
		model:  model,
	}
}

// GenerateText implements llm.Provider.
func (c *Client) GenerateText(ctx context.Context, req *llm.GenerateRequest) (*llm.Response, error) {
	return c.send(ctx, req.SystemPrompt, req.MaxTokens, req.Temperature,
		anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)))
}

// AnalyzeImage implements llm.Provider.
func (c *Client) AnalyzeImage(ctx context.Context, req *llm.ImageRequest) (*llm.Response, error) {
	encoded := base64.StdEncoding.EncodeToString(req.Image)
	return c.send(ctx, req.SystemPrompt, req.MaxTokens, req.Temperature,
		anthropic.NewUserMessage(
			anthropic.NewImageBlockBase64(req.MIMEType, encoded),
			anthropic.NewTextBlock(req.Prompt),
		))
}

func (c *Client) send(ctx context.Context, system string, maxTokens int, temperature float64, msg anthropic.MessageParam) (*llm.Response, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(temperature),
		Messages:    []anthropic.MessageParam{msg},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("claude api: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &llm.Response{
		Text:  text.String(),
		Model: string(resp.Model),
		Usage: llm.Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}
