// Package llm defines the provider-agnostic interface to a text and vision
// model backend. Concrete clients live in the subpackages; the engine only
// ever sees this interface and never constructs a provider itself.
package llm

import "context"

// Provider is the interface any model backend must implement.
type Provider interface {
	// GenerateText runs one text completion and returns the raw model
	// output. Callers own all parsing; the provider does not interpret
	// the response.
	GenerateText(ctx context.Context, req *GenerateRequest) (*Response, error)

	// AnalyzeImage runs one vision completion over a single image.
	AnalyzeImage(ctx context.Context, req *ImageRequest) (*Response, error)
}

// GenerateRequest is the input to a text completion.
type GenerateRequest struct {
	Prompt       string
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
}

// ImageRequest is the input to a vision completion.
type ImageRequest struct {
	Prompt       string
	SystemPrompt string
	MaxTokens    int
	Temperature  float64

	// Image is the raw image bytes; MIMEType describes their encoding,
	// e.g. "image/jpeg".
	Image    []byte
	MIMEType string
}

// Response is the raw output of a completion.
type Response struct {
	Text  string
	Model string
	Usage Usage
}

// Usage reports token consumption for one call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}
