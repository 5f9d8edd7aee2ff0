package llm

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/intellidoctor/medgemma-triage/internal/llm")

// CallHook observes one provider call after it finishes.
type CallHook func(operation string, inputTokens, outputTokens int, seconds float64, err error)

// Instrument wraps a provider with OTel spans and the given hook. A nil
// hook disables metric observation but keeps the spans.
func Instrument(inner Provider, hook CallHook) Provider {
	return &instrumented{inner: inner, hook: hook}
}

type instrumented struct {
	inner Provider
	hook  CallHook
}

func (p *instrumented) GenerateText(ctx context.Context, req *GenerateRequest) (*Response, error) {
	ctx, span := tracer.Start(ctx, "llm.generate", trace.WithAttributes(
		attribute.String("gen_ai.operation.name", "llm.generate"),
		attribute.Int("gen_ai.request.max_tokens", req.MaxTokens),
	))
	defer span.End()

	start := time.Now()
	resp, err := p.inner.GenerateText(ctx, req)
	p.observe(span, "generate", resp, err, time.Since(start))
	return resp, err
}

func (p *instrumented) AnalyzeImage(ctx context.Context, req *ImageRequest) (*Response, error) {
	ctx, span := tracer.Start(ctx, "llm.analyze_image", trace.WithAttributes(
		attribute.String("gen_ai.operation.name", "llm.analyze_image"),
		attribute.String("medtriage.image.mime_type", req.MIMEType),
		attribute.Int("medtriage.image.bytes", len(req.Image)),
	))
	defer span.End()

	start := time.Now()
	resp, err := p.inner.AnalyzeImage(ctx, req)
	p.observe(span, "analyze_image", resp, err, time.Since(start))
	return resp, err
}

func (p *instrumented) observe(span trace.Span, operation string, resp *Response, err error, elapsed time.Duration) {
	var in, out int
	if resp != nil {
		in, out = resp.Usage.InputTokens, resp.Usage.OutputTokens
		span.SetAttributes(
			attribute.String("gen_ai.response.model", resp.Model),
			attribute.Int("gen_ai.usage.input_tokens", in),
			attribute.Int("gen_ai.usage.output_tokens", out),
		)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if p.hook != nil {
		p.hook(operation, in, out, elapsed.Seconds(), err)
	}
}
