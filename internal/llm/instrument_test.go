package llm

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type fakeProvider struct {
	resp *Response
	err  error
}

func (f *fakeProvider) GenerateText(_ context.Context, _ *GenerateRequest) (*Response, error) {
	return f.resp, f.err
}

func (f *fakeProvider) AnalyzeImage(_ context.Context, _ *ImageRequest) (*Response, error) {
	return f.resp, f.err
}

var (
	exporterOnce   sync.Once
	sharedExporter *tracetest.InMemoryExporter
)

// setupExporter installs a single shared tracer provider for the whole test
// binary and resets the exporter between tests. The global OTel provider only
// delegates already-created tracers on the first SetTracerProvider call, so
// swapping providers per test would leave the package tracer bound to the
// first test's provider.
func setupExporter(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	exporterOnce.Do(func() {
		sharedExporter = tracetest.NewInMemoryExporter()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(sharedExporter))
		otel.SetTracerProvider(tp)
	})
	sharedExporter.Reset()

	return sharedExporter
}

func spanAttrs(s tracetest.SpanStub) map[string]any {
	attrs := make(map[string]any)
	for _, a := range s.Attributes {
		attrs[string(a.Key)] = a.Value.AsInterface()
	}
	return attrs
}

func TestInstrument_GenerateTextSpan(t *testing.T) {
	// Not parallel: swaps the global OTel tracer provider.

	exporter := setupExporter(t)

	var (
		hookOp      string
		hookIn      int
		hookOut     int
		hookErr     error
		hookSeconds float64
	)
	p := Instrument(&fakeProvider{
		resp: &Response{
			Text:  "ok",
			Model: "medgemma-27b-it",
			Usage: Usage{InputTokens: 120, OutputTokens: 40},
		},
	}, func(operation string, inputTokens, outputTokens int, seconds float64, err error) {
		hookOp = operation
		hookIn = inputTokens
		hookOut = outputTokens
		hookSeconds = seconds
		hookErr = err
	})

	resp, err := p.GenerateText(context.Background(), &GenerateRequest{Prompt: "hi", MaxTokens: 256})
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if resp.Text != "ok" {
		t.Errorf("Text = %q, want %q", resp.Text, "ok")
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	s := spans[0]
	if s.Name != "llm.generate" {
		t.Errorf("span name = %q, want %q", s.Name, "llm.generate")
	}

	attrs := spanAttrs(s)
	if v := attrs["gen_ai.operation.name"]; v != "llm.generate" {
		t.Errorf("gen_ai.operation.name = %v, want llm.generate", v)
	}
	if v := attrs["gen_ai.request.max_tokens"]; v != int64(256) {
		t.Errorf("gen_ai.request.max_tokens = %v, want 256", v)
	}
	if v := attrs["gen_ai.response.model"]; v != "medgemma-27b-it" {
		t.Errorf("gen_ai.response.model = %v, want medgemma-27b-it", v)
	}
	if v := attrs["gen_ai.usage.input_tokens"]; v != int64(120) {
		t.Errorf("gen_ai.usage.input_tokens = %v, want 120", v)
	}
	if v := attrs["gen_ai.usage.output_tokens"]; v != int64(40) {
		t.Errorf("gen_ai.usage.output_tokens = %v, want 40", v)
	}

	if hookOp != "generate" {
		t.Errorf("hook operation = %q, want %q", hookOp, "generate")
	}
	if hookIn != 120 || hookOut != 40 {
		t.Errorf("hook tokens = %d/%d, want 120/40", hookIn, hookOut)
	}
	if hookSeconds < 0 {
		t.Errorf("hook seconds = %f, want >= 0", hookSeconds)
	}
	if hookErr != nil {
		t.Errorf("hook err = %v, want nil", hookErr)
	}
}

func TestInstrument_AnalyzeImageSpan(t *testing.T) {
	// Not parallel: swaps the global OTel tracer provider.

	exporter := setupExporter(t)

	p := Instrument(&fakeProvider{
		resp: &Response{Text: "findings", Model: "medgemma-27b-it"},
	}, nil)

	_, err := p.AnalyzeImage(context.Background(), &ImageRequest{
		Image:    []byte{0xff, 0xd8, 0xff},
		MIMEType: "image/jpeg",
	})
	if err != nil {
		t.Fatalf("AnalyzeImage: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	s := spans[0]
	if s.Name != "llm.analyze_image" {
		t.Errorf("span name = %q, want %q", s.Name, "llm.analyze_image")
	}

	attrs := spanAttrs(s)
	if v := attrs["medtriage.image.mime_type"]; v != "image/jpeg" {
		t.Errorf("medtriage.image.mime_type = %v, want image/jpeg", v)
	}
	if v := attrs["medtriage.image.bytes"]; v != int64(3) {
		t.Errorf("medtriage.image.bytes = %v, want 3", v)
	}
}

func TestInstrument_ProviderErrorRecorded(t *testing.T) {
	// Not parallel: swaps the global OTel tracer provider.

	exporter := setupExporter(t)

	wantErr := errors.New("upstream unavailable")

	var hookErr error
	p := Instrument(&fakeProvider{err: wantErr}, func(_ string, _, _ int, _ float64, err error) {
		hookErr = err
	})

	_, err := p.GenerateText(context.Background(), &GenerateRequest{Prompt: "hi"})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if !errors.Is(hookErr, wantErr) {
		t.Errorf("hook err = %v, want %v", hookErr, wantErr)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	s := spans[0]
	if s.Status.Code.String() != "Error" {
		t.Errorf("span status = %v, want Error", s.Status.Code)
	}
	if len(s.Events) == 0 {
		t.Error("expected recorded error event on span")
	}
}
