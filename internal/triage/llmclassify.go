package triage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/linnemanlabs/go-core/log"

	"github.com/intellidoctor/medgemma-triage/internal/llm"
	"github.com/intellidoctor/medgemma-triage/internal/parse"
)

const (
	classifyMaxTokens   = 1024
	classifyTemperature = 0.1
)

// ParseSpec is the extraction spec for classification responses: the
// category enum with Urgent as the conservative default.
var ParseSpec = parse.Spec{
	EnumField: "category",
	Enum:      []string{string(Critical), string(VeryUrgent), string(Urgent), string(Standard), string(NonUrgent)},
	Default:   string(Urgent),
}

// ModelClassifier classifies records with an LLM provider, falling back to
// a safe degraded result when the provider or its output lets us down.
type ModelClassifier struct {
	Provider llm.Provider
	Log      log.Logger
}

// modelOutput is the JSON shape we ask the model for.
type modelOutput struct {
	Reasoning      string   `json:"reasoning"`
	Discriminators []string `json:"discriminators"`
}

// Classify builds the Manchester prompt from the record and classifies it
// with the provider. Provider failures do not propagate: triage must always
// produce a disposition, so errors collapse into an Urgent result with zero
// confidence and the Degraded flag set.
func (c *ModelClassifier) Classify(ctx context.Context, r *PatientRecord, lang string) Result {
	resp, err := c.Provider.GenerateText(ctx, &llm.GenerateRequest{
		Prompt:       classifyPrompt(r, lang),
		SystemPrompt: classifySystemPrompt,
		MaxTokens:    classifyMaxTokens,
		Temperature:  classifyTemperature,
	})
	if err != nil {
		c.Log.Error(ctx, err, "model classification failed, returning degraded fallback")
		lvl := Levels[Urgent]
		return Result{
			Category:       Urgent,
			Level:          lvl.Label,
			MaxWaitMinutes: lvl.MaxWaitMinutes,
			Rationale:      fmt.Sprintf("Model classification unavailable (%v); defaulting to urgent pending clinical review.", err),
			Confidence:     0,
			Degraded:       true,
		}
	}

	out := parse.Run(resp.Text, ParseSpec)
	cat, _ := ParseCategory(out.Value)
	lvl := Levels[cat]
	res := Result{
		Category:       cat,
		Level:          lvl.Label,
		MaxWaitMinutes: lvl.MaxWaitMinutes,
		Confidence:     out.Confidence,
		Degraded:       out.Degraded,
		RawResponse:    resp.Text,
	}

	if out.Object != nil {
		var mo modelOutput
		if err := json.Unmarshal(out.Object, &mo); err == nil {
			res.Rationale = mo.Reasoning
			res.Discriminators = mo.Discriminators
		}
	}
	if res.Rationale == "" {
		res.Rationale = "Category extracted from unstructured model output."
	}
	return res
}
