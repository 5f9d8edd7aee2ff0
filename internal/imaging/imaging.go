// Package imaging analyzes medical images with a vision-capable provider
// and condenses the findings into a summary the triage record can carry.
package imaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/linnemanlabs/go-core/log"

	"github.com/intellidoctor/medgemma-triage/internal/llm"
	"github.com/intellidoctor/medgemma-triage/internal/parse"
)

// Severity is the 5-level image finding scale.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeveritySevere   Severity = "SEVERE"
	SeverityModerate Severity = "MODERATE"
	SeverityMild     Severity = "MILD"
	SeverityNormal   Severity = "NORMAL"
)

// ParseSpec extracts the severity token; unreadable output lands on the
// middle of the scale rather than either extreme.
var ParseSpec = parse.Spec{
	EnumField: "severity",
	Enum: []string{
		string(SeverityCritical), string(SeveritySevere),
		string(SeverityModerate), string(SeverityMild), string(SeverityNormal),
	},
	Default: string(SeverityModerate),
}

// Findings is the structured result of one image analysis.
type Findings struct {
	Severity            Severity `json:"severity"`
	Modality            string   `json:"modality"`
	Description         string   `json:"description"`
	SuspectedConditions []string `json:"suspected_conditions"`
	KeyObservations     []string `json:"key_observations"`
	RequiresSpecialist  bool     `json:"requires_specialist"`

	// Degraded marks findings whose severity came from a fallback tier.
	Degraded bool `json:"degraded"`

	RawResponse string `json:"raw_response,omitempty"`
}

// TriageSummary renders the findings as the one-line summary stored on the
// patient record's image findings field.
func (f *Findings) TriageSummary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", f.Severity)
	if f.Modality != "" {
		fmt.Fprintf(&b, " %s:", f.Modality)
	}
	if f.Description != "" {
		b.WriteString(" ")
		b.WriteString(f.Description)
	}
	if len(f.SuspectedConditions) > 0 {
		fmt.Fprintf(&b, " Suspected: %s.", strings.Join(f.SuspectedConditions, ", "))
	}
	if f.RequiresSpecialist {
		b.WriteString(" Specialist review required.")
	}
	return b.String()
}

const analyzeSystemPrompt = `You are a radiology assistant reviewing a single medical image for emergency triage.
Respond with a single JSON object and nothing else:
{"severity": "CRITICAL|SEVERE|MODERATE|MILD|NORMAL",
 "modality": "...", "description": "...",
 "suspected_conditions": ["..."], "key_observations": ["..."],
 "requires_specialist": false}`

const (
	analyzeMaxTokens   = 1024
	analyzeTemperature = 0.1
)

// Analyzer runs image analyses against an injected provider.
type Analyzer struct {
	Provider llm.Provider
	Log      log.Logger
}

// Analyze sends the image to the provider and extracts structured findings.
// Transport failures propagate; unparseable output degrades to moderate
// severity with the raw text as the description.
func (a *Analyzer) Analyze(ctx context.Context, image []byte, mimeType string) (*Findings, error) {
	resp, err := a.Provider.AnalyzeImage(ctx, &llm.ImageRequest{
		Prompt:       "Describe the image findings for emergency triage.",
		SystemPrompt: analyzeSystemPrompt,
		MaxTokens:    analyzeMaxTokens,
		Temperature:  analyzeTemperature,
		Image:        image,
		MIMEType:     mimeType,
	})
	if err != nil {
		return nil, fmt.Errorf("image analysis: %w", err)
	}

	out := parse.Run(resp.Text, ParseSpec)
	f := &Findings{
		Severity:    Severity(out.Value),
		Degraded:    out.Degraded,
		RawResponse: resp.Text,
	}
	if out.Object != nil {
		var decoded struct {
			Modality            string   `json:"modality"`
			Description         string   `json:"description"`
			SuspectedConditions []string `json:"suspected_conditions"`
			KeyObservations     []string `json:"key_observations"`
			RequiresSpecialist  bool     `json:"requires_specialist"`
		}
		if err := json.Unmarshal(out.Object, &decoded); err == nil {
			f.Modality = decoded.Modality
			f.Description = decoded.Description
			f.SuspectedConditions = decoded.SuspectedConditions
			f.KeyObservations = decoded.KeyObservations
			f.RequiresSpecialist = decoded.RequiresSpecialist
		}
	}
	if f.Description == "" {
		f.Description = strings.TrimSpace(resp.Text)
	}
	a.Log.Info(ctx, "image analyzed",
		"severity", string(f.Severity), "degraded", f.Degraded)
	return f, nil
}
