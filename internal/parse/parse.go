// Package parse extracts structured data from free-form model output.
//
// Model responses are unreliable by nature: the JSON we asked for may be
// wrapped in markdown fences, preceded by prose, or missing entirely. Every
// extraction therefore runs through three ordered tiers (structured JSON,
// token/regex scan, conservative default) and the first tier that succeeds
// wins. Malformed input is an expected case, never an error.
package parse

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Tier identifies which extraction strategy produced an Outcome.
type Tier int

const (
	// TierStructured means a balanced JSON object was found and accepted.
	TierStructured Tier = iota

	// TierRegex means the structured tier failed and a token or question
	// fragment was recovered from the raw text.
	TierRegex

	// TierDefault means nothing could be recovered and the spec's
	// conservative default was returned.
	TierDefault
)

// Tier confidence values. Structured-tier confidence comes from the model
// itself (clamped, defaulting to confDefault when absent).
const (
	confDefault  = 0.7
	confRegex    = 0.5
	confFallback = 0.3
)

// Spec configures one extraction call site.
type Spec struct {
	// EnumField names the JSON field holding the classification value.
	// When set, the structured tier is rejected unless the field's value
	// case-insensitively matches a member of Enum. Empty means free-form
	// extraction (the regex tier then looks for a question fragment).
	EnumField string

	// Enum is the set of accepted classification tokens, uppercase.
	Enum []string

	// Default is the conservative classification returned by the default
	// tier. Unused for free-form specs.
	Default string
}

// Outcome is the result of one parser run. It never represents an error:
// the Degraded flag marks results produced by the default tier.
type Outcome struct {
	// Object holds the balanced JSON object accepted by the structured
	// tier, ready for the caller to decode into its own type. Nil for the
	// other tiers.
	Object json.RawMessage

	// Value is the extracted classification token: validated from the
	// object on tier 1, matched in the raw text on tier 2, or the spec
	// default on tier 3. Empty for free-form specs.
	Value string

	// Question is the first question fragment found in the raw text by
	// the regex tier of a free-form spec.
	Question string

	Confidence float64
	Tier       Tier
	Degraded   bool
}

var questionRe = regexp.MustCompile(`[^.!?\n]*\?`)

// Run applies the three extraction tiers to raw in order and returns the
// first success. It never fails; at worst it returns the spec's default
// with Degraded set.
func Run(raw string, spec Spec) Outcome {
	if out, ok := structuredTier(raw, spec); ok {
		return out
	}
	if out, ok := regexTier(raw, spec); ok {
		return out
	}
	return Outcome{
		Value:      spec.Default,
		Confidence: confFallback,
		Tier:       TierDefault,
		Degraded:   true,
	}
}

// structuredTier locates the first balanced JSON object in raw and accepts
// it if it decodes and, for enum specs, its classification field matches.
func structuredTier(raw string, spec Spec) (Outcome, bool) {
	obj, ok := JSONObject(raw)
	if !ok {
		return Outcome{}, false
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(obj), &fields); err != nil {
		return Outcome{}, false
	}

	out := Outcome{
		Object:     json.RawMessage(obj),
		Confidence: objectConfidence(fields),
		Tier:       TierStructured,
	}

	if spec.EnumField == "" {
		return out, true
	}

	var got string
	if err := json.Unmarshal(fields[spec.EnumField], &got); err != nil {
		return Outcome{}, false
	}
	got = strings.ToUpper(strings.TrimSpace(got))
	for _, want := range spec.Enum {
		if got == want {
			out.Value = want
			return out, true
		}
	}
	return Outcome{}, false
}

// regexTier scans the raw text for an enum token (enum specs) or the first
// question fragment (free-form specs).
func regexTier(raw string, spec Spec) (Outcome, bool) {
	if spec.EnumField == "" {
		q := questionRe.FindString(raw)
		if q = strings.TrimSpace(q); q == "" {
			return Outcome{}, false
		}
		return Outcome{Question: q, Confidence: confRegex, Tier: TierRegex}, true
	}

	// First match in document order wins, not the most severe token.
	re := regexp.MustCompile(`\b(?:` + strings.Join(spec.Enum, "|") + `)\b`)
	tok := re.FindString(strings.ToUpper(raw))
	if tok == "" {
		return Outcome{}, false
	}
	return Outcome{Value: tok, Confidence: confRegex, Tier: TierRegex}, true
}

// JSONObject returns the first balanced {...} substring of raw. It scans
// forward from the first '{' counting brace depth, which tolerates markdown
// fences, surrounding prose, and nested objects.
func JSONObject(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	for i := start; i < len(raw); i++ {
		switch raw[i] {
		case '{':
			depth++
		case '}':
			depth--
		}
		if depth == 0 {
			return raw[start : i+1], true
		}
	}
	return "", false
}

// objectConfidence reads a "confidence" field from the decoded object,
// clamped into [0,1]. Missing or unreadable values default to 0.7.
func objectConfidence(fields map[string]json.RawMessage) float64 {
	rawConf, ok := fields["confidence"]
	if !ok {
		return confDefault
	}
	var v float64
	if err := json.Unmarshal(rawConf, &v); err != nil {
		return confDefault
	}
	return Clamp01(v)
}

// Clamp01 clamps v into [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
