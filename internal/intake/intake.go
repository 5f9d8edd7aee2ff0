// Package intake runs the turn-by-turn patient interview. The engine is
// externally paced: each Advance is one synchronous call owned by the
// caller, and every transition returns a new State value.
package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/linnemanlabs/go-core/log"

	"github.com/intellidoctor/medgemma-triage/internal/llm"
	"github.com/intellidoctor/medgemma-triage/internal/parse"
)

// MaxTurns is the hard ceiling on interview length. Reaching it forces
// completion regardless of data sufficiency.
const MaxTurns = 15

// sufficiencyMin is how many desired fields beyond the chief complaint an
// interview needs before the model may declare it done.
const sufficiencyMin = 3

// ErrNotInProgress is returned by Advance on a terminal state.
var ErrNotInProgress = errors.New("intake: interview is not in progress")

// Status is the interview lifecycle state.
type Status string

const (
	InProgress Status = "in_progress"
	Complete   Status = "complete"
	Aborted    Status = "aborted"
)

// Speaker identifies who produced a transcript turn.
const (
	SpeakerPatient   = "patient"
	SpeakerAssistant = "assistant"
)

// Turn is one transcript entry.
type Turn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// State is an immutable snapshot of one interview. Advance never modifies
// its input; concurrent callers each owning a private state need no locking.
type State struct {
	Status          Status  `json:"status"`
	Language        string  `json:"language"`
	Conversation    []Turn  `json:"conversation"`
	Extracted       Record  `json:"extracted"`
	PendingQuestion *string `json:"pending_question,omitempty"`
	TurnCount       int     `json:"turn_count"`

	// RawResponse is the verbatim model output of the latest turn, kept
	// for audit and debugging.
	RawResponse string `json:"raw_response,omitempty"`
}

// checklist is the fixed field order used to pick the next question when
// the model does not propose one.
var checklist = []string{
	"chief_complaint", "symptoms", "onset", "pain_scale",
	"history", "medications", "allergies",
}

var openingQuestion = map[string]string{
	"pt": "Olá! Vou fazer algumas perguntas para a triagem. O que traz você aqui hoje?",
	"en": "Hello! I will ask a few questions for triage. What brings you in today?",
}

var checklistQuestions = map[string]map[string]string{
	"pt": {
		"chief_complaint": "Qual é o principal motivo da sua visita hoje?",
		"symptoms":        "Quais sintomas você está sentindo?",
		"onset":           "Quando os sintomas começaram?",
		"pain_scale":      "De 0 a 10, qual é a intensidade da sua dor?",
		"history":         "Você tem alguma condição médica conhecida?",
		"medications":     "Você toma algum medicamento regularmente?",
		"allergies":       "Você tem alguma alergia?",
	},
	"en": {
		"chief_complaint": "What is the main reason for your visit today?",
		"symptoms":        "What symptoms are you experiencing?",
		"onset":           "When did the symptoms start?",
		"pain_scale":      "On a scale of 0 to 10, how bad is your pain?",
		"history":         "Do you have any known medical conditions?",
		"medications":     "Do you take any medications regularly?",
		"allergies":       "Do you have any allergies?",
	},
}

var closingPrompt = map[string]string{
	"pt": "Há mais alguma coisa que você gostaria de relatar?",
	"en": "Is there anything else you would like to report?",
}

const intakeSystemPrompt = `You are an emergency department intake assistant gathering structured triage data.
After each patient answer, respond with a single JSON object and nothing else:
{"extracted": {"chief_complaint": ..., "symptoms": [...], "onset": ..., "duration": ..., "pain_scale": ..., "vital_signs": {...}, "history": [...], "medications": [...], "allergies": [...], "age": ..., "sex": ..., "notes": ...},
 "next_question": "one short follow-up question or null",
 "is_complete": false}
Include only fields the patient actually mentioned. Set is_complete to true only when you have enough information for triage.`

const (
	intakeMaxTokens   = 1024
	intakeTemperature = 0.3
)

// Interviewer drives interviews against an injected model provider.
type Interviewer struct {
	Provider llm.Provider
	Log      log.Logger
}

// Start returns a fresh InProgress state with the scripted opening question
// in the given language. Portuguese is the default.
func Start(lang string) State {
	if lang != "en" {
		lang = "pt"
	}
	q := openingQuestion[lang]
	return State{
		Status:          InProgress,
		Language:        lang,
		Conversation:    []Turn{{Speaker: SpeakerAssistant, Text: q}},
		PendingQuestion: &q,
	}
}

// turnOutput is the JSON shape the intake prompt asks the model for.
type turnOutput struct {
	Extracted    Record  `json:"extracted"`
	NextQuestion *string `json:"next_question"`
	IsComplete   bool    `json:"is_complete"`
}

// Advance runs one interview turn: the answer goes to the provider with the
// full transcript, the response is parsed and merged, and a new state comes
// back. Provider failures propagate to the caller untouched; the caller may
// retry with a fresh Advance on the same state.
func (iv *Interviewer) Advance(ctx context.Context, state State, answer string) (State, error) {
	if state.Status != InProgress {
		return State{}, fmt.Errorf("%w (status %s)", ErrNotInProgress, state.Status)
	}

	resp, err := iv.Provider.GenerateText(ctx, &llm.GenerateRequest{
		Prompt:       transcriptPrompt(state, answer),
		SystemPrompt: intakeSystemPrompt + "\n" + languageLine(state.Language),
		MaxTokens:    intakeMaxTokens,
		Temperature:  intakeTemperature,
	})
	if err != nil {
		return State{}, fmt.Errorf("intake turn %d: %w", state.TurnCount+1, err)
	}

	out := parse.Run(resp.Text, parse.Spec{})
	var turn turnOutput
	if out.Object != nil {
		// A malformed object inside balanced braces degrades to an
		// empty extraction, same as the default tier.
		_ = json.Unmarshal(out.Object, &turn)
	} else if out.Question != "" {
		turn.NextQuestion = &out.Question
	}
	if out.Degraded {
		iv.Log.Info(ctx, "intake extraction degraded, keeping previous record",
			"turn", state.TurnCount+1)
	}

	prevNotes := state.Extracted.Notes
	merged := Merge(state.Extracted, turn.Extracted)
	merged.Notes = appendNotes(prevNotes, turn.Extracted.Notes)

	next := nextQuestion(merged, turn.NextQuestion, state.Language)
	done := (turn.IsComplete && sufficient(merged)) || state.TurnCount+1 >= MaxTurns

	conv := make([]Turn, len(state.Conversation), len(state.Conversation)+2)
	copy(conv, state.Conversation)
	conv = append(conv, Turn{Speaker: SpeakerPatient, Text: answer})

	ns := State{
		Status:       InProgress,
		Language:     state.Language,
		Conversation: conv,
		Extracted:    merged,
		TurnCount:    state.TurnCount + 1,
		RawResponse:  resp.Text,
	}
	if done {
		ns.Status = Complete
		return ns, nil
	}
	ns.PendingQuestion = &next
	ns.Conversation = append(ns.Conversation, Turn{Speaker: SpeakerAssistant, Text: next})
	return ns, nil
}

// transcriptPrompt renders the conversation so far plus the new answer.
func transcriptPrompt(state State, answer string) string {
	var b strings.Builder
	b.WriteString("Conversation so far:\n")
	for _, t := range state.Conversation {
		fmt.Fprintf(&b, "%s: %s\n", t.Speaker, t.Text)
	}
	fmt.Fprintf(&b, "%s: %s\n", SpeakerPatient, answer)
	return b.String()
}

func languageLine(lang string) string {
	if lang == "en" {
		return "Ask questions in English."
	}
	return "Faça as perguntas em português."
}

// nextQuestion prefers the model's proposal, then the first unmet checklist
// field, then the closing prompt.
func nextQuestion(r Record, proposed *string, lang string) string {
	if proposed != nil && strings.TrimSpace(*proposed) != "" {
		return strings.TrimSpace(*proposed)
	}
	for _, field := range checklist {
		if !r.has(field) {
			return checklistQuestions[lang][field]
		}
	}
	return closingPrompt[lang]
}

// sufficient reports whether the record supports a completion declaration:
// a chief complaint plus at least sufficiencyMin of the desired fields.
func sufficient(r Record) bool {
	if !r.has("chief_complaint") {
		return false
	}
	n := 0
	for _, field := range checklist[1:] {
		if r.has(field) {
			n++
		}
	}
	return n >= sufficiencyMin
}

// appendNotes concatenates a newly reported note onto the previous one.
func appendNotes(previous, incoming *string) *string {
	if incoming == nil || strings.TrimSpace(*incoming) == "" {
		return previous
	}
	if previous == nil || strings.TrimSpace(*previous) == "" {
		n := strings.TrimSpace(*incoming)
		return &n
	}
	n := *previous + "; " + strings.TrimSpace(*incoming)
	return &n
}
