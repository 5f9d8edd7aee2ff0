package session_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/linnemanlabs/go-core/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/intellidoctor/medgemma-triage/internal/imaging"
	"github.com/intellidoctor/medgemma-triage/internal/intake"
	"github.com/intellidoctor/medgemma-triage/internal/llm"
	"github.com/intellidoctor/medgemma-triage/internal/session"
	"github.com/intellidoctor/medgemma-triage/internal/session/memstore"
	"github.com/intellidoctor/medgemma-triage/internal/triage"
)

type mockProvider struct {
	text      string
	imageText string
	err       error
}

func (m *mockProvider) GenerateText(context.Context, *llm.GenerateRequest) (*llm.Response, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &llm.Response{Text: m.text, Model: "mock"}, nil
}

func (m *mockProvider) AnalyzeImage(context.Context, *llm.ImageRequest) (*llm.Response, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &llm.Response{Text: m.imageText, Model: "mock"}, nil
}

type mockNotifier struct {
	calls int
	last  *triage.Result
}

func (n *mockNotifier) ClassificationDone(_ context.Context, _ *session.Interview, r *triage.Result) error {
	n.calls++
	n.last = r
	return nil
}

func newService(t *testing.T, p llm.Provider, n session.Notifier) *session.Service {
	t.Helper()
	metrics := session.NewMetrics(prometheus.NewRegistry())
	return session.NewService(
		memstore.New(),
		&intake.Interviewer{Provider: p, Log: log.Nop()},
		&imaging.Analyzer{Provider: p, Log: log.Nop()},
		&triage.ModelClassifier{Provider: p, Log: log.Nop()},
		n,
		metrics,
		log.Nop(),
	)
}

func TestService_StartAndGet(t *testing.T) {
	t.Parallel()

	s := newService(t, &mockProvider{}, nil)
	iv, err := s.Start(context.Background(), "pt")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if iv.ID == "" {
		t.Error("interview id not assigned")
	}
	if iv.State.Status != intake.InProgress {
		t.Errorf("status = %s", iv.State.Status)
	}

	got, ok, err := s.Get(context.Background(), iv.ID)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.ID != iv.ID {
		t.Errorf("id = %q, want %q", got.ID, iv.ID)
	}
}

func TestService_AnswerPersistsState(t *testing.T) {
	t.Parallel()

	p := &mockProvider{text: `{"extracted": {"chief_complaint": "febre"}, "next_question": null, "is_complete": false}`}
	s := newService(t, p, nil)

	iv, err := s.Start(context.Background(), "pt")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	iv, err = s.Answer(context.Background(), iv.ID, "Estou com febre")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if iv.State.TurnCount != 1 {
		t.Errorf("turn count = %d, want 1", iv.State.TurnCount)
	}

	// The advanced state must survive a store round-trip.
	got, _, err := s.Get(context.Background(), iv.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.State.Extracted.ChiefComplaint == nil || *got.State.Extracted.ChiefComplaint != "febre" {
		t.Errorf("persisted record = %+v", got.State.Extracted)
	}
	if len(got.State.Conversation) != len(iv.State.Conversation) {
		t.Error("persisted transcript differs from returned one")
	}
}

func TestService_AnswerProviderErrorPropagates(t *testing.T) {
	t.Parallel()

	s := newService(t, &mockProvider{err: errors.New("dial tcp: refused")}, nil)
	iv, err := s.Start(context.Background(), "pt")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := s.Answer(context.Background(), iv.ID, "olá"); err == nil {
		t.Fatal("expected propagated provider error")
	}

	// Failed turn must not advance the stored state.
	got, _, _ := s.Get(context.Background(), iv.ID)
	if got.State.TurnCount != 0 {
		t.Errorf("turn count = %d, want 0 after failed turn", got.State.TurnCount)
	}
}

func TestService_AnswerUnknownID(t *testing.T) {
	t.Parallel()

	s := newService(t, &mockProvider{}, nil)
	_, err := s.Answer(context.Background(), "01XYZ", "hi")
	if !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestService_AttachImage(t *testing.T) {
	t.Parallel()

	p := &mockProvider{imageText: `{"severity": "SEVERE", "modality": "X-ray", "description": "displaced fracture", "requires_specialist": true}`}
	s := newService(t, p, nil)

	iv, err := s.Start(context.Background(), "pt")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	iv, err = s.AttachImage(context.Background(), iv.ID, []byte{0xFF}, "image/jpeg")
	if err != nil {
		t.Fatalf("attach image: %v", err)
	}
	if iv.Findings == nil || iv.Findings.Severity != imaging.SeveritySevere {
		t.Fatalf("findings = %+v", iv.Findings)
	}
	if iv.State.Extracted.ImageFindings == nil ||
		!strings.Contains(*iv.State.Extracted.ImageFindings, "[SEVERE]") {
		t.Errorf("image findings not merged into record: %+v", iv.State.Extracted.ImageFindings)
	}
}

func TestService_ClassifyRules(t *testing.T) {
	t.Parallel()

	p := &mockProvider{text: `{"extracted": {"chief_complaint": "Twisted my ankle", "pain_scale": 9}, "next_question": null, "is_complete": false}`}
	n := &mockNotifier{}
	s := newService(t, p, n)

	iv, err := s.Start(context.Background(), "pt")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := s.Answer(context.Background(), iv.ID, "torci o tornozelo, dor 9"); err != nil {
		t.Fatalf("answer: %v", err)
	}

	iv, err = s.Classify(context.Background(), iv.ID, false)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if iv.Result == nil || iv.Result.Category != triage.VeryUrgent {
		t.Fatalf("result = %+v, want VERY_URGENT", iv.Result)
	}
	if n.calls != 1 || n.last.Category != triage.VeryUrgent {
		t.Errorf("notifier calls = %d, last = %+v", n.calls, n.last)
	}
}

func TestService_ClassifyWithoutChiefComplaint(t *testing.T) {
	t.Parallel()

	s := newService(t, &mockProvider{}, nil)
	iv, err := s.Start(context.Background(), "pt")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	// No chief complaint yet: validation must fail before any classifier runs.
	if _, err := s.Classify(context.Background(), iv.ID, false); err == nil {
		t.Fatal("expected validation error for empty record")
	}
}

func TestService_ClassifyModelBacked(t *testing.T) {
	t.Parallel()

	p := &mockProvider{text: `{"category": "CRITICAL", "reasoning": "airway obstruction", "confidence": 0.97}`}
	s := newService(t, p, nil)

	record := &triage.PatientRecord{ChiefComplaint: "engasgo, não respira"}
	res, err := s.ClassifyRecord(context.Background(), record, true, "pt")
	if err != nil {
		t.Fatalf("classify record: %v", err)
	}
	if res.Category != triage.Critical || res.Confidence != 0.97 {
		t.Errorf("result = %+v", res)
	}
}

func TestService_Abort(t *testing.T) {
	t.Parallel()

	s := newService(t, &mockProvider{}, nil)
	iv, err := s.Start(context.Background(), "pt")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	iv, err = s.Abort(context.Background(), iv.ID)
	if err != nil {
		t.Fatalf("abort: %v", err)
	}
	if iv.State.Status != intake.Aborted {
		t.Errorf("status = %s, want aborted", iv.State.Status)
	}
	if iv.State.PendingQuestion != nil {
		t.Error("aborted state must clear the pending question")
	}

	// Aborted is terminal: no second abort, no further answers.
	if _, err := s.Abort(context.Background(), iv.ID); !errors.Is(err, intake.ErrNotInProgress) {
		t.Errorf("second abort err = %v, want ErrNotInProgress", err)
	}
	if _, err := s.Answer(context.Background(), iv.ID, "ainda aqui"); !errors.Is(err, intake.ErrNotInProgress) {
		t.Errorf("answer after abort err = %v, want ErrNotInProgress", err)
	}
}
