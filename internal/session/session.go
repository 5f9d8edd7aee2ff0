// Package session owns the interview lifecycle around the pure intake and
// triage cores: identifiers, persistence, image findings, classification
// and the abort transition reserved for external callers.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/intellidoctor/medgemma-triage/internal/imaging"
	"github.com/intellidoctor/medgemma-triage/internal/intake"
	"github.com/intellidoctor/medgemma-triage/internal/triage"
)

// ErrNotFound is returned for unknown interview ids.
var ErrNotFound = errors.New("session: interview not found")

// ErrUpstream marks provider transport failures so the HTTP layer can map
// them to a gateway error instead of a generic 500.
var ErrUpstream = errors.New("session: model provider failure")

// Interview is one persisted interview: the immutable intake state plus
// bookkeeping and, once classified, the triage result.
type Interview struct {
	ID        string            `json:"id"`
	State     intake.State      `json:"state"`
	Findings  *imaging.Findings `json:"findings,omitempty"`
	Result    *triage.Result    `json:"result,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Store is the persistence interface for interviews.
type Store interface {
	Get(ctx context.Context, id string) (*Interview, bool, error)
	Put(ctx context.Context, iv *Interview) error
	Close()
}

// Notifier receives completed classifications. Implementations must be
// safe for best-effort calls; the service logs failures and moves on.
type Notifier interface {
	ClassificationDone(ctx context.Context, iv *Interview, result *triage.Result) error
}

// Service is the business boundary for interview operations.
type Service struct {
	store       Store
	interviewer *intake.Interviewer
	analyzer    *imaging.Analyzer
	model       *triage.ModelClassifier
	notifier    Notifier
	metrics     *Metrics
	logger      log.Logger
}

// NewService wires the session service. notifier may be nil.
func NewService(store Store, interviewer *intake.Interviewer, analyzer *imaging.Analyzer,
	model *triage.ModelClassifier, notifier Notifier, metrics *Metrics, logger log.Logger) *Service {
	return &Service{
		store:       store,
		interviewer: interviewer,
		analyzer:    analyzer,
		model:       model,
		notifier:    notifier,
		metrics:     metrics,
		logger:      logger,
	}
}

// Start creates a new interview in the given language and persists it.
func (s *Service) Start(ctx context.Context, lang string) (*Interview, error) {
	now := time.Now()
	iv := &Interview{
		ID:        ulid.Make().String(),
		State:     intake.Start(lang),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Put(ctx, iv); err != nil {
		return nil, fmt.Errorf("persist interview: %w", err)
	}
	s.metrics.InterviewsStarted.Inc()
	s.logger.Info(ctx, "interview started", "interview_id", iv.ID, "language", iv.State.Language)
	return iv, nil
}

// Get retrieves an interview by id.
func (s *Service) Get(ctx context.Context, id string) (*Interview, bool, error) {
	return s.store.Get(ctx, id)
}

// Answer advances the interview by one turn. Intake errors, including
// provider transport failures, propagate to the caller; the stored state
// is only replaced on success.
func (s *Service) Answer(ctx context.Context, id, answer string) (*Interview, error) {
	iv, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	next, err := s.interviewer.Advance(ctx, iv.State, answer)
	if errors.Is(err, intake.ErrNotInProgress) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	iv.State = next
	iv.UpdatedAt = time.Now()
	if err := s.store.Put(ctx, iv); err != nil {
		return nil, fmt.Errorf("persist interview: %w", err)
	}

	s.metrics.TurnsTotal.Inc()
	if next.Status == intake.Complete {
		s.logger.Info(ctx, "interview complete",
			"interview_id", id, "turns", next.TurnCount)
	}
	return iv, nil
}

// AttachImage analyzes an uploaded image and folds the findings summary
// into the accumulated record.
func (s *Service) AttachImage(ctx context.Context, id string, image []byte, mimeType string) (*Interview, error) {
	iv, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	findings, err := s.analyzer.Analyze(ctx, image, mimeType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	summary := findings.TriageSummary()
	st := iv.State
	st.Extracted = intake.Merge(st.Extracted, intake.Record{ImageFindings: &summary})
	iv.State = st
	iv.Findings = findings
	iv.UpdatedAt = time.Now()
	if err := s.store.Put(ctx, iv); err != nil {
		return nil, fmt.Errorf("persist interview: %w", err)
	}

	s.metrics.ImagesAnalyzed.WithLabelValues(string(findings.Severity)).Inc()
	return iv, nil
}

// Classify runs triage over the interview's accumulated record and stores
// the result. A record without a chief complaint fails validation here and
// never reaches a classifier.
func (s *Service) Classify(ctx context.Context, id string, useModel bool) (*Interview, error) {
	iv, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	record := iv.State.Extracted.PatientRecord()
	result, err := s.classify(ctx, &record, useModel, iv.State.Language)
	if err != nil {
		return nil, err
	}

	iv.Result = result
	iv.UpdatedAt = time.Now()
	if err := s.store.Put(ctx, iv); err != nil {
		return nil, fmt.Errorf("persist interview: %w", err)
	}

	s.observeClassification(result, useModel)
	s.logger.Info(ctx, "interview classified",
		"interview_id", id,
		"category", string(result.Category),
		"confidence", result.Confidence,
		"degraded", result.Degraded,
	)

	if s.notifier != nil {
		if err := s.notifier.ClassificationDone(ctx, iv, result); err != nil {
			s.logger.Error(ctx, err, "classification notification failed", "interview_id", id)
		}
	}
	return iv, nil
}

// ClassifyRecord triages a directly supplied record, outside any interview.
func (s *Service) ClassifyRecord(ctx context.Context, record *triage.PatientRecord, useModel bool, lang string) (*triage.Result, error) {
	result, err := s.classify(ctx, record, useModel, lang)
	if err != nil {
		return nil, err
	}
	s.observeClassification(result, useModel)
	return result, nil
}

// Abort moves an in-progress interview to the aborted terminal state. This
// transition exists only for external callers; the engine never aborts.
func (s *Service) Abort(ctx context.Context, id string) (*Interview, error) {
	iv, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if iv.State.Status != intake.InProgress {
		return nil, fmt.Errorf("%w (status %s)", intake.ErrNotInProgress, iv.State.Status)
	}

	st := iv.State
	st.Status = intake.Aborted
	st.PendingQuestion = nil
	iv.State = st
	iv.UpdatedAt = time.Now()
	if err := s.store.Put(ctx, iv); err != nil {
		return nil, fmt.Errorf("persist interview: %w", err)
	}

	s.logger.Info(ctx, "interview aborted", "interview_id", id, "turns", st.TurnCount)
	return iv, nil
}

func (s *Service) fetch(ctx context.Context, id string) (*Interview, error) {
	iv, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return iv, nil
}

func (s *Service) classify(ctx context.Context, record *triage.PatientRecord, useModel bool, lang string) (*triage.Result, error) {
	if err := record.Validate(); err != nil {
		return nil, err
	}
	if useModel {
		r := s.model.Classify(ctx, record, lang)
		return &r, nil
	}
	r := triage.Classify(record)
	return &r, nil
}

func (s *Service) observeClassification(result *triage.Result, useModel bool) {
	mode := "rules"
	if useModel {
		mode = "model"
	}
	s.metrics.ClassificationsTotal.WithLabelValues(string(result.Category), mode).Inc()
	if result.Degraded {
		s.metrics.DegradedTotal.Inc()
	}
}
