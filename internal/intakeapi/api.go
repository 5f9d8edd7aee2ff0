// Package intakeapi exposes the interview and triage operations over HTTP.
package intakeapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/intellidoctor/medgemma-triage/internal/fhir"
	"github.com/intellidoctor/medgemma-triage/internal/intake"
	"github.com/intellidoctor/medgemma-triage/internal/session"
	"github.com/intellidoctor/medgemma-triage/internal/triage"
)

// maxImageBytes caps uploaded image size.
const maxImageBytes = 10 << 20

// InterviewService defines the business operations intakeapi needs.
type InterviewService interface {
	Start(ctx context.Context, lang string) (*session.Interview, error)
	Get(ctx context.Context, id string) (*session.Interview, bool, error)
	Answer(ctx context.Context, id, answer string) (*session.Interview, error)
	AttachImage(ctx context.Context, id string, image []byte, mimeType string) (*session.Interview, error)
	Classify(ctx context.Context, id string, useModel bool) (*session.Interview, error)
	ClassifyRecord(ctx context.Context, record *triage.PatientRecord, useModel bool, lang string) (*triage.Result, error)
	Abort(ctx context.Context, id string) (*session.Interview, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger      log.Logger
	svc         InterviewService
	defaultLang string
}

// New creates a new API handler. defaultLang is used when a start request
// does not name a language.
func New(logger log.Logger, svc InterviewService, defaultLang string) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("interview service is required"))
	}
	return &API{
		logger:      logger,
		svc:         svc,
		defaultLang: defaultLang,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/interviews", a.handleStart)
		r.Get("/interviews/{id}", a.handleGet)
		r.Delete("/interviews/{id}", a.handleAbort)
		r.Post("/interviews/{id}/answers", a.handleAnswer)
		r.Post("/interviews/{id}/image", a.handleImage)
		r.Post("/interviews/{id}/classify", a.handleClassify)
		r.Get("/interviews/{id}/fhir", a.handleFHIR)
		r.Post("/triage", a.handleTriageRecord)
	})
}

func (a *API) handleStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Language string `json:"language"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
	}

	lang := req.Language
	if lang == "" {
		lang = a.defaultLang
	}

	iv, err := a.svc.Start(r.Context(), lang)
	if err != nil {
		a.writeError(w, r, err, "failed to start interview")
		return
	}
	writeJSON(w, http.StatusCreated, iv)
}

func (a *API) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	annotateSpan(r, id)

	iv, ok, err := a.svc.Get(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err, "failed to get interview")
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, iv)
}

func (a *API) handleAnswer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	annotateSpan(r, id)

	var req struct {
		Answer string `json:"answer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Answer == "" {
		http.Error(w, `{"error":"answer is required"}`, http.StatusBadRequest)
		return
	}

	iv, err := a.svc.Answer(r.Context(), id, req.Answer)
	if err != nil {
		a.writeError(w, r, err, "failed to advance interview")
		return
	}
	writeJSON(w, http.StatusOK, iv)
}

func (a *API) handleImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	annotateSpan(r, id)

	mimeType := r.Header.Get("Content-Type")
	if mimeType != "image/jpeg" && mimeType != "image/png" {
		http.Error(w, `{"error":"content type must be image/jpeg or image/png"}`, http.StatusUnsupportedMediaType)
		return
	}

	image, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImageBytes))
	if err != nil {
		http.Error(w, `{"error":"image too large"}`, http.StatusRequestEntityTooLarge)
		return
	}
	if len(image) == 0 {
		http.Error(w, `{"error":"image body is required"}`, http.StatusBadRequest)
		return
	}

	iv, err := a.svc.AttachImage(r.Context(), id, image, mimeType)
	if err != nil {
		a.writeError(w, r, err, "failed to analyze image")
		return
	}
	writeJSON(w, http.StatusOK, iv)
}

func (a *API) handleClassify(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	annotateSpan(r, id)

	iv, err := a.svc.Classify(r.Context(), id, useModel(r))
	if err != nil {
		a.writeError(w, r, err, "failed to classify interview")
		return
	}
	writeJSON(w, http.StatusOK, iv)
}

func (a *API) handleFHIR(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	annotateSpan(r, id)

	iv, ok, err := a.svc.Get(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err, "failed to get interview")
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}
	if iv.Result == nil {
		http.Error(w, `{"error":"interview is not classified yet"}`, http.StatusConflict)
		return
	}

	record := iv.State.Extracted.PatientRecord()
	bundle := fhir.BuildBundle(&record, iv.Result, r.URL.Query().Get("name"), iv.UpdatedAt)
	w.Header().Set("Content-Type", "application/fhir+json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(bundle)
}

func (a *API) handleTriageRecord(w http.ResponseWriter, r *http.Request) {
	var req struct {
		triage.PatientRecord
		Language string `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	result, err := a.svc.ClassifyRecord(r.Context(), &req.PatientRecord, useModel(r), req.Language)
	if err != nil {
		a.writeError(w, r, err, "failed to classify record")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleAbort(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	annotateSpan(r, id)

	iv, err := a.svc.Abort(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err, "failed to abort interview")
		return
	}
	writeJSON(w, http.StatusOK, iv)
}

// writeError maps service errors onto HTTP statuses: unknown ids are 404,
// terminal-state conflicts 409, invalid records 422, provider transport
// failures 502, anything else 500.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	case errors.Is(err, intake.ErrNotInProgress):
		http.Error(w, `{"error":"interview is not in progress"}`, http.StatusConflict)
	case errors.Is(err, triage.ErrInvalidRecord):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, session.ErrUpstream):
		a.logger.Error(r.Context(), err, msg)
		http.Error(w, `{"error":"model provider unavailable"}`, http.StatusBadGateway)
	default:
		a.logger.Error(r.Context(), err, msg)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
	}
}

func useModel(r *http.Request) bool {
	return r.URL.Query().Get("model") == "true"
}

func annotateSpan(r *http.Request, id string) {
	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("medtriage.interview.id", id))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
