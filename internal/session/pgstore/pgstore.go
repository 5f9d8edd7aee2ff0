// Package pgstore provides a PostgreSQL implementation of session.Store.
// Interview state travels as JSONB; the immutable state value makes a
// whole-row upsert the natural persistence shape.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/intellidoctor/medgemma-triage/internal/imaging"
	"github.com/intellidoctor/medgemma-triage/internal/intake"
	"github.com/intellidoctor/medgemma-triage/internal/session"
	"github.com/intellidoctor/medgemma-triage/internal/triage"
)

var tracer = otel.Tracer("github.com/intellidoctor/medgemma-triage/internal/session/pgstore")

//go:embed schema.sql
var schema string

// Store persists interviews in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on the given pool and returns a ready Store. The
// pool is expected to come from internal/postgres so queries carry tracing.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close shuts down the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Get retrieves an interview by ID.
func (s *Store) Get(ctx context.Context, id string) (*session.Interview, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Get", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT id, state, findings, result, created_at, updated_at FROM interviews WHERE id = $1`

	var (
		iv           session.Interview
		stateJSON    []byte
		findingsJSON []byte
		resultJSON   []byte
	)
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&iv.ID, &stateJSON, &findingsJSON, &resultJSON, &iv.CreatedAt, &iv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, fmt.Errorf("query interview: %w", err)
	}

	if err := json.Unmarshal(stateJSON, &iv.State); err != nil {
		return nil, false, fmt.Errorf("decode state: %w", err)
	}
	if findingsJSON != nil {
		iv.Findings = &imaging.Findings{}
		if err := json.Unmarshal(findingsJSON, iv.Findings); err != nil {
			return nil, false, fmt.Errorf("decode findings: %w", err)
		}
	}
	if resultJSON != nil {
		iv.Result = &triage.Result{}
		if err := json.Unmarshal(resultJSON, iv.Result); err != nil {
			return nil, false, fmt.Errorf("decode result: %w", err)
		}
	}
	normalize(&iv.State)
	return &iv, true, nil
}

// Put inserts or updates an interview as a whole row.
func (s *Store) Put(ctx context.Context, iv *session.Interview) error {
	ctx, span := tracer.Start(ctx, "pgstore.Put", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	stateJSON, err := json.Marshal(iv.State)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	var findingsJSON []byte
	if iv.Findings != nil {
		if findingsJSON, err = json.Marshal(iv.Findings); err != nil {
			return fmt.Errorf("marshal findings: %w", err)
		}
	}
	var resultJSON []byte
	if iv.Result != nil {
		if resultJSON, err = json.Marshal(iv.Result); err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
	}

	query := `INSERT INTO interviews (id, state, findings, result, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			findings = EXCLUDED.findings,
			result = EXCLUDED.result,
			updated_at = EXCLUDED.updated_at`

	if _, err := s.pool.Exec(ctx, query,
		iv.ID, stateJSON, findingsJSON, resultJSON, iv.CreatedAt, iv.UpdatedAt); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upsert interview: %w", err)
	}
	return nil
}

// normalize restores invariants that the JSON round-trip cannot express,
// such as the empty transcript slice on a freshly decoded state.
func normalize(st *intake.State) {
	if st.Conversation == nil {
		st.Conversation = []intake.Turn{}
	}
}
