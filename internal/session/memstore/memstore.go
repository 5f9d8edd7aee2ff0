// Package memstore provides an in-memory implementation of session.Store.
package memstore

import (
	"context"
	"sync"

	"github.com/intellidoctor/medgemma-triage/internal/session"
)

// Store holds interviews in memory. Suitable for dev/testing.
type Store struct {
	mu         sync.RWMutex
	interviews map[string]*session.Interview
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		interviews: make(map[string]*session.Interview),
	}
}

// Get retrieves an interview by its ID. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*session.Interview, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	iv, ok := s.interviews[id]
	if !ok {
		return nil, false, nil
	}
	cp := *iv
	return &cp, true, nil
}

// Put stores a copy of the interview.
func (s *Store) Put(_ context.Context, iv *session.Interview) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *iv
	s.interviews[iv.ID] = &cp
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() {}
