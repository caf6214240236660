package storage

import (
	"sync"

	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/chronobooth/internal/booth"
	"github.com/lehigh-university-libraries/chronobooth/internal/metrics"
)

// Factory builds the orchestrator for a new session ID.
type Factory func(id string) *booth.Booth

type SessionStore struct {
	sessions map[string]*booth.Booth
	mu       sync.RWMutex
	newBooth Factory
	// frontend labels the active session gauge.
	frontend string
}

func New(frontend string, factory Factory) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*booth.Booth),
		newBooth: factory,
		frontend: frontend,
	}
}

// Create starts a session under a fresh random ID.
func (s *SessionStore) Create() *booth.Booth {
	return s.GetOrCreate(uuid.NewString())
}

func (s *SessionStore) Get(sessionID string) (*booth.Booth, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, exists := s.sessions[sessionID]
	return session, exists
}

// GetOrCreate returns the session stored under sessionID, creating it first
// if needed.
func (s *SessionStore) GetOrCreate(sessionID string) *booth.Booth {
	if session, ok := s.Get(sessionID); ok {
		return session
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[sessionID]; ok {
		return session
	}
	session := s.newBooth(sessionID)
	s.sessions[sessionID] = session
	metrics.SetSessionsActive(s.frontend, len(s.sessions))
	return session
}

func (s *SessionStore) GetAll() map[string]*booth.Booth {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]*booth.Booth, len(s.sessions))
	for k, v := range s.sessions {
		result[k] = v
	}
	return result
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	metrics.SetSessionsActive(s.frontend, len(s.sessions))
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
