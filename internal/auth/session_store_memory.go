package auth

import (
	"context"
	"sync"
)

// MemorySessionStore keeps at most one session per user in process memory, matching the
// persistent store: saving a session for a user replaces the previous one.
type MemorySessionStore struct {
	mu      sync.Mutex
	byUser  map[string]Session
	byToken map[string]string
}

// NewInMemorySessionStore returns an empty MemorySessionStore.
func NewInMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{byUser: make(map[string]Session), byToken: make(map[string]string)}
}

func (s *MemorySessionStore) Save(_ context.Context, session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.byUser[session.UserID]; ok {
		delete(s.byToken, prev.RefreshToken)
	}
	s.byUser[session.UserID] = session
	s.byToken[session.RefreshToken] = session.UserID
	return nil
}

func (s *MemorySessionStore) Find(_ context.Context, refreshToken string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.byToken[refreshToken]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return s.byUser[userID], nil
}

func (s *MemorySessionStore) Delete(_ context.Context, refreshToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.byToken[refreshToken]
	if !ok {
		return ErrSessionNotFound
	}
	delete(s.byToken, refreshToken)
	delete(s.byUser, userID)
	return nil
}

// Clear ends the session of userID, if any.
func (s *MemorySessionStore) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.byUser[userID]; ok {
		delete(s.byToken, prev.RefreshToken)
		delete(s.byUser, userID)
	}
	return nil
}

// Has reports whether refreshToken belongs to a live session.
func (s *MemorySessionStore) Has(refreshToken string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byToken[refreshToken]
	return ok
}

var _ SessionStore = (*MemorySessionStore)(nil)
