package sessions

import (
	"context"
	"sync"
	"time"
)

// memoryStore is an in-memory Store for tests and local development.
type memoryStore struct {
	mu       sync.Mutex
	sessions map[string]*SessionState
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() Store {
	return &memoryStore{
		sessions: make(map[string]*SessionState),
	}
}

func (s *memoryStore) Upsert(ctx context.Context, sessionID string, cmd UpsertCommand) (*SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	session, ok := s.sessions[sessionID]
	if !ok {
		session = &SessionState{
			SessionID: sessionID,
			Flags:     map[string]any{},
			CreatedAt: now,
		}
		s.sessions[sessionID] = session
	}
	session.apply(cmd, now)

	return cloneSession(session), nil
}

func (s *memoryStore) Find(ctx context.Context, sessionID string) (*SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}

	return cloneSession(session), nil
}

func cloneSession(session *SessionState) *SessionState {
	c := *session
	if session.UserID != nil {
		id := *session.UserID
		c.UserID = &id
	}
	if session.ApplicationID != nil {
		id := *session.ApplicationID
		c.ApplicationID = &id
	}
	c.Flags = make(map[string]any, len(session.Flags))
	for k, v := range session.Flags {
		c.Flags[k] = v
	}
	return &c
}
