// internal/session/session.go
package session

import (
	"context"
	"errors"
	"sync"
)

// ErrNoSession is returned by Load when nobody is logged in.
var ErrNoSession = errors.New("no stored session")

// Session is the credential obtained at login plus the name it was issued to.
type Session struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// Store persists the current session between runs.
type Store interface {
	Save(ctx context.Context, s Session) error
	Load(ctx context.Context) (Session, error)
	Clear(ctx context.Context) error
}

// IsAuthenticated reports whether the store holds a session with a token.
func IsAuthenticated(ctx context.Context, store Store) bool {
	s, err := store.Load(ctx)
	return err == nil && s.Token != ""
}

// MemoryStore keeps the session in process memory only.
type MemoryStore struct {
	mu      sync.Mutex
	session *Session
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Save(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = &s
	return nil
}

func (m *MemoryStore) Load(_ context.Context) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return Session{}, ErrNoSession
	}
	return *m.session, nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}
