package session

import (
	"sync"

	"history-service/internal/domain"

	"github.com/google/uuid"
)

// Store maps session tokens onto actors. Tokens are opaque: issued ones are
// random uuids, statically registered ones come from configuration so
// sibling services can call without a login flow.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]domain.Actor
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]domain.Actor)}
}

// Issue creates a session for the actor and returns its token.
func (s *Store) Issue(actor domain.Actor) string {
	token := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = actor
	return token
}

// Register binds a preconfigured token to an actor.
func (s *Store) Register(token string, actor domain.Actor) {
	if token == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = actor
}

// Resolve returns the actor behind a token, if any.
func (s *Store) Resolve(token string) (*domain.Actor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	actor, ok := s.sessions[token]
	if !ok {
		return nil, false
	}
	return &actor, true
}

// Revoke drops a session.
func (s *Store) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}
