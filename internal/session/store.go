// Package session holds the server side of terminal authentication: opaque
// tokens mapped to authenticated users, valid exactly as long as they are
// present in the store.
package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/retailcore/posd/internal/domain"
)

// tokenBytes is the entropy of a session token. 32 bytes = 256 bits.
const tokenBytes = 32

// Session binds an unguessable token to an authenticated user.
type Session struct {
	Token     string
	User      domain.User
	CreatedAt time.Time
}

// Age returns how long the session has existed.
func (s Session) Age(now time.Time) time.Duration {
	return now.Sub(s.CreatedAt)
}

// Store is the process-wide session authority. Safe for concurrent use by
// any number of connection workers.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]Session
	now      func() time.Time
}

// NewStore returns an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]Session),
		now:      time.Now,
	}
}

// Create registers a session for user and returns its token.
func (s *Store) Create(user domain.User) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.sessions[token] = Session{Token: token, User: user, CreatedAt: s.now().UTC()}
	s.mu.Unlock()
	return token, nil
}

// Get returns the session for token, if one exists.
func (s *Store) Get(token string) (Session, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[token]
	s.mu.RUnlock()
	return sess, ok
}

// Remove deletes the session for token and reports whether it existed.
func (s *Store) Remove(token string) bool {
	s.mu.Lock()
	_, ok := s.sessions[token]
	if ok {
		delete(s.sessions, token)
	}
	s.mu.Unlock()
	return ok
}

// IsValid reports whether token names a live session.
func (s *Store) IsValid(token string) bool {
	if token == "" {
		return false
	}
	s.mu.RLock()
	_, ok := s.sessions[token]
	s.mu.RUnlock()
	return ok
}

// SweepExpired removes every session older than ttl and returns how many
// were dropped.
func (s *Store) SweepExpired(ttl time.Duration) int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for token, sess := range s.sessions {
		if sess.Age(now) > ttl {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("session: generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
