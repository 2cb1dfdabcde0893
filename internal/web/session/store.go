// Package session keeps web login sessions in memory.
package session

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"
)

// CookieName is the session cookie shared by the web UI and the API.
const CookieName = "session_id"

// Flash kinds.
const (
	FlashSuccess = "success"
	FlashError   = "error"
)

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Kind    string
	Message string
}

// Session is a logged-in browser.
type Session struct {
	ID        string
	UserID    string
	Username  string
	Role      string
	CreatedAt time.Time
	ExpiresAt time.Time

	flashes []Flash
}

// Store holds sessions keyed by id.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewStore creates a store and starts its cleanup loop.
func NewStore(ttl time.Duration) *Store {
	s := newStore(ttl, time.Now)
	go s.cleanupLoop()
	return s
}

func newStore(ttl time.Duration, now func() time.Time) *Store {
	return &Store{sessions: make(map[string]*Session), ttl: ttl, now: now}
}

// TTL returns the session lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Create starts a session for a user with the default lifetime.
func (s *Store) Create(userID, username, role string) (*Session, error) {
	return s.CreateWithTTL(userID, username, role, s.ttl)
}

// CreateWithTTL starts a session that expires after ttl.
func (s *Store) CreateWithTTL(userID, username, role string, ttl time.Duration) (*Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, err
	}

	now := s.now()
	sess := &Session{
		ID:        id,
		UserID:    userID,
		Username:  username,
		Role:      role,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	return sess, nil
}

// Get returns an unexpired session. The returned value is a copy.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok || s.now().After(sess.ExpiresAt) {
		return nil, false
	}
	cp := *sess
	cp.flashes = nil
	return &cp, true
}

// Delete ends a session.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// DeleteForUser ends every session of a user and returns how many there were.
func (s *Store) DeleteForUser(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, sess := range s.sessions {
		if sess.UserID == userID {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// AddFlash queues a message for the session.
func (s *Store) AddFlash(id, kind, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.flashes = append(sess.flashes, Flash{Kind: kind, Message: message})
	}
}

// PopFlashes returns and clears queued messages.
func (s *Store) PopFlashes(id string) []Flash {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	flashes := sess.flashes
	sess.flashes = nil
	return flashes
}

func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		s.cleanup()
	}
}

func (s *Store) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, sess := range s.sessions {
		if now.After(sess.ExpiresAt) {
			delete(s.sessions, id)
		}
	}
}

func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
