package api

import "sync"

// AccountSession is the client-persisted account snapshot kept for the
// lifetime of one admin run.
type AccountSession struct {
	AccountID string
	Name      string
	Tenant    string
	Quotas    map[string]any
	APIKeys   []map[string]any
}

// SessionStore holds the current AccountSession plus the one-shot
// post-login return path. It is the session-scoped storage of the web UI
// translated to process scope.
type SessionStore struct {
	mu         sync.Mutex
	current    *AccountSession
	returnPath string
}

// NewSessionStore returns an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{}
}

// Set replaces the current session.
func (s *SessionStore) Set(sess *AccountSession) {
	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()
}

// Get returns the current session, or nil when signed out.
func (s *SessionStore) Get() *AccountSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Authenticated reports whether a session is present.
func (s *SessionStore) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// Clear drops the session and any pending return path. Used by the global
// 401 recovery.
func (s *SessionStore) Clear() {
	s.mu.Lock()
	s.current = nil
	s.returnPath = ""
	s.mu.Unlock()
}

// SetReturnPath records where to land after the next successful login.
func (s *SessionStore) SetReturnPath(path string) {
	s.mu.Lock()
	s.returnPath = path
	s.mu.Unlock()
}

// TakeReturnPath returns and clears the pending return path; the value is
// readable exactly once.
func (s *SessionStore) TakeReturnPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := s.returnPath
	s.returnPath = ""
	return path
}
