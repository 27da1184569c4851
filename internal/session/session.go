package session

import "sync"

// Listener is notified with the new credential after every Set.
type Listener func(token string)

// Store holds the credential of the current session.
// It is created once per process and handed to every component that needs
// to know whether the user is authenticated.
type Store struct {
	mu        sync.RWMutex
	token     string
	present   bool
	listeners []Listener
}

// New returns a Store with no credential.
func New() *Store {
	return &Store{}
}

// Set replaces the credential unconditionally and notifies listeners.
// The token is stored as given; its structure is never inspected.
func (s *Store) Set(token string) {
	s.mu.Lock()
	s.token = token
	s.present = true
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, listener := range listeners {
		listener(token)
	}
}

// Get returns the credential and whether one has been set.
func (s *Store) Get() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.present
}

// Authenticated reports whether a non-empty credential is held.
func (s *Store) Authenticated() bool {
	token, ok := s.Get()
	return ok && token != ""
}

// Subscribe registers a listener for credential changes.
func (s *Store) Subscribe(listener Listener) {
	if listener == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, listener)
	s.mu.Unlock()
}
