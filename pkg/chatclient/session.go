package chatclient

import (
	"sync"
	"time"
)

// Session is the signed-in identity every authenticated call uses.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Expired reports whether the access token is past its expiry.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// SessionStore holds the current session and notifies listeners when it
// changes. A nil session means signed out.
type SessionStore struct {
	mu        sync.RWMutex
	current   *Session
	listeners map[int]func(*Session)
	nextID    int
}

func NewSessionStore() *SessionStore {
	return &SessionStore{listeners: make(map[int]func(*Session))}
}

// Get returns a copy of the current session, or nil.
func (s *SessionStore) Get() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	cp := *s.current
	return &cp
}

func (s *SessionStore) Set(session *Session) {
	var next *Session
	if session != nil {
		cp := *session
		next = &cp
	}

	s.mu.Lock()
	s.current = next
	listeners := s.snapshotLocked()
	s.mu.Unlock()

	for _, fn := range listeners {
		if next == nil {
			fn(nil)
			continue
		}
		cp := *next
		fn(&cp)
	}
}

func (s *SessionStore) Clear() {
	s.Set(nil)
}

// OnChange registers fn for every later Set or Clear and returns a func that
// removes it. Listeners run on the caller's goroutine without the lock held.
func (s *SessionStore) OnChange(fn func(*Session)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *SessionStore) snapshotLocked() []func(*Session) {
	out := make([]func(*Session), 0, len(s.listeners))
	for _, fn := range s.listeners {
		out = append(out, fn)
	}
	return out
}
