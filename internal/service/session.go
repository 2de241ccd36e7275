package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session binds an authenticated username to subsequent operations.
type Session struct {
	ID       string
	Username string
	IssuedAt time.Time
}

// sessionRegistry holds live sessions. With a positive ttl, sessions older than ttl are
// dropped when looked up or when a new session is opened.
type sessionRegistry struct {
	mu   sync.RWMutex
	ttl  time.Duration
	byID map[string]Session
}

func newSessionRegistry(ttl time.Duration) *sessionRegistry {
	return &sessionRegistry{ttl: ttl, byID: make(map[string]Session)}
}

func (r *sessionRegistry) expired(s Session, now time.Time) bool {
	return r.ttl > 0 && now.Sub(s.IssuedAt) >= r.ttl
}

func (r *sessionRegistry) open(username string, now time.Time) *Session {
	s := Session{
		ID:       uuid.NewString(),
		Username: username,
		IssuedAt: now,
	}
	r.mu.Lock()
	for id, live := range r.byID {
		if r.expired(live, now) {
			delete(r.byID, id)
		}
	}
	r.byID[s.ID] = s
	r.mu.Unlock()
	return &s
}

func (r *sessionRegistry) get(id string, now time.Time) (Session, bool) {
	r.mu.RLock()
	s, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return Session{}, false
	}
	if r.expired(s, now) {
		r.close(id)
		return Session{}, false
	}
	return s, true
}

func (r *sessionRegistry) close(id string) {
	r.mu.Lock()
	delete(r.byID, id)
	r.mu.Unlock()
}

// closeUser drops every session of username and returns how many were live.
func (r *sessionRegistry) closeUser(username string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, s := range r.byID {
		if s.Username == username {
			delete(r.byID, id)
			n++
		}
	}
	return n
}

func (r *sessionRegistry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
