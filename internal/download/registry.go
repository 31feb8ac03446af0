package download

import (
	"errors"
	"sort"
	"sync"

	"blobnet/internal/domain"
)

// ErrClosed is returned by LoadOrCreate once the registry is closed.
var ErrClosed = errors.New("download registry closed")

// Registry maps descriptor hashes to in-flight sessions. It holds at
// most one session per descriptor.
type Registry struct {
	mu       sync.Mutex
	sessions map[domain.ContentDescriptorID]*Session
	closed   bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[domain.ContentDescriptorID]*Session)}
}

// LoadOrCreate returns the session registered under id, or registers the
// session built by create. created reports which happened. A closed
// registry accepts no new sessions.
func (r *Registry) LoadOrCreate(id domain.ContentDescriptorID, create func() *Session) (s *Session, created bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok {
		return s, false, nil
	}
	if r.closed {
		return nil, false, ErrClosed
	}
	s = create()
	r.sessions[id] = s
	return s, true, nil
}

// Close stops the registry from accepting new sessions and returns the
// sessions registered at that moment, oldest first.
func (r *Registry) Close() []*Session {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return r.Snapshot()
}

// Remove unregisters s if it is still the session registered under id.
// It reports whether anything was removed.
func (r *Registry) Remove(id domain.ContentDescriptorID, s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.sessions[id]; ok && cur == s {
		delete(r.sessions, id)
		return true
	}
	return false
}

// Get returns the session registered under id.
func (r *Registry) Get(id domain.ContentDescriptorID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Snapshot returns the registered sessions, oldest first.
func (r *Registry) Snapshot() []*Session {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.Before(sessions[j].StartedAt)
	})
	return sessions
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
