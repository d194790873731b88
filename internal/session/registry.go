package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/weathersense/weathersense/internal/observability"
)

// Registry maps session IDs to controllers. Sessions are created on first
// use and dropped after sitting idle past the TTL.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Controller
	ttl      time.Duration
}

// NewRegistry creates a registry expiring sessions idle longer than ttl.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		sessions: make(map[string]*Controller),
		ttl:      ttl,
	}
}

// Get returns the controller for id, creating one when id is empty or
// unknown. The returned id is the canonical session ID the client should
// carry on subsequent requests.
func (r *Registry) Get(id string) (string, *Controller) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id != "" {
		if c, ok := r.sessions[id]; ok {
			return id, c
		}
	}
	id = uuid.New().String()
	c := NewController()
	r.sessions[id] = c
	observability.SessionsActive.Set(float64(len(r.sessions)))
	return id, c
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops sessions idle past the TTL and returns how many were removed.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, c := range r.sessions {
		if c.idleSince(now) > r.ttl {
			delete(r.sessions, id)
			removed++
		}
	}
	observability.SessionsActive.Set(float64(len(r.sessions)))
	return removed
}

// Run sweeps on the given interval until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.Sweep(now)
		}
	}
}
