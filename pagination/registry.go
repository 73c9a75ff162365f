package pagination

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eringen/prismblog/content"
)

// Registry keeps the sessions of live page views, keyed by an opaque view
// ID embedded in the rendered page. A view that stays idle for longer than
// the TTL is forgotten.
type Registry struct {
	mu      sync.Mutex
	views   map[string]*view
	ttl     time.Duration
	max     int
	fetcher Fetcher
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

type view struct {
	session  *Session
	lastUsed time.Time
}

// NewRegistry creates a Registry whose sessions fetch through f. When max
// views are open, opening another evicts the least recently used one.
// Call Stop to end the background sweeper.
func NewRegistry(f Fetcher, ttl time.Duration, max int) *Registry {
	return newRegistry(f, ttl, max, time.Now)
}

func newRegistry(f Fetcher, ttl time.Duration, max int, now func() time.Time) *Registry {
	r := &Registry{
		views:   make(map[string]*view),
		ttl:     ttl,
		max:     max,
		fetcher: f,
		now:     now,
		stop:    make(chan struct{}),
	}
	go r.sweep()
	return r
}

// Open starts a session for a new page view seeded with initial.
func (r *Registry) Open(initial content.PageResult) (string, *Session) {
	id := uuid.NewString()
	s := NewSession(initial, r.fetcher)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.max > 0 && len(r.views) >= r.max {
		r.evictOldest()
	}
	r.views[id] = &view{session: s, lastUsed: r.now()}
	return id, s
}

// Get returns the live session for id and marks it used.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[id]
	if !ok {
		return nil, false
	}
	if r.expired(v) {
		delete(r.views, id)
		return nil, false
	}
	v.lastUsed = r.now()
	return v.session, true
}

// Close forgets the session for id.
func (r *Registry) Close(id string) {
	r.mu.Lock()
	delete(r.views, id)
	r.mu.Unlock()
}

// Len returns the number of open views.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

// Stop ends the sweeper. It is safe to call more than once.
func (r *Registry) Stop() {
	r.once.Do(func() { close(r.stop) })
}

func (r *Registry) expired(v *view) bool {
	return r.ttl > 0 && r.now().Sub(v.lastUsed) >= r.ttl
}

// evictOldest must be called with r.mu held.
func (r *Registry) evictOldest() {
	var oldestID string
	var oldest time.Time
	for id, v := range r.views {
		if oldestID == "" || v.lastUsed.Before(oldest) {
			oldestID, oldest = id, v.lastUsed
		}
	}
	if oldestID != "" {
		delete(r.views, oldestID)
	}
}

// Prune drops every expired view and returns how many were dropped.
func (r *Registry) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, v := range r.views {
		if r.expired(v) {
			delete(r.views, id)
			n++
		}
	}
	return n
}

func (r *Registry) sweep() {
	interval := r.ttl
	if interval <= 0 || interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.Prune()
		}
	}
}
