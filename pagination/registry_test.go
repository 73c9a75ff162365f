package pagination

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/prismblog/content"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestRegistry(t *testing.T, ttl time.Duration, max int) (*Registry, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	r := newRegistry(&pages{}, ttl, max, clock.Now)
	t.Cleanup(r.Stop)
	return r, clock
}

func TestRegistry_OpenAndGet(t *testing.T) {
	r, _ := newTestRegistry(t, time.Hour, 0)

	id, s := r.Open(content.PageResult{Results: []content.Post{post("p1")}, NextPage: "/page2"})
	require.NotEmpty(t, id)

	got, ok := r.Get(id)
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, r.Len())

	_, ok = r.Get("unknown")
	assert.False(t, ok)
}

func TestRegistry_ViewsAreIndependent(t *testing.T) {
	r, _ := newTestRegistry(t, time.Hour, 0)
	seed := content.PageResult{Results: []content.Post{post("p1")}, NextPage: "/page2"}

	id1, _ := r.Open(seed)
	id2, _ := r.Open(seed)
	assert.NotEqual(t, id1, id2)

	s1, _ := r.Get(id1)
	s2, _ := r.Get(id2)
	assert.NotSame(t, s1, s2)
}

func TestRegistry_ExpiresIdleViews(t *testing.T) {
	r, clock := newTestRegistry(t, 10*time.Minute, 0)
	idle, _ := r.Open(content.PageResult{})
	active, _ := r.Open(content.PageResult{})

	clock.Advance(6 * time.Minute)
	_, ok := r.Get(active)
	require.True(t, ok)

	clock.Advance(5 * time.Minute)
	_, ok = r.Get(idle)
	assert.False(t, ok, "idle view should have expired")
	_, ok = r.Get(active)
	assert.True(t, ok, "recently used view should survive")
}

func TestRegistry_Prune(t *testing.T) {
	r, clock := newTestRegistry(t, time.Minute, 0)
	r.Open(content.PageResult{})
	r.Open(content.PageResult{})

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 2, r.Prune())
	assert.Zero(t, r.Len())
}

func TestRegistry_EvictsLeastRecentlyUsed(t *testing.T) {
	r, clock := newTestRegistry(t, time.Hour, 2)
	first, _ := r.Open(content.PageResult{})
	clock.Advance(time.Second)
	second, _ := r.Open(content.PageResult{})
	clock.Advance(time.Second)

	_, ok := r.Get(first)
	require.True(t, ok)
	clock.Advance(time.Second)

	third, _ := r.Open(content.PageResult{})
	assert.Equal(t, 2, r.Len())

	_, ok = r.Get(second)
	assert.False(t, ok, "least recently used view should be evicted")
	_, ok = r.Get(first)
	assert.True(t, ok)
	_, ok = r.Get(third)
	assert.True(t, ok)
}

func TestRegistry_Close(t *testing.T) {
	r, _ := newTestRegistry(t, time.Hour, 0)
	id, _ := r.Open(content.PageResult{})
	r.Close(id)
	_, ok := r.Get(id)
	assert.False(t, ok)

	r.Stop()
	r.Stop()
}
