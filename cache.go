package prismblog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/eringen/prismblog/content"
	"github.com/eringen/prismblog/logger"
)

const (
	listingKey    = "index"
	feedKey       = "feed"
	postKeyPrefix = "post/"

	backgroundTimeout = time.Minute
)

func postKey(uid string) string {
	return postKeyPrefix + uid
}

func keyKind(key string) string {
	if strings.HasPrefix(key, postKeyPrefix) {
		return "post"
	}
	return key
}

// PageCache keeps the last generated data of each page and regenerates it
// at most once per TTL. A stale page is served as-is while it regenerates
// in the background; only a page that was never generated blocks the
// request on its generation. Generated pages are persisted to the Store.
type PageCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	ttl     time.Duration
	epoch   uint64
	group   singleflight.Group

	store   *Store
	log     logger.Logger
	metrics *Metrics
	now     func() time.Time

	bg     context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type cacheEntry struct {
	value      any
	raw        []byte
	generated  time.Time
	refreshing bool
}

// CacheInfo describes one cached page for the admin dashboard.
type CacheInfo struct {
	Key         string
	GeneratedAt time.Time
	Stale       bool
	Refreshing  bool
}

// NewPageCache creates a PageCache. store and metrics may be nil.
func NewPageCache(store *Store, ttl time.Duration, log logger.Logger, metrics *Metrics) *PageCache {
	if log == nil {
		log = logger.NewNop()
	}
	bg, cancel := context.WithCancel(context.Background())
	return &PageCache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
		store:   store,
		log:     log,
		metrics: metrics,
		now:     time.Now,
		bg:      bg,
		cancel:  cancel,
	}
}

// Prime loads persisted snapshots so they can be served before the first
// regeneration. Their age is kept, so old snapshots start out stale.
func (c *PageCache) Prime() error {
	if c.store == nil {
		return nil
	}
	snaps, err := c.store.ListSnapshots()
	if err != nil {
		return fmt.Errorf("prime page cache: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var oldest time.Time
	for _, s := range snaps {
		if _, ok := c.entries[s.Key]; ok {
			continue
		}
		c.entries[s.Key] = &cacheEntry{raw: s.Body, generated: s.GeneratedAt}
		if oldest.IsZero() || s.GeneratedAt.Before(oldest) {
			oldest = s.GeneratedAt
		}
	}
	c.log.Info("page cache primed",
		logger.Int("snapshots", len(snaps)),
		logger.Time("oldest", oldest),
	)
	return nil
}

// Invalidate marks key stale. The old value stays available as a fallback
// until a regeneration succeeds.
func (c *PageCache) Invalidate(key string) {
	c.mu.Lock()
	c.epoch++
	if e, ok := c.entries[key]; ok {
		e.generated = time.Time{}
	}
	c.mu.Unlock()
}

// InvalidateAll marks every page stale.
func (c *PageCache) InvalidateAll() {
	c.mu.Lock()
	c.epoch++
	for _, e := range c.entries {
		e.generated = time.Time{}
	}
	c.mu.Unlock()
}

// Info lists the cached pages ordered by key.
func (c *PageCache) Info() []CacheInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CacheInfo, 0, len(c.entries))
	for key, e := range c.entries {
		out = append(out, CacheInfo{
			Key:         key,
			GeneratedAt: e.generated,
			Stale:       !c.fresh(e),
			Refreshing:  e.refreshing,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Close stops background regenerations and waits for them to return.
func (c *PageCache) Close() {
	c.cancel()
	c.wg.Wait()
}

func (c *PageCache) fresh(e *cacheEntry) bool {
	return !e.generated.IsZero() && c.now().Sub(e.generated) < c.ttl
}

// put stores v unless the cache was invalidated after its generation
// started at epoch. It reports whether v was stored.
func (c *PageCache) put(key string, v any, epoch uint64) bool {
	now := c.now()
	raw, err := json.Marshal(v)
	if err != nil {
		c.log.Error("encode page snapshot", logger.String("key", key), logger.Error(err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		return false
	}
	if err == nil && c.store != nil {
		if err := c.store.SaveSnapshot(Snapshot{Key: key, Body: raw, GeneratedAt: now}); err != nil {
			c.log.Error("persist page snapshot", logger.String("key", key), logger.Error(err))
		}
	}
	c.entries[key] = &cacheEntry{value: v, raw: raw, generated: now}
	return true
}

func (c *PageCache) drop(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	if c.store != nil {
		if err := c.store.DeleteSnapshot(key); err != nil {
			c.log.Error("delete page snapshot", logger.String("key", key), logger.Error(err))
		}
	}
}

func (c *PageCache) record(key string, err error) {
	if c.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.metrics.Regenerations.WithLabelValues(keyKind(key), result).Inc()
}

// entryValue returns the cached value as T, decoding a primed snapshot on
// first use. Must be called with c.mu held.
func entryValue[T any](e *cacheEntry) (T, bool) {
	if v, ok := e.value.(T); ok {
		return v, true
	}
	var v T
	if e.raw == nil || json.Unmarshal(e.raw, &v) != nil {
		return v, false
	}
	e.value = v
	return v, true
}

// cached returns the page stored under key, generating it with gen when it
// is missing and scheduling a background regeneration when it is stale.
func cached[T any](ctx context.Context, c *PageCache, key string, gen func(context.Context) (T, error)) (T, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		if v, ok := entryValue[T](e); ok {
			if !c.fresh(e) && !e.refreshing {
				e.refreshing = true
				c.wg.Add(1)
				go refresh(c, key, gen)
			}
			c.mu.Unlock()
			return v, nil
		}
	}
	c.mu.Unlock()
	return regenerate(ctx, c, key, gen)
}

// regenerate runs gen for key, collapsing concurrent calls for the same
// key into one, and stores the result. The generation is detached from
// ctx's cancellation so one caller going away does not fail the others.
func regenerate[T any](ctx context.Context, c *PageCache, key string, gen func(context.Context) (T, error)) (T, error) {
	res, err, _ := c.group.Do(key, func() (any, error) {
		gctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), backgroundTimeout)
		defer cancel()
		stop := context.AfterFunc(c.bg, cancel)
		defer stop()

		c.mu.Lock()
		epoch := c.epoch
		c.mu.Unlock()

		start := c.now()
		v, err := gen(gctx)
		c.record(key, err)
		if err != nil {
			return nil, err
		}
		if !c.put(key, v, epoch) {
			c.log.Info("discarded page generated before invalidation", logger.String("key", key))
			return v, nil
		}
		c.log.Info("page regenerated",
			logger.String("key", key),
			logger.Duration("took", c.now().Sub(start)),
		)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}

// revalidate regenerates key in a new generation, never joining one that
// is already in flight.
func revalidate[T any](ctx context.Context, c *PageCache, key string, gen func(context.Context) (T, error)) (T, error) {
	c.group.Forget(key)
	return regenerate(ctx, c, key, gen)
}

func refresh[T any](c *PageCache, key string, gen func(context.Context) (T, error)) {
	defer c.wg.Done()

	_, err := regenerate(c.bg, c, key, gen)
	switch {
	case errors.Is(err, content.ErrNotFound):
		c.log.Info("page removed upstream", logger.String("key", key))
		c.drop(key)
		return
	case err != nil:
		c.log.Warn("background regeneration failed, serving stale page",
			logger.String("key", key), logger.Error(err))
	}
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		e.refreshing = false
	}
	c.mu.Unlock()
}
