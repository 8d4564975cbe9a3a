package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vtour-agent-core/server/internal/agent/model"
	errx "github.com/vtour-agent-core/server/internal/core/error"
	logx "github.com/vtour-agent-core/server/pkg/logger"
)

type entry struct {
	catalog   *model.Catalog
	expiresAt time.Time
}

// Stats reports cache effectiveness for the health endpoint.
type Stats struct {
	Entries int      `json:"entries"`
	Hits    uint64   `json:"hits"`
	Misses  uint64   `json:"misses"`
	Stale   uint64   `json:"staleServed"`
	Demos   []string `json:"demos"`
}

// Cache is a read-through, TTL-bound cache of per-demo catalogs. Entries are
// immutable snapshots replaced whole on refresh; readers never see a partial update.
type Cache struct {
	source Source
	ttl    time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]*entry
	group   singleflight.Group

	hits   atomic.Uint64
	misses atomic.Uint64
	stale  atomic.Uint64
}

func NewCache(source Source, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{
		source:  source,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// Get returns the catalog for slug, loading it on a miss or after expiry.
// A demo unknown to the backend yields the fallback catalog. A backend failure
// serves the stale snapshot when one exists, and an upstream error otherwise.
func (c *Cache) Get(ctx context.Context, slug string) (*model.Catalog, error) {
	c.mu.RLock()
	e, ok := c.entries[slug]
	c.mu.RUnlock()
	if ok && c.now().Before(e.expiresAt) {
		c.hits.Add(1)
		return e.catalog, nil
	}
	c.misses.Add(1)

	v, err, _ := c.group.Do(slug, func() (any, error) {
		return c.load(ctx, slug)
	})
	if err != nil {
		if ok {
			c.stale.Add(1)
			logx.Warn().Err(err).Str("demo_id", slug).Msg("catalog refresh failed, serving stale snapshot")
			return e.catalog, nil
		}
		return nil, err
	}
	return v.(*model.Catalog), nil
}

func (c *Cache) load(ctx context.Context, slug string) (*model.Catalog, error) {
	start := c.now()
	cat, err := c.source.Load(ctx, slug)
	switch {
	case errors.Is(err, ErrDemoNotFound):
		logx.Warn().Str("demo_id", slug).Msg("demo not found, using fallback catalog")
		cat = FallbackCatalog(slug)
	case err != nil:
		logx.Error().Err(err).Str("demo_id", slug).Msg("catalog load failed")
		return nil, errx.WrapUpstream(err)
	case cat == nil:
		return nil, errx.Internal(errors.New("catalog source returned nil catalog"))
	}
	if cat.LoadedAt.IsZero() {
		cat.LoadedAt = c.now()
	}

	c.mu.Lock()
	c.entries[slug] = &entry{catalog: cat, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()

	logx.Debug().
		Str("demo_id", slug).
		Int("items", len(cat.Items)).
		Int("knowledge", len(cat.Knowledge)).
		Bool("fallback", cat.Fallback).
		Dur("took", c.now().Sub(start)).
		Msg("catalog loaded")
	return cat, nil
}

// Invalidate drops the snapshot of one demo.
func (c *Cache) Invalidate(slug string) {
	c.mu.Lock()
	delete(c.entries, slug)
	c.mu.Unlock()
}

// InvalidateAll drops every snapshot.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]*entry)
	c.mu.Unlock()
}

func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	demos := make([]string, 0, len(c.entries))
	for slug := range c.entries {
		demos = append(demos, slug)
	}
	return Stats{
		Entries: len(c.entries),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Stale:   c.stale.Load(),
		Demos:   demos,
	}
}
