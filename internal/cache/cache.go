// Package cache provides the read-through TTL cache that sits in front of
// the domain fetch collaborator.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tjfontaine/polyglot-query-gateway/internal/core/domain"
	"github.com/tjfontaine/polyglot-query-gateway/internal/core/ports"
)

// DefaultTTL is how long fetched rows stay fresh.
const DefaultTTL = 5 * time.Minute

// Entry is one cached domain snapshot.
type Entry struct {
	Domain    domain.DomainTag
	Data      []domain.Record
	FetchedAt time.Time
}

// Stats is a point-in-time view of cache activity.
type Stats struct {
	Entries int              `json:"entries"`
	Hits    int64            `json:"hits"`
	Misses  int64            `json:"misses"`
	Errors  int64            `json:"errors"`
	Domains []DomainSnapshot `json:"domains"`
}

// DomainSnapshot describes one cached domain.
type DomainSnapshot struct {
	Domain    domain.DomainTag `json:"domain"`
	Records   int              `json:"records"`
	FetchedAt time.Time        `json:"fetched_at"`
}

// DomainCache is a read-through cache keyed by domain. Expiry is checked at
// read time; there is no background eviction. Concurrent misses for the
// same domain share one fetch.
type DomainCache struct {
	mu      sync.RWMutex
	entries map[domain.DomainTag]*Entry

	group  singleflight.Group
	ttl    time.Duration
	now    ports.Clock
	logger *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
}

// Option configures a DomainCache.
type Option func(*DomainCache)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *DomainCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock injects the clock used for fetchedAt and expiry checks.
func WithClock(now ports.Clock) Option {
	return func(c *DomainCache) {
		c.now = now
	}
}

// WithLogger sets the logger used for fetch failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *DomainCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates an empty cache.
func New(opts ...Option) *DomainCache {
	c := &DomainCache{
		entries: make(map[domain.DomainTag]*Entry),
		ttl:     DefaultTTL,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached rows for tag, fetching through fetcher when the
// entry is missing or expired. Fetch failures are logged and yield an empty
// result; they are not cached.
func (c *DomainCache) Get(ctx context.Context, tag domain.DomainTag, fetcher ports.Fetcher) []domain.Record {
	if data, ok := c.lookup(tag); ok {
		c.hits.Add(1)
		return data
	}
	c.misses.Add(1)

	v, err, _ := c.group.Do(string(tag), func() (any, error) {
		// another caller may have refreshed while we waited on the group
		if data, ok := c.lookup(tag); ok {
			return data, nil
		}
		data, err := fetcher.Fetch(ctx, tag)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[tag] = &Entry{Domain: tag, Data: data, FetchedAt: c.now()}
		c.mu.Unlock()
		return data, nil
	})
	if err != nil {
		c.errors.Add(1)
		c.logger.Error("domain fetch failed",
			slog.String("domain", string(tag)),
			slog.String("error", domain.ErrFetch(tag, err).Error()),
		)
		return nil
	}
	data, _ := v.([]domain.Record)
	return data
}

// GetAll fetches every tag concurrently and returns the non-empty results.
func (c *DomainCache) GetAll(ctx context.Context, tags []domain.DomainTag, fetcher ports.Fetcher) domain.DomainData {
	type result struct {
		tag  domain.DomainTag
		data []domain.Record
	}

	results := make(chan result, len(tags))
	var wg sync.WaitGroup
	for _, tag := range tags {
		wg.Add(1)
		go func(tag domain.DomainTag) {
			defer wg.Done()
			results <- result{tag: tag, data: c.Get(ctx, tag, fetcher)}
		}(tag)
	}
	wg.Wait()
	close(results)

	out := make(domain.DomainData, len(tags))
	for r := range results {
		if len(r.data) > 0 {
			out[r.tag] = r.data
		}
	}
	return out
}

func (c *DomainCache) lookup(tag domain.DomainTag) ([]domain.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[tag]
	if !ok || c.now().Sub(e.FetchedAt) >= c.ttl {
		return nil, false
	}
	return e.Data, true
}

// SetTTL changes the expiry applied to existing and future entries.
// Non-positive values are ignored.
func (c *DomainCache) SetTTL(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttl = ttl
}

// Clear drops every entry.
func (c *DomainCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[domain.DomainTag]*Entry)
}

// ClearDomain drops the entry for tag. DomainAll behaves like Clear.
func (c *DomainCache) ClearDomain(tag domain.DomainTag) {
	if tag == domain.DomainAll {
		c.Clear()
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, tag)
}

// Stats reports entry counts and hit/miss counters.
func (c *DomainCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Stats{
		Entries: len(c.entries),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Errors:  c.errors.Load(),
	}
	for _, tag := range domain.ConcreteDomains {
		if e, ok := c.entries[tag]; ok {
			s.Domains = append(s.Domains, DomainSnapshot{Domain: tag, Records: len(e.Data), FetchedAt: e.FetchedAt})
		}
	}
	return s
}
