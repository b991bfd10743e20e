// Package metrics keeps process-lifetime counters for the query pipeline.
package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tjfontaine/polyglot-query-gateway/internal/cache"
	"github.com/tjfontaine/polyglot-query-gateway/internal/core/domain"
)

// Sample is one completed request.
type Sample struct {
	Intent       domain.Intent
	Domains      []domain.DomainTag
	ResponseTime time.Duration
	Success      bool
}

// Recorder aggregates samples. Counters are updated independently, so a
// snapshot taken under load may be off by in-flight requests.
type Recorder struct {
	queries      atomic.Int64
	successes    atomic.Int64
	responseTime atomic.Int64 // nanoseconds

	mu        sync.Mutex
	byIntent  map[domain.Intent]int64
	byDomain  map[domain.DomainTag]int64
	startedAt time.Time
}

// New creates an empty recorder.
func New() *Recorder {
	return &Recorder{
		byIntent:  make(map[domain.Intent]int64),
		byDomain:  make(map[domain.DomainTag]int64),
		startedAt: time.Now(),
	}
}

// Record adds one sample.
func (r *Recorder) Record(s Sample) {
	r.queries.Add(1)
	r.responseTime.Add(int64(s.ResponseTime))
	if s.Success {
		r.successes.Add(1)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s.Intent != "" {
		r.byIntent[s.Intent]++
	}
	for _, d := range s.Domains {
		r.byDomain[d]++
	}
}

// Snapshot is the JSON view served by the admin surface.
type Snapshot struct {
	TotalQueries      int64                      `json:"total_queries"`
	SuccessfulQueries int64                      `json:"successful_queries"`
	SuccessRate       float64                    `json:"success_rate"`
	AvgResponseTimeMs float64                    `json:"avg_response_time_ms"`
	ByIntent          map[domain.Intent]int64    `json:"by_intent"`
	ByDomain          map[domain.DomainTag]int64 `json:"by_domain"`
	TopDomains        []DomainCount              `json:"top_domains"`
	Cache             *cache.Stats               `json:"cache,omitempty"`
	Uptime            string                     `json:"uptime"`
}

// DomainCount pairs a domain with its usage count.
type DomainCount struct {
	Domain domain.DomainTag `json:"domain"`
	Count  int64            `json:"count"`
}

// Snapshot returns the current aggregates. cacheStats may be nil.
func (r *Recorder) Snapshot(cacheStats *cache.Stats) Snapshot {
	total := r.queries.Load()
	ok := r.successes.Load()
	snap := Snapshot{
		TotalQueries:      total,
		SuccessfulQueries: ok,
		ByIntent:          make(map[domain.Intent]int64),
		ByDomain:          make(map[domain.DomainTag]int64),
		TopDomains:        []DomainCount{},
		Cache:             cacheStats,
		Uptime:            time.Since(r.startedAt).Round(time.Second).String(),
	}
	if total > 0 {
		snap.SuccessRate = float64(ok) / float64(total)
		snap.AvgResponseTimeMs = float64(r.responseTime.Load()) / float64(total) / float64(time.Millisecond)
	}

	r.mu.Lock()
	for k, v := range r.byIntent {
		snap.ByIntent[k] = v
	}
	for k, v := range r.byDomain {
		snap.ByDomain[k] = v
		snap.TopDomains = append(snap.TopDomains, DomainCount{Domain: k, Count: v})
	}
	r.mu.Unlock()

	sort.Slice(snap.TopDomains, func(i, j int) bool {
		if snap.TopDomains[i].Count != snap.TopDomains[j].Count {
			return snap.TopDomains[i].Count > snap.TopDomains[j].Count
		}
		return snap.TopDomains[i].Domain < snap.TopDomains[j].Domain
	})
	return snap
}
