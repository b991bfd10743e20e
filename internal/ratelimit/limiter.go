// Package ratelimit implements the per-client dual fixed-window limiter that
// guards the query pipeline.
package ratelimit

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/tjfontaine/polyglot-query-gateway/internal/core/ports"
)

const (
	DefaultMinuteLimit  = 30
	DefaultHourLimit    = 500
	DefaultMinuteWindow = time.Minute
	DefaultHourWindow   = time.Hour

	shardCount = 32
)

// WindowKind names one of the two windows tracked per client.
type WindowKind string

const (
	WindowMinute WindowKind = "minute"
	WindowHour   WindowKind = "hour"
)

// Limits configures both windows.
type Limits struct {
	MinuteLimit  int
	HourLimit    int
	MinuteWindow time.Duration
	HourWindow   time.Duration
}

// DefaultLimits returns 30 requests per minute and 500 per hour.
func DefaultLimits() Limits {
	return Limits{
		MinuteLimit:  DefaultMinuteLimit,
		HourLimit:    DefaultHourLimit,
		MinuteWindow: DefaultMinuteWindow,
		HourWindow:   DefaultHourWindow,
	}
}

func (l Limits) withDefaults() Limits {
	def := DefaultLimits()
	if l.MinuteLimit <= 0 {
		l.MinuteLimit = def.MinuteLimit
	}
	if l.HourLimit <= 0 {
		l.HourLimit = def.HourLimit
	}
	if l.MinuteWindow <= 0 {
		l.MinuteWindow = def.MinuteWindow
	}
	if l.HourWindow <= 0 {
		l.HourWindow = def.HourWindow
	}
	return l
}

// Decision is the outcome of Check.
type Decision struct {
	Allowed bool
	// RetryAfter is whole seconds until the denying window resets; zero when allowed.
	RetryAfter int
	// Limit, Remaining and ResetAt describe the window closest to exhaustion.
	Limit     int
	Remaining int
	ResetAt   time.Time
	Window    WindowKind
}

type window struct {
	count   int
	resetAt time.Time
}

// expired reports whether the window has rolled over at now.
func (w *window) expired(now time.Time) bool {
	return w.resetAt.IsZero() || !now.Before(w.resetAt)
}

type client struct {
	minute window
	hour   window
}

type shard struct {
	mu      sync.Mutex
	clients map[string]*client
}

// Limiter is a dual fixed-window counter keyed by client id. Counts are
// checked and incremented under a per-shard lock so one client can never
// exceed a window limit, even under concurrent calls.
//
// Windows are fixed, not sliding: a client can send up to twice the limit in
// a short burst that straddles a reset.
type Limiter struct {
	shards [shardCount]*shard

	limitsMu sync.RWMutex
	limits   Limits

	now    ports.Clock
	logger *slog.Logger
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock injects the clock used for window arithmetic.
func WithClock(now ports.Clock) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// WithLogger sets the logger used by the sweeper.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a limiter. Zero fields in limits take the defaults.
func New(limits Limits, opts ...Option) *Limiter {
	l := &Limiter{
		limits: limits.withDefaults(),
		now:    time.Now,
		logger: slog.Default(),
	}
	for i := range l.shards {
		l.shards[i] = &shard{clients: make(map[string]*client)}
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiter) shardFor(clientID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(clientID))
	return l.shards[h.Sum32()%shardCount]
}

// Limits returns the current configuration.
func (l *Limiter) Limits() Limits {
	l.limitsMu.RLock()
	defer l.limitsMu.RUnlock()
	return l.limits
}

// SetLimits swaps the configuration. Open windows keep their reset time;
// the new limits apply to their next check.
func (l *Limiter) SetLimits(limits Limits) {
	l.limitsMu.Lock()
	l.limits = limits.withDefaults()
	l.limitsMu.Unlock()
}

// Check records one request for clientID. A request is counted against both
// windows only when both allow it.
func (l *Limiter) Check(clientID string) Decision {
	limits := l.Limits()
	now := l.now()

	s := l.shardFor(clientID)
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clients[clientID]
	if !ok {
		c = &client{}
		s.clients[clientID] = c
	}
	if c.minute.expired(now) {
		c.minute = window{resetAt: now.Add(limits.MinuteWindow)}
	}
	if c.hour.expired(now) {
		c.hour = window{resetAt: now.Add(limits.HourWindow)}
	}

	minuteOK := c.minute.count < limits.MinuteLimit
	hourOK := c.hour.count < limits.HourLimit

	if !minuteOK || !hourOK {
		d := Decision{}
		if !minuteOK {
			d = denied(WindowMinute, limits.MinuteLimit, c.minute.resetAt, now)
		}
		if !hourOK {
			if hd := denied(WindowHour, limits.HourLimit, c.hour.resetAt, now); hd.RetryAfter > d.RetryAfter {
				d = hd
			}
		}
		return d
	}

	c.minute.count++
	c.hour.count++

	minuteLeft := limits.MinuteLimit - c.minute.count
	hourLeft := limits.HourLimit - c.hour.count
	if hourLeft < minuteLeft {
		return Decision{Allowed: true, Limit: limits.HourLimit, Remaining: hourLeft, ResetAt: c.hour.resetAt, Window: WindowHour}
	}
	return Decision{Allowed: true, Limit: limits.MinuteLimit, Remaining: minuteLeft, ResetAt: c.minute.resetAt, Window: WindowMinute}
}

func denied(kind WindowKind, limit int, resetAt, now time.Time) Decision {
	return Decision{
		RetryAfter: RetryAfterSeconds(resetAt.Sub(now)),
		Limit:      limit,
		ResetAt:    resetAt,
		Window:     kind,
	}
}

// RetryAfterSeconds rounds d up to whole seconds, never below one.
func RetryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	return max(secs, 1)
}

// Reset drops all state for clientID and reports whether any existed.
func (l *Limiter) Reset(clientID string) bool {
	s := l.shardFor(clientID)
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.clients[clientID]
	delete(s.clients, clientID)
	return ok
}

// Sweep removes clients whose windows have all rolled over and returns how
// many were removed.
func (l *Limiter) Sweep() int {
	now := l.now()
	removed := 0
	for _, s := range l.shards {
		s.mu.Lock()
		for id, c := range s.clients {
			if c.minute.expired(now) && c.hour.expired(now) {
				delete(s.clients, id)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Run sweeps every minute window until ctx is done.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(l.Limits().MinuteWindow)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				l.logger.Debug("rate limiter sweep", slog.Int("removed", n))
			}
		}
	}
}

// ClientStats is one client's view in Stats.
type ClientStats struct {
	ClientID      string    `json:"client_id"`
	MinuteCount   int       `json:"minute_count"`
	MinuteResetAt time.Time `json:"minute_reset_at"`
	HourCount     int       `json:"hour_count"`
	HourResetAt   time.Time `json:"hour_reset_at"`
}

// Stats is a snapshot of the limiter state.
type Stats struct {
	Clients      int           `json:"clients"`
	MinuteLimit  int           `json:"minute_limit"`
	HourLimit    int           `json:"hour_limit"`
	MinuteWindow string        `json:"minute_window"`
	HourWindow   string        `json:"hour_window"`
	Entries      []ClientStats `json:"entries"`
}

// Stats returns a snapshot sorted by client id. Expired windows report a
// zero count.
func (l *Limiter) Stats() Stats {
	limits := l.Limits()
	now := l.now()

	st := Stats{
		MinuteLimit:  limits.MinuteLimit,
		HourLimit:    limits.HourLimit,
		MinuteWindow: limits.MinuteWindow.String(),
		HourWindow:   limits.HourWindow.String(),
		Entries:      []ClientStats{},
	}
	for _, s := range l.shards {
		s.mu.Lock()
		for id, c := range s.clients {
			cs := ClientStats{ClientID: id}
			if !c.minute.expired(now) {
				cs.MinuteCount, cs.MinuteResetAt = c.minute.count, c.minute.resetAt
			}
			if !c.hour.expired(now) {
				cs.HourCount, cs.HourResetAt = c.hour.count, c.hour.resetAt
			}
			st.Entries = append(st.Entries, cs)
		}
		s.mu.Unlock()
	}
	sort.Slice(st.Entries, func(i, j int) bool { return st.Entries[i].ClientID < st.Entries[j].ClientID })
	st.Clients = len(st.Entries)
	return st
}
