// Package cache implements the multi-layer leaderboard cache: TTL-expiring,
// LRU-evicting in-memory slots keyed by leaderboard id, by course id
// (leaderboard lists), by course+period (overall lists), and by leaderboard
// id again (position snapshots), with cascade invalidation.
//
// The cache is an accelerator, not a source of truth. Anything it returns
// can be regenerated from the backing store, so eviction is approximate
// (access counters, not exact recency) and invalidation is coarse: a write
// to one leaderboard drops every composite view that could contain it.
package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/golffinder/leaderboard-engine/internal/domain/leaderboard"
)

// Default TTLs by view. Tournament views are volatile; overall views are
// stable aggregates.
const (
	DefaultTTL    = 300 * time.Second
	TournamentTTL = 30 * time.Second
	OverallTTL    = 600 * time.Second

	// DefaultCapacity bounds the single-leaderboard layer. When exceeded,
	// the bottom 10% by access count is evicted.
	DefaultCapacity = 1000
)

// slot wraps a single cached leaderboard.
type slot struct {
	value       *leaderboard.Leaderboard
	cachedAt    time.Time
	ttl         time.Duration
	accessCount atomic.Int64
}

// listSlot wraps a cached leaderboard list (course or overall view).
type listSlot struct {
	values      []*leaderboard.Leaderboard
	cachedAt    time.Time
	ttl         time.Duration
	accessCount atomic.Int64
}

// posSlot wraps a cached position snapshot for one leaderboard.
type posSlot struct {
	entries  []*leaderboard.Entry
	cachedAt time.Time
	ttl      time.Duration
}

func expired(cachedAt time.Time, ttl time.Duration, now time.Time) bool {
	return now.Sub(cachedAt) > ttl
}

// Cache is the multi-layer leaderboard cache. All mutations are serialized
// behind a single writer lock; reads proceed concurrently and always see a
// consistent post-mutation snapshot (values are cloned on the way in and
// on the way out).
type Cache struct {
	mu        sync.RWMutex
	single    map[string]*slot
	course    map[string]*listSlot
	overall   map[string]*listSlot
	positions map[string]*posSlot

	capacity int
	now      func() time.Time

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// Option configures the cache.
type Option func(*Cache)

// WithCapacity overrides the single-layer capacity.
func WithCapacity(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		single:    make(map[string]*slot),
		course:    make(map[string]*listSlot),
		overall:   make(map[string]*listSlot),
		positions: make(map[string]*posSlot),
		capacity:  DefaultCapacity,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// overallKey builds the key for the course+period layer.
func overallKey(courseID string, period leaderboard.Period) string {
	return courseID + "|" + string(period)
}

// ─────────────────────────────────────────────────────────────────────────────
// SINGLE LEADERBOARD LAYER
// ─────────────────────────────────────────────────────────────────────────────

// Get returns the cached leaderboard, or nil on a miss. Expired entries
// are treated as absent and removed lazily.
func (c *Cache) Get(id string) *leaderboard.Leaderboard {
	now := c.now()

	c.mu.RLock()
	s, ok := c.single[id]
	if ok && !expired(s.cachedAt, s.ttl, now) {
		s.accessCount.Add(1)
		value := s.value.Clone()
		c.mu.RUnlock()
		c.hits.Add(1)
		return value
	}
	c.mu.RUnlock()

	if ok {
		// Lazy expiry: physically remove under the write lock.
		c.mu.Lock()
		if s2, still := c.single[id]; still && expired(s2.cachedAt, s2.ttl, c.now()) {
			delete(c.single, id)
		}
		c.mu.Unlock()
	}
	c.misses.Add(1)
	return nil
}

// Set caches a leaderboard with the given TTL, evicting under pressure.
func (c *Cache) Set(lb *leaderboard.Leaderboard, ttl time.Duration) {
	if lb == nil || lb.ID == "" || ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.single[lb.ID] = &slot{
		value:    lb.Clone(),
		cachedAt: c.now(),
		ttl:      ttl,
	}
	if len(c.single) > c.capacity {
		c.evictLocked()
	}
}

// evictLocked removes the bottom 10% of the single layer by ascending
// access count. Caller holds the write lock.
func (c *Cache) evictLocked() {
	toEvict := len(c.single) / 10
	if toEvict < 1 {
		toEvict = 1
	}

	for i := 0; i < toEvict; i++ {
		var victim string
		var victimCount int64 = -1
		for id, s := range c.single {
			count := s.accessCount.Load()
			if victimCount < 0 || count < victimCount {
				victim = id
				victimCount = count
			}
		}
		if victim == "" {
			return
		}
		delete(c.single, victim)
		c.evictions.Add(1)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// COURSE LIST LAYER
// ─────────────────────────────────────────────────────────────────────────────

// GetByCourse returns the cached leaderboard list for a course, or nil.
func (c *Cache) GetByCourse(courseID string) []*leaderboard.Leaderboard {
	return c.getList(c.course, courseID)
}

// SetByCourse caches the leaderboard list for a course.
func (c *Cache) SetByCourse(courseID string, boards []*leaderboard.Leaderboard, ttl time.Duration) {
	c.setList(c.course, courseID, boards, ttl)
}

// GetOverall returns the cached overall list for a course+period, or nil.
// An empty course id addresses the global view.
func (c *Cache) GetOverall(courseID string, period leaderboard.Period) []*leaderboard.Leaderboard {
	return c.getList(c.overall, overallKey(courseID, period))
}

// SetOverall caches the overall list for a course+period.
func (c *Cache) SetOverall(courseID string, period leaderboard.Period, boards []*leaderboard.Leaderboard, ttl time.Duration) {
	c.setList(c.overall, overallKey(courseID, period), boards, ttl)
}

func (c *Cache) getList(layer map[string]*listSlot, key string) []*leaderboard.Leaderboard {
	now := c.now()

	c.mu.RLock()
	s, ok := layer[key]
	if ok && !expired(s.cachedAt, s.ttl, now) {
		s.accessCount.Add(1)
		out := make([]*leaderboard.Leaderboard, len(s.values))
		for i, lb := range s.values {
			out[i] = lb.Clone()
		}
		c.mu.RUnlock()
		c.hits.Add(1)
		return out
	}
	c.mu.RUnlock()

	if ok {
		c.mu.Lock()
		if s2, still := layer[key]; still && expired(s2.cachedAt, s2.ttl, c.now()) {
			delete(layer, key)
		}
		c.mu.Unlock()
	}
	c.misses.Add(1)
	return nil
}

func (c *Cache) setList(layer map[string]*listSlot, key string, boards []*leaderboard.Leaderboard, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	values := make([]*leaderboard.Leaderboard, 0, len(boards))
	for _, lb := range boards {
		if lb != nil {
			values = append(values, lb.Clone())
		}
	}

	c.mu.Lock()
	layer[key] = &listSlot{
		values:   values,
		cachedAt: c.now(),
		ttl:      ttl,
	}
	c.mu.Unlock()
}

// ─────────────────────────────────────────────────────────────────────────────
// POSITION SNAPSHOT LAYER
// ─────────────────────────────────────────────────────────────────────────────

// GetPositions returns the cached position snapshot for a leaderboard.
func (c *Cache) GetPositions(leaderboardID string) []*leaderboard.Entry {
	now := c.now()

	c.mu.RLock()
	s, ok := c.positions[leaderboardID]
	if ok && !expired(s.cachedAt, s.ttl, now) {
		out := make([]*leaderboard.Entry, len(s.entries))
		for i, e := range s.entries {
			out[i] = e.Clone()
		}
		c.mu.RUnlock()
		c.hits.Add(1)
		return out
	}
	c.mu.RUnlock()

	if ok {
		c.mu.Lock()
		if s2, still := c.positions[leaderboardID]; still && expired(s2.cachedAt, s2.ttl, c.now()) {
			delete(c.positions, leaderboardID)
		}
		c.mu.Unlock()
	}
	c.misses.Add(1)
	return nil
}

// SetPositions caches a position snapshot.
func (c *Cache) SetPositions(leaderboardID string, entries []*leaderboard.Entry, ttl time.Duration) {
	if leaderboardID == "" || ttl <= 0 {
		return
	}
	values := make([]*leaderboard.Entry, 0, len(entries))
	for _, e := range entries {
		if e != nil {
			values = append(values, e.Clone())
		}
	}

	c.mu.Lock()
	c.positions[leaderboardID] = &posSlot{
		entries:  values,
		cachedAt: c.now(),
		ttl:      ttl,
	}
	c.mu.Unlock()
}

// ─────────────────────────────────────────────────────────────────────────────
// INVALIDATION
// ─────────────────────────────────────────────────────────────────────────────

// InvalidateCascade removes the single slot for a leaderboard, every list
// slot that contains it, and its position snapshot. Coarse on purpose:
// correctness over precision.
func (c *Cache) InvalidateCascade(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.single, id)
	delete(c.positions, id)

	for key, s := range c.course {
		if listContains(s.values, id) {
			delete(c.course, key)
		}
	}
	for key, s := range c.overall {
		if listContains(s.values, id) {
			delete(c.overall, key)
		}
	}
}

func listContains(boards []*leaderboard.Leaderboard, id string) bool {
	for _, lb := range boards {
		if lb.ID == id {
			return true
		}
	}
	return false
}

// InvalidateCourse drops the course-list slot for one course. Used when a
// leaderboard is created: the new board is not in any cached list yet, so
// membership scanning cannot find it.
func (c *Cache) InvalidateCourse(courseID string) {
	c.mu.Lock()
	delete(c.course, courseID)
	c.mu.Unlock()
}

// Clear drops every layer.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.single = make(map[string]*slot)
	c.course = make(map[string]*listSlot)
	c.overall = make(map[string]*listSlot)
	c.positions = make(map[string]*posSlot)
}

// ─────────────────────────────────────────────────────────────────────────────
// MAINTENANCE
// ─────────────────────────────────────────────────────────────────────────────

// Sweep proactively removes expired slots from every layer and returns the
// number removed. Run periodically by the background scheduler; lazy expiry
// on read covers the window between sweeps.
func (c *Cache) Sweep() int {
	now := c.now()
	removed := 0

	c.mu.Lock()
	defer c.mu.Unlock()

	for id, s := range c.single {
		if expired(s.cachedAt, s.ttl, now) {
			delete(c.single, id)
			removed++
		}
	}
	for key, s := range c.course {
		if expired(s.cachedAt, s.ttl, now) {
			delete(c.course, key)
			removed++
		}
	}
	for key, s := range c.overall {
		if expired(s.cachedAt, s.ttl, now) {
			delete(c.overall, key)
			removed++
		}
	}
	for id, s := range c.positions {
		if expired(s.cachedAt, s.ttl, now) {
			delete(c.positions, id)
			removed++
		}
	}
	return removed
}

// Stats is a snapshot of cache counters and layer sizes.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Single    int
	Course    int
	Overall   int
	Positions int
}

// HitRate returns the hit rate, or -1 with no traffic.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return -1
	}
	return float64(s.Hits) / float64(total)
}

// Stats returns a snapshot of counters and layer sizes.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Single:    len(c.single),
		Course:    len(c.course),
		Overall:   len(c.overall),
		Positions: len(c.positions),
	}
}
