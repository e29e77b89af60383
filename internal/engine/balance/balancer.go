// Package balance implements the read/write-path load balancer: a pool of
// backend store connections with per-connection load and health tracking.
// Selection picks the connection with the fewest outstanding requests so a
// tournament traffic spike cannot head-of-line block a single session.
package balance

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/golffinder/leaderboard-engine/internal/domain/leaderboard"
)

var (
	// ErrNoConnections is returned when the pool is empty or every
	// connection is marked unhealthy.
	ErrNoConnections = errors.New("balance: no healthy connections available")
)

// pooledConn wraps one backend connection with its load counters.
type pooledConn struct {
	store leaderboard.Store
	index int

	inFlight  atomic.Int64
	total     atomic.Int64
	failures  atomic.Int64
	unhealthy atomic.Bool
}

// LoadBalancer hands out one of several pooled backend connections per
// request. Connections are assumed stateless with respect to the caller;
// no session affinity is required.
type LoadBalancer struct {
	conns []*pooledConn

	mu         sync.Mutex
	roundRobin int
}

// New creates a load balancer over the given connections.
func New(stores ...leaderboard.Store) *LoadBalancer {
	lb := &LoadBalancer{}
	for i, s := range stores {
		lb.conns = append(lb.conns, &pooledConn{store: s, index: i})
	}
	return lb
}

// Lease is a borrowed connection. Release must be called exactly once when
// the request completes; Fail additionally records the failure and counts
// toward health marking.
type Lease struct {
	conn     *pooledConn
	released atomic.Bool
}

// Store returns the borrowed backend connection.
func (l *Lease) Store() leaderboard.Store {
	return l.conn.store
}

// Index returns the pool index of the borrowed connection.
func (l *Lease) Index() int {
	return l.conn.index
}

// Release returns the connection to the pool. Idempotent.
func (l *Lease) Release() {
	if l.released.CompareAndSwap(false, true) {
		l.conn.inFlight.Add(-1)
	}
}

// Fail releases the connection and records a failure against it.
func (l *Lease) Fail() {
	l.conn.failures.Add(1)
	l.Release()
}

// Acquire returns the connection with the lowest outstanding-request
// count, breaking ties round-robin.
func (lb *LoadBalancer) Acquire() (*Lease, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	var best *pooledConn
	bestLoad := int64(-1)
	n := len(lb.conns)
	if n == 0 {
		return nil, ErrNoConnections
	}

	// Scan starting at the round-robin cursor so equal loads rotate.
	for i := 0; i < n; i++ {
		c := lb.conns[(lb.roundRobin+i)%n]
		if c.unhealthy.Load() {
			continue
		}
		load := c.inFlight.Load()
		if best == nil || load < bestLoad {
			best = c
			bestLoad = load
		}
	}
	if best == nil {
		return nil, ErrNoConnections
	}

	lb.roundRobin = (lb.roundRobin + 1) % n
	best.inFlight.Add(1)
	best.total.Add(1)
	return &Lease{conn: best}, nil
}

// MarkUnhealthy removes a connection from rotation until MarkHealthy.
func (lb *LoadBalancer) MarkUnhealthy(index int) {
	if index >= 0 && index < len(lb.conns) {
		lb.conns[index].unhealthy.Store(true)
	}
}

// MarkHealthy restores a connection to rotation.
func (lb *LoadBalancer) MarkHealthy(index int) {
	if index >= 0 && index < len(lb.conns) {
		lb.conns[index].unhealthy.Store(false)
		lb.conns[index].failures.Store(0)
	}
}

// ConnStats is a snapshot of one connection's counters.
type ConnStats struct {
	Index     int
	InFlight  int64
	Total     int64
	Failures  int64
	Unhealthy bool
}

// Stats returns a snapshot of every connection's counters.
func (lb *LoadBalancer) Stats() []ConnStats {
	stats := make([]ConnStats, len(lb.conns))
	for i, c := range lb.conns {
		stats[i] = ConnStats{
			Index:     c.index,
			InFlight:  c.inFlight.Load(),
			Total:     c.total.Load(),
			Failures:  c.failures.Load(),
			Unhealthy: c.unhealthy.Load(),
		}
	}
	return stats
}

// Size returns the number of pooled connections.
func (lb *LoadBalancer) Size() int {
	return len(lb.conns)
}
