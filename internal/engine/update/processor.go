// Package update implements the real-time update pipeline: a single-writer
// queue that batches outbound events by count or by time and dispatches
// them to per-leaderboard subscriber streams, with a priority lane for
// latency-sensitive live-position updates.
package update

import (
	"sync"
	"time"

	"github.com/golffinder/leaderboard-engine/internal/domain/leaderboard"
	"github.com/golffinder/leaderboard-engine/internal/engine/metrics"
	"github.com/golffinder/leaderboard-engine/pkg/logger"
)

// Defaults. Flushing on whichever of count or interval comes first is what
// bounds end-to-end update latency to roughly 200ms under load.
const (
	DefaultBatchSize     = 100
	DefaultInterval      = 50 * time.Millisecond
	DefaultMaxConcurrent = 1000

	// DefaultMaxDepth caps the queue. Past it, collapsible events
	// coalesce last-value-wins instead of growing the queue.
	DefaultMaxDepth = 10000
)

// collapsible reports whether an event type may be coalesced under
// back-pressure. Entry lifecycle events are must-deliver.
func collapsible(t leaderboard.UpdateType) bool {
	return t == leaderboard.UpdatePositionsChanged || t == leaderboard.UpdateLivePosition
}

// Config holds processor configuration.
type Config struct {
	BatchSize     int
	Interval      time.Duration
	MaxConcurrent int
	MaxDepth      int
	Broker        *Broker
	Monitor       *metrics.Monitor
	Logger        *logger.Logger
}

// Processor is the batched dispatcher. Many producers enqueue; a single
// flush loop is the sole consumer, so queue mutations are linearized.
type Processor struct {
	broker  *Broker
	monitor *metrics.Monitor
	log     *logger.Logger

	mu    sync.Mutex
	queue []leaderboard.Update

	batchSize     int
	interval      time.Duration
	maxConcurrent int
	maxDepth      int

	flushCh chan struct{}
	closeCh chan struct{}
	wg      sync.WaitGroup
	closed  bool
}

// NewProcessor creates and starts a processor.
func NewProcessor(cfg Config) *Processor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	if cfg.Broker == nil {
		cfg.Broker = NewBroker(cfg.Logger)
	}
	if cfg.Monitor == nil {
		cfg.Monitor = metrics.NewMonitor()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	p := &Processor{
		broker:        cfg.Broker,
		monitor:       cfg.Monitor,
		log:           cfg.Logger.With(logger.Component("update")),
		batchSize:     cfg.BatchSize,
		interval:      cfg.Interval,
		maxConcurrent: cfg.MaxConcurrent,
		maxDepth:      cfg.MaxDepth,
		flushCh:       make(chan struct{}, 1),
		closeCh:       make(chan struct{}),
	}

	p.wg.Add(1)
	go p.flushLoop()

	return p
}

// Broker returns the subscriber broker this processor dispatches to.
func (p *Processor) Broker() *Broker {
	return p.broker
}

// Enqueue appends an update to the normal FIFO lane.
func (p *Processor) Enqueue(u leaderboard.Update) {
	p.enqueue(u, false)
}

// EnqueuePriority inserts an update at the front of the queue, giving it
// head-of-line priority over anything enqueued earlier but not yet
// flushed. Used for live-position updates.
func (p *Processor) EnqueuePriority(u leaderboard.Update) {
	p.enqueue(u, true)
}

func (p *Processor) enqueue(u leaderboard.Update, priority bool) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}

	if len(p.queue) >= p.maxDepth && collapsible(u.Type) {
		// Back-pressure: replace the newest collapsible event for the
		// same leaderboard instead of growing the queue.
		if p.coalesceLocked(u) {
			p.mu.Unlock()
			return
		}
	}

	if priority {
		p.queue = append([]leaderboard.Update{u}, p.queue...)
	} else {
		p.queue = append(p.queue, u)
	}
	depth := len(p.queue)
	p.mu.Unlock()

	p.monitor.RecordCall("update.Enqueue")

	if depth >= p.batchSize {
		select {
		case p.flushCh <- struct{}{}:
		default:
		}
	}
}

// coalesceLocked replaces an existing collapsible event for the same
// leaderboard and type, last value wins. Caller holds the lock.
func (p *Processor) coalesceLocked(u leaderboard.Update) bool {
	for i := len(p.queue) - 1; i >= 0; i-- {
		q := p.queue[i]
		if q.LeaderboardID == u.LeaderboardID && q.Type == u.Type {
			p.queue[i] = u
			return true
		}
	}
	return false
}

// Depth returns the current queue length.
func (p *Processor) Depth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// flushLoop is the sole consumer. It flushes when the batch fills or the
// interval elapses, whichever comes first.
func (p *Processor) flushLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.closeCh:
			for p.Depth() > 0 {
				p.flush()
			}
			return
		case <-ticker.C:
			p.flush()
		case <-p.flushCh:
			p.flush()
		}
	}
}

// flush takes up to batchSize items off the queue and fans them out.
// Items for different leaderboards dispatch concurrently; items for the
// same leaderboard stay in enqueue order.
func (p *Processor) flush() {
	p.mu.Lock()
	if len(p.queue) == 0 {
		p.mu.Unlock()
		return
	}
	n := len(p.queue)
	if n > p.batchSize {
		n = p.batchSize
	}
	batch := make([]leaderboard.Update, n)
	copy(batch, p.queue[:n])
	p.queue = append(p.queue[:0], p.queue[n:]...)
	p.mu.Unlock()

	start := time.Now()

	// Group by leaderboard so per-board ordering survives concurrency.
	groups := make(map[string][]leaderboard.Update)
	order := make([]string, 0, len(batch))
	for _, u := range batch {
		if _, seen := groups[u.LeaderboardID]; !seen {
			order = append(order, u.LeaderboardID)
		}
		groups[u.LeaderboardID] = append(groups[u.LeaderboardID], u)
	}

	sem := make(chan struct{}, p.maxConcurrent)
	var wg sync.WaitGroup
	for _, id := range order {
		wg.Add(1)
		sem <- struct{}{}
		go func(events []leaderboard.Update) {
			defer wg.Done()
			defer func() { <-sem }()
			for _, u := range events {
				p.broker.Publish(u)
			}
		}(groups[id])
	}
	wg.Wait()

	p.monitor.RecordCall("update.Flush")
	p.monitor.RecordDuration("update.Flush", time.Since(start))

	// A full batch means more may be waiting; flush again promptly.
	if n == p.batchSize {
		select {
		case p.flushCh <- struct{}{}:
		default:
		}
	}
}

// Close stops the flush loop after draining the queue. Idempotent.
func (p *Processor) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.closeCh)
	p.wg.Wait()
}
