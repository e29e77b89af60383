// Broker: registry of subscriber channels keyed by leaderboard id, with a
// throttling relay that collapses bursts within a window to latest state.
package update

import (
	"sync"
	"time"

	"github.com/golffinder/leaderboard-engine/internal/domain/leaderboard"
	"github.com/golffinder/leaderboard-engine/pkg/logger"
)

// Throttle windows. Single-board streams relay at ~50ms; tournament
// aggregate streams batch at ~100ms.
const (
	DefaultThrottle  = 50 * time.Millisecond
	DefaultAggWindow = 100 * time.Millisecond

	// relayBuffer absorbs publish bursts between relay ticks. A full
	// buffer drops the event: delivery is at-most-once by contract.
	relayBuffer = 256
	outBuffer   = 16
)

// subscriber is one filtered, throttled stream.
type subscriber struct {
	id     uint64
	boards map[string]bool

	in   chan leaderboard.Update
	out  chan leaderboard.Update
	done chan struct{}
	once sync.Once
}

// aggSubscriber is a tournament-wide stream delivering batched updates.
type aggSubscriber struct {
	id     uint64
	boards map[string]bool

	in   chan leaderboard.Update
	out  chan []leaderboard.Update
	done chan struct{}
	once sync.Once
}

// Broker fans updates out to subscriber streams. Each update goes to the
// streams watching its leaderboard id; delivery is at-most-once, with no
// retry and no persistence of undelivered events.
type Broker struct {
	mu     sync.RWMutex
	subs   map[uint64]*subscriber
	aggs   map[uint64]*aggSubscriber
	nextID uint64

	throttle  time.Duration
	aggWindow time.Duration
	log       *logger.Logger
}

// NewBroker creates a broker with default throttle windows.
func NewBroker(log *logger.Logger) *Broker {
	if log == nil {
		log = logger.Default()
	}
	return &Broker{
		subs:      make(map[uint64]*subscriber),
		aggs:      make(map[uint64]*aggSubscriber),
		throttle:  DefaultThrottle,
		aggWindow: DefaultAggWindow,
		log:       log.With(logger.Component("broker")),
	}
}

// SetThrottle overrides the relay windows. Intended for tests.
func (b *Broker) SetThrottle(single, aggregate time.Duration) {
	if single > 0 {
		b.throttle = single
	}
	if aggregate > 0 {
		b.aggWindow = aggregate
	}
}

// Subscribe returns a throttled stream of updates for one leaderboard and
// a cancel function. Cancel is idempotent and frees the stream's
// resources; after cancel the channel is closed.
func (b *Broker) Subscribe(leaderboardID string) (<-chan leaderboard.Update, func()) {
	s := &subscriber{
		boards: map[string]bool{leaderboardID: true},
		in:     make(chan leaderboard.Update, relayBuffer),
		out:    make(chan leaderboard.Update, outBuffer),
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	b.nextID++
	s.id = b.nextID
	b.subs[s.id] = s
	b.mu.Unlock()

	go b.relay(s)

	cancel := func() {
		s.once.Do(func() {
			b.mu.Lock()
			delete(b.subs, s.id)
			b.mu.Unlock()
			close(s.done)
		})
	}
	return s.out, cancel
}

// SubscribeAggregate returns a batched stream covering several
// leaderboards (a tournament's boards), plus a cancel function.
func (b *Broker) SubscribeAggregate(leaderboardIDs []string) (<-chan []leaderboard.Update, func()) {
	boards := make(map[string]bool, len(leaderboardIDs))
	for _, id := range leaderboardIDs {
		boards[id] = true
	}
	s := &aggSubscriber{
		boards: boards,
		in:     make(chan leaderboard.Update, relayBuffer),
		out:    make(chan []leaderboard.Update, outBuffer),
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	b.nextID++
	s.id = b.nextID
	b.aggs[s.id] = s
	b.mu.Unlock()

	go b.relayAggregate(s)

	cancel := func() {
		s.once.Do(func() {
			b.mu.Lock()
			delete(b.aggs, s.id)
			b.mu.Unlock()
			close(s.done)
		})
	}
	return s.out, cancel
}

// Publish fans an update out to every matching stream. Non-blocking: a
// stream whose relay buffer is full misses the event.
func (b *Broker) Publish(u leaderboard.Update) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, s := range b.subs {
		if !s.boards[u.LeaderboardID] {
			continue
		}
		select {
		case s.in <- u:
		default:
			b.log.Warn("dropping update for slow subscriber",
				logger.LeaderboardID(u.LeaderboardID),
				logger.String("type", string(u.Type)))
		}
	}
	for _, s := range b.aggs {
		if !s.boards[u.LeaderboardID] {
			continue
		}
		select {
		case s.in <- u:
		default:
		}
	}
}

// SubscriberCount returns the number of active streams (both kinds).
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs) + len(b.aggs)
}

// relay forwards events to the subscriber at most once per throttle
// window, collapsing collapsible bursts to the latest state in place so
// relative order is preserved.
func (b *Broker) relay(s *subscriber) {
	defer close(s.out)

	ticker := time.NewTicker(b.throttle)
	defer ticker.Stop()

	var pending []leaderboard.Update

	absorb := func(u leaderboard.Update) {
		if collapsible(u.Type) {
			for i := len(pending) - 1; i >= 0; i-- {
				if pending[i].Type == u.Type {
					pending[i] = u
					return
				}
			}
		}
		pending = append(pending, u)
	}

	emit := func() {
		for _, u := range pending {
			select {
			case s.out <- u:
			default:
				// Consumer is not keeping up; at-most-once delivery.
			}
		}
		pending = pending[:0]
	}

	for {
		select {
		case <-s.done:
			emit()
			return
		case u := <-s.in:
			absorb(u)
		case <-ticker.C:
			if len(pending) > 0 {
				emit()
			}
		}
	}
}

// relayAggregate batches everything received within the window into one
// slice per tick.
func (b *Broker) relayAggregate(s *aggSubscriber) {
	defer close(s.out)

	ticker := time.NewTicker(b.aggWindow)
	defer ticker.Stop()

	var pending []leaderboard.Update

	emit := func() {
		if len(pending) == 0 {
			return
		}
		batch := make([]leaderboard.Update, len(pending))
		copy(batch, pending)
		pending = pending[:0]
		select {
		case s.out <- batch:
		default:
		}
	}

	for {
		select {
		case <-s.done:
			emit()
			return
		case u := <-s.in:
			pending = append(pending, u)
		case <-ticker.C:
			emit()
		}
	}
}
