// Package engine composes the leaderboard cache, position calculator,
// batch processor, load balancer, query optimizer, and update pipeline
// into the public leaderboard API: cache-first reads over balanced
// connections, a persist-recalculate-invalidate-notify write path, and
// filtered, throttled subscription streams.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/golffinder/leaderboard-engine/internal/domain/leaderboard"
	"github.com/golffinder/leaderboard-engine/internal/domain/shared"
	"github.com/golffinder/leaderboard-engine/internal/engine/balance"
	"github.com/golffinder/leaderboard-engine/internal/engine/batch"
	"github.com/golffinder/leaderboard-engine/internal/engine/cache"
	"github.com/golffinder/leaderboard-engine/internal/engine/metrics"
	"github.com/golffinder/leaderboard-engine/internal/engine/query"
	"github.com/golffinder/leaderboard-engine/internal/engine/rank"
	"github.com/golffinder/leaderboard-engine/internal/engine/update"
	"github.com/golffinder/leaderboard-engine/pkg/circuitbreaker"
	"github.com/golffinder/leaderboard-engine/pkg/logger"
	"github.com/golffinder/leaderboard-engine/pkg/retry"
)

// DefaultCallTimeout bounds every external call (store, rating engine,
// social graph). Callers degrade per the error policy on expiry.
const DefaultCallTimeout = 5 * time.Second

// Config wires the engine's collaborators.
type Config struct {
	// Stores is the pool of backend connections the load balancer
	// spreads requests over. At least one is required.
	Stores []leaderboard.Store

	// Rating is the external rating/handicap engine. Optional; entries
	// degrade to their unenhanced form without it.
	Rating leaderboard.RatingEngine

	// Social resolves friend ids for friends-scoped views. Optional;
	// friends queries fail DependencyUnavailable without it.
	Social leaderboard.SocialGraph

	// CallTimeout bounds external calls. Default 5s.
	CallTimeout time.Duration

	// Update pipeline tuning. Zero values take the update package
	// defaults (batch 100, interval 50ms, concurrency 1000).
	BatchSize     int
	FlushInterval time.Duration
	MaxConcurrent int

	Cache   *cache.Cache
	Monitor *metrics.Monitor
	Logger  *logger.Logger
}

// RemoteInvalidator broadcasts cache invalidations and live updates to
// peer engine instances. All methods are best-effort fire-and-forget.
type RemoteInvalidator interface {
	PublishBoardInvalidation(ctx context.Context, leaderboardID string)
	PublishCourseInvalidation(ctx context.Context, courseID string)
	PublishUpdate(ctx context.Context, u leaderboard.Update)
}

// Engine is the leaderboard engine orchestrator.
type Engine struct {
	balancer *balance.LoadBalancer
	cache    *cache.Cache
	calc     *rank.Calculator
	batch    *batch.Processor
	updates  *update.Processor
	monitor  *metrics.Monitor
	log      *logger.Logger

	social        leaderboard.SocialGraph
	socialBreaker *circuitbreaker.CircuitBreaker
	readRetrier   *retry.Retrier

	remoteMu sync.RWMutex
	remote   RemoteInvalidator

	timeout time.Duration

	// boardLocks serializes the write pipeline per leaderboard id so
	// persist, recalculate, invalidate, and enqueue happen in submission
	// order for the same board. Different boards proceed in parallel.
	boardLocks sync.Map
}

// New creates an engine.
func New(cfg Config) (*Engine, error) {
	if len(cfg.Stores) == 0 {
		return nil, shared.NewError("engine", "New", shared.ErrValidationFailed, "at least one store connection is required")
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.New()
	}
	if cfg.Monitor == nil {
		cfg.Monitor = metrics.NewMonitor()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	log := cfg.Logger.With(logger.Component("engine"))

	ratingBreaker := circuitbreaker.RatingEngineBreaker(func(name string, from, to circuitbreaker.State) {
		log.Warn("circuit state changed",
			logger.String("breaker", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()))
	})

	e := &Engine{
		balancer: balance.New(cfg.Stores...),
		cache:    cfg.Cache,
		calc:     rank.New(cfg.Rating),
		monitor:  cfg.Monitor,
		log:      log,
		social:   cfg.Social,
		socialBreaker: circuitbreaker.SocialGraphBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
		}),
		readRetrier: retry.BackendReadRetrier(),
		timeout:     cfg.CallTimeout,
	}
	e.batch = batch.New(batch.Config{
		Rating:  cfg.Rating,
		Breaker: ratingBreaker,
		Monitor: cfg.Monitor,
		Logger:  cfg.Logger,
	})
	e.updates = update.NewProcessor(update.Config{
		BatchSize:     cfg.BatchSize,
		Interval:      cfg.FlushInterval,
		MaxConcurrent: cfg.MaxConcurrent,
		Monitor:       cfg.Monitor,
		Logger:        cfg.Logger,
	})

	return e, nil
}

// SetRemote attaches the peer-instance bridge. Called once at startup,
// after the bridge is built around this engine's cache and broker.
func (e *Engine) SetRemote(r RemoteInvalidator) {
	e.remoteMu.Lock()
	e.remote = r
	e.remoteMu.Unlock()
}

func (e *Engine) remoteInvalidateBoard(ctx context.Context, id string) {
	e.remoteMu.RLock()
	r := e.remote
	e.remoteMu.RUnlock()
	if r != nil {
		r.PublishBoardInvalidation(ctx, id)
	}
}

func (e *Engine) remoteInvalidateCourse(ctx context.Context, courseID string) {
	e.remoteMu.RLock()
	r := e.remote
	e.remoteMu.RUnlock()
	if r != nil {
		r.PublishCourseInvalidation(ctx, courseID)
	}
}

func (e *Engine) remotePublishUpdate(ctx context.Context, u leaderboard.Update) {
	e.remoteMu.RLock()
	r := e.remote
	e.remoteMu.RUnlock()
	if r != nil {
		r.PublishUpdate(ctx, u)
	}
}

// Broker exposes the update broker for the peer-instance bridge.
func (e *Engine) Broker() *update.Broker {
	return e.updates.Broker()
}

// Cache exposes the cache for the maintenance scheduler.
func (e *Engine) Cache() *cache.Cache {
	return e.cache
}

// Calculator exposes the position calculator for the maintenance scheduler.
func (e *Engine) Calculator() *rank.Calculator {
	return e.calc
}

// Balancer exposes connection stats.
func (e *Engine) Balancer() *balance.LoadBalancer {
	return e.balancer
}

// Report returns the performance monitor's snapshot.
func (e *Engine) Report() metrics.Report {
	return e.monitor.Report()
}

// Close drains and stops the update pipeline.
func (e *Engine) Close() {
	e.updates.Close()
}

// ─────────────────────────────────────────────────────────────────────────────
// STORE ACCESS (balanced, retried reads; unretried writes)
// ─────────────────────────────────────────────────────────────────────────────

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.timeout)
}

// list runs a read query on a balanced connection, retrying once on a
// transient failure via a fresh connection.
func (e *Engine) list(ctx context.Context, q leaderboard.Query) ([]leaderboard.Document, error) {
	return retry.DoWithData(ctx, func(ctx context.Context) ([]leaderboard.Document, error) {
		lease, err := e.balancer.Acquire()
		if err != nil {
			return nil, retry.Permanent(shared.WrapError("engine", "list", shared.ErrFetchFailed, "no connection", err))
		}
		cctx, cancel := e.withTimeout(ctx)
		defer cancel()
		docs, err := lease.Store().List(cctx, q)
		if err != nil {
			lease.Fail()
			return nil, retry.Retryable(shared.WrapError("engine", "list", shared.ErrFetchFailed, "backend list failed", err))
		}
		lease.Release()
		return docs, nil
	}, retry.WithMaxAttempts(2), retry.WithInitialDelay(50*time.Millisecond))
}

// getDoc fetches one document, retrying once on a transient failure.
// A missing document is NotFound, never retried.
func (e *Engine) getDoc(ctx context.Context, collection, id string) (leaderboard.Document, error) {
	return retry.DoWithData(ctx, func(ctx context.Context) (leaderboard.Document, error) {
		lease, err := e.balancer.Acquire()
		if err != nil {
			return nil, retry.Permanent(shared.WrapError("engine", "get", shared.ErrFetchFailed, "no connection", err))
		}
		cctx, cancel := e.withTimeout(ctx)
		defer cancel()
		doc, err := lease.Store().Get(cctx, collection, id)
		if err != nil {
			if shared.IsNotFound(err) {
				lease.Release()
				return nil, retry.Permanent(err)
			}
			lease.Fail()
			return nil, retry.Retryable(shared.WrapError("engine", "get", shared.ErrFetchFailed, "backend get failed", err))
		}
		lease.Release()
		return doc, nil
	}, retry.WithMaxAttempts(2), retry.WithInitialDelay(50*time.Millisecond))
}

// write runs a single mutating operation on a balanced connection.
// Never retried: a duplicate write could duplicate an entry.
func (e *Engine) write(ctx context.Context, op string, fn func(ctx context.Context, s leaderboard.Store) error) error {
	lease, err := e.balancer.Acquire()
	if err != nil {
		return shared.WrapError("engine", op, shared.ErrWriteFailed, "no connection", err)
	}
	cctx, cancel := e.withTimeout(ctx)
	defer cancel()
	if err := fn(cctx, lease.Store()); err != nil {
		lease.Fail()
		if shared.IsNotFound(err) {
			return err
		}
		return shared.WrapError("engine", op, shared.ErrWriteFailed, "backend write failed", err)
	}
	lease.Release()
	return nil
}

func (e *Engine) boardLock(id string) *sync.Mutex {
	mu, _ := e.boardLocks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// ttlFor picks the cache TTL for a leaderboard's view class.
func ttlFor(lb *leaderboard.Leaderboard) time.Duration {
	switch lb.Type {
	case leaderboard.TypeTournament:
		return cache.TournamentTTL
	case leaderboard.TypeOverall:
		return cache.OverallTTL
	default:
		return cache.DefaultTTL
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// READS
// ─────────────────────────────────────────────────────────────────────────────

// GetLeaderboards returns the active leaderboards for a course,
// cache-first.
func (e *Engine) GetLeaderboards(ctx context.Context, courseID string) ([]*leaderboard.Leaderboard, error) {
	const op = "engine.GetLeaderboards"
	e.monitor.RecordCall(op)
	start := time.Now()
	defer func() { e.monitor.RecordDuration(op, time.Since(start)) }()

	if cached := e.cache.GetByCourse(courseID); cached != nil {
		e.monitor.RecordCacheHit(op)
		return cached, nil
	}
	e.monitor.RecordCacheMiss(op)

	docs, err := e.list(ctx, query.ByCourse(courseID))
	if err != nil {
		e.monitor.RecordError(op, err)
		return nil, err
	}
	boards := e.batch.ProcessLeaderboards(ctx, docs)
	e.cache.SetByCourse(courseID, boards, cache.DefaultTTL)
	return boards, nil
}

// GetLeaderboard returns one leaderboard with its entries populated.
func (e *Engine) GetLeaderboard(ctx context.Context, id string) (*leaderboard.Leaderboard, error) {
	const op = "engine.GetLeaderboard"
	e.monitor.RecordCall(op)
	start := time.Now()
	defer func() { e.monitor.RecordDuration(op, time.Since(start)) }()

	if cached := e.cache.Get(id); cached != nil {
		e.monitor.RecordCacheHit(op)
		return cached, nil
	}
	e.monitor.RecordCacheMiss(op)

	lb, err := e.fetchLeaderboard(ctx, id)
	if err != nil {
		e.monitor.RecordError(op, err)
		return nil, err
	}
	ttl := ttlFor(lb)
	e.cache.Set(lb, ttl)
	e.cache.SetPositions(id, lb.Entries, ttl)
	return lb, nil
}

// fetchLeaderboard loads a board and its entries from the store.
func (e *Engine) fetchLeaderboard(ctx context.Context, id string) (*leaderboard.Leaderboard, error) {
	doc, err := e.getDoc(ctx, leaderboard.CollectionLeaderboards, id)
	if err != nil {
		return nil, err
	}
	lb, err := leaderboard.LeaderboardFromDocument(doc)
	if err != nil {
		return nil, err
	}
	entryDocs, err := e.list(ctx, query.EntriesByLeaderboard(id, lb.MaxEntries, 0))
	if err != nil {
		return nil, err
	}
	lb.Entries = e.batch.ProcessEntries(ctx, entryDocs)
	return lb, nil
}

// GetEntries returns a page of entries in position order.
func (e *Engine) GetEntries(ctx context.Context, leaderboardID string, limit, offset int) ([]*leaderboard.Entry, error) {
	const op = "engine.GetEntries"
	e.monitor.RecordCall(op)
	start := time.Now()
	defer func() { e.monitor.RecordDuration(op, time.Since(start)) }()

	if limit <= 0 {
		limit = query.DefaultEntryLimit
	}

	if offset == 0 {
		if snapshot := e.cache.GetPositions(leaderboardID); snapshot != nil {
			e.monitor.RecordCacheHit(op)
			if len(snapshot) > limit {
				snapshot = snapshot[:limit]
			}
			return snapshot, nil
		}
		e.monitor.RecordCacheMiss(op)
	}

	docs, err := e.list(ctx, query.EntriesByLeaderboard(leaderboardID, limit, offset))
	if err != nil {
		e.monitor.RecordError(op, err)
		return nil, err
	}
	entries := e.batch.ProcessEntries(ctx, docs)
	if offset == 0 {
		e.cache.SetPositions(leaderboardID, entries, cache.DefaultTTL)
	}
	return entries, nil
}

// GetTournamentLeaderboards returns the leaderboards of one tournament.
// Tournament views are volatile; individual boards cache with a short TTL.
func (e *Engine) GetTournamentLeaderboards(ctx context.Context, tournamentID string) ([]*leaderboard.Leaderboard, error) {
	const op = "engine.GetTournamentLeaderboards"
	e.monitor.RecordCall(op)
	start := time.Now()
	defer func() { e.monitor.RecordDuration(op, time.Since(start)) }()

	docs, err := e.list(ctx, query.ByTournament(tournamentID))
	if err != nil {
		e.monitor.RecordError(op, err)
		return nil, err
	}
	boards := e.batch.ProcessLeaderboards(ctx, docs)
	for _, lb := range boards {
		e.cache.Set(lb, cache.TournamentTTL)
	}
	return boards, nil
}

// GetFriendsLeaderboards returns leaderboards where the player's friends
// participate, optionally scoped to one course.
func (e *Engine) GetFriendsLeaderboards(ctx context.Context, playerID, courseID string) ([]*leaderboard.Leaderboard, error) {
	const op = "engine.GetFriendsLeaderboards"
	e.monitor.RecordCall(op)
	start := time.Now()
	defer func() { e.monitor.RecordDuration(op, time.Since(start)) }()

	if e.social == nil {
		err := shared.NewError("engine", "GetFriendsLeaderboards", shared.ErrDependencyUnavailable, "social graph not configured")
		e.monitor.RecordError(op, err)
		return nil, err
	}

	var friendIDs []string
	err := e.socialBreaker.Execute(ctx, func(ctx context.Context) error {
		cctx, cancel := e.withTimeout(ctx)
		defer cancel()
		var err error
		friendIDs, err = e.social.FriendIDs(cctx, playerID)
		return err
	})
	if err != nil {
		wrapped := shared.WrapError("engine", "GetFriendsLeaderboards", shared.ErrDependencyUnavailable, "friend lookup failed", err)
		e.monitor.RecordError(op, wrapped)
		return nil, wrapped
	}
	if len(friendIDs) == 0 {
		return nil, nil
	}

	docs, err := e.list(ctx, query.ByFriends(friendIDs, courseID))
	if err != nil {
		e.monitor.RecordError(op, err)
		return nil, err
	}
	return e.batch.ProcessLeaderboards(ctx, docs), nil
}

// GetOverallLeaderboards returns overall leaderboards for a period,
// optionally scoped to a course. Stable aggregates cache long.
func (e *Engine) GetOverallLeaderboards(ctx context.Context, courseID string, period leaderboard.Period) ([]*leaderboard.Leaderboard, error) {
	const op = "engine.GetOverallLeaderboards"
	e.monitor.RecordCall(op)
	start := time.Now()
	defer func() { e.monitor.RecordDuration(op, time.Since(start)) }()

	if !period.IsValid() {
		err := shared.NewError("engine", "GetOverallLeaderboards", shared.ErrValidationFailed, "invalid period: "+string(period))
		e.monitor.RecordError(op, err)
		return nil, err
	}

	if cached := e.cache.GetOverall(courseID, period); cached != nil {
		e.monitor.RecordCacheHit(op)
		return cached, nil
	}
	e.monitor.RecordCacheMiss(op)

	docs, err := e.list(ctx, query.ByPeriod(courseID, period, time.Now().UTC()))
	if err != nil {
		e.monitor.RecordError(op, err)
		return nil, err
	}
	boards := e.batch.ProcessLeaderboards(ctx, docs)
	e.cache.SetOverall(courseID, period, boards, cache.OverallTTL)
	return boards, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// WRITES
// ─────────────────────────────────────────────────────────────────────────────

// CreateLeaderboard persists a new leaderboard.
func (e *Engine) CreateLeaderboard(ctx context.Context, lb *leaderboard.Leaderboard) (*leaderboard.Leaderboard, error) {
	const op = "engine.CreateLeaderboard"
	e.monitor.RecordCall(op)
	start := time.Now()
	defer func() { e.monitor.RecordDuration(op, time.Since(start)) }()

	created := lb.Clone()
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if created.CreatedAt.IsZero() {
		created.CreatedAt = now
	}
	created.UpdatedAt = now
	if err := created.Validate(); err != nil {
		e.monitor.RecordError(op, err)
		return nil, err
	}

	err := e.write(ctx, "CreateLeaderboard", func(ctx context.Context, s leaderboard.Store) error {
		return s.Create(ctx, leaderboard.CollectionLeaderboards, created.ID, created.ToDocument())
	})
	if err != nil {
		e.monitor.RecordError(op, err)
		return nil, err
	}

	e.cache.Set(created, ttlFor(created))
	e.cache.InvalidateCourse(created.CourseID)
	e.remoteInvalidateCourse(ctx, created.CourseID)
	e.log.Info("leaderboard created",
		logger.LeaderboardID(created.ID),
		logger.CourseID(created.CourseID),
		logger.String("type", string(created.Type)))
	return created, nil
}

// UpdateLeaderboard persists administrative edits to a leaderboard.
func (e *Engine) UpdateLeaderboard(ctx context.Context, lb *leaderboard.Leaderboard) (*leaderboard.Leaderboard, error) {
	const op = "engine.UpdateLeaderboard"
	e.monitor.RecordCall(op)
	start := time.Now()
	defer func() { e.monitor.RecordDuration(op, time.Since(start)) }()

	updated := lb.Clone()
	updated.UpdatedAt = time.Now().UTC()
	if err := updated.Validate(); err != nil {
		e.monitor.RecordError(op, err)
		return nil, err
	}

	err := e.write(ctx, "UpdateLeaderboard", func(ctx context.Context, s leaderboard.Store) error {
		return s.Update(ctx, leaderboard.CollectionLeaderboards, updated.ID, updated.ToDocument())
	})
	if err != nil {
		e.monitor.RecordError(op, err)
		return nil, err
	}

	e.cache.InvalidateCascade(updated.ID)
	e.cache.Set(updated, ttlFor(updated))
	e.remoteInvalidateBoard(ctx, updated.ID)
	return updated, nil
}

// DeleteLeaderboard removes a leaderboard and all of its entries. Child
// entries go first so the backing store never holds orphaned rows.
// Deleting an absent leaderboard returns NotFound; the cache stays
// consistent either way.
func (e *Engine) DeleteLeaderboard(ctx context.Context, id string) error {
	const op = "engine.DeleteLeaderboard"
	e.monitor.RecordCall(op)
	start := time.Now()
	defer func() { e.monitor.RecordDuration(op, time.Since(start)) }()

	mu := e.boardLock(id)
	mu.Lock()
	defer mu.Unlock()

	// Entries delete page by page until the store returns none; each
	// delete shifts the next page down, so every pass reads from the
	// start. A board can hold more entries than one list page.
	for {
		entryDocs, err := e.list(ctx, query.EntriesByLeaderboard(id, 0, 0))
		if err != nil {
			if shared.IsNotFound(err) {
				break
			}
			e.monitor.RecordError(op, err)
			return err
		}
		if len(entryDocs) == 0 {
			break
		}
		removed := 0
		for _, doc := range entryDocs {
			entryID, _ := doc["id"].(string)
			if entryID == "" {
				continue
			}
			err := e.write(ctx, "DeleteLeaderboard", func(ctx context.Context, s leaderboard.Store) error {
				return s.Delete(ctx, leaderboard.CollectionEntries, entryID)
			})
			switch {
			case err == nil:
				removed++
			case shared.IsNotFound(err):
				// Already gone; a stale page from an eventually
				// consistent read.
			default:
				e.monitor.RecordError(op, err)
				return err
			}
		}
		// A page that removed nothing is stale or malformed; stop
		// rather than spin on it.
		if removed == 0 {
			break
		}
	}

	err := e.write(ctx, "DeleteLeaderboard", func(ctx context.Context, s leaderboard.Store) error {
		return s.Delete(ctx, leaderboard.CollectionLeaderboards, id)
	})

	// Drop local state regardless: a NotFound delete must still leave
	// the cache consistent.
	e.cache.InvalidateCascade(id)
	e.calc.Forget(id)
	e.remoteInvalidateBoard(ctx, id)

	if err != nil {
		e.monitor.RecordError(op, err)
		return err
	}
	e.log.Info("leaderboard deleted", logger.LeaderboardID(id))
	return nil
}

// SubmitEntry ingests a score submission: enhance, persist, recalculate,
// invalidate, notify.
func (e *Engine) SubmitEntry(ctx context.Context, entry *leaderboard.Entry) (*leaderboard.Entry, error) {
	return e.putEntry(ctx, entry, true)
}

// UpdateEntry applies a score correction or live progression to an
// existing entry, then runs the same recalculation pipeline.
func (e *Engine) UpdateEntry(ctx context.Context, entry *leaderboard.Entry) (*leaderboard.Entry, error) {
	return e.putEntry(ctx, entry, false)
}

func (e *Engine) putEntry(ctx context.Context, entry *leaderboard.Entry, isNew bool) (*leaderboard.Entry, error) {
	op := "engine.SubmitEntry"
	eventType := leaderboard.UpdateEntryAdded
	if !isNew {
		op = "engine.UpdateEntry"
		eventType = leaderboard.UpdateEntryUpdated
	}
	e.monitor.RecordCall(op)
	start := time.Now()
	defer func() { e.monitor.RecordDuration(op, time.Since(start)) }()

	submitted := entry.Clone()
	if isNew && submitted.ID == "" {
		submitted.ID = uuid.NewString()
	}
	submitted.UpdatedAt = time.Now().UTC()
	if err := submitted.Validate(); err != nil {
		e.monitor.RecordError(op, err)
		return nil, err
	}

	mu := e.boardLock(submitted.LeaderboardID)
	mu.Lock()
	defer mu.Unlock()

	lb, err := e.fetchLeaderboard(ctx, submitted.LeaderboardID)
	if err != nil {
		e.monitor.RecordError(op, err)
		return nil, err
	}
	if !lb.IsActive {
		err := shared.NewError("engine", op, shared.ErrValidationFailed, "leaderboard is read-only")
		e.monitor.RecordError(op, err)
		return nil, err
	}
	if isNew && lb.IsFull() && !hasPlayer(lb.Entries, submitted.PlayerID) {
		err := shared.NewError("engine", op, shared.ErrValidationFailed, "leaderboard is full")
		e.monitor.RecordError(op, err)
		return nil, err
	}

	// A correction arriving over the wire carries no rank state. Adopt
	// the stored position so the recalculation reports real movement
	// instead of treating the entry as new to the board.
	if !isNew {
		for _, existing := range lb.Entries {
			if existing.ID == submitted.ID {
				submitted.Position = existing.Position
				break
			}
		}
	}

	submitted = e.batch.EnhanceEntry(ctx, submitted)

	err = e.write(ctx, op, func(ctx context.Context, s leaderboard.Store) error {
		if isNew {
			return s.Create(ctx, leaderboard.CollectionEntries, submitted.ID, submitted.ToDocument())
		}
		return s.Update(ctx, leaderboard.CollectionEntries, submitted.ID, submitted.ToDocument())
	})
	if err != nil {
		e.monitor.RecordError(op, err)
		return nil, err
	}

	// Merge the write into the loaded entry set and recalculate.
	merged := mergeEntry(lb.Entries, submitted)
	ordered := e.calc.Recalculate(submitted.LeaderboardID, merged)

	if err := e.persistPositions(ctx, ordered); err != nil {
		// Positions diverge until the next successful recalculation;
		// the store remains the source of truth for scores.
		e.monitor.RecordError(op, err)
		e.log.Error("position persist failed",
			logger.LeaderboardID(submitted.LeaderboardID), logger.Err(err))
	}

	// Refresh the board document: the denormalized participant set and
	// updated_at drive friends- and period-scoped queries.
	lb.Entries = ordered
	lb.UpdatedAt = submitted.UpdatedAt
	if err := e.write(ctx, op, func(ctx context.Context, s leaderboard.Store) error {
		return s.Update(ctx, leaderboard.CollectionLeaderboards, lb.ID, lb.ToDocument())
	}); err != nil {
		e.monitor.RecordError(op, err)
		e.log.Error("leaderboard refresh failed",
			logger.LeaderboardID(lb.ID), logger.Err(err))
	}

	e.cache.InvalidateCascade(submitted.LeaderboardID)
	e.cache.SetPositions(submitted.LeaderboardID, ordered, ttlFor(lb))
	e.remoteInvalidateBoard(ctx, submitted.LeaderboardID)

	var result *leaderboard.Entry
	for _, o := range ordered {
		if o.ID == submitted.ID {
			result = o
			break
		}
	}
	if result == nil {
		result = submitted
	}

	e.updates.Enqueue(leaderboard.NewUpdate(submitted.LeaderboardID, eventType, result.Clone()))
	e.updates.Enqueue(leaderboard.NewUpdate(submitted.LeaderboardID, leaderboard.UpdatePositionsChanged, nil))

	e.log.Info("entry written",
		logger.LeaderboardID(submitted.LeaderboardID),
		logger.PlayerID(submitted.PlayerID),
		logger.Score(submitted.Score),
		logger.PositionField(int(result.Position)))
	return result.Clone(), nil
}

func hasPlayer(entries []*leaderboard.Entry, playerID string) bool {
	for _, e := range entries {
		if e.PlayerID == playerID {
			return true
		}
	}
	return false
}

// mergeEntry replaces or appends the written entry in the loaded set.
func mergeEntry(entries []*leaderboard.Entry, written *leaderboard.Entry) []*leaderboard.Entry {
	merged := make([]*leaderboard.Entry, 0, len(entries)+1)
	replaced := false
	for _, e := range entries {
		if e.ID == written.ID {
			merged = append(merged, written)
			replaced = true
			continue
		}
		merged = append(merged, e)
	}
	if !replaced {
		merged = append(merged, written)
	}
	return merged
}

// persistPositions writes back entries whose rank moved.
func (e *Engine) persistPositions(ctx context.Context, ordered []*leaderboard.Entry) error {
	for _, entry := range ordered {
		if entry.Position == entry.PreviousPosition {
			continue
		}
		entry := entry
		if err := e.write(ctx, "persistPositions", func(ctx context.Context, s leaderboard.Store) error {
			return s.Update(ctx, leaderboard.CollectionEntries, entry.ID, entry.ToDocument())
		}); err != nil {
			return err
		}
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// LIVE POSITION
// ─────────────────────────────────────────────────────────────────────────────

// UpdateLivePosition projects a provisional rank for an in-progress round
// and pushes it over the priority lane. Nothing is persisted.
func (e *Engine) UpdateLivePosition(ctx context.Context, leaderboardID, playerID string, currentScore, holesCompleted int) (leaderboard.LivePositionEstimate, error) {
	const op = "engine.UpdateLivePosition"
	e.monitor.RecordCall(op)
	start := time.Now()
	defer func() { e.monitor.RecordDuration(op, time.Since(start)) }()

	// The projection compares against the whole field; a paged read
	// would rank the player against only the top page.
	standings := e.cache.GetPositions(leaderboardID)
	if standings == nil {
		lb, err := e.fetchLeaderboard(ctx, leaderboardID)
		if err != nil {
			e.monitor.RecordError(op, err)
			return leaderboard.LivePositionEstimate{}, err
		}
		standings = lb.Entries
		e.cache.SetPositions(leaderboardID, standings, ttlFor(lb))
	}

	estimate, err := e.calc.ProjectLivePosition(ctx, leaderboardID, playerID, currentScore, holesCompleted, standings)
	if err != nil {
		e.monitor.RecordError(op, err)
		return estimate, err
	}

	live := &leaderboard.Entry{
		ID:            uuid.NewString(),
		LeaderboardID: leaderboardID,
		PlayerID:      playerID,
		Score:         currentScore,
		Position:      estimate.Estimated,
		HolesPlayed:   holesCompleted,
		IsLive:        true,
		UpdatedAt:     estimate.ComputedAt,
	}
	liveUpdate := leaderboard.NewUpdate(leaderboardID, leaderboard.UpdateLivePosition, live)
	e.updates.EnqueuePriority(liveUpdate)
	e.remotePublishUpdate(ctx, liveUpdate)

	return estimate, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// SUBSCRIPTIONS
// ─────────────────────────────────────────────────────────────────────────────

// Subscribe returns a filtered, throttled stream of updates for one
// leaderboard. The cancel function is idempotent.
func (e *Engine) Subscribe(leaderboardID string) (<-chan leaderboard.Update, func()) {
	e.monitor.RecordCall("engine.Subscribe")
	return e.updates.Broker().Subscribe(leaderboardID)
}

// SubscribeLiveTournament returns a batched stream aggregating position
// updates across all of a tournament's leaderboards.
func (e *Engine) SubscribeLiveTournament(ctx context.Context, tournamentID string) (<-chan []leaderboard.Update, func(), error) {
	e.monitor.RecordCall("engine.SubscribeLiveTournament")

	boards, err := e.GetTournamentLeaderboards(ctx, tournamentID)
	if err != nil {
		return nil, nil, err
	}
	ids := make([]string, len(boards))
	for i, lb := range boards {
		ids[i] = lb.ID
	}
	ch, cancel := e.updates.Broker().SubscribeAggregate(ids)
	return ch, cancel, nil
}

// RecentDeltas exposes the recent movement window for one leaderboard,
// used for notification payloads.
func (e *Engine) RecentDeltas(leaderboardID string) []leaderboard.PositionDelta {
	return e.calc.RecentDeltas(leaderboardID)
}
