// Package batch turns raw persisted records into domain objects in
// parallel. Each record's conversion (and optional rating enhancement) may
// require an independent external call, so records are processed one task
// each; concurrent completion order is not result order, so results are
// collected by index and deterministically re-ordered afterwards.
package batch

import (
	"context"
	"sort"
	"sync"

	"github.com/golffinder/leaderboard-engine/internal/domain/leaderboard"
	"github.com/golffinder/leaderboard-engine/internal/engine/metrics"
	"github.com/golffinder/leaderboard-engine/pkg/circuitbreaker"
	"github.com/golffinder/leaderboard-engine/pkg/logger"
)

// DefaultMaxConcurrent bounds in-flight conversions per batch.
const DefaultMaxConcurrent = 32

// Processor converts store documents to domain objects.
type Processor struct {
	rating  leaderboard.RatingEngine
	breaker *circuitbreaker.CircuitBreaker
	monitor *metrics.Monitor
	log     *logger.Logger

	maxConcurrent int
}

// Config holds processor configuration.
type Config struct {
	// Rating enhances entries with normalized performance. Optional.
	Rating leaderboard.RatingEngine

	// Breaker guards rating-engine calls. Optional.
	Breaker *circuitbreaker.CircuitBreaker

	// Monitor receives per-record conversion/enhancement error counts.
	Monitor *metrics.Monitor

	// Logger for degradation warnings.
	Logger *logger.Logger

	// MaxConcurrent bounds in-flight tasks per batch.
	MaxConcurrent int
}

// New creates a batch processor.
func New(cfg Config) *Processor {
	if cfg.Monitor == nil {
		cfg.Monitor = metrics.NewMonitor()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	return &Processor{
		rating:        cfg.Rating,
		breaker:       cfg.Breaker,
		monitor:       cfg.Monitor,
		log:           cfg.Logger.With(logger.Component("batch")),
		maxConcurrent: cfg.MaxConcurrent,
	}
}

// forEach runs fn for every index with bounded concurrency.
func (p *Processor) forEach(n int, fn func(i int)) {
	if n == 0 {
		return
	}
	sem := make(chan struct{}, p.maxConcurrent)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(i)
		}(i)
	}
	wg.Wait()
}

// ProcessLeaderboards converts raw records into leaderboards, preserving
// input order. A malformed record is excluded from the result; the failure
// is counted, not fatal to the batch.
func (p *Processor) ProcessLeaderboards(ctx context.Context, docs []leaderboard.Document) []*leaderboard.Leaderboard {
	results := make([]*leaderboard.Leaderboard, len(docs))

	p.forEach(len(docs), func(i int) {
		lb, err := leaderboard.LeaderboardFromDocument(docs[i])
		if err != nil {
			p.monitor.RecordError("batch.ProcessLeaderboards", err)
			p.log.Warn("skipping malformed leaderboard record", logger.Err(err))
			return
		}
		results[i] = lb
	})

	out := make([]*leaderboard.Leaderboard, 0, len(results))
	for _, lb := range results {
		if lb != nil {
			out = append(out, lb)
		}
	}
	return out
}

// ProcessEntries converts raw records into entries and re-sorts by
// position so the result is directly renderable.
func (p *Processor) ProcessEntries(ctx context.Context, docs []leaderboard.Document) []*leaderboard.Entry {
	results := make([]*leaderboard.Entry, len(docs))

	p.forEach(len(docs), func(i int) {
		e, err := leaderboard.EntryFromDocument(docs[i])
		if err != nil {
			p.monitor.RecordError("batch.ProcessEntries", err)
			p.log.Warn("skipping malformed entry record", logger.Err(err))
			return
		}
		results[i] = e
	})

	out := make([]*leaderboard.Entry, 0, len(results))
	for _, e := range results {
		if e != nil {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Position < out[j].Position
	})
	return out
}

// EnhanceEntry applies the rating engine's relative-performance adjustment
// to one entry. On any failure the entry degrades to its unenhanced form;
// the failure is counted and logged, never propagated.
func (p *Processor) EnhanceEntry(ctx context.Context, e *leaderboard.Entry) *leaderboard.Entry {
	if p.rating == nil || e == nil {
		return e
	}

	var adj leaderboard.RatingAdjustment
	call := func(ctx context.Context) error {
		var err error
		adj, err = p.rating.CalculateRelativePerformance(ctx, e.PlayerID, e.LeaderboardID)
		return err
	}

	var err error
	if p.breaker != nil {
		err = p.breaker.Execute(ctx, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		p.monitor.RecordError("batch.EnhanceEntry", err)
		p.log.Warn("rating enhancement degraded",
			logger.PlayerID(e.PlayerID),
			logger.LeaderboardID(e.LeaderboardID),
			logger.Err(err))
		return e
	}

	enhanced := e.Clone()
	enhanced.ScoreToPar = adj.ScoreToPar
	return enhanced
}

// EnhanceEntries enhances a batch of entries concurrently, preserving
// order. Individual failures degrade per entry.
func (p *Processor) EnhanceEntries(ctx context.Context, entries []*leaderboard.Entry) []*leaderboard.Entry {
	results := make([]*leaderboard.Entry, len(entries))

	p.forEach(len(entries), func(i int) {
		results[i] = p.EnhanceEntry(ctx, entries[i])
	})
	return results
}
