// Package rank implements the position calculator: full recalculation of
// ranked order after any entry mutation, a short window of recent position
// deltas per leaderboard, and advisory live-position projection for rounds
// still in progress.
package rank

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/golffinder/leaderboard-engine/internal/domain/leaderboard"
	"github.com/golffinder/leaderboard-engine/internal/domain/shared"
)

// DeltaRetention bounds how long position deltas are kept per leaderboard.
// Older deltas are pruned on every write.
const DeltaRetention = 3600 * time.Second

// boardState holds the per-leaderboard mutable state. Mutations for the
// same leaderboard are serialized through its lock; different leaderboards
// proceed in parallel.
type boardState struct {
	mu     sync.Mutex
	deltas []leaderboard.PositionDelta
}

// Calculator recalculates ranked order and tracks recent movement.
type Calculator struct {
	rating leaderboard.RatingEngine

	mu     sync.Mutex
	boards map[string]*boardState

	now func() time.Time
}

// New creates a calculator. The rating engine is only needed for live
// projection; pass nil if projections are not used.
func New(rating leaderboard.RatingEngine) *Calculator {
	return &Calculator{
		rating: rating,
		boards: make(map[string]*boardState),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source. Intended for tests.
func (c *Calculator) SetClock(now func() time.Time) {
	c.now = now
}

func (c *Calculator) board(id string) *boardState {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.boards[id]
	if !ok {
		b = &boardState{}
		c.boards[id] = b
	}
	return b
}

// ─────────────────────────────────────────────────────────────────────────────
// RECALCULATION
// ─────────────────────────────────────────────────────────────────────────────

// sortEntries orders entries for stroke play: ascending score, ties broken
// by earlier UpdatedAt, then by PlayerID so the order is deterministic for
// any input permutation.
func sortEntries(entries []*leaderboard.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Score != b.Score {
			return a.Score < b.Score
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.Before(b.UpdatedAt)
		}
		return a.PlayerID < b.PlayerID
	})
}

// Recalculate sorts the entries, assigns dense positions 1..N, captures
// each entry's previous position, and records movement deltas. The input
// slice is not mutated; the returned slice holds updated clones in rank
// order. Empty input returns empty output, never an error.
func (c *Calculator) Recalculate(leaderboardID string, entries []*leaderboard.Entry) []*leaderboard.Entry {
	if len(entries) == 0 {
		return nil
	}

	ordered := make([]*leaderboard.Entry, 0, len(entries))
	for _, e := range entries {
		if e != nil {
			ordered = append(ordered, e.Clone())
		}
	}
	sortEntries(ordered)

	b := c.board(leaderboardID)
	b.mu.Lock()
	defer b.mu.Unlock()

	now := c.now()
	for i, e := range ordered {
		newPos := leaderboard.Position(i + 1)
		e.PreviousPosition = e.Position
		e.Position = newPos
		if e.PreviousPosition != newPos {
			b.deltas = append(b.deltas, leaderboard.PositionDelta{
				LeaderboardID: leaderboardID,
				PlayerID:      e.PlayerID,
				OldPosition:   e.PreviousPosition,
				NewPosition:   newPos,
				RecordedAt:    now,
			})
		}
	}
	b.pruneLocked(now)

	return ordered
}

// RecordDelta appends a movement record outside a full recalculation.
func (c *Calculator) RecordDelta(leaderboardID, playerID string, oldPos, newPos leaderboard.Position) {
	b := c.board(leaderboardID)
	b.mu.Lock()
	defer b.mu.Unlock()

	now := c.now()
	b.deltas = append(b.deltas, leaderboard.PositionDelta{
		LeaderboardID: leaderboardID,
		PlayerID:      playerID,
		OldPosition:   oldPos,
		NewPosition:   newPos,
		RecordedAt:    now,
	})
	b.pruneLocked(now)
}

// RecentDeltas returns the deltas recorded within the retention window,
// oldest first.
func (c *Calculator) RecentDeltas(leaderboardID string) []leaderboard.PositionDelta {
	b := c.board(leaderboardID)
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pruneLocked(c.now())
	out := make([]leaderboard.PositionDelta, len(b.deltas))
	copy(out, b.deltas)
	return out
}

// pruneLocked drops deltas older than the retention window. Caller holds
// the board lock.
func (b *boardState) pruneLocked(now time.Time) {
	cutoff := now.Add(-DeltaRetention)
	keep := b.deltas[:0]
	for _, d := range b.deltas {
		if d.RecordedAt.After(cutoff) {
			keep = append(keep, d)
		}
	}
	b.deltas = keep
}

// ─────────────────────────────────────────────────────────────────────────────
// LIVE PROJECTION
// ─────────────────────────────────────────────────────────────────────────────

// ProjectLivePosition estimates where a player would rank if their
// in-progress round ended now, combining the partial score with the rating
// engine's projected final. The estimate is advisory: it never mutates a
// persisted position and is delivered only over the live channel.
//
// The standings slice is the last known ranked order for the board; the
// player's own entry, if present, is excluded from the comparison.
func (c *Calculator) ProjectLivePosition(
	ctx context.Context,
	leaderboardID, playerID string,
	currentScore, holesCompleted int,
	standings []*leaderboard.Entry,
) (leaderboard.LivePositionEstimate, error) {
	estimate := leaderboard.LivePositionEstimate{
		LeaderboardID:  leaderboardID,
		PlayerID:       playerID,
		CurrentScore:   currentScore,
		HolesCompleted: holesCompleted,
		ComputedAt:     c.now(),
	}

	projected := currentScore
	if c.rating != nil {
		rating, err := c.rating.ProjectFinalRating(ctx, playerID, leaderboard.RoundSnapshot{
			LeaderboardID:  leaderboardID,
			CurrentScore:   currentScore,
			HolesCompleted: holesCompleted,
		})
		if err != nil {
			return estimate, shared.WrapError("rank", "ProjectLivePosition",
				shared.ErrDependencyUnavailable, "rating projection failed", err)
		}
		projected = rating.ProjectedScore
	}
	estimate.ProjectedScore = projected

	// Count completed scores the projection would not beat.
	position := 1
	for _, e := range standings {
		if e == nil || e.PlayerID == playerID {
			continue
		}
		if e.Score < projected || (e.Score == projected && !e.IsLive) {
			position++
		}
	}
	estimate.Estimated = leaderboard.Position(position)

	return estimate, nil
}

// Forget drops all tracked state for a leaderboard. Called on delete.
func (c *Calculator) Forget(leaderboardID string) {
	c.mu.Lock()
	delete(c.boards, leaderboardID)
	c.mu.Unlock()
}

// PruneAll drops expired deltas across every tracked leaderboard and
// returns the number of boards still tracked. Run by the background
// scheduler to bound memory for boards that stopped receiving writes.
func (c *Calculator) PruneAll() int {
	c.mu.Lock()
	boards := make([]*boardState, 0, len(c.boards))
	for _, b := range c.boards {
		boards = append(boards, b)
	}
	n := len(c.boards)
	c.mu.Unlock()

	now := c.now()
	for _, b := range boards {
		b.mu.Lock()
		b.pruneLocked(now)
		b.mu.Unlock()
	}
	return n
}
