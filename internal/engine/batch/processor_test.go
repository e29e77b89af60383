package batch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golffinder/leaderboard-engine/internal/domain/leaderboard"
	"github.com/golffinder/leaderboard-engine/internal/engine/metrics"
	"github.com/golffinder/leaderboard-engine/pkg/circuitbreaker"
)

type stubRating struct {
	adjustments map[string]leaderboard.RatingAdjustment
	err         error
	calls       int
}

func (s *stubRating) ProjectFinalRating(_ context.Context, _ string, _ leaderboard.RoundSnapshot) (leaderboard.ProjectedRating, error) {
	return leaderboard.ProjectedRating{}, nil
}

func (s *stubRating) CalculateRelativePerformance(_ context.Context, playerID, _ string) (leaderboard.RatingAdjustment, error) {
	s.calls++
	if s.err != nil {
		return leaderboard.RatingAdjustment{}, s.err
	}
	return s.adjustments[playerID], nil
}

func errorCount(t *testing.T, mon *metrics.Monitor, op string) int64 {
	t.Helper()
	for _, om := range mon.Report().Ops {
		if om.Op == op {
			return om.Errors
		}
	}
	return 0
}

func boardDoc(id string) leaderboard.Document {
	return leaderboard.Document{
		"id":          id,
		"course_id":   "course-1",
		"name":        "Board " + id,
		"type":        "daily",
		"period":      "daily",
		"max_entries": 100,
		"is_active":   true,
		"created_at":  time.Now().UTC().Format(time.RFC3339Nano),
		"updated_at":  time.Now().UTC().Format(time.RFC3339Nano),
	}
}

func entryDoc(id string, position int) leaderboard.Document {
	return leaderboard.Document{
		"id":             id,
		"leaderboard_id": "lb-1",
		"player_id":      "player-" + id,
		"player_name":    "Player " + id,
		"score":          70,
		"position":       position,
		"holes_played":   18,
		"updated_at":     time.Now().UTC().Format(time.RFC3339Nano),
	}
}

func TestProcessLeaderboardsPreservesOrder(t *testing.T) {
	p := New(Config{MaxConcurrent: 4})

	docs := make([]leaderboard.Document, 20)
	for i := range docs {
		docs[i] = boardDoc(fmt.Sprintf("lb-%02d", i))
	}

	boards := p.ProcessLeaderboards(context.Background(), docs)
	require.Len(t, boards, 20)
	for i, lb := range boards {
		assert.Equal(t, fmt.Sprintf("lb-%02d", i), lb.ID)
	}
}

func TestProcessLeaderboardsSkipsMalformed(t *testing.T) {
	mon := metrics.NewMonitor()
	p := New(Config{Monitor: mon})

	docs := []leaderboard.Document{
		boardDoc("lb-1"),
		{"id": "lb-broken"}, // missing required fields
		boardDoc("lb-3"),
	}

	boards := p.ProcessLeaderboards(context.Background(), docs)
	require.Len(t, boards, 2)
	assert.Equal(t, "lb-1", boards[0].ID)
	assert.Equal(t, "lb-3", boards[1].ID)
	assert.Equal(t, int64(1), errorCount(t, mon, "batch.ProcessLeaderboards"))
}

func TestProcessEntriesSortsByPosition(t *testing.T) {
	p := New(Config{})

	docs := []leaderboard.Document{
		entryDoc("e-3", 3),
		entryDoc("e-1", 1),
		entryDoc("e-2", 2),
	}

	entries := p.ProcessEntries(context.Background(), docs)
	require.Len(t, entries, 3)
	assert.Equal(t, "e-1", entries[0].ID)
	assert.Equal(t, "e-2", entries[1].ID)
	assert.Equal(t, "e-3", entries[2].ID)
}

func TestEnhanceEntryAppliesAdjustment(t *testing.T) {
	rating := &stubRating{adjustments: map[string]leaderboard.RatingAdjustment{
		"player-e-1": {ScoreToPar: -2, Delta: 1.5},
	}}
	p := New(Config{Rating: rating})

	e := &leaderboard.Entry{ID: "e-1", LeaderboardID: "lb-1", PlayerID: "player-e-1", Score: 70}
	enhanced := p.EnhanceEntry(context.Background(), e)

	require.NotNil(t, enhanced)
	assert.Equal(t, -2, enhanced.ScoreToPar)
	// The input entry is untouched.
	assert.Equal(t, 0, e.ScoreToPar)
}

func TestEnhanceEntryDegradesOnFailure(t *testing.T) {
	mon := metrics.NewMonitor()
	rating := &stubRating{err: errors.New("rating engine down")}
	p := New(Config{Rating: rating, Monitor: mon})

	e := &leaderboard.Entry{ID: "e-1", LeaderboardID: "lb-1", PlayerID: "p-1", Score: 70, ScoreToPar: 1}
	enhanced := p.EnhanceEntry(context.Background(), e)

	// Degraded: the unenhanced entry comes back as-is, no error escapes.
	assert.Same(t, e, enhanced)
	assert.Equal(t, int64(1), errorCount(t, mon, "batch.EnhanceEntry"))
}

func TestEnhanceEntryNoRatingEngine(t *testing.T) {
	p := New(Config{})
	e := &leaderboard.Entry{ID: "e-1", LeaderboardID: "lb-1", PlayerID: "p-1"}
	assert.Same(t, e, p.EnhanceEntry(context.Background(), e))
}

func TestEnhanceEntryBreakerShortCircuits(t *testing.T) {
	rating := &stubRating{err: errors.New("rating engine down")}
	breaker := circuitbreaker.RatingEngineBreaker(nil)
	p := New(Config{Rating: rating, Breaker: breaker})

	e := &leaderboard.Entry{ID: "e-1", LeaderboardID: "lb-1", PlayerID: "p-1", Score: 70}

	// Three consecutive failures trip the rating breaker.
	for i := 0; i < 3; i++ {
		p.EnhanceEntry(context.Background(), e)
	}
	require.True(t, breaker.IsOpen())

	// Once open, enhancement degrades without touching the engine.
	callsBefore := rating.calls
	enhanced := p.EnhanceEntry(context.Background(), e)
	assert.Same(t, e, enhanced)
	assert.Equal(t, callsBefore, rating.calls)
}

func TestEnhanceEntriesPreservesOrder(t *testing.T) {
	rating := &stubRating{adjustments: map[string]leaderboard.RatingAdjustment{}}
	p := New(Config{Rating: rating, MaxConcurrent: 8})

	entries := make([]*leaderboard.Entry, 16)
	for i := range entries {
		entries[i] = &leaderboard.Entry{
			ID:            fmt.Sprintf("e-%02d", i),
			LeaderboardID: "lb-1",
			PlayerID:      fmt.Sprintf("p-%02d", i),
		}
	}

	enhanced := p.EnhanceEntries(context.Background(), entries)
	require.Len(t, enhanced, 16)
	for i, e := range enhanced {
		assert.Equal(t, fmt.Sprintf("e-%02d", i), e.ID)
	}
}
