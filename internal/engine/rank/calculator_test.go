package rank

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golffinder/leaderboard-engine/internal/domain/leaderboard"
	"github.com/golffinder/leaderboard-engine/internal/domain/shared"
)

type fakeRating struct {
	projected leaderboard.ProjectedRating
	err       error
	calls     int
}

func (f *fakeRating) ProjectFinalRating(_ context.Context, _ string, _ leaderboard.RoundSnapshot) (leaderboard.ProjectedRating, error) {
	f.calls++
	if f.err != nil {
		return leaderboard.ProjectedRating{}, f.err
	}
	return f.projected, nil
}

func (f *fakeRating) CalculateRelativePerformance(_ context.Context, _, _ string) (leaderboard.RatingAdjustment, error) {
	return leaderboard.RatingAdjustment{}, nil
}

func entry(playerID string, score int, pos leaderboard.Position, updatedAt time.Time) *leaderboard.Entry {
	return &leaderboard.Entry{
		ID:            "entry-" + playerID,
		LeaderboardID: "lb-1",
		PlayerID:      playerID,
		Score:         score,
		Position:      pos,
		UpdatedAt:     updatedAt,
	}
}

func TestRecalculateAssignsDensePositions(t *testing.T) {
	calc := New(nil)
	base := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	// A and B already hold positions 1 and 2; C submits 68 and should
	// take the lead.
	entries := []*leaderboard.Entry{
		entry("player-a", 70, 1, base),
		entry("player-b", 72, 2, base.Add(time.Minute)),
		entry("player-c", 68, 0, base.Add(2*time.Minute)),
	}

	ordered := calc.Recalculate("lb-1", entries)
	require.Len(t, ordered, 3)

	assert.Equal(t, "player-c", ordered[0].PlayerID)
	assert.Equal(t, leaderboard.Position(1), ordered[0].Position)
	assert.Equal(t, leaderboard.Position(0), ordered[0].PreviousPosition)

	assert.Equal(t, "player-a", ordered[1].PlayerID)
	assert.Equal(t, leaderboard.Position(2), ordered[1].Position)
	assert.Equal(t, leaderboard.Position(1), ordered[1].PreviousPosition)

	assert.Equal(t, "player-b", ordered[2].PlayerID)
	assert.Equal(t, leaderboard.Position(3), ordered[2].Position)
	assert.Equal(t, leaderboard.Position(2), ordered[2].PreviousPosition)
}

func TestRecalculateDoesNotMutateInput(t *testing.T) {
	calc := New(nil)
	base := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	in := []*leaderboard.Entry{
		entry("player-a", 70, 1, base),
		entry("player-b", 68, 2, base),
	}
	calc.Recalculate("lb-1", in)

	assert.Equal(t, leaderboard.Position(1), in[0].Position)
	assert.Equal(t, leaderboard.Position(2), in[1].Position)
}

func TestRecalculateTieBreaks(t *testing.T) {
	calc := New(nil)
	base := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	// Same score: the earlier submission ranks higher. Same score and
	// same timestamp: player id decides, deterministically.
	entries := []*leaderboard.Entry{
		entry("player-c", 70, 0, base.Add(time.Hour)),
		entry("player-b", 70, 0, base),
		entry("player-a", 70, 0, base.Add(time.Hour)),
	}

	ordered := calc.Recalculate("lb-1", entries)
	require.Len(t, ordered, 3)
	assert.Equal(t, "player-b", ordered[0].PlayerID)
	assert.Equal(t, "player-a", ordered[1].PlayerID)
	assert.Equal(t, "player-c", ordered[2].PlayerID)
}

func TestRecalculateEmptyInput(t *testing.T) {
	calc := New(nil)
	assert.Nil(t, calc.Recalculate("lb-1", nil))
	assert.Nil(t, calc.Recalculate("lb-1", []*leaderboard.Entry{}))
}

func TestRecentDeltasRecordsMovement(t *testing.T) {
	calc := New(nil)
	base := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	entries := []*leaderboard.Entry{
		entry("player-a", 70, 1, base),
		entry("player-b", 72, 2, base.Add(time.Minute)),
		entry("player-c", 68, 0, base.Add(2*time.Minute)),
	}
	ordered := calc.Recalculate("lb-1", entries)

	deltas := calc.RecentDeltas("lb-1")
	require.Len(t, deltas, 3)
	assert.Equal(t, "player-c", deltas[0].PlayerID)
	assert.Equal(t, leaderboard.Position(0), deltas[0].OldPosition)
	assert.Equal(t, leaderboard.Position(1), deltas[0].NewPosition)

	// A stable recalculation records nothing new.
	calc.Recalculate("lb-1", ordered)
	assert.Len(t, calc.RecentDeltas("lb-1"), 3)
}

func TestDeltaRetentionWindow(t *testing.T) {
	current := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	calc := New(nil)
	calc.SetClock(func() time.Time { return current })

	calc.RecordDelta("lb-1", "player-a", 3, 1)
	current = current.Add(30 * time.Minute)
	calc.RecordDelta("lb-1", "player-b", 2, 4)

	// Half an hour later both are inside the window.
	require.Len(t, calc.RecentDeltas("lb-1"), 2)

	// 61 minutes after the first record, only the second survives.
	current = current.Add(31 * time.Minute)
	deltas := calc.RecentDeltas("lb-1")
	require.Len(t, deltas, 1)
	assert.Equal(t, "player-b", deltas[0].PlayerID)
}

func TestForgetDropsBoardState(t *testing.T) {
	calc := New(nil)
	calc.RecordDelta("lb-1", "player-a", 2, 1)

	calc.Forget("lb-1")
	assert.Empty(t, calc.RecentDeltas("lb-1"))
}

func TestPruneAllReturnsTrackedBoards(t *testing.T) {
	current := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	calc := New(nil)
	calc.SetClock(func() time.Time { return current })

	calc.RecordDelta("lb-1", "player-a", 2, 1)
	calc.RecordDelta("lb-2", "player-b", 3, 2)

	current = current.Add(2 * time.Hour)
	assert.Equal(t, 2, calc.PruneAll())
	assert.Empty(t, calc.RecentDeltas("lb-1"))
	assert.Empty(t, calc.RecentDeltas("lb-2"))
}

func TestProjectLivePositionUsesRatingEngine(t *testing.T) {
	rating := &fakeRating{projected: leaderboard.ProjectedRating{ProjectedScore: 69, Confidence: 0.8}}
	calc := New(rating)

	standings := []*leaderboard.Entry{
		entry("player-a", 68, 1, time.Now()),
		entry("player-b", 70, 2, time.Now()),
		entry("player-c", 72, 3, time.Now()),
	}

	est, err := calc.ProjectLivePosition(context.Background(), "lb-1", "player-x", 34, 9, standings)
	require.NoError(t, err)
	assert.Equal(t, 1, rating.calls)
	assert.Equal(t, 69, est.ProjectedScore)
	assert.Equal(t, 34, est.CurrentScore)
	assert.Equal(t, 9, est.HolesCompleted)
	// Only player-a's 68 beats the projected 69.
	assert.Equal(t, leaderboard.Position(2), est.Estimated)
}

func TestProjectLivePositionExcludesOwnEntry(t *testing.T) {
	calc := New(nil)

	standings := []*leaderboard.Entry{
		entry("player-a", 60, 1, time.Now()),
		entry("player-x", 61, 2, time.Now()),
	}

	// Without a rating engine the current score stands in for the
	// projection. player-x's own completed entry must not push the
	// estimate down.
	est, err := calc.ProjectLivePosition(context.Background(), "lb-1", "player-x", 70, 12, standings)
	require.NoError(t, err)
	assert.Equal(t, 70, est.ProjectedScore)
	assert.Equal(t, leaderboard.Position(2), est.Estimated)
}

func TestProjectLivePositionRatingFailure(t *testing.T) {
	rating := &fakeRating{err: errors.New("upstream timeout")}
	calc := New(rating)

	est, err := calc.ProjectLivePosition(context.Background(), "lb-1", "player-x", 34, 9, nil)
	require.Error(t, err)
	assert.True(t, shared.IsDependencyUnavailable(err))
	assert.Equal(t, "player-x", est.PlayerID)
}
