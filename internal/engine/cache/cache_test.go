package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golffinder/leaderboard-engine/internal/domain/leaderboard"
)

func testBoard(t *testing.T, id, courseID string) *leaderboard.Leaderboard {
	t.Helper()
	lb, err := leaderboard.NewLeaderboard(id, courseID, "Board "+id, leaderboard.TypeDaily, leaderboard.PeriodDaily, 100)
	require.NoError(t, err)
	return lb
}

func TestCacheGetSet(t *testing.T) {
	c := New()
	lb := testBoard(t, "lb-1", "course-1")

	assert.Nil(t, c.Get("lb-1"))

	c.Set(lb, DefaultTTL)
	got := c.Get("lb-1")
	require.NotNil(t, got)
	assert.Equal(t, "lb-1", got.ID)
	assert.Equal(t, "course-1", got.CourseID)
}

func TestCacheReturnsClones(t *testing.T) {
	c := New()
	lb := testBoard(t, "lb-1", "course-1")
	c.Set(lb, DefaultTTL)

	// Mutating the original after Set must not affect the cache.
	lb.Name = "mutated"
	got := c.Get("lb-1")
	require.NotNil(t, got)
	assert.Equal(t, "Board lb-1", got.Name)

	// Mutating a returned value must not affect later reads.
	got.Name = "also mutated"
	again := c.Get("lb-1")
	require.NotNil(t, again)
	assert.Equal(t, "Board lb-1", again.Name)
}

func TestCacheTTLExpiry(t *testing.T) {
	// A 5-second TTL: present at t=0s and t=3s, gone at t=6s.
	current := time.Unix(1_000_000, 0)
	c := New(WithClock(func() time.Time { return current }))

	c.Set(testBoard(t, "lb-1", "course-1"), 5*time.Second)
	require.NotNil(t, c.Get("lb-1"))

	current = current.Add(3 * time.Second)
	require.NotNil(t, c.Get("lb-1"))

	current = current.Add(3 * time.Second)
	assert.Nil(t, c.Get("lb-1"))

	// Lazy expiry physically removed the slot.
	assert.Equal(t, 0, c.Stats().Single)
}

func TestCacheEvictionUnderPressure(t *testing.T) {
	c := New(WithCapacity(10))

	for i := 0; i < 10; i++ {
		c.Set(testBoard(t, fmt.Sprintf("lb-%d", i), "course-1"), DefaultTTL)
	}
	// Touch every resident board so the incoming one has the strictly
	// lowest access count.
	for i := 0; i < 10; i++ {
		require.NotNil(t, c.Get(fmt.Sprintf("lb-%d", i)))
	}

	c.Set(testBoard(t, "lb-10", "course-1"), DefaultTTL)

	stats := c.Stats()
	assert.Equal(t, 10, stats.Single)
	assert.Equal(t, int64(1), stats.Evictions)
	assert.Nil(t, c.Get("lb-10"))
	assert.NotNil(t, c.Get("lb-5"))
}

func TestCacheCourseLayer(t *testing.T) {
	c := New()
	boards := []*leaderboard.Leaderboard{
		testBoard(t, "lb-1", "course-1"),
		testBoard(t, "lb-2", "course-1"),
	}

	assert.Nil(t, c.GetByCourse("course-1"))

	c.SetByCourse("course-1", boards, DefaultTTL)
	got := c.GetByCourse("course-1")
	require.Len(t, got, 2)
	assert.Equal(t, "lb-1", got[0].ID)
	assert.Equal(t, "lb-2", got[1].ID)
}

func TestCacheOverallLayer(t *testing.T) {
	c := New()
	boards := []*leaderboard.Leaderboard{testBoard(t, "lb-1", "course-1")}

	c.SetOverall("course-1", leaderboard.PeriodWeekly, boards, OverallTTL)

	assert.NotNil(t, c.GetOverall("course-1", leaderboard.PeriodWeekly))
	assert.Nil(t, c.GetOverall("course-1", leaderboard.PeriodMonthly))
	assert.Nil(t, c.GetOverall("course-2", leaderboard.PeriodWeekly))
}

func TestCachePositionSnapshots(t *testing.T) {
	c := New()
	entries := []*leaderboard.Entry{
		{ID: "e-1", LeaderboardID: "lb-1", PlayerID: "p-1", Score: 68, Position: 1},
		{ID: "e-2", LeaderboardID: "lb-1", PlayerID: "p-2", Score: 70, Position: 2},
	}

	assert.Nil(t, c.GetPositions("lb-1"))

	c.SetPositions("lb-1", entries, DefaultTTL)
	got := c.GetPositions("lb-1")
	require.Len(t, got, 2)
	assert.Equal(t, leaderboard.Position(1), got[0].Position)

	// Snapshot values are clones.
	got[0].Score = 99
	again := c.GetPositions("lb-1")
	assert.Equal(t, 68, again[0].Score)
}

func TestCacheInvalidateCascade(t *testing.T) {
	c := New()
	lb1 := testBoard(t, "lb-1", "course-1")
	lb2 := testBoard(t, "lb-2", "course-1")

	c.Set(lb1, DefaultTTL)
	c.Set(lb2, DefaultTTL)
	c.SetByCourse("course-1", []*leaderboard.Leaderboard{lb1, lb2}, DefaultTTL)
	c.SetOverall("course-1", leaderboard.PeriodDaily, []*leaderboard.Leaderboard{lb1}, OverallTTL)
	c.SetOverall("course-1", leaderboard.PeriodWeekly, []*leaderboard.Leaderboard{lb2}, OverallTTL)
	c.SetPositions("lb-1", []*leaderboard.Entry{{ID: "e-1", LeaderboardID: "lb-1", PlayerID: "p-1"}}, DefaultTTL)

	c.InvalidateCascade("lb-1")

	// lb-1's slot, snapshot, and every list containing it are gone.
	assert.Nil(t, c.Get("lb-1"))
	assert.Nil(t, c.GetPositions("lb-1"))
	assert.Nil(t, c.GetByCourse("course-1"))
	assert.Nil(t, c.GetOverall("course-1", leaderboard.PeriodDaily))

	// Views that never contained lb-1 survive.
	assert.NotNil(t, c.Get("lb-2"))
	assert.NotNil(t, c.GetOverall("course-1", leaderboard.PeriodWeekly))
}

func TestCacheInvalidateCourse(t *testing.T) {
	c := New()
	c.SetByCourse("course-1", []*leaderboard.Leaderboard{testBoard(t, "lb-1", "course-1")}, DefaultTTL)
	c.SetByCourse("course-2", []*leaderboard.Leaderboard{testBoard(t, "lb-2", "course-2")}, DefaultTTL)

	c.InvalidateCourse("course-1")

	assert.Nil(t, c.GetByCourse("course-1"))
	assert.NotNil(t, c.GetByCourse("course-2"))
}

func TestCacheSweep(t *testing.T) {
	current := time.Unix(1_000_000, 0)
	c := New(WithClock(func() time.Time { return current }))

	c.Set(testBoard(t, "lb-1", "course-1"), 5*time.Second)
	c.Set(testBoard(t, "lb-2", "course-1"), time.Hour)
	c.SetByCourse("course-1", []*leaderboard.Leaderboard{testBoard(t, "lb-1", "course-1")}, 5*time.Second)
	c.SetPositions("lb-1", []*leaderboard.Entry{{ID: "e-1", LeaderboardID: "lb-1", PlayerID: "p-1"}}, 5*time.Second)

	current = current.Add(10 * time.Second)
	removed := c.Sweep()

	assert.Equal(t, 3, removed)
	stats := c.Stats()
	assert.Equal(t, 1, stats.Single)
	assert.Equal(t, 0, stats.Course)
	assert.Equal(t, 0, stats.Positions)
}

func TestCacheStatsHitRate(t *testing.T) {
	c := New()

	assert.Equal(t, float64(-1), c.Stats().HitRate())

	c.Set(testBoard(t, "lb-1", "course-1"), DefaultTTL)
	c.Get("lb-1")
	c.Get("lb-1")
	c.Get("missing")

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 2.0/3.0, stats.HitRate(), 1e-9)
}

func TestCacheClear(t *testing.T) {
	c := New()
	c.Set(testBoard(t, "lb-1", "course-1"), DefaultTTL)
	c.SetByCourse("course-1", []*leaderboard.Leaderboard{testBoard(t, "lb-1", "course-1")}, DefaultTTL)

	c.Clear()

	stats := c.Stats()
	assert.Equal(t, 0, stats.Single)
	assert.Equal(t, 0, stats.Course)
}
