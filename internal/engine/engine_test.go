package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golffinder/leaderboard-engine/internal/domain/leaderboard"
	"github.com/golffinder/leaderboard-engine/internal/domain/shared"
	"github.com/golffinder/leaderboard-engine/internal/engine/query"
)

// ─────────────────────────────────────────────────────────────────────────────
// FAKES
// ─────────────────────────────────────────────────────────────────────────────

// memStore is an in-memory document store with a minimal query evaluator,
// enough to satisfy the engine's access patterns.
type memStore struct {
	mu   sync.Mutex
	docs map[string]map[string]leaderboard.Document

	gets, lists, creates, updates, deletes int

	listErrOnce error
	getErr      error
}

func newMemStore() *memStore {
	return &memStore{docs: map[string]map[string]leaderboard.Document{
		leaderboard.CollectionLeaderboards: {},
		leaderboard.CollectionEntries:      {},
	}}
}

func (m *memStore) Create(_ context.Context, collection, id string, doc leaderboard.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if _, exists := m.docs[collection][id]; exists {
		return shared.NewError("memstore", "Create", shared.ErrWriteFailed, "duplicate id")
	}
	m.docs[collection][id] = doc
	return nil
}

func (m *memStore) Get(_ context.Context, collection, id string) (leaderboard.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.getErr != nil {
		return nil, m.getErr
	}
	doc, ok := m.docs[collection][id]
	if !ok {
		return nil, shared.NewError("memstore", "Get", shared.ErrNotFound, "document not found")
	}
	return doc, nil
}

func (m *memStore) List(_ context.Context, q leaderboard.Query) ([]leaderboard.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	if m.listErrOnce != nil {
		err := m.listErrOnce
		m.listErrOnce = nil
		return nil, err
	}

	var out []leaderboard.Document
	for _, doc := range m.docs[q.Collection] {
		if matches(doc, q.Filters) {
			out = append(out, doc)
		}
	}
	if len(q.OrderBy) > 0 {
		o := q.OrderBy[0]
		sort.SliceStable(out, func(i, j int) bool {
			if o.Field == "position" {
				a, _ := out[i][o.Field].(int)
				b, _ := out[j][o.Field].(int)
				if o.Descending {
					return a > b
				}
				return a < b
			}
			a, _ := out[i][o.Field].(string)
			b, _ := out[j][o.Field].(string)
			if o.Descending {
				return a > b
			}
			return a < b
		})
	}
	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return nil, nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func matches(doc leaderboard.Document, filters []leaderboard.Filter) bool {
	for _, f := range filters {
		switch f.Op {
		case leaderboard.OpEqual:
			if doc[f.Field] != f.Value {
				return false
			}
		case leaderboard.OpIn:
			candidates, _ := f.Value.([]string)
			members, _ := doc[f.Field].([]string)
			found := false
			for _, c := range candidates {
				for _, m := range members {
					if c == m {
						found = true
					}
				}
			}
			if !found {
				return false
			}
		case leaderboard.OpGreater:
			v, _ := doc[f.Field].(string)
			bound, _ := f.Value.(string)
			if v < bound {
				return false
			}
		case leaderboard.OpLess:
			v, _ := doc[f.Field].(string)
			bound, _ := f.Value.(string)
			if v > bound {
				return false
			}
		}
	}
	return true
}

func (m *memStore) Update(_ context.Context, collection, id string, doc leaderboard.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	if _, ok := m.docs[collection][id]; !ok {
		return shared.NewError("memstore", "Update", shared.ErrNotFound, "document not found")
	}
	m.docs[collection][id] = doc
	return nil
}

func (m *memStore) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	if _, ok := m.docs[collection][id]; !ok {
		return shared.NewError("memstore", "Delete", shared.ErrNotFound, "document not found")
	}
	delete(m.docs[collection], id)
	return nil
}

func (m *memStore) count(collection string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs[collection])
}

type stubSocial struct {
	friends []string
	err     error
}

func (s *stubSocial) FriendIDs(context.Context, string) ([]string, error) {
	return s.friends, s.err
}

type recordingRemote struct {
	mu      sync.Mutex
	boards  []string
	courses []string
	updates []leaderboard.Update
}

func (r *recordingRemote) PublishBoardInvalidation(_ context.Context, id string) {
	r.mu.Lock()
	r.boards = append(r.boards, id)
	r.mu.Unlock()
}

func (r *recordingRemote) PublishCourseInvalidation(_ context.Context, courseID string) {
	r.mu.Lock()
	r.courses = append(r.courses, courseID)
	r.mu.Unlock()
}

func (r *recordingRemote) PublishUpdate(_ context.Context, u leaderboard.Update) {
	r.mu.Lock()
	r.updates = append(r.updates, u)
	r.mu.Unlock()
}

func (r *recordingRemote) boardCalls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.boards...)
}

// ─────────────────────────────────────────────────────────────────────────────
// SETUP
// ─────────────────────────────────────────────────────────────────────────────

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = 5 * time.Millisecond
	}
	eng, err := New(cfg)
	require.NoError(t, err)
	eng.Broker().SetThrottle(time.Millisecond, time.Millisecond)
	t.Cleanup(eng.Close)
	return eng
}

func createBoard(t *testing.T, eng *Engine, id string, mutate func(*leaderboard.Leaderboard)) *leaderboard.Leaderboard {
	t.Helper()
	lb, err := leaderboard.NewLeaderboard(id, "course-1", "Board "+id, leaderboard.TypeDaily, leaderboard.PeriodDaily, 100)
	require.NoError(t, err)
	if mutate != nil {
		mutate(lb)
	}
	created, err := eng.CreateLeaderboard(context.Background(), lb)
	require.NoError(t, err)
	return created
}

func submitScore(t *testing.T, eng *Engine, leaderboardID, playerID string, score int) *leaderboard.Entry {
	t.Helper()
	result, err := eng.SubmitEntry(context.Background(), &leaderboard.Entry{
		LeaderboardID: leaderboardID,
		PlayerID:      playerID,
		PlayerName:    "Player " + playerID,
		Score:         score,
		HolesPlayed:   18,
	})
	require.NoError(t, err)
	return result
}

// ─────────────────────────────────────────────────────────────────────────────
// TESTS
// ─────────────────────────────────────────────────────────────────────────────

func TestNewRequiresStore(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestCreateAndGetLeaderboard(t *testing.T) {
	store := newMemStore()
	eng := newTestEngine(t, Config{Stores: []leaderboard.Store{store}})

	lb, err := leaderboard.NewLeaderboard("", "course-1", "Morning Round", leaderboard.TypeDaily, leaderboard.PeriodDaily, 50)
	require.NoError(t, err)
	created, err := eng.CreateLeaderboard(context.Background(), lb)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.UpdatedAt.IsZero())

	got, err := eng.GetLeaderboard(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Morning Round", got.Name)
}

func TestGetLeaderboardCacheFirst(t *testing.T) {
	store := newMemStore()
	eng := newTestEngine(t, Config{Stores: []leaderboard.Store{store}})
	board := createBoard(t, eng, "lb-1", nil)

	// CreateLeaderboard primes the single-board cache, so the first read
	// never reaches the store.
	before := store.gets
	_, err := eng.GetLeaderboard(context.Background(), board.ID)
	require.NoError(t, err)
	_, err = eng.GetLeaderboard(context.Background(), board.ID)
	require.NoError(t, err)
	assert.Equal(t, before, store.gets)
}

func TestGetLeaderboardNotFound(t *testing.T) {
	eng := newTestEngine(t, Config{Stores: []leaderboard.Store{newMemStore()}})

	_, err := eng.GetLeaderboard(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}

func TestReadRetriesTransientFailure(t *testing.T) {
	store := newMemStore()
	eng := newTestEngine(t, Config{Stores: []leaderboard.Store{store}})
	createBoard(t, eng, "lb-1", nil)
	eng.Cache().Clear()

	store.listErrOnce = errors.New("connection reset")
	boards, err := eng.GetLeaderboards(context.Background(), "course-1")
	require.NoError(t, err)
	require.Len(t, boards, 1)
	assert.Equal(t, "lb-1", boards[0].ID)
}

func TestSubmitEntryRanksBoard(t *testing.T) {
	store := newMemStore()
	eng := newTestEngine(t, Config{Stores: []leaderboard.Store{store}})
	board := createBoard(t, eng, "lb-1", nil)

	a := submitScore(t, eng, board.ID, "player-a", 70)
	assert.Equal(t, leaderboard.Position(1), a.Position)

	b := submitScore(t, eng, board.ID, "player-b", 72)
	assert.Equal(t, leaderboard.Position(2), b.Position)

	// A 68 takes the lead and pushes the others down.
	c := submitScore(t, eng, board.ID, "player-c", 68)
	assert.Equal(t, leaderboard.Position(1), c.Position)

	entries, err := eng.GetEntries(context.Background(), board.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "player-c", entries[0].PlayerID)
	assert.Equal(t, "player-a", entries[1].PlayerID)
	assert.Equal(t, "player-b", entries[2].PlayerID)

	deltas := eng.RecentDeltas(board.ID)
	assert.NotEmpty(t, deltas)
}

func TestSubmitEntryInvalid(t *testing.T) {
	eng := newTestEngine(t, Config{Stores: []leaderboard.Store{newMemStore()}})

	_, err := eng.SubmitEntry(context.Background(), &leaderboard.Entry{
		LeaderboardID: "lb-1",
		// missing player id
		Score: 70,
	})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestSubmitEntryReadOnlyBoard(t *testing.T) {
	eng := newTestEngine(t, Config{Stores: []leaderboard.Store{newMemStore()}})
	board := createBoard(t, eng, "lb-1", func(lb *leaderboard.Leaderboard) {
		lb.IsActive = false
	})

	_, err := eng.SubmitEntry(context.Background(), &leaderboard.Entry{
		LeaderboardID: board.ID,
		PlayerID:      "player-a",
		Score:         70,
	})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
	assert.Contains(t, err.Error(), "read-only")
}

func TestSubmitEntryFullBoard(t *testing.T) {
	eng := newTestEngine(t, Config{Stores: []leaderboard.Store{newMemStore()}})
	board := createBoard(t, eng, "lb-1", func(lb *leaderboard.Leaderboard) {
		lb.MaxEntries = 2
	})

	submitScore(t, eng, board.ID, "player-a", 70)
	submitScore(t, eng, board.ID, "player-b", 71)

	_, err := eng.SubmitEntry(context.Background(), &leaderboard.Entry{
		LeaderboardID: board.ID,
		PlayerID:      "player-c",
		Score:         69,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "full")
}

func TestUpdateEntryRecalculates(t *testing.T) {
	eng := newTestEngine(t, Config{Stores: []leaderboard.Store{newMemStore()}})
	board := createBoard(t, eng, "lb-1", nil)

	a := submitScore(t, eng, board.ID, "player-a", 70)
	submitScore(t, eng, board.ID, "player-b", 72)

	// A correction drops player-a behind player-b.
	a.Score = 75
	corrected, err := eng.UpdateEntry(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, leaderboard.Position(2), corrected.Position)
	assert.Equal(t, leaderboard.Position(1), corrected.PreviousPosition)
}

func TestUpdateEntryWithoutRankState(t *testing.T) {
	eng := newTestEngine(t, Config{Stores: []leaderboard.Store{newMemStore()}})
	board := createBoard(t, eng, "lb-1", nil)
	a := submitScore(t, eng, board.ID, "player-a", 70)
	submitScore(t, eng, board.ID, "player-b", 72)

	// A correction decoded off the wire carries no position fields; the
	// stored rank must still surface as the previous position.
	corrected, err := eng.UpdateEntry(context.Background(), &leaderboard.Entry{
		ID:            a.ID,
		LeaderboardID: board.ID,
		PlayerID:      "player-a",
		PlayerName:    a.PlayerName,
		Score:         75,
		HolesPlayed:   18,
	})
	require.NoError(t, err)
	assert.Equal(t, leaderboard.Position(2), corrected.Position)
	assert.Equal(t, leaderboard.Position(1), corrected.PreviousPosition)
}

func TestUpdateEntryMissing(t *testing.T) {
	eng := newTestEngine(t, Config{Stores: []leaderboard.Store{newMemStore()}})
	board := createBoard(t, eng, "lb-1", nil)

	_, err := eng.UpdateEntry(context.Background(), &leaderboard.Entry{
		ID:            "ghost",
		LeaderboardID: board.ID,
		PlayerID:      "player-a",
		Score:         70,
	})
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}

func TestDeleteLeaderboardCascades(t *testing.T) {
	store := newMemStore()
	eng := newTestEngine(t, Config{Stores: []leaderboard.Store{store}})
	board := createBoard(t, eng, "lb-1", nil)
	submitScore(t, eng, board.ID, "player-a", 70)
	submitScore(t, eng, board.ID, "player-b", 72)

	require.NoError(t, eng.DeleteLeaderboard(context.Background(), board.ID))
	assert.Equal(t, 0, store.count(leaderboard.CollectionLeaderboards))
	assert.Equal(t, 0, store.count(leaderboard.CollectionEntries))

	_, err := eng.GetLeaderboard(context.Background(), board.ID)
	assert.True(t, shared.IsNotFound(err))

	// A second delete reports the absence.
	err = eng.DeleteLeaderboard(context.Background(), board.ID)
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}

func TestDeleteLeaderboardCascadesBeyondPageSize(t *testing.T) {
	store := newMemStore()
	eng := newTestEngine(t, Config{Stores: []leaderboard.Store{store}})
	board := createBoard(t, eng, "lb-big", func(lb *leaderboard.Leaderboard) {
		lb.MaxEntries = query.DefaultEntryLimit + 50
	})
	for i := 0; i < query.DefaultEntryLimit+50; i++ {
		submitScore(t, eng, board.ID, fmt.Sprintf("player-%03d", i), 60+i)
	}
	require.Equal(t, query.DefaultEntryLimit+50, store.count(leaderboard.CollectionEntries))

	// The field exceeds one entry page; every row must still go.
	require.NoError(t, eng.DeleteLeaderboard(context.Background(), board.ID))
	assert.Equal(t, 0, store.count(leaderboard.CollectionEntries))
	assert.Equal(t, 0, store.count(leaderboard.CollectionLeaderboards))
}

func TestGetLeaderboardsByCourse(t *testing.T) {
	eng := newTestEngine(t, Config{Stores: []leaderboard.Store{newMemStore()}})
	createBoard(t, eng, "lb-1", nil)
	createBoard(t, eng, "lb-2", func(lb *leaderboard.Leaderboard) {
		lb.CourseID = "course-2"
	})
	createBoard(t, eng, "lb-3", func(lb *leaderboard.Leaderboard) {
		lb.IsActive = false
	})

	boards, err := eng.GetLeaderboards(context.Background(), "course-1")
	require.NoError(t, err)
	require.Len(t, boards, 1)
	assert.Equal(t, "lb-1", boards[0].ID)
}

func TestGetTournamentLeaderboards(t *testing.T) {
	eng := newTestEngine(t, Config{Stores: []leaderboard.Store{newMemStore()}})
	createBoard(t, eng, "lb-t1", func(lb *leaderboard.Leaderboard) {
		lb.Type = leaderboard.TypeTournament
		lb.TournamentID = "masters-2026"
	})
	createBoard(t, eng, "lb-t2", func(lb *leaderboard.Leaderboard) {
		lb.Type = leaderboard.TypeTournament
		lb.TournamentID = "open-2026"
	})

	boards, err := eng.GetTournamentLeaderboards(context.Background(), "masters-2026")
	require.NoError(t, err)
	require.Len(t, boards, 1)
	assert.Equal(t, "lb-t1", boards[0].ID)
}

func TestGetFriendsLeaderboards(t *testing.T) {
	social := &stubSocial{friends: []string{"player-b"}}
	eng := newTestEngine(t, Config{Stores: []leaderboard.Store{newMemStore()}, Social: social})

	board := createBoard(t, eng, "lb-1", nil)
	createBoard(t, eng, "lb-2", nil)
	submitScore(t, eng, board.ID, "player-b", 70)

	boards, err := eng.GetFriendsLeaderboards(context.Background(), "player-a", "")
	require.NoError(t, err)
	require.Len(t, boards, 1)
	assert.Equal(t, "lb-1", boards[0].ID)
}

func TestGetFriendsLeaderboardsNoFriends(t *testing.T) {
	eng := newTestEngine(t, Config{Stores: []leaderboard.Store{newMemStore()}, Social: &stubSocial{}})

	boards, err := eng.GetFriendsLeaderboards(context.Background(), "player-a", "")
	require.NoError(t, err)
	assert.Nil(t, boards)
}

func TestGetFriendsLeaderboardsSocialDown(t *testing.T) {
	social := &stubSocial{err: errors.New("graph unavailable")}
	eng := newTestEngine(t, Config{Stores: []leaderboard.Store{newMemStore()}, Social: social})

	_, err := eng.GetFriendsLeaderboards(context.Background(), "player-a", "")
	require.Error(t, err)
	assert.True(t, shared.IsDependencyUnavailable(err))
}

func TestGetFriendsLeaderboardsNotConfigured(t *testing.T) {
	eng := newTestEngine(t, Config{Stores: []leaderboard.Store{newMemStore()}})

	_, err := eng.GetFriendsLeaderboards(context.Background(), "player-a", "")
	require.Error(t, err)
	assert.True(t, shared.IsDependencyUnavailable(err))
}

func TestGetOverallLeaderboards(t *testing.T) {
	eng := newTestEngine(t, Config{Stores: []leaderboard.Store{newMemStore()}})
	createBoard(t, eng, "lb-o1", func(lb *leaderboard.Leaderboard) {
		lb.Type = leaderboard.TypeOverall
	})
	createBoard(t, eng, "lb-d1", nil) // daily board, out of scope

	boards, err := eng.GetOverallLeaderboards(context.Background(), "course-1", leaderboard.PeriodDaily)
	require.NoError(t, err)
	require.Len(t, boards, 1)
	assert.Equal(t, "lb-o1", boards[0].ID)

	_, err = eng.GetOverallLeaderboards(context.Background(), "course-1", "yearly")
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestSubscribeReceivesSubmissionEvents(t *testing.T) {
	eng := newTestEngine(t, Config{Stores: []leaderboard.Store{newMemStore()}})
	board := createBoard(t, eng, "lb-1", nil)

	ch, cancel := eng.Subscribe(board.ID)
	defer cancel()

	submitScore(t, eng, board.ID, "player-a", 70)

	seen := make(map[leaderboard.UpdateType]bool)
	deadline := time.After(2 * time.Second)
	for len(seen) < 2 {
		select {
		case u := <-ch:
			seen[u.Type] = true
		case <-deadline:
			t.Fatalf("timed out, saw %v", seen)
		}
	}
	assert.True(t, seen[leaderboard.UpdateEntryAdded])
	assert.True(t, seen[leaderboard.UpdatePositionsChanged])
}

func TestUpdateLivePosition(t *testing.T) {
	eng := newTestEngine(t, Config{Stores: []leaderboard.Store{newMemStore()}})
	board := createBoard(t, eng, "lb-1", nil)
	submitScore(t, eng, board.ID, "player-a", 68)
	submitScore(t, eng, board.ID, "player-b", 74)

	ch, cancel := eng.Subscribe(board.ID)
	defer cancel()

	// 70 mid-round slots between the two completed scores. Without a
	// rating engine the current score stands in for the projection.
	est, err := eng.UpdateLivePosition(context.Background(), board.ID, "player-x", 70, 12)
	require.NoError(t, err)
	assert.Equal(t, leaderboard.Position(2), est.Estimated)
	assert.Equal(t, 70, est.ProjectedScore)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case u := <-ch:
			if u.Type == leaderboard.UpdateLivePosition {
				require.NotNil(t, u.Entry)
				assert.True(t, u.Entry.IsLive)
				assert.Equal(t, leaderboard.Position(2), u.Entry.Position)
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for live update")
		}
	}
}

func TestUpdateLivePositionFullField(t *testing.T) {
	eng := newTestEngine(t, Config{Stores: []leaderboard.Store{newMemStore()}})
	fieldSize := query.DefaultEntryLimit + 20
	board := createBoard(t, eng, "lb-big", func(lb *leaderboard.Leaderboard) {
		lb.MaxEntries = fieldSize
	})
	for i := 0; i < fieldSize; i++ {
		submitScore(t, eng, board.ID, fmt.Sprintf("player-%03d", i), 60+i)
	}

	// Force the cache-miss path: the projection must rank against the
	// whole field, not the first entry page.
	eng.Cache().Clear()
	est, err := eng.UpdateLivePosition(context.Background(), board.ID, "player-live", 500, 9)
	require.NoError(t, err)
	assert.Equal(t, leaderboard.Position(fieldSize+1), est.Estimated)
}

func TestRemoteInvalidationOnWrites(t *testing.T) {
	eng := newTestEngine(t, Config{Stores: []leaderboard.Store{newMemStore()}})
	remote := &recordingRemote{}
	eng.SetRemote(remote)

	board := createBoard(t, eng, "lb-1", nil)
	assert.Equal(t, []string{"course-1"}, remote.courses)

	submitScore(t, eng, board.ID, "player-a", 70)
	assert.Equal(t, []string{"lb-1"}, remote.boardCalls())

	require.NoError(t, eng.DeleteLeaderboard(context.Background(), board.ID))
	assert.Equal(t, []string{"lb-1", "lb-1"}, remote.boardCalls())
}

func TestSubscribeLiveTournament(t *testing.T) {
	eng := newTestEngine(t, Config{Stores: []leaderboard.Store{newMemStore()}})
	board := createBoard(t, eng, "lb-t1", func(lb *leaderboard.Leaderboard) {
		lb.Type = leaderboard.TypeTournament
		lb.TournamentID = "masters-2026"
	})

	ch, cancel, err := eng.SubscribeLiveTournament(context.Background(), "masters-2026")
	require.NoError(t, err)
	defer cancel()

	submitScore(t, eng, board.ID, "player-a", 70)

	select {
	case batch := <-ch:
		require.NotEmpty(t, batch)
		assert.Equal(t, board.ID, batch[0].LeaderboardID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tournament batch")
	}
}

func TestGetEntriesPagination(t *testing.T) {
	eng := newTestEngine(t, Config{Stores: []leaderboard.Store{newMemStore()}})
	board := createBoard(t, eng, "lb-1", nil)
	for i := 0; i < 5; i++ {
		submitScore(t, eng, board.ID, fmt.Sprintf("player-%d", i), 70+i)
	}

	page, err := eng.GetEntries(context.Background(), board.ID, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, leaderboard.Position(3), page[0].Position)
	assert.Equal(t, leaderboard.Position(4), page[1].Position)
}

func TestReportAccumulates(t *testing.T) {
	eng := newTestEngine(t, Config{Stores: []leaderboard.Store{newMemStore()}})
	createBoard(t, eng, "lb-1", nil)
	_, _ = eng.GetLeaderboard(context.Background(), "lb-1")

	r := eng.Report()
	assert.Greater(t, r.TotalCalls, int64(0))
}
