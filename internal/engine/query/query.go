// Package query builds backend-appropriate filter/sort/pagination
// descriptors for each leaderboard access pattern. All functions are pure:
// they encode the index-friendly shape of a query and nothing else.
package query

import (
	"time"

	"github.com/golffinder/leaderboard-engine/internal/domain/leaderboard"
	"github.com/golffinder/leaderboard-engine/pkg/timeutil"
)

// Default result caps per access pattern. Composite views are capped so a
// viral course page cannot drag the whole collection over the wire.
const (
	MaxCourseResults     = 100
	MaxTournamentResults = 50
	MaxFriendsResults    = 50
	MaxOverallResults    = 100
	DefaultEntryLimit    = 100
)

// ByCourse returns active leaderboards for one course, most recently
// updated first. Matches the (course_id, is_active, updated_at) index.
func ByCourse(courseID string) leaderboard.Query {
	return leaderboard.Query{
		Collection: leaderboard.CollectionLeaderboards,
		Filters: []leaderboard.Filter{
			{Field: "course_id", Op: leaderboard.OpEqual, Value: courseID},
			{Field: "is_active", Op: leaderboard.OpEqual, Value: true},
		},
		OrderBy: []leaderboard.Order{{Field: "updated_at", Descending: true}},
		Limit:   MaxCourseResults,
	}
}

// ByTournament returns leaderboards attached to one tournament.
func ByTournament(tournamentID string) leaderboard.Query {
	return leaderboard.Query{
		Collection: leaderboard.CollectionLeaderboards,
		Filters: []leaderboard.Filter{
			{Field: "tournament_id", Op: leaderboard.OpEqual, Value: tournamentID},
			{Field: "type", Op: leaderboard.OpEqual, Value: string(leaderboard.TypeTournament)},
		},
		OrderBy: []leaderboard.Order{{Field: "updated_at", Descending: true}},
		Limit:   MaxTournamentResults,
	}
}

// ByFriends composes a filter over the participant-id set returned by the
// social graph. An optional course id narrows the result further.
func ByFriends(friendIDs []string, courseID string) leaderboard.Query {
	filters := []leaderboard.Filter{
		{Field: "participant_ids", Op: leaderboard.OpIn, Value: friendIDs},
		{Field: "is_active", Op: leaderboard.OpEqual, Value: true},
	}
	if courseID != "" {
		filters = append(filters, leaderboard.Filter{
			Field: "course_id", Op: leaderboard.OpEqual, Value: courseID,
		})
	}
	return leaderboard.Query{
		Collection: leaderboard.CollectionLeaderboards,
		Filters:    filters,
		OrderBy:    []leaderboard.Order{{Field: "updated_at", Descending: true}},
		Limit:      MaxFriendsResults,
	}
}

// ByPeriod returns overall leaderboards for a period, optionally scoped to
// one course. Period windows are anchored to UTC.
func ByPeriod(courseID string, period leaderboard.Period, now time.Time) leaderboard.Query {
	filters := []leaderboard.Filter{
		{Field: "type", Op: leaderboard.OpEqual, Value: string(leaderboard.TypeOverall)},
		{Field: "period", Op: leaderboard.OpEqual, Value: string(period)},
		{Field: "is_active", Op: leaderboard.OpEqual, Value: true},
	}
	if courseID != "" {
		filters = append(filters, leaderboard.Filter{
			Field: "course_id", Op: leaderboard.OpEqual, Value: courseID,
		})
	}
	if start, _ := timeutil.PeriodWindow(string(period), now); !start.IsZero() {
		filters = append(filters, leaderboard.Filter{
			Field: "updated_at", Op: leaderboard.OpGreater, Value: start.Format(time.RFC3339Nano),
		})
	}
	return leaderboard.Query{
		Collection: leaderboard.CollectionLeaderboards,
		Filters:    filters,
		OrderBy:    []leaderboard.Order{{Field: "updated_at", Descending: true}},
		Limit:      MaxOverallResults,
	}
}

// EntriesByLeaderboard returns a page of entries in position order.
// Ascending position means the result is directly renderable without a
// client-side re-sort.
func EntriesByLeaderboard(leaderboardID string, limit, offset int) leaderboard.Query {
	if limit <= 0 {
		limit = DefaultEntryLimit
	}
	if offset < 0 {
		offset = 0
	}
	return leaderboard.Query{
		Collection: leaderboard.CollectionEntries,
		Filters: []leaderboard.Filter{
			{Field: "leaderboard_id", Op: leaderboard.OpEqual, Value: leaderboardID},
		},
		OrderBy: []leaderboard.Order{{Field: "position", Descending: false}},
		Limit:   limit,
		Offset:  offset,
	}
}

// EntriesByPlayer returns a player's entries across leaderboards, newest
// first. Used by the live-position path to find the player's open rounds.
func EntriesByPlayer(playerID string, limit int) leaderboard.Query {
	if limit <= 0 {
		limit = DefaultEntryLimit
	}
	return leaderboard.Query{
		Collection: leaderboard.CollectionEntries,
		Filters: []leaderboard.Filter{
			{Field: "player_id", Op: leaderboard.OpEqual, Value: playerID},
		},
		OrderBy: []leaderboard.Order{{Field: "updated_at", Descending: true}},
		Limit:   limit,
	}
}
