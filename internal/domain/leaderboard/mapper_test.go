package leaderboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golffinder/leaderboard-engine/internal/domain/shared"
)

func TestLeaderboardDocumentRoundTrip(t *testing.T) {
	lb := validBoard(t)
	lb.TournamentID = "t-1"
	lb.Description = "club championship"
	lb.EntryFee = 25.0
	lb.PrizePool = 500.0
	expiry := time.Date(2026, time.June, 14, 18, 0, 0, 0, time.UTC)
	lb.ExpiresAt = &expiry

	got, err := LeaderboardFromDocument(lb.ToDocument())
	require.NoError(t, err)

	assert.Equal(t, lb.ID, got.ID)
	assert.Equal(t, lb.CourseID, got.CourseID)
	assert.Equal(t, lb.TournamentID, got.TournamentID)
	assert.Equal(t, lb.Type, got.Type)
	assert.Equal(t, lb.Period, got.Period)
	assert.Equal(t, lb.MaxEntries, got.MaxEntries)
	assert.Equal(t, lb.EntryFee, got.EntryFee)
	assert.True(t, got.IsActive)
	require.NotNil(t, got.ExpiresAt)
	assert.True(t, got.ExpiresAt.Equal(expiry))
}

func TestToDocumentParticipantIDs(t *testing.T) {
	lb := validBoard(t)
	doc := lb.ToDocument()
	_, ok := doc["participant_ids"]
	assert.False(t, ok, "empty board should carry no participant set")

	lb.Entries = []*Entry{
		{PlayerID: "p-1"},
		{PlayerID: "p-2"},
		{PlayerID: "p-1"},
	}
	doc = lb.ToDocument()
	assert.Equal(t, []string{"p-1", "p-2"}, doc["participant_ids"])
}

func TestLeaderboardFromDocumentRejectsMalformed(t *testing.T) {
	_, err := LeaderboardFromDocument(nil)
	assert.True(t, shared.IsValidation(err))

	lb := validBoard(t)
	doc := lb.ToDocument()
	doc["type"] = "hourly"
	_, err = LeaderboardFromDocument(doc)
	assert.True(t, shared.IsValidation(err))
}

func TestEntryDocumentRoundTrip(t *testing.T) {
	h := 8.4
	e := &Entry{
		ID:               "e-1",
		LeaderboardID:    "lb-1",
		PlayerID:         "p-1",
		PlayerName:       "Jordan",
		Score:            70,
		ScoreToPar:       -2,
		Position:         2,
		PreviousPosition: 4,
		HolesPlayed:      18,
		IsLive:           true,
		Handicap:         &h,
		UpdatedAt:        time.Date(2026, time.June, 10, 9, 30, 0, 0, time.UTC),
	}

	got, err := EntryFromDocument(e.ToDocument())
	require.NoError(t, err)

	assert.Equal(t, e.Score, got.Score)
	assert.Equal(t, e.ScoreToPar, got.ScoreToPar)
	assert.Equal(t, e.Position, got.Position)
	assert.Equal(t, e.PreviousPosition, got.PreviousPosition)
	assert.True(t, got.IsLive)
	require.NotNil(t, got.Handicap)
	assert.Equal(t, 8.4, *got.Handicap)
	assert.True(t, got.UpdatedAt.Equal(e.UpdatedAt))
}

// JSON round-trips turn every number into float64; readers must cope.
func TestEntryFromJSONDecodedDocument(t *testing.T) {
	doc := Document{
		"id":             "e-1",
		"leaderboard_id": "lb-1",
		"player_id":      "p-1",
		"score":          float64(72),
		"position":       float64(3),
		"holes_played":   float64(18),
		"handicap":       float64(11),
		"updated_at":     "2026-06-10T09:30:00Z",
	}

	got, err := EntryFromDocument(doc)
	require.NoError(t, err)

	assert.Equal(t, 72, got.Score)
	assert.Equal(t, Position(3), got.Position)
	assert.Equal(t, 18, got.HolesPlayed)
	require.NotNil(t, got.Handicap)
	assert.Equal(t, 11.0, *got.Handicap)
	assert.Equal(t, 2026, got.UpdatedAt.Year())
}

func TestEntryFromDocumentRejectsMalformed(t *testing.T) {
	_, err := EntryFromDocument(nil)
	assert.True(t, shared.IsValidation(err))

	_, err = EntryFromDocument(Document{"id": "e-1"})
	assert.True(t, shared.IsValidation(err))
}
