package leaderboard

import "time"

// UpdateType classifies an event on the real-time channel.
type UpdateType string

const (
	UpdateEntryAdded       UpdateType = "entry_added"
	UpdateEntryUpdated     UpdateType = "entry_updated"
	UpdateEntryRemoved     UpdateType = "entry_removed"
	UpdatePositionsChanged UpdateType = "positions_changed"
	UpdateLivePosition     UpdateType = "live_position_update"
)

// IsValid checks whether the update type is one of the known values.
func (t UpdateType) IsValid() bool {
	switch t {
	case UpdateEntryAdded, UpdateEntryUpdated, UpdateEntryRemoved,
		UpdatePositionsChanged, UpdateLivePosition:
		return true
	}
	return false
}

// Update is an ephemeral event describing a change to one leaderboard.
// It exists only in the update-processor queue and subscriber streams,
// and is discarded after delivery. Never persisted, never read back.
type Update struct {
	LeaderboardID string     `json:"leaderboard_id"`
	Type          UpdateType `json:"type"`
	Entry         *Entry     `json:"entry,omitempty"`
	Timestamp     time.Time  `json:"timestamp"`
}

// NewUpdate creates an update event stamped with the current time.
func NewUpdate(leaderboardID string, typ UpdateType, entry *Entry) Update {
	return Update{
		LeaderboardID: leaderboardID,
		Type:          typ,
		Entry:         entry,
		Timestamp:     time.Now().UTC(),
	}
}

// PositionDelta records one player's movement after a recalculation.
// Deltas are retained for a short window to build notification payloads.
type PositionDelta struct {
	LeaderboardID string    `json:"leaderboard_id"`
	PlayerID      string    `json:"player_id"`
	OldPosition   Position  `json:"old_position"`
	NewPosition   Position  `json:"new_position"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// Change returns the signed movement of the delta.
func (d PositionDelta) Change() PositionChange {
	if d.OldPosition == 0 {
		return 0
	}
	return PositionChange(d.OldPosition - d.NewPosition)
}

// LivePositionEstimate is an advisory rank projection for a round still
// in progress. It never mutates a persisted position.
type LivePositionEstimate struct {
	LeaderboardID  string    `json:"leaderboard_id"`
	PlayerID       string    `json:"player_id"`
	CurrentScore   int       `json:"current_score"`
	ProjectedScore int       `json:"projected_score"`
	Estimated      Position  `json:"estimated_position"`
	HolesCompleted int       `json:"holes_completed"`
	ComputedAt     time.Time `json:"computed_at"`
}
