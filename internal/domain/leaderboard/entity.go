// Package leaderboard contains the domain model for the GolfFinder
// real-time leaderboard engine: leaderboards, ranked entries, and the
// update events that flow over the live channel.
package leaderboard

import (
	"fmt"
	"time"

	"github.com/golffinder/leaderboard-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Type classifies the scope of a leaderboard.
type Type string

const (
	TypeDaily      Type = "daily"
	TypeWeekly     Type = "weekly"
	TypeTournament Type = "tournament"
	TypeOverall    Type = "overall"
	TypeFriends    Type = "friends"
)

// IsValid checks whether the type is one of the known values.
func (t Type) IsValid() bool {
	switch t {
	case TypeDaily, TypeWeekly, TypeTournament, TypeOverall, TypeFriends:
		return true
	}
	return false
}

// Period defines the time window a leaderboard aggregates over.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodAllTime Period = "all_time"
)

// IsValid checks whether the period is one of the known values.
func (p Period) IsValid() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodAllTime:
		return true
	}
	return false
}

// Position is a 1-based dense rank within a leaderboard.
type Position int

// IsValid checks that the position is positive.
func (p Position) IsValid() bool {
	return p > 0
}

// String returns the display form of the position.
func (p Position) String() string {
	return fmt.Sprintf("#%d", p)
}

// PositionChange is the signed movement between two recalculations.
// Positive means the player moved up (toward position 1).
type PositionChange int

// Abs returns the magnitude of the movement.
func (pc PositionChange) Abs() int {
	if pc < 0 {
		return int(-pc)
	}
	return int(pc)
}

// String returns "+N", "-N" or "±0".
func (pc PositionChange) String() string {
	switch {
	case pc > 0:
		return fmt.Sprintf("+%d", pc)
	case pc < 0:
		return fmt.Sprintf("%d", pc)
	default:
		return "±0"
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD
// ══════════════════════════════════════════════════════════════════════════════

// Leaderboard is a named, scoped ranking of entries for a course,
// tournament, or period. Entries are rendered onto the aggregate at read
// time; they are persisted separately.
type Leaderboard struct {
	ID           string
	CourseID     string
	TournamentID string
	Name         string
	Description  string
	Type         Type
	Period       Period
	MaxEntries   int
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ExpiresAt    *time.Time
	EntryFee     float64
	PrizePool    float64

	// Entries is the ranked sequence, ascending by Position.
	Entries []*Entry
}

// NewLeaderboard creates a leaderboard with validation.
func NewLeaderboard(id, courseID, name string, typ Type, period Period, maxEntries int) (*Leaderboard, error) {
	lb := &Leaderboard{
		ID:         id,
		CourseID:   courseID,
		Name:       name,
		Type:       typ,
		Period:     period,
		MaxEntries: maxEntries,
		IsActive:   true,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := lb.Validate(); err != nil {
		return nil, err
	}
	return lb, nil
}

// Validate checks the leaderboard invariants.
func (l *Leaderboard) Validate() error {
	if l.ID == "" {
		return shared.NewError("leaderboard", "Validate", shared.ErrValidationFailed, "id cannot be empty")
	}
	if l.CourseID == "" {
		return shared.NewError("leaderboard", "Validate", shared.ErrValidationFailed, "course id cannot be empty")
	}
	if l.Name == "" {
		return shared.NewError("leaderboard", "Validate", shared.ErrValidationFailed, "name cannot be empty")
	}
	if !l.Type.IsValid() {
		return shared.NewError("leaderboard", "Validate", shared.ErrValidationFailed, "invalid type: "+string(l.Type))
	}
	if !l.Period.IsValid() {
		return shared.NewError("leaderboard", "Validate", shared.ErrValidationFailed, "invalid period: "+string(l.Period))
	}
	if l.MaxEntries <= 0 {
		return shared.NewError("leaderboard", "Validate", shared.ErrValidationFailed, "max entries must be positive")
	}
	if len(l.Entries) > l.MaxEntries {
		return shared.NewError("leaderboard", "Validate", shared.ErrValidationFailed, "entry count exceeds max entries")
	}
	return nil
}

// IsFull reports whether the leaderboard has reached its entry capacity.
func (l *Leaderboard) IsFull() bool {
	return len(l.Entries) >= l.MaxEntries
}

// IsExpired reports whether the leaderboard's window has closed.
func (l *Leaderboard) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}

// Clone returns a deep copy of the leaderboard and its entries.
func (l *Leaderboard) Clone() *Leaderboard {
	if l == nil {
		return nil
	}
	clone := *l
	if l.ExpiresAt != nil {
		exp := *l.ExpiresAt
		clone.ExpiresAt = &exp
	}
	clone.Entries = make([]*Entry, len(l.Entries))
	for i, e := range l.Entries {
		clone.Entries[i] = e.Clone()
	}
	return &clone
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTRY
// ══════════════════════════════════════════════════════════════════════════════

// Entry is one player's submitted result within a leaderboard.
// Score follows stroke play: lower is better.
type Entry struct {
	ID            string
	LeaderboardID string
	PlayerID      string
	PlayerName    string
	Score         int
	ScoreToPar    int
	Handicap      *float64
	Position      Position
	// PreviousPosition is the position before the last recalculation.
	// Zero means the entry is new to the board.
	PreviousPosition Position
	HolesPlayed      int
	IsLive           bool
	UpdatedAt        time.Time
}

// Validate checks the entry invariants.
func (e *Entry) Validate() error {
	if e.ID == "" {
		return shared.NewError("entry", "Validate", shared.ErrValidationFailed, "id cannot be empty")
	}
	if e.LeaderboardID == "" {
		return shared.NewError("entry", "Validate", shared.ErrValidationFailed, "leaderboard id cannot be empty")
	}
	if e.PlayerID == "" {
		return shared.NewError("entry", "Validate", shared.ErrValidationFailed, "player id cannot be empty")
	}
	if e.HolesPlayed < 0 || e.HolesPlayed > 18 {
		return shared.NewError("entry", "Validate", shared.ErrValidationFailed, "holes played must be 0-18")
	}
	return nil
}

// Change returns the movement since the previous recalculation.
// Positive means the player improved. New entries report zero.
func (e *Entry) Change() PositionChange {
	if e.PreviousPosition == 0 {
		return 0
	}
	return PositionChange(e.PreviousPosition - e.Position)
}

// Clone returns a copy of the entry.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Handicap != nil {
		h := *e.Handicap
		clone.Handicap = &h
	}
	return &clone
}

// String returns a compact representation for logging.
func (e *Entry) String() string {
	return fmt.Sprintf("Entry{%s: %s score=%d pos=%d live=%t}",
		e.LeaderboardID, e.PlayerName, e.Score, e.Position, e.IsLive)
}
