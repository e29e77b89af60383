package leaderboard

import (
	"time"

	"github.com/golffinder/leaderboard-engine/internal/domain/shared"
)

// Document field names. The store round-trips documents through JSON, so
// readers must accept both native and JSON-decoded value types.

// ToDocument converts the leaderboard to its persisted form.
// Entries are never embedded; they live in their own collection.
func (l *Leaderboard) ToDocument() Document {
	doc := Document{
		"id":          l.ID,
		"course_id":   l.CourseID,
		"name":        l.Name,
		"description": l.Description,
		"type":        string(l.Type),
		"period":      string(l.Period),
		"max_entries": l.MaxEntries,
		"is_active":   l.IsActive,
		"created_at":  l.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at":  l.UpdatedAt.UTC().Format(time.RFC3339Nano),
		"entry_fee":   l.EntryFee,
		"prize_pool":  l.PrizePool,
	}
	if l.TournamentID != "" {
		doc["tournament_id"] = l.TournamentID
	}
	if l.ExpiresAt != nil {
		doc["expires_at"] = l.ExpiresAt.UTC().Format(time.RFC3339Nano)
	}
	// The denormalized participant set serves friends-scoped queries
	// without joining the entries collection.
	if len(l.Entries) > 0 {
		ids := make([]string, 0, len(l.Entries))
		seen := make(map[string]struct{}, len(l.Entries))
		for _, e := range l.Entries {
			if _, ok := seen[e.PlayerID]; ok {
				continue
			}
			seen[e.PlayerID] = struct{}{}
			ids = append(ids, e.PlayerID)
		}
		doc["participant_ids"] = ids
	}
	return doc
}

// LeaderboardFromDocument reconstructs a leaderboard from its persisted form.
func LeaderboardFromDocument(doc Document) (*Leaderboard, error) {
	if doc == nil {
		return nil, shared.NewError("leaderboard", "FromDocument", shared.ErrValidationFailed, "nil document")
	}
	lb := &Leaderboard{
		ID:           docString(doc, "id"),
		CourseID:     docString(doc, "course_id"),
		TournamentID: docString(doc, "tournament_id"),
		Name:         docString(doc, "name"),
		Description:  docString(doc, "description"),
		Type:         Type(docString(doc, "type")),
		Period:       Period(docString(doc, "period")),
		MaxEntries:   docInt(doc, "max_entries"),
		IsActive:     docBool(doc, "is_active"),
		CreatedAt:    docTime(doc, "created_at"),
		UpdatedAt:    docTime(doc, "updated_at"),
		EntryFee:     docFloat(doc, "entry_fee"),
		PrizePool:    docFloat(doc, "prize_pool"),
	}
	if _, ok := doc["expires_at"]; ok {
		exp := docTime(doc, "expires_at")
		lb.ExpiresAt = &exp
	}
	if err := lb.Validate(); err != nil {
		return nil, err
	}
	return lb, nil
}

// ToDocument converts the entry to its persisted form.
func (e *Entry) ToDocument() Document {
	doc := Document{
		"id":             e.ID,
		"leaderboard_id": e.LeaderboardID,
		"player_id":      e.PlayerID,
		"player_name":    e.PlayerName,
		"score":          e.Score,
		"score_to_par":   e.ScoreToPar,
		"position":       int(e.Position),
		"holes_played":   e.HolesPlayed,
		"is_live":        e.IsLive,
		"updated_at":     e.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if e.PreviousPosition != 0 {
		doc["previous_position"] = int(e.PreviousPosition)
	}
	if e.Handicap != nil {
		doc["handicap"] = *e.Handicap
	}
	return doc
}

// EntryFromDocument reconstructs an entry from its persisted form.
func EntryFromDocument(doc Document) (*Entry, error) {
	if doc == nil {
		return nil, shared.NewError("entry", "FromDocument", shared.ErrValidationFailed, "nil document")
	}
	e := &Entry{
		ID:               docString(doc, "id"),
		LeaderboardID:    docString(doc, "leaderboard_id"),
		PlayerID:         docString(doc, "player_id"),
		PlayerName:       docString(doc, "player_name"),
		Score:            docInt(doc, "score"),
		ScoreToPar:       docInt(doc, "score_to_par"),
		Position:         Position(docInt(doc, "position")),
		PreviousPosition: Position(docInt(doc, "previous_position")),
		HolesPlayed:      docInt(doc, "holes_played"),
		IsLive:           docBool(doc, "is_live"),
		UpdatedAt:        docTime(doc, "updated_at"),
	}
	if v, ok := doc["handicap"]; ok {
		if f, ok := toFloat(v); ok {
			e.Handicap = &f
		}
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// DOCUMENT FIELD HELPERS
// ─────────────────────────────────────────────────────────────────────────────

func docString(doc Document, key string) string {
	if s, ok := doc[key].(string); ok {
		return s
	}
	return ""
}

func docBool(doc Document, key string) bool {
	if b, ok := doc[key].(bool); ok {
		return b
	}
	return false
}

func docInt(doc Document, key string) int {
	switch v := doc[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func docFloat(doc Document, key string) float64 {
	f, _ := toFloat(doc[key])
	return f
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func docTime(doc Document, key string) time.Time {
	switch v := doc[key].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	}
	return time.Time{}
}
