package leaderboard

import "context"

// ══════════════════════════════════════════════════════════════════════════════
// DOCUMENT STORE PORT
// ══════════════════════════════════════════════════════════════════════════════

// Collection names in the backing document store.
const (
	CollectionLeaderboards = "leaderboards"
	CollectionEntries      = "leaderboard_entries"
)

// Document is a raw persisted record as the backing store hands it over.
type Document map[string]any

// FilterOp is a comparison operator in a query filter.
type FilterOp string

const (
	OpEqual   FilterOp = "=="
	OpIn      FilterOp = "in"
	OpGreater FilterOp = ">="
	OpLess    FilterOp = "<="
)

// Filter constrains one field in a query.
type Filter struct {
	Field string
	Op    FilterOp
	Value any
}

// Order sorts the result by one field.
type Order struct {
	Field      string
	Descending bool
}

// Query is a backend-neutral filter/sort/pagination descriptor built by
// the query optimizer. The store adapter translates it to whatever the
// backend understands.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    []Order
	Limit      int
	Offset     int
}

// Store is the backing document store. All operations are asynchronous
// from the backend's point of view and may fail transiently; the store
// is assumed eventually consistent.
type Store interface {
	Create(ctx context.Context, collection, id string, doc Document) error
	Get(ctx context.Context, collection, id string) (Document, error)
	List(ctx context.Context, q Query) ([]Document, error)
	Update(ctx context.Context, collection, id string, doc Document) error
	Delete(ctx context.Context, collection, id string) error
}

// ══════════════════════════════════════════════════════════════════════════════
// RATING ENGINE PORT
// ══════════════════════════════════════════════════════════════════════════════

// RoundSnapshot captures the state of an in-progress round for projection.
type RoundSnapshot struct {
	LeaderboardID  string
	CurrentScore   int
	HolesCompleted int
}

// ProjectedRating is the rating engine's estimate of a final score for a
// round still in progress.
type ProjectedRating struct {
	ProjectedScore int
	Confidence     float64
}

// RatingAdjustment normalizes a raw score into a performance delta
// relative to the field.
type RatingAdjustment struct {
	ScoreToPar int
	Delta      float64
}

// RatingEngine maps raw scores to normalized performance. Treated as a
// pure, possibly slow remote function.
type RatingEngine interface {
	ProjectFinalRating(ctx context.Context, playerID string, snapshot RoundSnapshot) (ProjectedRating, error)
	CalculateRelativePerformance(ctx context.Context, playerID, leaderboardID string) (RatingAdjustment, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// SOCIAL GRAPH PORT
// ══════════════════════════════════════════════════════════════════════════════

// SocialGraph resolves a player's friend ids for friends-scoped views.
type SocialGraph interface {
	FriendIDs(ctx context.Context, playerID string) ([]string, error)
}
