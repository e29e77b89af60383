package config

import (
	"hash/fnv"
	"sync"
)

// FeatureFlags manages feature toggles with gradual rollout. Flags gate
// the outward surfaces only; the engine itself is always fully wired.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature

	// playerOverrides force a flag for specific players (testing).
	playerOverrides map[string]map[string]bool
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// RolloutPercent (0-100); players are bucketed by id hash, so a
	// player stays in the same bucket across restarts.
	RolloutPercent int
}

// Predefined feature flag names.
const (
	// FeatureLiveProjection enables provisional position updates for
	// rounds in progress.
	FeatureLiveProjection = "live_projection"

	// FeatureFriendsBoards enables friends-scoped leaderboard views.
	FeatureFriendsBoards = "friends_boards"

	// FeatureTournamentStreams enables aggregated tournament streams.
	FeatureTournamentStreams = "tournament_streams"
)

// DefaultFeatureFlags returns the flag set with launch defaults.
func DefaultFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:        make(map[string]*Feature),
		playerOverrides: make(map[string]map[string]bool),
	}

	ff.register(&Feature{
		Name:           FeatureLiveProjection,
		Description:    "provisional positions for in-progress rounds",
		Enabled:        true,
		RolloutPercent: 100,
	})
	ff.register(&Feature{
		Name:           FeatureFriendsBoards,
		Description:    "friends-scoped leaderboard views",
		Enabled:        true,
		RolloutPercent: 100,
	})
	ff.register(&Feature{
		Name:           FeatureTournamentStreams,
		Description:    "aggregated tournament update streams",
		Enabled:        true,
		RolloutPercent: 100,
	})

	return ff
}

func (ff *FeatureFlags) register(f *Feature) {
	ff.features[f.Name] = f
}

// IsEnabled reports whether a feature is on for the given player.
// An empty player id evaluates only the global switch.
func (ff *FeatureFlags) IsEnabled(name, playerID string) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	if playerID != "" {
		if overrides, ok := ff.playerOverrides[playerID]; ok {
			if enabled, ok := overrides[name]; ok {
				return enabled
			}
		}
	}

	f, ok := ff.features[name]
	if !ok || !f.Enabled {
		return false
	}
	if f.RolloutPercent >= 100 || playerID == "" {
		return true
	}
	return bucket(playerID) < f.RolloutPercent
}

// SetEnabled flips a feature's global switch.
func (ff *FeatureFlags) SetEnabled(name string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	if f, ok := ff.features[name]; ok {
		f.Enabled = enabled
	}
}

// SetRollout sets a feature's rollout percentage, clamped to 0-100.
func (ff *FeatureFlags) SetRollout(name string, percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	ff.mu.Lock()
	defer ff.mu.Unlock()
	if f, ok := ff.features[name]; ok {
		f.RolloutPercent = percent
	}
}

// Override forces a flag for one player.
func (ff *FeatureFlags) Override(playerID, name string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	if ff.playerOverrides[playerID] == nil {
		ff.playerOverrides[playerID] = make(map[string]bool)
	}
	ff.playerOverrides[playerID][name] = enabled
}

// bucket maps a player id to a stable 0-99 bucket.
func bucket(playerID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(playerID))
	return int(h.Sum32() % 100)
}
