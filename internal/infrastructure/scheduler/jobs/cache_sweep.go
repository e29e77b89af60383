// Package jobs holds the engine's periodic maintenance jobs.
package jobs

import (
	"context"

	"github.com/golffinder/leaderboard-engine/internal/engine/cache"
	"github.com/golffinder/leaderboard-engine/pkg/logger"
)

// CacheSweep removes expired slots from the leaderboard cache so memory
// tracks the working set instead of everything ever cached.
type CacheSweep struct {
	cache *cache.Cache
	log   *logger.Logger
}

// NewCacheSweep creates the cache sweep job.
func NewCacheSweep(c *cache.Cache, log *logger.Logger) *CacheSweep {
	if log == nil {
		log = logger.Default()
	}
	return &CacheSweep{cache: c, log: log}
}

func (j *CacheSweep) Name() string { return "cache_sweep" }

func (j *CacheSweep) Description() string {
	return "removes expired leaderboard cache slots"
}

func (j *CacheSweep) Run(ctx context.Context) error {
	removed := j.cache.Sweep()
	if removed > 0 {
		j.log.Debug("cache swept", logger.Int("removed", removed))
	}
	return nil
}
