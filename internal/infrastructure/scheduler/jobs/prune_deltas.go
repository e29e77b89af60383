package jobs

import (
	"context"

	"github.com/golffinder/leaderboard-engine/internal/engine/rank"
	"github.com/golffinder/leaderboard-engine/pkg/logger"
)

// PruneDeltas drops position-change records older than the retention
// window from every tracked leaderboard.
type PruneDeltas struct {
	calc *rank.Calculator
	log  *logger.Logger
}

// NewPruneDeltas creates the delta pruning job.
func NewPruneDeltas(c *rank.Calculator, log *logger.Logger) *PruneDeltas {
	if log == nil {
		log = logger.Default()
	}
	return &PruneDeltas{calc: c, log: log}
}

func (j *PruneDeltas) Name() string { return "prune_deltas" }

func (j *PruneDeltas) Description() string {
	return "drops position deltas outside the retention window"
}

func (j *PruneDeltas) Run(ctx context.Context) error {
	pruned := j.calc.PruneAll()
	if pruned > 0 {
		j.log.Debug("deltas pruned", logger.Int("removed", pruned))
	}
	return nil
}
