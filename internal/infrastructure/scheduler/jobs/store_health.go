package jobs

import (
	"context"
	"time"

	"github.com/golffinder/leaderboard-engine/internal/engine/balance"
	"github.com/golffinder/leaderboard-engine/pkg/logger"
)

// Pinger probes one backend connection. Pingers align by index with the
// load balancer's connection pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// pingTimeout bounds each probe so one hung backend cannot stall the
// whole round.
const pingTimeout = 3 * time.Second

// StoreHealth probes every pooled backend connection and flips its
// balancer health flag, restoring connections the failure counter had
// taken out of rotation once they respond again.
type StoreHealth struct {
	balancer *balance.LoadBalancer
	pingers  []Pinger
	log      *logger.Logger
}

// NewStoreHealth creates the store health probe job.
func NewStoreHealth(b *balance.LoadBalancer, pingers []Pinger, log *logger.Logger) *StoreHealth {
	if log == nil {
		log = logger.Default()
	}
	return &StoreHealth{balancer: b, pingers: pingers, log: log}
}

func (j *StoreHealth) Name() string { return "store_health" }

func (j *StoreHealth) Description() string {
	return "probes backend connections and updates balancer health"
}

func (j *StoreHealth) Run(ctx context.Context) error {
	for i, p := range j.pingers {
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := p.Ping(pctx)
		cancel()

		if err != nil {
			j.balancer.MarkUnhealthy(i)
			j.log.Warn("backend connection unhealthy",
				logger.ConnectionIndex(i), logger.Err(err))
			continue
		}
		j.balancer.MarkHealthy(i)
	}
	return nil
}
