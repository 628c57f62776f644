package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/stacklink/internal/logger"
)

const (
	// DefaultSweepInterval is how often stale cached state is looked for
	DefaultSweepInterval = time.Hour
)

// Pruner deletes stale entries and returns their names.
type Pruner interface {
	Prune(ctx context.Context) ([]string, error)
}

// CacheSweeper periodically drops stale cached state: buckets left behind
// by other versions sharing the same storage (e.g. an older instance still
// running against the same Redis) and idle owner snapshots.
type CacheSweeper struct {
	pruners  map[string]Pruner
	logger   logger.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewCacheSweeper creates a new cache sweeper. pruners are keyed by the
// name used in logs.
func NewCacheSweeper(pruners map[string]Pruner, log logger.Logger, interval time.Duration) *CacheSweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	return &CacheSweeper{
		pruners:  pruners,
		logger:   log,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic sweep
func (cs *CacheSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(cs.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				cs.Sweep(ctx)
			case <-cs.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the sweeper
func (cs *CacheSweeper) Stop() {
	close(cs.stopCh)
}

// Sweep runs one pass over every pruner and returns the number of
// deleted entries. A failing pruner does not stop the others.
func (cs *CacheSweeper) Sweep(ctx context.Context) int {
	total := 0
	for name, p := range cs.pruners {
		evicted, err := p.Prune(ctx)
		if err != nil {
			cs.logger.Error("cache sweep failed",
				logger.String("pruner", name),
				logger.Error(err))
		}

		if len(evicted) > 0 {
			cs.logger.Info("swept stale entries",
				logger.String("pruner", name),
				logger.Int("count", len(evicted)))
		} else {
			cs.logger.Debug("nothing to sweep", logger.String("pruner", name))
		}
		total += len(evicted)
	}
	return total
}
