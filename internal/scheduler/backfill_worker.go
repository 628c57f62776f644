package scheduler

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/MrSnakeDoc/stacklink/internal/auth"
	"github.com/MrSnakeDoc/stacklink/internal/backfill"
	"github.com/MrSnakeDoc/stacklink/internal/domain"
	"github.com/MrSnakeDoc/stacklink/internal/logger"
)

// LinkLister lists the links of the owner carried by ctx.
type LinkLister interface {
	ListLinks(ctx context.Context) []domain.Link
}

// PreviewRunner runs one backfill pass over links.
type PreviewRunner interface {
	Run(ctx context.Context, links []domain.Link) backfill.Result
}

// BackfillWorker runs preview backfill passes in the background, once per
// enqueued owner and periodically for every owner it has seen.
type BackfillWorker struct {
	links    LinkLister
	runner   PreviewRunner
	logger   logger.Logger
	interval time.Duration
	onUpdate func(ctx context.Context)

	mu      sync.Mutex
	pending map[string]struct{}
	known   map[string]struct{}

	trigger  chan struct{}
	stopCh   chan struct{}
	done     chan struct{}
	started  bool
	stopOnce sync.Once
}

// NewBackfillWorker creates a worker. A zero interval disables periodic passes.
func NewBackfillWorker(
	links LinkLister,
	runner PreviewRunner,
	log logger.Logger,
	interval time.Duration,
) *BackfillWorker {
	return &BackfillWorker{
		links:    links,
		runner:   runner,
		logger:   log,
		interval: interval,
		pending:  make(map[string]struct{}),
		known:    make(map[string]struct{}),
		trigger:  make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// OnUpdate registers fn, called with the owner's context after a pass
// patched at least one link. Must be set before Start.
func (w *BackfillWorker) OnUpdate(fn func(ctx context.Context)) {
	w.onUpdate = fn
}

// Enqueue schedules a pass for ownerID. It never blocks.
func (w *BackfillWorker) Enqueue(ownerID string) {
	w.mu.Lock()
	w.pending[ownerID] = struct{}{}
	w.known[ownerID] = struct{}{}
	w.mu.Unlock()

	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// Start begins processing in a background goroutine.
func (w *BackfillWorker) Start(ctx context.Context) {
	w.mu.Lock()
	w.started = true
	w.mu.Unlock()

	go func() {
		defer close(w.done)

		var tick <-chan time.Time
		if w.interval > 0 {
			ticker := time.NewTicker(w.interval)
			defer ticker.Stop()
			tick = ticker.C
		}

		for {
			select {
			case <-w.trigger:
				w.Drain(ctx)
			case <-tick:
				w.logger.Debug("periodic preview backfill triggered")
				w.requeueKnown()
				w.Drain(ctx)
			case <-w.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the worker and waits for the current pass to end.
func (w *BackfillWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })

	w.mu.Lock()
	started := w.started
	w.mu.Unlock()
	if started {
		<-w.done
	}
}

// Drain runs one pass for every pending owner.
func (w *BackfillWorker) Drain(ctx context.Context) {
	for _, owner := range w.takePending() {
		if ctx.Err() != nil {
			return
		}
		w.RunOwner(ctx, owner)
	}
}

// RunOwner runs one pass for a single owner.
func (w *BackfillWorker) RunOwner(ctx context.Context, ownerID string) backfill.Result {
	octx := auth.WithOwner(ctx, ownerID)

	res := w.runner.Run(octx, w.links.ListLinks(octx))
	if res.Candidates == 0 {
		return res
	}

	w.logger.Info("preview backfill completed",
		logger.String("owner", ownerID),
		logger.Int("candidates", res.Candidates),
		logger.Int("updated", res.Updated),
		logger.Int("missing", res.Missing),
		logger.Int("failed", res.Failed))

	if res.Updated > 0 && w.onUpdate != nil {
		w.onUpdate(octx)
	}
	return res
}

func (w *BackfillWorker) takePending() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	owners := make([]string, 0, len(w.pending))
	for o := range w.pending {
		owners = append(owners, o)
	}
	clear(w.pending)
	slices.Sort(owners)
	return owners
}

func (w *BackfillWorker) requeueKnown() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for o := range w.known {
		w.pending[o] = struct{}{}
	}
}
