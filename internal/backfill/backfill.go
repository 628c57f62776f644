// Package backfill fills in missing link preview images.
package backfill

import (
	"context"

	"github.com/MrSnakeDoc/stacklink/internal/domain"
	"github.com/MrSnakeDoc/stacklink/internal/logger"
	"github.com/MrSnakeDoc/stacklink/internal/metrics"
	"github.com/MrSnakeDoc/stacklink/internal/preview"
)

// LinkUpdater persists a link patch.
type LinkUpdater interface {
	UpdateLink(ctx context.Context, id string, patch domain.LinkPatch) error
}

// Result summarizes one pass.
type Result struct {
	Candidates int
	Updated    int
	Missing    int
	Failed     int
}

// Backfiller runs best-effort preview passes.
type Backfiller struct {
	previews preview.Fetcher
	updater  LinkUpdater
	logger   logger.Logger
	metrics  *metrics.Metrics
}

func New(previews preview.Fetcher, updater LinkUpdater, log logger.Logger, m *metrics.Metrics) *Backfiller {
	return &Backfiller{
		previews: previews,
		updater:  updater,
		logger:   log,
		metrics:  m,
	}
}

// Run visits every link lacking a preview image, one at a time. A link is
// only ever patched with PreviewImage. Per-link failures are logged and
// skipped; the pass is not transactional and is safe to re-run.
func (b *Backfiller) Run(ctx context.Context, links []domain.Link) Result {
	var res Result
	for _, l := range links {
		if l.PreviewImage != "" || l.URL == "" {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		res.Candidates++

		meta, err := b.previews.Fetch(ctx, l.URL)
		if err != nil || meta == nil || meta.Image == "" {
			res.Missing++
			b.metrics.PreviewBackfill.WithLabelValues("missing").Inc()
			continue
		}

		image := meta.Image
		if err := b.updater.UpdateLink(ctx, l.ID, domain.LinkPatch{PreviewImage: &image}); err != nil {
			res.Failed++
			b.metrics.PreviewBackfill.WithLabelValues("failed").Inc()
			b.logger.Debug("preview backfill update failed",
				logger.String("link_id", l.ID),
				logger.Error(err))
			continue
		}
		res.Updated++
		b.metrics.PreviewBackfill.WithLabelValues("updated").Inc()
	}
	return res
}
