// Package dal is the data access layer consumed by the UI glue.
//
// A Layer wraps exactly one store.Store chosen at startup. It gives both
// backends the same external contract: reads are sorted client side and
// never fail, writes propagate backend errors unchanged.
package dal

import (
	"context"
	"errors"
	"slices"

	"github.com/MrSnakeDoc/stacklink/internal/domain"
	"github.com/MrSnakeDoc/stacklink/internal/logger"
	"github.com/MrSnakeDoc/stacklink/internal/metrics"
	"github.com/MrSnakeDoc/stacklink/internal/store"
)

// Layer routes every operation to the selected backend.
type Layer struct {
	backend store.Store
	logger  logger.Logger
	metrics *metrics.Metrics
}

// New wraps backend. Prefer Select at startup.
func New(backend store.Store, log logger.Logger, m *metrics.Metrics) *Layer {
	return &Layer{
		backend: backend,
		logger:  log.With(logger.String("backend", string(backend.Kind()))),
		metrics: m,
	}
}

// Backend reports which backend the layer is bound to.
func (l *Layer) Backend() store.Kind {
	return l.backend.Kind()
}

// ListCategories returns the owner's categories ascending by Order.
// Ties keep storage (insertion) order. Backend failures yield an empty list.
func (l *Layer) ListCategories(ctx context.Context) []domain.Category {
	cats, err := l.backend.ListCategories(ctx)
	l.record("list_categories", err)
	if err != nil {
		l.logger.Error("failed to list categories", logger.Error(err))
		return []domain.Category{}
	}
	SortCategories(cats)
	return cats
}

// ListLinks returns the owner's links, most recent first.
// Ties keep storage (insertion) order. Backend failures yield an empty list.
func (l *Layer) ListLinks(ctx context.Context) []domain.Link {
	links, err := l.backend.ListLinks(ctx)
	l.record("list_links", err)
	if err != nil {
		l.logger.Error("failed to list links", logger.Error(err))
		return []domain.Link{}
	}
	SortLinks(links)
	return links
}

func (l *Layer) CreateCategory(ctx context.Context, in domain.CategoryInput) error {
	err := l.backend.CreateCategory(ctx, in)
	l.record("create_category", err)
	return err
}

func (l *Layer) UpdateCategory(ctx context.Context, id string, patch domain.CategoryPatch) error {
	err := l.backend.UpdateCategory(ctx, id, patch)
	l.record("update_category", err)
	return err
}

func (l *Layer) CreateLink(ctx context.Context, in domain.LinkInput) error {
	err := l.backend.CreateLink(ctx, in)
	l.record("create_link", err)
	return err
}

func (l *Layer) ToggleFavorite(ctx context.Context, id string, value bool) error {
	err := l.backend.ToggleFavorite(ctx, id, value)
	l.record("toggle_favorite", err)
	return err
}

func (l *Layer) UpdateLink(ctx context.Context, id string, patch domain.LinkPatch) error {
	err := l.backend.UpdateLink(ctx, id, patch)
	l.record("update_link", err)
	return err
}

func (l *Layer) RemoveLink(ctx context.Context, id string) error {
	err := l.backend.RemoveLink(ctx, id)
	l.record("remove_link", err)
	return err
}

func (l *Layer) record(op string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrUnauthenticated):
		result = "unauthenticated"
	case errors.Is(err, domain.ErrInvalidInput):
		result = "invalid"
	default:
		result = "error"
	}
	l.metrics.StoreOperations.WithLabelValues(string(l.backend.Kind()), op, result).Inc()
}

// SortCategories orders cats ascending by Order, stable.
func SortCategories(cats []domain.Category) {
	slices.SortStableFunc(cats, func(a, b domain.Category) int {
		switch {
		case a.Order < b.Order:
			return -1
		case a.Order > b.Order:
			return 1
		}
		return 0
	})
}

// SortLinks orders links by CreatedAt descending, stable.
func SortLinks(links []domain.Link) {
	slices.SortStableFunc(links, func(a, b domain.Link) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}
