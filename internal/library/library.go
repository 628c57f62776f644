// Package library holds the per-owner application state the UI glue reads.
//
// Every mutation goes through the data layer and is followed by a re-list,
// so a Snapshot never echoes an unpersisted change.
package library

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MrSnakeDoc/stacklink/internal/auth"
	"github.com/MrSnakeDoc/stacklink/internal/domain"
	"github.com/MrSnakeDoc/stacklink/internal/logger"
	"github.com/MrSnakeDoc/stacklink/internal/preview"
	"github.com/MrSnakeDoc/stacklink/internal/seed"
	"github.com/MrSnakeDoc/stacklink/internal/store"
	"github.com/MrSnakeDoc/stacklink/internal/store/local"
)

// Layer is the data access surface the library drives.
type Layer interface {
	Backend() store.Kind
	ListCategories(ctx context.Context) []domain.Category
	ListLinks(ctx context.Context) []domain.Link
	CreateCategory(ctx context.Context, in domain.CategoryInput) error
	UpdateCategory(ctx context.Context, id string, patch domain.CategoryPatch) error
	CreateLink(ctx context.Context, in domain.LinkInput) error
	ToggleFavorite(ctx context.Context, id string, value bool) error
	UpdateLink(ctx context.Context, id string, patch domain.LinkPatch) error
	RemoveLink(ctx context.Context, id string) error
}

// BackfillQueue schedules a preview backfill pass for an owner.
type BackfillQueue interface {
	Enqueue(ownerID string)
}

// Snapshot is the last observed state of one owner.
type Snapshot struct {
	Categories []domain.Category `json:"categories"`
	Links      []domain.Link     `json:"links"`
	LoadedAt   time.Time         `json:"loadedAt"`
}

// DefaultSnapshotTTL is how long an owner's snapshot is kept after its
// last refresh before Prune drops it.
const DefaultSnapshotTTL = 30 * time.Minute

// Library owns one Snapshot per owner.
type Library struct {
	layer    Layer
	previews preview.Fetcher
	queue    BackfillQueue
	logger   logger.Logger
	ttl      time.Duration
	now      func() time.Time

	mu     sync.RWMutex
	states map[string]Snapshot
}

// Option configures a Library.
type Option func(*Library)

// WithSnapshotTTL sets how long idle snapshots are kept.
func WithSnapshotTTL(ttl time.Duration) Option {
	return func(l *Library) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithClock replaces time.Now for snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Library) { l.now = now }
}

// New builds a library. previews and queue may be nil.
func New(layer Layer, previews preview.Fetcher, queue BackfillQueue, log logger.Logger, opts ...Option) *Library {
	l := &Library{
		layer:    layer,
		previews: previews,
		queue:    queue,
		logger:   log,
		ttl:      DefaultSnapshotTTL,
		now:      time.Now,
		states:   make(map[string]Snapshot),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Prune drops snapshots not refreshed within the TTL and returns their
// owners. A dropped owner is reloaded on its next read.
func (l *Library) Prune(_ context.Context) ([]string, error) {
	cutoff := l.now().Add(-l.ttl)

	l.mu.Lock()
	defer l.mu.Unlock()
	var dropped []string
	for owner, snap := range l.states {
		if snap.LoadedAt.Before(cutoff) {
			delete(l.states, owner)
			dropped = append(dropped, owner)
		}
	}
	slices.Sort(dropped)
	return dropped, nil
}

// Owners returns how many snapshots are held.
func (l *Library) Owners() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.states)
}

// Load refreshes the owner's state: seeds starter categories when the
// owner has none, lists links and schedules a preview backfill.
// Without an owner on the remote backend the state is empty.
func (l *Library) Load(ctx context.Context) (Snapshot, error) {
	owner, ok := l.owner(ctx)
	if !ok {
		return l.store(owner, Snapshot{
			Categories: []domain.Category{},
			Links:      []domain.Link{},
		}), nil
	}

	cats, err := seed.EnsureStarterCategories(ctx, l.layer)
	if err != nil {
		return Snapshot{}, err
	}
	snap := l.store(owner, Snapshot{
		Categories: cats,
		Links:      l.layer.ListLinks(ctx),
	})

	if l.queue != nil {
		l.queue.Enqueue(owner)
	}
	return snap, nil
}

// Current returns the owner's snapshot, loading it on first use.
func (l *Library) Current(ctx context.Context) (Snapshot, error) {
	owner, _ := l.owner(ctx)

	l.mu.RLock()
	snap, ok := l.states[owner]
	l.mu.RUnlock()
	if ok {
		return snap, nil
	}
	return l.Load(ctx)
}

// RefreshLinks re-lists the owner's links and keeps the categories.
func (l *Library) RefreshLinks(ctx context.Context) Snapshot {
	owner, _ := l.owner(ctx)
	links := l.layer.ListLinks(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	snap := l.states[owner]
	snap.Links = links
	snap.LoadedAt = l.now()
	if snap.Categories == nil {
		snap.Categories = []domain.Category{}
	}
	l.states[owner] = snap
	return snap
}

// RefreshCategories re-lists the owner's categories and keeps the links.
func (l *Library) RefreshCategories(ctx context.Context) Snapshot {
	owner, _ := l.owner(ctx)
	cats := l.layer.ListCategories(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	snap := l.states[owner]
	snap.Categories = cats
	snap.LoadedAt = l.now()
	if snap.Links == nil {
		snap.Links = []domain.Link{}
	}
	l.states[owner] = snap
	return snap
}

// AddCategory creates a category and re-lists categories.
func (l *Library) AddCategory(ctx context.Context, in domain.CategoryInput) (Snapshot, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := l.layer.CreateCategory(ctx, in); err != nil {
		return Snapshot{}, err
	}
	return l.RefreshCategories(ctx), nil
}

// UpdateCategory renames, recolors or re-icons a category and re-lists categories.
func (l *Library) UpdateCategory(ctx context.Context, id string, patch domain.CategoryPatch) (Snapshot, error) {
	if err := l.layer.UpdateCategory(ctx, id, patch); err != nil {
		return Snapshot{}, err
	}
	return l.RefreshCategories(ctx), nil
}

// AddLink creates a link and re-lists links. When no preview image was
// supplied the preview providers are asked first; their failure is ignored.
func (l *Library) AddLink(ctx context.Context, in domain.LinkInput) (Snapshot, error) {
	in.URL = strings.TrimSpace(in.URL)
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)

	if in.URL != "" && in.PreviewImage == "" && l.previews != nil {
		if meta, err := l.previews.Fetch(ctx, in.URL); err == nil && meta != nil {
			in.PreviewImage = meta.Image
		}
	}

	if err := l.layer.CreateLink(ctx, in); err != nil {
		return Snapshot{}, err
	}
	return l.RefreshLinks(ctx), nil
}

// ToggleFavorite flips the favorite flag of the link as last observed.
// An unknown id is a no-op.
func (l *Library) ToggleFavorite(ctx context.Context, id string) (Snapshot, error) {
	snap, err := l.Current(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	value := true
	for _, link := range snap.Links {
		if link.ID == id {
			value = !link.IsFavorite
			break
		}
	}
	return l.SetFavorite(ctx, id, value)
}

// SetFavorite sets the favorite flag explicitly and re-lists links.
func (l *Library) SetFavorite(ctx context.Context, id string, value bool) (Snapshot, error) {
	if err := l.layer.ToggleFavorite(ctx, id, value); err != nil {
		return Snapshot{}, err
	}
	return l.RefreshLinks(ctx), nil
}

// UpdateLink merges patch into a link and re-lists links.
func (l *Library) UpdateLink(ctx context.Context, id string, patch domain.LinkPatch) (Snapshot, error) {
	if err := l.layer.UpdateLink(ctx, id, patch); err != nil {
		return Snapshot{}, err
	}
	return l.RefreshLinks(ctx), nil
}

// RemoveLink deletes a link and re-lists links.
func (l *Library) RemoveLink(ctx context.Context, id string) (Snapshot, error) {
	if err := l.layer.RemoveLink(ctx, id); err != nil {
		return Snapshot{}, err
	}
	return l.RefreshLinks(ctx), nil
}

// Backfill schedules a preview backfill pass for the owner of ctx.
func (l *Library) Backfill(ctx context.Context) error {
	owner, ok := l.owner(ctx)
	if !ok {
		return domain.ErrUnauthenticated
	}
	if l.queue != nil {
		l.queue.Enqueue(owner)
	}
	return nil
}

// owner returns the state key of ctx and whether the layer can serve it.
// The local backend has one implicit owner and always serves.
func (l *Library) owner(ctx context.Context) (string, bool) {
	if l.layer.Backend() == store.KindLocal {
		return local.DevOwner, true
	}
	return auth.OwnerFromContext(ctx)
}

func (l *Library) store(owner string, snap Snapshot) Snapshot {
	snap.LoadedAt = l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.states[owner] = snap
	return snap
}
