// Package local implements the local persisted backend.
//
// Both entity lists are read and rewritten wholesale on every mutation.
// Concurrent writers from different processes race with last-writer-wins;
// inside one process mutations are serialized.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/stacklink/internal/domain"
	"github.com/MrSnakeDoc/stacklink/internal/store"
)

// DevOwner is the implicit owner of every local record.
const DevOwner = "dev-user"

// Store is the local backend.
type Store struct {
	mu    sync.Mutex
	space KeySpace
	now   func() time.Time
	newID func() string
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides the id source.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// NewStore returns a local backend over space.
func NewStore(space KeySpace, opts ...Option) *Store {
	s := &Store{
		space: space,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Kind() store.Kind { return store.KindLocal }

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cats []domain.Category
	if err := s.load(EntryCategories, &cats); err != nil {
		return nil, err
	}
	return ownedCategories(cats), nil
}

func (s *Store) ListLinks(ctx context.Context) ([]domain.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var links []domain.Link
	if err := s.load(EntryLinks, &links); err != nil {
		return nil, err
	}
	return ownedLinks(links), nil
}

func (s *Store) CreateCategory(ctx context.Context, in domain.CategoryInput) error {
	cat, err := domain.NewCategory(s.newID(), DevOwner, in, s.now())
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var cats []domain.Category
	if err := s.load(EntryCategories, &cats); err != nil {
		return err
	}
	cats = append(cats, *cat)
	return s.save(EntryCategories, cats)
}

func (s *Store) UpdateCategory(ctx context.Context, id string, patch domain.CategoryPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cats []domain.Category
	if err := s.load(EntryCategories, &cats); err != nil {
		return err
	}
	for i := range cats {
		if cats[i].ID != id || cats[i].OwnerID != DevOwner {
			continue
		}
		if err := cats[i].Apply(patch, s.now()); err != nil {
			return err
		}
		return s.save(EntryCategories, cats)
	}
	return nil
}

func (s *Store) CreateLink(ctx context.Context, in domain.LinkInput) error {
	link, err := domain.NewLink(s.newID(), DevOwner, in, s.now())
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var links []domain.Link
	if err := s.load(EntryLinks, &links); err != nil {
		return err
	}
	links = append(links, *link)
	return s.save(EntryLinks, links)
}

func (s *Store) ToggleFavorite(ctx context.Context, id string, value bool) error {
	return s.mutateLink(id, func(l *domain.Link, now time.Time) {
		l.IsFavorite = value
		l.UpdatedAt = now
	})
}

func (s *Store) UpdateLink(ctx context.Context, id string, patch domain.LinkPatch) error {
	return s.mutateLink(id, func(l *domain.Link, now time.Time) {
		l.Apply(patch, now)
	})
}

func (s *Store) RemoveLink(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var links []domain.Link
	if err := s.load(EntryLinks, &links); err != nil {
		return err
	}

	kept := links[:0]
	for _, l := range links {
		if l.ID == id && l.OwnerID == DevOwner {
			continue
		}
		kept = append(kept, l)
	}
	if len(kept) == len(links) {
		return nil
	}
	return s.save(EntryLinks, kept)
}

// mutateLink applies fn to the link with id and persists; missing ids are a no-op.
func (s *Store) mutateLink(id string, fn func(*domain.Link, time.Time)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var links []domain.Link
	if err := s.load(EntryLinks, &links); err != nil {
		return err
	}
	for i := range links {
		if links[i].ID == id && links[i].OwnerID == DevOwner {
			fn(&links[i], s.now())
			return s.save(EntryLinks, links)
		}
	}
	return nil
}

// load decodes entry into out. A missing entry leaves out empty.
func (s *Store) load(entry string, out any) error {
	data, ok, err := s.space.Get(entry)
	if err != nil {
		return err
	}
	if !ok || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode entry %s: %w", entry, err)
	}
	return nil
}

func (s *Store) save(entry string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode entry %s: %w", entry, err)
	}
	return s.space.Set(entry, data)
}

func ownedCategories(in []domain.Category) []domain.Category {
	out := make([]domain.Category, 0, len(in))
	for _, c := range in {
		if c.OwnerID == DevOwner {
			out = append(out, c)
		}
	}
	return out
}

func ownedLinks(in []domain.Link) []domain.Link {
	out := make([]domain.Link, 0, len(in))
	for _, l := range in {
		if l.OwnerID == DevOwner {
			out = append(out, l)
		}
	}
	return out
}
