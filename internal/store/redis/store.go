// Package redis implements the remote multi-tenant document backend.
//
// Each record is one JSON document. Every owner has one id list per
// collection, appended on create, which is the query-by-owner index.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/stacklink/internal/auth"
	"github.com/MrSnakeDoc/stacklink/internal/domain"
	"github.com/MrSnakeDoc/stacklink/internal/store"
)

// Store handles Redis operations for categories and links
type Store struct {
	client *redis.Client
	now    func() time.Time
	newID  func() string
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

func (s *Store) Kind() store.Kind { return store.KindRemote }

// ListCategories returns the current owner's categories in insertion order
func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	owner, ok := auth.OwnerFromContext(ctx)
	if !ok {
		return []domain.Category{}, nil
	}

	docs, err := s.fetchOwned(ctx, OwnerCategoriesKey(owner), CategoryKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	cats := make([]domain.Category, 0, len(docs))
	for _, raw := range docs {
		var c domain.Category
		if err := json.Unmarshal(raw, &c); err != nil {
			// Skip documents that cannot be decoded
			continue
		}
		if c.OwnerID != owner {
			continue
		}
		cats = append(cats, c)
	}
	return cats, nil
}

// ListLinks returns the current owner's links in insertion order
func (s *Store) ListLinks(ctx context.Context) ([]domain.Link, error) {
	owner, ok := auth.OwnerFromContext(ctx)
	if !ok {
		return []domain.Link{}, nil
	}

	docs, err := s.fetchOwned(ctx, OwnerLinksKey(owner), LinkKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}

	links := make([]domain.Link, 0, len(docs))
	for _, raw := range docs {
		var l domain.Link
		if err := json.Unmarshal(raw, &l); err != nil {
			continue
		}
		if l.OwnerID != owner {
			continue
		}
		links = append(links, l)
	}
	return links, nil
}

// CreateCategory stores a new category document for the current owner
func (s *Store) CreateCategory(ctx context.Context, in domain.CategoryInput) error {
	owner, ok := auth.OwnerFromContext(ctx)
	if !ok {
		return domain.ErrUnauthenticated
	}

	cat, err := domain.NewCategory(s.newID(), owner, in, s.serverTime(ctx))
	if err != nil {
		return err
	}
	if err := s.insert(ctx, CategoryKey(cat.ID), OwnerCategoriesKey(owner), cat.ID, cat); err != nil {
		return fmt.Errorf("failed to save category: %w", err)
	}
	return nil
}

// UpdateCategory merges patch into an existing category of the current owner
func (s *Store) UpdateCategory(ctx context.Context, id string, patch domain.CategoryPatch) error {
	owner, ok := auth.OwnerFromContext(ctx)
	if !ok {
		return domain.ErrUnauthenticated
	}

	var cat domain.Category
	found, err := s.get(ctx, CategoryKey(id), &cat)
	if err != nil {
		return fmt.Errorf("failed to get category: %w", err)
	}
	if !found || cat.OwnerID != owner {
		return nil
	}

	if err := cat.Apply(patch, s.serverTime(ctx)); err != nil {
		return err
	}
	if err := s.put(ctx, CategoryKey(id), &cat); err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}
	return nil
}

// CreateLink stores a new link document for the current owner
func (s *Store) CreateLink(ctx context.Context, in domain.LinkInput) error {
	owner, ok := auth.OwnerFromContext(ctx)
	if !ok {
		return domain.ErrUnauthenticated
	}

	link, err := domain.NewLink(s.newID(), owner, in, s.serverTime(ctx))
	if err != nil {
		return err
	}
	if err := s.insert(ctx, LinkKey(link.ID), OwnerLinksKey(owner), link.ID, link); err != nil {
		return fmt.Errorf("failed to save link: %w", err)
	}
	return nil
}

// ToggleFavorite sets the favorite flag of a link
func (s *Store) ToggleFavorite(ctx context.Context, id string, value bool) error {
	return s.mutateLink(ctx, id, func(l *domain.Link, now time.Time) {
		l.IsFavorite = value
		l.UpdatedAt = now
	})
}

// UpdateLink merges patch into a link
func (s *Store) UpdateLink(ctx context.Context, id string, patch domain.LinkPatch) error {
	return s.mutateLink(ctx, id, func(l *domain.Link, now time.Time) {
		l.Apply(patch, now)
	})
}

// RemoveLink deletes a link document and its index entry
func (s *Store) RemoveLink(ctx context.Context, id string) error {
	owner, ok := auth.OwnerFromContext(ctx)
	if !ok {
		return domain.ErrUnauthenticated
	}

	var link domain.Link
	found, err := s.get(ctx, LinkKey(id), &link)
	if err != nil {
		return fmt.Errorf("failed to get link: %w", err)
	}
	if !found || link.OwnerID != owner {
		return nil
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, LinkKey(id))
	pipe.LRem(ctx, OwnerLinksKey(owner), 0, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}
	return nil
}

func (s *Store) mutateLink(ctx context.Context, id string, fn func(*domain.Link, time.Time)) error {
	owner, ok := auth.OwnerFromContext(ctx)
	if !ok {
		return domain.ErrUnauthenticated
	}

	var link domain.Link
	found, err := s.get(ctx, LinkKey(id), &link)
	if err != nil {
		return fmt.Errorf("failed to get link: %w", err)
	}
	if !found || link.OwnerID != owner {
		return nil
	}

	fn(&link, s.serverTime(ctx))
	if err := s.put(ctx, LinkKey(id), &link); err != nil {
		return fmt.Errorf("failed to update link: %w", err)
	}
	return nil
}

// fetchOwned resolves the ids in listKey into raw documents, skipping missing ones
func (s *Store) fetchOwned(ctx context.Context, listKey string, docKey func(string) string) ([][]byte, error) {
	ids, err := s.client.LRange(ctx, listKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = docKey(id)
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	docs := make([][]byte, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		docs = append(docs, []byte(str))
	}
	return docs, nil
}

func (s *Store) insert(ctx context.Context, key, listKey, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, data, 0)
	pipe.RPush(ctx, listKey, id)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Store) put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	return s.client.Set(ctx, key, data, 0).Err()
}

// get decodes the document at key into out. found is false on a missing key.
func (s *Store) get(ctx context.Context, key string, out any) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return true, nil
}

// serverTime prefers the Redis server clock and falls back to the local one
func (s *Store) serverTime(ctx context.Context) time.Time {
	t, err := s.client.Time(ctx).Result()
	if err != nil || t.IsZero() {
		return s.now()
	}
	return t
}
