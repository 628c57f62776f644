// Package store defines the backend contract shared by the local and remote
// data backends. Implementations return records in storage order; callers
// are responsible for display ordering.
package store

import (
	"context"

	"github.com/MrSnakeDoc/stacklink/internal/domain"
)

// Kind names a backend implementation.
type Kind string

const (
	KindLocal  Kind = "local"
	KindRemote Kind = "remote"
)

// Store is the CRUD surface over categories and links for the current owner.
//
// List operations return an empty slice when no owner is resolvable.
// Mutations return domain.ErrUnauthenticated in that case.
// Mutations addressing an id that does not resolve to a record of the
// current owner are silent no-ops.
type Store interface {
	Kind() Kind

	ListCategories(ctx context.Context) ([]domain.Category, error)
	ListLinks(ctx context.Context) ([]domain.Link, error)

	CreateCategory(ctx context.Context, in domain.CategoryInput) error
	UpdateCategory(ctx context.Context, id string, patch domain.CategoryPatch) error

	CreateLink(ctx context.Context, in domain.LinkInput) error
	ToggleFavorite(ctx context.Context, id string, value bool) error
	UpdateLink(ctx context.Context, id string, patch domain.LinkPatch) error
	RemoveLink(ctx context.Context, id string) error
}
