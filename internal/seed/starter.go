// Package seed creates the starter categories of a new owner.
package seed

import (
	"context"
	"fmt"

	"github.com/MrSnakeDoc/stacklink/internal/domain"
)

// CategoryLayer is the part of the data layer seeding needs.
type CategoryLayer interface {
	ListCategories(ctx context.Context) []domain.Category
	CreateCategory(ctx context.Context, in domain.CategoryInput) error
}

// StarterCategories returns the fixed starter set, in creation order.
func StarterCategories() []domain.CategoryInput {
	return []domain.CategoryInput{
		{Name: "Technology", Color: "#2563eb", Icon: "</>", Order: order(10)},
		{Name: "News", Color: "#64748b", Icon: "📰", Order: order(20)},
		{Name: "Studies", Color: "#10b981", Icon: "📚", Order: order(30)},
		{Name: "Entertainment", Color: "#f59e0b", Icon: "🎬", Order: order(40)},
		{Name: "Finance", Color: "#0ea5e9", Icon: "💹", Order: order(50)},
	}
}

// EnsureStarterCategories returns the owner's categories, creating the
// starter set first when the owner has none.
//
// Two concurrent first loads for the same owner may both observe an empty
// list and create the starter set twice. No lock guards against it.
func EnsureStarterCategories(ctx context.Context, layer CategoryLayer) ([]domain.Category, error) {
	cats := layer.ListCategories(ctx)
	if len(cats) > 0 {
		return cats, nil
	}

	for _, in := range StarterCategories() {
		if err := layer.CreateCategory(ctx, in); err != nil {
			return nil, fmt.Errorf("failed to seed category %q: %w", in.Name, err)
		}
	}
	return layer.ListCategories(ctx), nil
}

func order(v int64) *int64 { return &v }
