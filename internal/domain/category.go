package domain

import "time"

const (
	// DefaultCategoryColor is the accent used when a category is created without a color.
	DefaultCategoryColor = "#2563eb"
	// DefaultCategoryIcon is the glyph used when a category is created without an icon.
	DefaultCategoryIcon = "🔖"
	// UncategorizedLabel is displayed for links without a resolvable category.
	UncategorizedLabel = "Uncategorized"
)

// Category groups links for display.
type Category struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// ID is assigned at creation and never changes.
	ID string `json:"id"`

	// OwnerID is the user that owns the category.
	// Never empty for a persisted record.
	OwnerID string `json:"ownerId"`

	// ─────────────────────────────
	// Display
	// ─────────────────────────────

	// Name is the display label. Never empty.
	Name string `json:"name"`

	// Color is a display color token (ex: #2563eb).
	Color string `json:"color"`

	// Icon is an icon key or a literal glyph.
	Icon string `json:"icon"`

	// Order drives the ascending display order.
	// Defaults to the creation time in milliseconds so new categories sort last.
	Order int64 `json:"order"`

	// ─────────────────────────────
	// Liveness
	// ─────────────────────────────

	// IsArchived is a soft-delete flag. Nothing sets it today.
	IsArchived bool `json:"isArchived"`

	// ─────────────────────────────
	// Metadata
	// ─────────────────────────────

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CategoryInput carries the caller supplied fields of a new category.
// Zero values are replaced by the defaults above.
type CategoryInput struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
	Icon  string `json:"icon,omitempty"`
	Order *int64 `json:"order,omitempty"`
}

// CategoryPatch lists the mutable display fields of a category.
// Nil fields are left untouched.
type CategoryPatch struct {
	Name  *string `json:"name,omitempty"`
	Color *string `json:"color,omitempty"`
	Icon  *string `json:"icon,omitempty"`
}

// NewCategory validates in and builds a record stamped with id, owner and now.
func NewCategory(id, ownerID string, in CategoryInput, now time.Time) (*Category, error) {
	if in.Name == "" {
		return nil, invalid("category name is required")
	}

	c := &Category{
		ID:         id,
		OwnerID:    ownerID,
		Name:       in.Name,
		Color:      in.Color,
		Icon:       in.Icon,
		Order:      now.UnixMilli(),
		IsArchived: false,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if c.Color == "" {
		c.Color = DefaultCategoryColor
	}
	if c.Icon == "" {
		c.Icon = DefaultCategoryIcon
	}
	if in.Order != nil {
		c.Order = *in.Order
	}
	return c, nil
}

// Apply merges p into c and bumps UpdatedAt.
func (c *Category) Apply(p CategoryPatch, now time.Time) error {
	if p.Name != nil {
		if *p.Name == "" {
			return invalid("category name cannot be empty")
		}
		c.Name = *p.Name
	}
	if p.Color != nil {
		c.Color = *p.Color
	}
	if p.Icon != nil {
		c.Icon = *p.Icon
	}
	c.UpdatedAt = now
	return nil
}
