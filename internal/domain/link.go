package domain

import "time"

// Link is a bookmarked address.
type Link struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// ID is assigned at creation and never changes.
	ID string `json:"id"`

	// OwnerID is the user that owns the link.
	// All reads and writes are scoped to it.
	OwnerID string `json:"ownerId"`

	// URL is the bookmarked address. Never empty.
	URL string `json:"url"`

	// ─────────────────────────────
	// Display
	// ─────────────────────────────

	Title       string `json:"title"`
	Description string `json:"description"`

	// PreviewImage is a thumbnail URL, filled lazily by the backfill pass.
	PreviewImage string `json:"previewImage"`

	// CategoryIDs holds zero or one category id.
	// A dangling id (deleted category) is tolerated.
	CategoryIDs []string `json:"categoryIds"`

	// Tags is reserved and always empty.
	Tags []string `json:"tags"`

	// ─────────────────────────────
	// Flags
	// ─────────────────────────────

	// IsFavorite is the only flag mutated after creation.
	IsFavorite bool `json:"isFavorite"`
	IsArchived bool `json:"isArchived"`
	IsRead     bool `json:"isRead"`

	// Popularity is reserved and always 0. Only the popDesc sort reads it.
	Popularity int `json:"popularity"`

	// ─────────────────────────────
	// Metadata
	// ─────────────────────────────

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LinkInput carries the caller supplied fields of a new link.
type LinkInput struct {
	URL          string `json:"url"`
	Title        string `json:"title,omitempty"`
	Description  string `json:"description,omitempty"`
	CategoryID   string `json:"categoryId,omitempty"`
	IsFavorite   bool   `json:"isFavorite,omitempty"`
	PreviewImage string `json:"previewImage,omitempty"`
}

// LinkPatch lists the fields updateLink may merge into an existing link.
// Nil fields are left untouched.
type LinkPatch struct {
	Title        *string `json:"title,omitempty"`
	Description  *string `json:"description,omitempty"`
	PreviewImage *string `json:"previewImage,omitempty"`
	CategoryID   *string `json:"categoryId,omitempty"`
}

// NewLink validates in and builds a record stamped with id, owner and now.
func NewLink(id, ownerID string, in LinkInput, now time.Time) (*Link, error) {
	if in.URL == "" {
		return nil, invalid("link url is required")
	}

	return &Link{
		ID:           id,
		OwnerID:      ownerID,
		URL:          in.URL,
		Title:        in.Title,
		Description:  in.Description,
		PreviewImage: in.PreviewImage,
		CategoryIDs:  categoryIDs(in.CategoryID),
		Tags:         []string{},
		IsFavorite:   in.IsFavorite,
		IsArchived:   false,
		IsRead:       false,
		Popularity:   0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Apply merges p into l and bumps UpdatedAt.
func (l *Link) Apply(p LinkPatch, now time.Time) {
	if p.Title != nil {
		l.Title = *p.Title
	}
	if p.Description != nil {
		l.Description = *p.Description
	}
	if p.PreviewImage != nil {
		l.PreviewImage = *p.PreviewImage
	}
	if p.CategoryID != nil {
		l.CategoryIDs = categoryIDs(*p.CategoryID)
	}
	l.UpdatedAt = now
}

// CategoryID returns the single assigned category id, or "".
func (l *Link) CategoryID() string {
	if len(l.CategoryIDs) == 0 {
		return ""
	}
	return l.CategoryIDs[0]
}

// InCategory reports whether the link is assigned to id.
func (l *Link) InCategory(id string) bool {
	for _, c := range l.CategoryIDs {
		if c == id {
			return true
		}
	}
	return false
}

func categoryIDs(id string) []string {
	if id == "" {
		return []string{}
	}
	return []string{id}
}
