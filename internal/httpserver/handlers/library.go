package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/stacklink/internal/domain"
	"github.com/MrSnakeDoc/stacklink/internal/httpserver/deps"
	"github.com/MrSnakeDoc/stacklink/internal/library"
)

type linkView struct {
	domain.Link
	CategoryLabel string `json:"categoryLabel"`
}

type categoryView struct {
	domain.Category
	LinkCount int `json:"linkCount"`
}

type libraryResponse struct {
	Backend    string         `json:"backend"`
	Categories []categoryView `json:"categories"`
	Links      []linkView     `json:"links"`
	Total      int            `json:"total"`
}

// render applies the request's filter query (q, category, sort) to snap.
func render(d deps.Deps, r *http.Request, snap library.Snapshot) libraryResponse {
	q := r.URL.Query()
	links := library.Filter(snap.Links, library.FilterOptions{
		Query:      q.Get("q"),
		CategoryID: q.Get("category"),
		SortBy:     library.ParseSortBy(q.Get("sort")),
	})

	counts := library.CategoryCounts(snap.Links)
	cats := make([]categoryView, 0, len(snap.Categories))
	for _, c := range snap.Categories {
		cats = append(cats, categoryView{Category: c, LinkCount: counts[c.ID]})
	}

	views := make([]linkView, 0, len(links))
	for _, l := range links {
		views = append(views, linkView{Link: l, CategoryLabel: library.CategoryLabel(l, snap.Categories)})
	}

	return libraryResponse{
		Backend:    string(d.Backend),
		Categories: cats,
		Links:      views,
		Total:      len(snap.Links),
	}
}

// Library returns the caller's current state, loading it on first use.
func Library(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := d.Library.Current(r.Context())
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, render(d, r, snap))
	}
}

// LoadLibrary reloads the caller's state: seeds starter categories for a
// new owner and schedules a preview backfill.
func LoadLibrary(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := d.Library.Load(r.Context())
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, render(d, r, snap))
	}
}

func CreateCategory(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in domain.CategoryInput
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		snap, err := d.Library.AddCategory(r.Context(), in)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, render(d, r, snap))
	}
}

func UpdateCategory(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch domain.CategoryPatch
		if err := decodeJSON(w, r, &patch); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		snap, err := d.Library.UpdateCategory(r.Context(), chi.URLParam(r, "id"), patch)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, render(d, r, snap))
	}
}

func CreateLink(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in domain.LinkInput
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		snap, err := d.Library.AddLink(r.Context(), in)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, render(d, r, snap))
	}
}

func UpdateLink(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch domain.LinkPatch
		if err := decodeJSON(w, r, &patch); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		snap, err := d.Library.UpdateLink(r.Context(), chi.URLParam(r, "id"), patch)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, render(d, r, snap))
	}
}

type favoriteRequest struct {
	Value *bool `json:"value"`
}

// Favorite sets isFavorite to the given value, or flips it when the body
// carries none.
func Favorite(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body favoriteRequest
		if r.ContentLength != 0 {
			if err := decodeJSON(w, r, &body); err != nil {
				writeError(w, d.Logger, err)
				return
			}
		}

		id := chi.URLParam(r, "id")
		var (
			snap library.Snapshot
			err  error
		)
		if body.Value != nil {
			snap, err = d.Library.SetFavorite(r.Context(), id, *body.Value)
		} else {
			snap, err = d.Library.ToggleFavorite(r.Context(), id)
		}
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, render(d, r, snap))
	}
}

func RemoveLink(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := d.Library.RemoveLink(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, render(d, r, snap))
	}
}
