package dal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrSnakeDoc/stacklink/internal/domain"
	"github.com/MrSnakeDoc/stacklink/internal/logger"
	"github.com/MrSnakeDoc/stacklink/internal/metrics"
	"github.com/MrSnakeDoc/stacklink/internal/store"
)

// mockStore is a store.Store whose behavior is set per test.
type mockStore struct {
	kind           store.Kind
	listCategories func(ctx context.Context) ([]domain.Category, error)
	listLinks      func(ctx context.Context) ([]domain.Link, error)
	mutate         func(op string) error
}

func (m *mockStore) Kind() store.Kind { return m.kind }

func (m *mockStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	if m.listCategories == nil {
		return nil, nil
	}
	return m.listCategories(ctx)
}

func (m *mockStore) ListLinks(ctx context.Context) ([]domain.Link, error) {
	if m.listLinks == nil {
		return nil, nil
	}
	return m.listLinks(ctx)
}

func (m *mockStore) call(op string) error {
	if m.mutate == nil {
		return nil
	}
	return m.mutate(op)
}

func (m *mockStore) CreateCategory(context.Context, domain.CategoryInput) error {
	return m.call("create_category")
}

func (m *mockStore) UpdateCategory(context.Context, string, domain.CategoryPatch) error {
	return m.call("update_category")
}

func (m *mockStore) CreateLink(context.Context, domain.LinkInput) error {
	return m.call("create_link")
}

func (m *mockStore) ToggleFavorite(context.Context, string, bool) error {
	return m.call("toggle_favorite")
}

func (m *mockStore) UpdateLink(context.Context, string, domain.LinkPatch) error {
	return m.call("update_link")
}

func (m *mockStore) RemoveLink(context.Context, string) error {
	return m.call("remove_link")
}

// counterValue reads one StoreOperations sample from the registry.
func counterValue(t *testing.T, m *metrics.Metrics, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() unexpected error: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "stacklink_store_operations_total" {
			continue
		}
	next:
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue next
				}
			}
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}

func TestSortCategories_Stable(t *testing.T) {
	cats := []domain.Category{
		{ID: "a", Order: 100},
		{ID: "b", Order: 300},
		{ID: "c", Order: 300},
		{ID: "d", Order: 200},
	}

	SortCategories(cats)

	want := []string{"a", "d", "b", "c"}
	for i, id := range want {
		if cats[i].ID != id {
			t.Errorf("cats[%d] = %s, want %s", i, cats[i].ID, id)
		}
	}
}

func TestSortLinks_NewestFirstStable(t *testing.T) {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	at := func(ms int64) time.Time { return base.Add(time.Duration(ms) * time.Millisecond) }

	links := []domain.Link{
		{ID: "a", CreatedAt: at(100)},
		{ID: "b", CreatedAt: at(300)},
		{ID: "c", CreatedAt: at(300)},
		{ID: "d", CreatedAt: at(200)},
	}

	SortLinks(links)

	want := []string{"b", "c", "d", "a"}
	for i, id := range want {
		if links[i].ID != id {
			t.Errorf("links[%d] = %s, want %s", i, links[i].ID, id)
		}
	}
}

func TestLayer_ReadsDegradeToEmpty(t *testing.T) {
	m := metrics.New()
	backend := &mockStore{
		kind: store.KindRemote,
		listCategories: func(context.Context) ([]domain.Category, error) {
			return nil, errors.New("connection refused")
		},
		listLinks: func(context.Context) ([]domain.Link, error) {
			return nil, errors.New("connection refused")
		},
	}
	layer := New(backend, logger.Nop(), m)
	ctx := context.Background()

	cats := layer.ListCategories(ctx)
	if cats == nil || len(cats) != 0 {
		t.Errorf("ListCategories() = %#v, want empty non-nil", cats)
	}
	links := layer.ListLinks(ctx)
	if links == nil || len(links) != 0 {
		t.Errorf("ListLinks() = %#v, want empty non-nil", links)
	}

	got := counterValue(t, m, map[string]string{"backend": "remote", "operation": "list_links", "result": "error"})
	if got != 1 {
		t.Errorf("list_links error counter = %v, want 1", got)
	}
}

func TestLayer_WritesPropagate(t *testing.T) {
	boom := errors.New("write failed")

	tests := []struct {
		name       string
		err        error
		wantResult string
	}{
		{"success", nil, "ok"},
		{"unauthenticated", domain.ErrUnauthenticated, "unauthenticated"},
		{"invalid", domain.ErrInvalidInput, "invalid"},
		{"backend failure", boom, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.New()
			var calls []string
			backend := &mockStore{
				kind: store.KindLocal,
				mutate: func(op string) error {
					calls = append(calls, op)
					return tt.err
				},
			}
			layer := New(backend, logger.Nop(), m)
			ctx := context.Background()

			errs := []error{
				layer.CreateCategory(ctx, domain.CategoryInput{Name: "x"}),
				layer.UpdateCategory(ctx, "id", domain.CategoryPatch{}),
				layer.CreateLink(ctx, domain.LinkInput{URL: "https://x.example.com"}),
				layer.ToggleFavorite(ctx, "id", true),
				layer.UpdateLink(ctx, "id", domain.LinkPatch{}),
				layer.RemoveLink(ctx, "id"),
			}
			for i, err := range errs {
				if !errors.Is(err, tt.err) {
					t.Errorf("op %s error = %v, want %v", calls[i], err, tt.err)
				}
			}
			if len(calls) != 6 {
				t.Fatalf("backend calls = %v, want 6", calls)
			}

			got := counterValue(t, m, map[string]string{"operation": "remove_link", "result": tt.wantResult})
			if got != 1 {
				t.Errorf("remove_link %s counter = %v, want 1", tt.wantResult, got)
			}
		})
	}
}

func TestLayer_ListSorted(t *testing.T) {
	backend := &mockStore{
		kind: store.KindLocal,
		listCategories: func(context.Context) ([]domain.Category, error) {
			return []domain.Category{{ID: "late", Order: 50}, {ID: "early", Order: 10}}, nil
		},
	}
	layer := New(backend, logger.Nop(), metrics.New())

	cats := layer.ListCategories(context.Background())
	if len(cats) != 2 || cats[0].ID != "early" {
		t.Errorf("ListCategories() = %+v, want early first", cats)
	}
	if layer.Backend() != store.KindLocal {
		t.Errorf("Backend() = %s, want local", layer.Backend())
	}
}
