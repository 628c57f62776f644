package library

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/stacklink/internal/auth"
	"github.com/MrSnakeDoc/stacklink/internal/dal"
	"github.com/MrSnakeDoc/stacklink/internal/domain"
	"github.com/MrSnakeDoc/stacklink/internal/logger"
	"github.com/MrSnakeDoc/stacklink/internal/metrics"
	"github.com/MrSnakeDoc/stacklink/internal/store/local"
	redisstore "github.com/MrSnakeDoc/stacklink/internal/store/redis"
)

type recordingQueue struct{ owners []string }

func (q *recordingQueue) Enqueue(owner string) { q.owners = append(q.owners, owner) }

type fetcherFunc func(ctx context.Context, target string) (*domain.Preview, error)

func (f fetcherFunc) Fetch(ctx context.Context, target string) (*domain.Preview, error) {
	return f(ctx, target)
}

func newLocalLibrary(t *testing.T, previews fetcherFunc) (*Library, *recordingQueue) {
	t.Helper()
	layer := dal.New(local.NewStore(local.NewMemoryKeySpace()), logger.Nop(), metrics.New())
	queue := &recordingQueue{}
	if previews == nil {
		return New(layer, nil, queue, logger.Nop()), queue
	}
	return New(layer, previews, queue, logger.Nop()), queue
}

func newRemoteLibrary(t *testing.T, opts ...Option) *Library {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	layer := dal.New(redisstore.NewStore(client), logger.Nop(), metrics.New())
	return New(layer, nil, &recordingQueue{}, logger.Nop(), opts...)
}

func TestLibrary_LoadLocal(t *testing.T) {
	lib, queue := newLocalLibrary(t, nil)

	snap, err := lib.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if len(snap.Categories) != 5 {
		t.Errorf("Categories = %d, want 5 starter categories", len(snap.Categories))
	}
	if snap.Links == nil || len(snap.Links) != 0 {
		t.Errorf("Links = %#v, want empty non-nil", snap.Links)
	}
	if len(queue.owners) != 1 || queue.owners[0] != local.DevOwner {
		t.Errorf("backfill queue = %v, want [%s]", queue.owners, local.DevOwner)
	}
}

func TestLibrary_RemoteWithoutOwner(t *testing.T) {
	lib := newRemoteLibrary(t)
	ctx := context.Background()

	snap, err := lib.Load(ctx)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if len(snap.Categories) != 0 || len(snap.Links) != 0 {
		t.Errorf("Load() = %+v, want empty snapshot", snap)
	}

	if _, err := lib.AddLink(ctx, domain.LinkInput{URL: "https://go.dev"}); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("AddLink() error = %v, want ErrUnauthenticated", err)
	}
	if err := lib.Backfill(ctx); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("Backfill() error = %v, want ErrUnauthenticated", err)
	}
}

func TestLibrary_RemoteOwnersAreSeparate(t *testing.T) {
	lib := newRemoteLibrary(t)
	alice := auth.WithOwner(context.Background(), "alice")
	bob := auth.WithOwner(context.Background(), "bob")

	if _, err := lib.Load(alice); err != nil {
		t.Fatalf("Load(alice) unexpected error: %v", err)
	}
	if _, err := lib.AddLink(alice, domain.LinkInput{URL: "https://alice.example.com"}); err != nil {
		t.Fatalf("AddLink(alice) unexpected error: %v", err)
	}

	snap, err := lib.Current(bob)
	if err != nil {
		t.Fatalf("Current(bob) unexpected error: %v", err)
	}
	if len(snap.Links) != 0 {
		t.Errorf("bob sees %d links, want 0", len(snap.Links))
	}
	if len(snap.Categories) != 5 {
		t.Errorf("bob categories = %d, want 5", len(snap.Categories))
	}

	aliceSnap, _ := lib.Current(alice)
	if len(aliceSnap.Links) != 1 {
		t.Errorf("alice links = %d, want 1", len(aliceSnap.Links))
	}
}

func TestLibrary_AddLinkFetchesPreview(t *testing.T) {
	fetched := 0
	lib, _ := newLocalLibrary(t, func(_ context.Context, target string) (*domain.Preview, error) {
		fetched++
		return &domain.Preview{Image: target + "/og.png"}, nil
	})
	ctx := context.Background()

	snap, err := lib.AddLink(ctx, domain.LinkInput{URL: "  https://go.dev  ", Title: " Go "})
	if err != nil {
		t.Fatalf("AddLink() unexpected error: %v", err)
	}
	if len(snap.Links) != 1 {
		t.Fatalf("Links = %d, want 1", len(snap.Links))
	}
	l := snap.Links[0]
	if l.URL != "https://go.dev" || l.Title != "Go" {
		t.Errorf("link not trimmed: %q %q", l.URL, l.Title)
	}
	if l.PreviewImage != "https://go.dev/og.png" {
		t.Errorf("PreviewImage = %q", l.PreviewImage)
	}

	if _, err := lib.AddLink(ctx, domain.LinkInput{URL: "https://a.example.com", PreviewImage: "https://a.example.com/x.png"}); err != nil {
		t.Fatalf("AddLink() unexpected error: %v", err)
	}
	if fetched != 1 {
		t.Errorf("preview fetched %d times, want 1", fetched)
	}
}

func TestLibrary_AddLinkPreviewFailureIgnored(t *testing.T) {
	lib, _ := newLocalLibrary(t, func(context.Context, string) (*domain.Preview, error) {
		return nil, errors.New("provider down")
	})

	snap, err := lib.AddLink(context.Background(), domain.LinkInput{URL: "https://go.dev"})
	if err != nil {
		t.Fatalf("AddLink() unexpected error: %v", err)
	}
	if len(snap.Links) != 1 || snap.Links[0].PreviewImage != "" {
		t.Errorf("Links = %+v", snap.Links)
	}
}

func TestLibrary_AddLinkValidation(t *testing.T) {
	lib, _ := newLocalLibrary(t, nil)

	if _, err := lib.AddLink(context.Background(), domain.LinkInput{URL: "   "}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("AddLink() error = %v, want ErrInvalidInput", err)
	}
	if _, err := lib.AddCategory(context.Background(), domain.CategoryInput{Name: "  "}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("AddCategory() error = %v, want ErrInvalidInput", err)
	}
}

func TestLibrary_ToggleFavorite(t *testing.T) {
	lib, _ := newLocalLibrary(t, nil)
	ctx := context.Background()

	snap, err := lib.AddLink(ctx, domain.LinkInput{URL: "https://go.dev"})
	if err != nil {
		t.Fatalf("AddLink() unexpected error: %v", err)
	}
	id := snap.Links[0].ID

	snap, err = lib.ToggleFavorite(ctx, id)
	if err != nil {
		t.Fatalf("ToggleFavorite() unexpected error: %v", err)
	}
	if !snap.Links[0].IsFavorite {
		t.Error("first toggle should favorite the link")
	}

	snap, err = lib.ToggleFavorite(ctx, id)
	if err != nil {
		t.Fatalf("ToggleFavorite() unexpected error: %v", err)
	}
	if snap.Links[0].IsFavorite {
		t.Error("second toggle should unfavorite the link")
	}

	if _, err := lib.ToggleFavorite(ctx, "missing"); err != nil {
		t.Errorf("ToggleFavorite(missing) unexpected error: %v", err)
	}
}

func TestLibrary_CategoryMutations(t *testing.T) {
	lib, _ := newLocalLibrary(t, nil)
	ctx := context.Background()

	if _, err := lib.Load(ctx); err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	snap, err := lib.AddCategory(ctx, domain.CategoryInput{Name: " Recipes "})
	if err != nil {
		t.Fatalf("AddCategory() unexpected error: %v", err)
	}
	if len(snap.Categories) != 6 {
		t.Fatalf("Categories = %d, want 6", len(snap.Categories))
	}
	last := snap.Categories[len(snap.Categories)-1]
	if last.Name != "Recipes" {
		t.Errorf("new category = %q, want Recipes sorted last", last.Name)
	}

	name := "Cooking"
	snap, err = lib.UpdateCategory(ctx, last.ID, domain.CategoryPatch{Name: &name})
	if err != nil {
		t.Fatalf("UpdateCategory() unexpected error: %v", err)
	}
	if snap.Categories[len(snap.Categories)-1].Name != "Cooking" {
		t.Errorf("rename not visible: %+v", snap.Categories)
	}
}

func TestLibrary_UpdateAndRemoveLink(t *testing.T) {
	lib, _ := newLocalLibrary(t, nil)
	ctx := context.Background()

	snap, err := lib.AddLink(ctx, domain.LinkInput{URL: "https://go.dev"})
	if err != nil {
		t.Fatalf("AddLink() unexpected error: %v", err)
	}
	id := snap.Links[0].ID

	title := "The Go Programming Language"
	snap, err = lib.UpdateLink(ctx, id, domain.LinkPatch{Title: &title})
	if err != nil {
		t.Fatalf("UpdateLink() unexpected error: %v", err)
	}
	if snap.Links[0].Title != title {
		t.Errorf("Title = %q, want %q", snap.Links[0].Title, title)
	}

	snap, err = lib.RemoveLink(ctx, id)
	if err != nil {
		t.Fatalf("RemoveLink() unexpected error: %v", err)
	}
	if len(snap.Links) != 0 {
		t.Errorf("Links = %d after remove, want 0", len(snap.Links))
	}
}

func TestLibrary_PruneDropsIdleSnapshots(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	lib := newRemoteLibrary(t,
		WithSnapshotTTL(30*time.Minute),
		WithClock(func() time.Time { return now }))

	alice := auth.WithOwner(context.Background(), "alice")
	bob := auth.WithOwner(context.Background(), "bob")

	if _, err := lib.Load(alice); err != nil {
		t.Fatalf("Load(alice) unexpected error: %v", err)
	}
	now = now.Add(20 * time.Minute)
	if _, err := lib.Load(bob); err != nil {
		t.Fatalf("Load(bob) unexpected error: %v", err)
	}

	now = now.Add(20 * time.Minute)
	dropped, err := lib.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune() unexpected error: %v", err)
	}
	if len(dropped) != 1 || dropped[0] != "alice" {
		t.Errorf("Prune() = %v, want [alice]", dropped)
	}
	if lib.Owners() != 1 {
		t.Errorf("Owners() = %d, want 1", lib.Owners())
	}

	snap, err := lib.Current(alice)
	if err != nil {
		t.Fatalf("Current(alice) unexpected error: %v", err)
	}
	if len(snap.Categories) != 5 {
		t.Errorf("reloaded categories = %d, want 5", len(snap.Categories))
	}
	if lib.Owners() != 2 {
		t.Errorf("Owners() after reload = %d, want 2", lib.Owners())
	}
}
