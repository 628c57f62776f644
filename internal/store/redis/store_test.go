package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/stacklink/internal/auth"
	"github.com/MrSnakeDoc/stacklink/internal/domain"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := NewStore(client)
	n := 0
	s.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return s, mr
}

func TestStore_Unauthenticated(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	cats, err := s.ListCategories(ctx)
	if err != nil || len(cats) != 0 {
		t.Errorf("ListCategories() = (%v, %v), want empty", cats, err)
	}
	links, err := s.ListLinks(ctx)
	if err != nil || len(links) != 0 {
		t.Errorf("ListLinks() = (%v, %v), want empty", links, err)
	}

	name := "x"
	mutations := map[string]func() error{
		"CreateCategory": func() error { return s.CreateCategory(ctx, domain.CategoryInput{Name: "x"}) },
		"UpdateCategory": func() error { return s.UpdateCategory(ctx, "id", domain.CategoryPatch{Name: &name}) },
		"CreateLink":     func() error { return s.CreateLink(ctx, domain.LinkInput{URL: "https://x.example.com"}) },
		"ToggleFavorite": func() error { return s.ToggleFavorite(ctx, "id", true) },
		"UpdateLink":     func() error { return s.UpdateLink(ctx, "id", domain.LinkPatch{Title: &name}) },
		"RemoveLink":     func() error { return s.RemoveLink(ctx, "id") },
	}
	for op, fn := range mutations {
		if err := fn(); !errors.Is(err, domain.ErrUnauthenticated) {
			t.Errorf("%s() error = %v, want ErrUnauthenticated", op, err)
		}
	}
}

func TestStore_OwnerIsolation(t *testing.T) {
	s, _ := newTestStore(t)
	alice := auth.WithOwner(context.Background(), "alice")
	bob := auth.WithOwner(context.Background(), "bob")

	if err := s.CreateLink(alice, domain.LinkInput{URL: "https://alice.example.com"}); err != nil {
		t.Fatalf("CreateLink(alice) unexpected error: %v", err)
	}
	if err := s.CreateLink(bob, domain.LinkInput{URL: "https://bob.example.com"}); err != nil {
		t.Fatalf("CreateLink(bob) unexpected error: %v", err)
	}
	if err := s.CreateCategory(alice, domain.CategoryInput{Name: "Mine"}); err != nil {
		t.Fatalf("CreateCategory(alice) unexpected error: %v", err)
	}

	aliceLinks, err := s.ListLinks(alice)
	if err != nil {
		t.Fatalf("ListLinks(alice) unexpected error: %v", err)
	}
	if len(aliceLinks) != 1 || aliceLinks[0].URL != "https://alice.example.com" {
		t.Errorf("ListLinks(alice) = %+v", aliceLinks)
	}
	if aliceLinks[0].OwnerID != "alice" {
		t.Errorf("OwnerID = %q, want alice", aliceLinks[0].OwnerID)
	}

	bobCats, _ := s.ListCategories(bob)
	if len(bobCats) != 0 {
		t.Errorf("ListCategories(bob) = %d, want 0", len(bobCats))
	}
}

func TestStore_CrossOwnerMutationIsNoOp(t *testing.T) {
	s, mr := newTestStore(t)
	alice := auth.WithOwner(context.Background(), "alice")
	bob := auth.WithOwner(context.Background(), "bob")

	if err := s.CreateLink(alice, domain.LinkInput{URL: "https://alice.example.com", Title: "Alice"}); err != nil {
		t.Fatalf("CreateLink() unexpected error: %v", err)
	}
	before, err := mr.Get(LinkKey("id-1"))
	if err != nil {
		t.Fatalf("document missing: %v", err)
	}

	title := "hijacked"
	if err := s.UpdateLink(bob, "id-1", domain.LinkPatch{Title: &title}); err != nil {
		t.Errorf("UpdateLink(bob) unexpected error: %v", err)
	}
	if err := s.ToggleFavorite(bob, "id-1", true); err != nil {
		t.Errorf("ToggleFavorite(bob) unexpected error: %v", err)
	}
	if err := s.RemoveLink(bob, "id-1"); err != nil {
		t.Errorf("RemoveLink(bob) unexpected error: %v", err)
	}

	after, err := mr.Get(LinkKey("id-1"))
	if err != nil {
		t.Fatalf("document deleted by another owner: %v", err)
	}
	if before != after {
		t.Error("document modified by another owner")
	}
}

func TestStore_InsertionOrderAndMutations(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := auth.WithOwner(context.Background(), "alice")

	for _, u := range []string{"https://a.example.com", "https://b.example.com", "https://c.example.com"} {
		if err := s.CreateLink(ctx, domain.LinkInput{URL: u}); err != nil {
			t.Fatalf("CreateLink(%s) unexpected error: %v", u, err)
		}
	}

	if err := s.ToggleFavorite(ctx, "id-2", true); err != nil {
		t.Fatalf("ToggleFavorite() unexpected error: %v", err)
	}
	if err := s.RemoveLink(ctx, "id-1"); err != nil {
		t.Fatalf("RemoveLink() unexpected error: %v", err)
	}

	links, err := s.ListLinks(ctx)
	if err != nil {
		t.Fatalf("ListLinks() unexpected error: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("ListLinks() = %d, want 2", len(links))
	}
	if links[0].ID != "id-2" || links[1].ID != "id-3" {
		t.Errorf("order = [%s %s], want [id-2 id-3]", links[0].ID, links[1].ID)
	}
	if !links[0].IsFavorite {
		t.Error("id-2 should be favorite")
	}
	if mr.Exists(LinkKey("id-1")) {
		t.Error("removed link document still present")
	}
}

func TestStore_UpdateCategory(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := auth.WithOwner(context.Background(), "alice")

	if err := s.CreateCategory(ctx, domain.CategoryInput{Name: "Learning"}); err != nil {
		t.Fatalf("CreateCategory() unexpected error: %v", err)
	}

	color := "#16a34a"
	if err := s.UpdateCategory(ctx, "id-1", domain.CategoryPatch{Color: &color}); err != nil {
		t.Fatalf("UpdateCategory() unexpected error: %v", err)
	}
	empty := ""
	if err := s.UpdateCategory(ctx, "id-1", domain.CategoryPatch{Name: &empty}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("UpdateCategory(empty name) error = %v, want ErrInvalidInput", err)
	}

	cats, _ := s.ListCategories(ctx)
	if len(cats) != 1 || cats[0].Color != color || cats[0].Name != "Learning" {
		t.Errorf("ListCategories() = %+v", cats)
	}
}

func TestStore_SkipsDanglingIndexEntries(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := auth.WithOwner(context.Background(), "alice")

	if err := s.CreateLink(ctx, domain.LinkInput{URL: "https://a.example.com"}); err != nil {
		t.Fatalf("CreateLink() unexpected error: %v", err)
	}
	if _, err := mr.Push(OwnerLinksKey("alice"), "ghost"); err != nil {
		t.Fatalf("Push() unexpected error: %v", err)
	}
	if err := mr.Set(LinkKey("broken"), "{not json"); err != nil {
		t.Fatalf("Set() unexpected error: %v", err)
	}
	if _, err := mr.Push(OwnerLinksKey("alice"), "broken"); err != nil {
		t.Fatalf("Push() unexpected error: %v", err)
	}

	links, err := s.ListLinks(ctx)
	if err != nil {
		t.Fatalf("ListLinks() unexpected error: %v", err)
	}
	if len(links) != 1 {
		t.Errorf("ListLinks() = %d, want 1", len(links))
	}
}
