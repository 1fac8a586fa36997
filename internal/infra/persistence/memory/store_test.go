package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"calibtrack/pkg/domain"
)

func TestStoreSaveLoadDelete(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	early := domain.Site{ID: "b", Name: "Early", CreatedAt: time.Unix(10, 0)}
	late := domain.Site{ID: "a", Name: "Late", CreatedAt: time.Unix(20, 0)}
	if err := store.SaveSite(ctx, late); err != nil {
		t.Fatalf("save late: %v", err)
	}
	if err := store.SaveSite(ctx, early); err != nil {
		t.Fatalf("save early: %v", err)
	}
	sites, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(sites) != 2 || sites[0].ID != "b" || sites[1].ID != "a" {
		t.Fatalf("unexpected order: %+v", sites)
	}
	if err := store.DeleteSite(ctx, "b"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := store.Site("b"); ok {
		t.Fatalf("expected site b to be deleted")
	}
	if store.Saves() != 2 {
		t.Fatalf("expected 2 saves, got %d", store.Saves())
	}
}

func TestStoreKeepsIndependentCopies(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	site := domain.Site{ID: "s", Name: "Site", ServiceData: []domain.MirrorRecord{{ID: "s-1", Name: "A"}}}
	if err := store.SaveSite(ctx, site); err != nil {
		t.Fatalf("save: %v", err)
	}
	site.ServiceData[0].Name = "mutated"
	got, _ := store.Site("s")
	if got.ServiceData[0].Name != "A" {
		t.Fatalf("stored copy aliased caller slice")
	}
}

func TestStoreFailWrites(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	boom := errors.New("disk full")
	store.FailWrites(boom)
	err := store.SaveSite(ctx, domain.Site{ID: "s"})
	if !domain.IsTransactionFailed(err) || !errors.Is(err, boom) {
		t.Fatalf("expected wrapped transaction failure, got %v", err)
	}
	if _, ok := store.Site("s"); ok {
		t.Fatalf("failed save must not store the site")
	}
	store.FailWrites(nil)
	if err := store.SaveSite(ctx, domain.Site{ID: "s"}); err != nil {
		t.Fatalf("save after recovery: %v", err)
	}
}
