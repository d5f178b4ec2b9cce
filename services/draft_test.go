package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"sop-assistant/internal/apperr"
	"sop-assistant/internal/storage"
	"sop-assistant/internal/versionstore"
	"sop-assistant/models"
)

func newKnowledgeBase(t *testing.T) (*KnowledgeBase, *versionstore.Store, *storage.MemoryStore) {
	t.Helper()
	objects := storage.NewMemoryStore("https://files.test")
	store := versionstore.New(versionstore.NewMemoryRepository())
	kb := NewKnowledgeBase(store, NewImageResolver(objects, time.Hour))
	n := 0
	kb.newID = func() string {
		n++
		return fmt.Sprintf("new-%d", n)
	}
	return kb, store, objects
}

func TestKnowledgeBaseEmptyCurrent(t *testing.T) {
	kb, _, _ := newKnowledgeBase(t)
	sections, err := kb.Current(context.Background())
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if sections == nil || len(sections) != 0 {
		t.Fatalf("expected empty non-nil snapshot, got %#v", sections)
	}
}

func TestKnowledgeBaseCommitIngestsAndHydrates(t *testing.T) {
	ctx := context.Background()
	kb, store, _ := newKnowledgeBase(t)

	result, err := kb.Commit(ctx, []models.SOPSection{{
		ID: "s1", Title: "包裝", Content: "步驟",
		Images: []models.SOPImage{{URL: "data:image/png;base64,aGVsbG8=", Keyword: "包裝"}},
	}}, nil)
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if !result.Created {
		t.Fatalf("first commit should create a version")
	}

	raw, _, err := store.Current(ctx)
	if err != nil {
		t.Fatalf("store.Current failed: %v", err)
	}
	if raw[0].Images[0].URL != "" || !strings.HasPrefix(raw[0].Images[0].StoragePath, "uploads/") {
		t.Fatalf("stored image should keep only its storage path: %+v", raw[0].Images[0])
	}

	hydrated, err := kb.Current(ctx)
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if !strings.HasPrefix(hydrated[0].Images[0].URL, "https://files.test/uploads/") {
		t.Fatalf("expected hydrated URL, got %+v", hydrated[0].Images[0])
	}
}

func TestConfirmDraftAppendsSelected(t *testing.T) {
	ctx := context.Background()
	kb, store, _ := newKnowledgeBase(t)

	if _, err := kb.Commit(ctx, []models.SOPSection{{ID: "old", Title: "舊", Content: "c"}}, nil); err != nil {
		t.Fatalf("seed commit failed: %v", err)
	}

	result, err := kb.ConfirmDraft(ctx, []models.PendingSOPSection{
		{Title: "A", Content: "a", Selected: true},
		{Title: "B", Content: "b", Selected: false},
		{Title: "C", Content: "c", Selected: true, Images: []models.SOPImage{{URL: "https://cdn.test/c.png", Keyword: "c"}}},
	}, nil)
	if err != nil {
		t.Fatalf("ConfirmDraft failed: %v", err)
	}
	if !result.Created {
		t.Fatalf("confirming new sections should create a version")
	}

	sections, _, _ := store.Current(ctx)
	if len(sections) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(sections))
	}
	if sections[0].ID != "old" || sections[1].ID != "new-1" || sections[2].ID != "new-2" {
		t.Fatalf("unexpected ids: %s %s %s", sections[0].ID, sections[1].ID, sections[2].ID)
	}
	if sections[2].Images[0].StoragePath != "https://cdn.test/c.png" {
		t.Fatalf("remote image should be kept by URL: %+v", sections[2].Images[0])
	}

	versions, err := store.Versions(ctx, 0)
	if err != nil {
		t.Fatalf("Versions failed: %v", err)
	}
	if versions[0].Metadata["source"] != "draft" {
		t.Fatalf("expected draft source metadata, got %v", versions[0].Metadata)
	}
}

func TestConfirmDraftRequiresSelection(t *testing.T) {
	kb, _, _ := newKnowledgeBase(t)
	_, err := kb.ConfirmDraft(context.Background(), []models.PendingSOPSection{{Title: "x", Selected: false}}, nil)
	if !errors.Is(err, apperr.ErrValidationFailure) {
		t.Fatalf("expected validation failure, got %v", err)
	}
}

func TestPromoteSelected(t *testing.T) {
	promoted := PromoteSelected([]models.PendingSOPSection{
		{Title: "a", Selected: true},
		{Title: "b"},
	}, func() string { return "id" })
	if len(promoted) != 1 || promoted[0].ID != "id" || promoted[0].Images == nil {
		t.Fatalf("unexpected promotion: %#v", promoted)
	}
}
