package versionstore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"sop-assistant/internal/apperr"
	"sop-assistant/models"
)

type fixedClock struct{ t time.Time }

func (c *fixedClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestStore(repo Repository, opts ...Option) *Store {
	clock := &fixedClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	n := 0
	opts = append([]Option{
		WithClock(clock.now),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("v%d", n) }),
	}, opts...)
	return New(repo, opts...)
}

func sampleSections() []models.SOPSection {
	return []models.SOPSection{
		{ID: "a", Title: "報價流程", Content: "1. 建立報價單", Images: []models.SOPImage{
			{URL: "https://signed.example.com/q.png?sig=1", StoragePath: "sop/q.png", Keyword: "報價單"},
		}},
		{ID: "b", Title: "出貨流程", Content: "1. 列印出貨單"},
	}
}

func TestCommitIsIdempotent(t *testing.T) {
	repo := NewMemoryRepository()
	store := newTestStore(repo)
	ctx := context.Background()

	first, err := store.Commit(ctx, sampleSections(), nil)
	if err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if !first.Created || first.VersionID != "v1" {
		t.Fatalf("unexpected first result %+v", first)
	}

	// Same content in a different order, with a different signed URL.
	again := sampleSections()
	again[0], again[1] = again[1], again[0]
	again[1].Images[0].URL = "https://signed.example.com/q.png?sig=2"

	second, err := store.Commit(ctx, again, map[string]any{"source": "retry"})
	if err != nil {
		t.Fatalf("second commit: %v", err)
	}
	if second.Created || second.VersionID != first.VersionID || second.ContentHash != first.ContentHash {
		t.Fatalf("expected dedup to %s, got %+v", first.VersionID, second)
	}
	if repo.Len() != 1 {
		t.Fatalf("expected 1 stored version, got %d", repo.Len())
	}
}

func TestCommitStoresSanitizedSections(t *testing.T) {
	repo := NewMemoryRepository()
	store := newTestStore(repo)
	res, err := store.Commit(context.Background(), sampleSections(), map[string]any{"author": "admin"})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	v, err := store.Version(context.Background(), res.VersionID)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v.Sections[0].Images[0].URL != "" {
		t.Fatalf("transient url persisted")
	}
	if v.Metadata["author"] != "admin" {
		t.Fatalf("metadata lost: %v", v.Metadata)
	}
}

func TestCurrentReturnsLatest(t *testing.T) {
	store := newTestStore(NewMemoryRepository())
	ctx := context.Background()

	if _, ok, err := store.Current(ctx); err != nil || ok {
		t.Fatalf("empty store should report absent without error, got ok=%v err=%v", ok, err)
	}

	if _, err := store.Commit(ctx, sampleSections(), nil); err != nil {
		t.Fatal(err)
	}
	updated := sampleSections()[:1]
	if _, err := store.Commit(ctx, updated, nil); err != nil {
		t.Fatal(err)
	}

	current, ok, err := store.Current(ctx)
	if err != nil || !ok {
		t.Fatalf("Current: ok=%v err=%v", ok, err)
	}
	if len(current) != 1 || current[0].ID != "a" {
		t.Fatalf("expected the latest snapshot, got %+v", current)
	}
}

func TestCommitRejectsDuplicateIDs(t *testing.T) {
	store := newTestStore(NewMemoryRepository())
	sections := []models.SOPSection{{ID: "x", Title: "one"}, {ID: "x", Title: "two"}}
	_, err := store.Commit(context.Background(), sections, nil)
	if !errors.Is(err, apperr.ErrValidationFailure) {
		t.Fatalf("expected validation failure, got %v", err)
	}

	_, err = store.Commit(context.Background(), []models.SOPSection{{Title: "no id"}}, nil)
	if !errors.Is(err, apperr.ErrValidationFailure) {
		t.Fatalf("expected validation failure for missing id, got %v", err)
	}
}

func TestCommitEmptySnapshot(t *testing.T) {
	store := newTestStore(NewMemoryRepository())
	res, err := store.Commit(context.Background(), nil, nil)
	if err != nil || !res.Created {
		t.Fatalf("empty snapshot should commit, got %+v %v", res, err)
	}
	current, ok, _ := store.Current(context.Background())
	if !ok || len(current) != 0 {
		t.Fatalf("expected an empty current snapshot, got ok=%v %v", ok, current)
	}
}

type commitCounter struct{ created, reused int }

func (c *commitCounter) RecordCommit(created bool) {
	if created {
		c.created++
	} else {
		c.reused++
	}
}

func TestCommitRecordsOutcome(t *testing.T) {
	rec := &commitCounter{}
	store := newTestStore(NewMemoryRepository(), WithRecorder(rec))
	for i := 0; i < 3; i++ {
		if _, err := store.Commit(context.Background(), sampleSections(), nil); err != nil {
			t.Fatal(err)
		}
	}
	if rec.created != 1 || rec.reused != 2 {
		t.Fatalf("unexpected counts %+v", rec)
	}
}

type failingRepo struct{ *MemoryRepository }

func (failingRepo) FindByHash(context.Context, string) (*models.Version, error) {
	return nil, errors.New("connection reset")
}

func TestCommitSurfacesStoreErrors(t *testing.T) {
	store := newTestStore(failingRepo{NewMemoryRepository()})
	if _, err := store.Commit(context.Background(), sampleSections(), nil); err == nil {
		t.Fatalf("expected lookup failure to surface")
	}
}

func TestVersionsNewestFirst(t *testing.T) {
	store := newTestStore(NewMemoryRepository())
	ctx := context.Background()
	store.Commit(ctx, sampleSections(), nil)
	store.Commit(ctx, sampleSections()[:1], nil)

	list, err := store.Versions(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].VersionID != "v2" || list[0].SectionCount != 1 {
		t.Fatalf("unexpected listing %+v", list)
	}
	if _, err := store.Version(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
