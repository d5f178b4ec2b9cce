package services

import (
	"context"
	"fmt"

	"sop-assistant/internal/apperr"
	"sop-assistant/internal/versionstore"
	"sop-assistant/models"

	"github.com/google/uuid"
)

// SOPStore is the version store surface the services use.
// *versionstore.Store satisfies it.
type SOPStore interface {
	Commit(ctx context.Context, sections []models.SOPSection, metadata map[string]any) (versionstore.CommitResult, error)
	Current(ctx context.Context) ([]models.SOPSection, bool, error)
}

// KnowledgeBase joins the version store with image storage: writes are
// ingested before commit and reads are hydrated with temporary URLs.
type KnowledgeBase struct {
	store  SOPStore
	images *ImageResolver
	newID  func() string
}

func NewKnowledgeBase(store SOPStore, images *ImageResolver) *KnowledgeBase {
	return &KnowledgeBase{
		store:  store,
		images: images,
		newID:  func() string { return uuid.New().String() },
	}
}

// Snapshot returns the current sections without URLs. An empty store
// yields an empty, non-nil slice.
func (k *KnowledgeBase) Snapshot(ctx context.Context) ([]models.SOPSection, error) {
	sections, ok, err := k.store.Current(ctx)
	if err != nil {
		return nil, err
	}
	if !ok || sections == nil {
		return []models.SOPSection{}, nil
	}
	return sections, nil
}

// Current returns the hydrated current snapshot.
func (k *KnowledgeBase) Current(ctx context.Context) ([]models.SOPSection, error) {
	sections, err := k.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return k.images.Hydrate(ctx, sections)
}

// Commit replaces the snapshot wholesale.
func (k *KnowledgeBase) Commit(ctx context.Context, sections []models.SOPSection, metadata map[string]any) (versionstore.CommitResult, error) {
	ingested, err := k.images.Ingest(ctx, sections)
	if err != nil {
		return versionstore.CommitResult{}, err
	}
	return k.store.Commit(ctx, ingested, metadata)
}

// ConfirmDraft appends the selected pending sections to the current
// snapshot and commits the result.
func (k *KnowledgeBase) ConfirmDraft(ctx context.Context, pending []models.PendingSOPSection, metadata map[string]any) (versionstore.CommitResult, error) {
	promoted := PromoteSelected(pending, k.newID)
	if len(promoted) == 0 {
		return versionstore.CommitResult{}, apperr.Validation("請至少選取一個區段進行核可。", nil)
	}

	current, err := k.Snapshot(ctx)
	if err != nil {
		return versionstore.CommitResult{}, fmt.Errorf("load current snapshot: %w", err)
	}

	next := make([]models.SOPSection, 0, len(current)+len(promoted))
	next = append(next, current...)
	next = append(next, promoted...)

	if metadata == nil {
		metadata = map[string]any{}
	}
	if _, ok := metadata["source"]; !ok {
		metadata["source"] = "draft"
	}
	return k.Commit(ctx, next, metadata)
}

// PromoteSelected converts selected pending sections into SOP sections with
// fresh ids.
func PromoteSelected(pending []models.PendingSOPSection, newID func() string) []models.SOPSection {
	var out []models.SOPSection
	for _, p := range pending {
		if !p.Selected {
			continue
		}
		images := p.Images
		if images == nil {
			images = []models.SOPImage{}
		}
		out = append(out, models.SOPSection{
			ID:      newID(),
			Title:   p.Title,
			Content: p.Content,
			Images:  images,
		})
	}
	return out
}
