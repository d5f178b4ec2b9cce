package versionstore

import (
	"context"
	"sort"
	"sync"

	"sop-assistant/models"
)

// MemoryRepository keeps versions in process. Equal timestamps order by
// insertion, later first. Used by tests and by
// VERSION_STORE_BACKEND=memory for local runs.
type MemoryRepository struct {
	mu       sync.RWMutex
	versions []models.Version
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) FindByHash(_ context.Context, hash string) (*models.Version, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.versions {
		if r.versions[i].ContentHash == hash {
			v := r.versions[i]
			return &v, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) Insert(_ context.Context, v *models.Version) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.versions = append(r.versions, *v)
	return nil
}

func (r *MemoryRepository) Latest(_ context.Context) (*models.Version, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest *models.Version
	for i := range r.versions {
		if latest == nil || !r.versions[i].CreatedAt.Before(latest.CreatedAt) {
			latest = &r.versions[i]
		}
	}
	if latest == nil {
		return nil, nil
	}
	v := *latest
	return &v, nil
}

func (r *MemoryRepository) Get(_ context.Context, versionID string) (*models.Version, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.versions {
		if r.versions[i].VersionID == versionID {
			v := r.versions[i]
			return &v, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) List(_ context.Context, limit int) ([]models.Version, error) {
	r.mu.RLock()
	out := make([]models.Version, 0, len(r.versions))
	for i := len(r.versions) - 1; i >= 0; i-- {
		out = append(out, r.versions[i])
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len reports how many versions are stored.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.versions)
}
