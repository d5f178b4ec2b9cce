// Package versionstore keeps immutable, content-addressed snapshots of the
// SOP knowledge base. Committing identical content twice yields one version.
package versionstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sop-assistant/internal/logger"
	"sop-assistant/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// ErrNotFound is returned by Version for an unknown id.
var ErrNotFound = errors.New("version not found")

// Repository persists versions. FindByHash and Latest return (nil, nil) when
// nothing matches.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*models.Version, error)
	Insert(ctx context.Context, v *models.Version) error
	Latest(ctx context.Context) (*models.Version, error)
	Get(ctx context.Context, versionID string) (*models.Version, error)
	List(ctx context.Context, limit int) ([]models.Version, error)
}

// Cache holds the current sections. Implementations may fail; the store
// treats every cache error as a miss.
type Cache interface {
	Get(ctx context.Context) ([]models.SOPSection, bool, error)
	Set(ctx context.Context, sections []models.SOPSection) error
}

// CommitRecorder is notified of every commit outcome.
type CommitRecorder interface {
	RecordCommit(created bool)
}

// CommitResult reports the version a commit resolved to.
type CommitResult struct {
	VersionID   string
	ContentHash string
	Created     bool
}

type Store struct {
	repo     Repository
	cache    Cache
	recorder CommitRecorder
	now      func() time.Time
	newID    func() string
}

type Option func(*Store)

func WithCache(c Cache) Option { return func(s *Store) { s.cache = c } }

func WithRecorder(r CommitRecorder) Option { return func(s *Store) { s.recorder = r } }

func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

func WithIDGenerator(gen func() string) Option { return func(s *Store) { s.newID = gen } }

func New(repo Repository, opts ...Option) *Store {
	s := &Store{
		repo:  repo,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Commit persists sections as a new version unless a version with the same
// content hash already exists, in which case that version is returned.
// Lookup and insert are not atomic: two concurrent commits of new content
// may both insert. Readers tolerate the duplicate.
func (s *Store) Commit(ctx context.Context, sections []models.SOPSection, metadata map[string]any) (CommitResult, error) {
	ctx, span := otel.Tracer("version-store").Start(ctx, "versionstore.commit")
	defer span.End()

	if err := Validate(sections); err != nil {
		return CommitResult{}, err
	}

	clean := Sanitize(sections)
	hash, err := ContentHash(clean)
	if err != nil {
		return CommitResult{}, fmt.Errorf("hash sections: %w", err)
	}
	span.SetAttributes(attribute.String("version.content_hash", hash))

	existing, err := s.repo.FindByHash(ctx, hash)
	if err != nil {
		return CommitResult{}, fmt.Errorf("find version by hash: %w", err)
	}
	if existing != nil {
		logger.Info("Content unchanged, reusing version", "version_id", existing.VersionID, "content_hash", hash)
		s.record(false)
		span.SetAttributes(attribute.Bool("version.created", false))
		return CommitResult{VersionID: existing.VersionID, ContentHash: hash}, nil
	}

	if metadata == nil {
		metadata = map[string]any{}
	}
	v := &models.Version{
		VersionID:   s.newID(),
		CreatedAt:   s.now(),
		Sections:    clean,
		ContentHash: hash,
		Metadata:    metadata,
	}
	if err := s.repo.Insert(ctx, v); err != nil {
		return CommitResult{}, fmt.Errorf("insert version: %w", err)
	}
	logger.Info("New version committed", "version_id", v.VersionID, "content_hash", hash, "sections", len(clean))
	s.record(true)
	span.SetAttributes(attribute.Bool("version.created", true))

	if s.cache != nil {
		if err := s.cache.Set(ctx, clean); err != nil {
			logger.Warn("Failed to update current-version cache", "error", err)
		}
	}
	return CommitResult{VersionID: v.VersionID, ContentHash: hash, Created: true}, nil
}

func (s *Store) record(created bool) {
	if s.recorder != nil {
		s.recorder.RecordCommit(created)
	}
}

// Current returns the sections of the most recent version. An empty store
// yields (nil, false, nil).
func (s *Store) Current(ctx context.Context) ([]models.SOPSection, bool, error) {
	if s.cache != nil {
		sections, ok, err := s.cache.Get(ctx)
		if err != nil {
			logger.Warn("Current-version cache read failed", "error", err)
		} else if ok {
			return sections, true, nil
		}
	}

	latest, err := s.repo.Latest(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("load latest version: %w", err)
	}
	if latest == nil {
		return nil, false, nil
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, latest.Sections); err != nil {
			logger.Warn("Failed to populate current-version cache", "error", err)
		}
	}
	return latest.Sections, true, nil
}

// Refresh reloads the cache from the repository.
func (s *Store) Refresh(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	latest, err := s.repo.Latest(ctx)
	if err != nil {
		return fmt.Errorf("load latest version: %w", err)
	}
	if latest == nil {
		return nil
	}
	return s.cache.Set(ctx, latest.Sections)
}

// Versions lists version summaries, newest first.
func (s *Store) Versions(ctx context.Context, limit int) ([]models.VersionSummary, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	versions, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	out := make([]models.VersionSummary, 0, len(versions))
	for _, v := range versions {
		out = append(out, v.Summary())
	}
	return out, nil
}

// Version returns one version by id or ErrNotFound.
func (s *Store) Version(ctx context.Context, versionID string) (*models.Version, error) {
	v, err := s.repo.Get(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrNotFound
	}
	return v, nil
}
