package versionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sop-assistant/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores versions in a single table with JSONB bodies.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository connects and pings the database.
func NewPostgresRepository(ctx context.Context, connStr string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}

// Initialize creates the versions table and its indexes.
func (r *PostgresRepository) Initialize(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS sop_versions (
			version_id TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			content_hash TEXT NOT NULL,
			sections JSONB NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create sop_versions table: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS sop_versions_content_hash_idx ON sop_versions (content_hash);
		CREATE INDEX IF NOT EXISTS sop_versions_created_at_idx ON sop_versions (created_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("failed to create sop_versions indices: %w", err)
	}
	return nil
}

const selectVersion = `SELECT version_id, created_at, content_hash, sections, metadata FROM sop_versions`

func scanVersion(row pgx.Row) (*models.Version, error) {
	var (
		v        models.Version
		sections []byte
		metadata []byte
	)
	if err := row.Scan(&v.VersionID, &v.CreatedAt, &v.ContentHash, &sections, &metadata); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(sections, &v.Sections); err != nil {
		return nil, fmt.Errorf("decode sections of %s: %w", v.VersionID, err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &v.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of %s: %w", v.VersionID, err)
		}
	}
	return &v, nil
}

func (r *PostgresRepository) queryOne(ctx context.Context, sql string, args ...any) (*models.Version, error) {
	v, err := scanVersion(r.pool.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

func (r *PostgresRepository) FindByHash(ctx context.Context, hash string) (*models.Version, error) {
	return r.queryOne(ctx, selectVersion+` WHERE content_hash = $1 ORDER BY created_at LIMIT 1`, hash)
}

func (r *PostgresRepository) Insert(ctx context.Context, v *models.Version) error {
	sections, err := json.Marshal(v.Sections)
	if err != nil {
		return fmt.Errorf("encode sections: %w", err)
	}
	metadata, err := json.Marshal(v.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO sop_versions (version_id, created_at, content_hash, sections, metadata) VALUES ($1, $2, $3, $4, $5)`,
		v.VersionID, v.CreatedAt.UTC().Truncate(time.Microsecond), v.ContentHash, sections, metadata)
	return err
}

func (r *PostgresRepository) Latest(ctx context.Context) (*models.Version, error) {
	return r.queryOne(ctx, selectVersion+` ORDER BY created_at DESC LIMIT 1`)
}

func (r *PostgresRepository) Get(ctx context.Context, versionID string) (*models.Version, error) {
	return r.queryOne(ctx, selectVersion+` WHERE version_id = $1`, versionID)
}

func (r *PostgresRepository) List(ctx context.Context, limit int) ([]models.Version, error) {
	rows, err := r.pool.Query(ctx, selectVersion+` ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []models.Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, *v)
	}
	return versions, rows.Err()
}
