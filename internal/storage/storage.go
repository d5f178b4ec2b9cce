// Package storage wraps the object store that holds uploaded documents and
// SOP images.
package storage

import (
	"context"
	"time"
)

// ObjectStore persists binary objects and hands out time-limited read URLs.
type ObjectStore interface {
	// Upload stores data under a fresh key and returns that key.
	Upload(ctx context.Context, data []byte, mimeType string) (string, error)
	// TemporaryURL returns a signed read URL for path valid for ttl.
	TemporaryURL(ctx context.Context, path string, ttl time.Duration) (string, error)
	Download(ctx context.Context, path string) ([]byte, error)
}
