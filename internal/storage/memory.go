package storage

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"
)

// MemoryStore is an in-process ObjectStore for tests and local runs without
// object storage. Temporary URLs point at BaseURL.
type MemoryStore struct {
	BaseURL string

	mu      sync.RWMutex
	objects map[string][]byte
	types   map[string]string
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		BaseURL: baseURL,
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

func (m *MemoryStore) Upload(_ context.Context, data []byte, mimeType string) (string, error) {
	key := ObjectKey(mimeType)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	m.types[key] = mimeType
	return key, nil
}

func (m *MemoryStore) TemporaryURL(_ context.Context, path string, ttl time.Duration) (string, error) {
	m.mu.RLock()
	_, ok := m.objects[path]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("object %s not found", path)
	}
	q := url.Values{}
	q.Set("expires", fmt.Sprintf("%d", int(ttl.Seconds())))
	return fmt.Sprintf("%s/%s?%s", m.BaseURL, path, q.Encode()), nil
}

func (m *MemoryStore) Download(_ context.Context, path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[path]
	if !ok {
		return nil, fmt.Errorf("object %s not found", path)
	}
	return append([]byte(nil), data...), nil
}

// ContentType returns the MIME type an object was uploaded with.
func (m *MemoryStore) ContentType(path string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.types[path]
}
