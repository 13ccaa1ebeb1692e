// Package assets stores uploaded binaries (videos, thumbnails, avatars) outside the document
// store and cleans them up in the background.
package assets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/metrics"
	"github.com/vidtube/backend/internal/models"
)

var (
	// ErrUnavailable indicates the asset store is not configured or is refusing calls.
	ErrUnavailable = errors.New("asset store unavailable")
	// ErrNotFound is returned when deleting an unknown asset id.
	ErrNotFound = errors.New("asset not found")
)

// Store uploads local files and deletes stored assets by id.
type Store interface {
	Upload(ctx context.Context, localPath string) (models.Asset, error)
	Delete(ctx context.Context, assetID string) error
}

// objectKey derives a unique key that keeps the file extension of localPath.
func objectKey(localPath string) string {
	ext := strings.ToLower(filepath.Ext(localPath))
	return uuid.NewString() + ext
}

// MemoryStore keeps asset ids in memory. It is used by the memory store driver and tests.
type MemoryStore struct {
	mu      sync.Mutex
	baseURL string
	objects map[string]int64
}

// NewMemoryStore returns an empty in-memory asset store serving URLs under baseURL.
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{baseURL: strings.TrimSuffix(baseURL, "/"), objects: make(map[string]int64)}
}

func (m *MemoryStore) Upload(ctx context.Context, localPath string) (models.Asset, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		metrics.AssetOperations.WithLabelValues("upload", "error").Inc()
		return models.Asset{}, fmt.Errorf("memory assets: stat %s: %w", localPath, err)
	}
	key := objectKey(localPath)

	m.mu.Lock()
	m.objects[key] = info.Size()
	m.mu.Unlock()

	metrics.AssetOperations.WithLabelValues("upload", "ok").Inc()
	return models.Asset{URL: m.baseURL + "/" + key, AssetID: key}, nil
}

func (m *MemoryStore) Delete(ctx context.Context, assetID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.objects[assetID]; !ok {
		metrics.AssetOperations.WithLabelValues("delete", "error").Inc()
		return fmt.Errorf("memory assets: %s: %w", assetID, ErrNotFound)
	}
	delete(m.objects, assetID)
	metrics.AssetOperations.WithLabelValues("delete", "ok").Inc()
	return nil
}

// Has reports whether assetID is stored.
func (m *MemoryStore) Has(assetID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[assetID]
	return ok
}

// Len returns the number of stored assets.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

var _ Store = (*MemoryStore)(nil)
