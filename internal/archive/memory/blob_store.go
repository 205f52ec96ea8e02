// Package memory implements an in-memory blob archive for tests.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// BlobStore keeps archived objects in a map.
type BlobStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// New creates a new in-memory blob store.
func New() *BlobStore {
	return &BlobStore{objects: make(map[string][]byte)}
}

// PutObject stores data under path and returns a mem:// URI.
func (s *BlobStore) PutObject(_ context.Context, path string, _ string, data []byte) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	s.objects[path] = buf
	return "mem://" + path, nil
}

// GetObject returns the stored bytes for a path.
func (s *BlobStore) GetObject(path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[path]
	return data, ok
}

// Len reports how many objects are stored.
func (s *BlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
