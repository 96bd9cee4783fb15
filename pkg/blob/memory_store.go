package blob

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-memory Store for tests.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]memoryBlob
}

type memoryBlob struct {
	data        []byte
	contentType string
}

// NewMemoryStore creates an empty in-memory blob store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string]memoryBlob)}
}

func (s *MemoryStore) Put(ctx context.Context, path string, data []byte, contentType string) error {
	if err := validatePath(path); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.blobs[path]; exists {
		return fmt.Errorf("blob already exists at %s", path)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.blobs[path] = memoryBlob{data: cp, contentType: contentType}
	return nil
}

func (s *MemoryStore) ResolveDownloadURL(ctx context.Context, path string) (string, error) {
	if err := validatePath(path); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, exists := s.blobs[path]; !exists {
		return "", fmt.Errorf("blob not found: %s", path)
	}
	return "memory://" + path, nil
}

// Get returns the stored bytes for path, for test assertions.
func (s *MemoryStore) Get(path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[path]
	if !ok {
		return nil, false
	}
	return b.data, true
}

// Len reports the number of stored blobs, for test assertions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
