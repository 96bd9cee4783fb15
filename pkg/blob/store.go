// Package blob provides the evidence blob store: a narrow write-and-resolve
// interface over filesystem, S3-compatible, or GCS backends.
//
// Workflows only ever Put a new object at a unique path and later resolve a
// download URL for rendering. There is no delete: orphaned blobs from failed
// registrations are an accepted tradeoff.
package blob

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store is the contract for evidence blob storage.
type Store interface {
	// Put durably stores data at path. Paths are unique per submission, so a
	// pre-existing object at path is an error, never an overwrite.
	Put(ctx context.Context, path string, data []byte, contentType string) error
	// ResolveDownloadURL returns a URL from which the blob at path can be
	// fetched. Resolution is lazy; the URL is not part of the favour record.
	ResolveDownloadURL(ctx context.Context, path string) (string, error)
}

// FileStore is a filesystem-backed implementation of Store, used for local
// development and the default server deployment.
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFileStore creates a blob store rooted at baseDir.
func NewFileStore(baseDir string) (*FileStore, error) {
	//nolint:gosec // G301: 0755 is intentional for a shared blob directory
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to ensure blob dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) Put(ctx context.Context, path string, data []byte, contentType string) error {
	if err := validatePath(path); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	full := filepath.Join(s.baseDir, filepath.FromSlash(path))
	if _, err := os.Stat(full); err == nil {
		return fmt.Errorf("blob already exists at %s", path)
	}
	//nolint:gosec // G301: directory layout mirrors the path namespace
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("failed to ensure blob subdir: %w", err)
	}

	// Write to temp, then rename, so readers never observe a partial blob.
	tmp := full + ".tmp"
	//nolint:gosec // G306: 0644 is intentional for readable blob files
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write blob: %w", err)
	}
	if err := os.Rename(tmp, full); err != nil {
		return fmt.Errorf("failed to commit blob: %w", err)
	}
	return nil
}

func (s *FileStore) ResolveDownloadURL(ctx context.Context, path string) (string, error) {
	if err := validatePath(path); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	full := filepath.Join(s.baseDir, filepath.FromSlash(path))
	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("blob not found: %s", path)
		}
		return "", fmt.Errorf("failed to stat blob: %w", err)
	}
	abs, err := filepath.Abs(full)
	if err != nil {
		return "", fmt.Errorf("failed to resolve blob path: %w", err)
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String(), nil
}

// validatePath rejects traversal and absolute paths before they reach any
// backend.
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("blob path must not be empty")
	}
	if strings.HasPrefix(path, "/") || strings.Contains(path, "..") {
		return fmt.Errorf("invalid blob path: %s", path)
	}
	return nil
}
