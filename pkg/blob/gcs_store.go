//go:build gcp

package blob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
)

// GCSStore implements Store using Google Cloud Storage.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string // Optional key prefix (e.g., "evidence/")
	expiry time.Duration
}

// GCSStoreConfig holds configuration for GCSStore.
type GCSStoreConfig struct {
	Bucket    string
	Prefix    string        // Optional key prefix
	URLExpiry time.Duration // Signed download URL lifetime; default 15m
}

// NewGCSStore creates a new GCS-backed blob store.
func NewGCSStore(ctx context.Context, cfg GCSStoreConfig) (*GCSStore, error) {
	// Create GCS client (uses ADC by default)
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}

	return &GCSStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		expiry: expiry,
	}, nil
}

// Put uploads data to GCS at the given path.
func (s *GCSStore) Put(ctx context.Context, path string, data []byte, contentType string) error {
	if err := validatePath(path); err != nil {
		return err
	}
	objectPath := s.prefix + path

	// 1. Check if object already exists: submission paths are unique, so an
	// existing object means a path-construction bug, not a retry.
	obj := s.client.Bucket(s.bucket).Object(objectPath)
	if _, err := obj.Attrs(ctx); err == nil {
		return fmt.Errorf("blob already exists at %s", path)
	} else if !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("gcs attrs error: %w", err)
	}

	// 2. Upload object
	w := obj.NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs close failed: %w", err)
	}
	return nil
}

// ResolveDownloadURL returns a signed GET URL for the blob at path.
func (s *GCSStore) ResolveDownloadURL(ctx context.Context, path string) (string, error) {
	if err := validatePath(path); err != nil {
		return "", err
	}
	objectPath := s.prefix + path
	url, err := s.client.Bucket(s.bucket).SignedURL(objectPath, &storage.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(s.expiry),
	})
	if err != nil {
		return "", fmt.Errorf("gcs sign failed for %s: %w", path, err)
	}
	return url, nil
}

// Close closes the GCS client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
