package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// StoreType represents the type of blob storage backend.
type StoreType string

const (
	StoreTypeFS  StoreType = "fs"
	StoreTypeS3  StoreType = "s3"
	StoreTypeGCS StoreType = "gcs"
)

// Config selects and configures a blob storage backend.
type Config struct {
	Type     StoreType
	DataDir  string // fs: base directory (default "data")
	Bucket   string // s3/gcs: required
	Region   string // s3: default "us-east-1"
	Endpoint string // s3: optional, for MinIO/LocalStack
	Prefix   string // s3/gcs: optional key prefix
}

// NewStore creates a blob store from cfg. An empty Type selects the
// filesystem backend.
func NewStore(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Type {
	case "", StoreTypeFS:
		dataDir := cfg.DataDir
		if dataDir == "" {
			dataDir = "data"
		}
		return NewFileStore(filepath.Join(dataDir, "blobs"))
	case StoreTypeS3:
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("bucket is required for S3 storage")
		}
		region := cfg.Region
		if region == "" {
			region = "us-east-1"
		}
		return NewS3Store(ctx, S3StoreConfig{
			Bucket:   cfg.Bucket,
			Region:   region,
			Endpoint: cfg.Endpoint,
			Prefix:   cfg.Prefix,
		})
	case StoreTypeGCS:
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("bucket is required for GCS storage")
		}
		return newGCSStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported blob storage type: %s", cfg.Type)
	}
}

// NewStoreFromEnv creates a blob store based on environment variables.
//
// Environment variables:
//   - BLOB_STORAGE_TYPE: "fs" (default), "s3", or "gcs"
//   - DATA_DIR: Base directory for filesystem store (default: "data")
//
// For S3:
//   - AWS_REGION or BLOB_S3_REGION
//   - BLOB_S3_BUCKET (required)
//   - BLOB_S3_ENDPOINT (optional, for MinIO/LocalStack)
//   - BLOB_S3_PREFIX (optional)
//
// For GCS:
//   - BLOB_GCS_BUCKET (required)
//   - BLOB_GCS_PREFIX (optional)
func NewStoreFromEnv(ctx context.Context) (Store, error) {
	cfg := Config{
		Type:    StoreType(os.Getenv("BLOB_STORAGE_TYPE")),
		DataDir: os.Getenv("DATA_DIR"),
	}

	switch cfg.Type {
	case StoreTypeS3:
		cfg.Bucket = os.Getenv("BLOB_S3_BUCKET")
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("BLOB_S3_BUCKET is required for S3 storage")
		}
		cfg.Region = os.Getenv("BLOB_S3_REGION")
		if cfg.Region == "" {
			cfg.Region = os.Getenv("AWS_REGION")
		}
		cfg.Endpoint = os.Getenv("BLOB_S3_ENDPOINT")
		cfg.Prefix = os.Getenv("BLOB_S3_PREFIX")
	case StoreTypeGCS:
		cfg.Bucket = os.Getenv("BLOB_GCS_BUCKET")
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("BLOB_GCS_BUCKET is required for GCS storage")
		}
		cfg.Prefix = os.Getenv("BLOB_GCS_PREFIX")
	}

	return NewStore(ctx, cfg)
}
