package blob

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Store implements Store using AWS S3 or an S3-compatible backend
// (MinIO, LocalStack).
type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	prefix  string // Optional key prefix (e.g., "evidence/")
	expiry  time.Duration
}

// S3StoreConfig holds configuration for S3Store.
type S3StoreConfig struct {
	Bucket    string
	Region    string
	Endpoint  string        // Optional custom endpoint (for MinIO, LocalStack, etc.)
	Prefix    string        // Optional key prefix
	URLExpiry time.Duration // Presigned download URL lifetime; default 15m
}

// NewS3Store creates a new S3-backed blob store.
func NewS3Store(ctx context.Context, cfg S3StoreConfig) (*S3Store, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Create S3 client with optional custom endpoint
	clientOpts := func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // Required for MinIO/LocalStack
		}
	}
	client := s3.NewFromConfig(awsCfg, clientOpts)

	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}

	return &S3Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		expiry:  expiry,
	}, nil
}

// Put uploads data to S3 at the given path.
func (s *S3Store) Put(ctx context.Context, path string, data []byte, contentType string) error {
	if err := validatePath(path); err != nil {
		return err
	}
	key := s.prefix + path

	// 1. Emulate create-only via Head first: submission paths are unique, so
	// an existing object means a path-construction bug, not a retry.
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return fmt.Errorf("blob already exists at %s", path)
	}

	// 2. Upload object
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3 put failed: %w", err)
	}
	return nil
}

// ResolveDownloadURL returns a presigned GET URL for the blob at path.
func (s *S3Store) ResolveDownloadURL(ctx context.Context, path string) (string, error) {
	if err := validatePath(path); err != nil {
		return "", err
	}
	key := s.prefix + path
	out, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(po *s3.PresignOptions) { po.Expires = s.expiry })
	if err != nil {
		return "", fmt.Errorf("s3 presign failed for %s: %w", path, err)
	}
	return out.URL, nil
}
