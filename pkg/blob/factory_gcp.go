//go:build gcp

package blob

import (
	"context"
)

func newGCSStore(ctx context.Context, cfg Config) (Store, error) {
	return NewGCSStore(ctx, GCSStoreConfig{
		Bucket: cfg.Bucket,
		Prefix: cfg.Prefix,
	})
}
