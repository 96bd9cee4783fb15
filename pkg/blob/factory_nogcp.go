//go:build !gcp

package blob

import (
	"context"
	"fmt"
)

func newGCSStore(ctx context.Context, cfg Config) (Store, error) {
	return nil, fmt.Errorf("GCS storage is not enabled in this build (use -tags gcp)")
}
