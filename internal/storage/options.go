package storage

import (
	"context"
	"fmt"

	"github.com/atinyakov/asrcollect/internal/config"
)

// FromOptions builds the store selected by o.Storage.
func FromOptions(ctx context.Context, o *config.Options) (Store, error) {
	switch o.Storage {
	case config.StorageLocal:
		return NewLocalStore(o.UploadDir)
	case config.StorageS3:
		return NewS3Store(ctx, S3Options{
			Bucket:    o.S3Bucket,
			Region:    o.S3Region,
			Endpoint:  o.S3Endpoint,
			AccessKey: o.S3AccessKey,
			SecretKey: o.S3SecretKey,
		})
	}
	return nil, fmt.Errorf("unsupported storage backend %q", o.Storage)
}
