package filestorage

import (
	"context"
	"fmt"
)

// DefaultLocalDir is used by the local backend when no directory is set.
const DefaultLocalDir = "exports"

func NewStorage(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Type {
	case "s3":
		if cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("s3 storage requires a bucket")
		}
		return NewS3Storage(ctx, cfg.S3)
	case "local", "":
		dir := cfg.LocalDir
		if dir == "" {
			dir = DefaultLocalDir
		}
		return NewLocalStorage(dir)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
