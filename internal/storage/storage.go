package storage

import (
	"context"
	"fmt"

	"github.com/hackclub/mediadrop/internal/config"
)

// New builds the client selected by cfg.StorageDriver.
func New(ctx context.Context, cfg *config.Config) (Client, error) {
	switch cfg.StorageDriver {
	case config.DriverS3:
		return NewS3Client(ctx, S3Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PublicBaseURL:   cfg.PublicBaseURL,
			UsePathStyle:    cfg.S3UsePathStyle,
		})
	case config.DriverLocal:
		return NewLocalClient(cfg.LocalStorageDir, cfg.PublicBaseURL)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}
