// Package storage defines the object storage sink uploads are written to.
// Both implementations speak the S3 protocol (MinIO, Cloudflare R2, AWS S3);
// swap them by changing STORAGE_DRIVER.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/nicevod/service/internal/metrics"
)

// Storage is the interface for writing and removing objects.
type Storage interface {
	// Upload streams data to the store under the given key.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	// Delete removes an object identified by key.
	Delete(ctx context.Context, key string) error
}

// Config holds connection settings shared by the drivers.
type Config struct {
	Driver    string // "minio" or "s3"
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	// PublicRead applies an anonymous-read bucket policy at startup (MinIO only).
	PublicRead bool
}

// New creates the driver selected by cfg.Driver, wrapped with metrics.
func New(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Driver {
	case "", "minio":
		s, err := NewMinioStorage(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return Instrument(s, "minio"), nil
	case "s3":
		s, err := NewS3Storage(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return Instrument(s, "s3"), nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Driver)
	}
}

type instrumented struct {
	next    Storage
	backend string
}

// Instrument wraps s so every call is timed and counted under backend.
func Instrument(s Storage, backend string) Storage {
	return &instrumented{next: s, backend: backend}
}

func (i *instrumented) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	start := time.Now()
	err := i.next.Upload(ctx, key, reader, size, contentType)
	metrics.RecordStorageOperation(i.backend, "upload", err, time.Since(start))
	return err
}

func (i *instrumented) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := i.next.Delete(ctx, key)
	metrics.RecordStorageOperation(i.backend, "delete", err, time.Since(start))
	return err
}
