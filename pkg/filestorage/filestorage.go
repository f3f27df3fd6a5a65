// Package filestorage stores export artifacts on the local disk or in an S3
// compatible bucket.
package filestorage

import (
	"context"
	"io"
)

// Storage defines the interface for file storage operations.
type Storage interface {
	// Save stores the content from the reader and returns a path/URI to the stored file.
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	// Open returns the content of a stored file.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// GetURL returns a URL or path to access the file.
	GetURL(ctx context.Context, name string) (string, error)
	// Delete removes the file from storage.
	Delete(ctx context.Context, name string) error
	// Type returns the storage type (local, s3).
	Type() string
}

// S3Config holds the bucket settings of the s3 backend.
type S3Config struct {
	Endpoint        string `yaml:"endpoint" json:"endpoint"`
	Region          string `yaml:"region" json:"region"`
	Bucket          string `yaml:"bucket" json:"bucket"`
	Prefix          string `yaml:"prefix" json:"prefix"`
	AccessKeyID     string `yaml:"access_key_id" json:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" json:"secret_access_key"`
}

// Config selects and configures a backend.
type Config struct {
	Type     string   `yaml:"type" json:"type"`
	LocalDir string   `yaml:"local_dir" json:"local_dir"`
	S3       S3Config `yaml:"s3" json:"s3"`
}
