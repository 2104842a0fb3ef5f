package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

var (
	ErrNotFound   = errors.New("object not found")
	ErrInvalidKey = errors.New("invalid storage key")
)

// Storage persists audit artifacts (checkpoints, report bundles) under slash-separated keys
type Storage interface {
	// Put stores data under key, replacing any previous object, and returns the resolved location
	Put(ctx context.Context, key string, data io.Reader) (string, error)

	// Get opens the object stored under key
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object; a missing object is not an error
	Delete(ctx context.Context, key string) error
}

// StorageType represents the storage backend type
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeS3    StorageType = "s3"
)

// StorageConfig holds configuration for storage
type StorageConfig struct {
	Type         StorageType `mapstructure:"type"`
	LocalPath    string      `mapstructure:"local_path"` // For local storage
	S3Bucket     string      `mapstructure:"s3_bucket"`  // For S3 storage
	S3Region     string      `mapstructure:"s3_region"`  // For S3 storage
	S3Prefix     string      `mapstructure:"s3_prefix"`
	AWSAccessKey string      `mapstructure:"aws_access_key_id"`
	AWSSecretKey string      `mapstructure:"aws_secret_access_key"`
}

// NewStorage creates a new storage instance based on configuration
func NewStorage(cfg StorageConfig) (Storage, error) {
	switch cfg.Type {
	case StorageTypeLocal, "":
		if cfg.LocalPath == "" {
			cfg.LocalPath = "./output"
		}
		return NewLocalStorage(cfg.LocalPath)
	case StorageTypeS3:
		if cfg.S3Bucket == "" {
			return nil, errors.New("s3 bucket is required for S3 storage")
		}
		if cfg.S3Region == "" {
			cfg.S3Region = "eu-central-1"
		}
		return NewS3Storage(cfg)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// cleanKey normalizes key and rejects keys escaping the storage root
func cleanKey(key string) (string, error) {
	key = strings.ReplaceAll(strings.TrimSpace(key), "\\", "/")
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	cleaned := path.Clean("/" + key)
	if cleaned == "/" {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return strings.TrimPrefix(cleaned, "/"), nil
}
