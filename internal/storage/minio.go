// Package storage provides the MinIO-backed audio blob store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/linguavox/linguavox/config"
	"github.com/linguavox/linguavox/internal/core"
)

// ErrBlobNotFound is returned when the requested object does not exist.
var ErrBlobNotFound = errors.New("blob not found")

// MinioBlobStore implements core.BlobStore using MinIO.
type MinioBlobStore struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

// MinioOptions holds dependencies for constructing a MinioBlobStore.
type MinioOptions struct {
	Config config.BlobConfig
	Logger *slog.Logger
}

// NewMinioBlobStore creates a MinIO-backed blob store and ensures the
// configured bucket exists.
func NewMinioBlobStore(ctx context.Context, opts MinioOptions) (*MinioBlobStore, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}

	client, err := minio.New(opts.Config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.Config.AccessKey, opts.Config.SecretKey, ""),
		Secure: opts.Config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Config.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Config.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", opts.Config.Bucket, err)
		}
	}

	return &MinioBlobStore{
		client: client,
		bucket: opts.Config.Bucket,
		logger: opts.Logger.With("component", "blob_store"),
	}, nil
}

// Put stores audio bytes under the given key.
func (s *MinioBlobStore) Put(ctx context.Context, r io.Reader, params core.PutBlobParams) error {
	contentType := params.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, s.bucket, params.Key, r, params.SizeBytes, minio.PutObjectOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			"original-name": params.FileName,
			"uploaded-at":   time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", params.Key, err)
	}

	s.logger.DebugContext(ctx, "stored audio blob",
		"key", params.Key,
		"size_bytes", params.SizeBytes,
	)
	return nil
}

// Get opens the object stored under key. The caller must close the reader.
func (s *MinioBlobStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}

	// GetObject is lazy; Stat forces the first request so missing objects
	// surface here rather than on first read.
	if _, statErr := obj.Stat(); statErr != nil {
		_ = obj.Close()
		errResp := minio.ToErrorResponse(statErr)
		if errResp.Code == "NoSuchKey" {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("stat object %s: %w", key, statErr)
	}

	return obj, nil
}

// Delete removes the object stored under key.
func (s *MinioBlobStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}
