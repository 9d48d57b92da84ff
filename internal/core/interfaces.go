package core

import (
	"context"
	"io"
	"time"

	"github.com/linguavox/linguavox/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// These interfaces define the contracts between the service layer and data layer.
// Service implementations should depend on these interfaces, not concrete implementations.

// CreateUploadParams groups parameters for UploadRepository.Create to keep param count ≤3.
type CreateUploadParams struct {
	ID          string
	AudioKey    string
	FileName    string
	ContentType string
	SizeBytes   int64
}

// ClaimParams groups parameters for UploadRepository.ClaimNext.
type ClaimParams struct {
	ClaimedBy    string
	ClaimSeconds int
}

// UploadRepository defines the interface for upload data operations.
type UploadRepository interface {
	Create(ctx context.Context, params CreateUploadParams) (*model.Upload, error)
	GetByID(ctx context.Context, id string) (*model.Upload, error)

	// ClaimNext atomically flips the oldest pending upload to claimed and
	// returns it. Returns model.ErrNoUploadsAvailable when nothing is pending.
	ClaimNext(ctx context.Context, params ClaimParams) (*model.Upload, error)

	// RequeueStale returns claimed uploads whose claim expiry has passed to
	// pending, clearing the claim fields. Returns the number requeued.
	RequeueStale(ctx context.Context) (int64, error)

	// Complete records a detection result on a claimed upload. Returns false
	// when the upload is not in the claimed state.
	Complete(ctx context.Context, id string, result *model.DetectionResult) (bool, error)

	// Fail records a terminal error on a claimed upload. Returns false when
	// the upload is not in the claimed state.
	Fail(ctx context.Context, id string, uerr *model.UploadError) (bool, error)

	Stats(ctx context.Context) (*model.UploadStats, error)
}

// PutBlobParams groups parameters for BlobStore.Put.
type PutBlobParams struct {
	Key         string
	ContentType string
	SizeBytes   int64
	FileName    string
}

// BlobStore defines the interface for audio object storage.
type BlobStore interface {
	Put(ctx context.Context, r io.Reader, params PutBlobParams) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Detector defines the interface for spoken-language detection backends.
type Detector interface {
	// Detect identifies the language of the given audio and, when the
	// backend supports it, returns a transcript.
	Detect(ctx context.Context, audio io.Reader, fileName string) (*model.DetectionResult, error)
}

// CacheRepository defines the interface for the terminal status cache.
// Only terminal statuses are cached; they are immutable once written.
type CacheRepository interface {
	GetStatus(ctx context.Context, id string) (*model.UploadStatusResponse, error)
	SetStatus(ctx context.Context, resp *model.UploadStatusResponse, ttl time.Duration) error
}

// IngestParams groups parameters for UploadService.Ingest.
type IngestParams struct {
	Request model.IngestRequest
	Data    io.Reader
}

// UploadService defines the business operations exposed over HTTP and to workers.
type UploadService interface {
	Ingest(ctx context.Context, params IngestParams) (*model.Upload, error)
	Status(ctx context.Context, id string) (*model.UploadStatusResponse, error)
	Stats(ctx context.Context) (*model.UploadStats, error)

	ClaimNext(ctx context.Context, claimedBy string) (*model.Upload, error)
	RequeueStale(ctx context.Context) (int64, error)
	Complete(ctx context.Context, id string, result *model.DetectionResult) error
	Fail(ctx context.Context, id string, uerr *model.UploadError) error
}
