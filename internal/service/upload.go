package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/linguavox/linguavox/internal/core"
	"github.com/linguavox/linguavox/internal/data"
	"github.com/linguavox/linguavox/internal/domain/model"
	domainupload "github.com/linguavox/linguavox/internal/domain/upload"
)

// ErrUploadNotFound is returned when a status query names an unknown upload.
var ErrUploadNotFound = errors.New("upload not found")

// UploadServiceOptions groups dependencies for UploadService.
type UploadServiceOptions struct {
	Repo            core.UploadRepository      // Required: upload repository
	Blobs           core.BlobStore             // Required: audio blob store
	DefaultClaimTTL time.Duration              // Required: default claim TTL for workers
	MaxUploadBytes  int64                      // Required: ingestion byte cap
	Cache           core.CacheRepository       // Optional: terminal status cache
	CacheTTL        time.Duration              // Optional: cache entry TTL
	Logger          *slog.Logger               // Optional: structured logger
	ClaimPolicy     *domainupload.ClaimPolicy  // Optional: override default claim policy
}

// UploadService provides business logic for the upload pipeline.
//
// This service manages:
// - Recording ingestion (blob write plus durable pending row, atomically observable)
// - Status queries with a read-through terminal cache
// - Worker-side claim, requeue, and terminal-write operations.
type UploadService struct {
	repo           core.UploadRepository
	blobs          core.BlobStore
	cache          core.CacheRepository
	cacheTTL       time.Duration
	claimPolicy    *domainupload.ClaimPolicy
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewUploadService constructs a new UploadService.
func NewUploadService(opts UploadServiceOptions) (*UploadService, error) {
	if opts.Repo == nil {
		return nil, errors.New("UploadRepository is required")
	}
	if opts.Blobs == nil {
		return nil, errors.New("BlobStore is required")
	}
	if opts.MaxUploadBytes <= 0 {
		return nil, errors.New("MaxUploadBytes must be positive")
	}

	var claimPolicy *domainupload.ClaimPolicy
	switch {
	case opts.ClaimPolicy != nil:
		claimPolicy = opts.ClaimPolicy
	case opts.DefaultClaimTTL > 0:
		var err error
		claimPolicy, err = domainupload.NewClaimPolicy(opts.DefaultClaimTTL)
		if err != nil {
			return nil, fmt.Errorf("create claim policy: %w", err)
		}
	default:
		return nil, errors.New("DefaultClaimTTL must be positive")
	}

	cacheTTL := opts.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 24 * time.Hour
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "upload_service")
		logger.Debug("UploadService initialized",
			"default_claim_ttl", claimPolicy.Default(),
			"max_upload_bytes", opts.MaxUploadBytes,
		)
	}

	return &UploadService{
		repo:           opts.Repo,
		blobs:          opts.Blobs,
		cache:          opts.Cache,
		cacheTTL:       cacheTTL,
		claimPolicy:    claimPolicy,
		maxUploadBytes: opts.MaxUploadBytes,
		logger:         logger,
	}, nil
}

// MustNewUploadService constructs a new UploadService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewUploadService(opts UploadServiceOptions) *UploadService {
	svc, err := NewUploadService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create UploadService: %v", err))
	}
	return svc
}

// ValidationError marks ingestion failures caused by the submitted payload.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Ingest validates a submitted recording, stores the bytes, and inserts a
// pending upload row. On a row-insert failure the stored blob is removed so
// the submission leaves no partial state.
func (s *UploadService) Ingest(ctx context.Context, params core.IngestParams) (*model.Upload, error) {
	if params.Data == nil {
		return nil, &ValidationError{Reason: "audio data is required"}
	}
	if err := params.Request.Validate(s.maxUploadBytes); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}

	id := uuid.NewString()
	audioKey := "audio/" + id

	putParams := core.PutBlobParams{
		Key:         audioKey,
		ContentType: params.Request.ResolvedContentType(),
		SizeBytes:   params.Request.SizeBytes,
		FileName:    params.Request.FileName,
	}
	if err := s.blobs.Put(ctx, params.Data, putParams); err != nil {
		return nil, fmt.Errorf("store audio: %w", err)
	}

	upload, err := s.repo.Create(ctx, core.CreateUploadParams{
		ID:          id,
		AudioKey:    audioKey,
		FileName:    params.Request.FileName,
		ContentType: putParams.ContentType,
		SizeBytes:   params.Request.SizeBytes,
	})
	if err != nil {
		if delErr := s.blobs.Delete(ctx, audioKey); delErr != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "orphaned audio blob after failed insert",
				"audio_key", audioKey,
				"error", delErr,
			)
		}
		return nil, fmt.Errorf("create upload: %w", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "upload ingested",
			"id", upload.ID,
			"file_name", upload.FileName,
			"size_bytes", upload.SizeBytes,
		)
	}

	return upload, nil
}

// Status returns the externally observable state of an upload. Terminal
// responses are served from and written to the cache; cache failures fall
// back to the database.
func (s *UploadService) Status(ctx context.Context, id string) (*model.UploadStatusResponse, error) {
	if id == "" {
		return nil, ErrUploadNotFound
	}

	if s.cache != nil {
		cached, err := s.cache.GetStatus(ctx, id)
		if err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "status cache read failed", "id", id, "error", err)
		}
		if cached != nil {
			return cached, nil
		}
	}

	upload, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, data.ErrUploadNotFound) {
		return nil, ErrUploadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get upload %s: %w", id, err)
	}

	resp := model.StatusResponseFor(upload)
	if s.cache != nil && upload.Status.Terminal() {
		if err := s.cache.SetStatus(ctx, &resp, s.cacheTTL); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "status cache write failed", "id", id, "error", err)
		}
	}
	return &resp, nil
}

// Stats returns aggregate counts across all uploads.
func (s *UploadService) Stats(ctx context.Context) (*model.UploadStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("get upload stats: %w", err)
	}
	return stats, nil
}

// ClaimNext atomically claims the oldest pending upload for the given worker.
func (s *UploadService) ClaimNext(ctx context.Context, claimedBy string) (*model.Upload, error) {
	decision := s.claimPolicy.Resolve(0)

	upload, err := s.repo.ClaimNext(ctx, core.ClaimParams{
		ClaimedBy:    claimedBy,
		ClaimSeconds: decision.Seconds,
	})
	if err != nil {
		if errors.Is(err, model.ErrNoUploadsAvailable) {
			return nil, model.ErrNoUploadsAvailable
		}
		return nil, fmt.Errorf("claim next upload: %w", err)
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "upload claimed",
			"id", upload.ID,
			"claimed_by", claimedBy,
			"claim_seconds", decision.Seconds,
		)
	}
	return upload, nil
}

// RequeueStale returns expired claims to the pending state.
func (s *UploadService) RequeueStale(ctx context.Context) (int64, error) {
	requeued, err := s.repo.RequeueStale(ctx)
	if err != nil {
		return 0, fmt.Errorf("requeue stale claims: %w", err)
	}
	if requeued > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "requeued stale claims", "count", requeued)
	}
	return requeued, nil
}

// Complete records a detection result on a claimed upload.
func (s *UploadService) Complete(ctx context.Context, id string, result *model.DetectionResult) error {
	completed, err := s.repo.Complete(ctx, id, result)
	if err != nil {
		return fmt.Errorf("complete upload %s: %w", id, err)
	}
	if !completed {
		return fmt.Errorf("upload %s is not claimed; refusing terminal write", id)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "upload completed", "id", id, "language", result.Language)
	}
	return nil
}

// Fail records a terminal error on a claimed upload.
func (s *UploadService) Fail(ctx context.Context, id string, uerr *model.UploadError) error {
	failed, err := s.repo.Fail(ctx, id, uerr)
	if err != nil {
		return fmt.Errorf("fail upload %s: %w", id, err)
	}
	if !failed {
		return fmt.Errorf("upload %s is not claimed; refusing terminal write", id)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "upload failed", "id", id, "code", uerr.Code)
	}
	return nil
}
