// Package worker provides the detection worker loop that drains claimed
// uploads through the blob store and language detector.
package worker

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/linguavox/linguavox/config"
	"github.com/linguavox/linguavox/internal/core"
	"github.com/linguavox/linguavox/internal/data"
	"github.com/linguavox/linguavox/internal/domain/model"
	"github.com/linguavox/linguavox/internal/inference"
	"github.com/linguavox/linguavox/internal/observability/metrics"
	"github.com/linguavox/linguavox/internal/observability/statsd"
	"github.com/linguavox/linguavox/internal/storage"
)

// RunnerOptions configures the detection worker runner.
type RunnerOptions struct {
	Service  core.UploadService // Required: upload service for claim/terminal writes
	Blobs    core.BlobStore     // Required: audio blob store
	Detector core.Detector      // Required: language detection backend
	Config   config.WorkerConfig

	// Optional dependency injections (useful for tests/decoupling)
	Logger   *slog.Logger
	Metrics  statsd.Sink
	WorkerID string // defaults to hostname plus a random suffix
}

// Runner claims pending uploads on a timer and drives each one to a
// terminal status.
type Runner struct {
	service  core.UploadService
	blobs    core.BlobStore
	detector core.Detector
	config   config.WorkerConfig
	logger   *slog.Logger
	metrics  statsd.Sink
	workerID string
}

// NewRunner constructs a new Runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Service == nil {
		return nil, errors.New("UploadService is required")
	}
	if opts.Blobs == nil {
		return nil, errors.New("BlobStore is required")
	}
	if opts.Detector == nil {
		return nil, errors.New("Detector is required")
	}

	cfg := opts.Config
	cfg.Sanitize()

	workerID := strings.TrimSpace(opts.WorkerID)
	if workerID == "" {
		workerID = defaultWorkerID()
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "worker", "worker_id", workerID)
		logger.Debug("Runner initialized",
			"interval", cfg.Interval,
			"claim_ttl", cfg.ClaimTTL,
			"batch_size", cfg.BatchSize,
			"concurrency", cfg.Concurrency,
		)
	}

	return &Runner{
		service:  opts.Service,
		blobs:    opts.Blobs,
		detector: opts.Detector,
		config:   cfg,
		logger:   logger,
		metrics:  opts.Metrics,
		workerID: workerID,
	}, nil
}

// defaultWorkerID derives a claim identity from the hostname plus a random
// suffix so two workers on one host never share an identity.
func defaultWorkerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return host + "-" + uuid.NewString()[:8]
}

// Run starts the worker loop and runs until the context is cancelled.
// Each tick requeues stale claims, then claims and processes uploads.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (r *Runner) Run(ctx context.Context) error {
	if r.logger != nil {
		r.logger.InfoContext(ctx, "starting detection worker", "interval", r.config.Interval)
	}

	// Add jitter to prevent thundering herd if multiple instances start together
	r.waitWithJitter(ctx)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	// Run a tick immediately after jitter
	if err := r.runTick(ctx); err != nil {
		r.logTickError(err)
	}

	return r.runLoop(ctx, ticker)
}

// waitWithJitter adds a random delay up to 10% of the interval to prevent thundering herd.
func (r *Runner) waitWithJitter(ctx context.Context) {
	maxJitter := int64(r.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// If crypto/rand fails, skip jitter rather than failing startup
		if r.logger != nil {
			r.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		}
		return
	}

	// Use modulo on uint64 before converting to avoid overflow
	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
		// Graceful shutdown during jitter
	}
}

// runLoop runs the tick loop until the context is cancelled.
func (r *Runner) runLoop(ctx context.Context, ticker *time.Ticker) error {
	for {
		select {
		case <-ctx.Done():
			if r.logger != nil {
				r.logger.InfoContext(ctx, "detection worker stopping", "reason", ctx.Err())
			}
			// Return nil on graceful shutdown to avoid treating it as a failure
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			if err := r.runTick(ctx); err != nil {
				r.logTickError(err)
				// Continue running despite errors
			}
		}
	}
}

// runTick performs one full worker pass: requeue stale claims, then claim
// and process up to BatchSize uploads with bounded concurrency.
func (r *Runner) runTick(ctx context.Context) error {
	if err := r.requeueStale(ctx); err != nil {
		if isContextCancellation(err) {
			return err
		}
		// A failed requeue never blocks claiming; stale claims stay claimed
		// until a later pass succeeds.
		r.logTickError(fmt.Errorf("requeue stale claims: %w", err))
	}

	return r.processBatch(ctx)
}

func (r *Runner) requeueStale(ctx context.Context) error {
	requeued, err := r.service.RequeueStale(ctx)
	if err != nil {
		return err
	}
	if requeued > 0 {
		if r.logger != nil {
			r.logger.InfoContext(ctx, "requeued stale claims", "count", requeued)
		}
		if r.metrics != nil {
			r.metrics.Count("upload.requeued", requeued, nil)
		}
	}
	return nil
}

// processBatch claims uploads until the batch is full or the queue is empty,
// processing each one on the errgroup. Claiming stops on the first claim
// error so a sick database does not spin the loop.
func (r *Runner) processBatch(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.config.Concurrency)

	var claimErr error
	for i := 0; i < r.config.BatchSize; i++ {
		upload, err := r.service.ClaimNext(ctx, r.workerID)
		if err != nil {
			if !errors.Is(err, model.ErrNoUploadsAvailable) {
				claimErr = fmt.Errorf("claim next upload: %w", err)
			}
			break
		}

		group.Go(func() error {
			r.processUpload(groupCtx, upload)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}
	return claimErr
}

// processUpload drives one claimed upload to a terminal status. Transient
// failures leave the claim in place so the staleness requeue retries it;
// definitive failures record a terminal error code.
func (r *Runner) processUpload(ctx context.Context, upload *model.Upload) {
	start := time.Now()
	emit := func(result string, err error) {
		metrics.EmitUploadLifecycle(r.metrics, metrics.UploadMetric{
			Stage:    "process",
			Result:   result,
			Duration: time.Since(start),
			Err:      err,
		})
	}

	audio, err := r.blobs.Get(ctx, upload.AudioKey)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			r.failUpload(ctx, upload, &model.UploadError{
				Code:    model.ErrCodeAudioMissing,
				Message: fmt.Sprintf("audio object %s not found", upload.AudioKey),
			})
			emit(metrics.ResultError, err)
			return
		}
		// Transient blob store failure; the claim expires and gets requeued.
		if r.logger != nil && !isContextCancellation(err) {
			r.logger.WarnContext(ctx, "fetch audio failed, leaving claim for requeue",
				"upload_id", upload.ID, "error", err)
		}
		emit(metrics.ResultNoop, err)
		return
	}
	defer func() { _ = audio.Close() }()

	result, err := r.detector.Detect(ctx, audio, upload.FileName)
	if err != nil {
		var derr *inference.DetectionError
		switch {
		case errors.As(err, &derr):
			r.failUpload(ctx, upload, &model.UploadError{Code: derr.Code, Message: derr.Message})
			emit(metrics.ResultError, err)
		case isContextCancellation(err):
			emit(metrics.ResultNoop, err)
		default:
			r.failUpload(ctx, upload, &model.UploadError{
				Code:    model.ErrCodeInferenceFailed,
				Message: err.Error(),
			})
			emit(metrics.ResultError, err)
		}
		return
	}

	if err := r.service.Complete(ctx, upload.ID, result); err != nil {
		// The claim was requeued or completed elsewhere before our write landed.
		if r.logger != nil {
			r.logger.WarnContext(ctx, "completion write rejected",
				"upload_id", upload.ID, "error", err)
		}
		emit(metrics.ResultNoop, err)
		return
	}

	if r.logger != nil {
		r.logger.InfoContext(ctx, "upload completed",
			"upload_id", upload.ID,
			"language", result.Language,
			"duration", time.Since(start),
		)
	}
	emit(metrics.ResultSuccess, nil)
}

func (r *Runner) failUpload(ctx context.Context, upload *model.Upload, uerr *model.UploadError) {
	if err := r.service.Fail(ctx, upload.ID, uerr); err != nil {
		if r.logger != nil {
			r.logger.WarnContext(ctx, "failure write rejected",
				"upload_id", upload.ID, "code", uerr.Code, "error", err)
		}
		return
	}
	if r.logger != nil {
		r.logger.InfoContext(ctx, "upload failed",
			"upload_id", upload.ID,
			"code", uerr.Code,
			"message", uerr.Message,
		)
	}
}

func (r *Runner) logTickError(err error) {
	if r.logger == nil || isContextCancellation(err) {
		return
	}
	// Transient database hiccups resolve on a later tick and do not need
	// error-level noise.
	if data.IsRetryablePgError(err) {
		r.logger.Warn("worker tick error, will retry", "error", err)
		return
	}
	r.logger.Error("worker tick error", "error", err)
}

// isContextCancellation reports whether the error stems from context cancellation or timeout.
func isContextCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
