package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/linguavox/linguavox/internal/core"
	"github.com/linguavox/linguavox/internal/data"
	"github.com/linguavox/linguavox/internal/domain/model"
	"github.com/linguavox/linguavox/internal/mocks"
)

const testMaxBytes = 15 << 20

func newTestService(t *testing.T) (*UploadService, *mocks.MockUploadRepository, *mocks.MockBlobStore, *mocks.MockCacheRepository) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	repo := mocks.NewMockUploadRepository(ctrl)
	blobs := mocks.NewMockBlobStore(ctrl)
	cache := mocks.NewMockCacheRepository(ctrl)

	svc, err := NewUploadService(UploadServiceOptions{
		Repo:            repo,
		Blobs:           blobs,
		Cache:           cache,
		DefaultClaimTTL: 5 * time.Minute,
		MaxUploadBytes:  testMaxBytes,
	})
	require.NoError(t, err)
	return svc, repo, blobs, cache
}

func ingestParams(fileName string, data string) core.IngestParams {
	return core.IngestParams{
		Request: model.IngestRequest{
			FileName:  fileName,
			SizeBytes: int64(len(data)),
		},
		Data: strings.NewReader(data),
	}
}

func TestUploadService_Ingest_StoresBlobThenRow(t *testing.T) {
	svc, repo, blobs, _ := newTestService(t)
	ctx := context.Background()

	var audioKey string
	blobs.EXPECT().Put(ctx, gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ any, params core.PutBlobParams) error {
			assert.True(t, strings.HasPrefix(params.Key, "audio/"))
			assert.Equal(t, "greeting.wav", params.FileName)
			audioKey = params.Key
			return nil
		},
	)
	repo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, params core.CreateUploadParams) (*model.Upload, error) {
			assert.Equal(t, audioKey, params.AudioKey)
			assert.Equal(t, "audio/"+params.ID, params.AudioKey)
			return &model.Upload{ID: params.ID, Status: model.UploadStatusPending}, nil
		},
	)

	upload, err := svc.Ingest(ctx, ingestParams("greeting.wav", "RIFF....WAVE"))
	require.NoError(t, err)
	assert.Equal(t, model.UploadStatusPending, upload.Status)
}

func TestUploadService_Ingest_RejectsUnsupportedExtension(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.Ingest(context.Background(), ingestParams("notes.txt", "hello"))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "unsupported audio format")
}

func TestUploadService_Ingest_RejectsOversizedAudio(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	params := core.IngestParams{
		Request: model.IngestRequest{FileName: "big.wav", SizeBytes: testMaxBytes + 1},
		Data:    strings.NewReader("RIFF"),
	}
	_, err := svc.Ingest(context.Background(), params)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestUploadService_Ingest_BlobFailureSkipsInsert(t *testing.T) {
	svc, _, blobs, _ := newTestService(t)
	ctx := context.Background()

	blobs.EXPECT().Put(ctx, gomock.Any(), gomock.Any()).Return(errors.New("connection refused"))

	_, err := svc.Ingest(ctx, ingestParams("greeting.wav", "RIFF"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store audio")
}

func TestUploadService_Ingest_InsertFailureDeletesBlob(t *testing.T) {
	svc, repo, blobs, _ := newTestService(t)
	ctx := context.Background()

	var audioKey string
	blobs.EXPECT().Put(ctx, gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ any, params core.PutBlobParams) error {
			audioKey = params.Key
			return nil
		},
	)
	repo.EXPECT().Create(ctx, gomock.Any()).Return(nil, errors.New("db unavailable"))
	blobs.EXPECT().Delete(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, key string) error {
			assert.Equal(t, audioKey, key)
			return nil
		},
	)

	_, err := svc.Ingest(ctx, ingestParams("greeting.wav", "RIFF"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create upload")
}

func TestUploadService_Status_CacheHitSkipsDatabase(t *testing.T) {
	svc, _, _, cache := newTestService(t)
	ctx := context.Background()

	cached := &model.UploadStatusResponse{ID: "u-1", Status: "completed"}
	cache.EXPECT().GetStatus(ctx, "u-1").Return(cached, nil)

	resp, err := svc.Status(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, cached, resp)
}

func TestUploadService_Status_TerminalIsWrittenThrough(t *testing.T) {
	svc, repo, _, cache := newTestService(t)
	ctx := context.Background()

	language := "es"
	upload := &model.Upload{ID: "u-2", Status: model.UploadStatusCompleted, Language: &language}

	cache.EXPECT().GetStatus(ctx, "u-2").Return(nil, nil)
	repo.EXPECT().GetByID(ctx, "u-2").Return(upload, nil)
	cache.EXPECT().SetStatus(ctx, gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, resp *model.UploadStatusResponse, _ time.Duration) error {
			assert.Equal(t, "completed", resp.Status)
			return nil
		},
	)

	resp, err := svc.Status(ctx, "u-2")
	require.NoError(t, err)
	assert.Equal(t, "completed", resp.Status)
	require.NotNil(t, resp.Result)
	assert.Equal(t, "es", resp.Result.Language)
}

func TestUploadService_Status_ProcessingIsNotCached(t *testing.T) {
	svc, repo, _, cache := newTestService(t)
	ctx := context.Background()

	cache.EXPECT().GetStatus(ctx, "u-3").Return(nil, nil)
	repo.EXPECT().GetByID(ctx, "u-3").
		Return(&model.Upload{ID: "u-3", Status: model.UploadStatusClaimed}, nil)
	// No SetStatus: claimed is externally "processing" and still mutable.

	resp, err := svc.Status(ctx, "u-3")
	require.NoError(t, err)
	assert.Equal(t, "processing", resp.Status)
}

func TestUploadService_Status_CacheErrorFallsBack(t *testing.T) {
	svc, repo, _, cache := newTestService(t)
	ctx := context.Background()

	cache.EXPECT().GetStatus(ctx, "u-4").Return(nil, errors.New("redis down"))
	repo.EXPECT().GetByID(ctx, "u-4").
		Return(&model.Upload{ID: "u-4", Status: model.UploadStatusPending}, nil)

	resp, err := svc.Status(ctx, "u-4")
	require.NoError(t, err)
	assert.Equal(t, "processing", resp.Status)
}

func TestUploadService_Status_UnknownID(t *testing.T) {
	svc, repo, _, cache := newTestService(t)
	ctx := context.Background()

	cache.EXPECT().GetStatus(ctx, "missing").Return(nil, nil)
	repo.EXPECT().GetByID(ctx, "missing").Return(nil, data.ErrUploadNotFound)

	_, err := svc.Status(ctx, "missing")
	assert.True(t, errors.Is(err, ErrUploadNotFound))
}

func TestUploadService_ClaimNext_UsesDefaultTTL(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()

	repo.EXPECT().ClaimNext(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, params core.ClaimParams) (*model.Upload, error) {
			assert.Equal(t, "worker-1", params.ClaimedBy)
			assert.Equal(t, 300, params.ClaimSeconds)
			return &model.Upload{ID: "u-5", Status: model.UploadStatusClaimed}, nil
		},
	)

	upload, err := svc.ClaimNext(ctx, "worker-1")
	require.NoError(t, err)
	assert.Equal(t, model.UploadStatusClaimed, upload.Status)
}

func TestUploadService_ClaimNext_EmptyQueue(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()

	repo.EXPECT().ClaimNext(ctx, gomock.Any()).Return(nil, model.ErrNoUploadsAvailable)

	_, err := svc.ClaimNext(ctx, "worker-1")
	assert.True(t, errors.Is(err, model.ErrNoUploadsAvailable))
}

func TestUploadService_Complete_RefusedWhenNotClaimed(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()

	repo.EXPECT().Complete(ctx, "u-6", gomock.Any()).Return(false, nil)

	err := svc.Complete(ctx, "u-6", &model.DetectionResult{Language: "es"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusing terminal write")
}

func TestUploadService_Fail_RefusedWhenNotClaimed(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()

	repo.EXPECT().Fail(ctx, "u-7", gomock.Any()).Return(false, nil)

	err := svc.Fail(ctx, "u-7", &model.UploadError{Code: model.ErrCodeInferenceFailed, Message: "boom"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusing terminal write")
}

func TestNewUploadService_Validation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockUploadRepository(ctrl)
	blobs := mocks.NewMockBlobStore(ctrl)

	_, err := NewUploadService(UploadServiceOptions{Blobs: blobs, DefaultClaimTTL: time.Minute, MaxUploadBytes: 1})
	require.Error(t, err)

	_, err = NewUploadService(UploadServiceOptions{Repo: repo, DefaultClaimTTL: time.Minute, MaxUploadBytes: 1})
	require.Error(t, err)

	_, err = NewUploadService(UploadServiceOptions{Repo: repo, Blobs: blobs, MaxUploadBytes: 1})
	require.Error(t, err)

	_, err = NewUploadService(UploadServiceOptions{Repo: repo, Blobs: blobs, DefaultClaimTTL: time.Minute})
	require.Error(t, err)
}
