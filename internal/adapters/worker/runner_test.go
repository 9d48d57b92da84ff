package worker

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/linguavox/linguavox/config"
	"github.com/linguavox/linguavox/internal/domain/model"
	"github.com/linguavox/linguavox/internal/inference"
	"github.com/linguavox/linguavox/internal/mocks"
	"github.com/linguavox/linguavox/internal/storage"
)

func testRunner(t *testing.T) (*Runner, *mocks.MockUploadService, *mocks.MockBlobStore, *mocks.MockDetector) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	svc := mocks.NewMockUploadService(ctrl)
	blobs := mocks.NewMockBlobStore(ctrl)
	detector := mocks.NewMockDetector(ctrl)

	runner, err := NewRunner(RunnerOptions{
		Service:  svc,
		Blobs:    blobs,
		Detector: detector,
		Config:   config.WorkerConfig{BatchSize: 2, Concurrency: 1},
		WorkerID: "test-worker",
	})
	require.NoError(t, err)
	return runner, svc, blobs, detector
}

func claimedUpload(id string) *model.Upload {
	return &model.Upload{
		ID:       id,
		Status:   model.UploadStatusClaimed,
		AudioKey: "audio/" + id,
		FileName: "sample.wav",
	}
}

func TestRunner_Tick_CompletesUpload(t *testing.T) {
	runner, svc, blobs, detector := testRunner(t)
	ctx := context.Background()
	upload := claimedUpload("u-1")

	transcript := "hola que tal"
	result := &model.DetectionResult{Language: "es", Transcript: &transcript}

	svc.EXPECT().RequeueStale(ctx).Return(int64(0), nil)
	svc.EXPECT().ClaimNext(ctx, "test-worker").Return(upload, nil)
	svc.EXPECT().ClaimNext(ctx, "test-worker").Return(nil, model.ErrNoUploadsAvailable)
	blobs.EXPECT().Get(gomock.Any(), upload.AudioKey).
		Return(io.NopCloser(strings.NewReader("RIFF")), nil)
	detector.EXPECT().Detect(gomock.Any(), gomock.Any(), upload.FileName).Return(result, nil)
	svc.EXPECT().Complete(gomock.Any(), upload.ID, result).Return(nil)

	require.NoError(t, runner.runTick(ctx))
}

func TestRunner_Tick_MissingAudioFailsTerminally(t *testing.T) {
	runner, svc, blobs, _ := testRunner(t)
	ctx := context.Background()
	upload := claimedUpload("u-2")

	svc.EXPECT().RequeueStale(ctx).Return(int64(0), nil)
	svc.EXPECT().ClaimNext(ctx, "test-worker").Return(upload, nil)
	svc.EXPECT().ClaimNext(ctx, "test-worker").Return(nil, model.ErrNoUploadsAvailable)
	blobs.EXPECT().Get(gomock.Any(), upload.AudioKey).Return(nil, storage.ErrBlobNotFound)
	svc.EXPECT().Fail(gomock.Any(), upload.ID, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, uerr *model.UploadError) error {
			assert.Equal(t, model.ErrCodeAudioMissing, uerr.Code)
			return nil
		},
	)

	require.NoError(t, runner.runTick(ctx))
}

func TestRunner_Tick_DetectionErrorCarriesCode(t *testing.T) {
	runner, svc, blobs, detector := testRunner(t)
	ctx := context.Background()
	upload := claimedUpload("u-3")

	svc.EXPECT().RequeueStale(ctx).Return(int64(0), nil)
	svc.EXPECT().ClaimNext(ctx, "test-worker").Return(upload, nil)
	svc.EXPECT().ClaimNext(ctx, "test-worker").Return(nil, model.ErrNoUploadsAvailable)
	blobs.EXPECT().Get(gomock.Any(), upload.AudioKey).
		Return(io.NopCloser(strings.NewReader("RIFF")), nil)
	detector.EXPECT().Detect(gomock.Any(), gomock.Any(), upload.FileName).
		Return(nil, &inference.DetectionError{
			Code:    model.ErrCodeInferenceTimeout,
			Message: "inference timed out after 2m0s",
		})
	svc.EXPECT().Fail(gomock.Any(), upload.ID, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, uerr *model.UploadError) error {
			assert.Equal(t, model.ErrCodeInferenceTimeout, uerr.Code)
			return nil
		},
	)

	require.NoError(t, runner.runTick(ctx))
}

func TestRunner_Tick_TransientBlobErrorLeavesClaim(t *testing.T) {
	runner, svc, blobs, _ := testRunner(t)
	ctx := context.Background()
	upload := claimedUpload("u-4")

	svc.EXPECT().RequeueStale(ctx).Return(int64(0), nil)
	svc.EXPECT().ClaimNext(ctx, "test-worker").Return(upload, nil)
	svc.EXPECT().ClaimNext(ctx, "test-worker").Return(nil, model.ErrNoUploadsAvailable)
	blobs.EXPECT().Get(gomock.Any(), upload.AudioKey).Return(nil, errors.New("connection refused"))
	// No Complete or Fail: the claim must stay for the staleness requeue.

	require.NoError(t, runner.runTick(ctx))
}

func TestRunner_Tick_StopsClaimingAtBatchSize(t *testing.T) {
	runner, svc, blobs, detector := testRunner(t)
	ctx := context.Background()

	svc.EXPECT().RequeueStale(ctx).Return(int64(1), nil)
	svc.EXPECT().ClaimNext(ctx, "test-worker").Return(claimedUpload("u-5"), nil)
	svc.EXPECT().ClaimNext(ctx, "test-worker").Return(claimedUpload("u-6"), nil)
	blobs.EXPECT().Get(gomock.Any(), gomock.Any()).
		Return(io.NopCloser(strings.NewReader("RIFF")), nil).Times(2)
	detector.EXPECT().Detect(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&model.DetectionResult{Language: "en"}, nil).Times(2)
	svc.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)

	require.NoError(t, runner.runTick(ctx))
}

func TestRunner_Tick_ClaimErrorSurfaces(t *testing.T) {
	runner, svc, _, _ := testRunner(t)
	ctx := context.Background()

	svc.EXPECT().RequeueStale(ctx).Return(int64(0), nil)
	svc.EXPECT().ClaimNext(ctx, "test-worker").Return(nil, errors.New("db unavailable"))

	err := runner.runTick(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "claim next upload")
}

func TestRunner_Tick_RequeueErrorDoesNotBlockClaiming(t *testing.T) {
	runner, svc, _, _ := testRunner(t)
	ctx := context.Background()

	svc.EXPECT().RequeueStale(ctx).Return(int64(0), errors.New("advisory lock timeout"))
	svc.EXPECT().ClaimNext(ctx, "test-worker").Return(nil, model.ErrNoUploadsAvailable)

	require.NoError(t, runner.runTick(ctx))
}

func TestNewRunner_Validation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := mocks.NewMockUploadService(ctrl)
	blobs := mocks.NewMockBlobStore(ctrl)
	detector := mocks.NewMockDetector(ctrl)

	_, err := NewRunner(RunnerOptions{Blobs: blobs, Detector: detector})
	require.Error(t, err)

	_, err = NewRunner(RunnerOptions{Service: svc, Detector: detector})
	require.Error(t, err)

	_, err = NewRunner(RunnerOptions{Service: svc, Blobs: blobs})
	require.Error(t, err)

	runner, err := NewRunner(RunnerOptions{Service: svc, Blobs: blobs, Detector: detector})
	require.NoError(t, err)
	assert.NotEmpty(t, runner.workerID)
	assert.GreaterOrEqual(t, runner.config.BatchSize, 1)
}
