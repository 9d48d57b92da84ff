package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/linguavox/linguavox/internal/core"
	"github.com/linguavox/linguavox/internal/domain/model"
	"github.com/linguavox/linguavox/internal/mocks"
	"github.com/linguavox/linguavox/internal/service"
)

const testMaxUploadBytes = 15 << 20

func newTestRouter(t *testing.T) (http.Handler, *mocks.MockUploadService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	svc := mocks.NewMockUploadService(ctrl)
	router := NewRouter(RouterServices{Uploads: svc, MaxUploadBytes: testMaxUploadBytes})
	return router, svc
}

func newMultipartRequest(t *testing.T, field, fileName string, data []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, fileName)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func TestIngest_AcceptsUpload(t *testing.T) {
	router, svc := newTestRouter(t)

	svc.EXPECT().Ingest(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ any, params core.IngestParams) (*model.Upload, error) {
			assert.Equal(t, "greeting.wav", params.Request.FileName)
			assert.Positive(t, params.Request.SizeBytes)
			return &model.Upload{ID: "u-1", Status: model.UploadStatusPending}, nil
		},
	)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, newMultipartRequest(t, "audio", "greeting.wav", []byte("RIFF....WAVE")))

	require.Equal(t, http.StatusCreated, rec.Code)
	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "u-1", body["id"])
}

func TestIngest_MissingAudioField(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, newMultipartRequest(t, "recording", "greeting.wav", []byte("RIFF")))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "invalid_payload", body["error"])
}

func TestIngest_ValidationErrorIsBadRequest(t *testing.T) {
	router, svc := newTestRouter(t)

	svc.EXPECT().Ingest(gomock.Any(), gomock.Any()).
		Return(nil, &service.ValidationError{Reason: "unsupported audio extension \".txt\""})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, newMultipartRequest(t, "audio", "notes.txt", []byte("hello")))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "invalid_payload", body["error"])
	assert.Contains(t, body["message"], "unsupported audio extension")
}

func TestIngest_StorageFailureIsBadGateway(t *testing.T) {
	router, svc := newTestRouter(t)

	svc.EXPECT().Ingest(gomock.Any(), gomock.Any()).
		Return(nil, errors.New("store audio: connection refused"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, newMultipartRequest(t, "audio", "greeting.wav", []byte("RIFF")))

	require.Equal(t, http.StatusBadGateway, rec.Code)
	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "storage_failed", body["error"])
}

func TestGetStatus_Processing(t *testing.T) {
	router, svc := newTestRouter(t)

	svc.EXPECT().Status(gomock.Any(), "u-1").
		Return(&model.UploadStatusResponse{ID: "u-1", Status: "processing"}, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/uploads/u-1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body model.UploadStatusResponse
	decodeBody(t, rec, &body)
	assert.Equal(t, "processing", body.Status)
	assert.Nil(t, body.Result)
	assert.Nil(t, body.Error)
}

func TestGetStatus_CompletedCarriesResult(t *testing.T) {
	router, svc := newTestRouter(t)

	transcript := "hola que tal"
	svc.EXPECT().Status(gomock.Any(), "u-2").Return(&model.UploadStatusResponse{
		ID:     "u-2",
		Status: "completed",
		Result: &model.DetectionResult{Language: "es", Transcript: &transcript},
	}, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/uploads/u-2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body model.UploadStatusResponse
	decodeBody(t, rec, &body)
	assert.Equal(t, "completed", body.Status)
	require.NotNil(t, body.Result)
	assert.Equal(t, "es", body.Result.Language)
	require.NotNil(t, body.Result.Transcript)
	assert.Equal(t, "hola que tal", *body.Result.Transcript)
}

func TestGetStatus_FailedCarriesError(t *testing.T) {
	router, svc := newTestRouter(t)

	svc.EXPECT().Status(gomock.Any(), "u-3").Return(&model.UploadStatusResponse{
		ID:     "u-3",
		Status: "failed",
		Error:  &model.UploadError{Code: model.ErrCodeInferenceTimeout, Message: "inference timed out"},
	}, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/uploads/u-3", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body model.UploadStatusResponse
	decodeBody(t, rec, &body)
	assert.Equal(t, "failed", body.Status)
	require.NotNil(t, body.Error)
	assert.Equal(t, model.ErrCodeInferenceTimeout, body.Error.Code)
}

func TestGetStatus_UnknownIDIsNotFound(t *testing.T) {
	router, svc := newTestRouter(t)

	svc.EXPECT().Status(gomock.Any(), "missing").Return(nil, service.ErrUploadNotFound)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/uploads/missing", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "not_found", body["error"])
}

func TestGetStats_ReturnsCounters(t *testing.T) {
	router, svc := newTestRouter(t)

	svc.EXPECT().Stats(gomock.Any()).Return(&model.UploadStats{
		Total: 7, Pending: 2, Claimed: 1, Completed: 3, Failed: 1,
	}, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body model.UploadStats
	decodeBody(t, rec, &body)
	assert.Equal(t, 7, body.Total)
	assert.Equal(t, 3, body.Completed)
}

func TestHealthz(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
