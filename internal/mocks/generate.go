// Package mocks provides mock implementations for testing the upload pipeline.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our port interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockRepo := mocks.NewMockUploadRepository(ctrl)
//	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(upload, nil)
package mocks

// Generate mock for UploadRepository interface from internal/core package.
// This creates MockUploadRepository with methods for all UploadRepository interface methods:
// Create, GetByID, ClaimNext, RequeueStale, Complete, Fail, Stats
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=upload_repository_mock.go github.com/linguavox/linguavox/internal/core UploadRepository

// Generate mock for BlobStore interface from internal/core package.
// This creates MockBlobStore with methods for all BlobStore interface methods:
// Put, Get, Delete
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=blob_store_mock.go github.com/linguavox/linguavox/internal/core BlobStore

// Generate mock for Detector interface from internal/core package.
// This creates MockDetector with methods for all Detector interface methods:
// Detect
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=detector_mock.go github.com/linguavox/linguavox/internal/core Detector

// Generate mock for CacheRepository interface from internal/core package.
// This creates MockCacheRepository with methods for all CacheRepository interface methods:
// GetStatus, SetStatus
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=cache_repository_mock.go github.com/linguavox/linguavox/internal/core CacheRepository

// Generate mock for UploadService interface from internal/core package.
// This creates MockUploadService with methods for all UploadService interface methods:
// Ingest, Status, Stats, ClaimNext, RequeueStale, Complete, Fail
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=upload_service_mock.go github.com/linguavox/linguavox/internal/core UploadService
