package data

import (
	"database/sql"
	"errors"
	"log/slog"
)

// ErrUploadNotFound is returned when an upload is not found.
var ErrUploadNotFound = errors.New("upload not found")

// RepoConfig holds configuration options for the upload repository.
type RepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// UploadRepo provides database operations for the upload pipeline.
type UploadRepo struct {
	DB           *sql.DB
	cfg          RepoConfig
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewUploadRepo creates a new UploadRepo instance with the given database connection and configuration.
func NewUploadRepo(db *sql.DB, cfg RepoConfig) *UploadRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}

	return &UploadRepo{
		DB:           db,
		cfg:          cfg,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

const uploadColumns = `
  id,
  status,
  audio_key,
  file_name,
  content_type,
  size_bytes,
  claimed_at,
  claimed_by,
  claim_expires_at,
  language,
  transcript,
  error_code,
  error_message,
  completed_at,
  created_at,
  updated_at
`
