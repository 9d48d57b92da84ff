// Package model defines the core data types and structures used throughout the linguavox pipeline.
package model

import (
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"
)

// UploadStatus represents the current lifecycle state of an upload.
type UploadStatus string

const (
	// UploadStatusPending indicates an upload is waiting to be claimed by a worker.
	UploadStatusPending UploadStatus = "pending"
	// UploadStatusClaimed indicates a worker holds the upload and is running detection.
	UploadStatusClaimed UploadStatus = "claimed"
	// UploadStatusCompleted indicates detection finished and a result is stored.
	UploadStatusCompleted UploadStatus = "completed"
	// UploadStatusFailed indicates detection failed with a recorded error.
	UploadStatusFailed UploadStatus = "failed"
)

// Error codes recorded on failed uploads.
const (
	ErrCodeAudioMissing     = "audio_missing"
	ErrCodeAudioUnreadable  = "audio_unreadable"
	ErrCodeInferenceTimeout = "inference_timeout"
	ErrCodeInferenceFailed  = "inference_failed"
)

// ErrNoUploadsAvailable is returned when no pending uploads are available to claim.
var ErrNoUploadsAvailable = errors.New("no uploads available")

// Valid returns true if the UploadStatus is valid.
func (s UploadStatus) Valid() bool {
	return s == UploadStatusPending || s == UploadStatusClaimed ||
		s == UploadStatusCompleted || s == UploadStatusFailed
}

// Terminal returns true once the status can no longer change.
func (s UploadStatus) Terminal() bool {
	return s == UploadStatusCompleted || s == UploadStatusFailed
}

// Upload represents a submitted recording and its detection lifecycle.
type Upload struct {
	ID             string       `json:"id"                         db:"id"`
	Status         UploadStatus `json:"status"                     db:"status"`
	AudioKey       string       `json:"audio_key"                  db:"audio_key"`
	FileName       string       `json:"file_name"                  db:"file_name"`
	ContentType    string       `json:"content_type"               db:"content_type"`
	SizeBytes      int64        `json:"size_bytes"                 db:"size_bytes"`
	ClaimedAt      *time.Time   `json:"claimed_at,omitempty"       db:"claimed_at"`
	ClaimedBy      *string      `json:"claimed_by,omitempty"       db:"claimed_by"`
	ClaimExpiresAt *time.Time   `json:"claim_expires_at,omitempty" db:"claim_expires_at"`
	Language       *string      `json:"language,omitempty"         db:"language"`
	Transcript     *string      `json:"transcript,omitempty"       db:"transcript"`
	ErrorCode      *string      `json:"error_code,omitempty"       db:"error_code"`
	ErrorMessage   *string      `json:"error_message,omitempty"    db:"error_message"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty"     db:"completed_at"`
	CreatedAt      time.Time    `json:"created_at"                 db:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"                 db:"updated_at"`
}

// acceptedAudioExts lists the recording formats the pipeline accepts.
var acceptedAudioExts = map[string]bool{
	".wav":  true,
	".webm": true,
	".mp3":  true,
	".m4a":  true,
	".ogg":  true,
	".flac": true,
}

// IngestRequest represents a request to ingest a new recording.
type IngestRequest struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// Validate validates the IngestRequest fields against the configured byte cap.
func (r *IngestRequest) Validate(maxBytes int64) error {
	if r.FileName == "" {
		return errors.New("file name is required")
	}
	ext := strings.ToLower(filepath.Ext(r.FileName))
	if !acceptedAudioExts[ext] {
		return fmt.Errorf("unsupported audio format %q", ext)
	}
	if r.SizeBytes <= 0 {
		return errors.New("audio data is empty")
	}
	if maxBytes > 0 && r.SizeBytes > maxBytes {
		return fmt.Errorf("audio exceeds maximum size of %d bytes", maxBytes)
	}
	return nil
}

// ResolvedContentType returns the declared content type, falling back to the
// type implied by the file extension.
func (r *IngestRequest) ResolvedContentType() string {
	if r.ContentType != "" && r.ContentType != "application/octet-stream" {
		return r.ContentType
	}
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(r.FileName))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// DetectionResult is the outcome of running language detection on a recording.
type DetectionResult struct {
	Language   string  `json:"language"`
	Transcript *string `json:"transcript,omitempty"`
}

// Validate ensures a result is storable alongside a completed status.
func (r *DetectionResult) Validate() error {
	if strings.TrimSpace(r.Language) == "" {
		return errors.New("language is required")
	}
	return nil
}

// UploadError is the terminal error pair recorded on failed uploads.
type UploadError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// UploadStats represents counts of uploads by state. Total counts every
// upload ever ingested; rows are never deleted by the pipeline.
type UploadStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Claimed   int `json:"claimed"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// UploadStatusResponse is the externally observable view of an upload.
// Status collapses pending and claimed into "processing"; Result is present
// only for completed uploads and Error only for failed ones.
type UploadStatusResponse struct {
	ID     string           `json:"id"`
	Status string           `json:"status"`
	Result *DetectionResult `json:"result,omitempty"`
	Error  *UploadError     `json:"error,omitempty"`
}

// StatusResponseFor maps a stored upload to its external status view.
func StatusResponseFor(u *Upload) UploadStatusResponse {
	resp := UploadStatusResponse{ID: u.ID}
	switch u.Status {
	case UploadStatusCompleted:
		resp.Status = string(UploadStatusCompleted)
		result := &DetectionResult{Transcript: u.Transcript}
		if u.Language != nil {
			result.Language = *u.Language
		}
		resp.Result = result
	case UploadStatusFailed:
		resp.Status = string(UploadStatusFailed)
		uerr := &UploadError{}
		if u.ErrorCode != nil {
			uerr.Code = *u.ErrorCode
		}
		if u.ErrorMessage != nil {
			uerr.Message = *u.ErrorMessage
		}
		resp.Error = uerr
	default:
		resp.Status = "processing"
	}
	return resp
}
