// Package httpx provides HTTP handlers and utilities for the upload pipeline API.
package httpx

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/linguavox/linguavox/internal/core"
	"github.com/linguavox/linguavox/internal/domain/model"
	"github.com/linguavox/linguavox/internal/service"
)

// audioFormField is the multipart form field carrying the recording bytes.
const audioFormField = "audio"

// multipartOverheadBytes is headroom on top of the audio size limit for
// multipart boundaries and part headers.
const multipartOverheadBytes = 64 * 1024

// UploadHandlers provides HTTP handlers for upload-related operations.
type UploadHandlers struct {
	Svc            core.UploadService
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// Ingest handles multipart submissions of audio recordings. It accepts the
// upload for asynchronous processing and returns the id to poll.
func (h *UploadHandlers) Ingest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes+multipartOverheadBytes)

	file, header, err := r.FormFile(audioFormField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, ErrorParams{
				Code:    http.StatusBadRequest,
				ErrCode: "invalid_payload",
				Err:     fmt.Errorf("audio exceeds %d bytes", h.MaxUploadBytes),
			})
			return
		}
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_payload",
			Err:     fmt.Errorf("multipart field %q is required", audioFormField),
		})
		return
	}
	defer func() { _ = file.Close() }()

	params := core.IngestParams{
		Request: model.IngestRequest{
			FileName:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			SizeBytes:   header.Size,
		},
		Data: file,
	}

	upload, err := h.Svc.Ingest(r.Context(), params)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_payload", Err: verr})
			return
		}
		if h.Logger != nil {
			h.Logger.ErrorContext(r.Context(), "ingest failed", "error", err)
		}
		WriteError(w, ErrorParams{Code: http.StatusBadGateway, ErrCode: "storage_failed", Err: err})
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]string{"id": upload.ID})
}

// GetStatus handles HTTP requests for the observable state of an upload.
func (h *UploadHandlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	resp, err := h.Svc.Status(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrUploadNotFound) {
			WriteError(w, ErrorParams{
				Code:    http.StatusNotFound,
				ErrCode: "not_found",
				Err:     fmt.Errorf("upload %s not found", id),
			})
			return
		}
		if h.Logger != nil {
			h.Logger.ErrorContext(r.Context(), "status lookup failed", "id", id, "error", err)
		}
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "status_failed", Err: err})
		return
	}

	WriteJSON(w, http.StatusOK, resp)
}

// GetStats handles HTTP requests for aggregate pipeline counters.
func (h *UploadHandlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Svc.Stats(r.Context())
	if err != nil {
		if h.Logger != nil {
			h.Logger.ErrorContext(r.Context(), "stats lookup failed", "error", err)
		}
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "stats_failed", Err: err})
		return
	}

	WriteJSON(w, http.StatusOK, stats)
}
