// Package inference implements the Detector port against a whisper-server
// HTTP endpoint.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/linguavox/linguavox/config"
	"github.com/linguavox/linguavox/internal/domain/model"
)

// DetectionError carries the terminal error code for a failed detection.
type DetectionError struct {
	Code    string
	Message string
}

func (e *DetectionError) Error() string {
	return e.Code + ": " + e.Message
}

// WhisperDetector calls a whisper-server /inference endpoint to identify the
// spoken language and transcribe the recording.
type WhisperDetector struct {
	baseURL     string
	temperature float64
	client      *http.Client
	logger      *slog.Logger
}

// WhisperOptions holds dependencies for constructing a WhisperDetector.
type WhisperOptions struct {
	Config config.InferenceConfig
	Client *http.Client
	Logger *slog.Logger
}

// NewWhisperDetector creates a detector against the configured whisper server.
func NewWhisperDetector(opts WhisperOptions) (*WhisperDetector, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if strings.TrimSpace(opts.Config.ServerURL) == "" {
		return nil, errors.New("inference server url is required")
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Config.Timeout}
	}

	return &WhisperDetector{
		baseURL:     strings.TrimRight(opts.Config.ServerURL, "/"),
		temperature: opts.Config.Temperature,
		client:      client,
		logger:      opts.Logger.With("component", "whisper_detector"),
	}, nil
}

// whisperResponse is the JSON body returned by whisper-server.
type whisperResponse struct {
	Text             string `json:"text,omitempty"`
	Language         string `json:"language,omitempty"`
	DetectedLanguage string `json:"detected_language,omitempty"`
	Error            string `json:"error,omitempty"`
}

// Detect posts the audio as a multipart form and maps the response to a
// DetectionResult. Failures carry a *DetectionError with a terminal code.
func (d *WhisperDetector) Detect(
	ctx context.Context,
	audio io.Reader,
	fileName string,
) (*model.DetectionResult, error) {
	body, contentType, err := d.buildForm(audio, fileName)
	if err != nil {
		return nil, &DetectionError{
			Code:    model.ErrCodeAudioUnreadable,
			Message: fmt.Sprintf("build inference form: %v", err),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/inference", body)
	if err != nil {
		return nil, &DetectionError{
			Code:    model.ErrCodeInferenceFailed,
			Message: fmt.Sprintf("build inference request: %v", err),
		}
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := d.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, &DetectionError{
				Code:    model.ErrCodeInferenceTimeout,
				Message: "inference call timed out",
			}
		}
		return nil, &DetectionError{
			Code:    model.ErrCodeInferenceFailed,
			Message: fmt.Sprintf("inference call: %v", err),
		}
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			_ = cerr
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, &DetectionError{
			Code:    model.ErrCodeInferenceFailed,
			Message: fmt.Sprintf("read inference response: %v", err),
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &DetectionError{
			Code:    model.ErrCodeInferenceFailed,
			Message: fmt.Sprintf("inference server returned %d", resp.StatusCode),
		}
	}

	var parsed whisperResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &DetectionError{
			Code:    model.ErrCodeInferenceFailed,
			Message: fmt.Sprintf("decode inference response: %v", err),
		}
	}
	if parsed.Error != "" {
		return nil, &DetectionError{
			Code:    model.ErrCodeInferenceFailed,
			Message: parsed.Error,
		}
	}

	language := strings.TrimSpace(parsed.Language)
	if language == "" {
		language = strings.TrimSpace(parsed.DetectedLanguage)
	}
	if language == "" {
		return nil, &DetectionError{
			Code:    model.ErrCodeInferenceFailed,
			Message: "inference response missing language",
		}
	}

	result := &model.DetectionResult{Language: language}
	if text := strings.TrimSpace(parsed.Text); text != "" {
		result.Transcript = &text
	}

	d.logger.DebugContext(ctx, "detection finished",
		"language", language,
		"has_transcript", result.Transcript != nil,
	)
	return result, nil
}

func (d *WhisperDetector) buildForm(audio io.Reader, fileName string) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return nil, "", fmt.Errorf("copy audio: %w", err)
	}

	fields := map[string]string{
		"response_format": "json",
		"temperature":     strconv.FormatFloat(d.temperature, 'f', -1, 64),
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close form writer: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}

func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
