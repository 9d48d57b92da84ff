// Package client provides an HTTP client for the upload pipeline API.
// It is consumed by the CLI and the polling watcher.
package client

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
	"strings"
	"time"
)

// ErrNotFound is returned when the server does not know the upload id.
var ErrNotFound = errors.New("upload not found")

// APIError carries a structured error response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// Options groups dependencies for Client.
type Options struct {
	BaseURL    string       // Required: server base URL, e.g. http://localhost:8080
	HTTPClient *http.Client // Optional: defaults to a client with a 30s timeout
	Logger     *slog.Logger // Optional: structured logger
}

// Client talks to the upload pipeline HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// New constructs a new Client.
func New(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("BaseURL is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "api_client")
	}

	return &Client{baseURL: baseURL, http: httpClient, logger: logger}, nil
}

// Submit uploads a recording for asynchronous language detection and returns
// the id to poll.
func (c *Client) Submit(ctx context.Context, fileName string, audio io.Reader) (string, error) {
	body, contentType, err := buildSubmitForm(fileName, audio)
	if err != nil {
		return "", fmt.Errorf("build submit form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/uploads", body)
	if err != nil {
		return "", fmt.Errorf("build submit request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit %s: %w", fileName, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		return "", c.apiError(resp)
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode submit response: %w", err)
	}
	if out.ID == "" {
		return "", errors.New("submit response missing id")
	}

	if c.logger != nil {
		c.logger.DebugContext(ctx, "upload submitted", "id", out.ID, "file_name", fileName)
	}
	return out.ID, nil
}

// StatusResponse mirrors the server's status payload.
type StatusResponse struct {
	ID     string        `json:"id"`
	Status string        `json:"status"`
	Result *StatusResult `json:"result,omitempty"`
	Error  *StatusError  `json:"error,omitempty"`
}

// StatusResult carries the detection outcome of a completed upload.
type StatusResult struct {
	Language   string  `json:"language"`
	Transcript *string `json:"transcript,omitempty"`
}

// StatusError carries the terminal error of a failed upload.
type StatusError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Terminal reports whether the status will never change again.
func (r *StatusResponse) Terminal() bool {
	return r.Status == "completed" || r.Status == "failed"
}

// Status fetches the observable state of an upload. Unknown ids return
// ErrNotFound.
func (c *Client) Status(ctx context.Context, id string) (*StatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/uploads/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("build status request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query status of %s: %w", id, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.apiError(resp)
	}

	var out StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}
	return &out, nil
}

// StatsResponse mirrors the server's aggregate counters.
type StatsResponse struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Claimed   int `json:"claimed"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Stats fetches aggregate pipeline counters.
func (c *Client) Stats(ctx context.Context) (*StatsResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/stats", nil)
	if err != nil {
		return nil, fmt.Errorf("build stats request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, c.apiError(resp)
	}

	var out StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode stats response: %w", err)
	}
	return &out, nil
}

// apiError decodes a structured error body, falling back to the HTTP status.
func (c *Client) apiError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Code: "unexpected_status"}

	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil && body.Error != "" {
		apiErr.Code = body.Error
		apiErr.Message = body.Message
	} else {
		apiErr.Message = resp.Status
	}
	return apiErr
}

func buildSubmitForm(fileName string, audio io.Reader) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("audio", fileName)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, audio); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}
