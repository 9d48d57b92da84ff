package config

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// BaseURL is the base URL of the application (e.g., "https://app.example.com").
	// Used by clients for generating absolute URLs.
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.Addr == "" {
		h.Addr = ":8080"
	}
}

// Byte size bounds for ingestion uploads.
const (
	defaultMaxUploadBytes = 15 << 20  // 15 MiB
	maxMaxUploadBytes     = 256 << 20 // 256 MiB
)

// IngestConfig contains recording ingestion limits.
type IngestConfig struct {
	// MaxUploadBytes caps the size of a single submitted recording.
	MaxUploadBytes int64 `env:"INGEST_MAX_UPLOAD_BYTES" envDefault:"15728640"`
}

// Sanitize applies guardrails to ingestion configuration values.
func (i *IngestConfig) Sanitize() {
	if i.MaxUploadBytes <= 0 {
		i.MaxUploadBytes = defaultMaxUploadBytes
	}
	if i.MaxUploadBytes > maxMaxUploadBytes {
		i.MaxUploadBytes = maxMaxUploadBytes
	}
}
