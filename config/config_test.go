package config

import (
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestParseServices(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    map[ServiceMode]bool
		expectError bool
	}{
		{
			name:  "single service - http",
			input: "http",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP: true,
			},
			expectError: false,
		},
		{
			name:  "single service - worker",
			input: "worker",
			expected: map[ServiceMode]bool{
				ServiceModeWorker: true,
			},
			expectError: false,
		},
		{
			name:  "multiple services - http and worker",
			input: "http,worker",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:   true,
				ServiceModeWorker: true,
			},
			expectError: false,
		},
		{
			name:  "services with spaces",
			input: " http , worker ",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:   true,
				ServiceModeWorker: true,
			},
			expectError: false,
		},
		{
			name:  "duplicate services",
			input: "http,http,worker",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:   true,
				ServiceModeWorker: true,
			},
			expectError: false,
		},
		{
			name:        "empty string",
			input:       "",
			expected:    nil,
			expectError: true,
		},
		{
			name:        "only spaces and commas",
			input:       " , , ",
			expected:    nil,
			expectError: true,
		},
		{
			name:        "invalid service name",
			input:       "http,invalid-service",
			expected:    nil,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseServices(tt.input)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}

			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}

			if len(result) != len(tt.expected) {
				t.Errorf("expected %d services, got %d", len(tt.expected), len(result))
				return
			}

			for service, expected := range tt.expected {
				if result[service] != expected {
					t.Errorf("expected service %s to be %v, got %v", service, expected, result[service])
				}
			}
		})
	}
}

func TestConfig_ServiceEnabledMethods(t *testing.T) {
	tests := []struct {
		name           string
		services       string
		expectedHTTP   bool
		expectedWorker bool
	}{
		{
			name:           "default - http only",
			services:       "http",
			expectedHTTP:   true,
			expectedWorker: false,
		},
		{
			name:           "http and worker",
			services:       "http,worker",
			expectedHTTP:   true,
			expectedWorker: true,
		},
		{
			name:           "worker only",
			services:       "worker",
			expectedHTTP:   false,
			expectedWorker: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := AppConfig{Services: tt.services}

			if cfg.IsHTTPServerEnabled() != tt.expectedHTTP {
				t.Errorf("IsHTTPServerEnabled(): expected %v, got %v", tt.expectedHTTP, cfg.IsHTTPServerEnabled())
			}

			if cfg.IsWorkerEnabled() != tt.expectedWorker {
				t.Errorf("IsWorkerEnabled(): expected %v, got %v", tt.expectedWorker, cfg.IsWorkerEnabled())
			}
		})
	}
}

func TestConfig_ServiceEnabledMethodsWithInvalidConfig(t *testing.T) {
	cfg := AppConfig{Services: "invalid-service"}

	if cfg.IsHTTPServerEnabled() != false {
		t.Errorf("IsHTTPServerEnabled() with invalid config: expected false, got true")
	}

	if cfg.IsWorkerEnabled() != false {
		t.Errorf("IsWorkerEnabled() with invalid config: expected false, got true")
	}
}

func TestAppConfig_ParseEnv(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_NAME", "uploads_test")
	t.Setenv("BLOB_ENDPOINT", "minio.internal:9000")
	t.Setenv("BLOB_BUCKET", "recordings")
	t.Setenv("INFERENCE_SERVER_URL", "http://whisper.internal:8090/")
	t.Setenv("WORKER_POLL_INTERVAL", "10s")
	t.Setenv("WORKER_CLAIM_TTL", "90s")
	t.Setenv("SERVICES", "http,worker")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Postgres.Host != "db.internal" {
		t.Errorf("expected db host db.internal, got %q", cfg.Postgres.Host)
	}
	if cfg.Postgres.Name != "uploads_test" {
		t.Errorf("expected db name uploads_test, got %q", cfg.Postgres.Name)
	}
	if cfg.Blob.Endpoint != "minio.internal:9000" {
		t.Errorf("expected blob endpoint minio.internal:9000, got %q", cfg.Blob.Endpoint)
	}
	if cfg.Blob.Bucket != "recordings" {
		t.Errorf("expected blob bucket recordings, got %q", cfg.Blob.Bucket)
	}
	if cfg.Inference.ServerURL != "http://whisper.internal:8090" {
		t.Errorf("expected trailing slash trimmed, got %q", cfg.Inference.ServerURL)
	}
	if cfg.Worker.Interval != 10*time.Second {
		t.Errorf("expected worker interval 10s, got %v", cfg.Worker.Interval)
	}
	if cfg.Worker.ClaimTTL != 90*time.Second {
		t.Errorf("expected claim ttl 90s, got %v", cfg.Worker.ClaimTTL)
	}
	if !cfg.IsHTTPServerEnabled() || !cfg.IsWorkerEnabled() {
		t.Error("expected both http and worker services enabled")
	}
}

func TestValidServiceModes(t *testing.T) {
	modes := ValidServiceModes()
	expected := []ServiceMode{
		ServiceModeHTTP,
		ServiceModeWorker,
	}

	if len(modes) != len(expected) {
		t.Errorf("expected %d service modes, got %d", len(expected), len(modes))
	}

	for i, mode := range modes {
		if mode != expected[i] {
			t.Errorf("expected service mode %s at index %d, got %s", expected[i], i, mode)
		}
	}
}

func TestWorkerConfig_Sanitize(t *testing.T) {
	cfg := WorkerConfig{
		Interval:    0,
		ClaimTTL:    time.Second,
		BatchSize:   0,
		Concurrency: 16,
	}

	cfg.Sanitize()

	if cfg.Interval < time.Second {
		t.Fatalf("expected interval clamped to at least 1s, got %v", cfg.Interval)
	}
	if cfg.ClaimTTL < 5*time.Second {
		t.Fatalf("expected claim ttl clamped to at least 5s, got %v", cfg.ClaimTTL)
	}
	if cfg.BatchSize != 1 {
		t.Fatalf("expected batch size clamped to 1, got %d", cfg.BatchSize)
	}
	if cfg.Concurrency != cfg.BatchSize {
		t.Fatalf("expected concurrency clamped to batch size, got %d", cfg.Concurrency)
	}
}

func TestIngestConfig_Sanitize(t *testing.T) {
	cfg := IngestConfig{MaxUploadBytes: 0}
	cfg.Sanitize()
	if cfg.MaxUploadBytes != defaultMaxUploadBytes {
		t.Fatalf("expected default upload cap, got %d", cfg.MaxUploadBytes)
	}

	cfg = IngestConfig{MaxUploadBytes: 1 << 40}
	cfg.Sanitize()
	if cfg.MaxUploadBytes != maxMaxUploadBytes {
		t.Fatalf("expected upload cap clamped, got %d", cfg.MaxUploadBytes)
	}
}

func TestObservabilityMetricsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " ",
	}

	cfg.Sanitize()

	if cfg.Enabled {
		t.Fatalf("expected enabled to be false when address is empty")
	}

	cfg = ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " statsd:1234 ",
	}

	cfg.Sanitize()

	if !cfg.IsEnabled() {
		t.Fatalf("expected metrics to remain enabled")
	}
	if cfg.StatsdAddress != "statsd:1234" {
		t.Fatalf("expected address to be trimmed, got %q", cfg.StatsdAddress)
	}
}
