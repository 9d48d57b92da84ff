package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP server.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeWorker runs the detection worker loop.
	ServiceModeWorker ServiceMode = "worker"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeWorker,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeWorker:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: http, worker)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// WorkerConfig contains detection worker loop configuration.
type WorkerConfig struct {
	// Interval is the worker tick interval. Each tick requeues stale claims
	// then claims and processes up to BatchSize uploads.
	Interval time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"30s"`

	// ClaimTTL is the staleness threshold stamped on each claim. A claim
	// older than this is eligible for requeue by any worker.
	ClaimTTL time.Duration `env:"WORKER_CLAIM_TTL" envDefault:"5m"`

	// BatchSize is the maximum number of uploads to claim per tick.
	BatchSize int `env:"WORKER_BATCH_SIZE" envDefault:"4"`

	// Concurrency is the number of uploads processed in parallel per tick.
	Concurrency int `env:"WORKER_CONCURRENCY" envDefault:"1"`
}

// Sanitize applies guardrails to worker configuration values.
func (w *WorkerConfig) Sanitize() {
	if w.Interval < time.Second {
		w.Interval = time.Second
	}
	if w.ClaimTTL < 5*time.Second {
		w.ClaimTTL = 5 * time.Second
	}
	if w.BatchSize < 1 {
		w.BatchSize = 1
	}
	if w.Concurrency < 1 {
		w.Concurrency = 1
	}
	if w.Concurrency > w.BatchSize {
		w.Concurrency = w.BatchSize
	}
}
