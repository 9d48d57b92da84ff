package config

import (
	"strings"
	"time"
)

// InferenceConfig contains detection backend configuration.
type InferenceConfig struct {
	// ServerURL is the base URL of the whisper inference server.
	ServerURL string `env:"SERVER_URL" envDefault:"http://localhost:8090"`

	// Timeout bounds a single inference call. Recordings that take longer
	// than this to transcribe fail with a timeout error code.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"2m"`

	// Temperature passed to the inference server.
	Temperature float64 `env:"TEMPERATURE" envDefault:"0.0"`
}

// Sanitize applies guardrails to inference configuration values.
func (i *InferenceConfig) Sanitize() {
	i.ServerURL = strings.TrimRight(strings.TrimSpace(i.ServerURL), "/")
	if i.Timeout <= 0 {
		i.Timeout = 2 * time.Minute
	}
	if i.Temperature < 0 {
		i.Temperature = 0
	}
	if i.Temperature > 1 {
		i.Temperature = 1
	}
}
