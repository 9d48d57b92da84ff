package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/linguavox/linguavox/config"
	"github.com/linguavox/linguavox/internal/adapters/worker"
	"github.com/linguavox/linguavox/internal/observability/statsd"
)

// WorkerRunnerConfig contains configuration for the detection worker.
type WorkerRunnerConfig struct {
	Services ServiceContainer
	Logger   *slog.Logger
	Config   config.WorkerConfig
	Metrics  statsd.Sink
}

// RunWorker starts the detection worker loop and blocks until the context is
// cancelled.
func RunWorker(ctx context.Context, cfg WorkerRunnerConfig) error {
	runner, err := worker.NewRunner(worker.RunnerOptions{
		Service:  cfg.Services.Uploads,
		Blobs:    cfg.Services.Blobs,
		Detector: cfg.Services.Detector,
		Config:   cfg.Config,
		Logger:   cfg.Logger,
		Metrics:  cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create worker runner: %w", err)
	}

	if runErr := runner.Run(ctx); runErr != nil {
		return fmt.Errorf("run worker: %w", runErr)
	}
	return nil
}
