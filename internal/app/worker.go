package app

import (
	"log/slog"
	"time"

	"github.com/geocoder89/taskhub/internal/config"
	"github.com/geocoder89/taskhub/internal/observability"
	"github.com/geocoder89/taskhub/internal/queue/worker"
)

// NewWorker runs the cascade follow-ups queued in b.Jobs.
func NewWorker(cfg config.Config, log *slog.Logger, b *Backends, workerID string, prom *observability.Prom) *worker.Worker {
	return worker.New(worker.Config{
		PollInterval:        cfg.WorkerPollInterval,
		WorkerID:            workerID,
		Concurrency:         cfg.WorkerConcurrency,
		ShutdownGrace:       10 * time.Second,
		LockTTL:             5 * time.Minute,
		MaintenanceInterval: time.Minute,
		JobTimeout:          30 * time.Second,
	}, worker.Deps{
		Jobs:     b.Jobs,
		Sessions: b.Sessions,
		Avatars:  b.Avatars,
		Pruner:   b.Pruner,
		Prom:     prom,
		Metrics:  observability.NewJobMetrics(),
		Log:      log,
		Ping:     b.Ping,
	})
}
