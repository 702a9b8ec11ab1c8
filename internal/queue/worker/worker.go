// Package worker runs the follow-up jobs left by account deletion.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/geocoder89/taskhub/internal/domain/job"
	"github.com/geocoder89/taskhub/internal/jobs"
	"github.com/geocoder89/taskhub/internal/observability"
)

type JobsRepository interface {
	ClaimNext(ctx context.Context, workerID string) (job.Job, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error
	RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error)
}

type SessionPurger interface {
	DropAll(ctx context.Context, userID string) error
}

type AvatarDeleter interface {
	Delete(ctx context.Context, key string) error
}

// SessionPruner is implemented by registries whose expired entries are not
// removed by the store on its own (the Postgres table).
type SessionPruner interface {
	PruneExpired(ctx context.Context) (int64, error)
}

type Config struct {
	PollInterval  time.Duration
	WorkerID      string
	Concurrency   int
	ShutdownGrace time.Duration
	// LockTTL is how long a job may stay processing before it is assumed
	// orphaned and requeued.
	LockTTL time.Duration
	// MaintenanceInterval spaces stale-lock requeues and session pruning.
	MaintenanceInterval time.Duration
	JobTimeout          time.Duration
}

type Deps struct {
	Jobs     JobsRepository
	Sessions SessionPurger
	Avatars  AvatarDeleter
	Pruner   SessionPruner // optional
	Prom     *observability.Prom
	Metrics  *observability.JobMetrics
	Log      *slog.Logger
	// Ping backs the readiness probe.
	Ping func(ctx context.Context) error
}

type Worker struct {
	cfg  Config
	deps Deps

	readyMu sync.RWMutex
	ready   bool
}

func New(cfg Config, deps Deps) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	if cfg.MaintenanceInterval <= 0 {
		cfg.MaintenanceInterval = time.Minute
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Second
	}
	if deps.Metrics == nil {
		deps.Metrics = observability.NewJobMetrics()
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}

	return &Worker{cfg: cfg, deps: deps}
}

func (w *Worker) setReady(v bool) {
	w.readyMu.Lock()
	w.ready = v
	w.readyMu.Unlock()
}

func (w *Worker) isReady() bool {
	w.readyMu.RLock()
	defer w.readyMu.RUnlock()
	return w.ready
}

// Run polls for jobs with cfg.Concurrency loops until ctx is cancelled, then
// waits up to ShutdownGrace for jobs in progress.
func (w *Worker) Run(ctx context.Context) error {
	w.setReady(true)
	defer w.setReady(false)

	// jobs in flight keep running after ctx is cancelled, bounded by the grace
	execCtx, cancelExec := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelExec()

	var wg sync.WaitGroup

	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx, execCtx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.maintenance(ctx)
	}()

	<-ctx.Done()
	w.setReady(false)
	w.deps.Log.Info("worker received shutdown signal")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(w.cfg.ShutdownGrace):
		cancelExec()
		<-done
		return errors.New("shutdown grace exceeded, in-flight jobs cancelled")
	}
}

func (w *Worker) loop(ctx, execCtx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		// drain everything that is ready before sleeping again
		for ctx.Err() == nil {
			processed, err := w.ProcessOne(execCtx)
			if err != nil {
				w.deps.Log.Error("process job", "err", err)
			}
			if !processed {
				break
			}
		}
	}
}

func (w *Worker) maintenance(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.MaintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunMaintenance(ctx)
		}
	}
}

// RunMaintenance requeues orphaned jobs and prunes expired sessions.
func (w *Worker) RunMaintenance(ctx context.Context) {
	n, err := w.deps.Jobs.RequeueStaleProcessing(ctx, w.cfg.LockTTL)
	if err != nil {
		w.deps.Log.Error("requeue stale jobs", "err", err)
	} else if n > 0 {
		w.deps.Log.Warn("requeued stale jobs", "count", n)
	}

	if w.deps.Pruner == nil {
		return
	}

	pruned, err := w.deps.Pruner.PruneExpired(ctx)
	if err != nil {
		w.deps.Log.Error("prune expired sessions", "err", err)
		return
	}
	if pruned > 0 {
		w.deps.Log.Debug("pruned expired sessions", "count", pruned)
	}
}

// ProcessOne claims and runs at most one job. It reports whether a job was
// claimed.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	j, err := w.deps.Jobs.ClaimNext(claimCtx, w.cfg.WorkerID)
	cancel()

	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("claim: %w", err)
	}

	w.deps.Metrics.IncClaimed()
	if w.deps.Prom != nil {
		w.deps.Prom.JobsInFlight.Inc()
		defer w.deps.Prom.JobsInFlight.Dec()
	}

	log := w.deps.Log.With("job_id", j.ID, "job_type", j.Type, "attempt", j.Attempts+1)

	start := time.Now()
	execCtx, cancelExec := context.WithTimeout(ctx, w.cfg.JobTimeout)
	err = w.execute(execCtx, j)
	cancelExec()
	elapsed := time.Since(start)

	w.deps.Metrics.ObserveDuration(elapsed)

	if err != nil {
		result := w.handleFailure(ctx, j, err)
		w.record(j.Type, result, elapsed)
		log.Warn("job failed", "result", result, "err", err)
		return true, nil
	}

	if err := w.deps.Jobs.MarkDone(ctx, j.ID); err != nil {
		_ = w.deps.Jobs.MarkFailed(ctx, j.ID, "mark_done_failed: "+err.Error())
		return true, fmt.Errorf("mark done %s: %w", j.ID, err)
	}

	w.deps.Metrics.IncDone()
	w.record(j.Type, "done", elapsed)
	log.Info("job done", "duration_ms", elapsed.Milliseconds())

	return true, nil
}

func (w *Worker) record(jobType, result string, d time.Duration) {
	if w.deps.Prom == nil {
		return
	}
	w.deps.Prom.JobResults.WithLabelValues(jobType, result).Inc()
	w.deps.Prom.JobDuration.WithLabelValues(jobType, result).Observe(d.Seconds())
}

// errPermanent marks failures that retrying cannot fix.
type errPermanent struct{ err error }

func (e errPermanent) Error() string { return e.err.Error() }
func (e errPermanent) Unwrap() error { return e.err }

func (w *Worker) execute(ctx context.Context, j job.Job) error {
	payload, err := jobs.DecodePayload(j)
	if err != nil {
		return errPermanent{err}
	}

	switch p := payload.(type) {
	case jobs.PurgeSessionsPayload:
		return w.deps.Sessions.DropAll(ctx, p.UserID)
	case jobs.DeleteAvatarPayload:
		return w.deps.Avatars.Delete(ctx, p.Key)
	default:
		return errPermanent{fmt.Errorf("%w: %s", jobs.ErrInvalidJobType, j.Type)}
	}
}

// handleFailure reschedules with backoff, or fails the job for good once it
// has used its attempts or cannot succeed at all.
func (w *Worker) handleFailure(ctx context.Context, j job.Job, cause error) string {
	msg := cause.Error()

	var perm errPermanent
	if errors.As(cause, &perm) {
		w.deps.Metrics.IncUnknown()
		if err := w.deps.Jobs.MarkFailed(ctx, j.ID, msg); err != nil {
			w.deps.Log.Error("mark failed", "job_id", j.ID, "err", err)
		}
		return "failed"
	}

	if j.LastAttempt() {
		w.deps.Metrics.IncExhausted()
		if err := w.deps.Jobs.MarkFailed(ctx, j.ID, msg); err != nil {
			w.deps.Log.Error("mark failed", "job_id", j.ID, "err", err)
		}
		return "failed"
	}

	w.deps.Metrics.IncRetried()
	runAt := time.Now().UTC().Add(ExponentialBackoff(j.Attempts))
	if err := w.deps.Jobs.Reschedule(ctx, j.ID, runAt, msg); err != nil {
		w.deps.Log.Error("reschedule", "job_id", j.ID, "err", err)
	}
	return "retry"
}
