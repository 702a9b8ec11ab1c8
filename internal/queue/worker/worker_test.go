package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/taskhub/internal/domain/job"
	"github.com/geocoder89/taskhub/internal/jobs"
	"github.com/geocoder89/taskhub/internal/repo/memory"
	"github.com/geocoder89/taskhub/internal/session"
	"github.com/geocoder89/taskhub/internal/storage/avatar"
	"github.com/gin-gonic/gin"
)

type plainDigest struct{}

func (plainDigest) Digest(raw string) string { return raw }

type flakySessions struct {
	err   error
	calls int
}

func (f *flakySessions) DropAll(context.Context, string) error {
	f.calls++
	return f.err
}

func newTestWorker(t *testing.T, store *memory.Store, sessions SessionPurger, avatars AvatarDeleter) *Worker {
	t.Helper()
	return New(Config{WorkerID: "test-worker"}, Deps{
		Jobs:     store.Jobs(),
		Sessions: sessions,
		Avatars:  avatars,
		Log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func enqueue(t *testing.T, store *memory.Store, typ jobs.JobType, payload any, maxAttempts int) job.Job {
	t.Helper()

	req, err := jobs.NewRequest(typ, payload, time.Time{})
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.MaxAttempts = maxAttempts

	j, err := store.Jobs().Create(context.Background(), req)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return j
}

func TestProcessOne_PurgeSessions(t *testing.T) {
	store := memory.NewStore()
	reg := session.NewMemoryRegistry(plainDigest{})
	ctx := context.Background()

	if err := reg.Record(ctx, "u1", "tok", time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	j := enqueue(t, store, jobs.JobPurgeSessions, jobs.PurgeSessionsPayload{UserID: "u1"}, 0)
	w := newTestWorker(t, store, reg, avatar.NewMemoryStore())

	processed, err := w.ProcessOne(ctx)
	if err != nil || !processed {
		t.Fatalf("expected a processed job, got processed=%v err=%v", processed, err)
	}

	if reg.HasEntry("u1") {
		t.Fatalf("sessions of u1 should be gone")
	}

	got, _ := store.Jobs().Get(ctx, j.ID)
	if got.Status != job.StatusDone {
		t.Fatalf("expected done, got %s", got.Status)
	}

	processed, err = w.ProcessOne(ctx)
	if err != nil || processed {
		t.Fatalf("queue should be empty, got processed=%v err=%v", processed, err)
	}
}

func TestProcessOne_DeleteAvatar(t *testing.T) {
	store := memory.NewStore()
	avatars := avatar.NewMemoryStore()
	ctx := context.Background()

	_ = avatars.Put(ctx, avatar.Key("u1"), "image/png", []byte("x"))
	enqueue(t, store, jobs.JobDeleteAvatar, jobs.DeleteAvatarPayload{UserID: "u1", Key: avatar.Key("u1")}, 0)

	w := newTestWorker(t, store, &flakySessions{}, avatars)
	if _, err := w.ProcessOne(ctx); err != nil {
		t.Fatal(err)
	}

	if avatars.Len() != 0 {
		t.Fatalf("avatar should be deleted")
	}
}

func TestProcessOne_FailureIsRescheduled(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	sessions := &flakySessions{err: errors.New("redis down")}

	j := enqueue(t, store, jobs.JobPurgeSessions, jobs.PurgeSessionsPayload{UserID: "u1"}, 5)
	w := newTestWorker(t, store, sessions, avatar.NewMemoryStore())

	before := time.Now()
	if _, err := w.ProcessOne(ctx); err != nil {
		t.Fatal(err)
	}

	got, _ := store.Jobs().Get(ctx, j.ID)
	if got.Status != job.StatusPending || got.Attempts != 1 {
		t.Fatalf("expected pending with 1 attempt, got %s/%d", got.Status, got.Attempts)
	}
	if !got.RunAt.After(before.Add(time.Second)) {
		t.Fatalf("expected backoff, run_at=%v", got.RunAt)
	}
	if got.LastError == nil || *got.LastError != "redis down" {
		t.Fatalf("expected last error recorded, got %v", got.LastError)
	}

	// not due yet
	processed, _ := w.ProcessOne(ctx)
	if processed {
		t.Fatalf("rescheduled job must wait for its run_at")
	}

	if w.deps.Metrics.Snapshot().Retried != 1 {
		t.Fatalf("expected one retry counted")
	}
}

func TestProcessOne_LastAttemptFails(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	j := enqueue(t, store, jobs.JobPurgeSessions, jobs.PurgeSessionsPayload{UserID: "u1"}, 1)
	w := newTestWorker(t, store, &flakySessions{err: errors.New("boom")}, avatar.NewMemoryStore())

	if _, err := w.ProcessOne(ctx); err != nil {
		t.Fatal(err)
	}

	got, _ := store.Jobs().Get(ctx, j.ID)
	if got.Status != job.StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
}

func TestProcessOne_UnknownTypeFailsImmediately(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	j, err := store.Jobs().Create(ctx, job.CreateRequest{Type: "send_newsletter", Payload: json.RawMessage(`{}`)})
	if err != nil {
		t.Fatal(err)
	}

	sessions := &flakySessions{}
	w := newTestWorker(t, store, sessions, avatar.NewMemoryStore())

	if _, err := w.ProcessOne(ctx); err != nil {
		t.Fatal(err)
	}

	got, _ := store.Jobs().Get(ctx, j.ID)
	if got.Status != job.StatusFailed || got.Attempts != 0 {
		t.Fatalf("expected failed without retries, got %s/%d", got.Status, got.Attempts)
	}
	if sessions.calls != 0 {
		t.Fatalf("no handler should have run")
	}
}

func TestExponentialBackoff(t *testing.T) {
	cases := []struct {
		attempt  int
		min, max time.Duration
	}{
		{0, 2 * time.Second, 2*time.Second + 250*time.Millisecond},
		{1, 4 * time.Second, 4*time.Second + 250*time.Millisecond},
		{3, 16 * time.Second, 16*time.Second + 250*time.Millisecond},
		{30, 5 * time.Minute, 5*time.Minute + 250*time.Millisecond},
		{5000, 5 * time.Minute, 5*time.Minute + 250*time.Millisecond},
	}

	for _, tc := range cases {
		d := ExponentialBackoff(tc.attempt)
		if d < tc.min || d >= tc.max {
			t.Fatalf("attempt %d: %v not in [%v, %v)", tc.attempt, d, tc.min, tc.max)
		}
	}
}

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	w := newTestWorker(t, store, &flakySessions{}, avatar.NewMemoryStore())
	h := w.HealthHandler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz before Run should be 503, got %d", rec.Code)
	}

	w.setReady(true)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz when running should be 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics/jobs", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: %d", rec.Code)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	store := memory.NewStore()
	reg := session.NewMemoryRegistry(plainDigest{})
	enqueue(t, store, jobs.JobPurgeSessions, jobs.PurgeSessionsPayload{UserID: "u1"}, 0)

	w := New(Config{WorkerID: "w", PollInterval: 5 * time.Millisecond, Concurrency: 2}, Deps{
		Jobs:     store.Jobs(),
		Sessions: reg,
		Avatars:  avatar.NewMemoryStore(),
		Log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for w.deps.Metrics.Snapshot().Done == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop")
	}

	if w.deps.Metrics.Snapshot().Done != 1 {
		t.Fatalf("expected the queued job to be done")
	}
}

type countingPruner struct {
	calls int
	err   error
}

func (p *countingPruner) PruneExpired(context.Context) (int64, error) {
	p.calls++
	return 3, p.err
}

func TestRunMaintenance_PrunesSessions(t *testing.T) {
	store := memory.NewStore()
	pruner := &countingPruner{}

	w := New(Config{WorkerID: "test-worker"}, Deps{
		Jobs:   store.Jobs(),
		Pruner: pruner,
		Log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	w.RunMaintenance(context.Background())
	if pruner.calls != 1 {
		t.Fatalf("expected one prune, got %d", pruner.calls)
	}

	pruner.err = errors.New("db down")
	w.RunMaintenance(context.Background())
	if pruner.calls != 2 {
		t.Fatalf("prune errors must not stop maintenance, got %d calls", pruner.calls)
	}
}
