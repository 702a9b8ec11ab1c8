package memory

import (
	"context"
	"slices"
	"time"

	"github.com/geocoder89/taskhub/internal/domain/job"
)

type JobsRepo struct {
	s *Store
}

func (r *JobsRepo) Create(ctx context.Context, req job.CreateRequest) (job.Job, error) {
	defer r.s.lock(ctx)()

	j := job.New(req)
	r.s.jobs[j.ID] = j
	return j, nil
}

func (r *JobsRepo) Get(ctx context.Context, id string) (job.Job, error) {
	defer r.s.lock(ctx)()

	j, ok := r.s.jobs[id]
	if !ok {
		return job.Job{}, job.ErrJobNotFound
	}
	return j, nil
}

func (r *JobsRepo) ClaimNext(ctx context.Context, workerID string) (job.Job, error) {
	defer r.s.lock(ctx)()

	now := time.Now().UTC()

	ready := make([]job.Job, 0)
	for _, j := range r.s.jobs {
		if j.Ready(now) {
			ready = append(ready, j)
		}
	}
	if len(ready) == 0 {
		return job.Job{}, job.ErrJobNotFound
	}

	slices.SortFunc(ready, func(a, b job.Job) int {
		if c := a.RunAt.Compare(b.RunAt); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	j := ready[0]
	j.Status = job.StatusProcessing
	j.LockedAt = &now
	j.LockedBy = &workerID
	j.UpdatedAt = now
	r.s.jobs[j.ID] = j

	return j, nil
}

func (r *JobsRepo) update(ctx context.Context, id string, fn func(*job.Job)) error {
	defer r.s.lock(ctx)()

	j, ok := r.s.jobs[id]
	if !ok {
		return job.ErrJobNotFound
	}

	fn(&j)
	j.UpdatedAt = time.Now().UTC()
	r.s.jobs[id] = j
	return nil
}

func (r *JobsRepo) MarkDone(ctx context.Context, id string) error {
	return r.update(ctx, id, func(j *job.Job) {
		j.Status = job.StatusDone
		j.LockedAt, j.LockedBy, j.LastError = nil, nil, nil
	})
}

func (r *JobsRepo) MarkFailed(ctx context.Context, id string, errMsg string) error {
	return r.update(ctx, id, func(j *job.Job) {
		j.Status = job.StatusFailed
		j.LockedAt, j.LockedBy = nil, nil
		j.LastError = &errMsg
	})
}

func (r *JobsRepo) Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error {
	return r.update(ctx, id, func(j *job.Job) {
		j.Status = job.StatusPending
		j.Attempts++
		j.RunAt = runAt
		j.LockedAt, j.LockedBy = nil, nil
		j.LastError = &errMsg
	})
}

func (r *JobsRepo) RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error) {
	defer r.s.lock(ctx)()

	cutoff := time.Now().UTC().Add(-lockTTL)
	var n int64
	for id, j := range r.s.jobs {
		if j.Status == job.StatusProcessing && j.LockedAt != nil && j.LockedAt.Before(cutoff) {
			j.Status = job.StatusPending
			j.LockedAt, j.LockedBy = nil, nil
			r.s.jobs[id] = j
			n++
		}
	}
	return n, nil
}
