// Package cascade deletes an account together with everything it owns.
//
// The order is fixed: tasks, then the user row, then the session registry and
// the stored avatar. The first two steps and the follow-up jobs for the last
// two commit in one transaction. The follow-ups are then attempted inline;
// whatever does not finish is retried by the worker, and every step is safe
// to repeat.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/geocoder89/taskhub/internal/domain/job"
	"github.com/geocoder89/taskhub/internal/domain/user"
	"github.com/geocoder89/taskhub/internal/jobs"
)

const (
	StepSessions = "sessions"
	StepAvatar   = "avatar"

	ResultInline   = "inline"
	ResultDeferred = "deferred"
)

type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type UsersRepo interface {
	Delete(ctx context.Context, id string) (user.User, error)
}

type TasksRepo interface {
	DeleteAllByOwner(ctx context.Context, ownerID string) (int64, error)
}

type JobsRepo interface {
	Create(ctx context.Context, req job.CreateRequest) (job.Job, error)
	MarkDone(ctx context.Context, id string) error
}

type SessionDropper interface {
	DropAll(ctx context.Context, userID string) error
}

type AvatarDeleter interface {
	Delete(ctx context.Context, key string) error
}

// FollowUpObserver is told how each follow-up step ended.
type FollowUpObserver func(step, result string)

type Coordinator struct {
	tx       Transactor
	users    UsersRepo
	tasks    TasksRepo
	jobs     JobsRepo
	sessions SessionDropper
	avatars  AvatarDeleter
	delay    time.Duration
	log      *slog.Logger
	observe  FollowUpObserver
	now      func() time.Time
}

type Deps struct {
	Tx       Transactor
	Users    UsersRepo
	Tasks    TasksRepo
	Jobs     JobsRepo
	Sessions SessionDropper
	Avatars  AvatarDeleter
	// FollowUpDelay is how long the worker leaves a follow-up alone so the
	// inline attempt can finish first.
	FollowUpDelay time.Duration
	Log           *slog.Logger
	Observe       FollowUpObserver
}

func NewCoordinator(d Deps) *Coordinator {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Observe == nil {
		d.Observe = func(string, string) {}
	}

	return &Coordinator{
		tx:       d.Tx,
		users:    d.Users,
		tasks:    d.Tasks,
		jobs:     d.Jobs,
		sessions: d.Sessions,
		avatars:  d.Avatars,
		delay:    d.FollowUpDelay,
		log:      d.Log,
		observe:  d.Observe,
		now:      time.Now,
	}
}

// DeleteAccount removes userID and everything it owns. If the transactional
// part fails nothing has changed and the error is returned. Failures after
// commit are logged and left to the worker.
func (c *Coordinator) DeleteAccount(ctx context.Context, userID string) (user.User, error) {
	var (
		deleted    user.User
		purgeJob   job.Job
		avatarJob  *job.Job
		tasksCount int64
	)

	err := c.tx.InTx(ctx, func(ctx context.Context) error {
		n, err := c.tasks.DeleteAllByOwner(ctx, userID)
		if err != nil {
			return fmt.Errorf("delete tasks: %w", err)
		}
		tasksCount = n

		deleted, err = c.users.Delete(ctx, userID)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}

		runAt := c.now().UTC().Add(c.delay)

		req, err := jobs.NewRequest(jobs.JobPurgeSessions, jobs.PurgeSessionsPayload{UserID: userID}, runAt)
		if err != nil {
			return err
		}
		if purgeJob, err = c.jobs.Create(ctx, req); err != nil {
			return fmt.Errorf("enqueue purge_sessions: %w", err)
		}

		if deleted.AvatarKey != "" {
			req, err := jobs.NewRequest(jobs.JobDeleteAvatar, jobs.DeleteAvatarPayload{UserID: userID, Key: deleted.AvatarKey}, runAt)
			if err != nil {
				return err
			}
			j, err := c.jobs.Create(ctx, req)
			if err != nil {
				return fmt.Errorf("enqueue delete_avatar: %w", err)
			}
			avatarJob = &j
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, apperr.Authentication(err)
		}
		return user.User{}, err
	}

	c.log.InfoContext(ctx, "account deleted", "user_id", userID, "tasks_deleted", tasksCount)

	c.followUp(ctx, StepSessions, purgeJob.ID, func() error {
		return c.sessions.DropAll(ctx, userID)
	})

	if avatarJob != nil {
		c.followUp(ctx, StepAvatar, avatarJob.ID, func() error {
			return c.avatars.Delete(ctx, deleted.AvatarKey)
		})
	}

	return deleted, nil
}

func (c *Coordinator) followUp(ctx context.Context, step, jobID string, fn func() error) {
	if err := fn(); err != nil {
		c.log.WarnContext(ctx, "cascade follow-up deferred to worker", "step", step, "job_id", jobID, "err", err)
		c.observe(step, ResultDeferred)
		return
	}

	if err := c.jobs.MarkDone(ctx, jobID); err != nil {
		// the worker will run the step again, which is harmless
		c.log.WarnContext(ctx, "mark follow-up done", "step", step, "job_id", jobID, "err", err)
	}
	c.observe(step, ResultInline)
}
