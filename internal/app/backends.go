// Package app assembles the configured backends into the API and the worker.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/geocoder89/taskhub/internal/config"
	"github.com/geocoder89/taskhub/internal/db"
	"github.com/geocoder89/taskhub/internal/domain/job"
	"github.com/geocoder89/taskhub/internal/domain/task"
	"github.com/geocoder89/taskhub/internal/domain/user"
	"github.com/geocoder89/taskhub/internal/http/handlers"
	"github.com/geocoder89/taskhub/internal/observability"
	"github.com/geocoder89/taskhub/internal/queue/redisclient"
	"github.com/geocoder89/taskhub/internal/queue/worker"
	"github.com/geocoder89/taskhub/internal/repo/memory"
	"github.com/geocoder89/taskhub/internal/repo/postgres"
	"github.com/geocoder89/taskhub/internal/session"
	"github.com/geocoder89/taskhub/internal/storage/avatar"
)

type UsersStore interface {
	Create(ctx context.Context, u user.User) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	Update(ctx context.Context, id string, c user.Changes) (user.User, error)
	Delete(ctx context.Context, id string) (user.User, error)
}

type TasksStore interface {
	Create(ctx context.Context, t task.Task) (task.Task, error)
	GetByID(ctx context.Context, ownerID, id string) (task.Task, error)
	List(ctx context.Context, ownerID string, f task.ListFilter) ([]task.Task, error)
	Update(ctx context.Context, ownerID, id string, req task.UpdateRequest) (task.Task, error)
	Delete(ctx context.Context, ownerID, id string) (task.Task, error)
	DeleteAllByOwner(ctx context.Context, ownerID string) (int64, error)
}

type JobsStore interface {
	worker.JobsRepository
	Create(ctx context.Context, req job.CreateRequest) (job.Job, error)
}

type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Backends is everything that holds state, picked by STORE_DRIVER,
// SESSION_BACKEND and AVATAR_BACKEND.
type Backends struct {
	Users    UsersStore
	Tasks    TasksStore
	Jobs     JobsStore
	Tx       Transactor
	Sessions session.Registry
	// Pruner is set only when sessions live in Postgres.
	Pruner  worker.SessionPruner
	Avatars avatar.Store
	Checks  []handlers.Check

	closers []func()
}

type OpenOptions struct {
	// Migrate applies the schema before any repository is used.
	Migrate bool
	Digest  session.Digester
	Prom    *observability.Prom
}

// Open connects every backend cfg names. On error whatever was already
// opened is closed again.
func Open(ctx context.Context, cfg config.Config, log *slog.Logger, opts OpenOptions) (_ *Backends, err error) {
	b := &Backends{}
	defer func() {
		if err != nil {
			b.Close()
		}
	}()

	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := db.NewPool(ctx, cfg.DBURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.closers = append(b.closers, pool.Close)

		if opts.Migrate {
			if err := db.Migrate(ctx, pool); err != nil {
				return nil, fmt.Errorf("migrate: %w", err)
			}
			log.Info("migrations applied")
		}

		b.Users = postgres.NewUsersRepo(pool, opts.Prom)
		b.Tasks = postgres.NewTasksRepo(pool, opts.Prom)
		b.Jobs = postgres.NewJobsRepo(pool, opts.Prom)
		b.Tx = postgres.NewTransactor(pool)
		b.Checks = append(b.Checks, handlers.Check{Name: "postgres", Ping: pool.Ping})

		if cfg.SessionBackend == config.DriverPostgres {
			reg := postgres.NewSessionsRepo(pool, opts.Prom, opts.Digest)
			b.Sessions = reg
			b.Pruner = reg
		}
	default:
		store := memory.NewStore()
		b.Users = store.Users()
		b.Tasks = store.Tasks()
		b.Jobs = store.Jobs()
		b.Tx = store
	}

	switch cfg.SessionBackend {
	case config.DriverRedis:
		rc, err := redisclient.Connect(ctx, redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, 3*time.Second)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = rc.Close() })

		b.Sessions = session.NewRedisRegistry(rc.Cmdable(), opts.Digest)
		b.Checks = append(b.Checks, handlers.Check{Name: "redis", Ping: rc.Ping})
	case config.DriverMemory:
		b.Sessions = session.NewMemoryRegistry(opts.Digest)
	}

	switch cfg.AvatarBackend {
	case config.DriverS3:
		s3, err := avatar.NewS3Store(ctx, avatar.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 avatar store: %w", err)
		}
		b.Avatars = s3
	default:
		b.Avatars = avatar.NewMemoryStore()
	}

	log.Info("backends ready",
		"store", cfg.StoreDriver,
		"sessions", cfg.SessionBackend,
		"avatars", cfg.AvatarBackend,
	)

	return b, nil
}

// Ping runs every readiness check and returns the first failure.
func (b *Backends) Ping(ctx context.Context) error {
	for _, c := range b.Checks {
		if err := c.Ping(ctx); err != nil {
			return fmt.Errorf("%s: %w", c.Name, err)
		}
	}
	return nil
}

// Close releases connections in reverse order of opening.
func (b *Backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}
