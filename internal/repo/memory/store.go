// Package memory holds in-process implementations of every repository, used
// by tests and local runs with STORE_DRIVER=memory.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/geocoder89/taskhub/internal/domain/job"
	"github.com/geocoder89/taskhub/internal/domain/task"
	"github.com/geocoder89/taskhub/internal/domain/user"
)

type txKey struct{}

// Store is the shared state behind the memory repositories. One lock covers
// all of it so InTx can make a multi-repository change atomic.
type Store struct {
	mu     sync.Mutex
	users  map[string]user.User
	emails map[string]string // lower-cased email -> user id
	tasks  map[string]task.Task
	jobs   map[string]job.Job
}

func NewStore() *Store {
	return &Store{
		users:  make(map[string]user.User),
		emails: make(map[string]string),
		tasks:  make(map[string]task.Task),
		jobs:   make(map[string]job.Job),
	}
}

func (s *Store) Users() *UsersRepo { return &UsersRepo{s: s} }
func (s *Store) Tasks() *TasksRepo { return &TasksRepo{s: s} }
func (s *Store) Jobs() *JobsRepo   { return &JobsRepo{s: s} }

// lock takes the store lock unless ctx already runs inside InTx.
func (s *Store) lock(ctx context.Context) func() {
	if ctx.Value(txKey{}) == s {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// InTx runs fn with the store locked. If fn fails every change it made is
// rolled back.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) == s {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users := maps.Clone(s.users)
	emails := maps.Clone(s.emails)
	tasks := maps.Clone(s.tasks)
	jobs := maps.Clone(s.jobs)

	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.users, s.emails, s.tasks, s.jobs = users, emails, tasks, jobs
		return err
	}

	return nil
}

func (s *Store) Ping(context.Context) error {
	return nil
}
