package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/geocoder89/taskhub/internal/domain/task"
)

type TasksRepo struct {
	s *Store
}

func (r *TasksRepo) Create(ctx context.Context, t task.Task) (task.Task, error) {
	defer r.s.lock(ctx)()

	if _, ok := r.s.users[t.Owner]; !ok {
		return task.Task{}, task.ErrOwnerNotFound
	}

	r.s.tasks[t.ID] = t
	return t, nil
}

// lookup is the single owner-scoped read every id-based operation uses.
func (r *TasksRepo) lookup(ownerID, id string) (task.Task, bool) {
	t, ok := r.s.tasks[id]
	if !ok || t.Owner != ownerID {
		return task.Task{}, false
	}
	return t, true
}

func (r *TasksRepo) GetByID(ctx context.Context, ownerID, id string) (task.Task, error) {
	defer r.s.lock(ctx)()

	t, ok := r.lookup(ownerID, id)
	if !ok {
		return task.Task{}, task.ErrNotFound
	}
	return t, nil
}

func (r *TasksRepo) List(ctx context.Context, ownerID string, f task.ListFilter) ([]task.Task, error) {
	defer r.s.lock(ctx)()

	out := make([]task.Task, 0)
	for _, t := range r.s.tasks {
		if t.Owner != ownerID {
			continue
		}
		if f.Completed != nil && t.Completed != *f.Completed {
			continue
		}
		out = append(out, t)
	}

	slices.SortFunc(out, func(a, b task.Task) int {
		c := compareBy(f.SortBy, a, b)
		if f.Desc {
			c = -c
		}
		if c == 0 {
			c = strings.Compare(a.ID, b.ID)
		}
		return c
	})

	if f.Skip >= len(out) {
		return []task.Task{}, nil
	}
	out = out[f.Skip:]

	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}

	return out, nil
}

func compareBy(field task.SortField, a, b task.Task) int {
	switch field {
	case task.SortUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case task.SortDescription:
		return strings.Compare(a.Description, b.Description)
	case task.SortCompleted:
		return cmp.Compare(boolRank(a.Completed), boolRank(b.Completed))
	case task.SortPriority:
		return cmp.Compare(a.Priority.Rank(), b.Priority.Rank())
	case task.SortDueDate:
		return compareDue(a.DueDate, b.DueDate)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nil due dates sort last ascending, matching Postgres NULLS LAST
func compareDue(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return a.Compare(*b)
	}
}

func (r *TasksRepo) Update(ctx context.Context, ownerID, id string, req task.UpdateRequest) (task.Task, error) {
	defer r.s.lock(ctx)()

	t, ok := r.lookup(ownerID, id)
	if !ok {
		return task.Task{}, task.ErrNotFound
	}

	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.Completed != nil {
		t.Completed = *req.Completed
	}
	if req.Priority != nil {
		t.Priority = *req.Priority
	}
	if req.DueDate != nil {
		due := *req.DueDate
		t.DueDate = &due
	}

	t.UpdatedAt = time.Now().UTC()
	r.s.tasks[id] = t

	return t, nil
}

func (r *TasksRepo) Delete(ctx context.Context, ownerID, id string) (task.Task, error) {
	defer r.s.lock(ctx)()

	t, ok := r.lookup(ownerID, id)
	if !ok {
		return task.Task{}, task.ErrNotFound
	}

	delete(r.s.tasks, id)
	return t, nil
}

func (r *TasksRepo) DeleteAllByOwner(ctx context.Context, ownerID string) (int64, error) {
	defer r.s.lock(ctx)()

	var n int64
	for id, t := range r.s.tasks {
		if t.Owner == ownerID {
			delete(r.s.tasks, id)
			n++
		}
	}
	return n, nil
}
