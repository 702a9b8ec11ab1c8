package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/geocoder89/taskhub/internal/domain/task"
	"github.com/geocoder89/taskhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const taskColumns = `id, description, completed, priority, due_date, owner_id, created_at, updated_at`

// whitelisted ORDER BY expressions, never built from client input
var sortColumns = map[task.SortField]string{
	task.SortCreatedAt:   "created_at",
	task.SortUpdatedAt:   "updated_at",
	task.SortDescription: "description",
	task.SortCompleted:   "completed",
	task.SortPriority:    "CASE priority WHEN 'low' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END",
	task.SortDueDate:     "due_date",
}

// TasksRepo scopes every statement by owner_id. An id that belongs to another
// owner behaves exactly like one that does not exist.
type TasksRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewTasksRepo(pool *pgxpool.Pool, prom *observability.Prom) *TasksRepo {
	return &TasksRepo{pool: pool, prom: prom}
}

func (r *TasksRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func scanTask(row pgx.Row) (task.Task, error) {
	var t task.Task
	var priority string

	err := row.Scan(&t.ID, &t.Description, &t.Completed, &priority, &t.DueDate, &t.Owner, &t.CreatedAt, &t.UpdatedAt)
	t.Priority = task.Priority(priority)

	return t, err
}

func mapTaskErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) || isInvalidInput(err) {
		return task.ErrNotFound
	}
	return err
}

func (r *TasksRepo) Create(ctx context.Context, t task.Task) (task.Task, error) {
	var out task.Task

	err := r.observe("tasks.create", func() error {
		var err error
		out, err = scanTask(conn(ctx, r.pool).QueryRow(ctx,
			`INSERT INTO tasks (id, description, completed, priority, due_date, owner_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING `+taskColumns,
			t.ID, t.Description, t.Completed, string(t.Priority), t.DueDate, t.Owner, t.CreatedAt, t.UpdatedAt,
		))
		return err
	})

	if err != nil {
		// owner_id references users; a deleted or unknown owner fails the FK
		if isForeignKeyViolation(err) || isInvalidInput(err) {
			return task.Task{}, task.ErrOwnerNotFound
		}
		return task.Task{}, err
	}
	return out, nil
}

func (r *TasksRepo) GetByID(ctx context.Context, ownerID, id string) (task.Task, error) {
	var t task.Task

	err := r.observe("tasks.get_by_id", func() error {
		var err error
		t, err = scanTask(conn(ctx, r.pool).QueryRow(ctx,
			`SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND owner_id = $2`, id, ownerID))
		return err
	})

	if err != nil {
		return task.Task{}, mapTaskErr(err)
	}
	return t, nil
}

func (r *TasksRepo) List(ctx context.Context, ownerID string, f task.ListFilter) ([]task.Task, error) {
	conds := []string{"owner_id = $1"}
	args := []interface{}{ownerID}

	argsPosition := 2

	if f.Completed != nil {
		conds = append(conds, fmt.Sprintf("completed = $%d", argsPosition))
		args = append(args, *f.Completed)
		argsPosition++
	}

	orderBy, ok := sortColumns[f.SortBy]
	if !ok {
		orderBy = sortColumns[task.SortCreatedAt]
	}

	dir := "ASC"
	if f.Desc {
		dir = "DESC"
	}

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + strings.Join(conds, " AND ")

	// stable ordering for pagination
	query += fmt.Sprintf(" ORDER BY %s %s, id ASC", orderBy, dir)

	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argsPosition)
		args = append(args, f.Limit)
		argsPosition++
	}

	if f.Skip > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argsPosition)
		args = append(args, f.Skip)
	}

	output := make([]task.Task, 0)

	err := r.observe("tasks.list", func() error {
		rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			t, err := scanTask(rows)
			if err != nil {
				return err
			}
			output = append(output, t)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, mapListErr(err)
	}

	return output, nil
}

// an ownerID that is not a uuid simply owns nothing
func mapListErr(err error) error {
	if isInvalidInput(err) {
		return nil
	}
	return err
}

func (r *TasksRepo) Update(ctx context.Context, ownerID, id string, req task.UpdateRequest) (task.Task, error) {
	var priority *string
	if req.Priority != nil {
		p := string(*req.Priority)
		priority = &p
	}

	var t task.Task

	err := r.observe("tasks.update", func() error {
		var err error
		t, err = scanTask(conn(ctx, r.pool).QueryRow(ctx,
			`UPDATE tasks
			SET description = COALESCE($3, description),
			    completed = COALESCE($4, completed),
			    priority = COALESCE($5, priority),
			    due_date = COALESCE($6, due_date),
			    updated_at = NOW()
			WHERE id = $1 AND owner_id = $2
			RETURNING `+taskColumns,
			id, ownerID, req.Description, req.Completed, priority, req.DueDate,
		))
		return err
	})

	if err != nil {
		return task.Task{}, mapTaskErr(err)
	}
	return t, nil
}

func (r *TasksRepo) Delete(ctx context.Context, ownerID, id string) (task.Task, error) {
	var t task.Task

	err := r.observe("tasks.delete", func() error {
		var err error
		t, err = scanTask(conn(ctx, r.pool).QueryRow(ctx,
			`DELETE FROM tasks WHERE id = $1 AND owner_id = $2 RETURNING `+taskColumns, id, ownerID))
		return err
	})

	if err != nil {
		return task.Task{}, mapTaskErr(err)
	}
	return t, nil
}

func (r *TasksRepo) DeleteAllByOwner(ctx context.Context, ownerID string) (int64, error) {
	var n int64

	err := r.observe("tasks.delete_all_by_owner", func() error {
		tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM tasks WHERE owner_id = $1`, ownerID)
		if err != nil {
			return err
		}
		n = tag.RowsAffected()
		return nil
	})

	return n, err
}
