package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/taskhub/internal/domain/user"
	"github.com/geocoder89/taskhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, name, email, password_hash, avatar_key, created_at, updated_at`

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User

	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.AvatarKey,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

// mapUserErr folds "no row" and malformed ids into ErrNotFound.
func mapUserErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) || isInvalidInput(err) {
		return user.ErrNotFound
	}
	if IsUniqueViolation(err) {
		return user.ErrEmailAlreadyUsed
	}
	return err
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	var out user.User

	err := r.observe("users.create", func() error {
		var err error
		out, err = scanUser(conn(ctx, r.pool).QueryRow(ctx,
			`INSERT INTO users (id, name, email, password_hash, avatar_key, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING `+userColumns,
			u.ID, u.Name, user.NormalizeEmail(u.Email), u.PasswordHash, u.AvatarKey, u.CreatedAt, u.UpdatedAt,
		))
		return err
	})

	if err != nil {
		return user.User{}, mapUserErr(err)
	}

	return out, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_id", func() error {
		var err error
		u, err = scanUser(conn(ctx, r.pool).QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
		return err
	})

	if err != nil {
		return user.User{}, mapUserErr(err)
	}
	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_email", func() error {
		var err error
		u, err = scanUser(conn(ctx, r.pool).QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE LOWER(email) = $1`, user.NormalizeEmail(email)))
		return err
	})

	if err != nil {
		return user.User{}, mapUserErr(err)
	}
	return u, nil
}

// Update applies only the non-nil changes; COALESCE keeps the rest.
func (r *UsersRepo) Update(ctx context.Context, id string, c user.Changes) (user.User, error) {
	var email *string
	if c.Email != nil {
		e := user.NormalizeEmail(*c.Email)
		email = &e
	}

	var u user.User

	err := r.observe("users.update", func() error {
		var err error
		u, err = scanUser(conn(ctx, r.pool).QueryRow(ctx,
			`UPDATE users
			SET name = COALESCE($2, name),
			    email = COALESCE($3, email),
			    password_hash = COALESCE($4, password_hash),
			    avatar_key = COALESCE($5, avatar_key),
			    updated_at = NOW()
			WHERE id = $1
			RETURNING `+userColumns,
			id, c.Name, email, c.PasswordHash, c.AvatarKey,
		))
		return err
	})

	if err != nil {
		return user.User{}, mapUserErr(err)
	}
	return u, nil
}

func (r *UsersRepo) Delete(ctx context.Context, id string) (user.User, error) {
	var u user.User

	err := r.observe("users.delete", func() error {
		var err error
		u, err = scanUser(conn(ctx, r.pool).QueryRow(ctx,
			`DELETE FROM users WHERE id = $1 RETURNING `+userColumns, id))
		return err
	})

	if err != nil {
		return user.User{}, mapUserErr(err)
	}
	return u, nil
}
