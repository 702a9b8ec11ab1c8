package memory

import (
	"context"
	"time"

	"github.com/geocoder89/taskhub/internal/domain/user"
)

type UsersRepo struct {
	s *Store
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	defer r.s.lock(ctx)()

	u.Email = user.NormalizeEmail(u.Email)
	if _, taken := r.s.emails[u.Email]; taken {
		return user.User{}, user.ErrEmailAlreadyUsed
	}

	r.s.users[u.ID] = u
	r.s.emails[u.Email] = u.ID

	return u, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	defer r.s.lock(ctx)()

	u, ok := r.s.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	defer r.s.lock(ctx)()

	id, ok := r.s.emails[user.NormalizeEmail(email)]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return r.s.users[id], nil
}

func (r *UsersRepo) Update(ctx context.Context, id string, c user.Changes) (user.User, error) {
	defer r.s.lock(ctx)()

	u, ok := r.s.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	if c.Email != nil {
		email := user.NormalizeEmail(*c.Email)
		if owner, taken := r.s.emails[email]; taken && owner != id {
			return user.User{}, user.ErrEmailAlreadyUsed
		}
		delete(r.s.emails, u.Email)
		u.Email = email
		r.s.emails[email] = id
	}
	if c.Name != nil {
		u.Name = *c.Name
	}
	if c.PasswordHash != nil {
		u.PasswordHash = *c.PasswordHash
	}
	if c.AvatarKey != nil {
		u.AvatarKey = *c.AvatarKey
	}

	u.UpdatedAt = time.Now().UTC()
	r.s.users[id] = u

	return u, nil
}

func (r *UsersRepo) Delete(ctx context.Context, id string) (user.User, error) {
	defer r.s.lock(ctx)()

	u, ok := r.s.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	delete(r.s.users, id)
	delete(r.s.emails, u.Email)

	return u, nil
}
