// Package accounts owns credentials: registration, login, profile changes
// and the session tokens handed out for them.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/geocoder89/taskhub/internal/actorctx"
	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/geocoder89/taskhub/internal/domain/user"
	"github.com/geocoder89/taskhub/internal/security"
	"github.com/geocoder89/taskhub/internal/storage/avatar"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const minPasswordLen = 6

type UsersRepo interface {
	Create(ctx context.Context, u user.User) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	Update(ctx context.Context, id string, c user.Changes) (user.User, error)
}

type TokenIssuer interface {
	Issue(userID string) (string, time.Time, error)
}

type SessionStore interface {
	Record(ctx context.Context, userID, token string, expiresAt time.Time) error
	Revoke(ctx context.Context, userID, token string) error
	RevokeAll(ctx context.Context, userID string) error
}

type PasswordHasher interface {
	HashPassword(ctx context.Context, plain string) (string, error)
	CheckPassword(ctx context.Context, hash, plain string) error
}

// Session is what register and login hand back.
type Session struct {
	User  user.Public `json:"user"`
	Token string      `json:"token"`
}

type Service struct {
	users    UsersRepo
	tokens   TokenIssuer
	sessions SessionStore
	hasher   PasswordHasher
	avatars  avatar.Store
	validate *validator.Validate
	now      func() time.Time
}

func NewService(users UsersRepo, tokens TokenIssuer, sessions SessionStore, hasher PasswordHasher, avatars avatar.Store) *Service {
	return &Service{
		users:    users,
		tokens:   tokens,
		sessions: sessions,
		hasher:   hasher,
		avatars:  avatars,
		validate: validator.New(),
		now:      time.Now,
	}
}

func (s *Service) validName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.Validation("name is required")
	}
	return name, nil
}

func (s *Service) validEmail(email string) (string, error) {
	email = user.NormalizeEmail(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return "", apperr.Validation("email is invalid")
	}
	return email, nil
}

func validPassword(password string) error {
	if len(password) < minPasswordLen {
		return apperr.Validation("password must be at least %d characters", minPasswordLen)
	}
	if len(password) > security.MaxPasswordBytes {
		return apperr.Validation("password must be at most %d bytes", security.MaxPasswordBytes)
	}
	if strings.Contains(strings.ToLower(password), "password") {
		return apperr.Validation(`password cannot contain "password"`)
	}
	return nil
}

// Register creates the account. The plaintext password never leaves this
// function; only its bcrypt hash is stored.
func (s *Service) Register(ctx context.Context, name, email, password string) (user.User, error) {
	name, err := s.validName(name)
	if err != nil {
		return user.User{}, err
	}

	email, err = s.validEmail(email)
	if err != nil {
		return user.User{}, err
	}

	if err := validPassword(password); err != nil {
		return user.User{}, err
	}

	hash, err := s.hasher.HashPassword(ctx, password)
	if err != nil {
		return user.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()

	u, err := s.users.Create(ctx, user.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, user.ErrEmailAlreadyUsed) {
			return user.User{}, apperr.Conflict("email is already in use")
		}
		return user.User{}, err
	}

	return u, nil
}

// Authenticate answers an unknown email and a wrong password the same way.
func (s *Service) Authenticate(ctx context.Context, email, password string) (user.User, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, apperr.LoginFailed()
		}
		return user.User{}, err
	}

	if err := s.hasher.CheckPassword(ctx, u.PasswordHash, password); err != nil {
		if errors.Is(err, security.ErrMismatch) {
			return user.User{}, apperr.LoginFailed()
		}
		return user.User{}, err
	}

	return u, nil
}

func (s *Service) SignUp(ctx context.Context, req user.RegisterRequest) (Session, error) {
	u, err := s.Register(ctx, req.Name, req.Email, req.Password)
	if err != nil {
		return Session{}, err
	}
	return s.startSession(ctx, u)
}

func (s *Service) Login(ctx context.Context, req user.LoginRequest) (Session, error) {
	u, err := s.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return Session{}, err
	}
	return s.startSession(ctx, u)
}

func (s *Service) startSession(ctx context.Context, u user.User) (Session, error) {
	token, expiresAt, err := s.tokens.Issue(u.ID)
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}

	if err := s.sessions.Record(ctx, u.ID, token, expiresAt); err != nil {
		return Session{}, fmt.Errorf("record session: %w", err)
	}

	return Session{User: u.Public(), Token: token}, nil
}

// Logout revokes only the token the caller presented.
func (s *Service) Logout(ctx context.Context, id actorctx.Identity) error {
	return s.sessions.Revoke(ctx, id.UserID, id.Token)
}

func (s *Service) LogoutAll(ctx context.Context, id actorctx.Identity) error {
	return s.sessions.RevokeAll(ctx, id.UserID)
}

func (s *Service) Me(ctx context.Context, id actorctx.Identity) (user.Public, error) {
	u, err := s.users.GetByID(ctx, id.UserID)
	if err != nil {
		return user.Public{}, mapMissingUser(err)
	}
	return u.Public(), nil
}

// UpdateProfile applies the fields present in p, each validated like at
// registration.
func (s *Service) UpdateProfile(ctx context.Context, id actorctx.Identity, p user.ProfileUpdate) (user.Public, error) {
	if p.IsEmpty() {
		return user.Public{}, apperr.Validation("no updates provided")
	}

	var c user.Changes

	if p.Name != nil {
		name, err := s.validName(*p.Name)
		if err != nil {
			return user.Public{}, err
		}
		c.Name = &name
	}

	if p.Email != nil {
		email, err := s.validEmail(*p.Email)
		if err != nil {
			return user.Public{}, err
		}
		c.Email = &email
	}

	if p.Password != nil {
		if err := validPassword(*p.Password); err != nil {
			return user.Public{}, err
		}
		hash, err := s.hasher.HashPassword(ctx, *p.Password)
		if err != nil {
			return user.Public{}, fmt.Errorf("hash password: %w", err)
		}
		c.PasswordHash = &hash
	}

	u, err := s.users.Update(ctx, id.UserID, c)
	if err != nil {
		if errors.Is(err, user.ErrEmailAlreadyUsed) {
			return user.Public{}, apperr.Conflict("email is already in use")
		}
		return user.Public{}, mapMissingUser(err)
	}

	return u.Public(), nil
}

// SetAvatar stores data as the caller's avatar, replacing any previous one.
func (s *Service) SetAvatar(ctx context.Context, id actorctx.Identity, data []byte) error {
	contentType, err := avatar.Sniff(data)
	if err != nil {
		return apperr.Validation("%s", err.Error())
	}

	key := avatar.Key(id.UserID)

	if err := s.avatars.Put(ctx, key, contentType, data); err != nil {
		return err
	}

	if _, err := s.users.Update(ctx, id.UserID, user.Changes{AvatarKey: &key}); err != nil {
		return mapMissingUser(err)
	}
	return nil
}

func (s *Service) DeleteAvatar(ctx context.Context, id actorctx.Identity) error {
	u, err := s.users.GetByID(ctx, id.UserID)
	if err != nil {
		return mapMissingUser(err)
	}

	if u.AvatarKey == "" {
		return nil
	}

	empty := ""
	if _, err := s.users.Update(ctx, id.UserID, user.Changes{AvatarKey: &empty}); err != nil {
		return mapMissingUser(err)
	}

	return s.avatars.Delete(ctx, u.AvatarKey)
}

// Avatar is public: anyone may fetch any user's picture by id.
func (s *Service) Avatar(ctx context.Context, userID string) ([]byte, string, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, "", apperr.NotFound("avatar not found")
		}
		return nil, "", err
	}

	if u.AvatarKey == "" {
		return nil, "", apperr.NotFound("avatar not found")
	}

	data, contentType, err := s.avatars.Get(ctx, u.AvatarKey)
	if err != nil {
		if errors.Is(err, avatar.ErrNotFound) {
			return nil, "", apperr.NotFound("avatar not found")
		}
		return nil, "", err
	}

	return data, contentType, nil
}

// the guard already proved the user exists, so a miss here means the account
// was deleted mid-request
func mapMissingUser(err error) error {
	if errors.Is(err, user.ErrNotFound) {
		return apperr.Authentication(err)
	}
	return err
}
