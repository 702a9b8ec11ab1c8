package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/geocoder89/taskhub/internal/actorctx"
	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/geocoder89/taskhub/internal/domain/user"
)

// Failure reasons, for metrics and logs only. Callers only ever see
// apperr.ErrAuthentication.
const (
	ReasonMissing = "missing"
	ReasonInvalid = "invalid"
	ReasonRevoked = "revoked"
	ReasonNoUser  = "no_user"
)

type TokenVerifier interface {
	Verify(token string) (string, error)
}

type SessionChecker interface {
	IsActive(ctx context.Context, userID, token string) (bool, error)
}

type UserLookup interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

// FailureObserver is told why an authentication was rejected.
type FailureObserver func(reason string)

// Guard authenticates a raw bearer credential. Nothing is cached between
// calls: every request re-verifies the token and re-checks the registry.
type Guard struct {
	tokens   TokenVerifier
	sessions SessionChecker
	users    UserLookup
	observe  FailureObserver
}

func NewGuard(tokens TokenVerifier, sessions SessionChecker, users UserLookup, observe FailureObserver) *Guard {
	if observe == nil {
		observe = func(string) {}
	}

	return &Guard{
		tokens:   tokens,
		sessions: sessions,
		users:    users,
		observe:  observe,
	}
}

func (g *Guard) Authenticate(ctx context.Context, raw string) (actorctx.Identity, error) {
	if raw == "" {
		return g.reject(ReasonMissing, errors.New("no credential"))
	}

	userID, err := g.tokens.Verify(raw)
	if err != nil {
		return g.reject(ReasonInvalid, err)
	}

	active, err := g.sessions.IsActive(ctx, userID, raw)
	if err != nil {
		// store failure is an internal error, never a pass
		return actorctx.Identity{}, fmt.Errorf("check session: %w", err)
	}
	if !active {
		return g.reject(ReasonRevoked, errors.New("token not in registry"))
	}

	if _, err := g.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return g.reject(ReasonNoUser, err)
		}
		return actorctx.Identity{}, fmt.Errorf("load user: %w", err)
	}

	return actorctx.Identity{UserID: userID, Token: raw}, nil
}

func (g *Guard) reject(reason string, cause error) (actorctx.Identity, error) {
	g.observe(reason)
	return actorctx.Identity{}, apperr.Authentication(cause)
}
