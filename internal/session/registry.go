// Package session tracks which issued tokens are still honoured per user.
//
// A signed token stays cryptographically valid until it expires, so logout
// works by removing the token from its user's entry here. Every mutation is
// a single atomic operation on the backing store; nothing reads a user's full
// set, edits it and writes it back.
//
// Implementations key entries by a digest of the token, never the raw value.
package session

import (
	"context"
	"time"
)

type Registry interface {
	// Record adds token to userID's active set until expiresAt.
	Record(ctx context.Context, userID, token string, expiresAt time.Time) error
	IsActive(ctx context.Context, userID, token string) (bool, error)
	// Revoke removes exactly that token (single device logout).
	Revoke(ctx context.Context, userID, token string) error
	// RevokeAll clears every active token of userID (logout everywhere).
	RevokeAll(ctx context.Context, userID string) error
	// DropAll removes the user's entry entirely. Used on account deletion.
	DropAll(ctx context.Context, userID string) error
}

// Digester turns a raw token into the key stored by a registry.
type Digester interface {
	Digest(raw string) string
}
