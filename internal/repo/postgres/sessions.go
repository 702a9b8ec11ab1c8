package postgres

import (
	"context"
	"time"

	"github.com/geocoder89/taskhub/internal/observability"
	"github.com/geocoder89/taskhub/internal/session"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionsRepo is the Postgres session registry. A row per issued token, keyed
// by its digest; revocation stamps revoked_at instead of deleting so a revoked
// token can never be re-recorded under the same key.
type SessionsRepo struct {
	pool   *pgxpool.Pool
	prom   *observability.Prom
	digest session.Digester
}

var _ session.Registry = (*SessionsRepo)(nil)

func NewSessionsRepo(pool *pgxpool.Pool, prom *observability.Prom, d session.Digester) *SessionsRepo {
	return &SessionsRepo{pool: pool, prom: prom, digest: d}
}

func (r *SessionsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *SessionsRepo) Record(ctx context.Context, userID, token string, expiresAt time.Time) error {
	return r.observe("sessions.record", func() error {
		_, err := conn(ctx, r.pool).Exec(ctx,
			`INSERT INTO sessions (token_digest, user_id, expires_at, created_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (token_digest) DO NOTHING`,
			r.digest.Digest(token), userID, expiresAt,
		)
		return err
	})
}

func (r *SessionsRepo) IsActive(ctx context.Context, userID, token string) (bool, error) {
	var active bool

	err := r.observe("sessions.is_active", func() error {
		return conn(ctx, r.pool).QueryRow(ctx,
			`SELECT EXISTS (
				SELECT 1 FROM sessions
				WHERE token_digest = $1
				  AND user_id = $2
				  AND revoked_at IS NULL
				  AND expires_at > NOW()
			)`,
			r.digest.Digest(token), userID,
		).Scan(&active)
	})

	if err != nil {
		if isInvalidInput(err) {
			return false, nil
		}
		return false, err
	}
	return active, nil
}

func (r *SessionsRepo) Revoke(ctx context.Context, userID, token string) error {
	return r.observe("sessions.revoke", func() error {
		_, err := conn(ctx, r.pool).Exec(ctx, `
			UPDATE sessions
			SET revoked_at = NOW()
			WHERE token_digest = $1 AND user_id = $2 AND revoked_at IS NULL
		`, r.digest.Digest(token), userID)
		return err
	})
}

func (r *SessionsRepo) RevokeAll(ctx context.Context, userID string) error {
	return r.observe("sessions.revoke_all", func() error {
		_, err := conn(ctx, r.pool).Exec(ctx, `
			UPDATE sessions
			SET revoked_at = NOW()
			WHERE user_id = $1 AND revoked_at IS NULL
		`, userID)
		return err
	})
}

func (r *SessionsRepo) DropAll(ctx context.Context, userID string) error {
	return r.observe("sessions.drop_all", func() error {
		_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
		return err
	})
}

// PruneExpired deletes rows whose token can no longer be presented.
func (r *SessionsRepo) PruneExpired(ctx context.Context) (int64, error) {
	var n int64

	err := r.observe("sessions.prune_expired", func() error {
		tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM sessions WHERE expires_at <= NOW()`)
		if err != nil {
			return err
		}
		n = tag.RowsAffected()
		return nil
	})

	return n, err
}
