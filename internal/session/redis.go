package session

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "taskhub:sessions:"

// RedisRegistry keeps one sorted set per user: member = token digest,
// score = unix expiry. Membership, removal and insertion are single commands
// so concurrent logins and logouts for one user never overwrite each other.
type RedisRegistry struct {
	rdb    redis.Cmdable
	digest Digester
	now    func() time.Time
}

func NewRedisRegistry(rdb redis.Cmdable, d Digester) *RedisRegistry {
	return &RedisRegistry{rdb: rdb, digest: d, now: time.Now}
}

func userKey(userID string) string {
	return keyPrefix + userID
}

func (r *RedisRegistry) Record(ctx context.Context, userID, token string, expiresAt time.Time) error {
	key := userKey(userID)
	now := r.now()

	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{
			Score:  float64(expiresAt.Unix()),
			Member: r.digest.Digest(token),
		})
		pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(now.Unix(), 10))
		// all tokens share one ttl, so the newest expiry is the furthest
		pipe.ExpireAt(ctx, key, expiresAt)
		return nil
	})

	return err
}

func (r *RedisRegistry) IsActive(ctx context.Context, userID, token string) (bool, error) {
	score, err := r.rdb.ZScore(ctx, userKey(userID), r.digest.Digest(token)).Result()

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}

	return int64(score) > r.now().Unix(), nil
}

func (r *RedisRegistry) Revoke(ctx context.Context, userID, token string) error {
	return r.rdb.ZRem(ctx, userKey(userID), r.digest.Digest(token)).Err()
}

func (r *RedisRegistry) RevokeAll(ctx context.Context, userID string) error {
	return r.rdb.Del(ctx, userKey(userID)).Err()
}

func (r *RedisRegistry) DropAll(ctx context.Context, userID string) error {
	return r.rdb.Del(ctx, userKey(userID)).Err()
}
