package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type plainDigest struct{}

func (plainDigest) Digest(raw string) string { return "d:" + raw }

func TestMemoryRegistry_RecordRevoke(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry(plainDigest{})
	exp := time.Now().Add(time.Hour)

	require.NoError(t, r.Record(ctx, "u1", "t1", exp))
	require.NoError(t, r.Record(ctx, "u1", "t2", exp))

	ok, err := r.IsActive(ctx, "u1", "t1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, r.Revoke(ctx, "u1", "t1"))

	ok, _ = r.IsActive(ctx, "u1", "t1")
	assert.False(t, ok, "revoked token must be inactive")

	ok, _ = r.IsActive(ctx, "u1", "t2")
	assert.True(t, ok, "other device keeps its session")

	ok, _ = r.IsActive(ctx, "u2", "t2")
	assert.False(t, ok, "tokens are bound to their user")
}

func TestMemoryRegistry_RevokeAllKeepsEntryDropAllRemovesIt(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry(plainDigest{})
	exp := time.Now().Add(time.Hour)

	require.NoError(t, r.Record(ctx, "u1", "t1", exp))
	require.NoError(t, r.Record(ctx, "u1", "t2", exp))

	require.NoError(t, r.RevokeAll(ctx, "u1"))
	assert.Equal(t, 0, r.Count("u1"))
	assert.True(t, r.HasEntry("u1"))

	require.NoError(t, r.DropAll(ctx, "u1"))
	assert.False(t, r.HasEntry("u1"))

	// idempotent
	require.NoError(t, r.DropAll(ctx, "u1"))
}

func TestMemoryRegistry_ExpiredTokensAreInactive(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry(plainDigest{})

	now := time.Now()
	r.now = func() time.Time { return now }

	require.NoError(t, r.Record(ctx, "u1", "old", now.Add(time.Minute)))

	r.now = func() time.Time { return now.Add(2 * time.Minute) }

	ok, err := r.IsActive(ctx, "u1", "old")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Record(ctx, "u1", "new", now.Add(time.Hour)))
	assert.Equal(t, 1, r.Count("u1"))
}

func TestMemoryRegistry_ConcurrentRecordLosesNothing(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry(plainDigest{})
	exp := time.Now().Add(time.Hour)

	const n = 200
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = r.Record(ctx, "u1", fmt.Sprintf("t%d", i), exp)
		}(i)
	}

	// concurrent single-device logouts on a disjoint set of tokens
	require.NoError(t, r.Record(ctx, "u1", "gone", exp))
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Revoke(ctx, "u1", "gone")
		}()
	}

	wg.Wait()

	assert.Equal(t, n, r.Count("u1"))
}
