package session

import (
	"context"
	"sync"
	"time"
)

type MemoryRegistry struct {
	mu      sync.Mutex
	digest  Digester
	now     func() time.Time
	entries map[string]map[string]time.Time // userID -> digest -> expiry
}

func NewMemoryRegistry(d Digester) *MemoryRegistry {
	return &MemoryRegistry{
		digest:  d,
		now:     time.Now,
		entries: make(map[string]map[string]time.Time),
	}
}

func (r *MemoryRegistry) Record(_ context.Context, userID, token string, expiresAt time.Time) error {
	key := r.digest.Digest(token)
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.entries[userID]
	if !ok {
		set = make(map[string]time.Time)
		r.entries[userID] = set
	}

	// prune while we hold the lock anyway
	for k, exp := range set {
		if !now.Before(exp) {
			delete(set, k)
		}
	}

	set[key] = expiresAt
	return nil
}

func (r *MemoryRegistry) IsActive(_ context.Context, userID, token string) (bool, error) {
	key := r.digest.Digest(token)
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	exp, ok := r.entries[userID][key]
	if !ok {
		return false, nil
	}

	if !now.Before(exp) {
		delete(r.entries[userID], key)
		return false, nil
	}

	return true, nil
}

func (r *MemoryRegistry) Revoke(_ context.Context, userID, token string) error {
	key := r.digest.Digest(token)

	r.mu.Lock()
	defer r.mu.Unlock()

	if set, ok := r.entries[userID]; ok {
		delete(set, key)
	}
	return nil
}

func (r *MemoryRegistry) RevokeAll(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[userID]; ok {
		r.entries[userID] = make(map[string]time.Time)
	}
	return nil
}

func (r *MemoryRegistry) DropAll(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, userID)
	return nil
}

// Count is the number of live tokens for userID.
func (r *MemoryRegistry) Count(userID string) int {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, exp := range r.entries[userID] {
		if now.Before(exp) {
			n++
		}
	}
	return n
}

// HasEntry reports whether userID still has an entry, even an empty one.
func (r *MemoryRegistry) HasEntry(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.entries[userID]
	return ok
}
