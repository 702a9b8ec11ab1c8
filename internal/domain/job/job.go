// Package job is a row of the follow-up queue: work the account cascade
// could not finish inline and leaves for the worker to retry.
package job

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// DefaultMaxAttempts matches the column default of jobs.max_attempts.
const DefaultMaxAttempts = 25

var ErrJobNotFound = errors.New("job not found")

type Job struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Status      Status          `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"maxAttempts"`
	RunAt       time.Time       `json:"runAt"`
	LockedAt    *time.Time      `json:"lockedAt,omitempty"`
	LockedBy    *string         `json:"lockedBy,omitempty"`
	LastError   *string         `json:"lastError,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Ready is the claim condition: pending, due at now and not out of attempts.
// The Postgres claim query spells out the same three checks.
func (j Job) Ready(now time.Time) bool {
	return j.Status == StatusPending && !j.RunAt.After(now) && j.Attempts < j.MaxAttempts
}

// LastAttempt reports whether a failure of the run in progress uses up the
// job's final attempt.
func (j Job) LastAttempt() bool {
	return j.Attempts+1 >= j.MaxAttempts
}

// CreateRequest is what the cascade enqueues. A zero RunAt means now; the
// cascade sets it to now plus the follow-up delay so its own inline attempt
// runs first.
type CreateRequest struct {
	Type        string
	Payload     json.RawMessage
	RunAt       time.Time
	MaxAttempts int
}

func New(req CreateRequest) Job {
	return NewAt(req, time.Now())
}

func NewAt(req CreateRequest, now time.Time) Job {
	now = now.UTC()

	maxA := req.MaxAttempts
	if maxA <= 0 {
		maxA = DefaultMaxAttempts
	}

	runAt := req.RunAt
	if runAt.IsZero() {
		runAt = now
	}

	return Job{
		ID:          uuid.NewString(),
		Type:        req.Type,
		Payload:     req.Payload,
		Status:      StatusPending,
		MaxAttempts: maxA,
		RunAt:       runAt.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
