package task

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNotFound = errors.New("task not found")
	// ErrOwnerNotFound means the owning account no longer exists, e.g. it was
	// deleted between authenticating the request and storing the task.
	ErrOwnerNotFound = errors.New("task owner not found")
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// Rank orders priorities low < medium < high.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityMedium:
		return 1
	case PriorityHigh:
		return 2
	default:
		return -1
	}
}

type Task struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Completed   bool       `json:"completed"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Owner       string     `json:"owner"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// CreateRequest has no owner field; the owner always comes from the caller.
type CreateRequest struct {
	Description string     `json:"description" binding:"required"`
	Completed   bool       `json:"completed"`
	Priority    *Priority  `json:"priority" binding:"omitempty,oneof=low medium high"`
	DueDate     *time.Time `json:"dueDate"`
}

// UpdateRequest lists the only mutable task fields; nil means unchanged.
type UpdateRequest struct {
	Description *string    `json:"description"`
	Completed   *bool      `json:"completed"`
	Priority    *Priority  `json:"priority" binding:"omitempty,oneof=low medium high"`
	DueDate     *time.Time `json:"dueDate"`
}

func (u UpdateRequest) IsEmpty() bool {
	return u.Description == nil && u.Completed == nil && u.Priority == nil && u.DueDate == nil
}

type SortField string

const (
	SortCreatedAt   SortField = "createdAt"
	SortUpdatedAt   SortField = "updatedAt"
	SortDescription SortField = "description"
	SortCompleted   SortField = "completed"
	SortPriority    SortField = "priority"
	SortDueDate     SortField = "dueDate"
)

func (f SortField) IsValid() bool {
	switch f {
	case SortCreatedAt, SortUpdatedAt, SortDescription, SortCompleted, SortPriority, SortDueDate:
		return true
	default:
		return false
	}
}

// with pointers if optional, it will be nil
type ListFilter struct {
	Completed *bool
	Limit     int // 0 means unlimited
	Skip      int
	SortBy    SortField
	Desc      bool
}

// ParseListQuery builds a filter from raw query values. Values that do not
// parse are ignored and the defaults apply.
func ParseListQuery(completed, limit, skip, sortBy string) ListFilter {
	f := ListFilter{SortBy: SortCreatedAt}

	switch strings.ToLower(strings.TrimSpace(completed)) {
	case "true":
		v := true
		f.Completed = &v
	case "false":
		v := false
		f.Completed = &v
	}

	if n, err := strconv.Atoi(limit); err == nil && n > 0 {
		f.Limit = n
	}

	if n, err := strconv.Atoi(skip); err == nil && n > 0 {
		f.Skip = n
	}

	if sortBy != "" {
		field, dir, _ := strings.Cut(sortBy, ":")
		if sf := SortField(strings.TrimSpace(field)); sf.IsValid() {
			f.SortBy = sf
			f.Desc = strings.EqualFold(strings.TrimSpace(dir), "desc")
		}
	}

	return f
}
