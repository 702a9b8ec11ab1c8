// Package tasks is the owner-scoped task store. Every operation takes the
// caller's id and never reaches another owner's rows.
package tasks

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/geocoder89/taskhub/internal/domain/task"
	"github.com/google/uuid"
)

type Repo interface {
	Create(ctx context.Context, t task.Task) (task.Task, error)
	GetByID(ctx context.Context, ownerID, id string) (task.Task, error)
	List(ctx context.Context, ownerID string, f task.ListFilter) ([]task.Task, error)
	Update(ctx context.Context, ownerID, id string, req task.UpdateRequest) (task.Task, error)
	Delete(ctx context.Context, ownerID, id string) (task.Task, error)
}

type Service struct {
	repo Repo
	now  func() time.Time
}

func NewService(repo Repo) *Service {
	return &Service{repo: repo, now: time.Now}
}

// notFound gives absent and foreign ids the same answer.
func notFound(err error) error {
	if errors.Is(err, task.ErrNotFound) {
		return apperr.NotFound(task.ErrNotFound.Error())
	}
	return err
}

func (s *Service) Create(ctx context.Context, ownerID string, req task.CreateRequest) (task.Task, error) {
	desc := strings.TrimSpace(req.Description)
	if desc == "" {
		return task.Task{}, apperr.Validation("description is required")
	}

	priority := task.PriorityMedium
	if req.Priority != nil {
		if !req.Priority.IsValid() {
			return task.Task{}, apperr.Validation("priority must be one of low, medium, high")
		}
		priority = *req.Priority
	}

	now := s.now().UTC()

	t, err := s.repo.Create(ctx, task.Task{
		ID:          uuid.NewString(),
		Description: desc,
		Completed:   req.Completed,
		Priority:    priority,
		DueDate:     req.DueDate,
		Owner:       ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		// the caller's account is gone, so its credential no longer is one
		if errors.Is(err, task.ErrOwnerNotFound) {
			return task.Task{}, apperr.Authentication(err)
		}
		return task.Task{}, err
	}

	return t, nil
}

func (s *Service) List(ctx context.Context, ownerID string, f task.ListFilter) ([]task.Task, error) {
	return s.repo.List(ctx, ownerID, f)
}

func (s *Service) Get(ctx context.Context, ownerID, id string) (task.Task, error) {
	t, err := s.repo.GetByID(ctx, ownerID, id)
	if err != nil {
		return task.Task{}, notFound(err)
	}
	return t, nil
}

func (s *Service) Update(ctx context.Context, ownerID, id string, req task.UpdateRequest) (task.Task, error) {
	if req.IsEmpty() {
		return task.Task{}, apperr.Validation("no updates provided")
	}

	if req.Description != nil {
		desc := strings.TrimSpace(*req.Description)
		if desc == "" {
			return task.Task{}, apperr.Validation("description cannot be empty")
		}
		req.Description = &desc
	}

	if req.Priority != nil && !req.Priority.IsValid() {
		return task.Task{}, apperr.Validation("priority must be one of low, medium, high")
	}

	t, err := s.repo.Update(ctx, ownerID, id, req)
	if err != nil {
		return task.Task{}, notFound(err)
	}
	return t, nil
}

func (s *Service) Delete(ctx context.Context, ownerID, id string) (task.Task, error) {
	t, err := s.repo.Delete(ctx, ownerID, id)
	if err != nil {
		return task.Task{}, notFound(err)
	}
	return t, nil
}
