package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/geocoder89/taskhub/internal/domain/task"
	"github.com/geocoder89/taskhub/internal/domain/user"
	"github.com/geocoder89/taskhub/internal/repo/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

// newService returns a service over a fresh store in which owners exist.
func newService(t *testing.T, owners ...string) (*Service, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	for _, id := range owners {
		_, err := store.Users().Create(context.Background(), user.User{ID: id, Name: id, Email: id + "@example.com"})
		require.NoError(t, err)
	}

	return NewService(store.Tasks()), store
}

func TestCreate_DefaultsAndOwner(t *testing.T) {
	svc, _ := newService(t, "owner-a")

	got, err := svc.Create(context.Background(), "owner-a", task.CreateRequest{Description: "  buy milk "})
	require.NoError(t, err)

	assert.Equal(t, "buy milk", got.Description)
	assert.Equal(t, task.PriorityMedium, got.Priority)
	assert.Equal(t, "owner-a", got.Owner)
	assert.False(t, got.Completed)
	assert.NotEmpty(t, got.ID)
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newService(t, "a")
	ctx := context.Background()

	_, err := svc.Create(ctx, "a", task.CreateRequest{Description: "   "})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Create(ctx, "a", task.CreateRequest{Description: "x", Priority: ptr(task.Priority("urgent"))})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestForeignAndMissingIdsLookTheSame(t *testing.T) {
	svc, _ := newService(t, "owner-a", "owner-b")
	ctx := context.Background()

	mine, err := svc.Create(ctx, "owner-a", task.CreateRequest{Description: "private"})
	require.NoError(t, err)

	_, errForeign := svc.Get(ctx, "owner-b", mine.ID)
	_, errMissing := svc.Get(ctx, "owner-b", "00000000-0000-0000-0000-000000000000")

	require.ErrorIs(t, errForeign, apperr.ErrNotFound)
	require.ErrorIs(t, errMissing, apperr.ErrNotFound)
	assert.Equal(t, errMissing.Error(), errForeign.Error())

	_, err = svc.Update(ctx, "owner-b", mine.ID, task.UpdateRequest{Completed: ptr(true)})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.Delete(ctx, "owner-b", mine.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	still, err := svc.Get(ctx, "owner-a", mine.ID)
	require.NoError(t, err)
	assert.False(t, still.Completed)
}

func TestUpdate(t *testing.T) {
	svc, _ := newService(t, "a")
	ctx := context.Background()

	created, err := svc.Create(ctx, "a", task.CreateRequest{Description: "x"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, "a", created.ID, task.UpdateRequest{})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Update(ctx, "a", created.ID, task.UpdateRequest{Description: ptr(" ")})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Update(ctx, "a", created.ID, task.UpdateRequest{Priority: ptr(task.Priority("nope"))})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	due := time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC)
	updated, err := svc.Update(ctx, "a", created.ID, task.UpdateRequest{
		Completed: ptr(true),
		Priority:  ptr(task.PriorityHigh),
		DueDate:   &due,
	})
	require.NoError(t, err)

	assert.True(t, updated.Completed)
	assert.Equal(t, task.PriorityHigh, updated.Priority)
	require.NotNil(t, updated.DueDate)
	assert.True(t, updated.DueDate.Equal(due))
	assert.Equal(t, "a", updated.Owner)
	assert.Equal(t, "x", updated.Description)
}

func TestList_OnlyOwnTasks(t *testing.T) {
	svc, _ := newService(t, "a", "b")
	ctx := context.Background()

	for _, d := range []string{"one", "two"} {
		_, err := svc.Create(ctx, "a", task.CreateRequest{Description: d})
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, "b", task.CreateRequest{Description: "other"})
	require.NoError(t, err)

	got, err := svc.List(ctx, "a", task.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	for _, tk := range got {
		assert.Equal(t, "a", tk.Owner)
	}
}

func TestCreate_AfterOwnerDeletedIsRejected(t *testing.T) {
	svc, store := newService(t, "u1")
	ctx := context.Background()

	// the request passed the guard, then the account was deleted before the
	// task was stored
	_, err := store.Users().Delete(ctx, "u1")
	require.NoError(t, err)

	_, err = svc.Create(ctx, "u1", task.CreateRequest{Description: "late"})
	require.ErrorIs(t, err, apperr.ErrAuthentication)

	left, err := svc.List(ctx, "u1", task.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, left, "no orphaned task may be stored")
}
