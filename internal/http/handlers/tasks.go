package handlers

import (
	"context"
	"net/http"

	"github.com/geocoder89/taskhub/internal/domain/task"
	"github.com/gin-gonic/gin"
)

type TaskService interface {
	Create(ctx context.Context, ownerID string, req task.CreateRequest) (task.Task, error)
	List(ctx context.Context, ownerID string, f task.ListFilter) ([]task.Task, error)
	Get(ctx context.Context, ownerID, id string) (task.Task, error)
	Update(ctx context.Context, ownerID, id string, req task.UpdateRequest) (task.Task, error)
	Delete(ctx context.Context, ownerID, id string) (task.Task, error)
}

type TasksHandler struct {
	tasks TaskService
}

func NewTasksHandler(tasks TaskService) *TasksHandler {
	return &TasksHandler{tasks: tasks}
}

// CreateTask ignores any owner key in the body; the caller always owns the
// new task.
func (h *TasksHandler) CreateTask(ctx *gin.Context) {
	id, ok := identity(ctx)
	if !ok {
		return
	}

	var req task.CreateRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := opContext(ctx)
	defer cancel()

	t, err := h.tasks.Create(cctx, id.UserID, req)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, t)
}

func (h *TasksHandler) ListTasks(ctx *gin.Context) {
	id, ok := identity(ctx)
	if !ok {
		return
	}

	filter := task.ParseListQuery(
		ctx.Query("completed"),
		ctx.Query("limit"),
		ctx.Query("skip"),
		ctx.Query("sortBy"),
	)

	cctx, cancel := opContext(ctx)
	defer cancel()

	list, err := h.tasks.List(cctx, id.UserID, filter)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, list)
}

func (h *TasksHandler) GetTask(ctx *gin.Context) {
	id, ok := identity(ctx)
	if !ok {
		return
	}

	cctx, cancel := opContext(ctx)
	defer cancel()

	t, err := h.tasks.Get(cctx, id.UserID, ctx.Param("id"))
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, t)
}

func (h *TasksHandler) UpdateTask(ctx *gin.Context) {
	id, ok := identity(ctx)
	if !ok {
		return
	}

	var req task.UpdateRequest

	if !BindStrictJSON(ctx, &req) {
		return
	}

	cctx, cancel := opContext(ctx)
	defer cancel()

	t, err := h.tasks.Update(cctx, id.UserID, ctx.Param("id"), req)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, t)
}

func (h *TasksHandler) DeleteTask(ctx *gin.Context) {
	id, ok := identity(ctx)
	if !ok {
		return
	}

	cctx, cancel := opContext(ctx)
	defer cancel()

	t, err := h.tasks.Delete(cctx, id.UserID, ctx.Param("id"))
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, t)
}
