// Package handler provides the HTTP handlers of the tasks feature.
package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mosaic_backend/internal/feature/tasks/domain/entity"
	"mosaic_backend/internal/feature/tasks/transport/http/dto"
	"mosaic_backend/internal/feature/tasks/usecase"
	"mosaic_backend/internal/platform/http/crud"
	"mosaic_backend/internal/platform/http/response"
	jwtmw "mosaic_backend/internal/platform/jwt"
	"mosaic_backend/internal/platform/logger"
	"mosaic_backend/internal/platform/repository"
)

// TaskUsecase defines the task operations beyond plain CRUD.
// Following Go convention: interfaces are defined by the consumer (handler), not the provider (usecase).
type TaskUsecase interface {
	Prepare(t *entity.Task, userID uint) error
	CheckPatch(patch map[string]any) error
	Created(t *entity.Task)
	BulkCreate(ctx context.Context, userID uint, tasks []*entity.Task) (repository.WriteResult, error)
	Stats(ctx context.Context) (*usecase.Stats, error)
	Distinct(ctx context.Context, field string) ([]any, error)
}

// TaskHandler serves /tasks: the generic CRUD surface plus bulk create,
// stats and distinct values.
type TaskHandler struct {
	tasks TaskUsecase
	crud  *crud.Handler[entity.Task]
}

// NewTaskHandler creates a TaskHandler over store.
func NewTaskHandler(store crud.Store[entity.Task], tasks TaskUsecase) *TaskHandler {
	h := &TaskHandler{tasks: tasks}
	h.crud = crud.New(store, crud.Hooks[entity.Task]{
		Decode:      h.decode,
		AfterCreate: func(_ *gin.Context, t *entity.Task) { tasks.Created(t) },
		CheckPatch:  tasks.CheckPatch,
	})
	return h
}

// RegisterRoutes mounts the task routes on g. The group must be authenticated.
func (h *TaskHandler) RegisterRoutes(g *gin.RouterGroup) {
	g.POST("/bulk", h.BulkCreate)
	g.GET("/stats", h.Stats)
	g.GET("/distinct/:field", h.Distinct)
	h.crud.Register(g)
}

func (h *TaskHandler) decode(c *gin.Context) (*entity.Task, error) {
	p, err := jwtmw.CurrentPrincipal(c)
	if err != nil {
		return nil, err
	}
	var t entity.Task
	if err := c.ShouldBindJSON(&t); err != nil {
		return nil, response.BindError(err)
	}
	if err := h.tasks.Prepare(&t, p.ID); err != nil {
		return nil, err
	}
	return &t, nil
}

// BulkCreate handles POST /bulk.
func (h *TaskHandler) BulkCreate(c *gin.Context) {
	p, err := jwtmw.CurrentPrincipal(c)
	if err != nil {
		response.Fail(c, err)
		return
	}
	var req dto.BulkCreateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.L().Warn("bulk create validation failed", zap.Error(err))
		response.Fail(c, response.BindError(err))
		return
	}
	res, err := h.tasks.BulkCreate(c.Request.Context(), p.ID, req.Tasks)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusCreated, dto.BulkCreateRes{WriteResult: res, Tasks: req.Tasks})
}

// Stats handles GET /stats.
func (h *TaskHandler) Stats(c *gin.Context) {
	stats, err := h.tasks.Stats(c.Request.Context())
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, stats)
}

// Distinct handles GET /distinct/:field.
func (h *TaskHandler) Distinct(c *gin.Context) {
	field := c.Param("field")
	values, err := h.tasks.Distinct(c.Request.Context(), field)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, dto.DistinctRes{Field: field, Values: values})
}
