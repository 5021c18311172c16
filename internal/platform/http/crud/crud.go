// Package crud serves the standard REST surface of any repository-backed
// entity: create, list, get, update, delete, count and the trash views.
package crud

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mosaic_backend/internal/platform/apperr"
	"mosaic_backend/internal/platform/http/response"
	"mosaic_backend/internal/platform/logger"
	"mosaic_backend/internal/platform/repository"
)

// ContextRecord is the gin context key LoadRecord stores the record under.
const ContextRecord = "record"

const msgRecordNotFound = "Record not found"

// Store is the repository surface the handler needs.
type Store[T any] interface {
	Create(ctx context.Context, item *T) error
	Find(ctx context.Context, q repository.Query) ([]T, error)
	FindByID(ctx context.Context, id any) (*T, error)
	UpdateByID(ctx context.Context, id any, patch map[string]any) (*T, error)
	DeleteByID(ctx context.Context, id any) (repository.WriteResult, error)
	Count(ctx context.Context, f repository.Filter) (int64, error)
	ParseLookup(params url.Values) (repository.Query, error)
	Paginate(ctx context.Context, q repository.Query) (*repository.Page[T], error)
}

// Trash is implemented by soft-delete stores.
type Trash[T any] interface {
	RestoreByID(ctx context.Context, id any) (*T, error)
	PaginateDeleted(ctx context.Context, q repository.Query) (*repository.Page[T], error)
}

// PatchResolver maps the keys of an update patch to storage columns.
type PatchResolver interface {
	ResolvePatch(patch map[string]any) (map[string]any, error)
}

var (
	_ Store[struct{}] = (*repository.Repository[struct{}])(nil)
	_ Store[struct{}] = (*repository.SoftDelete[struct{}])(nil)
	_ Trash[struct{}] = (*repository.SoftDelete[struct{}])(nil)
	_ PatchResolver   = (*repository.SoftDelete[struct{}])(nil)
)

// Hooks customise request decoding and react to writes.
type Hooks[T any] struct {
	// Decode builds the record to create from the request. Defaults to
	// binding the JSON body into a new T.
	Decode func(c *gin.Context) (*T, error)
	// AfterCreate runs after a successful create.
	AfterCreate func(c *gin.Context, item *T)
	// CheckPatch validates an update patch before it is applied. When the
	// store is a PatchResolver the keys are column names.
	CheckPatch func(patch map[string]any) error
}

// Handler serves one entity.
type Handler[T any] struct {
	store    Store[T]
	trash    Trash[T]
	resolver PatchResolver
	hooks    Hooks[T]
}

// New creates a Handler over store. If store also implements Trash the
// restore and deleted endpoints are enabled.
func New[T any](store Store[T], hooks Hooks[T]) *Handler[T] {
	h := &Handler[T]{store: store, hooks: hooks}
	if t, ok := store.(Trash[T]); ok {
		h.trash = t
	}
	if pr, ok := store.(PatchResolver); ok {
		h.resolver = pr
	}
	if h.hooks.Decode == nil {
		h.hooks.Decode = bindJSON[T]
	}
	return h
}

// Register mounts the routes on g. Static paths are registered before :id.
func (h *Handler[T]) Register(g *gin.RouterGroup) {
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/all", h.All)
	g.GET("/count", h.Count)
	if h.trash != nil {
		g.GET("/deleted", h.Deleted)
		g.POST("/:id/restore", h.Restore)
	}
	g.GET("/:id", h.Get)
	g.PATCH("/:id", h.Update)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}

func bindJSON[T any](c *gin.Context) (*T, error) {
	item := new(T)
	if err := c.ShouldBindJSON(item); err != nil {
		return nil, response.BindError(err)
	}
	return item, nil
}

// ParseID reads the :id path parameter.
func ParseID(c *gin.Context) (uint, error) {
	n, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || n == 0 {
		return 0, apperr.Validation("Invalid id")
	}
	return uint(n), nil
}

// notFound normalises repository not-found errors to the generic message.
func notFound(err error) error {
	if apperr.IsCode(err, apperr.CodeNotFound) {
		return apperr.Wrap(err, apperr.CodeNotFound, msgRecordNotFound)
	}
	return err
}

// Create handles POST /.
func (h *Handler[T]) Create(c *gin.Context) {
	item, err := h.hooks.Decode(c)
	if err != nil {
		logger.L().Warn("create validation failed", zap.String("path", c.FullPath()), zap.Error(err))
		response.Fail(c, err)
		return
	}
	if err := h.store.Create(c.Request.Context(), item); err != nil {
		response.Fail(c, err)
		return
	}
	if h.hooks.AfterCreate != nil {
		h.hooks.AfterCreate(c, item)
	}
	response.OK(c, http.StatusCreated, item)
}

type listBody[T any] struct {
	*repository.Page[T]
	Links repository.Links `json:"links"`
}

// List handles GET / with lookup parameters and returns one page plus
// prev/next link fragments.
func (h *Handler[T]) List(c *gin.Context) {
	h.page(c, h.store.Paginate)
}

// Deleted handles GET /deleted, listing soft-deleted records.
func (h *Handler[T]) Deleted(c *gin.Context) {
	h.page(c, h.trash.PaginateDeleted)
}

func (h *Handler[T]) page(c *gin.Context, run func(context.Context, repository.Query) (*repository.Page[T], error)) {
	params := c.Request.URL.Query()
	q, err := h.store.ParseLookup(params)
	if err != nil {
		response.Fail(c, err)
		return
	}
	p, err := run(c.Request.Context(), q)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, listBody[T]{Page: p, Links: repository.PageLinks(p, params)})
}

// All handles GET /all: every matching record, unpaginated.
func (h *Handler[T]) All(c *gin.Context) {
	q, err := h.store.ParseLookup(c.Request.URL.Query())
	if err != nil {
		response.Fail(c, err)
		return
	}
	items, err := h.store.Find(c.Request.Context(), q)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, items)
}

// Get handles GET /:id.
func (h *Handler[T]) Get(c *gin.Context) {
	id, err := ParseID(c)
	if err != nil {
		response.Fail(c, err)
		return
	}
	item, err := h.store.FindByID(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, notFound(err))
		return
	}
	response.OK(c, http.StatusOK, item)
}

// Update handles PATCH/PUT /:id with a partial JSON object.
func (h *Handler[T]) Update(c *gin.Context) {
	id, err := ParseID(c)
	if err != nil {
		response.Fail(c, err)
		return
	}
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Fail(c, apperr.Wrap(err, apperr.CodeInvalid, "Invalid request body"))
		return
	}
	// 別名(Goのフィールド名・カラム名)で検証をすり抜けないよう先に解決する
	if h.resolver != nil {
		if patch, err = h.resolver.ResolvePatch(patch); err != nil {
			response.Fail(c, err)
			return
		}
	}
	if h.hooks.CheckPatch != nil {
		if err := h.hooks.CheckPatch(patch); err != nil {
			response.Fail(c, err)
			return
		}
	}
	item, err := h.store.UpdateByID(c.Request.Context(), id, patch)
	if err != nil {
		response.Fail(c, notFound(err))
		return
	}
	response.OK(c, http.StatusOK, item)
}

// Delete handles DELETE /:id. Soft deletes report success.
func (h *Handler[T]) Delete(c *gin.Context) {
	id, err := ParseID(c)
	if err != nil {
		response.Fail(c, err)
		return
	}
	if _, err := h.store.DeleteByID(c.Request.Context(), id); err != nil && !errors.Is(err, repository.ErrSoftDeleted) {
		response.Fail(c, notFound(err))
		return
	}
	response.OK(c, http.StatusOK, gin.H{"id": id})
}

// Restore handles POST /:id/restore.
func (h *Handler[T]) Restore(c *gin.Context) {
	id, err := ParseID(c)
	if err != nil {
		response.Fail(c, err)
		return
	}
	item, err := h.trash.RestoreByID(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, notFound(err))
		return
	}
	response.OK(c, http.StatusOK, item)
}

// Count handles GET /count with the same filter parameters as List.
func (h *Handler[T]) Count(c *gin.Context) {
	q, err := h.store.ParseLookup(c.Request.URL.Query())
	if err != nil {
		response.Fail(c, err)
		return
	}
	n, err := h.store.Count(c.Request.Context(), q.Filter)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{"count": n})
}

// LoadRecord loads the :id record into the context for downstream handlers.
func (h *Handler[T]) LoadRecord() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := ParseID(c)
		if err != nil {
			response.Fail(c, err)
			return
		}
		item, err := h.store.FindByID(c.Request.Context(), id)
		if err != nil {
			response.Fail(c, notFound(err))
			return
		}
		c.Set(ContextRecord, item)
		c.Next()
	}
}

// Record returns the record stored by LoadRecord.
func Record[T any](c *gin.Context) (*T, bool) {
	v, ok := c.Get(ContextRecord)
	if !ok {
		return nil, false
	}
	item, ok := v.(*T)
	return item, ok
}
