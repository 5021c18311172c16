// Package handler provides the admin user management endpoints.
package handler

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"mosaic_backend/internal/feature/auth/domain/entity"
	"mosaic_backend/internal/feature/users/usecase"
	"mosaic_backend/internal/platform/http/crud"
	"mosaic_backend/internal/platform/http/response"
	jwtmw "mosaic_backend/internal/platform/jwt"
	"mosaic_backend/internal/platform/repository"
)

// UserAdminUsecase defines the admin user operations.
// Following Go convention: interfaces are defined by the consumer (handler), not the provider (usecase).
type UserAdminUsecase interface {
	List(ctx context.Context, params url.Values) (*repository.Page[entity.User], error)
	ListDeleted(ctx context.Context, params url.Values) (*repository.Page[entity.User], error)
	Get(ctx context.Context, id uint) (*entity.User, error)
	SetStatus(ctx context.Context, actor usecase.Actor, id uint, status string) (*entity.User, error)
	Delete(ctx context.Context, actor usecase.Actor, id uint) error
	Restore(ctx context.Context, actor usecase.Actor, id uint) (*entity.User, error)
}

// UserAdminHandler serves /admin/users.
type UserAdminHandler struct {
	users UserAdminUsecase
}

// NewUserAdminHandler creates a UserAdminHandler.
func NewUserAdminHandler(users UserAdminUsecase) *UserAdminHandler {
	return &UserAdminHandler{users: users}
}

// RegisterRoutes mounts the routes on g. The group must already require
// an admin role.
func (h *UserAdminHandler) RegisterRoutes(g *gin.RouterGroup) {
	g.GET("", h.List)
	g.GET("/deleted", h.ListDeleted)
	g.GET("/:id", h.Get)
	g.POST("/:id/activate", h.status(entity.StatusActive))
	g.POST("/:id/deactivate", h.status(entity.StatusInactive))
	g.POST("/:id/suspend", h.status(entity.StatusSuspended))
	g.DELETE("/:id", h.Delete)
	g.POST("/:id/restore", h.Restore)
}

type usersPage struct {
	*repository.Page[entity.User]
	Links repository.Links `json:"links"`
}

func (h *UserAdminHandler) page(c *gin.Context, run func(context.Context, url.Values) (*repository.Page[entity.User], error)) {
	params := c.Request.URL.Query()
	p, err := run(c.Request.Context(), params)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, usersPage{Page: p, Links: repository.PageLinks(p, params)})
}

// List handles GET /.
func (h *UserAdminHandler) List(c *gin.Context) { h.page(c, h.users.List) }

// ListDeleted handles GET /deleted.
func (h *UserAdminHandler) ListDeleted(c *gin.Context) { h.page(c, h.users.ListDeleted) }

// Get handles GET /:id.
func (h *UserAdminHandler) Get(c *gin.Context) {
	id, err := crud.ParseID(c)
	if err != nil {
		response.Fail(c, err)
		return
	}
	user, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, user)
}

// target reads the acting admin and the :id parameter.
func target(c *gin.Context) (usecase.Actor, uint, bool) {
	p, err := jwtmw.CurrentPrincipal(c)
	if err != nil {
		response.Fail(c, err)
		return usecase.Actor{}, 0, false
	}
	id, err := crud.ParseID(c)
	if err != nil {
		response.Fail(c, err)
		return usecase.Actor{}, 0, false
	}
	return usecase.Actor{ID: p.ID, Role: p.Role}, id, true
}

func (h *UserAdminHandler) status(status string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, id, ok := target(c)
		if !ok {
			return
		}
		user, err := h.users.SetStatus(c.Request.Context(), actor, id, status)
		if err != nil {
			response.Fail(c, err)
			return
		}
		response.OK(c, http.StatusOK, user)
	}
}

// Delete handles DELETE /:id.
func (h *UserAdminHandler) Delete(c *gin.Context) {
	actor, id, ok := target(c)
	if !ok {
		return
	}
	if err := h.users.Delete(c.Request.Context(), actor, id); err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{"id": id})
}

// Restore handles POST /:id/restore.
func (h *UserAdminHandler) Restore(c *gin.Context) {
	actor, id, ok := target(c)
	if !ok {
		return
	}
	user, err := h.users.Restore(c.Request.Context(), actor, id)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, user)
}
