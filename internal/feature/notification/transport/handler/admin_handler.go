package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mosaic_backend/internal/feature/notification/hub"
	"mosaic_backend/internal/feature/notification/transport/http/dto"
	"mosaic_backend/internal/platform/apperr"
	"mosaic_backend/internal/platform/http/response"
	jwtmw "mosaic_backend/internal/platform/jwt"
	"mosaic_backend/internal/platform/logger"
)

// Notifier is the hub surface used by the admin endpoints.
// Following Go convention: interfaces are defined by the consumer (handler), not the provider (hub).
type Notifier interface {
	SendToUser(userID uint, event string, payload any) int
	SendToRoom(room, event string, payload any) int
	Broadcast(event string, payload any) int
	ConnectedUsers() []uint
	Connections() int
}

var _ Notifier = (*hub.Hub)(nil)

// AdminHandler serves /admin/notifications.
type AdminHandler struct {
	notifier Notifier
}

func NewAdminHandler(n Notifier) *AdminHandler {
	return &AdminHandler{notifier: n}
}

func (h *AdminHandler) RegisterRoutes(g *gin.RouterGroup) {
	g.POST("/broadcast", h.Broadcast)
	g.GET("/connected", h.Connected)
}

// Broadcast handles POST /broadcast.
func (h *AdminHandler) Broadcast(c *gin.Context) {
	var req dto.BroadcastReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, response.BindError(err))
		return
	}
	p, err := jwtmw.CurrentPrincipal(c)
	if err != nil {
		response.Fail(c, apperr.Unauthorized("Not authorized"))
		return
	}
	room := strings.TrimSpace(req.Room)
	if req.UserID != nil && room != "" {
		response.Fail(c, apperr.Validation("Specify either userId or room, not both"))
		return
	}

	var n int
	switch {
	case req.UserID != nil:
		n = h.notifier.SendToUser(*req.UserID, req.Event, req.Data)
	case room != "":
		n = h.notifier.SendToRoom(hub.TenantRoom(p.TenantID, room), req.Event, req.Data)
	default:
		n = h.notifier.Broadcast(req.Event, req.Data)
	}
	logger.L().Info("notification sent",
		zap.Uint("admin_id", p.ID),
		zap.String("event", req.Event),
		zap.String("room", room),
		zap.Int("delivered", n),
	)
	response.OK(c, http.StatusOK, dto.BroadcastRes{Delivered: n})
}

// Connected handles GET /connected.
func (h *AdminHandler) Connected(c *gin.Context) {
	users := h.notifier.ConnectedUsers()
	response.OK(c, http.StatusOK, dto.ConnectedRes{
		Users:       users,
		Count:       len(users),
		Connections: h.notifier.Connections(),
	})
}
