// Package handler provides the websocket endpoint and the admin
// notification endpoints.
package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"mosaic_backend/internal/feature/notification/hub"
	"mosaic_backend/internal/platform/apperr"
	"mosaic_backend/internal/platform/http/response"
	jwtmw "mosaic_backend/internal/platform/jwt"
	"mosaic_backend/internal/platform/logger"
)

// Events sent by the server on its own behalf.
const (
	EventConnected = "connected"
	EventJoined    = "room.joined"
	EventLeft      = "room.left"
	EventError     = "error"
)

// Client actions.
const (
	ActionJoin  = "join"
	ActionLeave = "leave"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
)

type clientMessage struct {
	Event string `json:"event"`
	Room  string `json:"room"`
}

// WSHandler upgrades authenticated requests and attaches them to the hub.
type WSHandler struct {
	hub      *hub.Hub
	upgrader websocket.Upgrader
}

// NewWSHandler creates a WSHandler. Browsers are only accepted from origins;
// requests without an Origin header (non-browser clients) are always allowed.
func NewWSHandler(h *hub.Hub, origins []string) *WSHandler {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return &WSHandler{
		hub: h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

// RegisterRoutes mounts GET /ws. The group must authenticate with
// jwtmw.Options{AllowQuery: true}.
func (h *WSHandler) RegisterRoutes(g *gin.RouterGroup) {
	g.GET("/ws", h.Serve)
}

// Serve handles GET /ws and blocks until the connection closes.
func (h *WSHandler) Serve(c *gin.Context) {
	p, err := jwtmw.CurrentPrincipal(c)
	if err != nil {
		response.Fail(c, apperr.Unauthorized("Not authorized"))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response.
		logger.L().Warn("websocket upgrade failed", zap.Uint("user_id", p.ID), zap.Error(err))
		return
	}

	client := h.hub.Register(p.ID, p.TenantID)
	go writePump(conn, client)

	h.hub.SendTo(client, EventConnected, gin.H{"id": client.ID, "userId": p.ID})
	h.readPump(conn, client)
}

func (h *WSHandler) readPump(conn *websocket.Conn, client *hub.Client) {
	defer h.hub.Unregister(client)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.L().Warn("websocket closed unexpectedly", zap.String("conn_id", client.ID), zap.Error(err))
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.hub.SendTo(client, EventError, gin.H{"message": "Malformed message"})
			continue
		}
		room := strings.TrimSpace(msg.Room)
		if room == "" {
			h.hub.SendTo(client, EventError, gin.H{"message": "room is required"})
			continue
		}

		switch msg.Event {
		case ActionJoin:
			h.hub.Join(client, hub.TenantRoom(client.TenantID, room))
			h.hub.SendTo(client, EventJoined, gin.H{"room": room})
		case ActionLeave:
			h.hub.Leave(client, hub.TenantRoom(client.TenantID, room))
			h.hub.SendTo(client, EventLeft, gin.H{"room": room})
		default:
			h.hub.SendTo(client, EventError, gin.H{"message": "Unknown event " + msg.Event})
		}
	}
}

// writePump is the only writer on conn. It exits when the hub closes the
// client's queue or a write fails.
func writePump(conn *websocket.Conn, client *hub.Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case frame, ok := <-client.Send():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
