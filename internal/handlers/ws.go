package handlers

import (
	"log/slog"
	"net/http"

	"taskboard/internal/auth"
	"taskboard/internal/dto"
	"taskboard/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WSHandler opens the push channel for an authenticated client.
type WSHandler struct {
	hub      *realtime.Hub
	upgrader *websocket.Upgrader
	opts     realtime.WSOptions
	log      *slog.Logger
}

// NewWSHandler builds the handler. allowedOrigins mirrors the CORS setting;
// "*" or an empty list accepts any origin.
func NewWSHandler(hub *realtime.Hub, allowedOrigins []string, opts realtime.WSOptions, log *slog.Logger) *WSHandler {
	up := &websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024}
	if !allowsAny(allowedOrigins) {
		up.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, o := range allowedOrigins {
				if o == origin {
					return true
				}
			}
			return false
		}
	} else {
		up.CheckOrigin = func(*http.Request) bool { return true }
	}
	return &WSHandler{hub: hub, upgrader: up, opts: opts, log: log}
}

// Serve godoc
// @Summary      Push channel (WebSocket): task_created, task_updated, task_deleted
// @Tags         realtime
// @Security     BearerAuth
// @Param        token  query  string  false  "Bearer token for clients that cannot set headers"
// @Success      101
// @Failure      401  {object}  map[string]string
// @Router       /ws [get]
func (h *WSHandler) Serve(c *gin.Context) {
	err := h.hub.Serve(c.Writer, c.Request, realtime.ServeConfig{
		Upgrader: h.upgrader,
		Owner:    auth.TokenFromContext(c),
		Encode:   dto.EventToMessage,
		Hello: func(id realtime.SessionID) any {
			return dto.HelloMessage(string(id))
		},
		Options: h.opts,
	})
	if err != nil {
		h.log.Warn("push channel failed", "user_id", auth.UserIDFromContext(c), "err", err)
	}
}

func allowsAny(origins []string) bool {
	if len(origins) == 0 {
		return true
	}
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
