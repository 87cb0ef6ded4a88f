package server

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WebSocketHandler upgrades /ws requests and hands the connection to the hub.
// There is no authentication; roles are claimed by the client after connecting.
type WebSocketHandler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *WebSocketLogger
}

// NewWebSocketHandler accepts upgrades from allowedOrigin, or from anywhere
// when it is empty.
func NewWebSocketHandler(hub *Hub, allowedOrigin string) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigin),
		},
		logger: hub.logger,
	}
}

// Handle upgrades HTTP to WebSocket
func (h *WebSocketHandler) Handle(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "", "", err)
		return
	}

	client := NewClient(h.hub, conn, uuid.New().String(), h.logger)
	h.hub.registerClient(client)
}

func originChecker(allowedOrigin string) func(r *http.Request) bool {
	if allowedOrigin == "" || allowedOrigin == "*" {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// non-browser clients such as pollwatch send no Origin
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		allowed, err := url.Parse(allowedOrigin)
		if err != nil {
			return false
		}
		return u.Scheme == allowed.Scheme && u.Host == allowed.Host
	}
}
