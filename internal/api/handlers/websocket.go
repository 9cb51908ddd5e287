package handlers

import (
	"chat-relay/internal/chat"
	"chat-relay/internal/websocket"

	"github.com/gin-gonic/gin"
)

type WSHandler struct {
	hub     *websocket.Hub
	gateway *chat.Gateway
}

func NewWSHandler(hub *websocket.Hub, gateway *chat.Gateway) *WSHandler {
	return &WSHandler{hub: hub, gateway: gateway}
}

// HandleWebSocket godoc
// @Summary Open the chat websocket
// @Description Upgrade to a websocket carrying the chat event protocol. An optional ?token= pre-authenticates the connection.
// @Tags chat
// @Param token query string false "JWT from /auth/login"
// @Success 101 {string} string "switching protocols"
// @Router /ws [get]
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	username := c.GetString("username") // set by WSAuth when the token is valid
	websocket.ServeWS(h.hub, h.gateway, c.Writer, c.Request, username)
}
