package handlers

import (
	"net/http"

	"chat-relay/internal/chat"

	"github.com/gin-gonic/gin"
)

type RoomsHandler struct {
	rooms *chat.RoomDirectory
}

func NewRoomsHandler(rooms *chat.RoomDirectory) *RoomsHandler {
	return &RoomsHandler{rooms: rooms}
}

// ListRooms godoc
// @Summary List live rooms
// @Description Point-in-time view of every room: member count, buffered messages and last sequence
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Success 200 {array} chat.RoomStat
// @Router /rooms [get]
func (h *RoomsHandler) ListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, h.rooms.Stats())
}
