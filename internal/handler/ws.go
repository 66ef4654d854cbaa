package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hesedhouse/TDB-Project-sub000/internal/hub"
	"github.com/hesedhouse/TDB-Project-sub000/internal/repository"
)

// WSHandler upgrades GET /ws/rooms/:ref to a websocket subscription on
// the room's event stream. Closed rooms refuse new subscribers.
type WSHandler struct {
	Rooms *repository.RoomRepo
	Hub   *hub.Hub
}

func NewWSHandler(rooms *repository.RoomRepo, h *hub.Hub) *WSHandler {
	return &WSHandler{Rooms: rooms, Hub: h}
}

func (h *WSHandler) Subscribe(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	room, err := h.Rooms.GetByRef(ctx, c.Param("ref"))
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if room.Closed() {
		return c.JSON(http.StatusGone, echo.Map{"error": "room is closed"})
	}
	return h.Hub.Subscribe(c.Response(), c.Request(), room.ID)
}
