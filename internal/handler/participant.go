package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/hesedhouse/TDB-Project-sub000/internal/hub"
	"github.com/hesedhouse/TDB-Project-sub000/internal/model"
	"github.com/hesedhouse/TDB-Project-sub000/internal/presence"
	"github.com/hesedhouse/TDB-Project-sub000/internal/repository"
)

// ParticipantHandler serves durable room membership and the merged
// presence view. Durable rows survive reconnects; the live connection
// count from the tracker fills in when nobody has registered.
type ParticipantHandler struct {
	Rooms        *repository.RoomRepo
	Participants *repository.ParticipantRepo
	Contribs     *repository.ContributionRepo
	Tracker      *presence.Tracker
	Hub          *hub.Hub
	Clock        clockwork.Clock
}

func NewParticipantHandler(rooms *repository.RoomRepo, parts *repository.ParticipantRepo, contribs *repository.ContributionRepo, tracker *presence.Tracker, h *hub.Hub, clock clockwork.Clock) *ParticipantHandler {
	return &ParticipantHandler{Rooms: rooms, Participants: parts, Contribs: contribs, Tracker: tracker, Hub: h, Clock: clock}
}

type joinReq struct {
	Nickname string `json:"nickname"`
}

func (h *ParticipantHandler) resolveRoom(c echo.Context, ctx context.Context) (*model.Room, error) {
	room, err := h.Rooms.GetByRef(ctx, c.Param("ref"))
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
		}
		return nil, c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return room, nil
}

// Join handles POST /v1/rooms/:ref/participants. Signed-in callers
// join under their account; anonymous callers pick a nickname, which
// must be free among the room's active participants.
func (h *ParticipantHandler) Join(c echo.Context) error {
	var req joinReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	room, herr := h.resolveRoom(c, ctx)
	if room == nil {
		return herr
	}
	if room.Closed() {
		return c.JSON(http.StatusConflict, echo.Map{"error": "room is closed"})
	}

	nickname := presence.DisplayNickname(strings.TrimSpace(req.Nickname))
	var userID *uint64
	if uid, err := getUserID(c); err == nil {
		userID = &uid
		if req.Nickname == "" {
			nickname = presence.DisplayNickname(nicknameFromContext(c))
		}
	}

	if err := h.Participants.Join(ctx, room.ID, nickname, userID); err != nil {
		if errors.Is(err, repository.ErrNicknameTaken) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "nickname already in use"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "join failed"})
	}

	if h.Tracker != nil {
		h.Tracker.Announce(ctx, room.ID, nickname)
	}
	if h.Hub != nil {
		h.Hub.Broadcast(hub.Event{Type: hub.EventParticipants, Room: room.ID})
	}
	return c.JSON(http.StatusOK, echo.Map{"nickname": nickname})
}

// Leave handles DELETE /v1/rooms/:ref/participants. Leaving an
// already-left membership is a no-op.
func (h *ParticipantHandler) Leave(c echo.Context) error {
	var req joinReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	room, herr := h.resolveRoom(c, ctx)
	if room == nil {
		return herr
	}

	nickname := presence.DisplayNickname(strings.TrimSpace(req.Nickname))
	var userID *uint64
	if uid, err := getUserID(c); err == nil {
		userID = &uid
		if req.Nickname == "" {
			nickname = presence.DisplayNickname(nicknameFromContext(c))
		}
	}

	if err := h.Participants.Leave(ctx, room.ID, nickname, userID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "leave failed"})
	}

	if h.Tracker != nil {
		h.Tracker.Depart(ctx, room.ID, nickname)
	}
	if h.Hub != nil {
		h.Hub.Broadcast(hub.Event{Type: hub.EventParticipants, Room: room.ID})
	}
	return c.NoContent(http.StatusNoContent)
}

// Presence handles GET /v1/rooms/:ref/presence: the merged view of
// durable participants and live connections, with top contributors
// flagged by rank.
func (h *ParticipantHandler) Presence(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	room, herr := h.resolveRoom(c, ctx)
	if room == nil {
		return herr
	}

	durable, err := h.Participants.ListActive(ctx, room.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	ephemeral := 0
	if h.Tracker != nil {
		if n, ok := h.Tracker.Count(ctx, room.ID); ok {
			ephemeral = n
		} else if h.Hub != nil {
			ephemeral = h.Hub.ConnCount(room.ID)
		}
	} else if h.Hub != nil {
		ephemeral = h.Hub.ConnCount(room.ID)
	}

	tops, err := h.Contribs.TopContributors(ctx, room.ID, 3)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	return c.JSON(http.StatusOK, presence.Merge(durable, ephemeral, tops))
}
