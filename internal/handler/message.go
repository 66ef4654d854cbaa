package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/hesedhouse/TDB-Project-sub000/internal/hub"
	"github.com/hesedhouse/TDB-Project-sub000/internal/model"
	"github.com/hesedhouse/TDB-Project-sub000/internal/presence"
	"github.com/hesedhouse/TDB-Project-sub000/internal/repository"
)

const (
	maxMessageBody  = 2000
	defaultPageSize = 50
)

// MessageHandler serves the chat surface of a room. Posted messages
// are persisted and then fanned out to live subscribers through the
// hub.
type MessageHandler struct {
	Rooms    *repository.RoomRepo
	Messages *repository.MessageRepo
	Hub      *hub.Hub
	Clock    clockwork.Clock
}

func NewMessageHandler(rooms *repository.RoomRepo, msgs *repository.MessageRepo, h *hub.Hub, clock clockwork.Clock) *MessageHandler {
	return &MessageHandler{Rooms: rooms, Messages: msgs, Hub: h, Clock: clock}
}

type postMessageReq struct {
	Nickname string  `json:"nickname"`
	Body     string  `json:"body"`
	ImageURL *string `json:"image_url"`
}

type messageView struct {
	ID        uint64    `json:"id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	ImageURL  *string   `json:"image_url,omitempty"`
	Hearts    uint32    `json:"hearts"`
	CreatedAt time.Time `json:"created_at"`
}

func toMessageView(m *model.Message) messageView {
	return messageView{ID: m.ID, Author: m.Author, Body: m.Body, ImageURL: m.ImageURL, Hearts: m.Hearts, CreatedAt: m.CreatedAt}
}

func (h *MessageHandler) resolveRoom(c echo.Context, ctx context.Context) (*model.Room, error) {
	room, err := h.Rooms.GetByRef(ctx, c.Param("ref"))
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
		}
		return nil, c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return room, nil
}

// List handles GET /v1/rooms/:ref/messages. Returns the most recent
// messages in chronological order.
func (h *MessageHandler) List(c echo.Context) error {
	limit := defaultPageSize
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	room, herr := h.resolveRoom(c, ctx)
	if room == nil {
		return herr
	}

	msgs, err := h.Messages.ListRecent(ctx, room.ID, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	views := make([]messageView, 0, len(msgs))
	for i := range msgs {
		views = append(views, toMessageView(&msgs[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"messages": views})
}

// Post handles POST /v1/rooms/:ref/messages. Anonymous authors post
// under a chosen nickname; empty names fall back to the no-name
// label. A message may carry a body, an image, or both, but not
// neither.
func (h *MessageHandler) Post(c echo.Context) error {
	var req postMessageReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Body = strings.TrimSpace(req.Body)
	if req.Body == "" && req.ImageURL == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "message body or image required"})
	}
	if len(req.Body) > maxMessageBody {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "message too long"})
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

	author := presence.DisplayNickname(strings.TrimSpace(req.Nickname))
	var userID *uint64
	if uid, err := getUserID(c); err == nil {
		userID = &uid
		if req.Nickname == "" {
			author = presence.DisplayNickname(nicknameFromContext(c))
		}
	}

	msg, err := h.Messages.Create(ctx, room.ID, author, req.Body, req.ImageURL, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "post failed"})
	}

	if h.Hub != nil {
		h.Hub.Broadcast(hub.Event{Type: hub.EventMessage, Room: room.ID, Data: toMessageView(msg)})
	}
	return c.JSON(http.StatusCreated, toMessageView(msg))
}

// Heart handles POST /v1/rooms/:ref/messages/:id/heart. Authors cannot
// heart their own signed messages.
func (h *MessageHandler) Heart(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid message id"})
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

	if err := h.Messages.Heart(ctx, id, optionalUserID(c)); err != nil {
		switch {
		case errors.Is(err, repository.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "cannot heart your own message"})
		case errors.Is(err, sql.ErrNoRows):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "message not found"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "heart failed"})
		}
	}

	msg, err := h.Messages.GetByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if h.Hub != nil {
		h.Hub.Broadcast(hub.Event{Type: hub.EventMessage, Room: room.ID, Data: toMessageView(msg)})
	}
	return c.JSON(http.StatusOK, echo.Map{"hearts": msg.Hearts})
}
