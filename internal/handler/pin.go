package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/hesedhouse/TDB-Project-sub000/internal/config"
	"github.com/hesedhouse/TDB-Project-sub000/internal/hub"
	"github.com/hesedhouse/TDB-Project-sub000/internal/model"
	"github.com/hesedhouse/TDB-Project-sub000/internal/pinsync"
	"github.com/hesedhouse/TDB-Project-sub000/internal/queue"
	"github.com/hesedhouse/TDB-Project-sub000/internal/repository"
	queue_publisher "github.com/hesedhouse/TDB-Project-sub000/internal/service"
)

// PinHandler serves the pinned-media endpoints. A room holds at most
// one pin; setting a new one replaces the old. Pin expiry is logical:
// an expired pin is filtered out on read and overwritten on the next
// set, never deleted by a sweeper.
type PinHandler struct {
	Cfg   config.Config
	Rooms *repository.RoomRepo
	Pins  *repository.PinRepo
	Users *repository.UserRepo
	Hub   *hub.Hub
	Clock clockwork.Clock
}

func NewPinHandler(cfg config.Config, rooms *repository.RoomRepo, pins *repository.PinRepo, users *repository.UserRepo, h *hub.Hub, clock clockwork.Clock) *PinHandler {
	return &PinHandler{Cfg: cfg, Rooms: rooms, Pins: pins, Users: users, Hub: h, Clock: clock}
}

type setPinReq struct {
	Kind      model.PinKind `json:"kind"`
	SourceURL string        `json:"source_url"`
}

type reportPinReq struct {
	Reason string `json:"reason"`
}

func (h *PinHandler) loadRoom(c echo.Context, ctx context.Context) (*model.Room, error) {
	room, err := h.Rooms.GetByRef(ctx, c.Param("ref"))
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
		}
		return nil, c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if room.Closed() {
		return nil, c.JSON(http.StatusConflict, echo.Map{"error": "room is closed"})
	}
	return room, nil
}

// Set handles POST /v1/rooms/:ref/pin. The cost and lifespan come from
// the media tier: images are cheap and short, known video hosts cost
// more and run longer. Payment and the pin replacement commit in one
// transaction.
func (h *PinHandler) Set(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "sign in to pin media"})
	}

	var req setPinReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.SourceURL = strings.TrimSpace(req.SourceURL)
	if !model.ValidPinKind(req.Kind) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "kind must be VIDEO or IMAGE"})
	}
	if req.SourceURL == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "source_url required"})
	}
	tier, ok := pinsync.TierFor(req.Kind, req.SourceURL)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unsupported media source"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	room, herr := h.loadRoom(c, ctx)
	if room == nil {
		return herr
	}

	now := h.Clock.Now().UTC()
	pin := &model.Pin{
		ID:        uuid.NewString(),
		RoomID:    room.ID,
		Kind:      req.Kind,
		SourceURL: req.SourceURL,
		StartedAt: now,
		ExpiresAt: now.Add(tier.Duration),
	}

	tx, err := h.Rooms.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := h.Users.SpendHourglassesTx(ctx, tx, uid, tier.Cost); err != nil {
		if errors.Is(err, repository.ErrInsufficientHourglasses) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "not enough hourglasses"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "pin failed"})
	}
	if err := h.Pins.ReplaceTx(ctx, tx, pin); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "pin failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "pin failed"})
	}
	committed = true

	if h.Hub != nil {
		h.Hub.Broadcast(hub.Event{Type: hub.EventPinSet, Room: room.ID})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"id":         pin.ID,
		"kind":       pin.Kind,
		"source_url": pin.SourceURL,
		"started_at": pin.StartedAt,
		"expires_at": pin.ExpiresAt,
		"cost":       tier.Cost,
	})
}

// Get handles GET /v1/rooms/:ref/pin. The response carries the server
// timestamp and the playback position so clients can seek into a video
// mid-flight and stay in sync with everyone else.
func (h *PinHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	room, err := h.Rooms.GetByRef(ctx, c.Param("ref"))
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	now := h.Clock.Now().UTC()
	pin, err := h.Pins.GetActiveByRoom(ctx, room.ID, now)
	if err != nil {
		if errors.Is(err, repository.ErrPinNotFound) || errors.Is(err, repository.ErrPinExpired) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no active pin"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"id":               pin.ID,
		"kind":             pin.Kind,
		"source_url":       pin.SourceURL,
		"started_at":       pin.StartedAt,
		"expires_at":       pin.ExpiresAt,
		"server_now":       now,
		"position_seconds": pinsync.Position(pin.StartedAt, now),
	})
}

// Position handles GET /v1/rooms/:ref/pin/position: just the derived
// playback state plus the drift parameters, for viewers re-checking
// sync mid-playback without refetching the whole pin.
func (h *PinHandler) Position(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	room, err := h.Rooms.GetByRef(ctx, c.Param("ref"))
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	now := h.Clock.Now().UTC()
	pin, err := h.Pins.GetActiveByRoom(ctx, room.ID, now)
	if err != nil {
		if errors.Is(err, repository.ErrPinNotFound) || errors.Is(err, repository.ErrPinExpired) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no active pin"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"position_seconds":         pinsync.Position(pin.StartedAt, now),
		"server_now":               now,
		"drift_threshold_seconds":  pinsync.DriftThreshold.Seconds(),
		"recheck_interval_seconds": pinsync.RecheckInterval.Seconds(),
	})
}

// Extend handles POST /v1/rooms/:ref/pin/extend: spend one hourglass
// to push the current pin's expiry out by the configured increment, up
// to the per-pin cap. Same compare-and-swap ledger shape as the room
// extension.
func (h *PinHandler) Extend(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "sign in to extend a pin"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	room, herr := h.loadRoom(c, ctx)
	if room == nil {
		return herr
	}

	var newExpiry time.Time
	for attempt := 0; attempt < extendAttempts; attempt++ {
		now := h.Clock.Now().UTC()
		pin, perr := h.Pins.GetActiveByRoom(ctx, room.ID, now)
		if perr != nil {
			if errors.Is(perr, repository.ErrPinNotFound) || errors.Is(perr, repository.ErrPinExpired) {
				return c.JSON(http.StatusNotFound, echo.Map{"error": "no active pin"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}

		newExpiry, err = h.extendPinOnce(ctx, pin, uid, now)
		if errors.Is(err, repository.ErrRaceLost) {
			continue
		}
		break
	}
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientHourglasses):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "not enough hourglasses"})
		case errors.Is(err, repository.ErrPinExpired):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no active pin"})
		case errors.Is(err, repository.ErrConflict):
			return c.JSON(http.StatusConflict, echo.Map{"error": "pin extension limit reached"})
		case errors.Is(err, repository.ErrRaceLost):
			return c.JSON(http.StatusConflict, echo.Map{"error": "extension conflicted, please retry"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "extend failed"})
		}
	}

	if h.Hub != nil {
		h.Hub.Broadcast(hub.Event{Type: hub.EventPinExtended, Room: room.ID})
	}
	return c.JSON(http.StatusOK, echo.Map{"expires_at": newExpiry})
}

func (h *PinHandler) extendPinOnce(ctx context.Context, pin *model.Pin, uid uint64, now time.Time) (time.Time, error) {
	tx, err := h.Rooms.DB().BeginTx(ctx, nil)
	if err != nil {
		return time.Time{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	newExpiry, err := h.Pins.ExtendTx(ctx, tx, pin.ID, pin.ExpiresAt, h.Cfg.PinExtension, h.Cfg.PinMaxExtensions, now)
	if err != nil {
		return time.Time{}, err
	}
	if err := h.Users.SpendHourglassesTx(ctx, tx, uid, h.Cfg.PinExtensionCost); err != nil {
		return time.Time{}, err
	}
	if err := tx.Commit(); err != nil {
		return time.Time{}, err
	}
	committed = true
	return newExpiry, nil
}

// Report handles POST /v1/rooms/:ref/pin/report. Reports are
// idempotent per reporter identity; once the distinct count reaches
// the threshold the pin is revoked by forcing its expiry into the
// past.
func (h *PinHandler) Report(c echo.Context) error {
	var req reportPinReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	room, herr := h.loadRoom(c, ctx)
	if room == nil {
		return herr
	}

	now := h.Clock.Now().UTC()
	pin, err := h.Pins.GetActiveByRoom(ctx, room.ID, now)
	if err != nil {
		if errors.Is(err, repository.ErrPinNotFound) || errors.Is(err, repository.ErrPinExpired) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no active pin"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	count, revoked, err := h.Pins.Report(ctx, pin.ID, reporterIdentity(c), strings.TrimSpace(req.Reason), h.Cfg.PinReportThreshold, now)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "report failed"})
	}

	if revoked {
		if h.Hub != nil {
			h.Hub.Broadcast(hub.Event{Type: hub.EventPinRevoked, Room: room.ID})
		}
		if err := queue_publisher.PublishBoardEvent(ctx, queue.BoardEvent{
			Kind:       queue.KindPinRevoked,
			RoomID:     room.ID,
			Keyword:    room.Keyword,
			PinID:      pin.ID,
			Reports:    count,
			OccurredAt: now.Format(time.RFC3339),
		}); err != nil {
			log.Printf("pin-report: publish event failed: %v", err)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"reports": count, "revoked": revoked})
}
