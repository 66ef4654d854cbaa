package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/hesedhouse/TDB-Project-sub000/internal/config"
	"github.com/hesedhouse/TDB-Project-sub000/internal/countdown"
	"github.com/hesedhouse/TDB-Project-sub000/internal/hub"
	"github.com/hesedhouse/TDB-Project-sub000/internal/model"
	"github.com/hesedhouse/TDB-Project-sub000/internal/presence"
	"github.com/hesedhouse/TDB-Project-sub000/internal/queue"
	"github.com/hesedhouse/TDB-Project-sub000/internal/repository"
	queue_publisher "github.com/hesedhouse/TDB-Project-sub000/internal/service"
	"github.com/hesedhouse/TDB-Project-sub000/internal/utils"
)

// extendAttempts bounds the CAS retry loop of the extension ledger. A
// lost race re-reads the fresh expiry and tries again, so concurrent
// extensions are additive; after this many consecutive losses the
// caller gets a retryable conflict with nothing spent.
const extendAttempts = 3

// RoomHandler serves room lifecycle endpoints: creation, lookup,
// secret verification, lifespan extension and the contribution
// leaderboard. Mutations run inside transactions so the hourglass
// spend, the expiry change and the contribution row commit or roll
// back together; a failed persist never costs the caller currency.
type RoomHandler struct {
	Cfg      config.Config
	Rooms    *repository.RoomRepo
	Pins     *repository.PinRepo
	Users    *repository.UserRepo
	Contribs *repository.ContributionRepo
	Hub      *hub.Hub
	Clock    clockwork.Clock
	// Waker is nudged after a successful extension so the closer
	// re-arms its timer against the new earliest expiry.
	Waker interface{ Wake() }
}

// NewRoomHandler constructs a RoomHandler. Hub and Waker may be nil in
// tests; all repositories must be non-nil.
func NewRoomHandler(cfg config.Config, rooms *repository.RoomRepo, pins *repository.PinRepo, users *repository.UserRepo, contribs *repository.ContributionRepo, h *hub.Hub, clock clockwork.Clock, waker interface{ Wake() }) *RoomHandler {
	if rooms == nil || pins == nil || users == nil || contribs == nil {
		panic("nil repository passed to NewRoomHandler")
	}
	return &RoomHandler{Cfg: cfg, Rooms: rooms, Pins: pins, Users: users, Contribs: contribs, Hub: h, Clock: clock, Waker: waker}
}

// ----- DTOs -----

type createRoomReq struct {
	Keyword string `json:"keyword"`
	Name    string `json:"name"`
	Secret  string `json:"secret"`
}

type verifySecretReq struct {
	Secret string `json:"secret"`
}

type pinView struct {
	ID        string        `json:"id"`
	Kind      model.PinKind `json:"kind"`
	SourceURL string        `json:"source_url"`
	StartedAt time.Time     `json:"started_at"`
	ExpiresAt time.Time     `json:"expires_at"`
}

type roomView struct {
	ID        string         `json:"id"`
	Keyword   string         `json:"keyword"`
	Name      string         `json:"name"`
	HasSecret bool           `json:"has_secret"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at"`
	ClosedAt  *time.Time     `json:"closed_at,omitempty"`
	Countdown countdown.Tick `json:"countdown"`
	Pin       *pinView       `json:"pin,omitempty"`
}

func (h *RoomHandler) roomToView(ctx context.Context, room *model.Room) roomView {
	now := h.Clock.Now()
	v := roomView{
		ID:        room.ID,
		Keyword:   room.Keyword,
		Name:      room.Name,
		HasSecret: room.SecretHash != nil,
		CreatedAt: room.CreatedAt,
		ExpiresAt: room.ExpiresAt,
		ClosedAt:  room.ClosedAt,
		Countdown: countdown.Compute(&room.ExpiresAt, now, h.Cfg.RoomMaxLifespan),
	}
	// An expired pin is simply absent from the view; no write needed.
	if pin, err := h.Pins.GetActiveByRoom(ctx, room.ID, now); err == nil {
		v.Pin = &pinView{ID: pin.ID, Kind: pin.Kind, SourceURL: pin.SourceURL, StartedAt: pin.StartedAt, ExpiresAt: pin.ExpiresAt}
	}
	return v
}

// Create handles POST /v1/rooms. Creation is idempotent per keyword:
// when the keyword is already taken the existing room is returned with
// 200 instead of 201.
func (h *RoomHandler) Create(c echo.Context) error {
	var req createRoomReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Keyword = strings.TrimSpace(req.Keyword)
	if req.Keyword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "keyword required"})
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = req.Keyword
	}

	var secretHash *string
	if s := strings.TrimSpace(req.Secret); s != "" {
		hash, err := utils.HashPassword(s, h.Cfg.BcryptCost)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "hash secret failed"})
		}
		secretHash = &hash
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	room, created, err := h.Rooms.CreateOrGet(ctx, req.Keyword, name, secretHash, h.Cfg.RoomDefaultLifespan)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create room failed"})
	}
	if h.Waker != nil && created {
		h.Waker.Wake()
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, h.roomToView(ctx, room))
}

// Get handles GET /v1/rooms/:ref where :ref is the UUID token or the
// keyword.
func (h *RoomHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	room, err := h.Rooms.GetByRef(ctx, c.Param("ref"))
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, h.roomToView(ctx, room))
}

// VerifySecret handles POST /v1/rooms/:ref/verify-secret. Rooms with no
// secret verify any candidate as true.
func (h *RoomHandler) VerifySecret(c echo.Context) error {
	var req verifySecretReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	room, err := h.Rooms.GetByRef(ctx, c.Param("ref"))
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	valid := true
	if room.SecretHash != nil {
		valid = utils.VerifyPassword(*room.SecretHash, req.Secret)
	}
	return c.JSON(http.StatusOK, echo.Map{"valid": valid})
}

// Extend handles POST /v1/rooms/:ref/extend: the lifespan extension
// ledger. One hourglass buys one fixed increment of lifetime and is
// credited to the caller's display name as a contribution. The expiry
// update is a compare-and-swap on the previously read value, retried a
// bounded number of times, so concurrent extensions all land and none
// is lost to a stale read.
func (h *RoomHandler) Extend(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "sign in to extend a board"})
	}
	contributor := presence.DisplayNickname(nicknameFromContext(c))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	var (
		room      *model.Room
		newExpiry time.Time
	)
	for attempt := 0; attempt < extendAttempts; attempt++ {
		room, err = h.Rooms.GetByRef(ctx, c.Param("ref"))
		if err != nil {
			if errors.Is(err, repository.ErrRoomNotFound) {
				return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		if room.Closed() {
			return c.JSON(http.StatusConflict, echo.Map{"error": "room is closed"})
		}

		newExpiry, err = h.extendOnce(ctx, room, uid, contributor)
		if errors.Is(err, repository.ErrRaceLost) {
			continue // fresh read, try again
		}
		break
	}
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientHourglasses):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "not enough hourglasses"})
		case errors.Is(err, repository.ErrRoomClosed):
			return c.JSON(http.StatusConflict, echo.Map{"error": "room is closed"})
		case errors.Is(err, repository.ErrRaceLost):
			return c.JSON(http.StatusConflict, echo.Map{"error": "extension conflicted, please retry"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "extend failed"})
		}
	}

	if h.Waker != nil {
		h.Waker.Wake()
	}
	if h.Hub != nil {
		h.Hub.Broadcast(hub.Event{Type: hub.EventRoomExtended, Room: room.ID})
		h.Hub.Broadcast(hub.Event{Type: hub.EventContribution, Room: room.ID})
	}
	// Event log is best-effort; the extension already committed.
	if err := queue_publisher.PublishBoardEvent(ctx, queue.BoardEvent{
		Kind:        queue.KindContribution,
		RoomID:      room.ID,
		Keyword:     room.Keyword,
		Contributor: contributor,
		Minutes:     h.Cfg.ExtensionMinutes(),
		OccurredAt:  h.Clock.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		log.Printf("room-extend: publish event failed: %v", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"expires_at": newExpiry,
		"minutes":    h.Cfg.ExtensionMinutes(),
	})
}

// extendOnce runs one ledger transaction: CAS the expiry forward,
// spend the hourglass, append the contribution. Any failure rolls the
// whole transaction back, so there is no partial spend.
func (h *RoomHandler) extendOnce(ctx context.Context, room *model.Room, uid uint64, contributor string) (time.Time, error) {
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

	newExpiry, err := h.Rooms.ExtendExpiryTx(ctx, tx, room.ID, room.ExpiresAt, h.Cfg.RoomExtension)
	if err != nil {
		return time.Time{}, err
	}
	if err := h.Users.SpendHourglassesTx(ctx, tx, uid, h.Cfg.ExtensionCost); err != nil {
		return time.Time{}, err
	}
	if err := h.Contribs.AppendTx(ctx, tx, room.ID, contributor, h.Cfg.ExtensionMinutes()); err != nil {
		return time.Time{}, err
	}
	if err := tx.Commit(); err != nil {
		return time.Time{}, err
	}
	committed = true
	return newExpiry, nil
}

// TopContributors handles GET /v1/rooms/:ref/contributors.
func (h *RoomHandler) TopContributors(c echo.Context) error {
	limit := 3
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 50 {
			limit = n
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	room, err := h.Rooms.GetByRef(ctx, c.Param("ref"))
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	tops, err := h.Contribs.TopContributors(ctx, room.ID, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"contributors": tops})
}

// nicknameFromContext returns the nickname claim injected by the
// middleware, or empty for anonymous callers.
func nicknameFromContext(c echo.Context) string {
	if nick, ok := c.Get("nickname").(string); ok {
		return nick
	}
	return ""
}
