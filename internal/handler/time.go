package handler

import (
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
)

// TimeHandler exposes the server time oracle. Clients call it once,
// compute offset = server time minus local time, and derive a shared clock
// locally for the next few minutes, so countdowns and pinned playback
// agree across viewers.
type TimeHandler struct {
	Clock clockwork.Clock
}

func NewTimeHandler(clock clockwork.Clock) *TimeHandler {
	return &TimeHandler{Clock: clock}
}

// Now handles GET /v1/time.
func (h *TimeHandler) Now(c echo.Context) error {
	now := h.Clock.Now().UTC()
	return c.JSON(http.StatusOK, echo.Map{
		"now":     now.Format(time.RFC3339Nano),
		"unix_ms": now.UnixMilli(),
	})
}
