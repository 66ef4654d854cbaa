package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health is the liveness endpoint used by load balancers and
// monitoring to verify the service is running. It answers "ok" with a
// 200 status and touches no dependency, so it stays green while the
// database or broker is down.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
