package handler // handler defines http handlers

import (
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"
)

// getUserID extracts the user_id from echo.Context and converts it to uint64
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// optionalUserID returns the authenticated user's ID, or nil when the
// request carried no valid token. Board actions are open to anonymous
// visitors, so most handlers take this form instead of getUserID.
func optionalUserID(c echo.Context) *uint64 {
	id, err := getUserID(c)
	if err != nil {
		return nil
	}
	return &id
}

// reporterIdentity returns a stable identity string for report
// deduplication: the account ID when authenticated, the anonymous
// fingerprint injected by middleware otherwise.
func reporterIdentity(c echo.Context) string {
	if id, err := getUserID(c); err == nil {
		return "user:" + strconv.FormatUint(id, 10)
	}
	if fp, ok := c.Get("fingerprint").(string); ok && fp != "" {
		return "anon:" + fp
	}
	return ""
}
