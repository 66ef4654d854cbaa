package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeNow(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 34, 56, 0, time.UTC)
	h := NewTimeHandler(clockwork.NewFakeClockAt(at))

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/time", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, h.Now(e.NewContext(req, rec)))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Now    time.Time `json:"now"`
		UnixMS int64     `json:"unix_ms"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Now.Equal(at))
	assert.Equal(t, at.UnixMilli(), body.UnixMS)
}
