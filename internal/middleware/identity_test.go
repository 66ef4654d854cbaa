package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hesedhouse/TDB-Project-sub000/internal/utils"
)

const testSecret = "test-secret"

func runOptionalAuth(t *testing.T, mutate func(*http.Request)) echo.Context {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/rooms/x", nil)
	req.Header.Set("User-Agent", "test-agent")
	req.RemoteAddr = "203.0.113.7:1234"
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := OptionalAuth(testSecret)(func(c echo.Context) error { return nil })
	require.NoError(t, handler(c))
	return c
}

func TestOptionalAuthAnonymous(t *testing.T) {
	c := runOptionalAuth(t, nil)

	assert.Nil(t, c.Get("user_id"))
	assert.Nil(t, c.Get("nickname"))
	fp, ok := c.Get("fingerprint").(string)
	require.True(t, ok)
	assert.NotEmpty(t, fp)
}

func TestOptionalAuthWithValidToken(t *testing.T) {
	access, err := utils.NewAccessToken(testSecret, 42, "민수", 5)
	require.NoError(t, err)

	c := runOptionalAuth(t, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+access.Token)
	})

	uid, ok := c.Get("user_id").(float64)
	require.True(t, ok, "MapClaims decode numbers as float64")
	assert.Equal(t, float64(42), uid)
	assert.Equal(t, "민수", c.Get("nickname"))
	assert.NotNil(t, c.Get("fingerprint"))
}

func TestOptionalAuthIgnoresBadToken(t *testing.T) {
	access, err := utils.NewAccessToken("other-secret", 42, "민수", 5)
	require.NoError(t, err)

	c := runOptionalAuth(t, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+access.Token)
	})

	// Wrong signature degrades to anonymous instead of failing.
	assert.Nil(t, c.Get("user_id"))
	assert.NotNil(t, c.Get("fingerprint"))
}

func TestFingerprintStability(t *testing.T) {
	a := runOptionalAuth(t, nil).Get("fingerprint")
	b := runOptionalAuth(t, nil).Get("fingerprint")
	assert.Equal(t, a, b, "same client yields the same fingerprint")

	other := runOptionalAuth(t, func(r *http.Request) {
		r.Header.Set("User-Agent", "different-agent")
	}).Get("fingerprint")
	assert.NotEqual(t, a, other)
}
