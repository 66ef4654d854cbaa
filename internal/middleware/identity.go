package middleware

// identity.go provides the optional-identity middleware used by board
// routes. Boards are open to anonymous visitors, so instead of
// rejecting requests without a token, OptionalAuth extracts claims
// when a valid bearer token is present and otherwise derives a stable
// anonymous fingerprint from the client address and user agent. The
// fingerprint is what makes pin-report deduplication possible for
// visitors with no account.

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// OptionalAuth returns an Echo middleware that populates the request
// context with `user_id` and `nickname` when a valid Bearer token is
// present, and always sets `fingerprint`. Invalid or missing tokens do
// not fail the request; the handler simply sees an anonymous caller.
func OptionalAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("fingerprint", Fingerprint(c))

			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return next(c)
			}
			raw := strings.TrimPrefix(auth, "Bearer ")
			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return next(c)
			}
			if claims, ok := tok.Claims.(jwt.MapClaims); ok {
				c.Set("user_id", claims["sub"])
				if nick, ok := claims["nickname"].(string); ok {
					c.Set("nickname", nick)
				}
			}
			return next(c)
		}
	}
}

// Fingerprint derives a stable anonymous identity for the request from
// the client IP and user agent. It is not unforgeable; it only needs
// to be stable enough that the same anonymous visitor counts once per
// pin instance in report thresholds.
func Fingerprint(c echo.Context) string {
	sum := sha256.Sum256([]byte(c.RealIP() + "|" + c.Request().UserAgent()))
	return hex.EncodeToString(sum[:8])
}
