package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/hesedhouse/TDB-Project-sub000/internal/handler"    // import the handlers that implement business logic
	"github.com/hesedhouse/TDB-Project-sub000/internal/middleware" // import middleware for JWT authentication and identity
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes the health check and the
// server time oracle used by clients to compute their clock offset.
func RegisterRoutes(e *echo.Echo, t *handler.TimeHandler) {
	// The health endpoint can be used by load balancers or monitoring
	// systems to verify that the service is up and running.
	e.GET("/healthz", handler.Health)
	// Clients poll this endpoint to learn the authoritative server time.
	e.GET("/v1/time", t.Now)
}

// RegisterAuth registers all authentication-related routes and applies the
// necessary middleware.  Unauthenticated operations live under /v1/auth,
// while protected endpoints live under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	// Operations that do not require an existing session: register, login
	// and the two refresh variants.  Each handler is responsible for
	// generating or exchanging tokens.
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Refresh rotates the refresh token; refresh-access only mints a new
	// access token and leaves the refresh token untouched.
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout accepts a JSON body containing a `refresh_token` and
	// invalidates it.  It does not require JWT authentication.
	g.POST("/logout", a.Logout)

	// Routes that require a valid access token.
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}

// BoardDeps bundles the handlers behind the board surface so route
// registration stays a single call in main.
type BoardDeps struct {
	Rooms        *handler.RoomHandler
	Pins         *handler.PinHandler
	Participants *handler.ParticipantHandler
	Messages     *handler.MessageHandler
	WS           *handler.WSHandler
}

// RegisterBoard registers the room, pin, participant and message routes.
// All of them run behind OptionalAuth: anonymous callers get a request
// fingerprint, signed-in callers additionally get their user id and
// nickname claims.  Endpoints that must have an account enforce that in
// the handler rather than at the router, because most of the surface is
// open to anonymous visitors.
func RegisterBoard(e *echo.Echo, d BoardDeps, jwtSecret string, extra ...echo.MiddlewareFunc) {
	g := e.Group("/v1/rooms", append([]echo.MiddlewareFunc{middleware.OptionalAuth(jwtSecret)}, extra...)...)

	// Room lifecycle.
	g.POST("", d.Rooms.Create)
	g.GET("/:ref", d.Rooms.Get)
	g.POST("/:ref/verify-secret", d.Rooms.VerifySecret)
	g.POST("/:ref/extend", d.Rooms.Extend)
	g.GET("/:ref/contributors", d.Rooms.TopContributors)

	// Pinned media.
	g.GET("/:ref/pin", d.Pins.Get)
	g.POST("/:ref/pin", d.Pins.Set)
	g.GET("/:ref/pin/position", d.Pins.Position)
	g.POST("/:ref/pin/extend", d.Pins.Extend)
	g.POST("/:ref/pin/report", d.Pins.Report)

	// Participants and presence.
	g.POST("/:ref/join", d.Participants.Join)
	g.POST("/:ref/leave", d.Participants.Leave)
	g.GET("/:ref/presence", d.Participants.Presence)

	// Chat.
	g.GET("/:ref/messages", d.Messages.List)
	g.POST("/:ref/messages", d.Messages.Post)
	g.POST("/:ref/messages/:id/heart", d.Messages.Heart)

	// Live event stream.  The websocket upgrade cannot go through the
	// response-capturing middleware, so it hangs off the root group.
	e.GET("/ws/rooms/:ref", d.WS.Subscribe, middleware.OptionalAuth(jwtSecret))
}
