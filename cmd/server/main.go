package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/hesedhouse/TDB-Project-sub000/internal/config"
	"github.com/hesedhouse/TDB-Project-sub000/internal/countdown"
	"github.com/hesedhouse/TDB-Project-sub000/internal/database"
	"github.com/hesedhouse/TDB-Project-sub000/internal/handler"
	"github.com/hesedhouse/TDB-Project-sub000/internal/hub"
	"github.com/hesedhouse/TDB-Project-sub000/internal/middleware"
	"github.com/hesedhouse/TDB-Project-sub000/internal/presence"
	"github.com/hesedhouse/TDB-Project-sub000/internal/queue"
	"github.com/hesedhouse/TDB-Project-sub000/internal/repository"
	"github.com/hesedhouse/TDB-Project-sub000/internal/router"
	queue_publisher "github.com/hesedhouse/TDB-Project-sub000/internal/service"
)

// closureFanout relays room closures from the sweep to live websocket
// subscribers and to the event queue.
type closureFanout struct {
	hub   *hub.Hub
	rooms *repository.RoomRepo
}

func (f *closureFanout) RoomClosed(roomID string) {
	f.hub.RoomClosed(roomID)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	evt := queue.BoardEvent{
		Kind:       queue.KindRoomClosed,
		RoomID:     roomID,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
	if room, err := f.rooms.GetByID(ctx, roomID); err == nil {
		evt.Keyword = room.Keyword
	}
	if err := queue_publisher.PublishBoardEvent(ctx, evt); err != nil {
		log.Printf("closure: publish event failed: %v", err)
	}
}

func main() {
	// Load variables from a .env file when present; real environments
	// set them directly.
	_ = godotenv.Load()

	cfg := config.Load()
	clock := clockwork.NewRealClock()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis is optional: without it the rate limiter and response cache
	// become pass-through and presence falls back to in-process counts.
	rdb := config.NewRedisClient()
	tracker := presence.NewTracker(rdb)

	rooms := repository.NewRoomRepo(db)
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	pins := repository.NewPinRepo(db)
	participants := repository.NewParticipantRepo(db)
	contribs := repository.NewContributionRepo(db)
	messages := repository.NewMessageRepo(db)

	// The hub re-reads a room's expiry whenever an extension lands so
	// the per-room countdown engines track the new deadline.
	expiryOf := func(ctx context.Context, roomID string) (*time.Time, error) {
		room, err := rooms.GetByID(ctx, roomID)
		if err != nil {
			return nil, err
		}
		if room.Closed() {
			return nil, nil
		}
		exp := room.ExpiresAt
		return &exp, nil
	}
	h := hub.New(clock, tracker, cfg.RoomMaxLifespan, expiryOf, hub.DefaultConfig())

	closer := countdown.NewCloser(clock, rooms, &closureFanout{hub: h, rooms: rooms})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go closer.Run(ctx)

	// Background consumer that drains board.events into the audit log
	// and credits hourglass purchases. It reconnects on its own; a
	// missing broker only disables those two paths.
	go func() {
		if err := queue.StartBoardConsumer(users); err != nil {
			log.Printf("queue consumer stopped: %v", err)
		}
	}()

	e := echo.New()

	// Rate limiting and response caching degrade to no-ops when redis
	// is unavailable.
	rl := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cacheMW := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	timeHandler := handler.NewTimeHandler(clock)
	authHandler := handler.NewAuthHandler(cfg, users, tokens)
	deps := router.BoardDeps{
		Rooms:        handler.NewRoomHandler(cfg, rooms, pins, users, contribs, h, clock, closer),
		Pins:         handler.NewPinHandler(cfg, rooms, pins, users, h, clock),
		Participants: handler.NewParticipantHandler(rooms, participants, contribs, tracker, h, clock),
		Messages:     handler.NewMessageHandler(rooms, messages, h, clock),
		WS:           handler.NewWSHandler(rooms, h),
	}

	router.RegisterRoutes(e, timeHandler)
	router.RegisterAuth(e, authHandler, cfg.JWTSecret)
	router.RegisterBoard(e, deps, cfg.JWTSecret, rl, cacheMW)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
