// Package hub fans room change events out to connected viewers over
// WebSocket. Change events carry only the event kind and room
// reference; subscribers re-fetch canonical state on receipt, so
// redelivery and reordering are harmless. Chat lines and countdown
// ticks ride the same connections as display-only payloads.
package hub

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/hesedhouse/TDB-Project-sub000/internal/countdown"
	"github.com/hesedhouse/TDB-Project-sub000/internal/presence"
)

// Event kinds broadcast to room subscribers. Mutation kinds are
// re-fetch triggers; "message", "countdown" and "presence" carry their
// payload inline since they are display-only.
const (
	EventRoomExtended = "room.extended"
	EventRoomClosed   = "room.closed"
	EventPinSet       = "pin.set"
	EventPinExtended  = "pin.extended"
	EventPinRevoked   = "pin.revoked"
	EventParticipants = "participants.changed"
	EventContribution = "contribution.recorded"
	EventMessage      = "message"
	EventCountdown    = "countdown"
	EventPresence     = "presence"
)

// Event is one frame pushed to subscribers of a room.
type Event struct {
	Type string      `json:"type"`
	Room string      `json:"room"`
	Data interface{} `json:"data,omitempty"`
}

// ExpiryFunc resolves the current expiry of a room, or nil when the
// room is unknown or already closed. The hub re-invokes it on
// room.extended events so the countdown engine tracks extensions.
type ExpiryFunc func(ctx context.Context, roomID string) (*time.Time, error)

// Config bounds connection behavior.
type Config struct {
	WriteTimeout   time.Duration
	PongTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

// DefaultConfig returns the connection limits used in production.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:   10 * time.Second,
		PongTimeout:    60 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 4096,
		SendBuffer:     64,
	}
}

// Hub owns the per-room connection pools and the per-room countdown
// engines. One hub serves the whole process.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*roomState

	tracker     *presence.Tracker
	clock       clockwork.Clock
	maxLifespan time.Duration
	expiryOf    ExpiryFunc

	config   Config
	upgrader websocket.Upgrader
}

type roomState struct {
	clients map[*Client]bool
	engine  *countdown.Engine
	cancel  context.CancelFunc
}

// New builds a hub. tracker may be disabled (nil Redis); the hub's own
// connection count then serves as the ephemeral presence fallback.
func New(clock clockwork.Clock, tracker *presence.Tracker, maxLifespan time.Duration, expiryOf ExpiryFunc, cfg Config) *Hub {
	return &Hub{
		rooms:       make(map[string]*roomState),
		tracker:     tracker,
		clock:       clock,
		maxLifespan: maxLifespan,
		expiryOf:    expiryOf,
		config:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Subscribe upgrades the request and attaches the connection to the
// room's pool, starting the room's countdown broadcast if this is the
// first subscriber.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, roomID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	client := newClient(h, conn, roomID)
	h.attach(client)
	go client.writePump()
	go client.readPump()
	return nil
}

func (h *Hub) attach(c *Client) {
	h.mu.Lock()
	st, ok := h.rooms[c.roomID]
	if !ok {
		st = &roomState{clients: make(map[*Client]bool)}
		h.rooms[c.roomID] = st
		h.startCountdown(c.roomID, st)
	}
	st.clients[c] = true
	h.mu.Unlock()
}

func (h *Hub) detach(c *Client) {
	h.mu.Lock()
	st, ok := h.rooms[c.roomID]
	if ok {
		delete(st.clients, c)
		if len(st.clients) == 0 {
			if st.cancel != nil {
				st.cancel()
			}
			delete(h.rooms, c.roomID)
		}
	}
	h.mu.Unlock()

	if c.nickname != "" {
		h.tracker.Depart(context.Background(), c.roomID, c.nickname)
		h.Broadcast(Event{Type: EventPresence, Room: c.roomID})
	}
}

// startCountdown launches the per-second tick broadcast for a room.
// Caller holds h.mu.
func (h *Hub) startCountdown(roomID string, st *roomState) {
	ctx, cancel := context.WithCancel(context.Background())
	st.cancel = cancel

	var expiresAt *time.Time
	if h.expiryOf != nil {
		exp, err := h.expiryOf(ctx, roomID)
		if err != nil {
			log.Printf("hub: expiry lookup for room %s failed: %v", roomID, err)
		} else {
			expiresAt = exp
		}
	}
	engine := countdown.NewEngine(h.clock, expiresAt, h.maxLifespan)
	engine.OnTick = func(t countdown.Tick) {
		h.Broadcast(Event{Type: EventCountdown, Room: roomID, Data: t})
	}
	engine.OnExpired = func() {
		// Terminal tick reached on the broadcast side; the closer owns
		// the durable closed_at transition.
		h.Broadcast(Event{Type: EventRoomClosed, Room: roomID})
	}
	st.engine = engine
	go engine.Run(ctx)
}

// Broadcast pushes an event to every subscriber of its room. Slow
// consumers whose send buffer is full are dropped rather than allowed
// to stall the room.
func (h *Hub) Broadcast(evt Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		log.Printf("hub: marshal event failed: %v", err)
		return
	}

	h.mu.RLock()
	st, ok := h.rooms[evt.Room]
	if !ok {
		h.mu.RUnlock()
		return
	}
	var stalled []*Client
	for c := range st.clients {
		select {
		case c.send <- payload:
		default:
			stalled = append(stalled, c)
		}
	}
	var engine *countdown.Engine
	if evt.Type == EventRoomExtended {
		engine = st.engine
	}
	h.mu.RUnlock()

	if engine != nil {
		h.refreshExpiry(evt.Room, engine)
	}
	for _, c := range stalled {
		log.Printf("hub: dropping stalled subscriber in room %s", evt.Room)
		// Only the transport is closed here. The send channel stays
		// open until the read pump has detached the client, so a
		// broadcast still iterating the pool can never hit a closed
		// channel.
		_ = c.conn.Close()
	}
}

// refreshExpiry re-reads the room expiry so the countdown engine tracks
// lifespan extensions. Runs outside the hub lock: the lookup hits the
// database, and SetExpiry is safe on its own because the engine only
// reads the value on its own ticks.
func (h *Hub) refreshExpiry(roomID string, engine *countdown.Engine) {
	if h.expiryOf == nil || engine == nil {
		return
	}
	exp, err := h.expiryOf(context.Background(), roomID)
	if err != nil || exp == nil {
		return
	}
	engine.SetExpiry(*exp)
}

// RoomClosed implements the closer's notifier: the durable closure is
// relayed to subscribers as a change event.
func (h *Hub) RoomClosed(roomID string) {
	h.Broadcast(Event{Type: EventRoomClosed, Room: roomID})
}

// ConnCount returns the number of live connections for a room, the
// ephemeral presence fallback when Redis is unavailable.
func (h *Hub) ConnCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if st, ok := h.rooms[roomID]; ok {
		return len(st.clients)
	}
	return 0
}

// track records a connection's announced nickname in the ephemeral
// presence signal and tells the room about the membership change.
func (h *Hub) track(c *Client, nickname string) {
	nickname = presence.DisplayNickname(nickname)
	c.nickname = nickname
	h.tracker.Announce(context.Background(), c.roomID, nickname)
	h.Broadcast(Event{Type: EventPresence, Room: c.roomID})
}
