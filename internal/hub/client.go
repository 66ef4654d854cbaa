package hub

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// inbound is the only message shape clients may send: a presence
// announcement. Everything else arriving on the socket is ignored.
type inbound struct {
	Type     string `json:"type"`
	Nickname string `json:"nickname"`
}

// Client is one WebSocket subscription to a room.
type Client struct {
	id       string
	roomID   string
	nickname string

	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
}

func newClient(h *Hub, conn *websocket.Conn, roomID string) *Client {
	return &Client{
		id:     uuid.NewString(),
		roomID: roomID,
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, h.config.SendBuffer),
	}
}

// close tears the connection down once. Only the read pump calls it,
// and only after detach has removed the client from the room pool, so
// the send channel is never closed while a broadcast can still select
// on it.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
		_ = c.conn.Close()
	})
}

// readPump consumes track messages until the connection drops. The
// pong handler extends the read deadline, so transport-level liveness
// doubles as disconnect detection for the presence signal.
func (c *Client) readPump() {
	defer func() {
		c.hub.detach(c)
		c.close()
	}()

	cfg := c.hub.config
	c.conn.SetReadLimit(cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(cfg.PongTimeout))
		if c.nickname != "" {
			// Liveness refresh keeps the ephemeral signal warm.
			c.hub.tracker.Announce(context.Background(), c.roomID, c.nickname)
		}
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("hub: read error in room %s: %v", c.roomID, err)
			}
			return
		}
		var msg inbound
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		if msg.Type == "track" {
			c.hub.track(c, msg.Nickname)
		}
	}
}

// writePump flushes queued events and keeps the connection alive with
// periodic pings.
func (c *Client) writePump() {
	cfg := c.hub.config
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
