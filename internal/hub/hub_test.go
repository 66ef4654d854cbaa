package hub

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hesedhouse/TDB-Project-sub000/internal/presence"
)

func testConfig(buffer int) Config {
	cfg := DefaultConfig()
	cfg.SendBuffer = buffer
	return cfg
}

func newTestHub(buffer int) *Hub {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC))
	return New(clock, presence.NewTracker(nil), 24*time.Hour, nil, testConfig(buffer))
}

// dialServerConn returns the server side of a live websocket pair so a
// client can be attached to the hub without running its pumps.
func dialServerConn(t *testing.T) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	connCh := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		connCh <- conn
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	select {
	case conn := <-connCh:
		t.Cleanup(func() { conn.Close() })
		return conn
	case <-time.After(5 * time.Second):
		t.Fatal("no server connection")
		return nil
	}
}

func TestBroadcastSurvivesStalledSubscriber(t *testing.T) {
	h := newTestHub(1)
	stalled := newClient(h, dialServerConn(t), "room-1")
	h.attach(stalled)

	// The pumps are never started, so the one-slot send buffer fills
	// on the first event and every later one finds it full.
	h.Broadcast(Event{Type: EventPinSet, Room: "room-1"})
	h.Broadcast(Event{Type: EventPinSet, Room: "room-1"})

	// Dropping the stalled subscriber closes its transport only; the
	// send channel must stay open until the read pump detaches the
	// client, so further broadcasts cannot hit a closed channel.
	assert.NotPanics(t, func() {
		h.Broadcast(Event{Type: EventPinSet, Room: "room-1"})
		h.Broadcast(Event{Type: EventMessage, Room: "room-1", Data: "안녕"})
	})
}

func TestBroadcastStillReachesHealthySubscribers(t *testing.T) {
	h := newTestHub(1)
	stalled := newClient(h, dialServerConn(t), "room-1")
	h.attach(stalled)

	healthy := newClient(h, dialServerConn(t), "room-1")
	h.attach(healthy)

	// Fill the stalled client's buffer, then force the drop.
	h.Broadcast(Event{Type: EventPinSet, Room: "room-1"})
	drain(t, healthy.send)
	h.Broadcast(Event{Type: EventPinSet, Room: "room-1"})
	drain(t, healthy.send)

	h.Broadcast(Event{Type: EventRoomClosed, Room: "room-1"})
	payload := drain(t, healthy.send)

	var evt Event
	require.NoError(t, json.Unmarshal(payload, &evt))
	assert.Equal(t, EventRoomClosed, evt.Type)
	assert.Equal(t, "room-1", evt.Room)
}

func drain(t *testing.T, ch chan []byte) []byte {
	t.Helper()
	select {
	case payload := <-ch:
		return payload
	case <-time.After(time.Second):
		t.Fatal("no event queued")
		return nil
	}
}

func TestSubscribeDeliversEventsEndToEnd(t *testing.T) {
	h := newTestHub(16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = h.Subscribe(w, r, "room-1")
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer client.Close()

	require.Eventually(t, func() bool { return h.ConnCount("room-1") == 1 },
		2*time.Second, 10*time.Millisecond)

	h.Broadcast(Event{Type: EventPinSet, Room: "room-1"})

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := client.ReadMessage()
	require.NoError(t, err)

	var evt Event
	require.NoError(t, json.Unmarshal(raw, &evt))
	assert.Equal(t, EventPinSet, evt.Type)
	assert.Equal(t, "room-1", evt.Room)

	client.Close()
	require.Eventually(t, func() bool { return h.ConnCount("room-1") == 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestTrackBroadcastsPresenceChange(t *testing.T) {
	h := newTestHub(16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = h.Subscribe(w, r, "room-1")
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer client.Close()

	require.Eventually(t, func() bool { return h.ConnCount("room-1") == 1 },
		2*time.Second, 10*time.Millisecond)

	require.NoError(t, client.WriteJSON(map[string]string{"type": "track", "nickname": "민수"}))

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := client.ReadMessage()
	require.NoError(t, err)

	var evt Event
	require.NoError(t, json.Unmarshal(raw, &evt))
	assert.Equal(t, EventPresence, evt.Type)
}

func TestBroadcastUnknownRoomIsNoop(t *testing.T) {
	h := newTestHub(1)
	assert.NotPanics(t, func() {
		h.Broadcast(Event{Type: EventPinSet, Room: "nowhere"})
	})
	assert.Equal(t, 0, h.ConnCount("nowhere"))
}
