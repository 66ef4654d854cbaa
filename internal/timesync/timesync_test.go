package timesync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// oracle serves a fixed server time and counts hits.
func oracle(t *testing.T, serverNow time.Time) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"now":     serverNow.Format(time.RFC3339Nano),
			"unix_ms": serverNow.UnixMilli(),
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestOffsetAgainstSkewedServer(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	serverNow := clock.Now().Add(42 * time.Second)
	srv, _ := oracle(t, serverNow)

	c := New(srv.URL, nil, clock)
	off := c.Offset(context.Background())
	assert.Equal(t, 42*time.Second, off)

	now := c.Now(context.Background())
	assert.Equal(t, clock.Now().Add(42*time.Second), now)
}

func TestOffsetIsCached(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	srv, hits := oracle(t, clock.Now())

	c := New(srv.URL, nil, clock)
	for i := 0; i < 5; i++ {
		c.Now(context.Background())
	}
	assert.Equal(t, int64(1), hits.Load(), "offset fetched once within the trust interval")

	// Past the trust interval the oracle is consulted again.
	clock.Advance(offsetTTL + time.Second)
	c.Now(context.Background())
	assert.Equal(t, int64(2), hits.Load())
}

func TestOffsetFallsBackToLocalClock(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, nil, clock)
	assert.Zero(t, c.Offset(context.Background()))
	assert.Equal(t, clock.Now(), c.Now(context.Background()))
}

func TestFailedFetchIsNotRetriedEveryCall(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, nil, clock)
	for i := 0; i < 5; i++ {
		c.Now(context.Background())
	}
	assert.Equal(t, int64(1), hits.Load(), "failure is cached like a success")
}

func TestUnixMillisFallbackPayload(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	serverNow := clock.Now().Add(-10 * time.Second)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"unix_ms": serverNow.UnixMilli()})
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, nil, clock)
	require.Equal(t, -10*time.Second, c.Offset(context.Background()))
}
