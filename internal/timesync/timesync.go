// Package timesync keeps a client's view of the server clock. Clients
// compute offset = serverTime - localTime once, cache it for a bounded
// interval, and derive "server now" locally in between, so countdowns
// and pin playback agree across viewers without hammering the oracle.
package timesync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// offsetTTL bounds how long a fetched offset is trusted before the
// oracle is queried again.
const offsetTTL = 5 * time.Minute

// timeResponse mirrors the GET /v1/time payload.
type timeResponse struct {
	Now    time.Time `json:"now"`
	UnixMS int64     `json:"unix_ms"`
}

// Client derives the current server time from a cached clock offset.
// On any failure to reach the oracle it falls back to offset zero,
// meaning the local clock, instead of failing the caller; synchronization
// degrades gracefully rather than blocking.
type Client struct {
	endpoint string
	http     *http.Client
	clock    clockwork.Clock

	mu        sync.Mutex
	offset    time.Duration
	fetchedAt time.Time
	haveFetch bool
}

// New builds a client against the oracle endpoint (the full URL of the
// server-time route). httpClient may be nil to use a short-timeout
// default; clock may be nil to use the wall clock.
func New(endpoint string, httpClient *http.Client, clock clockwork.Clock) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 3 * time.Second}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Client{endpoint: endpoint, http: httpClient, clock: clock}
}

// Now returns the current server-side instant as derived from the
// cached offset, refreshing the offset when the cache interval has
// elapsed.
func (c *Client) Now(ctx context.Context) time.Time {
	return c.clock.Now().Add(c.Offset(ctx))
}

// Offset returns the cached server-minus-local clock offset, fetching a
// fresh one when the cached value is older than the trust interval.
func (c *Client) Offset(ctx context.Context) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.haveFetch && c.clock.Now().Sub(c.fetchedAt) < offsetTTL {
		return c.offset
	}
	off, err := c.fetchOffset(ctx)
	if err != nil {
		// Trust the local clock rather than failing the caller. The
		// failed attempt is cached too, so an unreachable oracle is
		// not retried on every Now call.
		off = 0
	}
	c.offset = off
	c.fetchedAt = c.clock.Now()
	c.haveFetch = true
	return c.offset
}

func (c *Client) fetchOffset(ctx context.Context) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return 0, err
	}
	local := c.clock.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("time oracle returned %d", resp.StatusCode)
	}
	var tr timeResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return 0, err
	}
	server := tr.Now
	if server.IsZero() && tr.UnixMS != 0 {
		server = time.UnixMilli(tr.UnixMS).UTC()
	}
	if server.IsZero() {
		return 0, fmt.Errorf("time oracle returned empty payload")
	}
	return server.Sub(local), nil
}
