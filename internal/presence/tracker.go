package presence

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// trackerTTL is how long an announced connection counts as present
// without a refresh. Disconnect detection therefore lags by at most a
// few seconds, which the presence contract allows.
const trackerTTL = 30 * time.Second

// Tracker records the ephemeral "currently connected" signal in Redis,
// one sorted set per room scored by last-seen time. When Redis is
// unavailable the tracker degrades to a no-op and the hub's local
// connection count serves as the fallback signal.
type Tracker struct {
	rdb *redis.Client
}

// NewTracker wraps the given Redis client; rdb may be nil.
func NewTracker(rdb *redis.Client) *Tracker { return &Tracker{rdb: rdb} }

// Enabled reports whether the ephemeral signal is backed by Redis.
func (t *Tracker) Enabled() bool { return t != nil && t.rdb != nil }

func presenceKey(roomID string) string { return "presence:" + roomID }

// Announce marks a connection's nickname as present in the room and
// refreshes the room key's TTL. Call it on track messages and on
// heartbeats.
func (t *Tracker) Announce(ctx context.Context, roomID, nickname string) {
	if !t.Enabled() {
		return
	}
	key := presenceKey(roomID)
	member := NormalizeNickname(nickname)
	now := float64(time.Now().UnixMilli())
	pipe := t.rdb.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: now, Member: member})
	pipe.Expire(ctx, key, 2*trackerTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("presence: announce failed: %v", err)
	}
}

// Depart removes a connection's nickname from the room signal. Called
// on disconnect; a missed Depart ages out via the score cutoff.
func (t *Tracker) Depart(ctx context.Context, roomID, nickname string) {
	if !t.Enabled() {
		return
	}
	if err := t.rdb.ZRem(ctx, presenceKey(roomID), NormalizeNickname(nickname)).Err(); err != nil {
		log.Printf("presence: depart failed: %v", err)
	}
}

// Count returns the number of distinct nicknames seen within the TTL
// window. Stale entries are pruned as a side effect. Returns ok=false
// when Redis is not available so callers can fall back to the hub's
// connection count.
func (t *Tracker) Count(ctx context.Context, roomID string) (int, bool) {
	if !t.Enabled() {
		return 0, false
	}
	key := presenceKey(roomID)
	cutoff := strconv.FormatInt(time.Now().Add(-trackerTTL).UnixMilli(), 10)
	if err := t.rdb.ZRemRangeByScore(ctx, key, "-inf", "("+cutoff).Err(); err != nil {
		log.Printf("presence: prune failed: %v", err)
	}
	n, err := t.rdb.ZCard(ctx, key).Result()
	if err != nil {
		log.Printf("presence: count failed: %v", err)
		return 0, false
	}
	return int(n), true
}
