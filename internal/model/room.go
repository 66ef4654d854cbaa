package model

import "time"

// Room represents one ephemeral board as stored in the `rooms` table.
// A room is created on first reference to an unused keyword and lives
// until its expiry timestamp passes.  The expiry may be pushed forward
// by hourglass extensions; once the closer marks the room closed it
// accepts no further mutations except archival reads.  The ID is an
// opaque UUID token; access by keyword and by token are equivalent.
type Room struct {
	ID         string     // rooms.id
	Keyword    string     // rooms.keyword
	Name       string     // rooms.name
	SecretHash *string    // rooms.secret_hash (nullable)
	CreatedAt  time.Time  // rooms.created_at
	ExpiresAt  time.Time  // rooms.expires_at
	ClosedAt   *time.Time // rooms.closed_at (nullable)
}

// Closed reports whether the room has been marked closed.
func (r *Room) Closed() bool { return r.ClosedAt != nil }

// RemainingAt returns the non-negative remaining lifetime at the given
// instant.  A closed or past-expiry room has zero remaining time.
func (r *Room) RemainingAt(now time.Time) time.Duration {
	if r.Closed() || !r.ExpiresAt.After(now) {
		return 0
	}
	return r.ExpiresAt.Sub(now)
}
