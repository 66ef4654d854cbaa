package model

import "time"

// Participant is a durable (room, identity) membership record from the
// `participants` table.  Identity is either a durable account reference
// (UserID set) or, for anonymous visitors, a per-room nickname.  Rows
// are deactivated on leave, never deleted, so leaderboard ranks can
// still be matched against past members by display name.
//
// Fields:
//  ID        – primary key.
//  RoomID    – owning room.
//  UserID    – account reference; nil for anonymous participants.
//  Nickname  – display nickname; unique per room when UserID is nil.
//  IsActive  – whether the participant is currently joined.
//  CreatedAt – first-join timestamp.
//  UpdatedAt – last join/leave transition timestamp.
type Participant struct {
	ID        uint64    // participants.id
	RoomID    string    // participants.room_id
	UserID    *uint64   // participants.user_id (nullable)
	Nickname  string    // participants.nickname
	IsActive  bool      // participants.is_active
	CreatedAt time.Time // participants.created_at
	UpdatedAt time.Time // participants.updated_at
}

// Contribution is an append-only record of one lifespan extension from
// the `contributions` table.  Rows are never updated or deleted; the
// leaderboard is re-aggregated from them on demand.
type Contribution struct {
	ID          uint64    // contributions.id
	RoomID      string    // contributions.room_id
	Contributor string    // contributions.contributor (display name)
	Minutes     uint32    // contributions.minutes (> 0)
	CreatedAt   time.Time // contributions.created_at
}
