package model

import "time"

// Message is a chat entry in the `messages` table.  Messages are kept
// for the lifetime of the room and broadcast to connected viewers
// through the room hub when posted.
//
// Fields:
//  ID        – primary key.
//  RoomID    – owning room.
//  Author    – display name of the author.
//  UserID    – account reference of the author; nil for anonymous chat.
//  Body      – message text.
//  ImageURL  – optional attached image locator.
//  Hearts    – heart count; incremented by other participants.
//  CreatedAt – creation timestamp.
type Message struct {
	ID        uint64    // messages.id
	RoomID    string    // messages.room_id
	Author    string    // messages.author
	UserID    *uint64   // messages.user_id (nullable)
	Body      string    // messages.body
	ImageURL  *string   // messages.image_url (nullable)
	Hearts    uint32    // messages.hearts
	CreatedAt time.Time // messages.created_at
}
