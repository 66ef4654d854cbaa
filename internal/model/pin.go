package model

import "time"

// PinKind enumerates the media kinds a pin may carry.  The kind decides
// which cost/duration tier applies and whether playback synchronization
// is meaningful (video only).
type PinKind string

const (
	PinKindVideo PinKind = "VIDEO" // external video reference, synchronized playback
	PinKindImage PinKind = "IMAGE" // still image reference
)

// ValidPinKind reports whether k is one of the known media kinds.
func ValidPinKind(k PinKind) bool {
	return k == PinKindVideo || k == PinKindImage
}

// Pin represents the single pinned media item of a room as stored in the
// `pins` table.  At most one row exists per room; pinning again fully
// replaces the previous pin (new instance ID, no queue, no overlap).
// Expiry is purely logical on the read side: once ExpiresAt passes the
// pin is treated as absent without requiring a write.
//
// Fields:
//  ID        – UUID identifying this pin instance; reports are scoped to it.
//  RoomID    – owning room.
//  Kind      – media kind (VIDEO or IMAGE).
//  SourceURL – locator of the pinned media.
//  StartedAt  – pin-start timestamp; playback position is derived from it.
//  ExpiresAt  – pin-expiry timestamp; always > StartedAt.
//  Extensions – count of paid one-minute extensions applied so far.
//  CreatedAt  – row creation timestamp.
type Pin struct {
	ID         string    // pins.id
	RoomID     string    // pins.room_id
	Kind       PinKind   // pins.kind
	SourceURL  string    // pins.source_url
	StartedAt  time.Time // pins.started_at
	ExpiresAt  time.Time // pins.expires_at
	Extensions uint32    // pins.extensions
	CreatedAt  time.Time // pins.created_at
}

// ActiveAt reports whether the pin is still live at the given instant.
func (p *Pin) ActiveAt(now time.Time) bool {
	return p != nil && p.ExpiresAt.After(now)
}
