// Package queue defines message payloads exchanged over the message broker.
package queue

// Event kinds published to the board.events queue.
const (
	KindRoomClosed       = "room.closed"
	KindContribution     = "contribution.recorded"
	KindPinRevoked       = "pin.revoked"
	KindHourglassGranted = "hourglass.granted"
)

// BoardEvent is published whenever a board reaches a state worth
// recording outside the request path: a room closing, a lifespan
// contribution landing, or a pin being revoked by reports. It carries
// enough information for downstream consumers to log, notify, or
// trigger analytics without querying the primary database. Hourglass
// grants flow the other way: the purchase gateway publishes them onto
// the same queue and the consumer credits the balance.
type BoardEvent struct {
	Kind        string `json:"kind"`
	RoomID      string `json:"room_id,omitempty"`
	Keyword     string `json:"keyword,omitempty"`
	Contributor string `json:"contributor,omitempty"`
	Minutes     uint32 `json:"minutes,omitempty"`
	PinID       string `json:"pin_id,omitempty"`
	Reports     int    `json:"reports,omitempty"`
	UserID      uint64 `json:"user_id,omitempty"`
	Amount      uint32 `json:"amount,omitempty"`
	OccurredAt  string `json:"occurred_at"`
}
