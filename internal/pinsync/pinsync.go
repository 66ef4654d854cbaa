// Package pinsync derives the shared playback state of a room's pinned
// media. Every viewer computes the same position from the pin-start
// timestamp and the shared server clock, so playback stays in sync
// without any viewer-to-viewer messaging.
package pinsync

import "time"

const (
	// DriftThreshold is the playback drift beyond which a viewer must
	// seek back to the derived position.
	DriftThreshold = 2 * time.Second
	// RecheckInterval is how often viewers compare their actual
	// position against the derived one.
	RecheckInterval = 15 * time.Second
)

// Position returns the expected playback position for a video pin in
// seconds elapsed since pin-start on the server clock, fractional
// seconds included so seeks land precisely. It is
// non-decreasing in serverNow and zero whenever serverNow is at or
// before pinStart.
func Position(pinStart, serverNow time.Time) float64 {
	elapsed := serverNow.Sub(pinStart)
	if elapsed <= 0 {
		return 0
	}
	return elapsed.Seconds()
}

// DriftExceeded reports whether a viewer at actualSeconds has drifted
// more than DriftThreshold from the expected position and must seek.
func DriftExceeded(actualSeconds, expectedSeconds float64) bool {
	diff := expectedSeconds - actualSeconds
	if diff < 0 {
		diff = -diff
	}
	return diff > DriftThreshold.Seconds()
}
