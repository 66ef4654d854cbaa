// Package countdown tracks a room's remaining lifetime. Compute is the
// pure per-tick calculation; Engine re-runs it once per second for a
// live view and fires an exactly-once expiry callback; Closer is the
// server-side sweeper that marks due rooms closed.
package countdown

import (
	"fmt"
	"time"
)

// Tick is the derived countdown state for one instant.
type Tick struct {
	// Remaining is max(0, expiry - now). Zero once expired.
	Remaining time.Duration
	// ProgressPercent is remaining over the maximum lifespan, capped
	// at 100. Used to drive the hourglass gauge.
	ProgressPercent float64
	// Display is the formatted remaining time: "D일 HH:MM:SS" when at
	// least one day remains, "HH:MM:SS" otherwise. Empty when
	// indeterminate.
	Display string
	// Emergency is set while 0 < remaining < 1 hour.
	Emergency bool
	// UnderMinute is set while remaining < 60 seconds.
	UnderMinute bool
	// Expired is set once remaining reaches zero.
	Expired bool
	// Indeterminate is set when no expiry is known. An absent expiry
	// must not be treated as zero, which would wrongly close the room.
	Indeterminate bool
}

// Compute derives the countdown state for a room expiring at expiresAt,
// observed at now, with maxLifespan as the progress denominator.
func Compute(expiresAt *time.Time, now time.Time, maxLifespan time.Duration) Tick {
	if expiresAt == nil || expiresAt.IsZero() {
		return Tick{Indeterminate: true}
	}
	remaining := expiresAt.Sub(now)
	if remaining <= 0 {
		return Tick{Remaining: 0, Display: formatRemaining(0), Expired: true, UnderMinute: true}
	}
	pct := float64(remaining) / float64(maxLifespan) * 100
	if pct > 100 {
		pct = 100
	}
	return Tick{
		Remaining:       remaining,
		ProgressPercent: pct,
		Display:         formatRemaining(remaining),
		Emergency:       remaining < time.Hour,
		UnderMinute:     remaining < time.Minute,
	}
}

// formatRemaining renders a duration as D일 HH:MM:SS (days shown only
// when at least one full day remains).
func formatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if days >= 1 {
		return fmt.Sprintf("%d일 %02d:%02d:%02d", days, hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
