package pinsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hesedhouse/TDB-Project-sub000/internal/model"
)

func TestPositionElapsed(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 0.0, Position(start, start))
	assert.Equal(t, 100.0, Position(start, start.Add(100*time.Second)))
	assert.Equal(t, 0.5, Position(start, start.Add(500*time.Millisecond)))
}

func TestPositionNeverNegative(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// A viewer whose request lands before the pin-start timestamp (clock
	// skew, in-flight write) starts at zero instead of seeking backwards.
	assert.Equal(t, 0.0, Position(start, start.Add(-3*time.Second)))
}

func TestPositionNonDecreasing(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	prev := -1.0
	for s := -5; s <= 120; s += 5 {
		pos := Position(start, start.Add(time.Duration(s)*time.Second))
		require.GreaterOrEqual(t, pos, prev, "position regressed at %ds", s)
		prev = pos
	}
}

func TestDriftExceeded(t *testing.T) {
	// A viewer at 100s against an expected 120s is 20s adrift and must
	// seek; one at 119s is within tolerance.
	assert.True(t, DriftExceeded(100, 120))
	assert.True(t, DriftExceeded(120, 100))
	assert.False(t, DriftExceeded(119, 120))
	assert.False(t, DriftExceeded(120, 120))
	// Exactly at the threshold does not force a seek.
	assert.False(t, DriftExceeded(118, 120))
	assert.True(t, DriftExceeded(117.9, 120))
}

func TestTierForImage(t *testing.T) {
	tier, ok := TierFor(model.PinKindImage, "https://example.com/cat.png")
	require.True(t, ok)
	assert.Equal(t, uint32(1), tier.Cost)
	assert.Equal(t, 3*time.Minute, tier.Duration)
}

func TestTierForVideoHosts(t *testing.T) {
	cases := []struct {
		url  string
		cost uint32
		dur  time.Duration
	}{
		{"https://www.youtube.com/watch?v=abc123", 5, 10 * time.Minute},
		{"https://youtu.be/abc123", 5, 10 * time.Minute},
		{"https://vimeo.com/12345", 4, 8 * time.Minute},
		{"https://www.twitch.tv/somechannel", 5, 10 * time.Minute},
		{"https://soundcloud.com/artist/track", 3, 6 * time.Minute},
		// Unknown hosts get the default video tier.
		{"https://example.org/clip.mp4", 3, 5 * time.Minute},
	}
	for _, tc := range cases {
		tier, ok := TierFor(model.PinKindVideo, tc.url)
		require.True(t, ok, tc.url)
		assert.Equal(t, tc.cost, tier.Cost, tc.url)
		assert.Equal(t, tc.dur, tier.Duration, tc.url)
	}
}

func TestTierForRejectsBadInput(t *testing.T) {
	_, ok := TierFor(model.PinKindVideo, "not a url")
	assert.False(t, ok)

	_, ok = TierFor(model.PinKind("AUDIO"), "https://soundcloud.com/x")
	assert.False(t, ok)
}
