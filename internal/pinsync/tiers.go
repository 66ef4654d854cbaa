package pinsync

import (
	"net/url"
	"strings"
	"time"

	"github.com/hesedhouse/TDB-Project-sub000/internal/model"
)

// Tier is the hourglass cost and display duration of one pin request.
type Tier struct {
	Cost     uint32
	Duration time.Duration
}

// Video tiers are keyed by source host; unknown hosts fall back to the
// default video tier. Images are a single flat tier.
var (
	imageTier        = Tier{Cost: 1, Duration: 3 * time.Minute}
	defaultVideoTier = Tier{Cost: 3, Duration: 5 * time.Minute}

	videoTiersByHost = map[string]Tier{
		"youtube.com":    {Cost: 5, Duration: 10 * time.Minute},
		"youtu.be":       {Cost: 5, Duration: 10 * time.Minute},
		"vimeo.com":      {Cost: 4, Duration: 8 * time.Minute},
		"twitch.tv":      {Cost: 5, Duration: 10 * time.Minute},
		"soundcloud.com": {Cost: 3, Duration: 6 * time.Minute},
	}
)

// TierFor looks up the cost/duration tier for a pin request. The host
// of sourceURL selects the video tier; a leading "www." is ignored.
// ok is false when the kind is unknown or a video locator does not
// parse as a URL.
func TierFor(kind model.PinKind, sourceURL string) (Tier, bool) {
	switch kind {
	case model.PinKindImage:
		return imageTier, true
	case model.PinKindVideo:
		u, err := url.Parse(sourceURL)
		if err != nil || u.Host == "" {
			return Tier{}, false
		}
		host := strings.ToLower(strings.TrimPrefix(u.Host, "www."))
		if t, ok := videoTiersByHost[host]; ok {
			return t, true
		}
		return defaultVideoTier, true
	default:
		return Tier{}, false
	}
}
