// Package presence merges the two membership signals of a room, the
// ephemeral "currently connected" feed and the durable participants
// table, into the single view boards display.
package presence

import (
	"strings"

	"github.com/hesedhouse/TDB-Project-sub000/internal/model"
	"github.com/hesedhouse/TDB-Project-sub000/internal/repository"
)

// NoNameLabel replaces empty or whitespace-only nicknames so nameless
// visitors are still listed and counted instead of dropped.
const NoNameLabel = "이름없음"

// Member is one entry of the merged presence view.
type Member struct {
	Nickname string `json:"nickname"`
	// Rank is the member's leaderboard rank (1..n) when their display
	// name matches a top contributor, 0 otherwise.
	Rank int `json:"rank,omitempty"`
}

// View is the merged "who is here" state of a room.
type View struct {
	Members []Member `json:"members"`
	Count   int      `json:"count"`
	// Ephemeral is set when no durable participant rows existed yet
	// and the count fell back to the connection-level signal.
	Ephemeral bool `json:"ephemeral"`
}

// NormalizeNickname trims and lowercases a nickname for deduplication.
// The case-insensitive trimmed form is the dedupe key; blank nicknames
// normalize to the no-name sentinel.
func NormalizeNickname(nick string) string {
	nick = strings.TrimSpace(nick)
	if nick == "" {
		return strings.ToLower(NoNameLabel)
	}
	return strings.ToLower(nick)
}

// DisplayNickname trims a nickname for display, substituting the
// no-name sentinel for blanks.
func DisplayNickname(nick string) string {
	nick = strings.TrimSpace(nick)
	if nick == "" {
		return NoNameLabel
	}
	return nick
}

// Merge builds the presence view. Durable participant records are
// preferred whenever any exist: they reflect intentional membership,
// survive reconnects and deduplicate by identity. Only when none exist
// yet (immediately after room creation, before the join write lands)
// does the view fall back to the ephemeral connection count. Top
// contributors are matched by normalized display name and annotated
// with their rank.
func Merge(durable []model.Participant, ephemeralCount int, tops []repository.ContributorTotal) View {
	if len(durable) == 0 {
		if ephemeralCount < 0 {
			ephemeralCount = 0
		}
		return View{Members: []Member{}, Count: ephemeralCount, Ephemeral: true}
	}

	ranks := make(map[string]int, len(tops))
	for _, t := range tops {
		ranks[NormalizeNickname(t.Contributor)] = t.Rank
	}

	seen := make(map[string]struct{}, len(durable))
	members := make([]Member, 0, len(durable))
	for _, p := range durable {
		key := NormalizeNickname(p.Nickname)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		members = append(members, Member{
			Nickname: DisplayNickname(p.Nickname),
			Rank:     ranks[key],
		})
	}
	return View{Members: members, Count: len(members)}
}
