package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hesedhouse/TDB-Project-sub000/internal/model"
	"github.com/hesedhouse/TDB-Project-sub000/internal/repository"
)

func TestDisplayNickname(t *testing.T) {
	assert.Equal(t, "호랑이", DisplayNickname("호랑이"))
	assert.Equal(t, "tiger", DisplayNickname("  tiger  "))
	assert.Equal(t, NoNameLabel, DisplayNickname(""))
	assert.Equal(t, NoNameLabel, DisplayNickname("   "))
}

func TestNormalizeNickname(t *testing.T) {
	assert.Equal(t, "tiger", NormalizeNickname("  TiGeR "))
	assert.Equal(t, NormalizeNickname(""), NormalizeNickname("  "))
	// Blank and the literal sentinel normalize to the same key.
	assert.Equal(t, NormalizeNickname(NoNameLabel), NormalizeNickname(""))
}

func participants(nicks ...string) []model.Participant {
	out := make([]model.Participant, 0, len(nicks))
	for _, n := range nicks {
		out = append(out, model.Participant{Nickname: n, IsActive: true})
	}
	return out
}

func TestMergePrefersDurableRecords(t *testing.T) {
	view := Merge(participants("민수", "지연"), 7, nil)

	assert.False(t, view.Ephemeral)
	assert.Equal(t, 2, view.Count, "durable membership wins over the connection count")
	require.Len(t, view.Members, 2)
	assert.Equal(t, "민수", view.Members[0].Nickname)
	assert.Equal(t, "지연", view.Members[1].Nickname)
}

func TestMergeFallsBackToEphemeralCount(t *testing.T) {
	view := Merge(nil, 5, nil)
	assert.True(t, view.Ephemeral)
	assert.Equal(t, 5, view.Count)
	assert.Empty(t, view.Members)

	view = Merge(nil, -1, nil)
	assert.Zero(t, view.Count)
}

func TestMergeDeduplicatesCaseInsensitively(t *testing.T) {
	view := Merge(participants("Tiger", "tiger", " TIGER "), 0, nil)

	assert.Equal(t, 1, view.Count)
	require.Len(t, view.Members, 1)
	assert.Equal(t, "Tiger", view.Members[0].Nickname, "first spelling wins")
}

func TestMergeBlankNicknamesCollapseToSentinel(t *testing.T) {
	view := Merge(participants("", "  ", "민수"), 0, nil)

	assert.Equal(t, 2, view.Count)
	require.Len(t, view.Members, 2)
	assert.Equal(t, NoNameLabel, view.Members[0].Nickname)
	assert.Equal(t, "민수", view.Members[1].Nickname)
}

func TestMergeAnnotatesContributorRanks(t *testing.T) {
	tops := []repository.ContributorTotal{
		{Contributor: "민수", Minutes: 180, Rank: 1},
		{Contributor: "tiger", Minutes: 120, Rank: 2},
	}
	view := Merge(participants("Tiger", "민수", "지연"), 0, tops)

	require.Len(t, view.Members, 3)
	assert.Equal(t, 2, view.Members[0].Rank, "rank matches case-insensitively")
	assert.Equal(t, 1, view.Members[1].Rank)
	assert.Zero(t, view.Members[2].Rank)
}
