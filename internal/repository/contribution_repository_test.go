package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopContributorsAssignsRanksInOrder(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewContributionRepo(db)

	rows := sqlmock.NewRows([]string{"contributor", "total"}).
		AddRow("민수", uint64(180)).
		AddRow("영희", uint64(120)).
		AddRow("이름없음", uint64(60))
	mock.ExpectQuery("ORDER BY total DESC, MIN\\(created_at\\) ASC, MIN\\(id\\) ASC").
		WithArgs("room-1", 3).
		WillReturnRows(rows)

	got, err := repo.TopContributors(context.Background(), "room-1", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []ContributorTotal{
		{Contributor: "민수", Minutes: 180, Rank: 1},
		{Contributor: "영희", Minutes: 120, Rank: 2},
		{Contributor: "이름없음", Minutes: 60, Rank: 3},
	}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTopContributorsRankingIsStable(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewContributionRepo(db)

	// Ties on total break on earliest first contribution, so the same
	// rows aggregate to the same ordered list every time.
	for i := 0; i < 2; i++ {
		mock.ExpectQuery("ORDER BY total DESC, MIN\\(created_at\\) ASC, MIN\\(id\\) ASC").
			WithArgs("room-1", 3).
			WillReturnRows(sqlmock.NewRows([]string{"contributor", "total"}).
				AddRow("민수", uint64(60)).
				AddRow("영희", uint64(60)))
	}

	first, err := repo.TopContributors(context.Background(), "room-1", 3)
	require.NoError(t, err)
	second, err := repo.TopContributors(context.Background(), "room-1", 3)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTopContributorsDefaultsLimit(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewContributionRepo(db)

	mock.ExpectQuery("ORDER BY total DESC").
		WithArgs("room-1", 3).
		WillReturnRows(sqlmock.NewRows([]string{"contributor", "total"}))

	got, err := repo.TopContributors(context.Background(), "room-1", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}
