package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPinReportBelowThreshold(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPinRepo(db)
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO pin_reports").
		WithArgs("pin-1", "user:7", "spam").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM pin_reports WHERE pin_id=\\?").
		WithArgs("pin-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	count, revoked, err := repo.Report(context.Background(), "pin-1", "user:7", "spam", 30, now)
	require.NoError(t, err)
	assert.Equal(t, 12, count)
	assert.False(t, revoked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPinReportDuplicateReporterDoesNotCount(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPinRepo(db)
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	// The same identity reporting twice hits the UNIQUE(pin_id,
	// reporter) key; the duplicate is absorbed and the count is
	// unchanged.
	mock.ExpectExec("INSERT INTO pin_reports").
		WithArgs("pin-1", "anon:deadbeef", "spam").
		WillReturnError(dupErr)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM pin_reports WHERE pin_id=\\?").
		WithArgs("pin-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	count, revoked, err := repo.Report(context.Background(), "pin-1", "anon:deadbeef", "spam", 30, now)
	require.NoError(t, err)
	assert.Equal(t, 12, count)
	assert.False(t, revoked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPinReportThresholdRevokesOnce(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPinRepo(db)
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	// The 30th distinct reporter force-expires the pin.
	mock.ExpectExec("INSERT INTO pin_reports").
		WithArgs("pin-1", "user:30", "spam").
		WillReturnResult(sqlmock.NewResult(30, 1))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM pin_reports WHERE pin_id=\\?").
		WithArgs("pin-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(30))
	mock.ExpectExec("UPDATE pins SET expires_at=\\? WHERE id=\\? AND expires_at > \\?").
		WithArgs(now, "pin-1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	count, revoked, err := repo.Report(context.Background(), "pin-1", "user:30", "spam", 30, now)
	require.NoError(t, err)
	assert.Equal(t, 30, count)
	assert.True(t, revoked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPinActiveReadAfterRevoke(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPinRepo(db)
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	// A revoked pin's expiry was set to the revocation instant, so a
	// later active read treats the room as unpinned.
	mock.ExpectQuery("SELECT (.+) FROM pins WHERE room_id=\\?").
		WithArgs("room-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "room_id", "kind", "source_url", "started_at", "expires_at", "extensions", "created_at",
		}).AddRow("pin-1", "room-1", "video", "https://youtu.be/abc", now.Add(-3*time.Minute), now.Add(-time.Minute), 0, now.Add(-3*time.Minute)))

	_, err := repo.GetActiveByRoom(context.Background(), "room-1", now)
	assert.ErrorIs(t, err, ErrPinExpired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPinReportAlreadyRevokedStaysRevoked(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPinRepo(db)
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	// Above threshold but the pin already expired: the force-expire
	// matches zero rows, so no second revocation is announced.
	mock.ExpectExec("INSERT INTO pin_reports").
		WithArgs("pin-1", "user:31", "spam").
		WillReturnResult(sqlmock.NewResult(31, 1))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM pin_reports WHERE pin_id=\\?").
		WithArgs("pin-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(31))
	mock.ExpectExec("UPDATE pins SET expires_at=\\? WHERE id=\\? AND expires_at > \\?").
		WithArgs(now, "pin-1", now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	count, revoked, err := repo.Report(context.Background(), "pin-1", "user:31", "spam", 30, now)
	require.NoError(t, err)
	assert.Equal(t, 31, count)
	assert.False(t, revoked)
	assert.NoError(t, mock.ExpectationsWereMet())
}
