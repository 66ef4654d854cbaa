package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

// dupErr mimics the driver error MySQL raises on a unique-key
// violation; the repositories match on the 1062 code in the text.
var dupErr = errors.New("Error 1062: Duplicate entry 'room-1-민수' for key 'participants.room_nickname'")

func TestParticipantJoinInsertsFirstAccountJoin(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewParticipantRepo(db)
	uid := uint64(7)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM participants WHERE room_id=\\? AND user_id=\\?").
		WithArgs("room-1", uid).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO participants").
		WithArgs("room-1", uid, "민수").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.Join(context.Background(), "room-1", "민수", &uid)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParticipantJoinReactivatesOwnAccountRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewParticipantRepo(db)
	uid := uint64(7)

	// A rejoin finds the caller's own row and updates it in place
	// instead of inserting a second membership.
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM participants WHERE room_id=\\? AND user_id=\\?").
		WithArgs("room-1", uid).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
	mock.ExpectExec("UPDATE participants SET nickname=\\?, is_active=1").
		WithArgs("민수", uint64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Join(context.Background(), "room-1", "민수", &uid)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParticipantJoinAccountNicknameCollision(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewParticipantRepo(db)
	uid := uint64(7)

	// The account holds no row yet and picks a nickname another row
	// already owns. The lookup is keyed on user_id, so the other row
	// is never touched; the nickname unique key rejects the insert.
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM participants WHERE room_id=\\? AND user_id=\\?").
		WithArgs("room-1", uid).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO participants").
		WithArgs("room-1", uid, "민수").
		WillReturnError(dupErr)
	mock.ExpectRollback()

	err := repo.Join(context.Background(), "room-1", "민수", &uid)
	assert.ErrorIs(t, err, ErrNicknameTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParticipantJoinAnonymousBlockedByAccountNickname(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewParticipantRepo(db)

	// The nickname row exists but belongs to an account identity; an
	// anonymous join must not reactivate it.
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, user_id FROM participants WHERE room_id=\\? AND nickname=\\?").
		WithArgs("room-1", "민수").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id"}).AddRow(42, int64(7)))
	mock.ExpectRollback()

	err := repo.Join(context.Background(), "room-1", "민수", nil)
	assert.ErrorIs(t, err, ErrNicknameTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParticipantJoinAnonymousRejoinIsIdempotent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewParticipantRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, user_id FROM participants WHERE room_id=\\? AND nickname=\\?").
		WithArgs("room-1", "손님").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id"}).AddRow(42, nil))
	mock.ExpectExec("UPDATE participants SET is_active=1").
		WithArgs(uint64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Join(context.Background(), "room-1", " 손님 ", nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParticipantJoinAnonymousInsertRace(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewParticipantRepo(db)

	// No row at lookup time, but a concurrent join lands the same
	// nickname before the insert commits.
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, user_id FROM participants WHERE room_id=\\? AND nickname=\\?").
		WithArgs("room-1", "손님").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO participants").
		WithArgs("room-1", "손님").
		WillReturnError(dupErr)
	mock.ExpectRollback()

	err := repo.Join(context.Background(), "room-1", "손님", nil)
	assert.ErrorIs(t, err, ErrNicknameTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}
