package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hesedhouse/TDB-Project-sub000/internal/model"
)

// RoomRepo provides data access to the `rooms` table.  All timestamps
// are stored and compared in UTC.  Expiry changes go through the
// compare-and-swap methods so that concurrent extensions are additive
// and never lost; plain writes to expires_at are deliberately not
// offered.
type RoomRepo struct {
	db *sql.DB
}

// NewRoomRepo returns a new RoomRepo bound to the provided database.
func NewRoomRepo(db *sql.DB) *RoomRepo { return &RoomRepo{db: db} }

// DB exposes the underlying handle so handlers can open transactions
// spanning multiple repositories.
func (r *RoomRepo) DB() *sql.DB { return r.db }

const roomColumns = "id, keyword, name, secret_hash, created_at, expires_at, closed_at"

func scanRoom(row *sql.Row) (*model.Room, error) {
	var (
		rm         model.Room
		secretHash sql.NullString
		closedAt   sql.NullTime
	)
	err := row.Scan(&rm.ID, &rm.Keyword, &rm.Name, &secretHash, &rm.CreatedAt, &rm.ExpiresAt, &closedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	if secretHash.Valid {
		rm.SecretHash = &secretHash.String
	}
	if closedAt.Valid {
		t := closedAt.Time
		rm.ClosedAt = &t
	}
	return &rm, nil
}

// CreateOrGet inserts a new room for the given keyword or, when the
// keyword is already taken, returns the existing room.  Creation is
// idempotent per keyword; the uniqueness constraint on rooms.keyword
// resolves concurrent creations, so a duplicate-key error is followed
// by a fetch rather than surfaced to the caller.
func (r *RoomRepo) CreateOrGet(ctx context.Context, keyword, name string, secretHash *string, lifespan time.Duration) (*model.Room, bool, error) {
	keyword = strings.TrimSpace(keyword)
	now := time.Now().UTC()
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO rooms (id, keyword, name, secret_hash, created_at, expires_at) VALUES (?,?,?,?,?,?)",
		id, keyword, name, secretHash, now, now.Add(lifespan))
	if err != nil {
		// 1062 = MySQL duplicate entry; the keyword already has a room.
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			existing, gerr := r.GetByKeyword(ctx, keyword)
			if gerr != nil {
				return nil, false, gerr
			}
			return existing, false, nil
		}
		return nil, false, err
	}
	room, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return room, true, nil
}

// GetByID fetches a room by its UUID token.
func (r *RoomRepo) GetByID(ctx context.Context, id string) (*model.Room, error) {
	return scanRoom(r.db.QueryRowContext(ctx,
		"SELECT "+roomColumns+" FROM rooms WHERE id=? LIMIT 1", id))
}

// GetByKeyword fetches a room by its unique keyword.
func (r *RoomRepo) GetByKeyword(ctx context.Context, keyword string) (*model.Room, error) {
	return scanRoom(r.db.QueryRowContext(ctx,
		"SELECT "+roomColumns+" FROM rooms WHERE keyword=? LIMIT 1", strings.TrimSpace(keyword)))
}

// GetByRef resolves a room reference that may be either the UUID token
// or the keyword.  UUID-shaped references are tried as tokens first.
func (r *RoomRepo) GetByRef(ctx context.Context, ref string) (*model.Room, error) {
	ref = strings.TrimSpace(ref)
	if _, err := uuid.Parse(ref); err == nil {
		room, err := r.GetByID(ctx, ref)
		if err == nil {
			return room, nil
		}
		if err != ErrRoomNotFound {
			return nil, err
		}
	}
	return r.GetByKeyword(ctx, ref)
}

// ExtendExpiryTx pushes the room expiry forward by increment using a
// compare-and-swap keyed on the previously read expiry.  The UPDATE
// matches only while the stored expiry still equals prevExpiry and the
// room is not closed, so two extensions applied from the same stale
// read cannot both land: the loser gets ErrRaceLost, no rows changed,
// and the caller re-reads before retrying.  Runs inside the caller's
// transaction so the hourglass spend and contribution row commit or
// roll back together with the expiry change.
func (r *RoomRepo) ExtendExpiryTx(ctx context.Context, tx *sql.Tx, roomID string, prevExpiry time.Time, increment time.Duration) (time.Time, error) {
	newExpiry := prevExpiry.Add(increment)
	res, err := tx.ExecContext(ctx,
		"UPDATE rooms SET expires_at=? WHERE id=? AND expires_at=? AND closed_at IS NULL",
		newExpiry.UTC(), roomID, prevExpiry.UTC())
	if err != nil {
		return time.Time{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return time.Time{}, err
	}
	if n == 0 {
		// Distinguish an already-closed room from a lost race so the
		// handler can report the right precondition failure.
		var closedAt sql.NullTime
		err = tx.QueryRowContext(ctx, "SELECT closed_at FROM rooms WHERE id=? LIMIT 1", roomID).Scan(&closedAt)
		if err == sql.ErrNoRows {
			return time.Time{}, ErrRoomNotFound
		}
		if err != nil {
			return time.Time{}, err
		}
		if closedAt.Valid {
			return time.Time{}, ErrRoomClosed
		}
		return time.Time{}, ErrRaceLost
	}
	return newExpiry.UTC(), nil
}

// CloseDue marks every open room whose expiry has passed as closed and
// returns the IDs that transitioned.  The closed_at IS NULL guard makes
// the transition exactly-once: a room already closed by a concurrent
// sweep matches zero rows and is not returned again.
func (r *RoomRepo) CloseDue(ctx context.Context, now time.Time) ([]string, error) {
	now = now.UTC()
	rows, err := r.db.QueryContext(ctx,
		"SELECT id FROM rooms WHERE expires_at <= ? AND closed_at IS NULL", now)
	if err != nil {
		return nil, err
	}
	var due []string
	for rows.Next() {
		var id string
		if scanErr := rows.Scan(&id); scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		due = append(due, id)
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}
	var closed []string
	for _, id := range due {
		res, errUp := r.db.ExecContext(ctx,
			"UPDATE rooms SET closed_at=? WHERE id=? AND expires_at <= ? AND closed_at IS NULL",
			now, id, now)
		if errUp != nil {
			return closed, errUp
		}
		if n, _ := res.RowsAffected(); n > 0 {
			closed = append(closed, id)
		}
	}
	return closed, nil
}

// NextExpiry returns the earliest expiry among open rooms, or ok=false
// when no open room exists.  The closer uses it to arm its next timer.
func (r *RoomRepo) NextExpiry(ctx context.Context) (time.Time, bool, error) {
	var next sql.NullTime
	err := r.db.QueryRowContext(ctx,
		"SELECT MIN(expires_at) FROM rooms WHERE closed_at IS NULL").Scan(&next)
	if err != nil {
		return time.Time{}, false, err
	}
	if !next.Valid {
		return time.Time{}, false, nil
	}
	return next.Time.UTC(), true, nil
}
