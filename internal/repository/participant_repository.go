package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/hesedhouse/TDB-Project-sub000/internal/model"
)

// ParticipantRepo provides data access to the `participants` table.
// Membership is durable: rows are deactivated on leave, never deleted.
// Uniqueness is enforced at the storage layer, UNIQUE(room_id,
// user_id) for account identities and UNIQUE(room_id, nickname) for
// anonymous ones, so concurrent joins cannot produce duplicates via a
// check-then-write race.
type ParticipantRepo struct {
	db *sql.DB
}

// NewParticipantRepo returns a new ParticipantRepo bound to the
// provided database.
func NewParticipantRepo(db *sql.DB) *ParticipantRepo { return &ParticipantRepo{db: db} }

// Join creates or reactivates a membership record.  Joining is
// idempotent per (room, user) for accounts and per (room, nickname)
// for anonymous participants: rejoining updates the existing row's
// active flag and timestamp instead of inserting a second one.
//
// The lookup is keyed on the caller's own identity, never on whichever
// unique key happens to collide first, so a join can never update a
// row belonging to the other identity kind.  A nickname already held
// by someone else in the room returns ErrNicknameTaken; the row locks
// plus the UNIQUE(room_id, nickname) constraint close the
// check-then-write race for concurrent joins.
func (r *ParticipantRepo) Join(ctx context.Context, roomID, nickname string, userID *uint64) error {
	nickname = strings.TrimSpace(nickname)
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if userID != nil {
		var id uint64
		err = tx.QueryRowContext(ctx,
			"SELECT id FROM participants WHERE room_id=? AND user_id=? LIMIT 1 FOR UPDATE",
			roomID, *userID).Scan(&id)
		switch err {
		case nil:
			// Rejoin may carry a new nickname; the unique constraint
			// rejects one already held by another row.
			_, err = tx.ExecContext(ctx,
				"UPDATE participants SET nickname=?, is_active=1, updated_at=NOW() WHERE id=?",
				nickname, id)
		case sql.ErrNoRows:
			_, err = tx.ExecContext(ctx,
				"INSERT INTO participants (room_id, user_id, nickname, is_active) VALUES (?,?,?,1)",
				roomID, *userID, nickname)
		}
	} else {
		var (
			id    uint64
			owner sql.NullInt64
		)
		err = tx.QueryRowContext(ctx,
			"SELECT id, user_id FROM participants WHERE room_id=? AND nickname=? LIMIT 1 FOR UPDATE",
			roomID, nickname).Scan(&id, &owner)
		switch {
		case err == nil && owner.Valid:
			// The nickname belongs to an account holder's membership.
			return ErrNicknameTaken
		case err == nil:
			_, err = tx.ExecContext(ctx,
				"UPDATE participants SET is_active=1, updated_at=NOW() WHERE id=?", id)
		case err == sql.ErrNoRows:
			_, err = tx.ExecContext(ctx,
				"INSERT INTO participants (room_id, user_id, nickname, is_active) VALUES (?,NULL,?,1)",
				roomID, nickname)
		}
	}
	if err != nil {
		// 1062 = MySQL duplicate entry; with the identity row already
		// locked, the only key left to violate is the nickname one.
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrNicknameTaken
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Leave deactivates a membership record.  History is preserved so a
// crown computed from contribution totals can still be matched against
// the display name later.  Missing rows are a no-op.
func (r *ParticipantRepo) Leave(ctx context.Context, roomID, nickname string, userID *uint64) error {
	if userID != nil {
		_, err := r.db.ExecContext(ctx,
			"UPDATE participants SET is_active=0, updated_at=NOW() WHERE room_id=? AND user_id=?",
			roomID, *userID)
		return err
	}
	_, err := r.db.ExecContext(ctx,
		"UPDATE participants SET is_active=0, updated_at=NOW() WHERE room_id=? AND user_id IS NULL AND nickname=?",
		roomID, strings.TrimSpace(nickname))
	return err
}

// ListActive returns all active membership records for a room ordered
// by first join.
func (r *ParticipantRepo) ListActive(ctx context.Context, roomID string) ([]model.Participant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, room_id, user_id, nickname, is_active, created_at, updated_at
		 FROM participants WHERE room_id=? AND is_active=1 ORDER BY created_at, id`,
		roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Participant
	for rows.Next() {
		var (
			p      model.Participant
			userID sql.NullInt64
		)
		if err := rows.Scan(&p.ID, &p.RoomID, &userID, &p.Nickname, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		if userID.Valid {
			v := uint64(userID.Int64)
			p.UserID = &v
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountActive returns the number of active membership records for a
// room.  Used as the durable participant count in the presence merge.
func (r *ParticipantRepo) CountActive(ctx context.Context, roomID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM participants WHERE room_id=? AND is_active=1", roomID).Scan(&n)
	return n, err
}

// TouchActive refreshes the updated_at timestamp of an active account
// participant, keeping reconnect-heavy sessions from looking stale.
func (r *ParticipantRepo) TouchActive(ctx context.Context, roomID string, userID uint64, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE participants SET updated_at=? WHERE room_id=? AND user_id=? AND is_active=1",
		at.UTC(), roomID, userID)
	return err
}
