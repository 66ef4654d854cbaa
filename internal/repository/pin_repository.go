package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/hesedhouse/TDB-Project-sub000/internal/model"
)

// PinRepo provides data access to the `pins` and `pin_reports` tables.
// Each room has at most one pin row (UNIQUE on pins.room_id); setting a
// new pin fully replaces the previous one under a fresh instance ID, so
// reports filed against the old instance never carry over.  Expiry is
// logical: readers treat a past expires_at as "no pin" without writing.
type PinRepo struct {
	db *sql.DB
}

// NewPinRepo returns a new PinRepo bound to the provided database.
func NewPinRepo(db *sql.DB) *PinRepo { return &PinRepo{db: db} }

const pinColumns = "id, room_id, kind, source_url, started_at, expires_at, extensions, created_at"

func scanPin(row *sql.Row) (*model.Pin, error) {
	var p model.Pin
	err := row.Scan(&p.ID, &p.RoomID, &p.Kind, &p.SourceURL,
		&p.StartedAt, &p.ExpiresAt, &p.Extensions, &p.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrPinNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ReplaceTx installs a new pin for the room inside the caller's
// transaction, overwriting any previous pin row.  ON DUPLICATE KEY
// UPDATE keyed on the room_id uniqueness makes replacement atomic; the
// extensions counter resets with the new instance.
func (r *PinRepo) ReplaceTx(ctx context.Context, tx *sql.Tx, p *model.Pin) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO pins (id, room_id, kind, source_url, started_at, expires_at, extensions)
		 VALUES (?,?,?,?,?,?,0)
		 ON DUPLICATE KEY UPDATE
		   id=VALUES(id), kind=VALUES(kind), source_url=VALUES(source_url),
		   started_at=VALUES(started_at), expires_at=VALUES(expires_at), extensions=0`,
		p.ID, p.RoomID, string(p.Kind), p.SourceURL, p.StartedAt.UTC(), p.ExpiresAt.UTC())
	return err
}

// GetByRoom fetches the room's pin row regardless of expiry.  Callers
// deciding what to render should check ActiveAt themselves.
func (r *PinRepo) GetByRoom(ctx context.Context, roomID string) (*model.Pin, error) {
	return scanPin(r.db.QueryRowContext(ctx,
		"SELECT "+pinColumns+" FROM pins WHERE room_id=? LIMIT 1", roomID))
}

// GetActiveByRoom fetches the room's pin only while it is still live.
// Returns ErrPinNotFound when no row exists and ErrPinExpired when the
// row exists but its expiry has passed.
func (r *PinRepo) GetActiveByRoom(ctx context.Context, roomID string, now time.Time) (*model.Pin, error) {
	p, err := r.GetByRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !p.ActiveAt(now) {
		return nil, ErrPinExpired
	}
	return p, nil
}

// ExtendTx pushes the pin expiry forward by increment using a
// compare-and-swap keyed on the previously read expiry, mirroring the
// room expiry CAS.  The statement also enforces that the pin is still
// live and under the cumulative extension cap, so an expired or
// fully-extended pin cannot be stretched.  Zero matched rows are
// disambiguated by a follow-up read.
func (r *PinRepo) ExtendTx(ctx context.Context, tx *sql.Tx, pinID string, prevExpiry time.Time, increment time.Duration, maxExtensions uint32, now time.Time) (time.Time, error) {
	newExpiry := prevExpiry.Add(increment).UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE pins SET expires_at=?, extensions=extensions+1
		 WHERE id=? AND expires_at=? AND expires_at > ? AND extensions < ?`,
		newExpiry, pinID, prevExpiry.UTC(), now.UTC(), maxExtensions)
	if err != nil {
		return time.Time{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return time.Time{}, err
	}
	if n == 0 {
		var (
			expiresAt  time.Time
			extensions uint32
		)
		err = tx.QueryRowContext(ctx,
			"SELECT expires_at, extensions FROM pins WHERE id=? LIMIT 1", pinID).
			Scan(&expiresAt, &extensions)
		if err == sql.ErrNoRows {
			return time.Time{}, ErrPinNotFound
		}
		if err != nil {
			return time.Time{}, err
		}
		if !expiresAt.After(now.UTC()) {
			return time.Time{}, ErrPinExpired
		}
		if extensions >= maxExtensions {
			return time.Time{}, ErrConflict
		}
		return time.Time{}, ErrRaceLost
	}
	return newExpiry, nil
}

// Report files a report against a pin instance and force-expires the
// pin once the distinct-reporter count reaches threshold.  Reports are
// idempotent per reporter: the UNIQUE(pin_id, reporter) constraint
// absorbs duplicates so the same identity never counts twice.  Returns
// the current distinct count and whether this call revoked the pin.
func (r *PinRepo) Report(ctx context.Context, pinID, reporter, reason string, threshold int, now time.Time) (int, bool, error) {
	reporter = strings.TrimSpace(reporter)
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO pin_reports (pin_id, reporter, reason) VALUES (?,?,?)",
		pinID, reporter, reason)
	if err != nil && !strings.Contains(strings.ToLower(err.Error()), "1062") {
		return 0, false, err
	}
	var count int
	err = r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM pin_reports WHERE pin_id=?", pinID).Scan(&count)
	if err != nil {
		return 0, false, err
	}
	if count < threshold {
		return count, false, nil
	}
	// Force-expire exactly once; a pin already expired (or already
	// revoked by a concurrent report) matches zero rows.
	res, err := r.db.ExecContext(ctx,
		"UPDATE pins SET expires_at=? WHERE id=? AND expires_at > ?",
		now.UTC(), pinID, now.UTC())
	if err != nil {
		return count, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return count, false, err
	}
	return count, n > 0, nil
}
