package repository

import (
	"context"
	"database/sql"

	"github.com/hesedhouse/TDB-Project-sub000/internal/model"
)

// MessageRepo provides data access to the `messages` table.
type MessageRepo struct {
	db *sql.DB
}

// NewMessageRepo returns a new MessageRepo bound to the provided
// database.
func NewMessageRepo(db *sql.DB) *MessageRepo { return &MessageRepo{db: db} }

// Create inserts a chat message and returns the stored row.
func (r *MessageRepo) Create(ctx context.Context, roomID, author, body string, imageURL *string, userID *uint64) (*model.Message, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO messages (room_id, author, user_id, body, image_url) VALUES (?,?,?,?,?)",
		roomID, author, userID, body, imageURL)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, uint64(id))
}

// GetByID fetches a single message.
func (r *MessageRepo) GetByID(ctx context.Context, id uint64) (*model.Message, error) {
	var (
		m        model.Message
		userID   sql.NullInt64
		imageURL sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT id, room_id, author, user_id, body, image_url, hearts, created_at FROM messages WHERE id=? LIMIT 1",
		id).Scan(&m.ID, &m.RoomID, &m.Author, &userID, &m.Body, &imageURL, &m.Hearts, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	if userID.Valid {
		v := uint64(userID.Int64)
		m.UserID = &v
	}
	if imageURL.Valid {
		m.ImageURL = &imageURL.String
	}
	return &m, nil
}

// ListRecent returns the most recent messages for a room in
// chronological order, capped at limit.
func (r *MessageRepo) ListRecent(ctx context.Context, roomID string, limit int) ([]model.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, room_id, author, user_id, body, image_url, hearts, created_at
		 FROM (SELECT * FROM messages WHERE room_id=? ORDER BY id DESC LIMIT ?) m
		 ORDER BY id ASC`,
		roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Message
	for rows.Next() {
		var (
			m        model.Message
			userID   sql.NullInt64
			imageURL sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.RoomID, &m.Author, &userID, &m.Body, &imageURL, &m.Hearts, &m.CreatedAt); err != nil {
			return nil, err
		}
		if userID.Valid {
			v := uint64(userID.Int64)
			m.UserID = &v
		}
		if imageURL.Valid {
			m.ImageURL = &imageURL.String
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Heart increments a message's heart count on behalf of callerUserID.
// Hearting your own message is rejected inside the UPDATE itself: the
// caller id is compared against the author's user_id in the WHERE
// clause so the guard cannot race with the increment.  Anonymous
// callers pass nil and skip the self check (they have no stable id to
// compare).
func (r *MessageRepo) Heart(ctx context.Context, id uint64, callerUserID *uint64) error {
	var (
		res sql.Result
		err error
	)
	if callerUserID != nil {
		res, err = r.db.ExecContext(ctx,
			"UPDATE messages SET hearts = hearts + 1 WHERE id=? AND (user_id IS NULL OR user_id <> ?)",
			id, *callerUserID)
	} else {
		res, err = r.db.ExecContext(ctx,
			"UPDATE messages SET hearts = hearts + 1 WHERE id=?", id)
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either the message does not exist or the caller authored it.
		var authorID sql.NullInt64
		err = r.db.QueryRowContext(ctx, "SELECT user_id FROM messages WHERE id=? LIMIT 1", id).Scan(&authorID)
		if err == sql.ErrNoRows {
			return sql.ErrNoRows
		}
		if err != nil {
			return err
		}
		return ErrForbidden
	}
	return nil
}
