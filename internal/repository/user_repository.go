package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/hesedhouse/TDB-Project-sub000/internal/model"
	"github.com/hesedhouse/TDB-Project-sub000/internal/utils"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrEmailExists = errors.New("email already exists")

const userColumns = "id,email,password_hash,nickname,hourglasses,is_active,created_at,updated_at"

// Create inserts a user and returns its ID. New accounts start with the
// given hourglass grant so they can extend a board right away.
func (r *UserRepo) Create(ctx context.Context, email, password, nickname string, startingHourglasses uint32, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, nickname, hourglasses) VALUES (?,?,?,?)",
		email, hash, nickname, startingHourglasses)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func scanUser(row *sql.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Nickname, &u.Hourglasses,
		&u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// SpendHourglassesTx decrements the caller's balance by n inside the
// provided transaction.  The WHERE clause keeps the decrement
// conditional on a sufficient balance, so the precondition check and
// the spend are a single atomic statement; an overdraw matches zero
// rows and returns ErrInsufficientHourglasses with nothing deducted.
func (r *UserRepo) SpendHourglassesTx(ctx context.Context, tx *sql.Tx, userID uint64, n uint32) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE users SET hourglasses = hourglasses - ? WHERE id=? AND hourglasses >= ?",
		n, userID, n)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrInsufficientHourglasses
	}
	return nil
}

// GrantHourglasses credits the user's balance, e.g. after a purchase
// recorded by the external payment gateway.
func (r *UserRepo) GrantHourglasses(ctx context.Context, userID uint64, n uint32) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET hourglasses = hourglasses + ? WHERE id=?", n, userID)
	return err
}
