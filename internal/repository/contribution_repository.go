package repository

import (
	"context"
	"database/sql"

	"github.com/hesedhouse/TDB-Project-sub000/internal/model"
)

// ContributionRepo provides data access to the append-only
// `contributions` table and the leaderboard aggregation over it.
type ContributionRepo struct {
	db *sql.DB
}

// NewContributionRepo returns a new ContributionRepo bound to the
// provided database.
func NewContributionRepo(db *sql.DB) *ContributionRepo { return &ContributionRepo{db: db} }

// AppendTx records one lifespan-extension credit inside the caller's
// transaction.  Rows are write-once: no update or delete path exists.
func (r *ContributionRepo) AppendTx(ctx context.Context, tx *sql.Tx, roomID, contributor string, minutes uint32) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO contributions (room_id, contributor, minutes) VALUES (?,?,?)",
		roomID, contributor, minutes)
	return err
}

// ContributorTotal is one aggregated leaderboard row.
type ContributorTotal struct {
	Contributor string `json:"contributor"`
	Minutes     uint64 `json:"minutes"`
	Rank        int    `json:"rank"`
}

// TopContributors sums minutes grouped by contributor display name,
// orders descending by total and returns the top n with dense ranks
// assigned 1..n.  Ties are broken by earliest first contribution so
// re-aggregating the same rows always yields the same ordered list.
func (r *ContributionRepo) TopContributors(ctx context.Context, roomID string, n int) ([]ContributorTotal, error) {
	if n <= 0 {
		n = 3
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT contributor, SUM(minutes) AS total
		 FROM contributions WHERE room_id=?
		 GROUP BY contributor
		 ORDER BY total DESC, MIN(created_at) ASC, MIN(id) ASC
		 LIMIT ?`,
		roomID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ContributorTotal
	for rows.Next() {
		var t ContributorTotal
		if err := rows.Scan(&t.Contributor, &t.Minutes); err != nil {
			return nil, err
		}
		t.Rank = len(out) + 1
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListByRoom returns every contribution row for a room in insertion
// order, mostly for archival reads of closed boards.
func (r *ContributionRepo) ListByRoom(ctx context.Context, roomID string) ([]model.Contribution, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, room_id, contributor, minutes, created_at FROM contributions WHERE room_id=? ORDER BY id",
		roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Contribution
	for rows.Next() {
		var c model.Contribution
		if err := rows.Scan(&c.ID, &c.RoomID, &c.Contributor, &c.Minutes, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
