package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/hazyhaar/oeisdb/dbopen"
)

func logFetch(ctx context.Context, tx *sql.Tx, cycleID, op string, oeisID int, status, errMsg string, at int64) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO fetch_log (id, cycle_id, op, oeis_id, status, error, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), cycleID, op, oeisID, status, errMsg, at)
	return err
}

// PruneFetchLog removes log rows older than the cutoff and reports how many
// were deleted.
func (s *Store) PruneFetchLog(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := dbopen.Exec(ctx, s.DB,
		`DELETE FROM fetch_log WHERE fetched_at < ?`, olderThan.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountFetchLog returns the number of fetch_log rows, for diagnostics.
func (s *Store) CountFetchLog(ctx context.Context) (int, error) {
	var count int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM fetch_log`).Scan(&count)
	return count, err
}
