package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/hazyhaar/oeisdb/dbopen"
)

// ReconcileBatch applies one batch of fetch outcomes in a single
// transaction. An id not yet mirrored is inserted with t1 = t2 = the fetch
// timestamp; changed content resets the whole window; identical content only
// advances t2. Every outcome, including failures, gets a fetch_log row tagged
// with the cycle and the operation that requested the fetch.
func (s *Store) ReconcileBatch(ctx context.Context, cycleID, op string, fetched []Fetched, failed []FetchError) (Counts, error) {
	var counts Counts
	now := time.Now().UnixMilli()
	err := dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		counts = Counts{} // the transaction may be retried
		for _, f := range fetched {
			var r Record
			err := tx.QueryRowContext(ctx,
				`SELECT t1, t2, main_content, bfile_content
				FROM oeis_entries WHERE oeis_id = ?`, f.OeisID).
				Scan(&r.T1, &r.T2, &r.MainContent, &r.BFileContent)

			var status string
			switch {
			case err == sql.ErrNoRows:
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO oeis_entries (oeis_id, t1, t2, main_content, bfile_content)
					VALUES (?, ?, ?, ?, ?)`,
					f.OeisID, f.Timestamp, f.Timestamp, f.Main, f.BFile); err != nil {
					return err
				}
				status = "new"
				counts.New++
			case err != nil:
				return err
			case r.MainContent == f.Main && r.BFileContent == f.BFile:
				if _, err := tx.ExecContext(ctx,
					`UPDATE oeis_entries SET t2 = ? WHERE oeis_id = ?`,
					f.Timestamp, f.OeisID); err != nil {
					return err
				}
				status = "identical"
				counts.Identical++
			default:
				if _, err := tx.ExecContext(ctx,
					`UPDATE oeis_entries SET t1 = ?, t2 = ?, main_content = ?, bfile_content = ?
					WHERE oeis_id = ?`,
					f.Timestamp, f.Timestamp, f.Main, f.BFile, f.OeisID); err != nil {
					return err
				}
				status = "updated"
				counts.Updated++
			}

			if err := logFetch(ctx, tx, cycleID, op, f.OeisID, status, "", now); err != nil {
				return err
			}
		}

		for _, fe := range failed {
			if err := logFetch(ctx, tx, cycleID, op, fe.OeisID, "error", fe.Err, now); err != nil {
				return err
			}
			counts.Failures++
		}
		return nil
	})
	if err != nil {
		return Counts{}, err
	}
	return counts, nil
}
