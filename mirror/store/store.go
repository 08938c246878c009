// Package store persists mirrored entries and their fetch history in SQLite.
//
// All operations run on the caller's goroutine. The mirror follows a
// single-writer model: one goroutine owns mutation, so store methods never
// take locks of their own.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hazyhaar/oeisdb/dbopen"
)

// Store wraps the mirror database.
type Store struct {
	DB *sql.DB
}

// New creates a Store from an already-opened database connection.
func New(db *sql.DB) *Store {
	return &Store{DB: db}
}

// Open opens the mirror database at path, creating it and its parent
// directory if needed, and applies the schema.
func Open(path string) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, fmt.Errorf("open mirror db: %w", err)
	}
	return &Store{DB: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Get returns the record for id, or nil when the id is not mirrored.
func (s *Store) Get(ctx context.Context, id int) (*Record, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT oeis_id, t1, t2, main_content, bfile_content
		FROM oeis_entries WHERE oeis_id = ?`, id)
	var r Record
	err := row.Scan(&r.OeisID, &r.T1, &r.T2, &r.MainContent, &r.BFileContent)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan entry: %w", err)
	}
	return &r, nil
}

// AllIDs returns the set of mirrored ids.
func (s *Store) AllIDs(ctx context.Context) (map[int]struct{}, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT oeis_id FROM oeis_entries`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[int]struct{})
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// Count returns the number of mirrored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM oeis_entries`).Scan(&count)
	return count, err
}

// HighestID returns the highest mirrored id, or 0 when the store is empty.
func (s *Store) HighestID(ctx context.Context) (int, error) {
	var id int
	err := s.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(oeis_id), 0) FROM oeis_entries`).Scan(&id)
	return id, err
}

// ZeroWindowIDs returns the ids whose content has been seen exactly once.
// Their stability window is empty, so a refresh tells the most.
func (s *Store) ZeroWindowIDs(ctx context.Context) ([]int, error) {
	return s.idList(ctx, `SELECT oeis_id FROM oeis_entries WHERE t1 = t2 ORDER BY oeis_id`)
}

// RandomIDs returns up to n mirrored ids drawn uniformly.
func (s *Store) RandomIDs(ctx context.Context, n int) ([]int, error) {
	return s.idList(ctx, `SELECT oeis_id FROM oeis_entries ORDER BY RANDOM() LIMIT ?`, n)
}

// PriorityIDs returns up to n ids ranked by refresh priority: age of the
// last confirmation divided by the length of the stability window. Entries
// not confirmed for a long time but historically volatile rank first.
func (s *Store) PriorityIDs(ctx context.Context, now float64, n int) ([]int, error) {
	return s.idList(ctx,
		`SELECT oeis_id FROM oeis_entries
		ORDER BY (? - t2) / max(t2 - t1, 1e-6) DESC LIMIT ?`, now, n)
}

func (s *Store) idList(ctx context.Context, query string, args ...any) ([]int, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RecordCursor streams records in id order. The record returned by Record is
// reused between calls to Next; copy it if it must survive the next call.
type RecordCursor struct {
	rows *sql.Rows
	rec  Record
	err  error
}

// Records returns a cursor over all mirrored entries in id order. Each call
// starts a fresh pass.
func (s *Store) Records(ctx context.Context) (*RecordCursor, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT oeis_id, t1, t2, main_content, bfile_content
		FROM oeis_entries ORDER BY oeis_id`)
	if err != nil {
		return nil, err
	}
	return &RecordCursor{rows: rows}, nil
}

// Next advances to the next record. It returns false at the end of the pass
// or on error; check Err after the loop.
func (c *RecordCursor) Next() bool {
	if !c.rows.Next() {
		c.err = c.rows.Err()
		return false
	}
	if err := c.rows.Scan(&c.rec.OeisID, &c.rec.T1, &c.rec.T2, &c.rec.MainContent, &c.rec.BFileContent); err != nil {
		c.err = err
		return false
	}
	return true
}

// Record returns the current record.
func (c *RecordCursor) Record() *Record { return &c.rec }

// Err returns the error that stopped the pass, if any.
func (c *RecordCursor) Err() error { return c.err }

// Close releases the cursor.
func (c *RecordCursor) Close() error { return c.rows.Close() }
