package store

// Schema is the complete mirror schema.
//
// t1 and t2 bracket the period the stored content has been observed
// unchanged, in Unix seconds: t1 is when the content was first seen, t2 when
// it was last confirmed. A fresh insert has t1 = t2.
const Schema = `
-- Mirrored entries, raw directive text as fetched
CREATE TABLE IF NOT EXISTS oeis_entries (
    oeis_id       INTEGER PRIMARY KEY NOT NULL,
    t1            REAL NOT NULL,
    t2            REAL NOT NULL,
    main_content  TEXT NOT NULL,
    bfile_content TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_oeis_entries_t2 ON oeis_entries(t2);

-- Fetch log (observability)
CREATE TABLE IF NOT EXISTS fetch_log (
    id         TEXT PRIMARY KEY,
    cycle_id   TEXT NOT NULL,
    op         TEXT NOT NULL,
    oeis_id    INTEGER NOT NULL,
    status     TEXT NOT NULL,
    error      TEXT NOT NULL DEFAULT '',
    fetched_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fetch_log_time ON fetch_log(fetched_at);
CREATE INDEX IF NOT EXISTS idx_fetch_log_cycle ON fetch_log(cycle_id, oeis_id);
`
