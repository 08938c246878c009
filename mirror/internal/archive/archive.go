// Package archive writes monthly consolidated snapshots of the mirror
// database, compressed with xz for distribution.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ulikunitz/xz"
)

// stalePattern matches consolidated snapshot names of any date.
const stalePattern = "oeis_v????????.sqlite3.xz"

// Consolidate writes a compressed snapshot named oeis_vYYYYMMDD.sqlite3.xz
// into dir. It runs only on the first day of the month and returns without
// work if the target for that day already exists, so calling it every cycle
// yields at most one snapshot per month. When removeStale is set, older
// snapshots in dir are deleted after the new one is in place.
func Consolidate(ctx context.Context, db *sql.DB, dir string, removeStale bool, now time.Time, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if now.Day() != 1 {
		return nil
	}

	snapshot := filepath.Join(dir, "oeis_v"+now.Format("20060102")+".sqlite3")
	target := snapshot + ".xz"

	if _, err := os.Stat(target); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", target, err)
	}

	logger.Info("consolidating database", "target", target)
	start := time.Now()

	// A snapshot left over from an interrupted run would fail VACUUM INTO.
	if err := os.Remove(snapshot); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove old snapshot: %w", err)
	}
	if _, err := db.ExecContext(ctx, "VACUUM INTO ?", snapshot); err != nil {
		return fmt.Errorf("vacuum into %s: %w", snapshot, err)
	}
	defer os.Remove(snapshot)

	if err := compressFile(snapshot, target); err != nil {
		return fmt.Errorf("compress snapshot: %w", err)
	}

	if removeStale {
		removeStaleSnapshots(dir, target, logger)
	}

	logger.Info("consolidation done", "target", target, "took", time.Since(start))
	return nil
}

// onlyReader hides the source's WriteTo method so CopyBuffer honors the
// block buffer instead of delegating.
type onlyReader struct{ io.Reader }

// compressFile writes an xz-compressed copy of src at dst, going through
// a temporary file so a crash never leaves a half-written target.
func compressFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			out.Close()
			os.Remove(tmp)
		}
	}()

	zw, err := xz.NewWriter(out)
	if err != nil {
		return err
	}
	if _, err = io.CopyBuffer(zw, onlyReader{in}, make([]byte, 1<<20)); err != nil {
		return err
	}
	if err = zw.Close(); err != nil {
		return err
	}
	if err = out.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, dst)
}

func removeStaleSnapshots(dir, keep string, logger *slog.Logger) {
	matches, err := filepath.Glob(filepath.Join(dir, stalePattern))
	if err != nil {
		logger.Warn("stale snapshot scan failed", "error", err)
		return
	}
	for _, m := range matches {
		if filepath.Base(m) == filepath.Base(keep) {
			continue
		}
		if err := os.Remove(m); err != nil {
			logger.Warn("stale snapshot removal failed", "file", m, "error", err)
			continue
		}
		logger.Info("removed stale snapshot", "file", m)
	}
}
