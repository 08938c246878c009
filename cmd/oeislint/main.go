// Command oeislint parses every mirrored OEIS entry and reports the
// issues found, one line per issue, with a per-type count summary.
//
// Usage:
//
//	oeislint -db oeis.sqlite3                 # report to stdout
//	oeislint -db oeis.sqlite3 -out lint.txt   # report to a file
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"sort"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/oeisdb/dbopen"
	"github.com/hazyhaar/oeisdb/mirror/store"
	"github.com/hazyhaar/oeisdb/oeis"
)

// batchSize is the number of records pulled from the cursor and parsed on
// the worker pool at a time.
const batchSize = 1000

func main() {
	dbPath := flag.String("db", "oeis.sqlite3", "path to the SQLite mirror database")
	outPath := flag.String("out", "", "write the report to this file instead of stdout")
	workers := flag.Int("workers", runtime.NumCPU(), "parse workers")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *dbPath, *outPath, *workers); err != nil {
		logger.Error("oeislint: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, dbPath, outPath string, workers int) error {
	// Opening through the driver would create an empty database file.
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	db, err := dbopen.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	var out io.Writer = os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	l := &linter{
		logger:  logger,
		workers: max(workers, 1),
		out:     bufio.NewWriter(out),
		counts:  make(map[oeis.IssueType]int),
	}
	if err := l.run(ctx, store.New(db)); err != nil {
		return err
	}
	if err := l.out.Flush(); err != nil {
		return err
	}
	if outPath != "" {
		logger.Info("report written", "path", outPath)
	}
	return nil
}

// linter drives one pass over the mirror: records stream in id order, each
// batch is parsed on the worker pool, and the report lines come out in the
// same order the records went in.
type linter struct {
	logger  *slog.Logger
	workers int
	out     *bufio.Writer

	entries int
	failed  int
	issues  int
	counts  map[oeis.IssueType]int
}

func (l *linter) run(ctx context.Context, st *store.Store) error {
	start := time.Now()

	cur, err := st.Records(ctx)
	if err != nil {
		return err
	}
	defer cur.Close()

	batch := make([]store.Record, 0, batchSize)
	for cur.Next() {
		batch = append(batch, *cur.Record())
		if len(batch) == batchSize {
			if err := l.processBatch(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := cur.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		if err := l.processBatch(ctx, batch); err != nil {
			return err
		}
	}

	l.logger.Info("lint pass done",
		"entries", l.entries, "failed", l.failed, "issues", l.issues,
		"took", time.Since(start))
	l.logCounts()
	return nil
}

// processBatch parses one batch in parallel. Results are collected per
// index so the report stays in id order regardless of which worker
// finishes first.
func (l *linter) processBatch(ctx context.Context, batch []store.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.logger.Info("processing entries",
		"from", oeis.FormatID(batch[0].OeisID),
		"to", oeis.FormatID(batch[len(batch)-1].OeisID),
		"issues_so_far", l.issues)

	found := make([][]oeis.Issue, len(batch))
	errs := make([]error, len(batch))

	sem := make(chan struct{}, l.workers)
	var wg sync.WaitGroup
	for i := range batch {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, rec *store.Record) {
			defer wg.Done()
			defer func() { <-sem }()
			_, found[i], errs[i] = oeis.ParseEntry(rec.OeisID, rec.MainContent, rec.BFileContent)
		}(i, &batch[i])
	}
	wg.Wait()

	for i := range batch {
		l.entries++
		if errs[i] != nil {
			// Issues found before the abort still go into the report.
			l.failed++
			l.logger.Error("entry failed to parse",
				"id", oeis.FormatID(batch[i].OeisID), "error", errs[i])
		}
		for _, issue := range found[i] {
			l.issues++
			l.counts[issue.Type]++
			_, err := fmt.Fprintf(l.out, "%-25s  %s  %s\n",
				issue.Type, oeis.FormatID(issue.OeisID), issue.Description)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// logCounts reports how often each issue type occurred, most frequent first.
func (l *linter) logCounts() {
	type typeCount struct {
		t oeis.IssueType
		n int
	}
	sorted := make([]typeCount, 0, len(l.counts))
	for t, n := range l.counts {
		sorted = append(sorted, typeCount{t, n})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].n != sorted[j].n {
			return sorted[i].n > sorted[j].n
		}
		return sorted[i].t < sorted[j].t
	})
	for _, tc := range sorted {
		l.logger.Info("issue type count", "type", tc.t.String(), "count", tc.n)
	}
}
