package mirror

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hazyhaar/oeisdb/mirror/internal/fetch"
	"github.com/hazyhaar/oeisdb/mirror/store"
)

// CompleteStore fetches every id in [1, highest] the store lacks.
func (m *Service) CompleteStore(ctx context.Context, highest int) error {
	return m.completeStore(ctx, uuid.NewString(), highest)
}

// RefreshRandom re-fetches up to n entries chosen uniformly at random.
func (m *Service) RefreshRandom(ctx context.Context, n int) error {
	return m.refreshRandom(ctx, uuid.NewString(), n)
}

// RefreshByPriority re-fetches the n entries that are oldest relative to
// their stability: priority = age / window, with age = now - t2 and
// window = t2 - t1.
func (m *Service) RefreshByPriority(ctx context.Context, n int) error {
	return m.refreshByPriority(ctx, uuid.NewString(), n)
}

// RefreshZeroWindow re-fetches entries seen only once (t1 == t2) until
// none remain.
func (m *Service) RefreshZeroWindow(ctx context.Context) error {
	return m.refreshZeroWindow(ctx, uuid.NewString())
}

// ManualFetch re-fetches the ids listed in the fetch file, one per line,
// then removes the file. Blank lines and # comments are skipped, bad
// lines are logged, ids outside [1, highest] are dropped. A missing file
// is a no-op.
func (m *Service) ManualFetch(ctx context.Context, highest int) error {
	return m.manualFetch(ctx, uuid.NewString(), highest)
}

func (m *Service) completeStore(ctx context.Context, cycleID string, highest int) error {
	existing, err := m.store.AllIDs(ctx)
	if err != nil {
		return err
	}
	missing := make(map[int]struct{})
	for id := 1; id <= highest; id++ {
		if _, ok := existing[id]; !ok {
			missing[id] = struct{}{}
		}
	}
	m.logger.Info("completing store",
		"cycle_id", cycleID, "present", len(existing), "missing", len(missing))
	return m.fetchAndReconcile(ctx, cycleID, "complete", missing)
}

func (m *Service) refreshRandom(ctx context.Context, cycleID string, n int) error {
	if n <= 0 {
		return nil
	}
	ids, err := m.store.RandomIDs(ctx, n)
	if err != nil {
		return err
	}
	m.logger.Info("refreshing random entries", "cycle_id", cycleID, "count", len(ids))
	return m.fetchAndReconcile(ctx, cycleID, "random", idSet(ids))
}

func (m *Service) refreshByPriority(ctx context.Context, cycleID string, n int) error {
	if n <= 0 {
		return nil
	}
	ids, err := m.store.PriorityIDs(ctx, unixSeconds(time.Now()), n)
	if err != nil {
		return err
	}
	m.logger.Info("refreshing priority entries", "cycle_id", cycleID, "count", len(ids))
	return m.fetchAndReconcile(ctx, cycleID, "priority", idSet(ids))
}

func (m *Service) refreshZeroWindow(ctx context.Context, cycleID string) error {
	for {
		ids, err := m.store.ZeroWindowIDs(ctx)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		m.logger.Info("refreshing zero-window entries", "cycle_id", cycleID, "count", len(ids))
		if err := m.fetchAndReconcile(ctx, cycleID, "zero_window", idSet(ids)); err != nil {
			return err
		}
	}
}

func (m *Service) manualFetch(ctx context.Context, cycleID string, highest int) error {
	path := m.config.Sync.FetchFile
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read fetch file: %w", err)
	}

	ids := make(map[int]struct{})
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		id, err := strconv.Atoi(line)
		if err != nil {
			m.logger.Warn("ignoring bad line in fetch file", "file", path, "line", line)
			continue
		}
		if id >= 1 && id <= highest {
			ids[id] = struct{}{}
		}
	}

	m.logger.Info("manual fetch requested", "cycle_id", cycleID, "file", path, "count", len(ids))
	if err := m.fetchAndReconcile(ctx, cycleID, "manual", ids); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove fetch file: %w", err)
	}
	return nil
}

// fetchAndReconcile drains ids in randomized batches: fetch a batch over
// the worker pool, reconcile it in one transaction, drop the succeeded
// ids, pause, repeat. Per-id failures stay in the set for a later batch;
// a batch with zero successes aborts with ErrNoProgress.
func (m *Service) fetchAndReconcile(ctx context.Context, cycleID, op string, ids map[int]struct{}) error {
	remaining := ids
	for len(remaining) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch := sampleIDs(remaining, m.config.Sync.BatchSize)
		m.logger.Info("fetching batch", "cycle_id", cycleID, "op", op,
			"batch", len(batch), "remaining", len(remaining))

		start := time.Now()
		fetched, failed := m.fetchBatch(ctx, batch)
		if err := ctx.Err(); err != nil {
			return err
		}
		took := time.Since(start)
		m.logger.Info("batch fetched", "cycle_id", cycleID, "op", op, "took", took,
			"per_second", float64(len(batch))/took.Seconds())

		counts, err := m.store.ReconcileBatch(ctx, cycleID, op, fetched, failed)
		if err != nil {
			return fmt.Errorf("reconcile batch: %w", err)
		}
		m.logger.Info("batch processed", "cycle_id", cycleID, "op", op,
			"new", counts.New, "identical", counts.Identical,
			"updated", counts.Updated, "failures", counts.Failures)

		if counts.Total() == 0 {
			return fmt.Errorf("%s: %w", op, ErrNoProgress)
		}
		for _, f := range fetched {
			delete(remaining, f.OeisID)
		}

		if len(remaining) > 0 {
			if err := sleepCtx(ctx, m.config.Sync.BatchPause); err != nil {
				return err
			}
		}
	}
	return nil
}

// fetchBatch fans the batch out over the worker pool. The outcome channel
// is buffered for the whole batch so workers never block on the consumer.
func (m *Service) fetchBatch(ctx context.Context, batch []int) ([]store.Fetched, []store.FetchError) {
	type outcome struct {
		result *fetch.Result
		id     int
		err    error
	}

	out := make(chan outcome, len(batch))
	sem := make(chan struct{}, m.config.Sync.Workers)
	var wg sync.WaitGroup

	for _, id := range batch {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			r, err := m.fetcher.Fetch(ctx, id, true)
			out <- outcome{result: r, id: id, err: err}
		}(id)
	}
	wg.Wait()
	close(out)

	var fetched []store.Fetched
	var failed []store.FetchError
	for o := range out {
		if o.err != nil {
			m.logger.Error("fetch failed", "oeis_id", o.id, "error", o.err)
			failed = append(failed, store.FetchError{OeisID: o.id, Err: o.err.Error()})
			continue
		}
		fetched = append(fetched, store.Fetched{
			OeisID:    o.result.OeisID,
			Timestamp: unixSeconds(o.result.Timestamp),
			Main:      o.result.Main,
			BFile:     o.result.BFile,
		})
	}
	return fetched, failed
}

// sampleIDs picks min(n, len(set)) ids uniformly at random.
func sampleIDs(set map[int]struct{}, n int) []int {
	all := make([]int, 0, len(set))
	for id := range set {
		all = append(all, id)
	}
	if n >= len(all) {
		return all
	}
	for i := 0; i < n; i++ {
		j := i + rand.IntN(len(all)-i)
		all[i], all[j] = all[j], all[i]
	}
	return all[:n]
}

func idSet(ids []int) map[int]struct{} {
	set := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
