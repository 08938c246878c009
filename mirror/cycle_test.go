package mirror

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

func TestCycle(t *testing.T) {
	// WHAT: One cycle probes the boundary, completes the store and opens
	// every observation window.
	// WHY: The cycle is the unit of progress for the daemon; a fresh
	// database must come out of it fully mirrored.
	_, srv := newOeisServer(t, 4)
	m := newTestService(t, srv.URL, nil)
	ctx := context.Background()

	if err := m.Cycle(ctx); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	stats, err := m.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Entries != 4 {
		t.Errorf("entries: got %d, want 4", stats.Entries)
	}
	if stats.HighestID != 4 {
		t.Errorf("highest: got %d, want 4", stats.HighestID)
	}
	if stats.ZeroWindow != 0 {
		t.Errorf("zero-window entries remain: %d", stats.ZeroWindow)
	}
	logged, err := m.store.CountFetchLog(ctx)
	if err != nil {
		t.Fatalf("count fetch log: %v", err)
	}
	if logged == 0 {
		t.Error("expected fetch log rows from the cycle")
	}
}

func TestCycle_Idempotent(t *testing.T) {
	// WHAT: A second cycle over an up-to-date store leaves the same
	// entries and only widens windows.
	// WHY: Cycles run forever; they must converge, not churn.
	_, srv := newOeisServer(t, 3)
	m := newTestService(t, srv.URL, nil)
	ctx := context.Background()

	if err := m.Cycle(ctx); err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	if err := m.Cycle(ctx); err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	stats, _ := m.Stats(ctx)
	if stats.Entries != 3 {
		t.Errorf("entries: got %d, want 3", stats.Entries)
	}
}

func TestCycle_ProbeFailure(t *testing.T) {
	// WHAT: A cycle against a dead server fails with an error instead of
	// hanging or writing anything.
	// WHY: The run loop depends on failed cycles surfacing cleanly.
	_, srv := newOeisServer(t, 3)
	srv.Close()
	m := newTestService(t, srv.URL, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := m.Cycle(ctx); err == nil {
		t.Fatal("expected cycle error")
	}
	count, _ := m.store.Count(context.Background())
	if count != 0 {
		t.Errorf("count: got %d, want 0", count)
	}
}

func TestRun_ManualWakeAndCancel(t *testing.T) {
	// WHAT: During the inter-cycle pause, dropping a fetch file triggers
	// an immediate manual fetch; cancelling the context stops Run.
	// WHY: This is the daemon's only mid-pause control path, and shutdown
	// must not wait out a pause that can last the better part of an hour.
	o, srv := newOeisServer(t, 2)
	m := newTestService(t, srv.URL, func(cfg *Config) {
		cfg.Sync.PauseMean = time.Hour
		cfg.Sync.PauseMin = time.Hour
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	// Wait for the first cycle to fill the store.
	waitFor(t, func() bool {
		count, err := m.store.Count(context.Background())
		return err == nil && count == 2
	})

	// Edit entry 1 remotely and request it via the fetch file.
	o.setVersion(7)
	if err := os.WriteFile(m.config.Sync.FetchFile, []byte("1\n"), 0o644); err != nil {
		t.Fatalf("write fetch file: %v", err)
	}

	waitFor(t, func() bool {
		rec, err := m.store.Get(context.Background(), 1)
		return err == nil && rec != nil && strings.Contains(rec.MainContent, "revision 7")
	})

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("run returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
}

// waitFor polls cond until it holds or a generous deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
