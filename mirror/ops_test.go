package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/oeisdb/oeis"
)

const (
	testGreeting = "# Greetings from The On-Line Encyclopedia of Integer Sequences! http://oeis.org/"
	testLicense  = "# Content is available under The OEIS End-User License Agreement: http://oeis.org/LICENSE"
)

// oeisServer simulates the remote OEIS text interface: entries exist for
// ids in [1, boundary], ids in fail return HTTP 500, and content carries
// a version so tests can "edit" entries remotely.
type oeisServer struct {
	mu       sync.Mutex
	boundary int
	version  int
	fail     map[int]bool
}

func (o *oeisServer) setVersion(v int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.version = v
}

func (o *oeisServer) setFail(id int, fail bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fail[id] = fail
}

// mainContent is a minimal clean entry: offset 1,2 matches the first
// value of magnitude > 1 sitting in position 2.
func (o *oeisServer) mainContent(id int) string {
	a := oeis.FormatID(id)
	return fmt.Sprintf("%%I %s\n%%S %s 1,2,3\n%%N %s Test sequence %d, revision %d.\n%%K %s nonn\n%%O %s 1,2\n%%A %s _Test Author_\n",
		a, a, a, id, o.version, a, a, a)
}

func (o *oeisServer) bfileContent(id int) string {
	return fmt.Sprintf("# %s\n1 1\n2 2\n3 3\n", oeis.FormatID(id))
}

func (o *oeisServer) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o.mu.Lock()
		defer o.mu.Unlock()

		if r.URL.Path == "/search" {
			q := r.URL.Query().Get("q")
			id, err := strconv.Atoi(strings.TrimPrefix(q, "id:A"))
			if err != nil {
				t.Errorf("bad search query %q", q)
				http.Error(w, "bad query", 400)
				return
			}
			if o.fail[id] {
				http.Error(w, "flaky", 500)
				return
			}
			if id > o.boundary {
				fmt.Fprintf(w, "%s\n\nSearch: id:a%06d\nNo results.\n\n%s\n", testGreeting, id, testLicense)
				return
			}
			fmt.Fprintf(w, "%s\n\nSearch: id:a%06d\nShowing 1-1 of 1\n\n%s\n%s\n",
				testGreeting, id, o.mainContent(id), testLicense)
			return
		}

		// B-file path: /A%06d/b%06d.txt
		var id int
		if _, err := fmt.Sscanf(r.URL.Path, "/A%06d/", &id); err != nil {
			t.Errorf("unexpected path %q", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		if o.fail[id] || id > o.boundary {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, o.bfileContent(id))
	})
}

func newOeisServer(t *testing.T, boundary int) (*oeisServer, *httptest.Server) {
	o := &oeisServer{boundary: boundary, fail: make(map[int]bool)}
	srv := httptest.NewServer(o.handler(t))
	t.Cleanup(srv.Close)
	return o, srv
}

// newTestService builds a Service against the simulated server with
// small, fast settings.
func newTestService(t *testing.T, baseURL string, mutate func(*Config)) *Service {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "test.sqlite3")
	cfg.Fetch.BaseURL = baseURL
	cfg.Fetch.RequestsPerSecond = 10000
	cfg.Fetch.Burst = 100
	cfg.Probe.KnownID = 2
	cfg.Probe.RetryDelay = time.Millisecond
	cfg.Sync.BatchSize = 3
	cfg.Sync.Workers = 4
	cfg.Sync.BatchPause = time.Millisecond
	cfg.Sync.FetchFile = filepath.Join(t.TempDir(), "oeis_fetch.txt")
	cfg.Archive.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}

	m, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestCompleteStore(t *testing.T) {
	// WHAT: CompleteStore fetches exactly the missing ids, in batches.
	// WHY: This is the bulk-download path that builds the mirror.
	o, srv := newOeisServer(t, 5)
	m := newTestService(t, srv.URL, nil)
	ctx := context.Background()

	if err := m.CompleteStore(ctx, 5); err != nil {
		t.Fatalf("complete store: %v", err)
	}

	count, err := m.store.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 5 {
		t.Errorf("count: got %d, want 5", count)
	}
	rec, err := m.store.Get(ctx, 3)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec == nil {
		t.Fatal("entry 3 missing")
	}
	if rec.MainContent != o.mainContent(3) {
		t.Errorf("main content: got %q", rec.MainContent)
	}
	if rec.BFileContent != o.bfileContent(3) {
		t.Errorf("bfile content: got %q", rec.BFileContent)
	}
	if rec.T1 != rec.T2 {
		t.Errorf("fresh entry should have t1 == t2, got %f != %f", rec.T1, rec.T2)
	}
}

func TestCompleteStore_AlreadyComplete(t *testing.T) {
	// WHAT: A second CompleteStore with nothing missing is a no-op.
	// WHY: The cycle calls it unconditionally.
	_, srv := newOeisServer(t, 3)
	m := newTestService(t, srv.URL, nil)
	ctx := context.Background()

	if err := m.CompleteStore(ctx, 3); err != nil {
		t.Fatalf("first complete: %v", err)
	}
	if err := m.CompleteStore(ctx, 3); err != nil {
		t.Fatalf("second complete: %v", err)
	}
	count, _ := m.store.Count(ctx)
	if count != 3 {
		t.Errorf("count: got %d, want 3", count)
	}
}

func TestCompleteStore_NoProgress(t *testing.T) {
	// WHAT: A batch where every fetch fails aborts with ErrNoProgress.
	// WHY: Without the guard a dead server would spin the operation
	// forever on the same ids.
	o, srv := newOeisServer(t, 3)
	for id := 1; id <= 3; id++ {
		o.setFail(id, true)
	}
	m := newTestService(t, srv.URL, nil)
	ctx := context.Background()

	err := m.CompleteStore(ctx, 3)
	if !errors.Is(err, ErrNoProgress) {
		t.Fatalf("want ErrNoProgress, got %v", err)
	}
	count, _ := m.store.Count(ctx)
	if count != 0 {
		t.Errorf("count: got %d, want 0", count)
	}
	logged, err := m.store.CountFetchLog(ctx)
	if err != nil {
		t.Fatalf("count fetch log: %v", err)
	}
	if logged != 3 {
		t.Errorf("fetch log rows: got %d, want 3", logged)
	}
}

func TestCompleteStore_PartialFailure(t *testing.T) {
	// WHAT: A persistently failing id does not block the others; once it
	// is the only one left, the operation aborts with ErrNoProgress.
	// WHY: Per-id failures must never poison a batch (only starve it).
	o, srv := newOeisServer(t, 4)
	o.setFail(2, true)
	m := newTestService(t, srv.URL, nil)
	ctx := context.Background()

	err := m.CompleteStore(ctx, 4)
	if !errors.Is(err, ErrNoProgress) {
		t.Fatalf("want ErrNoProgress, got %v", err)
	}
	count, _ := m.store.Count(ctx)
	if count != 3 {
		t.Errorf("count: got %d, want 3", count)
	}
	rec, _ := m.store.Get(ctx, 2)
	if rec != nil {
		t.Errorf("failing entry 2 should not be stored")
	}
}

func TestRefreshZeroWindow(t *testing.T) {
	// WHAT: RefreshZeroWindow re-fetches until no entry has t1 == t2.
	// WHY: A single observation says nothing about stability; the window
	// must be opened before the priority formula means anything.
	_, srv := newOeisServer(t, 3)
	m := newTestService(t, srv.URL, nil)
	ctx := context.Background()

	if err := m.CompleteStore(ctx, 3); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := m.RefreshZeroWindow(ctx); err != nil {
		t.Fatalf("refresh zero window: %v", err)
	}

	ids, err := m.store.ZeroWindowIDs(ctx)
	if err != nil {
		t.Fatalf("zero window ids: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("zero-window ids remain: %v", ids)
	}
	rec, _ := m.store.Get(ctx, 1)
	if rec == nil || rec.T2 <= rec.T1 {
		t.Errorf("expected widened window, got %+v", rec)
	}
}

func TestRefreshRandom_PicksUpRemoteEdits(t *testing.T) {
	// WHAT: A refresh of an edited entry replaces content and resets the
	// observation window.
	// WHY: Catching remote edits is the entire point of re-fetching.
	o, srv := newOeisServer(t, 3)
	m := newTestService(t, srv.URL, nil)
	ctx := context.Background()

	if err := m.CompleteStore(ctx, 3); err != nil {
		t.Fatalf("complete: %v", err)
	}
	o.setVersion(1)
	if err := m.RefreshRandom(ctx, 3); err != nil {
		t.Fatalf("refresh random: %v", err)
	}

	rec, err := m.store.Get(ctx, 2)
	if err != nil || rec == nil {
		t.Fatalf("get: %v, %v", rec, err)
	}
	if !strings.Contains(rec.MainContent, "revision 1") {
		t.Errorf("content not refreshed: %q", rec.MainContent)
	}
	if rec.T1 != rec.T2 {
		t.Errorf("updated entry should reset the window, got t1=%f t2=%f", rec.T1, rec.T2)
	}
}

func TestManualFetch(t *testing.T) {
	// WHAT: The fetch file drives which ids are fetched: comments, blanks
	// and garbage are skipped, out-of-range ids dropped, and the file is
	// removed afterward.
	// WHY: The fetch file is the only operator interface for targeted
	// refreshes; its parsing rules must hold exactly.
	_, srv := newOeisServer(t, 5)
	m := newTestService(t, srv.URL, nil)
	ctx := context.Background()

	body := "2\n# a comment\n\nseven\n12\n4\n"
	if err := os.WriteFile(m.config.Sync.FetchFile, []byte(body), 0o644); err != nil {
		t.Fatalf("write fetch file: %v", err)
	}

	if err := m.ManualFetch(ctx, 5); err != nil {
		t.Fatalf("manual fetch: %v", err)
	}

	ids, err := m.store.AllIDs(ctx)
	if err != nil {
		t.Fatalf("all ids: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("ids: got %v, want {2, 4}", ids)
	}
	for _, want := range []int{2, 4} {
		if _, ok := ids[want]; !ok {
			t.Errorf("id %d missing", want)
		}
	}
	if _, err := os.Stat(m.config.Sync.FetchFile); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("fetch file should be removed, stat err: %v", err)
	}
}

func TestManualFetch_MissingFile(t *testing.T) {
	// WHAT: No fetch file means a silent no-op.
	// WHY: The cycle runs the manual step unconditionally.
	_, srv := newOeisServer(t, 3)
	m := newTestService(t, srv.URL, nil)

	if err := m.ManualFetch(context.Background(), 3); err != nil {
		t.Fatalf("manual fetch without file: %v", err)
	}
	count, _ := m.store.Count(context.Background())
	if count != 0 {
		t.Errorf("count: got %d, want 0", count)
	}
}
