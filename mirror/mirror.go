// Package mirror maintains a local SQLite copy of the On-Line
// Encyclopedia of Integer Sequences.
//
// A sync cycle probes the remote server for its highest entry id,
// completes the local store, honors manual fetch requests, re-fetches
// slices of the id space, and finishes with housekeeping:
//
//	probe → complete → manual → random → priority → zero-window → prune → archive
//
// Every record carries an observation window (t1, t2): t1 is when the
// current content was first seen, t2 when it was last confirmed. The
// window drives the priority refresh (old and unstable entries first)
// and the zero-window refresh (entries seen only once).
//
// All store writes happen on the goroutine that runs the cycle; only the
// HTTP fetches fan out over a worker pool.
//
// Usage:
//
//	m, err := mirror.New(cfg, logger)
//	defer m.Close()
//	err = m.Run(ctx)
package mirror

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/oeisdb/mirror/internal/fetch"
	"github.com/hazyhaar/oeisdb/mirror/store"
)

// Service is the mirror orchestrator.
type Service struct {
	store   *store.Store
	fetcher *fetch.Fetcher
	prober  *fetch.Prober
	config  *Config
	logger  *slog.Logger
}

// New creates a Service. Opens (and if needed creates) the mirror
// database and builds the fetcher and prober.
func New(cfg *Config, logger *slog.Logger) (*Service, error) {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	f := fetch.New(cfg.Fetch)
	return &Service{
		store:   s,
		fetcher: f,
		prober:  fetch.NewProber(f, cfg.Probe, logger),
		config:  cfg,
		logger:  logger,
	}, nil
}

// Close shuts down the service and closes the database.
func (m *Service) Close() error {
	return m.store.Close()
}

// Store returns the underlying store for direct read access.
func (m *Service) Store() *store.Store {
	return m.store
}

// Stats returns current store statistics.
func (m *Service) Stats(ctx context.Context) (store.Stats, error) {
	return m.store.Stats(ctx)
}
