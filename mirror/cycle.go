package mirror

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/hazyhaar/oeisdb/mirror/internal/archive"
)

// Cycle runs one full synchronization pass. Any stage failing aborts the
// cycle; whatever it skipped is picked up by the next one.
func (m *Service) Cycle(ctx context.Context) error {
	cycleID := uuid.NewString()
	log := m.logger.With("cycle_id", cycleID)

	start := time.Now()
	log.Info("starting sync cycle")

	highest, err := m.prober.HighestID(ctx)
	if err != nil {
		return fmt.Errorf("probe highest id: %w", err)
	}
	log.Info("remote boundary found", "highest", highest)

	if err := m.completeStore(ctx, cycleID, highest); err != nil {
		return err
	}
	if err := m.manualFetch(ctx, cycleID, highest); err != nil {
		return err
	}
	if err := m.refreshRandom(ctx, cycleID, int(float64(highest)*m.config.Sync.RandomFraction)); err != nil {
		return err
	}
	if err := m.refreshByPriority(ctx, cycleID, int(float64(highest)*m.config.Sync.PriorityFraction)); err != nil {
		return err
	}
	if err := m.refreshZeroWindow(ctx, cycleID); err != nil {
		return err
	}

	pruned, err := m.store.PruneFetchLog(ctx, time.Now().Add(-m.config.Log.Retention))
	if err != nil {
		return err
	}
	if pruned > 0 {
		log.Info("pruned fetch log", "rows", pruned)
	}

	if m.config.Archive.Enabled {
		err := archive.Consolidate(ctx, m.store.DB,
			m.config.Archive.Dir, m.config.Archive.RemoveStale, time.Now(), log)
		if err != nil {
			return err
		}
	}

	log.Info("sync cycle done", "took", time.Since(start))
	return nil
}

// Run loops Cycle until the context is cancelled. A failed cycle is
// logged and the loop carries on. Between cycles it pauses for a random
// duration; a drop of the fetch file during the pause triggers an
// immediate manual fetch without shortening the pause.
func (m *Service) Run(ctx context.Context) error {
	wake, stop, err := m.watchFetchFile()
	if err != nil {
		m.logger.Warn("fetch file watch unavailable", "error", err)
	} else {
		defer stop()
	}

	for {
		if err := m.Cycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.logger.Error("sync cycle failed", "error", err)
		}

		pause := m.cyclePause()
		m.logger.Info("pausing between cycles", "pause", pause)

		timer := time.NewTimer(pause)
	paused:
		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
				break paused
			case <-wake:
				m.manualFetchDuringPause(ctx)
			}
		}
	}
}

// cyclePause draws the inter-cycle pause from a gaussian, floored so a
// lucky draw never hammers the server.
func (m *Service) cyclePause() time.Duration {
	cfg := m.config.Sync
	pause := cfg.PauseMean + time.Duration(rand.NormFloat64()*float64(cfg.PauseStddev))
	return max(pause, cfg.PauseMin)
}

// manualFetchDuringPause serves a fetch-file drop without waiting for the
// next cycle. The local highest id clamps the requests; the remote is not
// probed during the pause.
func (m *Service) manualFetchDuringPause(ctx context.Context) {
	highest, err := m.store.HighestID(ctx)
	if err != nil {
		m.logger.Error("manual fetch aborted", "error", err)
		return
	}
	if highest == 0 {
		// Empty store: nothing to clamp against, the next cycle will
		// pick the file up with the real boundary.
		return
	}
	if err := m.ManualFetch(ctx, highest); err != nil && ctx.Err() == nil {
		m.logger.Error("manual fetch failed", "error", err)
	}
}
