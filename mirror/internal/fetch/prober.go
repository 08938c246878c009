package fetch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hazyhaar/oeisdb/oeis"
)

// ProbeConfig configures the boundary probe.
type ProbeConfig struct {
	// KnownID is an id known a priori to exist; the search starts from
	// the range (KnownID, 100*KnownID). Default: 350000.
	KnownID int `yaml:"known_id"`
	// RetryDelay before retrying a probe after a transient failure.
	// Default: 5s.
	RetryDelay time.Duration `yaml:"retry_delay"`
}

func (c *ProbeConfig) defaults() {
	if c.KnownID <= 0 {
		c.KnownID = 350000
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 5 * time.Second
	}
}

// Prober locates the highest existing id on the remote server.
type Prober struct {
	fetcher *Fetcher
	config  ProbeConfig
	logger  *slog.Logger
}

// NewProber creates a Prober on top of an existing Fetcher.
func NewProber(f *Fetcher, cfg ProbeConfig, logger *slog.Logger) *Prober {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{fetcher: f, config: cfg, logger: logger}
}

// HighestID binary-searches the success/failure boundary between an id
// that exists and one that does not. Only a definitive ErrNoSuchEntry
// narrows the range from above; transient failures leave the range
// untouched and the same midpoint is retried after RetryDelay.
func (p *Prober) HighestID(ctx context.Context) (int, error) {
	success := p.config.KnownID
	failure := 100 * success

	for success+1 != failure {
		mid := (success + failure) / 2
		p.logger.Debug("probing for highest id",
			"success", success, "failure", failure, "probe", oeis.FormatID(mid))

		_, err := p.fetcher.Fetch(ctx, mid, false)
		switch {
		case err == nil:
			success = mid
		case errors.Is(err, ErrNoSuchEntry):
			failure = mid
		case ctx.Err() != nil:
			return 0, ctx.Err()
		default:
			p.logger.Warn("probe failed, retrying",
				"probe", oeis.FormatID(mid), "delay", p.config.RetryDelay, "error", err)
			if err := sleepCtx(ctx, p.config.RetryDelay); err != nil {
				return 0, err
			}
		}
	}
	return success, nil
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
