package mirror

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/oeisdb/mirror/internal/fetch"
)

// Config holds all mirror configuration.
type Config struct {
	// DBPath is the mirror database file. Default: oeis.sqlite3.
	DBPath string `yaml:"db_path"`
	// HTTPAddr enables the read-only HTTP surface when non-empty.
	HTTPAddr string `yaml:"http_addr"`

	Fetch   fetch.Config      `yaml:"fetch"`
	Probe   fetch.ProbeConfig `yaml:"probe"`
	Sync    SyncConfig        `yaml:"sync"`
	Log     LogConfig         `yaml:"log"`
	Archive ArchiveConfig     `yaml:"archive"`
}

// SyncConfig controls the batch fetch machinery and the daemon loop.
type SyncConfig struct {
	// BatchSize caps how many entries one batch fetches. Default: 500.
	BatchSize int `yaml:"batch_size"`
	// Workers is the fetch fan-out width. Default: 20.
	Workers int `yaml:"workers"`
	// BatchPause between batches of the same operation. Default: 2s.
	BatchPause time.Duration `yaml:"batch_pause"`
	// RandomFraction of the id space re-fetched at random each cycle.
	// Default: 0.001.
	RandomFraction float64 `yaml:"random_fraction"`
	// PriorityFraction of the id space re-fetched by age/stability
	// priority each cycle. Default: 0.005.
	PriorityFraction float64 `yaml:"priority_fraction"`
	// FetchFile lists manually requested ids, one per line; consumed and
	// removed by the cycle. Default: oeis_fetch.txt.
	FetchFile string `yaml:"fetch_file"`
	// Pause between cycles is max(PauseMin, N(PauseMean, PauseStddev)).
	// Defaults: 30m, 10m, 5m.
	PauseMean   time.Duration `yaml:"pause_mean"`
	PauseStddev time.Duration `yaml:"pause_stddev"`
	PauseMin    time.Duration `yaml:"pause_min"`
}

// LogConfig controls fetch_log retention.
type LogConfig struct {
	// Retention for fetch_log rows. Default: 720h.
	Retention time.Duration `yaml:"retention"`
}

// ArchiveConfig controls the monthly consolidation snapshot.
type ArchiveConfig struct {
	// Enabled defaults to true; set false to skip snapshots.
	Enabled bool `yaml:"enabled"`
	// Dir receives the snapshot files. Default: ".".
	Dir string `yaml:"dir"`
	// RemoveStale deletes older snapshots after a new one is written.
	RemoveStale bool `yaml:"remove_stale"`
}

func (c *Config) defaults() {
	if c.DBPath == "" {
		c.DBPath = "oeis.sqlite3"
	}
	if c.Sync.BatchSize <= 0 {
		c.Sync.BatchSize = 500
	}
	if c.Sync.Workers <= 0 {
		c.Sync.Workers = 20
	}
	if c.Sync.BatchPause <= 0 {
		c.Sync.BatchPause = 2 * time.Second
	}
	if c.Sync.RandomFraction <= 0 {
		c.Sync.RandomFraction = 0.001
	}
	if c.Sync.PriorityFraction <= 0 {
		c.Sync.PriorityFraction = 0.005
	}
	if c.Sync.FetchFile == "" {
		c.Sync.FetchFile = "oeis_fetch.txt"
	}
	if c.Sync.PauseMean <= 0 {
		c.Sync.PauseMean = 30 * time.Minute
	}
	if c.Sync.PauseStddev <= 0 {
		c.Sync.PauseStddev = 10 * time.Minute
	}
	if c.Sync.PauseMin <= 0 {
		c.Sync.PauseMin = 5 * time.Minute
	}
	if c.Log.Retention <= 0 {
		c.Log.Retention = 720 * time.Hour
	}
	if c.Archive.Dir == "" {
		c.Archive.Dir = "."
	}
}

// DefaultConfig returns a Config with every option at its default.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Archive.Enabled = true
	cfg.defaults()
	return cfg
}

// LoadConfigFile reads a YAML config file. Keys absent from the file keep
// their defaults, so archive.enabled starts true and must be disabled
// explicitly.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
