package queue

import "time"

// Config controls how the worker pool polls for and drives runs.
type Config struct {
	// WorkerCount is the number of worker goroutines in this process. Each
	// worker independently polls and drives runs; scheduling stays
	// single-threaded per run (different runs may run in parallel, never the
	// same run twice).
	WorkerCount int

	// PollInterval is the base delay between poll attempts when a worker
	// finds no unclaimed active run.
	PollInterval time.Duration

	// PollIntervalJitter is the random jitter added to PollInterval so
	// multiple idle workers do not all wake on the same tick.
	PollIntervalJitter time.Duration

	// RunTimeout bounds how long a single run may occupy a worker before its
	// context is cancelled.
	RunTimeout time.Duration

	// GracefulShutdownTimeout is the max time Stop waits for in-flight runs
	// to return before giving up on a clean shutdown.
	GracefulShutdownTimeout time.Duration

	// OrphanDetectionInterval is how often the background sweep scans for
	// active runs nobody in this process is currently driving.
	OrphanDetectionInterval time.Duration

	// OrphanThreshold is how long a run's updated_at may go untouched before
	// the sweep logs it as stale.
	OrphanThreshold time.Duration
}

// DefaultConfig returns the built-in queue defaults.
func DefaultConfig() *Config {
	return &Config{
		WorkerCount:             3,
		PollInterval:            1 * time.Second,
		PollIntervalJitter:      500 * time.Millisecond,
		RunTimeout:              16 * time.Minute, // slightly above the scraper's 15-minute poll budget
		GracefulShutdownTimeout: 2 * time.Minute,
		OrphanDetectionInterval: 2 * time.Minute,
		OrphanThreshold:         5 * time.Minute,
	}
}
