// Package queue drives orchestrator.Orchestrator state machines off a small worker
// pool: StartRun enqueues a run, workers poll the canonical store for active
// runs nobody in this process is currently driving, and a background sweep
// surfaces runs that have gone stale.
package queue

import (
	"context"
	"time"

	"github.com/arborcode/profilescope/pkg/models"
)

// WorkerStatus is a worker's current activity.
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// RunDriver is the subset of *orchestrator.Orchestrator the pool depends on,
// narrowed so tests can substitute a fake.
type RunDriver interface {
	Drive(ctx context.Context, runID string) error
	SetConsent(runID string, consent models.ConsentFlags)
}

// PoolHealth summarizes the worker pool for a health endpoint.
type PoolHealth struct {
	IsHealthy        bool           `json:"is_healthy"`
	NodeID           string         `json:"node_id"`
	ActiveWorkers    int            `json:"active_workers"`
	TotalWorkers     int            `json:"total_workers"`
	ActiveRuns       int            `json:"active_runs"`
	QueueDepth       int            `json:"queue_depth"`
	WorkerStats     []WorkerHealth `json:"worker_stats"`
	LastOrphanScan  time.Time      `json:"last_orphan_scan"`
	OrphansDetected int            `json:"orphans_detected"`
}

// WorkerHealth summarizes a single worker.
type WorkerHealth struct {
	ID            string       `json:"id"`
	Status        WorkerStatus `json:"status"`
	CurrentRunID  string       `json:"current_run_id,omitempty"`
	RunsProcessed int          `json:"runs_processed"`
	LastActivity  time.Time    `json:"last_activity"`
}
