package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// orphanState tracks orphan-sweep metrics (thread-safe).
type orphanState struct {
	mu       sync.Mutex
	lastScan time.Time
	detected int
}

// runOrphanDetection periodically scans for active runs nobody in this
// process is currently driving.
//
// Because claim tracking lives only in Pool.active (in-memory, per process),
// a fresh process always starts with an empty claim set: normal polling
// already re-drives any run left non-terminal by a prior crash, without
// needing this sweep at all. What this sweep adds is visibility into runs
// that have sat active and unclaimed past OrphanThreshold — which, in a
// healthy pool, should never happen since idle workers poll continuously.
// Its presence here is a defensive backstop and an operational signal, not a
// resume mechanism in its own right.
func (p *Pool) runOrphanDetection(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.OrphanDetectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.detectStaleRuns(ctx)
		}
	}
}

// detectStaleRuns logs any active, unclaimed run whose updated_at is older
// than OrphanThreshold. It does not itself reclaim anything: the run stays
// visible to ListActiveRuns and the next worker poll picks it up normally.
func (p *Pool) detectStaleRuns(ctx context.Context) {
	runs, err := p.store.ListActiveRuns(ctx)
	if err != nil {
		slog.Error("queue: orphan sweep failed to list active runs", "error", err)
		return
	}

	threshold := time.Now().Add(-p.cfg.OrphanThreshold)
	var stale []string
	for _, run := range runs {
		if p.isClaimed(run.ID) {
			continue
		}
		if run.UpdatedAt.Before(threshold) {
			stale = append(stale, run.ID)
		}
	}

	p.orphans.mu.Lock()
	p.orphans.lastScan = time.Now()
	p.orphans.detected += len(stale)
	p.orphans.mu.Unlock()

	if len(stale) > 0 {
		slog.Warn("queue: found stale unclaimed runs, expecting the next poll to pick them up",
			"count", len(stale), "run_ids", stale)
	}
}
