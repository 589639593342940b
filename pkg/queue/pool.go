package queue

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arborcode/profilescope/pkg/canonicalstore"
	"github.com/arborcode/profilescope/pkg/harvester"
	"github.com/arborcode/profilescope/pkg/models"
)

// Pool manages a pool of workers driving orchestrator.Orchestrator state machines.
type Pool struct {
	store  canonicalstore.Store
	driver RunDriver
	cfg    *Config
	nodeID string

	workers  []*worker
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	started  bool

	// active tracks runs currently claimed by a worker in this process:
	// run ID -> its cancel function, for CancelRun and for the orphan sweep
	// to tell "claimed here" from "nobody is driving this".
	mu     sync.RWMutex
	active map[string]context.CancelFunc

	orphans orphanState
}

// NewPool builds a Pool. cfg may be nil, in which case DefaultConfig is used.
func NewPool(store canonicalstore.Store, driver RunDriver, cfg *Config) *Pool {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	nodeID, err := os.Hostname()
	if err != nil || nodeID == "" {
		nodeID = uuid.New().String()
	}
	return &Pool{
		store:  store,
		driver: driver,
		cfg:    cfg,
		nodeID: nodeID,
		stopCh: make(chan struct{}),
		active: make(map[string]context.CancelFunc),
	}
}

// Start spawns worker goroutines and the orphan detection background task.
// Safe to call multiple times; later calls are no-ops.
func (p *Pool) Start(ctx context.Context) error {
	if p.started {
		slog.Warn("queue: pool already started, ignoring duplicate Start call", "node_id", p.nodeID)
		return nil
	}
	p.started = true

	slog.Info("queue: starting worker pool", "node_id", p.nodeID, "worker_count", p.cfg.WorkerCount)

	for i := 0; i < p.cfg.WorkerCount; i++ {
		w := newWorker(fmt.Sprintf("%s-worker-%d", p.nodeID, i), p)
		p.workers = append(p.workers, w)
		p.wg.Add(1)
		go w.run(ctx)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runOrphanDetection(ctx)
	}()

	slog.Info("queue: worker pool started")
	return nil
}

// Stop signals every worker to stop and waits up to GracefulShutdownTimeout
// for in-flight runs to return.
func (p *Pool) Stop() {
	slog.Info("queue: stopping worker pool", "node_id", p.nodeID)
	p.stopOnce.Do(func() { close(p.stopCh) })

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("queue: worker pool stopped")
	case <-time.After(p.cfg.GracefulShutdownTimeout):
		slog.Warn("queue: graceful shutdown timed out, returning anyway", "node_id", p.nodeID)
	}
}

// StartRun persists a new run in StatusIntake and records its consent model.
// It does not hand the run to a worker directly: the next poll's
// ListActiveRuns call will surface it.
func (p *Pool) StartRun(ctx context.Context, subject string, inputKind models.InputKind, budget int, consent models.ConsentFlags) (string, error) {
	run := &models.Run{
		ID:        uuid.New().String(),
		Subject:   subject,
		InputKind: correctedInputKind(subject),
		Status:    models.StatusIntake,
		Budget:    budget,
	}
	if err := p.store.CreateRun(ctx, run); err != nil {
		return "", fmt.Errorf("queue: create run: %w", err)
	}
	p.driver.SetConsent(run.ID, consent)
	return run.ID, nil
}

// correctedInputKind derives a run's InputKind from the URL-pattern test on
// subject. Per spec.md:222, the caller-supplied input_kind hint is always
// overridden by this test; StartRun accordingly never trusts the hint.
func correctedInputKind(subject string) models.InputKind {
	if harvester.IsDirectProfileURL(subject) {
		return models.InputKindDirectURL
	}
	return models.InputKindSearchQuery
}

// CancelRun cancels a run's context if a worker in this process is currently
// driving it. Returns false if the run is not claimed here (it may be
// running on another replica, already finished, or never started).
func (p *Pool) CancelRun(runID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cancel, ok := p.active[runID]
	if ok {
		cancel()
	}
	return ok
}

// Health reports the pool's current state for a health endpoint.
func (p *Pool) Health(ctx context.Context) (*PoolHealth, error) {
	runs, err := p.store.ListActiveRuns(ctx)
	if err != nil {
		return nil, fmt.Errorf("queue: health check: list active runs: %w", err)
	}

	p.mu.RLock()
	activeRuns := len(p.active)
	p.mu.RUnlock()

	depth := len(runs) - activeRuns
	if depth < 0 {
		depth = 0
	}

	workerStats := make([]WorkerHealth, len(p.workers))
	activeWorkers := 0
	for i, w := range p.workers {
		stats := w.Health()
		workerStats[i] = stats
		if stats.Status == WorkerStatusWorking {
			activeWorkers++
		}
	}

	p.orphans.mu.Lock()
	lastScan := p.orphans.lastScan
	detected := p.orphans.detected
	p.orphans.mu.Unlock()

	return &PoolHealth{
		IsHealthy:       len(p.workers) > 0,
		NodeID:          p.nodeID,
		ActiveWorkers:   activeWorkers,
		TotalWorkers:    len(p.workers),
		ActiveRuns:      activeRuns,
		QueueDepth:      depth,
		WorkerStats:     workerStats,
		LastOrphanScan:  lastScan,
		OrphansDetected: detected,
	}, nil
}

// claimNext lists active runs and reserves the first one nobody in this
// process currently has claimed. The reservation is a no-op cancel func,
// the worker that actually drives the run overwrites it with the real one
// via registerRun.
func (p *Pool) claimNext(ctx context.Context) (*models.Run, bool) {
	runs, err := p.store.ListActiveRuns(ctx)
	if err != nil {
		slog.Error("queue: failed to list active runs while polling", "error", err)
		return nil, false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, run := range runs {
		if _, taken := p.active[run.ID]; taken {
			continue
		}
		p.active[run.ID] = func() {}
		cp := run
		return &cp, true
	}
	return nil, false
}

func (p *Pool) registerRun(runID string, cancel context.CancelFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active[runID] = cancel
}

func (p *Pool) release(runID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.active, runID)
}

func (p *Pool) isClaimed(runID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.active[runID]
	return ok
}
