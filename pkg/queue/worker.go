package queue

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

// worker polls its pool for unclaimed active runs and drives them one at a
// time to completion or error.
type worker struct {
	id   string
	pool *Pool

	mu            sync.RWMutex
	status        WorkerStatus
	currentRunID  string
	runsProcessed int
	lastActivity  time.Time
}

func newWorker(id string, pool *Pool) *worker {
	return &worker{
		id:           id,
		pool:         pool,
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Health returns a snapshot of this worker's health.
func (w *worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:            w.id,
		Status:        w.status,
		CurrentRunID:  w.currentRunID,
		RunsProcessed: w.runsProcessed,
		LastActivity:  w.lastActivity,
	}
}

// run is the worker's main poll loop.
func (w *worker) run(ctx context.Context) {
	defer w.pool.wg.Done()

	log := slog.With("worker_id", w.id)
	log.Info("queue: worker started")

	for {
		select {
		case <-w.pool.stopCh:
			log.Info("queue: worker shutting down")
			return
		case <-ctx.Done():
			log.Info("queue: context cancelled, worker shutting down")
			return
		default:
		}

		run, ok := w.pool.claimNext(ctx)
		if !ok {
			w.sleep(w.pollInterval())
			continue
		}
		w.process(ctx, run.ID)
	}
}

// process drives a single run to its terminal status, recovering from a
// panic in the driver so one bad run cannot take the whole worker down.
func (w *worker) process(ctx context.Context, runID string) {
	log := slog.With("worker_id", w.id, "run_id", runID)

	runCtx, cancel := context.WithTimeout(ctx, w.pool.cfg.RunTimeout)
	defer cancel()
	w.pool.registerRun(runID, cancel)
	defer w.pool.release(runID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("queue: worker recovered from panic while driving run", "panic", r)
		}
	}()

	w.setStatus(WorkerStatusWorking, runID)
	defer w.setStatus(WorkerStatusIdle, "")

	log.Info("queue: run claimed")
	if err := w.pool.driver.Drive(runCtx, runID); err != nil {
		log.Warn("queue: run ended with error", "error", err)
	} else {
		log.Info("queue: run completed")
	}

	w.mu.Lock()
	w.runsProcessed++
	w.lastActivity = time.Now()
	w.mu.Unlock()
}

func (w *worker) setStatus(status WorkerStatus, runID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentRunID = runID
	w.lastActivity = time.Now()
}

// sleep waits for the given duration or until the pool signals stop.
func (w *worker) sleep(d time.Duration) {
	select {
	case <-w.pool.stopCh:
	case <-time.After(d):
	}
}

// pollInterval returns PollInterval jittered by ±PollIntervalJitter so
// simultaneously idle workers do not all wake on the same tick.
func (w *worker) pollInterval() time.Duration {
	if w.pool.cfg.PollIntervalJitter <= 0 {
		return w.pool.cfg.PollInterval
	}
	spread := int64(w.pool.cfg.PollIntervalJitter) * 2
	jitter := time.Duration(rand.Int64N(spread)) - w.pool.cfg.PollIntervalJitter
	d := w.pool.cfg.PollInterval + jitter
	if d < 0 {
		d = 0
	}
	return d
}
