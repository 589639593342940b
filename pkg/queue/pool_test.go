package queue_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arborcode/profilescope/pkg/canonicalstore"
	"github.com/arborcode/profilescope/pkg/models"
	"github.com/arborcode/profilescope/pkg/queue"
)

// fakeStore is a minimal in-memory canonicalstore.Store for queue tests;
// only the run-related methods are exercised here.
type fakeStore struct {
	mu   sync.Mutex
	runs map[string]*models.Run
}

func newFakeStore() *fakeStore {
	return &fakeStore{runs: map[string]*models.Run{}}
}

func (s *fakeStore) CreateRun(_ context.Context, run *models.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *run
	cp.UpdatedAt = time.Now()
	s.runs[run.ID] = &cp
	return nil
}

func (s *fakeStore) GetRun(_ context.Context, id string) (*models.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", id, canonicalstore.ErrNotFound)
	}
	cp := *run
	return &cp, nil
}

func (s *fakeStore) UpdateRunStatus(_ context.Context, id string, status models.RunStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("run %s not found", id)
	}
	run.Status = status
	run.ErrorMessage = errMsg
	run.UpdatedAt = time.Now()
	return nil
}

func (s *fakeStore) UpdateRunCounts(_ context.Context, id string, evidenceCount, claimsCount int) error {
	return nil
}

func (s *fakeStore) ListActiveRuns(_ context.Context) ([]models.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Run
	for _, run := range s.runs {
		if run.Status != models.StatusCompleted && run.Status != models.StatusError {
			out = append(out, *run)
		}
	}
	return out, nil
}

func (s *fakeStore) CreateEvidence(_ context.Context, ev *models.Evidence) (string, bool, error) {
	return ev.ID, true, nil
}
func (s *fakeStore) UpdateEvidenceExtraction(_ context.Context, id string, extraction *models.Extraction) error {
	return nil
}
func (s *fakeStore) GetEvidenceBySubject(_ context.Context, subject string) ([]models.Evidence, error) {
	return nil, nil
}
func (s *fakeStore) CreateClaim(_ context.Context, claim *models.Claim) error { return nil }
func (s *fakeStore) GetClaimsBySubject(_ context.Context, subject string) ([]models.Claim, error) {
	return nil, nil
}
func (s *fakeStore) Health(_ context.Context) (*canonicalstore.HealthStatus, error) {
	return &canonicalstore.HealthStatus{Status: "ok"}, nil
}

var _ canonicalstore.Store = (*fakeStore)(nil)

// fakeDriver marks any run it is asked to Drive as completed, after a short
// delay so tests can observe it mid-flight.
type fakeDriver struct {
	store *fakeStore
	delay time.Duration

	mu      sync.Mutex
	consent map[string]models.ConsentFlags
}

func newFakeDriver(store *fakeStore, delay time.Duration) *fakeDriver {
	return &fakeDriver{store: store, delay: delay, consent: map[string]models.ConsentFlags{}}
}

func (d *fakeDriver) Drive(ctx context.Context, runID string) error {
	select {
	case <-time.After(d.delay):
	case <-ctx.Done():
		return ctx.Err()
	}
	return d.store.UpdateRunStatus(ctx, runID, models.StatusCompleted, "")
}

func (d *fakeDriver) SetConsent(runID string, consent models.ConsentFlags) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.consent[runID] = consent
}

func TestPool_StartRun_IsPickedUpAndCompletes(t *testing.T) {
	store := newFakeStore()
	driver := newFakeDriver(store, 20*time.Millisecond)
	cfg := queue.DefaultConfig()
	cfg.WorkerCount = 2
	cfg.PollInterval = 10 * time.Millisecond
	cfg.PollIntervalJitter = 0
	pool := queue.NewPool(store, driver, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, pool.Start(ctx))
	defer pool.Stop()

	runID, err := pool.StartRun(context.Background(), "https://www.linkedin.com/in/janedoe",
		models.InputKindDirectURL, 5, models.DefaultConsentFlags())
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	assert.Eventually(t, func() bool {
		run, err := store.GetRun(context.Background(), runID)
		return err == nil && run.Status == models.StatusCompleted
	}, time.Second, 5*time.Millisecond)
}

func TestPool_StartRun_OverridesInputKindHintByURLPattern(t *testing.T) {
	store := newFakeStore()
	driver := newFakeDriver(store, 20*time.Millisecond)
	pool := queue.NewPool(store, driver, queue.DefaultConfig())

	// A direct profile URL passed with a mismatched "search-query" hint must
	// be persisted as direct-url: the URL pattern wins over the hint.
	runID, err := pool.StartRun(context.Background(), "https://www.linkedin.com/in/janedoe",
		models.InputKindSearchQuery, 5, models.DefaultConsentFlags())
	require.NoError(t, err)

	run, err := store.GetRun(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, models.InputKindDirectURL, run.InputKind)

	// A plain name passed with a mismatched "direct-url" hint must be
	// persisted as search-query.
	runID2, err := pool.StartRun(context.Background(), "Jane Doe",
		models.InputKindDirectURL, 5, models.DefaultConsentFlags())
	require.NoError(t, err)

	run2, err := store.GetRun(context.Background(), runID2)
	require.NoError(t, err)
	assert.Equal(t, models.InputKindSearchQuery, run2.InputKind)
}

func TestPool_CancelRun_CancelsAnInFlightRun(t *testing.T) {
	store := newFakeStore()
	driver := newFakeDriver(store, time.Second) // long enough to cancel mid-flight
	cfg := queue.DefaultConfig()
	cfg.WorkerCount = 1
	cfg.PollInterval = 5 * time.Millisecond
	cfg.PollIntervalJitter = 0
	pool := queue.NewPool(store, driver, cfg)

	ctx := context.Background()
	require.NoError(t, pool.Start(ctx))
	defer pool.Stop()

	runID, err := pool.StartRun(ctx, "https://www.linkedin.com/in/janedoe",
		models.InputKindDirectURL, 5, models.DefaultConsentFlags())
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		health, err := pool.Health(ctx)
		return err == nil && health.ActiveRuns == 1
	}, time.Second, 5*time.Millisecond)

	assert.True(t, pool.CancelRun(runID))
}

func TestPool_Health_ReportsWorkerCount(t *testing.T) {
	store := newFakeStore()
	driver := newFakeDriver(store, time.Millisecond)
	cfg := queue.DefaultConfig()
	cfg.WorkerCount = 4
	pool := queue.NewPool(store, driver, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, pool.Start(ctx))
	defer pool.Stop()

	health, err := pool.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, health.TotalWorkers)
	assert.True(t, health.IsHealthy)
}
