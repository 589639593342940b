package orchestrator_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arborcode/profilescope/pkg/canonicalstore"
	"github.com/arborcode/profilescope/pkg/extractor"
	"github.com/arborcode/profilescope/pkg/harvester"
	"github.com/arborcode/profilescope/pkg/models"
	"github.com/arborcode/profilescope/pkg/orchestrator"
	"github.com/arborcode/profilescope/pkg/scraper"
	"github.com/arborcode/profilescope/pkg/synthesizer"
	"github.com/arborcode/profilescope/pkg/verifier"
)

// memStore is an in-memory fake of canonicalstore.Store for orchestrator
// tests, grounded on the same dedup/idempotency contract as the Postgres
// implementation.
type memStore struct {
	mu       sync.Mutex
	runs     map[string]*models.Run
	evidence map[string][]models.Evidence // keyed by subject
	claims   map[string][]models.Claim    // keyed by subject
}

func newMemStore() *memStore {
	return &memStore{
		runs:     map[string]*models.Run{},
		evidence: map[string][]models.Evidence{},
		claims:   map[string][]models.Claim{},
	}
}

func (m *memStore) CreateRun(_ context.Context, run *models.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

func (m *memStore) GetRun(_ context.Context, id string) (*models.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", id, canonicalstore.ErrNotFound)
	}
	cp := *run
	return &cp, nil
}

func (m *memStore) UpdateRunStatus(_ context.Context, id string, status models.RunStatus, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return fmt.Errorf("run %s not found", id)
	}
	run.Status = status
	run.ErrorMessage = errMsg
	return nil
}

func (m *memStore) UpdateRunCounts(_ context.Context, id string, evidenceCount, claimsCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return fmt.Errorf("run %s not found", id)
	}
	run.EvidenceCount = evidenceCount
	run.ClaimsCount = claimsCount
	return nil
}

func (m *memStore) CreateEvidence(_ context.Context, ev *models.Evidence) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.evidence[ev.Subject] {
		if existing.Hash == ev.Hash {
			return existing.ID, false, nil
		}
	}
	m.evidence[ev.Subject] = append(m.evidence[ev.Subject], *ev)
	return ev.ID, true, nil
}

func (m *memStore) UpdateEvidenceExtraction(_ context.Context, id string, extraction *models.Extraction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for subject, list := range m.evidence {
		for i := range list {
			if list[i].ID == id {
				list[i].Extraction = extraction
				m.evidence[subject] = list
				return nil
			}
		}
	}
	return fmt.Errorf("evidence %s not found", id)
}

func (m *memStore) GetEvidenceBySubject(_ context.Context, subject string) ([]models.Evidence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Evidence, len(m.evidence[subject]))
	copy(out, m.evidence[subject])
	return out, nil
}

func (m *memStore) CreateClaim(_ context.Context, claim *models.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claims[claim.Subject] = append(m.claims[claim.Subject], *claim)
	return nil
}

func (m *memStore) GetClaimsBySubject(_ context.Context, subject string) ([]models.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Claim, len(m.claims[subject]))
	copy(out, m.claims[subject])
	return out, nil
}

func (m *memStore) ListActiveRuns(_ context.Context) ([]models.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Run
	for _, run := range m.runs {
		if run.Status != models.StatusCompleted && run.Status != models.StatusError {
			out = append(out, *run)
		}
	}
	return out, nil
}

func (m *memStore) Health(_ context.Context) (*canonicalstore.HealthStatus, error) {
	return &canonicalstore.HealthStatus{Status: "ok"}, nil
}

var _ canonicalstore.Store = (*memStore)(nil)

// fakeScraper returns a single profile for any ScrapeProfile call.
type fakeScraper struct{}

func (fakeScraper) ScrapeProfile(_ context.Context, url string) (*scraper.Record, error) {
	return &scraper.Record{Raw: map[string]any{
		"linkedin_id":          "jdoe",
		"name":                 "Jane Doe",
		"current_company_name": "Acme Corp",
		"position":             "Senior Engineer",
		"city":                 "San Francisco",
		"country_code":         "US",
		"about":                "I build reliable systems.",
		"followers":            12000,
		"connections":          800,
		"url":                  url,
	}}, nil
}

func (fakeScraper) ScrapeCompany(_ context.Context, _ string) (*scraper.Record, error) {
	return &scraper.Record{Raw: map[string]any{"name": "Acme Corp"}}, nil
}

func (fakeScraper) SearchProfiles(_ context.Context, _, _ string) (*scraper.Record, error) {
	return &scraper.Record{Raw: []any{}}, nil
}

func (fakeScraper) WebSearch(_ context.Context, _ string) (*scraper.Record, error) {
	return &scraper.Record{Raw: map[string]any{}}, nil
}

func newTestOrchestrator(store canonicalstore.Store) *orchestrator.Orchestrator {
	h := harvester.New(fakeScraper{})
	e := extractor.New(nil)
	v := verifier.New(nil)
	s := synthesizer.New(nil)
	return orchestrator.New(store, nil, nil, h, e, v, s)
}

func TestDrive_FullRun_DirectProfileURL_CompletesWithClaimsAndReport(t *testing.T) {
	store := newMemStore()
	o := newTestOrchestrator(store)

	run := &models.Run{
		ID:        "run-1",
		Subject:   "https://www.linkedin.com/in/janedoe",
		InputKind: models.InputKindDirectURL,
		Status:    models.StatusIntake,
		Budget:    5,
	}
	require.NoError(t, store.CreateRun(context.Background(), run))
	o.SetConsent(run.ID, models.DefaultConsentFlags())

	err := o.Drive(context.Background(), run.ID)
	require.NoError(t, err)

	final, err := store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, final.Status)
	assert.Greater(t, final.EvidenceCount, 0)
	assert.Greater(t, final.ClaimsCount, 0)

	report, err := o.GetReport(context.Background(), run.ID)
	require.NoError(t, err)
	require.NotNil(t, report.LinkedInProfileAnalysis)
	assert.Contains(t, report.Summary, "Jane Doe")
}

func TestDrive_SearchQuery_RequiresTwoTokens_EndsInError(t *testing.T) {
	store := newMemStore()
	o := newTestOrchestrator(store)

	run := &models.Run{
		ID:        "run-2",
		Subject:   "janedoe", // single token: harvester policy rejects this
		InputKind: models.InputKindSearchQuery,
		Status:    models.StatusIntake,
		Budget:    5,
	}
	require.NoError(t, store.CreateRun(context.Background(), run))

	err := o.Drive(context.Background(), run.ID)
	require.Error(t, err)

	final, getErr := store.GetRun(context.Background(), run.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.StatusError, final.Status)
	assert.NotEmpty(t, final.ErrorMessage)
}

func TestDrive_ResumesFromMidPipelineStatus(t *testing.T) {
	store := newMemStore()
	o := newTestOrchestrator(store)

	run := &models.Run{
		ID:        "run-3",
		Subject:   "https://www.linkedin.com/in/janedoe",
		InputKind: models.InputKindDirectURL,
		Status:    models.StatusExtract, // simulate a process restart mid-pipeline
		Budget:    5,
	}
	require.NoError(t, store.CreateRun(context.Background(), run))
	// Evidence from a (simulated) prior fetch stage is already persisted.
	ev := models.Evidence{
		ID: "ev-1", Subject: run.Subject, Source: run.Subject,
		Content: `{"name":"Jane Doe","current_company_name":"Acme Corp","followers":12000,"connections":800}`,
		ContentKind: models.ContentKindJSON,
	}
	ev.Hash = models.HashContent(ev.Content)
	_, _, err := store.CreateEvidence(context.Background(), &ev)
	require.NoError(t, err)

	err = o.Drive(context.Background(), run.ID)
	require.NoError(t, err)

	final, err := store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, final.Status)
	assert.Greater(t, final.ClaimsCount, 0)
}

func TestDrive_AlreadyCompleted_IsANoOp(t *testing.T) {
	store := newMemStore()
	o := newTestOrchestrator(store)

	run := &models.Run{ID: "run-4", Subject: "x", Status: models.StatusCompleted, Budget: 1}
	require.NoError(t, store.CreateRun(context.Background(), run))

	require.NoError(t, o.Drive(context.Background(), run.ID))
}
