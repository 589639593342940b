package canonicalstore

import (
	"context"
	"errors"

	"github.com/arborcode/profilescope/pkg/models"
)

// ErrNotFound is returned (wrapped) by GetRun when no row matches the given
// ID, so callers can distinguish "does not exist" from other failures
// without depending on a specific driver's sentinel error.
var ErrNotFound = errors.New("not found")

// Store is the authoritative persistence boundary (C2). Every write here
// must succeed before a run is allowed to progress; callers treat Store
// errors as fatal, unlike the best-effort vector store.
type Store interface {
	CreateRun(ctx context.Context, run *models.Run) error
	GetRun(ctx context.Context, id string) (*models.Run, error)
	UpdateRunStatus(ctx context.Context, id string, status models.RunStatus, errMsg string) error
	UpdateRunCounts(ctx context.Context, id string, evidenceCount, claimsCount int) error

	// ListActiveRuns returns every run not in a terminal status (completed
	// or error), oldest first. Used by the worker pool to find work and by
	// its orphan sweep to find runs nobody is currently driving.
	ListActiveRuns(ctx context.Context) ([]models.Run, error)

	// CreateEvidence is idempotent on (subject, hash): a duplicate insert is
	// a no-op and returns the existing row's ID rather than an error.
	CreateEvidence(ctx context.Context, ev *models.Evidence) (id string, created bool, err error)
	UpdateEvidenceExtraction(ctx context.Context, id string, extraction *models.Extraction) error
	GetEvidenceBySubject(ctx context.Context, subject string) ([]models.Evidence, error)

	CreateClaim(ctx context.Context, claim *models.Claim) error
	GetClaimsBySubject(ctx context.Context, subject string) ([]models.Claim, error)

	Health(ctx context.Context) (*HealthStatus, error)
}
