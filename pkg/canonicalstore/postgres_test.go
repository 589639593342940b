package canonicalstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arborcode/profilescope/pkg/canonicalstore"
	"github.com/arborcode/profilescope/pkg/models"
	"github.com/arborcode/profilescope/test/dbtest"
)

func newRun(id, subject string) *models.Run {
	return &models.Run{
		ID:        id,
		Subject:   subject,
		InputKind: models.InputKindDirectURL,
		Status:    models.StatusIntake,
		Budget:    10,
	}
}

func TestCreateAndGetRun(t *testing.T) {
	client := dbtest.NewTestClient(t)
	ctx := context.Background()

	run := newRun("run-1", "jane-doe")
	require.NoError(t, client.CreateRun(ctx, run))

	got, err := client.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "jane-doe", got.Subject)
	assert.Equal(t, models.StatusIntake, got.Status)
	assert.Equal(t, 10, got.Budget)
}

func TestUpdateRunStatus(t *testing.T) {
	client := dbtest.NewTestClient(t)
	ctx := context.Background()

	run := newRun("run-2", "jane-doe")
	require.NoError(t, client.CreateRun(ctx, run))

	require.NoError(t, client.UpdateRunStatus(ctx, "run-2", models.StatusDiscover, ""))
	got, err := client.GetRun(ctx, "run-2")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDiscover, got.Status)

	require.NoError(t, client.UpdateRunStatus(ctx, "run-2", models.StatusError, "scraper unavailable"))
	got, err = client.GetRun(ctx, "run-2")
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, got.Status)
	assert.Equal(t, "scraper unavailable", got.ErrorMessage)
}

func TestUpdateRunStatus_UnknownRun(t *testing.T) {
	client := dbtest.NewTestClient(t)
	err := client.UpdateRunStatus(context.Background(), "does-not-exist", models.StatusDiscover, "")
	assert.Error(t, err)
}

func TestCreateEvidence_DeduplicatesOnSubjectAndHash(t *testing.T) {
	client := dbtest.NewTestClient(t)
	ctx := context.Background()

	content := `{"name":"Jane Doe"}`
	ev := &models.Evidence{
		ID:          "ev-1",
		Subject:     "jane-doe",
		Source:      "https://linkedin.com/in/janedoe",
		CollectedAt: time.Now().UTC(),
		Content:     content,
		ContentKind: models.ContentKindJSON,
		Hash:        models.HashContent(content),
	}

	id1, created1, err := client.CreateEvidence(ctx, ev)
	require.NoError(t, err)
	assert.True(t, created1)
	assert.Equal(t, "ev-1", id1)

	dup := *ev
	dup.ID = "ev-2"
	id2, created2, err := client.CreateEvidence(ctx, &dup)
	require.NoError(t, err)
	assert.False(t, created2)
	assert.Equal(t, "ev-1", id2, "duplicate (subject, hash) must resolve to the original row")

	all, err := client.GetEvidenceBySubject(ctx, "jane-doe")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUpdateEvidenceExtraction(t *testing.T) {
	client := dbtest.NewTestClient(t)
	ctx := context.Background()

	content := `{"name":"Jane Doe"}`
	ev := &models.Evidence{
		ID:          "ev-3",
		Subject:     "jane-doe",
		Source:      "https://linkedin.com/in/janedoe",
		CollectedAt: time.Now().UTC(),
		Content:     content,
		ContentKind: models.ContentKindJSON,
		Hash:        models.HashContent(content),
	}
	_, _, err := client.CreateEvidence(ctx, ev)
	require.NoError(t, err)

	extraction := &models.Extraction{
		Entities: []string{"Jane Doe"},
		Claims: []models.ExtractionCandidate{
			{Predicate: models.PredicateHasName, Object: "Jane Doe", Confidence: 0.95},
		},
	}
	require.NoError(t, client.UpdateEvidenceExtraction(ctx, "ev-3", extraction))

	all, err := client.GetEvidenceBySubject(ctx, "jane-doe")
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.NotNil(t, all[0].Extraction)
	assert.Equal(t, []string{"Jane Doe"}, all[0].Extraction.Entities)
	assert.Equal(t, models.PredicateHasName, all[0].Extraction.Claims[0].Predicate)
}

func TestGetEvidenceBySubject_OrdersByCollectedAtDescending(t *testing.T) {
	client := dbtest.NewTestClient(t)
	ctx := context.Background()

	base := time.Now().UTC()
	oldest := &models.Evidence{
		ID:          "ev-old",
		Subject:     "jane-doe-ordering",
		Source:      "https://linkedin.com/in/janedoe/old",
		CollectedAt: base.Add(-2 * time.Hour),
		Content:     `{"v":"old"}`,
		ContentKind: models.ContentKindJSON,
		Hash:        models.HashContent(`{"v":"old"}`),
	}
	newest := &models.Evidence{
		ID:          "ev-new",
		Subject:     "jane-doe-ordering",
		Source:      "https://linkedin.com/in/janedoe/new",
		CollectedAt: base,
		Content:     `{"v":"new"}`,
		ContentKind: models.ContentKindJSON,
		Hash:        models.HashContent(`{"v":"new"}`),
	}
	middle := &models.Evidence{
		ID:          "ev-mid",
		Subject:     "jane-doe-ordering",
		Source:      "https://linkedin.com/in/janedoe/mid",
		CollectedAt: base.Add(-1 * time.Hour),
		Content:     `{"v":"mid"}`,
		ContentKind: models.ContentKindJSON,
		Hash:        models.HashContent(`{"v":"mid"}`),
	}

	// Insert out of chronological order to ensure the result reflects
	// ORDER BY, not insertion order.
	_, _, err := client.CreateEvidence(ctx, oldest)
	require.NoError(t, err)
	_, _, err = client.CreateEvidence(ctx, newest)
	require.NoError(t, err)
	_, _, err = client.CreateEvidence(ctx, middle)
	require.NoError(t, err)

	all, err := client.GetEvidenceBySubject(ctx, "jane-doe-ordering")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "ev-new", all[0].ID)
	assert.Equal(t, "ev-mid", all[1].ID)
	assert.Equal(t, "ev-old", all[2].ID)
}

func TestCreateAndGetClaims(t *testing.T) {
	client := dbtest.NewTestClient(t)
	ctx := context.Background()

	now := time.Now().UTC()
	claim := &models.Claim{
		ID:             "claim-1",
		Subject:        "jane-doe",
		Predicate:      models.PredicateWorksAt,
		Object:         "Acme Corp",
		Confidence:     0.8,
		FirstSeenAt:    now,
		LastVerifiedAt: now,
		Provenance: models.Provenance{
			Source:      "https://linkedin.com/in/janedoe",
			EvidenceID:  "ev-1",
			ExtractedAt: now,
		},
		PolicyTags: []string{"verified:high", "extracted:ai"},
	}
	require.NoError(t, client.CreateClaim(ctx, claim))

	claims, err := client.GetClaimsBySubject(ctx, "jane-doe")
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, "Acme Corp", claims[0].Object)
	assert.ElementsMatch(t, []string{"verified:high", "extracted:ai"}, claims[0].PolicyTags)
	assert.Equal(t, "ev-1", claims[0].Provenance.EvidenceID)
	assert.True(t, claims[0].HasTag("verified:high"))
}

func TestGetClaimsBySubject_OrdersByLastVerifiedAtDescending(t *testing.T) {
	client := dbtest.NewTestClient(t)
	ctx := context.Background()

	now := time.Now().UTC()
	stale := &models.Claim{
		ID:             "claim-stale",
		Subject:        "jane-doe-claims-ordering",
		Predicate:      models.PredicateWorksAt,
		Object:         "Old Corp",
		Confidence:     0.6,
		FirstSeenAt:    now.Add(-48 * time.Hour),
		LastVerifiedAt: now.Add(-24 * time.Hour),
		Provenance: models.Provenance{
			Source:      "https://linkedin.com/in/janedoe",
			EvidenceID:  "ev-1",
			ExtractedAt: now,
		},
	}
	fresh := &models.Claim{
		ID:             "claim-fresh",
		Subject:        "jane-doe-claims-ordering",
		Predicate:      models.PredicateWorksAt,
		Object:         "New Corp",
		Confidence:     0.9,
		FirstSeenAt:    now.Add(-1 * time.Hour),
		LastVerifiedAt: now,
		Provenance: models.Provenance{
			Source:      "https://linkedin.com/in/janedoe",
			EvidenceID:  "ev-2",
			ExtractedAt: now,
		},
	}

	// Insert the stale claim first, and give it the earlier FirstSeenAt, so
	// an ordering by insertion order or by first_seen_at would put it first
	// and fail the assertions below; only last_verified_at DESC passes.
	require.NoError(t, client.CreateClaim(ctx, stale))
	require.NoError(t, client.CreateClaim(ctx, fresh))

	claims, err := client.GetClaimsBySubject(ctx, "jane-doe-claims-ordering")
	require.NoError(t, err)
	require.Len(t, claims, 2)
	assert.Equal(t, "claim-fresh", claims[0].ID)
	assert.Equal(t, "claim-stale", claims[1].ID)
}

func TestHealth(t *testing.T) {
	client := dbtest.NewTestClient(t)
	status, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", status.Status)
}

var _ canonicalstore.Store = (*canonicalstore.Client)(nil)
