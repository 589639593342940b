package vectorstore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arborcode/profilescope/pkg/vectorstore"
)

func newTestStore(t *testing.T) *vectorstore.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vectors.db")
	store, err := vectorstore.NewStore(path, vectorstore.DeterministicEmbedder{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestDeterministicEmbedder_StableAndNormalized(t *testing.T) {
	ctx := context.Background()
	e := vectorstore.DeterministicEmbedder{}

	v1, err := e.Embed(ctx, "Jane Doe is a software engineer")
	require.NoError(t, err)
	v2, err := e.Embed(ctx, "Jane Doe is a software engineer")
	require.NoError(t, err)

	assert.Equal(t, v1, v2, "embedding the same text twice must be stable")
	assert.Len(t, v1, vectorstore.Dimensions)

	var sumSquares float64
	for _, x := range v1 {
		sumSquares += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, sumSquares, 0.01, "vector should be unit-normalized")
}

func TestUpsertEvidenceAndQuery(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	vec := store.Embed(ctx, "Jane Doe, software engineer at Acme Corp")
	require.NoError(t, store.UpsertEvidence(ctx, "ev-1", "jane-doe", "https://linkedin.com/in/janedoe", "json", vec))

	matches, err := store.Query(ctx, vec, vectorstore.Filter{Kind: "evidence", Subject: "jane-doe"}, 5)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, "evidence_ev-1", matches[0].ID)
	assert.InDelta(t, 1.0, matches[0].Score, 0.05, "querying with the exact stored vector should score near 1")
}

func TestUpsertClaimAndQuery_FilterBySubjectExcludesOthers(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	vecA := store.Embed(ctx, "works_at Acme Corp")
	vecB := store.Embed(ctx, "works_at Globex Inc")
	require.NoError(t, store.UpsertClaim(ctx, "claim-a", "jane-doe", "works_at", "Acme Corp", vecA))
	require.NoError(t, store.UpsertClaim(ctx, "claim-b", "john-smith", "works_at", "Globex Inc", vecB))

	matches, err := store.Query(ctx, vecA, vectorstore.Filter{Kind: "claim", Subject: "jane-doe"}, 5)
	require.NoError(t, err)
	for _, m := range matches {
		assert.Equal(t, "jane-doe", m.Metadata["subject"])
	}
}

func TestUpsert_ReplacesPriorEntryForSameID(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	v1 := store.Embed(ctx, "first version")
	require.NoError(t, store.UpsertEvidence(ctx, "ev-2", "jane-doe", "https://example.com/a", "text", v1))

	v2 := store.Embed(ctx, "second version, completely different text")
	require.NoError(t, store.UpsertEvidence(ctx, "ev-2", "jane-doe", "https://example.com/b", "text", v2))

	matches, err := store.Query(ctx, v2, vectorstore.Filter{Kind: "evidence"}, 10)
	require.NoError(t, err)

	count := 0
	for _, m := range matches {
		if m.ID == "evidence_ev-2" {
			count++
			assert.Equal(t, "https://example.com/b", m.Metadata["source"])
		}
	}
	assert.Equal(t, 1, count, "re-upserting the same id must replace, not duplicate")
}
