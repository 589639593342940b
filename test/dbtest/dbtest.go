// Package dbtest provisions a PostgreSQL canonical store for tests, using a
// testcontainers-go container in local development or an external service
// container in CI. Grounded on the teacher's test/database.NewTestClient.
package dbtest

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/arborcode/profilescope/pkg/canonicalstore"
)

// NewTestClient returns a *canonicalstore.Client backed by a fresh database
// with migrations already applied, and registers cleanup on t.
func NewTestClient(t *testing.T) *canonicalstore.Client {
	t.Helper()
	ctx := context.Background()

	var connStr string
	if ci := os.Getenv("CI_DATABASE_URL"); ci != "" {
		t.Log("dbtest: using external PostgreSQL from CI_DATABASE_URL")
		connStr = ci
	} else {
		t.Log("dbtest: using testcontainers for PostgreSQL")
		pgContainer, err := tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase("profilescope_test"),
			tcpostgres.WithUsername("test"),
			tcpostgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		require.NoError(t, err)
		t.Cleanup(func() {
			if err := testcontainers.TerminateContainer(pgContainer); err != nil {
				t.Logf("dbtest: failed to terminate container: %v", err)
			}
		})

		var err2 error
		connStr, err2 = pgContainer.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err2)
	}

	db, err := sql.Open("pgx", connStr)
	require.NoError(t, err)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	require.NoError(t, db.PingContext(ctx))

	client := canonicalstore.NewClientFromDB(db)
	require.NoError(t, canonicalstore.MigrateForTest(ctx, db, "profilescope_test"))

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}
