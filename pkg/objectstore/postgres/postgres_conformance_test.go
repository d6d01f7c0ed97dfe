//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/marmos91/ostreesync/pkg/objectstore"
	"github.com/marmos91/ostreesync/pkg/objectstore/postgres"
	"github.com/marmos91/ostreesync/pkg/objectstore/storetest"
)

// TestConformance starts a disposable postgres:16-alpine container with
// testcontainers-go and runs the same conformance suite every other
// backend runs, following a PostgresHelper-style
// wait-strategy (wait for "ready to accept connections" twice: bootstrap,
// then full readiness).
func TestConformance(t *testing.T) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("ostreesync_test"),
		tcpostgres.WithUsername("ostreesync_test"),
		tcpostgres.WithPassword("ostreesync_test"),
		testcontainers.WithWaitStrategyAndDeadline(5*time.Minute,
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	storetest.RunConformanceSuite(t, func(t *testing.T) objectstore.ObjectStore {
		t.Helper()
		store, err := postgres.Open(ctx, postgres.Config{
			Host:     host,
			Port:     port.Int(),
			Database: "ostreesync_test",
			User:     "ostreesync_test",
			Password: "ostreesync_test",
			SSLMode:  "disable",
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		require.NoError(t, store.Truncate(ctx))
		return store
	})
}
