package observability

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/thedatagata/control-plane/internal/sqlgen"
	"github.com/thedatagata/control-plane/internal/warehouse"
)

func openMemory(t *testing.T) warehouse.Client {
	t.Helper()
	c, err := warehouse.Open(context.Background(), "sqlite3", "file::memory:?cache=shared", sqlgen.SQLiteDialect())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRecordRunWritesArtifactsAndRunResult(t *testing.T) {
	ctx := context.Background()
	wc := openMemory(t)
	c := New(wc, prometheus.NewRegistry())
	require.NoError(t, c.EnsureTables(ctx))

	started := time.Now().Add(-time.Second)
	artifacts := []ModelArtifact{
		{
			InvocationID: "inv-1", TenantSlug: "acme", NodeID: "n1", Name: "master_sink",
			Materialization: "table", Status: "success", RowsAffected: 3,
			StartedAt: started, CompletedAt: started.Add(time.Second),
			Tags: []string{"master"}, Dependencies: nil,
		},
	}
	require.NoError(t, c.RecordRun(ctx, "inv-1", "acme", "success", artifacts))

	rows, err := wc.Query(ctx, `SELECT * FROM "model_artifacts";`)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	runRows, err := wc.Query(ctx, `SELECT * FROM "run_results";`)
	require.NoError(t, err)
	require.Len(t, runRows, 1)
}

func TestRecordRunTruncatesPriorInvocationRows(t *testing.T) {
	ctx := context.Background()
	wc := openMemory(t)
	c := New(wc, prometheus.NewRegistry())
	require.NoError(t, c.EnsureTables(ctx))

	artifact := ModelArtifact{
		InvocationID: "inv-1", TenantSlug: "acme", NodeID: "n1", Name: "master_sink",
		Materialization: "table", Status: "success", StartedAt: time.Now(), CompletedAt: time.Now(),
	}
	require.NoError(t, c.RecordRun(ctx, "inv-1", "acme", "success", []ModelArtifact{artifact}))
	require.NoError(t, c.RecordRun(ctx, "inv-1", "acme", "success", []ModelArtifact{artifact, artifact}))

	rows, err := wc.Query(ctx, `SELECT * FROM "model_artifacts" WHERE "invocation_id" = 'inv-1';`)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}
