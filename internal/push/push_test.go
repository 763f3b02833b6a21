package push

import (
	"context"
	"testing"

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

func TestRunMergesStagingRowsIntoMasterSinkIdempotently(t *testing.T) {
	ctx := context.Background()
	wc := openMemory(t)
	gen := wc.Generator()

	masterTable := sqlgen.MasterSinkTable(gen, "shopify_v1_orders")
	createStmt, err := gen.CreateTableStatement(masterTable)
	require.NoError(t, err)
	_, err = wc.Execute(ctx, createStmt)
	require.NoError(t, err)

	_, err = wc.Execute(ctx, `CREATE TABLE "stg_acme__shopify_orders" (
		"tenant_slug" TEXT, "tenant_skey" TEXT, "source_platform" TEXT,
		"source_schema_hash" TEXT, "source_schema" TEXT, "raw_data_payload" TEXT, "loaded_at" TEXT
	);`)
	require.NoError(t, err)
	_, err = wc.Execute(ctx,
		`INSERT INTO "stg_acme__shopify_orders" VALUES (?,?,?,?,?,?,CURRENT_TIMESTAMP);`,
		"acme", "acmekey", "shopify", "fp123", "{}", `{"order_number":42}`)
	require.NoError(t, err)

	circuit := New(wc)
	require.NoError(t, circuit.Run(ctx, "shopify_v1_orders", "stg_acme__shopify_orders"))

	rows, err := wc.Query(ctx, `SELECT * FROM "shopify_v1_orders";`)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	// Re-running against the same unchanged staging rows inserts nothing new.
	require.NoError(t, circuit.Run(ctx, "shopify_v1_orders", "stg_acme__shopify_orders"))
	rows, err = wc.Query(ctx, `SELECT * FROM "shopify_v1_orders";`)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
