package scaffold

import (
	"context"
	"testing"

	"github.com/bradleyjkemp/cupaloy"
	"github.com/stretchr/testify/require"

	"github.com/thedatagata/control-plane/internal/catalog"
	"github.com/thedatagata/control-plane/internal/errkind"
	"github.com/thedatagata/control-plane/internal/registry"
	"github.com/thedatagata/control-plane/internal/sqlgen"
	"github.com/thedatagata/control-plane/internal/warehouse"
)

func openTestWarehouse(t *testing.T) warehouse.Client {
	t.Helper()
	c, err := warehouse.Open(context.Background(), "sqlite3", "file::memory:?cache=shared", sqlgen.SQLiteDialect())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestScaffoldRecognizedSchema(t *testing.T) {
	ctx := context.Background()
	wc := openTestWarehouse(t)

	reg, err := registry.New(wc)
	require.NoError(t, err)
	require.NoError(t, reg.Initialize(ctx, catalog.New()))

	_, err = wc.Execute(ctx, `CREATE TABLE "acme_shopify_orders" (
		"id" BIGINT, "order_number" BIGINT, "created_at" TIMESTAMP, "total_price" STRING,
		"currency" STRING, "financial_status" STRING, "email" STRING, "customer_id" BIGINT,
		"line_items" JSON, "_dlt_id" STRING, "_dlt_load_id" STRING
	);`)
	require.NoError(t, err)

	sc := New(wc, reg, nil)
	result, err := sc.Scaffold(ctx, "acme", "shopify", "orders")
	require.NoError(t, err)
	require.Equal(t, "shopify_v1_orders", result.MasterModelID)
	require.Equal(t, "shim_acme__shopify_orders", result.SourceShimName)
	require.Equal(t, "stg_acme__shopify_orders", result.StagingViewName)

	rows, err := wc.Query(ctx, `SELECT * FROM "stg_acme__shopify_orders";`)
	require.NoError(t, err)
	require.Len(t, rows, 0)

	tables, err := listTableNames(ctx, wc, "shopify_v1_orders")
	require.NoError(t, err)
	require.True(t, tables)
}

func listTableNames(ctx context.Context, wc warehouse.Client, name string) (bool, error) {
	rows, err := wc.Query(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name = ?;`, name)
	if err != nil {
		return false, err
	}
	return len(rows) == 1, nil
}

func TestScaffoldUnknownSchemaReturnsClosestMatch(t *testing.T) {
	ctx := context.Background()
	wc := openTestWarehouse(t)

	reg, err := registry.New(wc)
	require.NoError(t, err)
	require.NoError(t, reg.Initialize(ctx, catalog.New()))

	// Almost-shopify-orders: missing customer_id and line_items, extra "notes" column.
	_, err = wc.Execute(ctx, `CREATE TABLE "acme_shopify_orders" (
		"id" BIGINT, "order_number" BIGINT, "created_at" TIMESTAMP, "total_price" STRING,
		"currency" STRING, "financial_status" STRING, "email" STRING, "notes" STRING,
		"_dlt_id" STRING, "_dlt_load_id" STRING
	);`)
	require.NoError(t, err)

	sc := New(wc, reg, nil)
	_, err = sc.Scaffold(ctx, "acme", "shopify", "orders")
	require.Error(t, err)

	var unknown *errkind.UnknownSchemaError
	require.ErrorAs(t, err, &unknown)
	require.Equal(t, "shopify_v1_orders", unknown.ClosestMatch)
	require.NotEmpty(t, unknown.ClosestDiff)
}

type memoryArtifactSink struct {
	written map[string][]byte
}

func newMemoryArtifactSink() *memoryArtifactSink {
	return &memoryArtifactSink{written: make(map[string][]byte)}
}

func (m *memoryArtifactSink) Put(_ context.Context, path string, contents []byte) error {
	m.written[path] = contents
	return nil
}

func TestScaffoldPersistsArtifactsWhenSinkProvided(t *testing.T) {
	ctx := context.Background()
	wc := openTestWarehouse(t)

	reg, err := registry.New(wc)
	require.NoError(t, err)
	require.NoError(t, reg.Initialize(ctx, catalog.New()))

	_, err = wc.Execute(ctx, `CREATE TABLE "acme_shopify_orders" (
		"id" BIGINT, "order_number" BIGINT, "created_at" TIMESTAMP, "total_price" STRING,
		"currency" STRING, "financial_status" STRING, "email" STRING, "customer_id" BIGINT,
		"line_items" JSON, "_dlt_id" STRING, "_dlt_load_id" STRING
	);`)
	require.NoError(t, err)

	sink := newMemoryArtifactSink()
	sc := New(wc, reg, sink)
	_, err = sc.Scaffold(ctx, "acme", "shopify", "orders")
	require.NoError(t, err)

	require.Contains(t, sink.written, "acme/shim_acme__shopify_orders.sql")
	require.Contains(t, sink.written, "acme/stg_acme__shopify_orders.sql")
}

// TestScaffoldGeneratedSQLIsStable snapshots the shim and staging-view
// statements the Scaffolder emits for a fixed landed schema. A diff here
// means the generated SQL changed shape, not just that a test assertion did.
func TestScaffoldGeneratedSQLIsStable(t *testing.T) {
	ctx := context.Background()
	wc := openTestWarehouse(t)

	reg, err := registry.New(wc)
	require.NoError(t, err)
	require.NoError(t, reg.Initialize(ctx, catalog.New()))

	_, err = wc.Execute(ctx, `CREATE TABLE "acme_shopify_orders" (
		"id" BIGINT, "order_number" BIGINT, "created_at" TIMESTAMP, "total_price" STRING,
		"currency" STRING, "financial_status" STRING, "email" STRING, "customer_id" BIGINT,
		"line_items" JSON, "_dlt_id" STRING, "_dlt_load_id" STRING
	);`)
	require.NoError(t, err)

	sink := newMemoryArtifactSink()
	sc := New(wc, reg, sink)
	_, err = sc.Scaffold(ctx, "acme", "shopify", "orders")
	require.NoError(t, err)

	cupaloy.SnapshotT(t, string(sink.written["acme/shim_acme__shopify_orders.sql"]))
	cupaloy.SnapshotT(t, string(sink.written["acme/stg_acme__shopify_orders.sql"]))
}
