package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	mvccpb "go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/thedatagata/control-plane/internal/catalog"
	"github.com/thedatagata/control-plane/internal/fingerprint"
	"github.com/thedatagata/control-plane/internal/observability"
	"github.com/thedatagata/control-plane/internal/registry"
	"github.com/thedatagata/control-plane/internal/scaffold"
	"github.com/thedatagata/control-plane/internal/sqlgen"
	"github.com/thedatagata/control-plane/internal/tenants"
	"github.com/thedatagata/control-plane/internal/warehouse"
)

// fakeKV is a minimal in-memory stand-in for clientv3.KV. It does exact-key
// lookups only; prefix scans (as used for config history) return nothing.
type fakeKV struct {
	mu   sync.Mutex
	data map[string]*mvccpb.KeyValue
	rev  int64
}

func newFakeKV() *fakeKV { return &fakeKV{data: make(map[string]*mvccpb.KeyValue)} }

func (f *fakeKV) Get(_ context.Context, key string, _ ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return &clientv3.GetResponse{}, nil
	}
	return &clientv3.GetResponse{Kvs: []*mvccpb.KeyValue{v}, Count: 1}, nil
}

func (f *fakeKV) Put(_ context.Context, key, val string, _ ...clientv3.OpOption) (*clientv3.PutResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rev++
	f.data[key] = &mvccpb.KeyValue{Key: []byte(key), Value: []byte(val), ModRevision: f.rev}
	return &clientv3.PutResponse{}, nil
}

func openMemory(t *testing.T) warehouse.Client {
	t.Helper()
	c, err := warehouse.Open(context.Background(), "sqlite3", "file::memory:?cache=shared", sqlgen.SQLiteDialect())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// fakeIngestor lands one pre-populated table per call and reports it.
type fakeIngestor struct {
	wc warehouse.Client
}

func (f *fakeIngestor) Ingest(ctx context.Context, tenantSlug, sourcePlatform string, days int) ([]LandedRelation, error) {
	landed := fmt.Sprintf("%s_%s_orders", tenantSlug, sourcePlatform)
	gen := f.wc.Generator()
	createStmt := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s ("_dlt_id" TEXT, "_dlt_load_id" TEXT, "id" INTEGER, "order_number" INTEGER,
		 "created_at" TIMESTAMP, "total_price" TEXT, "currency" TEXT, "financial_status" TEXT, "email" TEXT,
		 "customer_id" INTEGER, "line_items" JSON);`, gen.Quote(landed))
	if _, err := f.wc.Execute(ctx, createStmt); err != nil {
		return nil, err
	}
	insertStmt := fmt.Sprintf(
		`INSERT INTO %s VALUES ('d1','l1',1,1001,'2026-01-01','100.00','USD','paid','a@example.com',5,'[]');`,
		gen.Quote(landed))
	if _, err := f.wc.Execute(ctx, insertStmt); err != nil {
		return nil, err
	}
	return []LandedRelation{{Object: "orders"}}, nil
}

// sinkCountingBuilder turns every scaffold result into a single node whose
// statement is a constant SELECT 1, tagged merge_target with the staging
// view attached so the materialize pass fires the push circuit's post-hook.
type sinkCountingBuilder struct{}

func (sinkCountingBuilder) Build(ctx context.Context, tenantSlug string, scaffolds []scaffold.Result) ([]Node, error) {
	var nodes []Node
	for _, s := range scaffolds {
		nodes = append(nodes, Node{
			ID:              s.MasterModelID,
			Name:            s.MasterModelID,
			Statement:       "SELECT 1;",
			Materialization: MaterializationView,
			Tags:            []string{"merge_target"},
			StagingView:     s.StagingViewName,
		})
	}
	return nodes, nil
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *tenants.Store, warehouse.Client) {
	t.Helper()
	wc := openMemory(t)
	ctx := context.Background()

	reg, err := registry.New(wc)
	require.NoError(t, err)
	cat := catalog.FromEntries([]catalog.ConnectorEntry{
		{Source: "shopify", APIVersion: "v1", Object: "orders", Columns: []catalog.ColumnSpec{
			{Name: "_dlt_id", Type: "string"}, {Name: "_dlt_load_id", Type: "string"},
			{Name: "id", Type: "bigint"}, {Name: "order_number", Type: "bigint"},
			{Name: "created_at", Type: "timestamp"}, {Name: "total_price", Type: "string"},
			{Name: "currency", Type: "string"}, {Name: "financial_status", Type: "string"},
			{Name: "email", Type: "string"}, {Name: "customer_id", Type: "bigint"},
			{Name: "line_items", Type: "json"},
		}},
	})
	require.NoError(t, reg.Initialize(ctx, cat))

	sc := scaffold.New(wc, reg, nil)
	obs := observability.New(wc, prometheus.NewRegistry())
	store := tenants.NewStore(newFakeKV(), "")

	o := New(wc, store, sc, sinkCountingBuilder{}, obs, &fakeIngestor{wc: wc}, 4)
	return o, store, wc
}

func TestOnboardRunsFullPipelineAndActivatesTenant(t *testing.T) {
	ctx := context.Background()
	o, store, wc := newTestOrchestrator(t)

	require.NoError(t, store.Upsert(ctx, tenants.TenantConfig{
		Slug: "acme", BusinessName: "Acme Inc", Status: tenants.StatusOnboarding,
		Sources:     map[string]tenants.SourceConfig{"shopify": {Enabled: true}},
		SourceOrder: []string{"shopify"},
	}))

	run, err := o.Onboard(ctx, "acme", 7, false, nil)
	require.NoError(t, err)
	require.True(t, run.Success())
	require.NotEmpty(t, run.Nodes)
	for _, n := range run.Nodes {
		require.Equal(t, StatusSuccess, n.Status)
	}

	cfg, ok, err := store.Get(ctx, "acme")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, tenants.StatusActive, cfg.Status)

	rows, err := wc.Query(ctx, `SELECT * FROM "run_results" WHERE "invocation_id" = ?;`, run.InvocationID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestOnboardUnknownTenantFails(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	_, err := o.Onboard(context.Background(), "nobody", 7, false, nil)
	require.Error(t, err)
}

func TestOnboardRespectsCancelBeforeScheduling(t *testing.T) {
	ctx := context.Background()
	o, store, _ := newTestOrchestrator(t)
	require.NoError(t, store.Upsert(ctx, tenants.TenantConfig{
		Slug: "acme", BusinessName: "Acme Inc", Status: tenants.StatusOnboarding,
		Sources:     map[string]tenants.SourceConfig{"shopify": {Enabled: true}},
		SourceOrder: []string{"shopify"},
	}))

	cancel := NewCancelToken()
	cancel.Set()

	run, err := o.Onboard(ctx, "acme", 7, false, cancel)
	require.NoError(t, err)
	require.True(t, run.Cancelled)
	require.False(t, run.Success())

	cfg, ok, err := store.Get(ctx, "acme")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, tenants.StatusOnboarding, cfg.Status)
}

// stubClient implements warehouse.Client far enough for materialize tests
// that never touch the push circuit or catalog introspection: Execute
// fails for any statement containing the literal "FAIL".
type stubClient struct {
	gen *sqlgen.Generator
}

func (s *stubClient) Execute(_ context.Context, stmt string, _ ...interface{}) (int64, error) {
	if strings.Contains(stmt, "FAIL") {
		return 0, fmt.Errorf("simulated failure executing %q", stmt)
	}
	return 1, nil
}
func (s *stubClient) Query(context.Context, string, ...interface{}) ([]warehouse.Row, error) { return nil, nil }
func (s *stubClient) Describe(context.Context, string) ([]fingerprint.Column, error)          { return nil, nil }
func (s *stubClient) ListTables(context.Context, string) ([]string, error)                    { return nil, nil }
func (s *stubClient) Transactional(ctx context.Context, block func(tx warehouse.Tx) error) error {
	return block(nil)
}
func (s *stubClient) Generator() *sqlgen.Generator { return s.gen }
func (s *stubClient) Close() error                 { return nil }

func TestMaterializeSkipsNodesWhoseDependencyFailed(t *testing.T) {
	o := &Orchestrator{wc: &stubClient{gen: sqlgen.SQLiteDialect()}, fanout: 2}
	graph, err := Compile([]Node{
		{ID: "a", Name: "a", Statement: "FAIL THIS"},
		{ID: "b", Name: "b", Statement: "SELECT 1;", DependsOn: []string{"a"}},
	})
	require.NoError(t, err)

	results, cancelled := o.materialize(context.Background(), graph, graph.TopologicalOrder(), false, nil)
	require.False(t, cancelled)
	require.Len(t, results, 2)

	byID := map[string]NodeResult{}
	for _, r := range results {
		byID[r.NodeID] = r
	}
	require.Equal(t, StatusFailed, byID["a"].Status)
	require.Equal(t, StatusFailed, byID["b"].Status)
	require.Equal(t, "skipped: dependency failed", byID["b"].Message)
}

func TestMaterializeFailFastAbortsLaterLevels(t *testing.T) {
	o := &Orchestrator{wc: &stubClient{gen: sqlgen.SQLiteDialect()}, fanout: 2}
	graph, err := Compile([]Node{
		{ID: "a", Name: "a", Statement: "FAIL THIS"},
		{ID: "b", Name: "b", Statement: "SELECT 1;"},
		{ID: "c", Name: "c", Statement: "SELECT 1;", DependsOn: []string{"b"}},
	})
	require.NoError(t, err)

	results, cancelled := o.materialize(context.Background(), graph, graph.TopologicalOrder(), true, nil)
	require.False(t, cancelled)

	byID := map[string]NodeResult{}
	for _, r := range results {
		byID[r.NodeID] = r
	}
	require.Equal(t, StatusSuccess, byID["b"].Status)
	require.Equal(t, StatusCancelled, byID["c"].Status)
}

func TestLevelizeOrdersByDependencyDepth(t *testing.T) {
	graph, err := Compile([]Node{
		{ID: "a", Name: "a"},
		{ID: "b", Name: "b", DependsOn: []string{"a"}},
		{ID: "c", Name: "c", DependsOn: []string{"a"}},
		{ID: "d", Name: "d", DependsOn: []string{"b", "c"}},
	})
	require.NoError(t, err)

	levels := levelize(graph, graph.TopologicalOrder())
	require.Len(t, levels, 3)
	require.Equal(t, []string{"a"}, levels[0])
	require.ElementsMatch(t, []string{"b", "c"}, levels[1])
	require.Equal(t, []string{"d"}, levels[2])
}

func TestCompileDetectsCycle(t *testing.T) {
	_, err := Compile([]Node{
		{ID: "a", Name: "a", DependsOn: []string{"b"}},
		{ID: "b", Name: "b", DependsOn: []string{"a"}},
	})
	require.Error(t, err)
}
