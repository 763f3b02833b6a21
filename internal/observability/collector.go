// Package observability implements the Observability Collector: three
// artifact tables (model_artifacts, run_results, test_artifacts) maintained
// with an invocation-scoped truncate-and-insert pattern, plus Prometheus
// metrics for onboarding runs.
package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/thedatagata/control-plane/internal/sqlgen"
	"github.com/thedatagata/control-plane/internal/warehouse"
)

// batchSize bounds how many single-row INSERTs of model_artifacts are
// grouped into one transaction.
const batchSize = 25

// ModelArtifact is one model node's execution outcome, as the collector
// persists it: node_id, name, materialization, tags, dependencies, status,
// message, rows_affected, and started/completed timestamps.
type ModelArtifact struct {
	InvocationID    string
	TenantSlug      string
	NodeID          string
	Name            string
	Materialization string
	Tags            []string
	Dependencies    []string
	Status          string
	Message         string
	RowsAffected    int64
	StartedAt       time.Time
	CompletedAt     time.Time
}

func (m ModelArtifact) executionSeconds() float64 {
	return m.CompletedAt.Sub(m.StartedAt).Seconds()
}

// Collector writes artifact rows for one onboarding invocation.
type Collector struct {
	wc  warehouse.Client
	reg *prometheus.Registry

	runsTotal      *prometheus.CounterVec
	modelsTotal    *prometheus.CounterVec
	modelsDuration *prometheus.HistogramVec
}

// New builds a Collector and registers its Prometheus metrics with reg. reg
// may be a fresh *prometheus.Registry owned by the caller's HTTP server.
func New(wc warehouse.Client, reg *prometheus.Registry) *Collector {
	c := &Collector{
		wc:  wc,
		reg: reg,
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "control_plane_onboard_runs_total",
			Help: "Count of onboarding runs by tenant and terminal status.",
		}, []string{"tenant_slug", "status"}),
		modelsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "control_plane_model_runs_total",
			Help: "Count of model node executions by materialization and status.",
		}, []string{"materialization", "status"}),
		modelsDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "control_plane_model_duration_seconds",
			Help:    "Model node execution time in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"materialization"}),
	}
	if reg != nil {
		reg.MustRegister(c.runsTotal, c.modelsTotal, c.modelsDuration)
	}
	return c
}

func modelArtifactsTable(gen *sqlgen.Generator) *sqlgen.Table {
	ident := func(n string) string { return gen.Quote(n) }
	return &sqlgen.Table{
		Name: "model_artifacts", Identifier: ident("model_artifacts"), IfNotExists: true,
		Columns: []sqlgen.Column{
			{Name: "invocation_id", Identifier: ident("invocation_id"), Type: sqlgen.STRING, NotNull: true},
			{Name: "tenant_slug", Identifier: ident("tenant_slug"), Type: sqlgen.STRING, NotNull: true},
			{Name: "node_id", Identifier: ident("node_id"), Type: sqlgen.STRING, NotNull: true},
			{Name: "name", Identifier: ident("name"), Type: sqlgen.STRING, NotNull: true},
			{Name: "materialization", Identifier: ident("materialization"), Type: sqlgen.STRING, NotNull: true},
			{Name: "tags", Identifier: ident("tags"), Type: sqlgen.JSON, NotNull: true},
			{Name: "dependencies", Identifier: ident("dependencies"), Type: sqlgen.JSON, NotNull: true},
			{Name: "status", Identifier: ident("status"), Type: sqlgen.STRING, NotNull: true},
			{Name: "message", Identifier: ident("message"), Type: sqlgen.STRING},
			{Name: "rows_affected", Identifier: ident("rows_affected"), Type: sqlgen.INTEGER, NotNull: true},
			{Name: "execution_time_seconds", Identifier: ident("execution_time_seconds"), Type: sqlgen.NUMBER, NotNull: true},
			{Name: "started_at", Identifier: ident("started_at"), Type: sqlgen.TIMESTAMP, NotNull: true},
			{Name: "completed_at", Identifier: ident("completed_at"), Type: sqlgen.TIMESTAMP, NotNull: true},
		},
	}
}

func runResultsTable(gen *sqlgen.Generator) *sqlgen.Table {
	ident := func(n string) string { return gen.Quote(n) }
	return &sqlgen.Table{
		Name: "run_results", Identifier: ident("run_results"), IfNotExists: true,
		Columns: []sqlgen.Column{
			{Name: "invocation_id", Identifier: ident("invocation_id"), Type: sqlgen.STRING, NotNull: true},
			{Name: "tenant_slug", Identifier: ident("tenant_slug"), Type: sqlgen.STRING, NotNull: true},
			{Name: "status", Identifier: ident("status"), Type: sqlgen.STRING, NotNull: true},
			{Name: "node_count", Identifier: ident("node_count"), Type: sqlgen.INTEGER, NotNull: true},
			{Name: "completed_at", Identifier: ident("completed_at"), Type: sqlgen.TIMESTAMP, NotNull: true},
		},
	}
}

func testArtifactsTable(gen *sqlgen.Generator) *sqlgen.Table {
	ident := func(n string) string { return gen.Quote(n) }
	return &sqlgen.Table{
		Name: "test_artifacts", Identifier: ident("test_artifacts"), IfNotExists: true,
		Columns: []sqlgen.Column{
			{Name: "invocation_id", Identifier: ident("invocation_id"), Type: sqlgen.STRING, NotNull: true},
			{Name: "node_id", Identifier: ident("node_id"), Type: sqlgen.STRING, NotNull: true},
			{Name: "test_name", Identifier: ident("test_name"), Type: sqlgen.STRING, NotNull: true},
			{Name: "status", Identifier: ident("status"), Type: sqlgen.STRING, NotNull: true},
			{Name: "message", Identifier: ident("message"), Type: sqlgen.STRING},
		},
	}
}

// EnsureTables creates the three artifact tables if they don't already exist.
func (c *Collector) EnsureTables(ctx context.Context) error {
	gen := c.wc.Generator()
	for _, t := range []*sqlgen.Table{modelArtifactsTable(gen), runResultsTable(gen), testArtifactsTable(gen)} {
		stmt, err := gen.CreateTableStatement(t)
		if err != nil {
			return fmt.Errorf("building DDL for %s: %w", t.Name, err)
		}
		if _, err := c.wc.Execute(ctx, stmt); err != nil {
			return fmt.Errorf("creating %s: %w", t.Name, err)
		}
	}
	return nil
}

// RecordRun truncates this invocation's prior rows (a no-op the first time)
// and inserts the current run's model_artifacts and run_results rows in
// batches, then updates metrics.
func (c *Collector) RecordRun(ctx context.Context, invocationID, tenantSlug, runStatus string, artifacts []ModelArtifact) error {
	gen := c.wc.Generator()

	for _, table := range []string{"model_artifacts", "run_results"} {
		if _, err := c.wc.Execute(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE %s = %s;", gen.Quote(table), gen.Quote("invocation_id"), gen.Placeholder(0)),
			invocationID); err != nil {
			return fmt.Errorf("truncating prior %s for invocation %s: %w", table, invocationID, err)
		}
	}

	if err := c.insertModelArtifactsBatched(ctx, gen, artifacts); err != nil {
		return err
	}

	runTable := runResultsTable(gen)
	insertStmt, _, err := gen.InsertStatement(runTable)
	if err != nil {
		return fmt.Errorf("building run_results insert: %w", err)
	}
	if _, err := c.wc.Execute(ctx, insertStmt, invocationID, tenantSlug, runStatus, len(artifacts), time.Now()); err != nil {
		return fmt.Errorf("recording run_results for invocation %s: %w", invocationID, err)
	}

	c.runsTotal.WithLabelValues(tenantSlug, runStatus).Inc()
	for _, a := range artifacts {
		c.modelsTotal.WithLabelValues(a.Materialization, a.Status).Inc()
		c.modelsDuration.WithLabelValues(a.Materialization).Observe(a.executionSeconds())
	}
	return nil
}

func (c *Collector) insertModelArtifactsBatched(ctx context.Context, gen *sqlgen.Generator, artifacts []ModelArtifact) error {
	table := modelArtifactsTable(gen)
	insertStmt, _, err := gen.InsertStatement(table)
	if err != nil {
		return fmt.Errorf("building model_artifacts insert: %w", err)
	}

	for start := 0; start < len(artifacts); start += batchSize {
		end := start + batchSize
		if end > len(artifacts) {
			end = len(artifacts)
		}
		err := c.wc.Transactional(ctx, func(tx warehouse.Tx) error {
			for _, a := range artifacts[start:end] {
				tagsJSON, err := jsonArray(a.Tags)
				if err != nil {
					return err
				}
				depsJSON, err := jsonArray(a.Dependencies)
				if err != nil {
					return err
				}
				if _, err := tx.Exec(ctx, insertStmt,
					a.InvocationID, a.TenantSlug, a.NodeID, a.Name, a.Materialization,
					tagsJSON, depsJSON, a.Status, a.Message, a.RowsAffected,
					a.executionSeconds(), a.StartedAt, a.CompletedAt); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("inserting model_artifacts batch [%d:%d): %w", start, end, err)
		}
	}
	return nil
}

func jsonArray(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encoding %v: %w", values, err)
	}
	return string(b), nil
}
