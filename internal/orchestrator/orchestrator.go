// Package orchestrator implements the Pipeline Orchestrator: it drives
// onboard(tenant_slug, days) end to end — ingestion, scaffolding, DAG
// compilation, two-pass materialization, observability, and the final
// status flip — with bounded fan-out and cooperative cancellation.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/thedatagata/control-plane/internal/errkind"
	"github.com/thedatagata/control-plane/internal/observability"
	"github.com/thedatagata/control-plane/internal/push"
	"github.com/thedatagata/control-plane/internal/scaffold"
	"github.com/thedatagata/control-plane/internal/tenants"
	"github.com/thedatagata/control-plane/internal/warehouse"
)

// ModelBuilder turns one tenant's onboarding inputs into a compiled DAG of
// model nodes. It is supplied by the caller (cmd/controlplane) so the
// orchestrator stays decoupled from how intermediates and star-schema
// statements are actually assembled out of the scaffold, unpack, engine,
// and factory packages.
type ModelBuilder interface {
	Build(ctx context.Context, tenantSlug string, scaffolds []scaffold.Result) ([]Node, error)
}

// Orchestrator drives onboarding runs.
type Orchestrator struct {
	wc       warehouse.Client
	store    *tenants.Store
	scaffold *scaffold.Scaffolder
	push     *push.Circuit
	models   ModelBuilder
	obs      *observability.Collector
	ingestor Ingestor
	fanout   int
}

// New builds an Orchestrator. sc is expected to already carry its own
// blueprint registry binding. fanout bounds how many models run
// concurrently within one tenant's materialization pass; it must be >= 1.
func New(wc warehouse.Client, store *tenants.Store, sc *scaffold.Scaffolder,
	models ModelBuilder, obs *observability.Collector, ingestor Ingestor, fanout int) *Orchestrator {
	if fanout < 1 {
		fanout = 1
	}
	return &Orchestrator{
		wc: wc, store: store, scaffold: sc, push: push.New(wc),
		models: models, obs: obs, ingestor: ingestor, fanout: fanout,
	}
}

// Onboard runs the full onboarding pipeline for one tenant. When failFast is
// set, any model failure cancels its sibling subtrees instead of letting
// independent branches run to completion.
func (o *Orchestrator) Onboard(ctx context.Context, tenantSlug string, days int, failFast bool, cancel *CancelToken) (*RunResult, error) {
	invocationID := uuid.NewString()
	log.WithFields(log.Fields{"tenant_slug": tenantSlug, "invocation_id": invocationID}).Info("onboarding started")

	cfg, ok, err := o.store.Get(ctx, tenantSlug)
	if err != nil {
		return nil, fmt.Errorf("loading tenant %s: %w", tenantSlug, err)
	}
	if !ok {
		return nil, fmt.Errorf("tenant %s is not onboarded in the manifest store", tenantSlug)
	}

	var scaffolds []scaffold.Result
	for _, source := range cfg.EnabledSources() {
		landed, err := o.ingestor.Ingest(ctx, tenantSlug, source, days)
		if err != nil {
			return nil, &errkind.IngestFailureError{SourcePlat: source, Cause: err}
		}
		for _, lr := range landed {
			result, err := o.scaffold.Scaffold(ctx, tenantSlug, source, lr.Object)
			if err != nil {
				return nil, err
			}
			scaffolds = append(scaffolds, *result)
		}
	}

	nodes, err := o.models.Build(ctx, tenantSlug, scaffolds)
	if err != nil {
		return nil, fmt.Errorf("building model set for %s: %w", tenantSlug, err)
	}
	graph, err := Compile(nodes)
	if err != nil {
		return nil, fmt.Errorf("compiling DAG for %s: %w", tenantSlug, err)
	}

	// Pass A: execute every node in topological order.
	results, cancelled := o.materialize(ctx, graph, graph.TopologicalOrder(), failFast, cancel)
	// With failFast, any failure in pass A ends the run before pass B.
	abortedA := false
	for _, r := range results {
		if failFast && r.Status != StatusSuccess {
			abortedA = true
		}
	}
	if !cancelled && !abortedA {
		// Pass B: re-run the intermediate + star-schema subtree so readers
		// observe every MERGE whose staging view completed in pass A.
		var reportingSubtree []string
		for _, id := range graph.TopologicalOrder() {
			n, _ := graph.Node(id)
			if hasTag(n.Tags, "intermediate") || hasTag(n.Tags, "star_schema") {
				reportingSubtree = append(reportingSubtree, id)
			}
		}
		passB, cancelledB := o.materialize(ctx, graph, reportingSubtree, failFast, cancel)
		results = mergeResults(results, passB)
		cancelled = cancelledB
	}

	run := &RunResult{TenantSlug: tenantSlug, InvocationID: invocationID, Nodes: results, Cancelled: cancelled}

	if err := o.recordObservability(ctx, invocationID, run); err != nil {
		log.WithError(err).Warn("failed to record observability artifacts")
	}

	if run.Success() {
		if err := o.store.MarkStatus(ctx, tenantSlug, tenants.StatusActive); err != nil {
			return run, fmt.Errorf("flipping tenant %s to active: %w", tenantSlug, err)
		}
	}
	return run, nil
}

// materialize executes nodeIDs (assumed already topologically ordered) in
// dependency levels, running each level's nodes concurrently up to fanout.
// It returns as soon as cancel is set between levels. A node whose
// dependency failed is skipped rather than run against stale or missing
// data; with failFast set, any failure in a level stops every subsequent
// level instead of letting independent subtrees run to completion.
func (o *Orchestrator) materialize(ctx context.Context, graph *Graph, nodeIDs []string, failFast bool, cancel *CancelToken) ([]NodeResult, bool) {
	levels := levelize(graph, nodeIDs)
	var results []NodeResult
	failed := make(map[string]bool)
	aborted := false

	for _, level := range levels {
		if (cancel != nil && cancel.IsSet()) || aborted {
			reason := "cancelled before scheduling"
			if aborted {
				reason = "skipped after fail-fast abort"
			}
			for _, id := range level {
				n, _ := graph.Node(id)
				results = append(results, NodeResult{NodeID: id, Name: n.Name, Status: StatusCancelled, Message: reason})
			}
			if cancel != nil && cancel.IsSet() {
				return results, true
			}
			continue
		}

		levelResults := make([]NodeResult, len(level))
		g, gctx := errgroup.WithContext(ctx)
		sem := make(chan struct{}, o.fanout)
		for i, id := range level {
			i, id := i, id
			n, _ := graph.Node(id)
			if dependencyFailed(n, failed) {
				levelResults[i] = NodeResult{NodeID: id, Name: n.Name, Status: StatusFailed, Message: "skipped: dependency failed"}
				continue
			}
			g.Go(func() error {
				sem <- struct{}{}
				defer func() { <-sem }()
				levelResults[i] = o.executeNode(gctx, graph, id)
				return nil
			})
		}
		_ = g.Wait() // executeNode never returns an error to the group; failures live in NodeResult.Status

		for _, r := range levelResults {
			if r.Status != StatusSuccess {
				failed[r.NodeID] = true
			}
		}
		if failFast && len(failed) > 0 {
			aborted = true
		}
		results = append(results, levelResults...)
	}
	return results, false
}

func dependencyFailed(n *Node, failed map[string]bool) bool {
	for _, dep := range n.DependsOn {
		if failed[dep] {
			return true
		}
	}
	return false
}

func (o *Orchestrator) executeNode(ctx context.Context, graph *Graph, id string) NodeResult {
	n, _ := graph.Node(id)
	started := time.Now()
	result := NodeResult{
		NodeID: id, Name: n.Name, Materialization: n.Materialization,
		Tags: n.Tags, DependsOn: n.DependsOn, StartedAt: started,
	}

	rows, err := o.wc.Execute(ctx, n.Statement)
	result.CompletedAt = time.Now()
	switch {
	case ctx.Err() != nil:
		result.Status = StatusTimedOut
		result.Message = ctx.Err().Error()
	case err != nil:
		result.Status = StatusFailed
		result.Message = err.Error()
	default:
		result.Status = StatusSuccess
		result.RowsAffected = rows
	}

	if result.Status == StatusSuccess && hasTag(n.Tags, "merge_target") {
		if pushErr := o.push.Run(ctx, n.Name, n.StagingView); pushErr != nil {
			result.Status = StatusFailed
			result.Message = pushErr.Error()
		}
	}
	return result
}

func (o *Orchestrator) recordObservability(ctx context.Context, invocationID string, run *RunResult) error {
	if err := o.obs.EnsureTables(ctx); err != nil {
		return err
	}
	artifacts := make([]observability.ModelArtifact, 0, len(run.Nodes))
	for _, n := range run.Nodes {
		artifacts = append(artifacts, observability.ModelArtifact{
			InvocationID: invocationID, TenantSlug: run.TenantSlug, NodeID: n.NodeID, Name: n.Name,
			Materialization: string(n.Materialization), Tags: n.Tags, Dependencies: n.DependsOn,
			Status: string(n.Status), Message: n.Message, RowsAffected: n.RowsAffected,
			StartedAt: n.StartedAt, CompletedAt: n.CompletedAt,
		})
	}
	status := "success"
	if !run.Success() {
		status = "failed"
	}
	if run.Cancelled {
		status = "cancelled"
	}
	return o.obs.RecordRun(ctx, invocationID, run.TenantSlug, status, artifacts)
}

// levelize groups nodeIDs into dependency levels: level 0 has no
// dependencies within the set, level k depends only on levels < k.
func levelize(graph *Graph, nodeIDs []string) [][]string {
	include := make(map[string]bool, len(nodeIDs))
	for _, id := range nodeIDs {
		include[id] = true
	}
	depth := make(map[string]int, len(nodeIDs))
	for _, id := range nodeIDs {
		n, _ := graph.Node(id)
		max := -1
		for _, dep := range n.DependsOn {
			if !include[dep] {
				continue
			}
			if depth[dep] > max {
				max = depth[dep]
			}
		}
		depth[id] = max + 1
	}
	var maxDepth int
	for _, d := range depth {
		if d > maxDepth {
			maxDepth = d
		}
	}
	levels := make([][]string, maxDepth+1)
	for _, id := range nodeIDs {
		levels[depth[id]] = append(levels[depth[id]], id)
	}
	return levels
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func mergeResults(a, b []NodeResult) []NodeResult {
	return append(append([]NodeResult(nil), a...), b...)
}
