// Package scaffold implements the Scaffolder: given a tenant and a landed
// table, it resolves the table's canonical identity via the fingerprint
// engine and blueprint registry, ensures the master sink exists, and emits
// the source-shim and staging-view artifacts that the push circuit depends
// on.
package scaffold

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/nsf/jsondiff"
	log "github.com/sirupsen/logrus"

	"github.com/thedatagata/control-plane/internal/errkind"
	"github.com/thedatagata/control-plane/internal/fingerprint"
	"github.com/thedatagata/control-plane/internal/registry"
	"github.com/thedatagata/control-plane/internal/sqlgen"
	"github.com/thedatagata/control-plane/internal/warehouse"
)

// Result is everything the push circuit and orchestrator need after a
// successful scaffold.
type Result struct {
	MasterModelID   string
	Fingerprint     string
	SourceShimName  string
	StagingViewName string
	LandedRelation  string
}

// Scaffolder wires the Warehouse Client, Fingerprint Engine, and Blueprint
// Registry together for one onboarding run.
type Scaffolder struct {
	wc  warehouse.Client
	reg *registry.Registry

	// artifacts, if non-nil, additionally persists a copy of every emitted
	// statement (source shim, staging view) for audit/dev-target storage.
	artifacts ArtifactSink
}

// ArtifactSink receives a copy of every generated SQL artifact. nil is a
// valid Scaffolder field: with no sink, no artifact is persisted.
type ArtifactSink interface {
	Put(ctx context.Context, path string, contents []byte) error
}

// New builds a Scaffolder. sink may be nil.
func New(wc warehouse.Client, reg *registry.Registry, sink ArtifactSink) *Scaffolder {
	return &Scaffolder{wc: wc, reg: reg, artifacts: sink}
}

func landedRelation(tenantSlug, sourcePlatform, object string) string {
	return fmt.Sprintf("%s_%s_%s", tenantSlug, sourcePlatform, object)
}

func sourceShimName(tenantSlug, sourcePlatform, object string) string {
	return fmt.Sprintf("shim_%s__%s_%s", tenantSlug, sourcePlatform, object)
}

func stagingViewName(tenantSlug, sourcePlatform, object string) string {
	return fmt.Sprintf("stg_%s__%s_%s", tenantSlug, sourcePlatform, object)
}

// Scaffold runs the full scaffolding sequence for one landed table.
func (s *Scaffolder) Scaffold(ctx context.Context, tenantSlug, sourcePlatform, object string) (*Result, error) {
	gen := s.wc.Generator()
	landed := landedRelation(tenantSlug, sourcePlatform, object)
	landedIdent := gen.Quote(landed)

	cols, err := s.wc.Describe(ctx, landedIdent)
	if err != nil {
		return nil, fmt.Errorf("describing landed table %s: %w", landed, err)
	}

	fp := fingerprint.Fingerprint(cols, nil)

	modelID, found, err := s.reg.Lookup(ctx, fp)
	if err != nil {
		return nil, fmt.Errorf("looking up fingerprint %s: %w", fp, err)
	}
	if !found {
		return nil, s.unknownSchemaError(ctx, tenantSlug, sourcePlatform, object, fp, cols)
	}

	masterTable := sqlgen.MasterSinkTable(gen, modelID)
	createStmt, err := gen.CreateTableStatement(masterTable)
	if err != nil {
		return nil, fmt.Errorf("building master sink DDL for %s: %w", modelID, err)
	}
	if _, err := s.wc.Execute(ctx, createStmt); err != nil {
		return nil, fmt.Errorf("ensuring master sink %s exists: %w", modelID, err)
	}

	shimName := sourceShimName(tenantSlug, sourcePlatform, object)
	shimStmt := fmt.Sprintf("CREATE VIEW IF NOT EXISTS %s AS %s",
		gen.Quote(shimName), sqlgen.SelectAll(landedIdent))
	if _, err := s.wc.Execute(ctx, shimStmt); err != nil {
		return nil, fmt.Errorf("creating source shim %s: %w", shimName, err)
	}
	if err := s.persist(ctx, tenantSlug, shimName, shimStmt); err != nil {
		return nil, err
	}

	viewName := stagingViewName(tenantSlug, sourcePlatform, object)
	stagingStmt, err := s.stagingViewStatement(gen, viewName, gen.Quote(shimName), tenantSlug, sourcePlatform, fp, cols)
	if err != nil {
		return nil, fmt.Errorf("building staging view %s: %w", viewName, err)
	}
	if _, err := s.wc.Execute(ctx, stagingStmt); err != nil {
		return nil, fmt.Errorf("creating staging view %s: %w", viewName, err)
	}
	if err := s.persist(ctx, tenantSlug, viewName, stagingStmt); err != nil {
		return nil, err
	}

	log.WithField("master_model_id", modelID).WithField("tenant_slug", tenantSlug).
		Info("scaffolded landed table")

	return &Result{
		MasterModelID:   modelID,
		Fingerprint:     fp,
		SourceShimName:  shimName,
		StagingViewName: viewName,
		LandedRelation:  landed,
	}, nil
}

// stagingViewStatement projects the shimmed landed table into the 7-column
// master contract. The raw_data_payload column packs every landed column
// into one JSON object via the dialect's JSONObjectFunc.
func (s *Scaffolder) stagingViewStatement(gen *sqlgen.Generator, viewName, fromIdent, tenantSlug, sourcePlatform, fp string, cols []fingerprint.Column) (string, error) {
	if gen.JSONObjectFunc == "" {
		return "", fmt.Errorf("dialect has no JSON object constructor configured")
	}

	schemaMap := make(map[string]string, len(cols))
	for _, c := range cols {
		schemaMap[c.Name] = c.Type
	}
	schemaJSON, err := json.Marshal(schemaMap)
	if err != nil {
		return "", fmt.Errorf("encoding source schema: %w", err)
	}

	var payloadArgs strings.Builder
	for i, c := range cols {
		if i > 0 {
			payloadArgs.WriteString(", ")
		}
		fmt.Fprintf(&payloadArgs, "'%s', %s", c.Name, gen.Quote(c.Name))
	}

	tenantSkey := fingerprint.FingerprintTenant(tenantSlug)

	stmt := fmt.Sprintf(
		"CREATE VIEW IF NOT EXISTS %s AS\nSELECT\n"+
			"\t%s AS tenant_slug,\n"+
			"\t%s AS tenant_skey,\n"+
			"\t%s AS source_platform,\n"+
			"\t%s AS source_schema_hash,\n"+
			"\t%s AS source_schema,\n"+
			"\t%s(%s) AS raw_data_payload,\n"+
			"\tCURRENT_TIMESTAMP AS loaded_at\n"+
			"FROM %s;",
		gen.Quote(viewName),
		gen.ValueRenderer.Render(tenantSlug),
		gen.ValueRenderer.Render(tenantSkey),
		gen.ValueRenderer.Render(sourcePlatform),
		gen.ValueRenderer.Render(fp),
		gen.ValueRenderer.Render(string(schemaJSON)),
		gen.JSONObjectFunc, payloadArgs.String(),
		fromIdent,
	)
	return stmt, nil
}

func (s *Scaffolder) persist(ctx context.Context, tenantSlug, artifactName, stmt string) error {
	if s.artifacts == nil {
		return nil
	}
	path := fmt.Sprintf("%s/%s.sql", tenantSlug, artifactName)
	if err := s.artifacts.Put(ctx, path, []byte(stmt)); err != nil {
		return fmt.Errorf("persisting artifact %s: %w", path, err)
	}
	return nil
}

// unknownSchemaError builds an UnknownSchemaError enriched with the closest
// registered blueprint, found by smallest symmetric difference over
// normalized column sets, with a human-readable diff rendered by jsondiff.
func (s *Scaffolder) unknownSchemaError(ctx context.Context, tenantSlug, sourcePlatform, object, fp string, cols []fingerprint.Column) error {
	observed := columnPairs(cols)

	blueprints, err := s.reg.AllBlueprints(ctx)
	if err != nil {
		log.WithError(err).Warn("could not list blueprints for closest-match search")
		return &errkind.UnknownSchemaError{
			Tenant: tenantSlug, SourcePlat: sourcePlatform, Object: object,
			Fingerprint: fp, Observed: observed,
		}
	}

	observedJSON, _ := json.Marshal(columnMap(cols))

	var closest registry.Blueprint
	bestScore := -1
	for _, bp := range blueprints {
		score := symmetricDifference(observed, columnPairs(bp.CanonicalColumns))
		if bestScore == -1 || score < bestScore {
			bestScore = score
			closest = bp
		}
	}

	if closest.MasterModelID == "" {
		return &errkind.UnknownSchemaError{
			Tenant: tenantSlug, SourcePlat: sourcePlatform, Object: object,
			Fingerprint: fp, Observed: observed,
		}
	}

	closestJSON, _ := json.Marshal(columnMap(closest.CanonicalColumns))
	opts := jsondiff.DefaultConsoleOptions()
	_, diffText := jsondiff.Compare(closestJSON, observedJSON, &opts)

	return &errkind.UnknownSchemaError{
		Tenant:       tenantSlug,
		SourcePlat:   sourcePlatform,
		Object:       object,
		Fingerprint:  fp,
		Observed:     observed,
		ClosestMatch: closest.MasterModelID,
		ClosestDiff:  strings.Split(diffText, "\n"),
	}
}

func columnPairs(cols []fingerprint.Column) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		out = append(out, strings.ToLower(strings.TrimSpace(c.Name))+":"+strings.ToLower(strings.TrimSpace(c.Type)))
	}
	sort.Strings(out)
	return out
}

func columnMap(cols []fingerprint.Column) map[string]string {
	m := make(map[string]string, len(cols))
	for _, c := range cols {
		m[c.Name] = c.Type
	}
	return m
}

func symmetricDifference(a, b []string) int {
	setA := make(map[string]bool, len(a))
	for _, v := range a {
		setA[v] = true
	}
	setB := make(map[string]bool, len(b))
	for _, v := range b {
		setB[v] = true
	}
	diff := 0
	for v := range setA {
		if !setB[v] {
			diff++
		}
	}
	for v := range setB {
		if !setA[v] {
			diff++
		}
	}
	return diff
}
