// Package modelbuild implements the production orchestrator.ModelBuilder:
// it turns one onboarding run's scaffold results into the intermediate and
// star-schema nodes of the compiled model DAG, bridging the Scaffolder's
// output to the Intermediate Unpacker and Factory Resolver.
package modelbuild

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/thedatagata/control-plane/internal/engine"
	"github.com/thedatagata/control-plane/internal/factory"
	"github.com/thedatagata/control-plane/internal/fingerprint"
	"github.com/thedatagata/control-plane/internal/orchestrator"
	"github.com/thedatagata/control-plane/internal/registry"
	"github.com/thedatagata/control-plane/internal/scaffold"
	"github.com/thedatagata/control-plane/internal/sqlgen"
	"github.com/thedatagata/control-plane/internal/tenants"
	"github.com/thedatagata/control-plane/internal/unpack"
	"github.com/thedatagata/control-plane/internal/warehouse"
)

// domains is every analytic domain the star schema serves, in a stable
// build order.
var domains = []engine.Domain{
	engine.DomainOrders, engine.DomainProducts, engine.DomainCampaigns,
	engine.DomainAdPerformance, engine.DomainSessions, engine.DomainEvents, engine.DomainUsers,
}

// Builder is the production ModelBuilder: it resolves each scaffolded
// relation's blueprint to learn its source platform and canonical columns,
// emits one intermediate node per relation, then one star-schema node per
// analytic domain the tenant's enabled sources actually populate.
type Builder struct {
	wc       warehouse.Client
	reg      *registry.Registry
	resolver *factory.Resolver
	engines  *engine.Registry
	store    *tenants.Store
	jsonDial unpack.Dialect
}

// New builds a production Builder. jsonDialect must match the warehouse's
// JSON extraction dialect (unpack.SQLiteJSONDialect or PostgresJSONDialect).
func New(wc warehouse.Client, reg *registry.Registry, resolver *factory.Resolver,
	engines *engine.Registry, store *tenants.Store, jsonDialect unpack.Dialect) *Builder {
	return &Builder{wc: wc, reg: reg, resolver: resolver, engines: engines, store: store, jsonDial: jsonDialect}
}

// Build implements orchestrator.ModelBuilder.
func (b *Builder) Build(ctx context.Context, tenantSlug string, scaffolds []scaffold.Result) ([]orchestrator.Node, error) {
	cfg, ok, err := b.store.Get(ctx, tenantSlug)
	if err != nil {
		return nil, fmt.Errorf("loading tenant %s: %w", tenantSlug, err)
	}
	if !ok {
		return nil, fmt.Errorf("tenant %s is not onboarded in the manifest store", tenantSlug)
	}

	gen := b.wc.Generator()
	var nodes []orchestrator.Node
	intermediateBySource := make(map[string]string, len(scaffolds))

	for _, result := range scaffolds {
		bp, found, err := b.reg.BlueprintByID(ctx, result.MasterModelID)
		if err != nil {
			return nil, fmt.Errorf("resolving blueprint for %s: %w", result.MasterModelID, err)
		}
		if !found {
			return nil, fmt.Errorf("scaffolded model %s has no registered blueprint", result.MasterModelID)
		}

		mergeNode := orchestrator.Node{
			ID:              result.MasterModelID,
			Name:            result.MasterModelID,
			Statement:       "SELECT 1;",
			Materialization: orchestrator.MaterializationView,
			Tags:            []string{"merge_target"},
			StagingView:     result.StagingViewName,
		}
		nodes = append(nodes, mergeNode)

		intName := unpack.IntermediateName(tenantSlug, bp.SourcePlatform, bp.Object)
		intNode := orchestrator.Node{
			ID:   intName,
			Name: intName,
			Statement: unpack.CreateViewStatement(gen, b.jsonDial, intName,
				sqlgen.MasterSinkTable(gen, result.MasterModelID).Identifier,
				tenantSlug, bp.SourcePlatform, columnSpecs(bp.CanonicalColumns)),
			Materialization: orchestrator.MaterializationView,
			Tags:            []string{"intermediate"},
			DependsOn:       []string{mergeNode.ID},
		}
		nodes = append(nodes, intNode)
		intermediateBySource[bp.SourcePlatform] = intName
	}

	intermediateFor := func(sourcePlatform string) string { return intermediateBySource[sourcePlatform] }

	opts := factory.Options{
		OrdersIntermediate: intermediateBySource["shopify"],
	}

	for _, domain := range domains {
		sources := enabledSourcesForDomain(b.engines, domain, cfg.EnabledSources())
		if len(sources) == 0 {
			continue
		}
		stmt, err := b.resolver.Build(domain, cfg, intermediateFor, opts)
		if err != nil {
			return nil, fmt.Errorf("building %s star schema for %s: %w", domain, tenantSlug, err)
		}

		tableName := fmt.Sprintf("star_%s__%s", tenantSlug, domain)
		var deps []string
		for _, source := range sources {
			if dep, ok := intermediateBySource[source]; ok {
				deps = append(deps, dep)
			}
		}
		nodes = append(nodes, orchestrator.Node{
			ID:              tableName,
			Name:            tableName,
			Statement:       fmt.Sprintf("CREATE VIEW IF NOT EXISTS %s AS\n%s", gen.Quote(tableName), stmt),
			Materialization: orchestrator.MaterializationView,
			Tags:            []string{"star_schema"},
			DependsOn:       deps,
		})
	}

	return nodes, nil
}

// enabledSourcesForDomain is the subset of a tenant's enabled sources with
// a registered engine for domain, mirroring factory.Resolver.Build's own
// matching so the DAG's declared dependencies agree with what it executes.
func enabledSourcesForDomain(engines *engine.Registry, domain engine.Domain, enabled []string) []string {
	var out []string
	for _, source := range enabled {
		if _, ok := engines.Lookup(source, domain); ok {
			out = append(out, source)
		}
	}
	sort.Strings(out)
	return out
}

func columnSpecs(cols []fingerprint.Column) []unpack.ColumnSpec {
	specs := make([]unpack.ColumnSpec, 0, len(cols))
	for _, c := range cols {
		if strings.HasPrefix(c.Name, "_dlt_") {
			continue
		}
		spec := unpack.ColumnSpec{JSONKey: c.Name, Alias: c.Name}
		switch c.Type {
		case "bigint", "integer":
			spec.CastTo = sqlgen.INTEGER
		case "number":
			spec.CastTo = sqlgen.NUMBER
		case "boolean":
			spec.CastTo = sqlgen.BOOLEAN
		case "timestamp", "date":
			spec.CastTo = sqlgen.TIMESTAMP
		case "json":
			spec.KeepAsJSON = true
		default:
			spec.CastTo = sqlgen.STRING
		}
		specs = append(specs, spec)
	}
	return specs
}
