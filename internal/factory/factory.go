// Package factory implements the Factory Resolver: for each analytic
// domain, it reads a tenant's enabled sources from the Tenants Manifest
// Store, probes the Engine Library's explicit registry, and composes the
// matching engines into one SQL statement producing that domain's canonical
// rows — UNION ALL across sources for multi-source domains, a single
// selected source (or an AmbiguousAnalyticsSource failure) for others, and a
// typed empty result when nothing matches.
package factory

import (
	"fmt"
	"strings"

	"github.com/thedatagata/control-plane/internal/engine"
	"github.com/thedatagata/control-plane/internal/errkind"
	"github.com/thedatagata/control-plane/internal/sqlgen"
	"github.com/thedatagata/control-plane/internal/tenants"
)

// nativeSessionIDColumns names, per source platform, the column on that
// source's intermediate relation that already carries a session id — these
// sources skip the 30-minute gap computation entirely.
var nativeSessionIDColumns = map[string]string{
	"segment": "session_id",
}

// Options carries the tenant-declared configuration the sessions, events,
// and users engines need beyond a bare intermediate relation.
type Options struct {
	FunnelSteps        []string
	ConversionEvents   []string
	IdentityStrategy   string
	EcommerceSource    string
	OrdersIntermediate string
}

// Resolver composes engine output into one domain-wide SQL statement.
type Resolver struct {
	reg *engine.Registry
	gen *sqlgen.Generator
}

// New builds a Resolver over the given engine registry and dialect generator.
func New(reg *engine.Registry, gen *sqlgen.Generator) *Resolver {
	return &Resolver{reg: reg, gen: gen}
}

// IntermediateNamer resolves a source platform to the identifier of its
// already-unpacked intermediate relation for one tenant.
type IntermediateNamer func(sourcePlatform string) string

// Build renders the SQL statement for one domain and tenant.
func (r *Resolver) Build(domain engine.Domain, tenant tenants.TenantConfig, intermediateFor IntermediateNamer, opts Options) (string, error) {
	enabled := tenant.EnabledSources()

	var matches []struct {
		source string
		fn     engine.EngineFunc
	}
	for _, source := range enabled {
		fn, ok := r.reg.Lookup(source, domain)
		if !ok {
			continue
		}
		matches = append(matches, struct {
			source string
			fn     engine.EngineFunc
		}{source, fn})
	}

	if len(matches) == 0 {
		return engine.TypedEmptyResult(r.gen, domain, r.funnelExtraColumns(domain, opts))
	}

	if engine.SingleSourceDomains[domain] {
		if len(matches) > 1 {
			sources := make([]string, len(matches))
			for i, m := range matches {
				sources[i] = m.source
			}
			return "", &errkind.AmbiguousAnalyticsSourceError{Tenant: tenant.Slug, Domain: string(domain), Sources: sources}
		}
		m := matches[0]
		ctx := r.buildContext(tenant.Slug, m.source, intermediateFor(m.source), opts)
		return m.fn(ctx)
	}

	// UNION domains: branch order follows tenant.EnabledSources() insertion order.
	var branches []string
	for _, m := range matches {
		ctx := r.buildContext(tenant.Slug, m.source, intermediateFor(m.source), opts)
		stmt, err := m.fn(ctx)
		if err != nil {
			return "", fmt.Errorf("rendering %s engine for source %s: %w", domain, m.source, err)
		}
		branches = append(branches, strings.TrimSuffix(strings.TrimSpace(stmt), ";"))
	}
	return strings.Join(branches, "\nUNION ALL\n") + ";", nil
}

func (r *Resolver) buildContext(tenantSlug, source, intermediate string, opts Options) *engine.BuildContext {
	ctx := &engine.BuildContext{
		Gen:              r.gen,
		TenantSlug:       tenantSlug,
		SourcePlatform:   source,
		Intermediate:     intermediate,
		FunnelSteps:      opts.FunnelSteps,
		ConversionEvents: opts.ConversionEvents,
	}
	if native, ok := nativeSessionIDColumns[source]; ok {
		ctx.NativeSessionIDColumn = native
	}
	if opts.IdentityStrategy != "" {
		ctx.IdentityStrategy = opts.IdentityStrategy
		ctx.OrdersIntermediate = opts.OrdersIntermediate
	}
	return ctx
}

// funnelExtraColumns reports the funnel pivot + rank columns a typed empty
// sessions result still needs, so the star-schema table's column set is
// stable whether or not any engine matched.
func (r *Resolver) funnelExtraColumns(domain engine.Domain, opts Options) []engine.Column {
	if domain != engine.DomainSessions {
		return nil
	}
	cols := make([]engine.Column, 0, len(opts.FunnelSteps)+1)
	for i, step := range opts.FunnelSteps {
		cols = append(cols, engine.Column{Name: engine.FunnelStepColumnName(i+1, step), SQLType: "INTEGER"})
	}
	cols = append(cols, engine.Column{Name: "funnel_max_step", SQLType: "INTEGER"})
	return cols
}
