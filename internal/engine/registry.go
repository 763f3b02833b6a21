package engine

import (
	"fmt"
	"sort"

	"github.com/thedatagata/control-plane/internal/sqlgen"
)

// Key addresses one engine by the (source_platform, domain) pair it maps.
// The registry is explicit rather than discovered by naming convention: a
// source/domain combination only exists in the Engine Library if someone
// registered it.
type Key struct {
	SourcePlatform string
	Domain         Domain
}

// BuildContext is everything an engine needs to render its SQL statement.
// Intermediate is the identifier of the already-unpacked, typed relation for
// this tenant and source (an Intermediate Unpacker output); engines never
// see raw_data_payload directly.
type BuildContext struct {
	Gen            *sqlgen.Generator
	TenantSlug     string
	SourcePlatform string
	Intermediate   string

	// GapSeconds is the sessionization inactivity-gap threshold; engines
	// that don't sessionize ignore it. Defaults to 1800 (30 minutes) when 0.
	GapSeconds int
	// FunnelSteps is the tenant's configured ordered funnel event names.
	FunnelSteps []string
	// ConversionEvents is the tenant's configured conversion event name set.
	ConversionEvents []string
	// IdentityStrategy selects how the users engine links analytics
	// identities to ecommerce orders: "transaction_id_match" or "email_match".
	IdentityStrategy string
	// OrdersIntermediate is the ecommerce intermediate the users engine joins
	// against for identity resolution. Required only when IdentityStrategy != "".
	OrdersIntermediate string
	// NativeSessionIDColumn, if non-empty, names a column on Intermediate that
	// already carries a source-native session id. When set, sessionization
	// adopts it directly and skips the 30-minute gap computation.
	NativeSessionIDColumn string
}

func (c *BuildContext) gapSeconds() int {
	if c.GapSeconds > 0 {
		return c.GapSeconds
	}
	return 1800
}

// EngineFunc renders the SQL statement producing a domain's canonical rows
// for one tenant+source pair.
type EngineFunc func(ctx *BuildContext) (string, error)

// Registry is the explicit map[(source, domain)]engine lookup table the
// Factory Resolver probes. There is no discovery by naming convention.
type Registry struct {
	engines map[Key]EngineFunc
}

// NewRegistry builds a Registry pre-populated with every built-in engine
// this platform ships (see builtin.go).
func NewRegistry() *Registry {
	r := &Registry{engines: make(map[Key]EngineFunc)}
	registerBuiltins(r)
	return r
}

// Register adds or replaces the engine for (source, domain).
func (r *Registry) Register(source string, domain Domain, fn EngineFunc) {
	r.engines[Key{SourcePlatform: source, Domain: domain}] = fn
}

// Lookup returns the engine registered for (source, domain), if any.
func (r *Registry) Lookup(source string, domain Domain) (EngineFunc, bool) {
	fn, ok := r.engines[Key{SourcePlatform: source, Domain: domain}]
	return fn, ok
}

// SourcesForDomain returns every source platform with a registered engine
// for domain, in a deterministic order.
func (r *Registry) SourcesForDomain(domain Domain) []string {
	var out []string
	for k := range r.engines {
		if k.Domain == domain {
			out = append(out, k.SourcePlatform)
		}
	}
	sort.Strings(out)
	return out
}

// TypedEmptyResult builds a SELECT of NULL-cast literals matching domain's
// canonical schema, filtered by WHERE 1=0 — used by the Factory Resolver
// when no engine matches a tenant's enabled sources for a domain.
func TypedEmptyResult(gen *sqlgen.Generator, domain Domain, extraColumns []Column) (string, error) {
	cols := CanonicalSchemas[domain]
	if cols == nil {
		return "", fmt.Errorf("no canonical schema registered for domain %q", domain)
	}
	cols = append(append([]Column(nil), cols...), extraColumns...)

	stmt := "SELECT\n"
	for i, c := range cols {
		sep := ","
		if i == len(cols)-1 {
			sep = ""
		}
		stmt += fmt.Sprintf("\tCAST(NULL AS %s) AS %s%s\n", c.SQLType, gen.Quote(c.Name), sep)
	}
	stmt += "WHERE 1=0;"
	return stmt, nil
}
