package engine

import (
	"fmt"
	"strings"
)

// FieldMap binds one canonical output column to a SQL expression evaluated
// against the engine's intermediate relation (an already-typed column name,
// or a computed expression such as a unit conversion).
type FieldMap struct {
	Canonical string
	Expr      string
}

// ColumnMapEngine builds an EngineFunc that selects tenant_slug,
// source_platform, and the given field mappings straight out of the
// intermediate relation. This covers every domain whose canonical schema is
// a direct (possibly computed) projection of one source's typed columns:
// ad_performance, orders, campaigns, products.
func ColumnMapEngine(fields []FieldMap) EngineFunc {
	return func(ctx *BuildContext) (string, error) {
		if ctx.Intermediate == "" {
			return "", fmt.Errorf("column-map engine requires an intermediate relation")
		}

		var b strings.Builder
		b.WriteString("SELECT\n")
		fmt.Fprintf(&b, "\t%s AS %s,\n", ctx.Gen.Quote("tenant_slug"), ctx.Gen.Quote("tenant_slug"))
		fmt.Fprintf(&b, "\t%s AS %s", ctx.Gen.Quote("source_platform"), ctx.Gen.Quote("source_platform"))

		for _, f := range fields {
			fmt.Fprintf(&b, ",\n\t%s AS %s", f.Expr, ctx.Gen.Quote(f.Canonical))
		}

		fmt.Fprintf(&b, "\nFROM %s;", ctx.Intermediate)
		return b.String(), nil
	}
}
