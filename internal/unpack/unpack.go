// Package unpack implements the Intermediate Unpacker: the sole locus of
// JSON-to-typed extraction. Given a tenant, source, and a column-extraction
// spec, it emits a materialized SELECT over a master sink's
// raw_data_payload, so every downstream engine consumes only typed rows.
package unpack

import (
	"fmt"
	"strings"

	"github.com/thedatagata/control-plane/internal/sqlgen"
)

// ColumnSpec is one extracted column. Exactly one of CastTo, KeepAsJSON, or
// Expression should be set; CastTo is the common case.
type ColumnSpec struct {
	// JSONKey is the dotted path into raw_data_payload (e.g. "line_items").
	JSONKey string
	// Alias is the output column name.
	Alias string
	// CastTo is a sqlgen.ColumnType the extracted value is cast to.
	CastTo sqlgen.ColumnType
	// KeepAsJSON preserves the nested value untouched rather than casting it.
	KeepAsJSON bool
	// Expression, if set, overrides JSONKey/CastTo/KeepAsJSON entirely with a
	// literal SQL expression (e.g. a unit conversion), referencing the
	// extraction dialect's raw_data_payload accessor directly.
	Expression string
}

// Dialect captures the two JSON operations that vary per warehouse engine.
type Dialect struct {
	// Extract returns a SQL expression reading jsonKey out of column as text.
	Extract func(column, jsonKey string) string
	// Cast returns a SQL expression casting expr to sqlType.
	Cast func(expr, sqlType string) string
}

// SQLiteJSONDialect extracts via json_extract and relies on SQLite's
// dynamic typing for CAST.
func SQLiteJSONDialect() Dialect {
	return Dialect{
		Extract: func(column, jsonKey string) string {
			return fmt.Sprintf("json_extract(%s, '$.%s')", column, jsonKey)
		},
		Cast: func(expr, sqlType string) string {
			return fmt.Sprintf("CAST(%s AS %s)", expr, sqlType)
		},
	}
}

// PostgresJSONDialect extracts via the ->> operator against a jsonb column.
func PostgresJSONDialect() Dialect {
	return Dialect{
		Extract: func(column, jsonKey string) string {
			return fmt.Sprintf("(%s ->> '%s')", column, jsonKey)
		},
		Cast: func(expr, sqlType string) string {
			return fmt.Sprintf("CAST(%s AS %s)", expr, sqlType)
		},
	}
}

// sqlTypeFor maps a ColumnType to the literal CAST target, independent of
// the dialect's DDL type mappings (intermediates are Go-owned, not the
// 7-column master contract, so they use their own small type vocabulary).
func sqlTypeFor(ct sqlgen.ColumnType) string {
	switch ct {
	case sqlgen.INTEGER:
		return "INTEGER"
	case sqlgen.NUMBER:
		return "REAL"
	case sqlgen.BOOLEAN:
		return "BOOLEAN"
	case sqlgen.TIMESTAMP:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

func selectBody(gen *sqlgen.Generator, dialect Dialect, masterSinkIdent string, specs []ColumnSpec) strings.Builder {
	rawPayloadCol := gen.Quote("raw_data_payload")

	var b strings.Builder
	b.WriteString("SELECT\n")
	for _, passthrough := range []string{"tenant_slug", "source_platform", "tenant_skey", "loaded_at"} {
		fmt.Fprintf(&b, "\t%s,\n", gen.Quote(passthrough))
	}

	for _, spec := range specs {
		switch {
		case spec.Expression != "":
			fmt.Fprintf(&b, "\t%s AS %s,\n", spec.Expression, gen.Quote(spec.Alias))
		case spec.KeepAsJSON:
			fmt.Fprintf(&b, "\t%s AS %s,\n", dialect.Extract(rawPayloadCol, spec.JSONKey), gen.Quote(spec.Alias))
		default:
			extracted := dialect.Extract(rawPayloadCol, spec.JSONKey)
			fmt.Fprintf(&b, "\t%s AS %s,\n", dialect.Cast(extracted, sqlTypeFor(spec.CastTo)), gen.Quote(spec.Alias))
		}
	}

	fmt.Fprintf(&b, "\t%s\n", rawPayloadCol)
	fmt.Fprintf(&b, "FROM %s\n", masterSinkIdent)
	return b
}

// Statement builds the intermediate model's materialized SELECT: passthrough
// columns first, then every extracted column, filtered to one tenant and
// source, over the master sink identified by masterSinkIdent. The tenant/source
// filter is left as the dialect's positional placeholders, for callers that
// execute through a prepared statement.
func Statement(gen *sqlgen.Generator, dialect Dialect, masterSinkIdent string, specs []ColumnSpec) string {
	b := selectBody(gen, dialect, masterSinkIdent, specs)
	fmt.Fprintf(&b, "WHERE %s = %s AND %s = %s;",
		gen.Quote("tenant_slug"), gen.Placeholder(0),
		gen.Quote("source_platform"), gen.Placeholder(1))
	return b.String()
}

// CreateViewStatement builds the same SELECT as Statement, but with the
// tenant/source filter inlined as dialect literals and wrapped in a
// CREATE VIEW, for callers (the model builder) that submit it as one bare,
// parameterless DDL statement.
func CreateViewStatement(gen *sqlgen.Generator, dialect Dialect, viewName, masterSinkIdent, tenantSlug, sourcePlatform string, specs []ColumnSpec) string {
	b := selectBody(gen, dialect, masterSinkIdent, specs)
	fmt.Fprintf(&b, "WHERE %s = %s AND %s = %s;",
		gen.Quote("tenant_slug"), gen.ValueRenderer.Render(tenantSlug),
		gen.Quote("source_platform"), gen.ValueRenderer.Render(sourcePlatform))
	return fmt.Sprintf("CREATE VIEW IF NOT EXISTS %s AS\n%s", gen.Quote(viewName), b.String())
}

// IntermediateName is the deterministic name of a tenant+source intermediate
// model for one master model.
func IntermediateName(tenantSlug, sourcePlatform, object string) string {
	return fmt.Sprintf("int_%s__%s_%s", tenantSlug, sourcePlatform, object)
}
