package sqlgen

import "strings"

// CreateTableStatement renders a CREATE TABLE [IF NOT EXISTS] for the given
// table, in the generator's dialect. Mirrors materialize/sql/std_endpoint.go
// CreateTableStatement, trimmed to what the 7-column master contract and the
// control plane's other generated tables need (no temp tables, no comments
// inline — comments are carried only in Table/Column metadata for tooling).
func (g *Generator) CreateTableStatement(table *Table) (string, error) {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	if table.IfNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	b.WriteString(table.Identifier)
	b.WriteString(" (\n")

	for i, col := range table.Columns {
		if i > 0 {
			b.WriteString(",\n")
		}
		b.WriteString("\t")
		b.WriteString(col.Identifier)
		b.WriteRune(' ')
		resolved, err := g.TypeMappings.GetColumnType(&col)
		if err != nil {
			return "", err
		}
		b.WriteString(resolved.SQLType)
	}

	if hasPK := tableHasPrimaryKey(table); hasPK {
		b.WriteString(",\n\n\tPRIMARY KEY(")
		first := true
		for _, col := range table.Columns {
			if col.PrimaryKey {
				if !first {
					b.WriteString(", ")
				}
				first = false
				b.WriteString(col.Identifier)
			}
		}
		b.WriteString(")")
	}
	b.WriteString("\n);")
	return b.String(), nil
}

func tableHasPrimaryKey(table *Table) bool {
	for _, col := range table.Columns {
		if col.PrimaryKey {
			return true
		}
	}
	return false
}

// InsertStatement returns an INSERT for all of the table's columns in
// declared order, with dialect placeholders, plus the ordered column names
// (used by callers to build the parameter slice).
func (g *Generator) InsertStatement(table *Table) (sql string, columnNames []string, err error) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table.Identifier)
	b.WriteString(" (")
	for i, col := range table.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(col.Identifier)
		columnNames = append(columnNames, col.Name)
	}
	b.WriteString(") VALUES (")
	for i := range table.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(g.Placeholder(i))
	}
	b.WriteString(");")
	return b.String(), columnNames, nil
}

// MergeMatchColumn is one equality clause of a MERGE's match predicate.
type MergeMatchColumn struct {
	// Column is compared directly between target and source.
	Column string
	// HashExpr, if non-empty, is a dialect SQL expression template with a
	// single %s placeholder for the column identifier, applied to both
	// sides of the match (e.g. content-hashing a JSON payload column before
	// comparing it).
	HashExpr string
}

// MergeStatement renders the push-circuit's idempotent upsert: `MERGE INTO
// target USING source ON <match> WHEN NOT MATCHED THEN INSERT`. The match
// predicate is the only mutable part of the statement — everything else is
// static per the 7-column master contract — which is what keeps this
// operation idempotent under at-least-once re-execution.
func (g *Generator) MergeStatement(target, source *Table, match []MergeMatchColumn) string {
	var b strings.Builder
	b.WriteString("MERGE INTO ")
	b.WriteString(target.Identifier)
	b.WriteString(" AS t USING ")
	b.WriteString(source.Identifier)
	b.WriteString(" AS s ON ")

	for i, m := range match {
		if i > 0 {
			b.WriteString(" AND ")
		}
		tCol := "t." + m.Column
		sCol := "s." + m.Column
		if m.HashExpr != "" {
			b.WriteString(g.sprintfHash(m.HashExpr, tCol))
			b.WriteString(" = ")
			b.WriteString(g.sprintfHash(m.HashExpr, sCol))
		} else {
			b.WriteString(tCol)
			b.WriteString(" = ")
			b.WriteString(sCol)
		}
	}

	b.WriteString("\nWHEN NOT MATCHED THEN INSERT (")
	for i, col := range target.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(col.Identifier)
	}
	b.WriteString(") VALUES (")
	for i, col := range target.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("s." + col.Identifier)
	}
	b.WriteString(");")
	return b.String()
}

// InsertWhereNotExistsStatement renders the push circuit's idempotent
// upsert for dialects without MERGE support (e.g. SQLite): `INSERT INTO
// target SELECT ... FROM source AS s WHERE NOT EXISTS (SELECT 1 FROM
// target AS t WHERE <match>)`. Semantically equivalent to MergeStatement's
// WHEN NOT MATCHED THEN INSERT branch.
func (g *Generator) InsertWhereNotExistsStatement(target, source *Table, match []MergeMatchColumn) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(target.Identifier)
	b.WriteString(" (")
	for i, col := range target.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(col.Identifier)
	}
	b.WriteString(")\nSELECT ")
	for i, col := range target.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("s." + col.Identifier)
	}
	b.WriteString("\nFROM ")
	b.WriteString(source.Identifier)
	b.WriteString(" AS s\nWHERE NOT EXISTS (\n\tSELECT 1 FROM ")
	b.WriteString(target.Identifier)
	b.WriteString(" AS t WHERE ")
	for i, m := range match {
		if i > 0 {
			b.WriteString(" AND ")
		}
		tCol := "t." + m.Column
		sCol := "s." + m.Column
		if m.HashExpr != "" {
			b.WriteString(g.sprintfHash(m.HashExpr, tCol))
			b.WriteString(" = ")
			b.WriteString(g.sprintfHash(m.HashExpr, sCol))
		} else {
			b.WriteString(tCol)
			b.WriteString(" = ")
			b.WriteString(sCol)
		}
	}
	b.WriteString("\n);")
	return b.String()
}

func (g *Generator) sprintfHash(template, col string) string {
	out := ""
	for i := 0; i < len(template); i++ {
		if template[i] == '%' && i+1 < len(template) && template[i+1] == 's' {
			out += col
			i++
			continue
		}
		out += string(template[i])
	}
	return out
}

// SelectAll renders `SELECT * FROM <identifier>;` — the source-shim passthrough.
func SelectAll(fromIdentifier string) string {
	return "SELECT * FROM " + fromIdentifier + ";"
}
