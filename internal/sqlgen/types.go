package sqlgen

import "fmt"

// ColumnType is a minimal, database-agnostic set of types a Column may hold,
// restricted to what the control plane's JSON-oriented tables actually need.
type ColumnType string

const (
	STRING    ColumnType = "string"
	BOOLEAN   ColumnType = "boolean"
	INTEGER   ColumnType = "integer"
	NUMBER    ColumnType = "number"
	JSON      ColumnType = "json"
	TIMESTAMP ColumnType = "timestamp"
)

// Column describes one SQL table column.
type Column struct {
	Name       string
	Identifier string
	Comment    string
	PrimaryKey bool
	Type       ColumnType
	NotNull    bool
}

// Table describes a database table sufficient to generate DDL/DML for it.
type Table struct {
	Name        string
	Identifier  string
	Comment     string
	Columns     []Column
	IfNotExists bool
}

// GetColumn returns the Column with the given Name, or nil.
func (t Table) GetColumn(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// ResolvedColumnType is a dialect's DDL spelling of a ColumnType.
type ResolvedColumnType struct {
	SQLType string
}

// TypeMapper resolves a Column to a dialect-specific SQL type.
type TypeMapper interface {
	GetColumnType(col *Column) (*ResolvedColumnType, error)
}

// ConstColumnType is a TypeMapper whose SQL spelling never varies.
type ConstColumnType ResolvedColumnType

func (c ConstColumnType) GetColumnType(*Column) (*ResolvedColumnType, error) {
	r := ResolvedColumnType(c)
	return &r, nil
}

// RawConstColumnType builds a ConstColumnType from a literal SQL type string.
func RawConstColumnType(sql string) ConstColumnType {
	return ConstColumnType{SQLType: sql}
}

// ColumnTypeMapper dispatches to a TypeMapper by ColumnType.
type ColumnTypeMapper map[ColumnType]TypeMapper

func (m ColumnTypeMapper) GetColumnType(col *Column) (*ResolvedColumnType, error) {
	mapper, ok := m[col.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported column type %q", col.Type)
	}
	return mapper.GetColumnType(col)
}

// NullableTypeMapping appends NULL/NOT NULL text based on Column.NotNull.
type NullableTypeMapping struct {
	NotNullText string
	Inner       TypeMapper
}

func (m NullableTypeMapping) GetColumnType(col *Column) (*ResolvedColumnType, error) {
	ty, err := m.Inner.GetColumnType(col)
	if err != nil {
		return nil, err
	}
	if col.NotNull && m.NotNullText != "" {
		return &ResolvedColumnType{SQLType: ty.SQLType + " " + m.NotNullText}, nil
	}
	return ty, nil
}

// Generator emits dialect-specific SQL for Table descriptions.
type Generator struct {
	Placeholder        func(int) string
	IdentifierRenderer *Renderer
	ValueRenderer      *Renderer
	TypeMappings       TypeMapper
	// JSONObjectFunc is the dialect's function for building a JSON object
	// literal from alternating key/value arguments (e.g. "json_object" on
	// SQLite, "jsonb_build_object" on Postgres-family engines). Used by the
	// scaffolder to pack a landed row's columns into raw_data_payload.
	JSONObjectFunc string
	// SupportsMerge reports whether the dialect accepts ISO SQL:2003's MERGE
	// INTO ... USING ... WHEN NOT MATCHED syntax. SQLite does not; the push
	// circuit falls back to an equivalent INSERT ... WHERE NOT EXISTS there.
	SupportsMerge bool
}

// QuestionMarkPlaceholder returns "?", used by SQLite.
func QuestionMarkPlaceholder(int) string { return "?" }

// DollarNPlaceholder returns "$N" (1-indexed), used by Postgres-family dialects.
func DollarNPlaceholder(i int) string { return fmt.Sprintf("$%d", i+1) }

// Quote renders a table/column identifier through the dialect's wrapper,
// unless it needs no wrapping.
func (g *Generator) Quote(name string) string {
	return g.IdentifierRenderer.Render(name)
}
