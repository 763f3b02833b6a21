package sqlgen

// SQLiteDialect returns a Generator for the sandbox (file-local) warehouse
// target, backed by mattn/go-sqlite3. Mirrors materialize/sql/sqlgen.go's
// SQLiteSQLGenerator.
func SQLiteDialect() *Generator {
	mappings := NullableTypeMapping{
		NotNullText: "NOT NULL",
		Inner: ColumnTypeMapper{
			INTEGER:   RawConstColumnType("INTEGER"),
			NUMBER:    RawConstColumnType("REAL"),
			BOOLEAN:   RawConstColumnType("BOOLEAN"),
			JSON:      RawConstColumnType("TEXT"),
			STRING:    RawConstColumnType("TEXT"),
			TIMESTAMP: RawConstColumnType("TEXT"),
		},
	}
	return &Generator{
		IdentifierRenderer: NewRenderer(nil, DoubleQuotesWrapper(), nil),
		ValueRenderer:      NewRenderer(DefaultQuoteSanitizer, SingleQuotesWrapper(), nil),
		Placeholder:        QuestionMarkPlaceholder,
		TypeMappings:       mappings,
		JSONObjectFunc:     "json_object",
		SupportsMerge:      false,
	}
}

// PostgresFamilyDialect returns a Generator for the "dev" managed-warehouse
// target. Most cloud analytical warehouses accepted for MERGE support
// (Postgres, Redshift, Snowflake) share this JSON/BIGINT/TIMESTAMP shape.
// Mirrors materialize/sql/sqlgen.go's PostgresSQLGenerator.
func PostgresFamilyDialect() *Generator {
	mappings := NullableTypeMapping{
		NotNullText: "NOT NULL",
		Inner: ColumnTypeMapper{
			INTEGER:   RawConstColumnType("BIGINT"),
			NUMBER:    RawConstColumnType("DOUBLE PRECISION"),
			BOOLEAN:   RawConstColumnType("BOOLEAN"),
			JSON:      RawConstColumnType("JSON"),
			STRING:    RawConstColumnType("TEXT"),
			TIMESTAMP: RawConstColumnType("TIMESTAMP"),
		},
	}
	return &Generator{
		IdentifierRenderer: NewRenderer(nil, DoubleQuotesWrapper(), nil),
		ValueRenderer:      NewRenderer(DefaultQuoteSanitizer, SingleQuotesWrapper(), nil),
		Placeholder:        DollarNPlaceholder,
		TypeMappings:       mappings,
		JSONObjectFunc:     "jsonb_build_object",
		SupportsMerge:      true,
	}
}

// MasterSinkTable returns the fixed 7-column master contract for the given
// master_model_id, rendered through the generator's identifier quoting.
func MasterSinkTable(gen *Generator, masterModelID string) *Table {
	ident := func(n string) string { return gen.Quote(n) }
	return &Table{
		Name:        masterModelID,
		Identifier:  ident(masterModelID),
		IfNotExists: true,
		Columns: []Column{
			{Name: "tenant_slug", Identifier: ident("tenant_slug"), Type: STRING, NotNull: true},
			{Name: "tenant_skey", Identifier: ident("tenant_skey"), Type: STRING, NotNull: true},
			{Name: "source_platform", Identifier: ident("source_platform"), Type: STRING, NotNull: true},
			{Name: "source_schema_hash", Identifier: ident("source_schema_hash"), Type: STRING, NotNull: true},
			{Name: "source_schema", Identifier: ident("source_schema"), Type: JSON, NotNull: true},
			{Name: "raw_data_payload", Identifier: ident("raw_data_payload"), Type: JSON, NotNull: true},
			{Name: "loaded_at", Identifier: ident("loaded_at"), Type: TIMESTAMP, NotNull: true},
		},
	}
}
