// Package warehouse is the thin Warehouse Client: it wraps
// the target SQL engine, submitting statements, returning buffered query
// results, enumerating catalog objects, and scoping blocks to a
// transaction, with the dialect captured in a sqlgen.Generator rather than
// in this package. It has no MERGE method: the push package renders its
// MERGE (or SQLite equivalent) statement and submits it through Execute.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/thedatagata/control-plane/internal/fingerprint"
	"github.com/thedatagata/control-plane/internal/sqlgen"
)

// Row is a single query result row, keyed by column name. The control
// plane's tables are narrow and JSON-heavy, so a map is a reasonable
// representation rather than forcing callers to Scan into structs.
type Row map[string]interface{}

// Client is the Warehouse Client contract used by the components that talk
// to the warehouse (Blueprint Registry, Scaffolder, Push Circuit,
// Orchestrator, Observability Collector). The Intermediate Unpacker and
// Engine Library only render SQL and do not use it.
type Client interface {
	// Execute runs a single statement with no result set.
	Execute(ctx context.Context, stmt string, args ...interface{}) (rowsAffected int64, err error)
	// Query runs a statement and returns all rows. The control plane's
	// catalog/introspection queries are always small (table lists, column
	// descriptions, merge-result counts), so buffering is acceptable.
	Query(ctx context.Context, stmt string, args ...interface{}) ([]Row, error)
	// Describe returns the observed (name, type) pairs of a relation, used
	// by the Scaffolder to compute a fingerprint.
	Describe(ctx context.Context, relation string) ([]fingerprint.Column, error)
	// ListTables enumerates relations in a schema.
	ListTables(ctx context.Context, schema string) ([]string, error)
	// Transactional scopes a block to a single transaction, guaranteeing
	// commit on success and rollback on any exit path including panics.
	Transactional(ctx context.Context, block func(tx Tx) error) error
	// Generator returns the dialect-specific SQL generator for this target.
	Generator() *sqlgen.Generator
	// Close releases underlying resources.
	Close() error
}

// Tx is the subset of *sql.Tx the control plane needs inside a
// Transactional block.
type Tx interface {
	Exec(ctx context.Context, stmt string, args ...interface{}) (rowsAffected int64, err error)
	Query(ctx context.Context, stmt string, args ...interface{}) ([]Row, error)
}

// std is the *database/sql-backed implementation shared by every supported
// target; only the driver name, DSN, and sqlgen.Generator vary.
type std struct {
	db     *sql.DB
	gen    *sqlgen.Generator
	driver string
}

// Open connects to driverName at dsn using the given dialect generator.
func Open(ctx context.Context, driverName, dsn string, gen *sqlgen.Generator) (Client, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open(%s): %w", driverName, err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("connecting to %s warehouse: %w", driverName, err)
	}
	return &std{db: db, gen: gen, driver: driverName}, nil
}

func (s *std) Generator() *sqlgen.Generator { return s.gen }

func (s *std) Close() error { return s.db.Close() }

func (s *std) Execute(ctx context.Context, stmt string, args ...interface{}) (int64, error) {
	res, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("executing statement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		// Not every driver (notably some DDL paths) supports RowsAffected;
		// treat that as "unknown" rather than an error.
		return 0, nil
	}
	return n, nil
}

func (s *std) Query(ctx context.Context, stmt string, args ...interface{}) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("querying: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func (s *std) Describe(ctx context.Context, relation string) ([]fingerprint.Column, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT 0;", relation))
	if err != nil {
		return nil, fmt.Errorf("describing %s: %w", relation, err)
	}
	defer rows.Close()
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("reading column types of %s: %w", relation, err)
	}
	out := make([]fingerprint.Column, 0, len(types))
	for _, ty := range types {
		out = append(out, fingerprint.Column{Name: ty.Name(), Type: ty.DatabaseTypeName()})
	}
	return out, nil
}

func (s *std) ListTables(ctx context.Context, schema string) ([]string, error) {
	rows, err := s.Query(ctx,
		"SELECT table_name FROM information_schema.tables WHERE table_schema = ?;", schema)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		if name, ok := r["table_name"].(string); ok {
			out = append(out, name)
		}
	}
	return out, nil
}

func (s *std) Transactional(ctx context.Context, block func(tx Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("BeginTx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = sqlTx.Rollback()
		}
	}()

	if err = block(&stdTx{ctx: ctx, tx: sqlTx}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("Commit: %w", err)
	}
	return nil
}

type stdTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *stdTx) Exec(ctx context.Context, stmt string, args ...interface{}) (int64, error) {
	res, err := t.tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func (t *stdTx) Query(ctx context.Context, stmt string, args ...interface{}) ([]Row, error) {
	rows, err := t.tx.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []Row
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
