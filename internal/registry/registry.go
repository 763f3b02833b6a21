// Package registry implements the Blueprint Registry: a warehouse-backed
// table mapping each recognized source-object fingerprint to a
// master_model_id, populated once per catalog version.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/thedatagata/control-plane/internal/catalog"
	"github.com/thedatagata/control-plane/internal/errkind"
	"github.com/thedatagata/control-plane/internal/fingerprint"
	"github.com/thedatagata/control-plane/internal/sqlgen"
	"github.com/thedatagata/control-plane/internal/warehouse"
)

const tableName = "blueprint_registry"

// Blueprint is one row of the Blueprint Registry table.
type Blueprint struct {
	MasterModelID    string
	SourcePlatform   string
	APIVersion       string
	Object           string
	Fingerprint      string
	CanonicalColumns []fingerprint.Column
}

// Registry is the Blueprint Registry. It is read-only after Initialize
// completes; the lookup cache fronting the warehouse table never needs
// invalidation within a process lifetime because a catalog release always
// re-runs Initialize before new lookups are served.
type Registry struct {
	wc    warehouse.Client
	cache *lru.Cache[string, string] // fingerprint -> master_model_id
}

// New constructs a Registry bound to the given warehouse client.
func New(wc warehouse.Client) (*Registry, error) {
	cache, err := lru.New[string, string](4096)
	if err != nil {
		return nil, fmt.Errorf("allocating registry cache: %w", err)
	}
	return &Registry{wc: wc, cache: cache}, nil
}

func (r *Registry) table() *sqlgen.Table {
	gen := r.wc.Generator()
	ident := func(n string) string { return gen.Quote(n) }
	return &sqlgen.Table{
		Name:        tableName,
		Identifier:  ident(tableName),
		IfNotExists: true,
		Columns: []sqlgen.Column{
			{Name: "master_model_id", Identifier: ident("master_model_id"), Type: sqlgen.STRING, NotNull: true, PrimaryKey: true},
			{Name: "source_platform", Identifier: ident("source_platform"), Type: sqlgen.STRING, NotNull: true},
			{Name: "api_version", Identifier: ident("api_version"), Type: sqlgen.STRING, NotNull: true},
			{Name: "object", Identifier: ident("object"), Type: sqlgen.STRING, NotNull: true},
			{Name: "fingerprint", Identifier: ident("fingerprint"), Type: sqlgen.STRING, NotNull: true},
			{Name: "canonical_schema", Identifier: ident("canonical_schema"), Type: sqlgen.JSON, NotNull: true},
		},
	}
}

// Initialize stages every catalog entry, checks for fingerprint collisions
// across the whole batch, and repopulates the live table under a single
// transaction. Re-running Initialize with the same catalog is a no-op.
func (r *Registry) Initialize(ctx context.Context, cat *catalog.Catalog) error {
	entries := cat.ListSupported()

	type staged struct {
		Blueprint
	}
	var rows []staged
	byFingerprint := make(map[string]string, len(entries))

	for _, e := range entries {
		cols := make([]fingerprint.Column, 0, len(e.Columns))
		for _, c := range e.Columns {
			cols = append(cols, fingerprint.Column{Name: c.Name, Type: c.Type})
		}
		fp := fingerprint.Fingerprint(cols, nil)
		modelID := e.MasterModelID()

		if existing, ok := byFingerprint[fp]; ok && existing != modelID {
			return &errkind.BlueprintCollisionError{Fingerprint: fp, First: existing, Second: modelID}
		}
		byFingerprint[fp] = modelID

		rows = append(rows, staged{Blueprint{
			MasterModelID:    modelID,
			SourcePlatform:   e.Source,
			APIVersion:       e.APIVersion,
			Object:           e.Object,
			Fingerprint:      fp,
			CanonicalColumns: cols,
		}})
	}

	table := r.table()
	err := r.wc.Transactional(ctx, func(tx warehouse.Tx) error {
		createStmt, err := r.wc.Generator().CreateTableStatement(table)
		if err != nil {
			return errors.Wrap(err, "building registry CREATE TABLE")
		}
		if _, err := tx.Exec(ctx, createStmt); err != nil {
			return errors.Wrap(err, "creating blueprint_registry")
		}
		// Idempotent re-initialization: clear and repopulate under this txn.
		if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s;", table.Identifier)); err != nil {
			return errors.Wrap(err, "clearing blueprint_registry")
		}
		insertStmt, _, err := r.wc.Generator().InsertStatement(table)
		if err != nil {
			return errors.Wrap(err, "building registry INSERT")
		}
		for _, row := range rows {
			schemaJSON, err := json.Marshal(canonicalSchemaMap(row.CanonicalColumns))
			if err != nil {
				return errors.Wrap(err, "marshaling canonical schema")
			}
			if _, err := tx.Exec(ctx, insertStmt,
				row.MasterModelID, row.SourcePlatform, row.APIVersion, row.Object, row.Fingerprint, string(schemaJSON),
			); err != nil {
				return errors.Wrapf(err, "inserting blueprint %s", row.MasterModelID)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.cache.Purge()
	for fp, modelID := range byFingerprint {
		r.cache.Add(fp, modelID)
	}

	log.WithField("count", len(rows)).Info("blueprint registry initialized")
	return nil
}

func canonicalSchemaMap(cols []fingerprint.Column) map[string]string {
	m := make(map[string]string, len(cols))
	for _, c := range cols {
		m[c.Name] = c.Type
	}
	return m
}

// Lookup resolves a fingerprint to its master_model_id. Returns ("", false)
// if unregistered.
func (r *Registry) Lookup(ctx context.Context, fp string) (string, bool, error) {
	if modelID, ok := r.cache.Get(fp); ok {
		return modelID, true, nil
	}

	table := r.table()
	gen := r.wc.Generator()
	stmt := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s;",
		table.GetColumn("master_model_id").Identifier,
		table.Identifier,
		table.GetColumn("fingerprint").Identifier,
		gen.Placeholder(0),
	)
	rows, err := r.wc.Query(ctx, stmt, fp)
	if err != nil {
		return "", false, fmt.Errorf("querying blueprint registry: %w", err)
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	modelID, _ := rows[0]["master_model_id"].(string)
	r.cache.Add(fp, modelID)
	return modelID, true, nil
}

// AllBlueprints returns every registered blueprint, sorted by
// master_model_id, for use by closest-match search on UnknownSchema.
func (r *Registry) AllBlueprints(ctx context.Context) ([]Blueprint, error) {
	table := r.table()
	rows, err := r.wc.Query(ctx, fmt.Sprintf("SELECT * FROM %s;", table.Identifier))
	if err != nil {
		return nil, fmt.Errorf("listing blueprints: %w", err)
	}
	out := make([]Blueprint, 0, len(rows))
	for _, row := range rows {
		var schema map[string]string
		if raw, ok := row["canonical_schema"].(string); ok {
			_ = json.Unmarshal([]byte(raw), &schema)
		}
		cols := make([]fingerprint.Column, 0, len(schema))
		for name, ty := range schema {
			cols = append(cols, fingerprint.Column{Name: name, Type: ty})
		}
		sort.Slice(cols, func(i, j int) bool { return cols[i].Name < cols[j].Name })

		out = append(out, Blueprint{
			MasterModelID:    asString(row["master_model_id"]),
			SourcePlatform:   asString(row["source_platform"]),
			APIVersion:       asString(row["api_version"]),
			Object:           asString(row["object"]),
			Fingerprint:      asString(row["fingerprint"]),
			CanonicalColumns: cols,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MasterModelID < out[j].MasterModelID })
	return out, nil
}

// BlueprintByID returns the registered blueprint for a master_model_id, for
// callers that need its source platform, api version, and object back out
// (the model builder, deriving what to scaffold and unpack on top of it).
func (r *Registry) BlueprintByID(ctx context.Context, modelID string) (Blueprint, bool, error) {
	table := r.table()
	stmt := fmt.Sprintf("SELECT * FROM %s WHERE %s = %s;",
		table.Identifier,
		table.GetColumn("master_model_id").Identifier,
		r.wc.Generator().Placeholder(0),
	)
	rows, err := r.wc.Query(ctx, stmt, modelID)
	if err != nil {
		return Blueprint{}, false, fmt.Errorf("looking up blueprint %s: %w", modelID, err)
	}
	if len(rows) == 0 {
		return Blueprint{}, false, nil
	}
	row := rows[0]
	var schema map[string]string
	if raw, ok := row["canonical_schema"].(string); ok {
		_ = json.Unmarshal([]byte(raw), &schema)
	}
	cols := make([]fingerprint.Column, 0, len(schema))
	for name, ty := range schema {
		cols = append(cols, fingerprint.Column{Name: name, Type: ty})
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].Name < cols[j].Name })

	return Blueprint{
		MasterModelID:    asString(row["master_model_id"]),
		SourcePlatform:   asString(row["source_platform"]),
		APIVersion:       asString(row["api_version"]),
		Object:           asString(row["object"]),
		Fingerprint:      asString(row["fingerprint"]),
		CanonicalColumns: cols,
	}, true, nil
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}
