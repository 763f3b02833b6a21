package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thedatagata/control-plane/internal/catalog"
	"github.com/thedatagata/control-plane/internal/errkind"
	"github.com/thedatagata/control-plane/internal/sqlgen"
	"github.com/thedatagata/control-plane/internal/warehouse"
)

func openMemory(t *testing.T) warehouse.Client {
	t.Helper()
	c, err := warehouse.Open(context.Background(), "sqlite3", "file::memory:?cache=shared", sqlgen.SQLiteDialect())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestInitializeAndLookup(t *testing.T) {
	ctx := context.Background()
	wc := openMemory(t)
	reg, err := New(wc)
	require.NoError(t, err)

	cat := catalog.New()
	require.NoError(t, reg.Initialize(ctx, cat))

	entries := cat.ListSupported()
	require.NotEmpty(t, entries)

	for _, e := range entries[:3] {
		blueprints, err := reg.AllBlueprints(ctx)
		require.NoError(t, err)
		require.NotEmpty(t, blueprints)

		var found bool
		for _, bp := range blueprints {
			if bp.MasterModelID == e.MasterModelID() {
				found = true
				modelID, ok, err := reg.Lookup(ctx, bp.Fingerprint)
				require.NoError(t, err)
				require.True(t, ok)
				require.Equal(t, e.MasterModelID(), modelID)
			}
		}
		require.True(t, found, "expected %s in blueprint registry", e.MasterModelID())
	}
}

func TestLookupMissUnregistered(t *testing.T) {
	ctx := context.Background()
	wc := openMemory(t)
	reg, err := New(wc)
	require.NoError(t, err)

	require.NoError(t, reg.Initialize(ctx, catalog.New()))

	_, ok, err := reg.Lookup(ctx, "not-a-real-fingerprint")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestInitializeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	wc := openMemory(t)
	reg, err := New(wc)
	require.NoError(t, err)

	cat := catalog.New()
	require.NoError(t, reg.Initialize(ctx, cat))
	require.NoError(t, reg.Initialize(ctx, cat))

	blueprints, err := reg.AllBlueprints(ctx)
	require.NoError(t, err)
	require.Len(t, blueprints, len(cat.ListSupported()))
}

func TestCollidingFingerprintsAcrossDistinctModelsFail(t *testing.T) {
	ctx := context.Background()
	wc := openMemory(t)
	reg, err := New(wc)
	require.NoError(t, err)

	cols := []catalog.ColumnSpec{{Name: "id", Type: "string"}, {Name: "amount", Type: "number"}}
	// Two distinct entries whose MasterModelID differs but canonical columns
	// are identical collide on fingerprint; Initialize must reject it.
	entries := []catalog.ConnectorEntry{
		{Source: "alpha", APIVersion: "v1", Object: "orders", Columns: cols},
		{Source: "beta", APIVersion: "v1", Object: "orders", Columns: cols},
	}
	err = reg.Initialize(ctx, catalog.FromEntries(entries))
	require.Error(t, err)
	var collision *errkind.BlueprintCollisionError
	require.ErrorAs(t, err, &collision)
}
