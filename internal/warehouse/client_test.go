package warehouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thedatagata/control-plane/internal/sqlgen"
)

func openMemory(t *testing.T) Client {
	t.Helper()
	c, err := Open(context.Background(), "sqlite3", "file::memory:?cache=shared", sqlgen.SQLiteDialect())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestExecuteAndQuery(t *testing.T) {
	ctx := context.Background()
	c := openMemory(t)

	_, err := c.Execute(ctx, `CREATE TABLE widgets ("id" INTEGER, "name" TEXT);`)
	require.NoError(t, err)

	_, err = c.Execute(ctx, `INSERT INTO widgets ("id", "name") VALUES (?, ?);`, 1, "sprocket")
	require.NoError(t, err)

	rows, err := c.Query(ctx, `SELECT "id", "name" FROM widgets;`)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.EqualValues(t, 1, rows[0]["id"])
	require.Equal(t, "sprocket", rows[0]["name"])
}

func TestTransactionalRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	c := openMemory(t)

	_, err := c.Execute(ctx, `CREATE TABLE widgets ("id" INTEGER);`)
	require.NoError(t, err)

	err = c.Transactional(ctx, func(tx Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO widgets ("id") VALUES (?);`, 1); err != nil {
			return err
		}
		return assertBoom()
	})
	require.Error(t, err)

	rows, err := c.Query(ctx, `SELECT "id" FROM widgets;`)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func assertBoom() error {
	return errBoom{}
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func TestAdvisoryLockSerializesCallers(t *testing.T) {
	locks := NewAdvisoryLocks()
	ctx := context.Background()

	var order []int
	done := make(chan struct{}, 2)

	go func() {
		_ = locks.WithLock(ctx, "shopify_v1_orders", func() error {
			order = append(order, 1)
			return nil
		})
		done <- struct{}{}
	}()
	go func() {
		_ = locks.WithLock(ctx, "shopify_v1_orders", func() error {
			order = append(order, 2)
			return nil
		})
		done <- struct{}{}
	}()

	<-done
	<-done
	require.Len(t, order, 2)
}
