// Package push implements the Push Circuit post-hook: the MERGE that moves
// a tenant's staging-view rows into a shared master sink, keyed by
// (tenant_slug, source_platform, payload-content-hash) so re-running it
// against unchanged rows is a no-op.
package push

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/thedatagata/control-plane/internal/errkind"
	"github.com/thedatagata/control-plane/internal/sqlgen"
	"github.com/thedatagata/control-plane/internal/warehouse"
)

// Circuit runs push post-hooks, serializing concurrent MERGEs into the same
// master sink with a named advisory lock (the warehouse's own MERGE
// isolation is not assumed to be sufficient on its own, per the
// multi-tenant concurrency contract).
type Circuit struct {
	wc    warehouse.Client
	locks *warehouse.AdvisoryLocks
}

// New builds a Circuit over wc, with its own advisory lock table.
func New(wc warehouse.Client) *Circuit {
	return &Circuit{wc: wc, locks: warehouse.NewAdvisoryLocks()}
}

// matchColumns is the push circuit's fixed MERGE match key: tenant, source,
// and the JSON payload. On dialects with a native md5() (the Postgres
// family), the payload side of the match is content-hashed first; SQLite
// has no builtin md5(), so the payload column is compared directly — still
// a valid equality match, just without the intermediate digest.
func matchColumns(gen *sqlgen.Generator) []sqlgen.MergeMatchColumn {
	payload := sqlgen.MergeMatchColumn{Column: gen.Quote("raw_data_payload")}
	if gen.SupportsMerge {
		payload.HashExpr = "md5(CAST(%s AS TEXT))"
	}
	return []sqlgen.MergeMatchColumn{
		{Column: gen.Quote("tenant_slug")},
		{Column: gen.Quote("source_platform")},
		payload,
	}
}

// Run executes the push circuit's idempotent upsert of stagingViewName's
// rows into masterModelID: MERGE on dialects that support it, an equivalent
// INSERT ... WHERE NOT EXISTS otherwise. It serializes on an advisory lock
// scoped by masterModelID, and wraps any warehouse failure in
// errkind.MergeFailureError.
func (c *Circuit) Run(ctx context.Context, masterModelID, stagingViewName string) error {
	gen := c.wc.Generator()
	target := sqlgen.MasterSinkTable(gen, masterModelID)
	source := &sqlgen.Table{Identifier: gen.Quote(stagingViewName)}

	var stmt string
	if gen.SupportsMerge {
		stmt = gen.MergeStatement(target, source, matchColumns(gen))
	} else {
		stmt = gen.InsertWhereNotExistsStatement(target, source, matchColumns(gen))
	}

	err := c.locks.WithLock(ctx, masterModelID, func() error {
		_, execErr := c.wc.Execute(ctx, stmt)
		return execErr
	})
	if err != nil {
		log.WithField("master_model_id", masterModelID).WithError(err).Error("push circuit merge failed")
		return &errkind.MergeFailureError{MasterModelID: masterModelID, Cause: err}
	}
	return nil
}
