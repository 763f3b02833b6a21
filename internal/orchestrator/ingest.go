package orchestrator

import "context"

// LandedRelation is one table an ingestion run deposited for a tenant and
// source, named {tenant_slug}.{source}_{object} by convention.
type LandedRelation struct {
	Object string
}

// Ingestor invokes the external ingestion adapter for one tenant/source
// pair, bounded to the given days of history, and reports what landed.
// The control plane treats ingestion as an external system boundary: this
// package only drives it and reacts to its result.
type Ingestor interface {
	Ingest(ctx context.Context, tenantSlug, sourcePlatform string, days int) ([]LandedRelation, error)
}
