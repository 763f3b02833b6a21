package tenants

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// HistoryEntry is one row of the config-history governance table: a
// version of a tenant's config expressed as a merge patch against the
// previous version, for audit rather than replay.
type HistoryEntry struct {
	Slug      string          `json:"tenant_slug"`
	Version   int             `json:"version"`
	Patch     json.RawMessage `json:"patch"`
	ChangedAt time.Time       `json:"changed_at"`
}

const historySuffix = "history/"

type historyLog struct {
	kv     kvClient
	prefix string
}

func newHistoryLog(kv kvClient, tenantPrefix string) *historyLog {
	return &historyLog{kv: kv, prefix: tenantPrefix + historySuffix}
}

func (h *historyLog) key(slug string, version int) string {
	return fmt.Sprintf("%s%s/%06d", h.prefix, slug, version)
}

// record appends the diff from prior to next as the next version in the
// tenant's history. On first insert (prior == nil) the full document is
// recorded as the patch, since there is nothing to diff against.
func (h *historyLog) record(ctx context.Context, slug string, prior, next []byte, at time.Time) error {
	version, err := h.nextVersion(ctx, slug)
	if err != nil {
		return err
	}

	var patch []byte
	if prior == nil {
		patch = next
	} else {
		patch, err = jsonpatch.CreateMergePatch(prior, next)
		if err != nil {
			return fmt.Errorf("computing config patch for %s: %w", slug, err)
		}
	}

	entry := HistoryEntry{Slug: slug, Version: version, Patch: patch, ChangedAt: at}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding history entry for %s: %w", slug, err)
	}
	_, err = h.kv.Put(ctx, h.key(slug, version), string(raw))
	return err
}

func (h *historyLog) nextVersion(ctx context.Context, slug string) (int, error) {
	resp, err := h.kv.Get(ctx, h.prefix+slug+"/", clientv3.WithPrefix(), clientv3.WithCountOnly())
	if err != nil {
		return 0, fmt.Errorf("counting history for %s: %w", slug, err)
	}
	return int(resp.Count) + 1, nil
}

// List returns every history entry for a tenant, in version order.
func (h *historyLog) List(ctx context.Context, slug string) ([]HistoryEntry, error) {
	resp, err := h.kv.Get(ctx, h.prefix+slug+"/", clientv3.WithPrefix(), clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))
	if err != nil {
		return nil, fmt.Errorf("listing history for %s: %w", slug, err)
	}
	out := make([]HistoryEntry, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var entry HistoryEntry
		if err := json.Unmarshal(kv.Value, &entry); err != nil {
			return nil, fmt.Errorf("decoding history entry at %s: %w", string(kv.Key), err)
		}
		out = append(out, entry)
	}
	return out, nil
}

// History exposes a tenant's config-history governance table to callers
// outside this package. No HTTP route serves it.
func (s *Store) History(ctx context.Context, slug string) ([]HistoryEntry, error) {
	return s.history.List(ctx, slug)
}
