// Package tenants implements the Tenants Manifest Store: a read-heavy
// ordered map from tenant_slug to TenantConfig, backed by etcd so that
// tenant state survives process restarts instead of living in a global map.
// Writes are serialized by a process-wide mutex; no etcd lease is taken.
package tenants

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// SourceConfig is one tenant's configuration for a single enabled/disabled
// source platform.
type SourceConfig struct {
	Enabled bool   `json:"enabled"`
	Logic   string `json:"logic,omitempty"`
}

// Status is a TenantConfig's lifecycle state.
type Status string

const (
	StatusOnboarding Status = "onboarding"
	StatusActive     Status = "active"
	StatusDisabled   Status = "disabled"
)

// TenantConfig is one tenant's enabled sources, per-source logic overrides,
// and lifecycle status.
type TenantConfig struct {
	Slug         string                  `json:"tenant_slug"`
	BusinessName string                  `json:"business_name"`
	Status       Status                  `json:"status"`
	Sources      map[string]SourceConfig `json:"sources"`
	// SourceOrder preserves the insertion order of Sources, since map
	// iteration order is not stable and the factory resolver's UNION ALL
	// branch order must be reproducible across runs.
	SourceOrder []string `json:"source_order"`

	createRevision int64
}

// EnabledSources returns the tenant's enabled source names in insertion
// order.
func (c TenantConfig) EnabledSources() []string {
	out := make([]string, 0, len(c.SourceOrder))
	for _, name := range c.SourceOrder {
		if sc, ok := c.Sources[name]; ok && sc.Enabled {
			out = append(out, name)
		}
	}
	return out
}

const defaultPrefix = "/control-plane/tenants/"

// kvClient is the narrow slice of clientv3.KV this package needs. A real
// *clientv3.Client satisfies it directly through its embedded KV interface;
// tests substitute an in-memory fake.
type kvClient interface {
	Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
	Put(ctx context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error)
}

// Store is the Tenants Manifest Store. Its write path is guarded by a
// process-wide mutex; its read path goes straight to etcd's own
// consistent snapshot, so concurrent readers never block on a writer.
type Store struct {
	kv     kvClient
	prefix string
	wmu    sync.Mutex

	history *historyLog
}

// NewStore builds a Store over the given etcd KV client. prefix, if empty,
// defaults to "/control-plane/tenants/".
func NewStore(kv kvClient, prefix string) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{kv: kv, prefix: prefix, history: newHistoryLog(kv, prefix)}
}

func (s *Store) key(slug string) string { return s.prefix + slug }

// Get returns the tenant's current config, or ok=false if not onboarded.
func (s *Store) Get(ctx context.Context, slug string) (TenantConfig, bool, error) {
	resp, err := s.kv.Get(ctx, s.key(slug))
	if err != nil {
		return TenantConfig{}, false, fmt.Errorf("getting tenant %s: %w", slug, err)
	}
	if len(resp.Kvs) == 0 {
		return TenantConfig{}, false, nil
	}
	var cfg TenantConfig
	if err := json.Unmarshal(resp.Kvs[0].Value, &cfg); err != nil {
		return TenantConfig{}, false, fmt.Errorf("decoding tenant %s: %w", slug, err)
	}
	cfg.createRevision = resp.Kvs[0].CreateRevision
	return cfg, true, nil
}

// List returns every tenant, ordered by original insertion (etcd
// create-revision), so factory resolution and onboarding reports are
// reproducible across runs.
func (s *Store) List(ctx context.Context) ([]TenantConfig, error) {
	resp, err := s.kv.Get(ctx, s.prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}
	out := make([]TenantConfig, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		if strings.HasPrefix(string(kv.Key), s.prefix+historySuffix) {
			continue // config-history entries share the tenant prefix
		}
		var cfg TenantConfig
		if err := json.Unmarshal(kv.Value, &cfg); err != nil {
			return nil, fmt.Errorf("decoding tenant at %s: %w", string(kv.Key), err)
		}
		cfg.createRevision = kv.CreateRevision
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].createRevision < out[j].createRevision })
	return out, nil
}

// Upsert writes cfg, preserving SourceOrder on first insert and appending a
// config-history entry (a JSON merge patch against the prior value, or the
// full document on first insert).
func (s *Store) Upsert(ctx context.Context, cfg TenantConfig) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	prior, existed, err := s.getLocked(ctx, cfg.Slug)
	if err != nil {
		return err
	}

	next, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding tenant %s: %w", cfg.Slug, err)
	}

	var priorJSON []byte
	if existed {
		priorJSON, err = json.Marshal(prior)
		if err != nil {
			return fmt.Errorf("encoding prior tenant %s: %w", cfg.Slug, err)
		}
	}

	if _, err := s.kv.Put(ctx, s.key(cfg.Slug), string(next)); err != nil {
		return fmt.Errorf("writing tenant %s: %w", cfg.Slug, err)
	}

	if err := s.history.record(ctx, cfg.Slug, priorJSON, next, time.Now()); err != nil {
		return fmt.Errorf("recording history for tenant %s: %w", cfg.Slug, err)
	}
	return nil
}

// getLocked is Get without acquiring wmu, for callers that already hold it.
func (s *Store) getLocked(ctx context.Context, slug string) (TenantConfig, bool, error) {
	return s.Get(ctx, slug)
}

// MarkStatus flips a tenant's status, recording the transition in the
// config-history log the same as any other Upsert.
func (s *Store) MarkStatus(ctx context.Context, slug string, status Status) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	cfg, ok, err := s.getLocked(ctx, slug)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("mark_status: tenant %s not onboarded", slug)
	}

	priorJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding prior tenant %s: %w", slug, err)
	}

	cfg.Status = status
	next, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding tenant %s: %w", slug, err)
	}

	if _, err := s.kv.Put(ctx, s.key(slug), string(next)); err != nil {
		return fmt.Errorf("writing tenant %s status: %w", slug, err)
	}
	return s.history.record(ctx, slug, priorJSON, next, time.Now())
}
