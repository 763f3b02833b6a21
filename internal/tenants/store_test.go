package tenants

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	mvccpb "go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// fakeKV is an in-memory stand-in for clientv3.KV. Keys ending in "/" are
// treated as prefix scans (matching every real call this package makes);
// all other keys are exact lookups. CreateRevision is preserved across
// overwrites, mirroring real etcd semantics.
type fakeKV struct {
	mu   sync.Mutex
	data map[string]*mvccpb.KeyValue
	rev  int64
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string]*mvccpb.KeyValue)}
}

func (f *fakeKV) Get(_ context.Context, key string, _ ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if strings.HasSuffix(key, "/") {
		var kvs []*mvccpb.KeyValue
		for k, v := range f.data {
			if strings.HasPrefix(k, key) {
				kvs = append(kvs, v)
			}
		}
		for i := 0; i < len(kvs); i++ {
			for j := i + 1; j < len(kvs); j++ {
				if string(kvs[j].Key) < string(kvs[i].Key) {
					kvs[i], kvs[j] = kvs[j], kvs[i]
				}
			}
		}
		return &clientv3.GetResponse{Kvs: kvs, Count: int64(len(kvs))}, nil
	}

	v, ok := f.data[key]
	if !ok {
		return &clientv3.GetResponse{}, nil
	}
	return &clientv3.GetResponse{Kvs: []*mvccpb.KeyValue{v}, Count: 1}, nil
}

func (f *fakeKV) Put(_ context.Context, key, val string, _ ...clientv3.OpOption) (*clientv3.PutResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.rev++
	createRev := f.rev
	if existing, ok := f.data[key]; ok {
		createRev = existing.CreateRevision
	}
	f.data[key] = &mvccpb.KeyValue{
		Key:            []byte(key),
		Value:          []byte(val),
		CreateRevision: createRev,
		ModRevision:    f.rev,
	}
	return &clientv3.PutResponse{}, nil
}

func testConfig(slug string, sources ...string) TenantConfig {
	cfg := TenantConfig{
		Slug:         slug,
		BusinessName: slug + " inc",
		Status:       StatusOnboarding,
		Sources:      make(map[string]SourceConfig, len(sources)),
		SourceOrder:  append([]string(nil), sources...),
	}
	for _, s := range sources {
		cfg.Sources[s] = SourceConfig{Enabled: true}
	}
	return cfg
}

func TestUpsertAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newFakeKV(), "")

	require.NoError(t, store.Upsert(ctx, testConfig("tyrell_corp", "shopify", "google_ads")))

	got, ok, err := store.Get(ctx, "tyrell_corp")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, StatusOnboarding, got.Status)
	require.Equal(t, []string{"shopify", "google_ads"}, got.EnabledSources())
}

func TestGetMissingTenant(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newFakeKV(), "")

	_, ok, err := store.Get(ctx, "nobody")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestListPreservesInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newFakeKV(), "")

	require.NoError(t, store.Upsert(ctx, testConfig("zeta_corp")))
	require.NoError(t, store.Upsert(ctx, testConfig("alpha_corp")))
	require.NoError(t, store.Upsert(ctx, testConfig("mu_corp")))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, []string{"zeta_corp", "alpha_corp", "mu_corp"}, []string{list[0].Slug, list[1].Slug, list[2].Slug})
}

func TestMarkStatusTransitionsAndRecordsHistory(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newFakeKV(), "")

	require.NoError(t, store.Upsert(ctx, testConfig("tyrell_corp", "shopify")))
	require.NoError(t, store.MarkStatus(ctx, "tyrell_corp", StatusActive))

	got, ok, err := store.Get(ctx, "tyrell_corp")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, StatusActive, got.Status)

	history, err := store.History(ctx, "tyrell_corp")
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, 1, history[0].Version)
	require.Equal(t, 2, history[1].Version)
	require.Contains(t, string(history[1].Patch), "active")
}

func TestMarkStatusUnknownTenantFails(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newFakeKV(), "")

	err := store.MarkStatus(ctx, "nobody", StatusActive)
	require.Error(t, err)
}

func TestParseOnboardingYAMLPreservesSourceOrder(t *testing.T) {
	doc := []byte(`
tenant_slug: tyrell_corp
business_name: Tyrell Corporation
sources:
  - name: shopify
    enabled: true
  - name: google_ads
    enabled: true
  - name: facebook_ads
    enabled: false
`)
	cfg, err := ParseOnboardingYAML(doc)
	require.NoError(t, err)
	require.Equal(t, "tyrell_corp", cfg.Slug)
	require.Equal(t, StatusOnboarding, cfg.Status)
	require.Equal(t, []string{"shopify", "google_ads", "facebook_ads"}, cfg.SourceOrder)
	require.Equal(t, []string{"shopify", "google_ads"}, cfg.EnabledSources())
}

func TestParseOnboardingYAMLRequiresSlug(t *testing.T) {
	_, err := ParseOnboardingYAML([]byte(`business_name: Missing Slug Inc`))
	require.Error(t, err)
}
