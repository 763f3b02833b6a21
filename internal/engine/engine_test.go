package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thedatagata/control-plane/internal/sqlgen"
)

func TestRegistryLooksUpBuiltins(t *testing.T) {
	r := NewRegistry()

	fn, ok := r.Lookup("shopify", DomainOrders)
	require.True(t, ok)
	require.NotNil(t, fn)

	_, ok = r.Lookup("shopify", DomainSessions)
	require.False(t, ok)
}

func TestSourcesForDomainIncludesAllAdPerformanceEngines(t *testing.T) {
	r := NewRegistry()
	sources := r.SourcesForDomain(DomainAdPerformance)
	require.ElementsMatch(t, []string{"facebook_ads", "instagram_ads", "google_ads"}, sources)
}

func TestColumnMapEngineRendersShopifyOrders(t *testing.T) {
	gen := sqlgen.SQLiteDialect()
	r := NewRegistry()
	fn, ok := r.Lookup("shopify", DomainOrders)
	require.True(t, ok)

	stmt, err := fn(&BuildContext{
		Gen:            gen,
		TenantSlug:     "acme",
		SourcePlatform: "shopify",
		Intermediate:   `"int_acme__shopify_orders"`,
	})
	require.NoError(t, err)
	require.Contains(t, stmt, `CAST(id AS TEXT) AS "order_id"`)
	require.Contains(t, stmt, `FROM "int_acme__shopify_orders";`)
}

func TestTypedEmptyResultMatchesCanonicalSchema(t *testing.T) {
	gen := sqlgen.SQLiteDialect()
	stmt, err := TypedEmptyResult(gen, DomainOrders, nil)
	require.NoError(t, err)
	require.Contains(t, stmt, `CAST(NULL AS TEXT) AS "order_id"`)
	require.Contains(t, stmt, "WHERE 1=0;")
}

func TestSessionsEngineBuildsGapBasedSessionization(t *testing.T) {
	gen := sqlgen.SQLiteDialect()
	fn := SessionsEngine()
	stmt, err := fn(&BuildContext{
		Gen:              gen,
		TenantSlug:       "acme",
		SourcePlatform:   "google_analytics",
		Intermediate:     `"int_acme__google_analytics_events"`,
		FunnelSteps:      []string{"page_view", "add_to_cart", "purchase"},
		ConversionEvents: []string{"purchase"},
	})
	require.NoError(t, err)
	require.Contains(t, stmt, "LAG(event_timestamp)")
	require.Contains(t, stmt, "> 1800")
	require.Contains(t, stmt, `"funnel_step_1_page_view"`)
	require.Contains(t, stmt, `"funnel_step_3_purchase"`)
	require.Contains(t, stmt, "funnel_max_step")
	require.Contains(t, stmt, `"is_conversion_session"`)
}

func TestSessionsEngineWithNativeSessionIDSkipsGapComputation(t *testing.T) {
	gen := sqlgen.SQLiteDialect()
	fn := SessionsEngine()
	stmt, err := fn(&BuildContext{
		Gen:                   gen,
		TenantSlug:            "acme",
		SourcePlatform:        "segment",
		Intermediate:          `"int_acme__segment_events"`,
		NativeSessionIDColumn: "session_id",
	})
	require.NoError(t, err)
	require.NotContains(t, stmt, "LAG(event_timestamp)")
	require.Contains(t, stmt, `"session_id" AS session_id`)
}

func TestSessionsEngineEmptyConversionListMeansNoConversions(t *testing.T) {
	gen := sqlgen.SQLiteDialect()
	fn := SessionsEngine()
	stmt, err := fn(&BuildContext{
		Gen:            gen,
		TenantSlug:     "acme",
		SourcePlatform: "google_analytics",
		Intermediate:   `"int_acme__google_analytics_events"`,
	})
	require.NoError(t, err)
	require.Contains(t, stmt, `0 AS "is_conversion_session"`)
}

func TestUsersEngineTransactionIDMatch(t *testing.T) {
	gen := sqlgen.SQLiteDialect()
	fn := UsersEngine()
	stmt, err := fn(&BuildContext{
		Gen:                gen,
		TenantSlug:         "acme",
		SourcePlatform:     "google_analytics",
		Intermediate:       `"int_acme__google_analytics_events"`,
		IdentityStrategy:   IdentityTransactionIDMatch,
		OrdersIntermediate: `"int_acme__shopify_orders"`,
	})
	require.NoError(t, err)
	require.Contains(t, stmt, "identity AS (")
	require.Contains(t, stmt, "CAST(orders.order_id AS TEXT) = aggregated.max_transaction_id")
	require.Contains(t, stmt, `"is_customer"`)
}

func TestUsersEngineNoStrategyYieldsNonCustomer(t *testing.T) {
	gen := sqlgen.SQLiteDialect()
	fn := UsersEngine()
	stmt, err := fn(&BuildContext{
		Gen:            gen,
		TenantSlug:     "acme",
		SourcePlatform: "google_analytics",
		Intermediate:   `"int_acme__google_analytics_events"`,
	})
	require.NoError(t, err)
	require.Contains(t, stmt, `0 AS "is_customer"`)
	require.NotContains(t, stmt, "identity AS (")
}
