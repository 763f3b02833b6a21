// Package catalog is the static, versioned Connector Catalog: the
// in-process description of every (source, api_version, object) tuple the
// platform supports, and the canonical column list that defines its
// fingerprint. It is the input to Blueprint Registry initialization.
package catalog

import "sort"

// ColumnSpec describes a single column of a connector's canonical object
// schema, as it would be emitted by the upstream ingestion adapter.
type ColumnSpec struct {
	Name string
	Type string
}

// ConnectorEntry is one supported (source, api_version, object) tuple.
type ConnectorEntry struct {
	Source     string
	APIVersion string
	Object     string
	Columns    []ColumnSpec
}

// MasterModelID computes the {source}_{api_version}_{object} identity used
// throughout the platform.
func (e ConnectorEntry) MasterModelID() string {
	return e.Source + "_" + e.APIVersion + "_" + e.Object
}

// Catalog enumerates the supported connector surface.
type Catalog struct {
	entries []ConnectorEntry
}

// New returns the static catalog of supported connectors: the commerce,
// advertising, analytics and email-marketing platforms it ships entries for.
func New() *Catalog {
	return &Catalog{entries: builtinEntries()}
}

// FromEntries builds a Catalog from an explicit entry list, bypassing the
// builtin baseline. Used by tests exercising registry behavior against
// hand-picked entries rather than the full connector surface.
func FromEntries(entries []ConnectorEntry) *Catalog {
	return &Catalog{entries: entries}
}

// ListSupported returns every connector entry in a deterministic order,
// sorted by MasterModelID.
func (c *Catalog) ListSupported() []ConnectorEntry {
	out := append([]ConnectorEntry(nil), c.entries...)
	sort.Slice(out, func(i, j int) bool {
		return out[i].MasterModelID() < out[j].MasterModelID()
	})
	return out
}

func builtinEntries() []ConnectorEntry {
	etl := []ColumnSpec{
		{Name: "_dlt_id", Type: "string"},
		{Name: "_dlt_load_id", Type: "string"},
	}
	withETL := func(cols ...ColumnSpec) []ColumnSpec {
		return append(append([]ColumnSpec(nil), cols...), etl...)
	}

	return []ConnectorEntry{
		{Source: "shopify", APIVersion: "v1", Object: "orders", Columns: withETL(
			ColumnSpec{Name: "id", Type: "bigint"},
			ColumnSpec{Name: "order_number", Type: "bigint"},
			ColumnSpec{Name: "created_at", Type: "timestamp"},
			ColumnSpec{Name: "total_price", Type: "string"},
			ColumnSpec{Name: "currency", Type: "string"},
			ColumnSpec{Name: "financial_status", Type: "string"},
			ColumnSpec{Name: "email", Type: "string"},
			ColumnSpec{Name: "customer_id", Type: "bigint"},
			ColumnSpec{Name: "line_items", Type: "json"},
		)},
		{Source: "shopify", APIVersion: "v1", Object: "products", Columns: withETL(
			ColumnSpec{Name: "id", Type: "bigint"},
			ColumnSpec{Name: "title", Type: "string"},
			ColumnSpec{Name: "created_at", Type: "timestamp"},
			ColumnSpec{Name: "variants", Type: "json"},
		)},
		{Source: "bigcommerce", APIVersion: "v3", Object: "orders", Columns: withETL(
			ColumnSpec{Name: "id", Type: "bigint"},
			ColumnSpec{Name: "date_created", Type: "timestamp"},
			ColumnSpec{Name: "total_inc_tax", Type: "string"},
			ColumnSpec{Name: "currency_code", Type: "string"},
			ColumnSpec{Name: "status", Type: "string"},
			ColumnSpec{Name: "billing_address", Type: "json"},
			ColumnSpec{Name: "customer_id", Type: "bigint"},
			ColumnSpec{Name: "products", Type: "json"},
		)},
		{Source: "bigcommerce", APIVersion: "v3", Object: "products", Columns: withETL(
			ColumnSpec{Name: "id", Type: "bigint"},
			ColumnSpec{Name: "name", Type: "string"},
			ColumnSpec{Name: "date_created", Type: "timestamp"},
			ColumnSpec{Name: "price", Type: "number"},
		)},
		{Source: "facebook_ads", APIVersion: "v18", Object: "ad_insights", Columns: withETL(
			ColumnSpec{Name: "date_start", Type: "date"},
			ColumnSpec{Name: "campaign_id", Type: "string"},
			ColumnSpec{Name: "adset_id", Type: "string"},
			ColumnSpec{Name: "ad_id", Type: "string"},
			ColumnSpec{Name: "spend", Type: "number"},
			ColumnSpec{Name: "impressions", Type: "bigint"},
			ColumnSpec{Name: "clicks", Type: "bigint"},
			ColumnSpec{Name: "conversions", Type: "bigint"},
		)},
		{Source: "facebook_ads", APIVersion: "v18", Object: "campaigns", Columns: withETL(
			ColumnSpec{Name: "id", Type: "string"},
			ColumnSpec{Name: "name", Type: "string"},
			ColumnSpec{Name: "status", Type: "string"},
		)},
		{Source: "instagram_ads", APIVersion: "v18", Object: "ad_insights", Columns: withETL(
			ColumnSpec{Name: "date_start", Type: "date"},
			ColumnSpec{Name: "campaign_id", Type: "string"},
			ColumnSpec{Name: "adset_id", Type: "string"},
			ColumnSpec{Name: "ad_id", Type: "string"},
			ColumnSpec{Name: "spend", Type: "number"},
			ColumnSpec{Name: "impressions", Type: "bigint"},
			ColumnSpec{Name: "clicks", Type: "bigint"},
			ColumnSpec{Name: "conversions", Type: "bigint"},
		)},
		{Source: "google_ads", APIVersion: "v16", Object: "ad_insights", Columns: withETL(
			ColumnSpec{Name: "segments_date", Type: "date"},
			ColumnSpec{Name: "campaign_id", Type: "string"},
			ColumnSpec{Name: "ad_group_id", Type: "string"},
			ColumnSpec{Name: "ad_group_ad_ad_id", Type: "string"},
			ColumnSpec{Name: "metrics_cost_micros", Type: "bigint"},
			ColumnSpec{Name: "metrics_impressions", Type: "bigint"},
			ColumnSpec{Name: "metrics_clicks", Type: "bigint"},
			ColumnSpec{Name: "metrics_conversions", Type: "number"},
		)},
		{Source: "google_ads", APIVersion: "v16", Object: "campaigns", Columns: withETL(
			ColumnSpec{Name: "campaign_id", Type: "string"},
			ColumnSpec{Name: "campaign_name", Type: "string"},
			ColumnSpec{Name: "campaign_status", Type: "string"},
		)},
		{Source: "google_analytics", APIVersion: "v1", Object: "events", Columns: withETL(
			ColumnSpec{Name: "event_name", Type: "string"},
			ColumnSpec{Name: "event_timestamp", Type: "bigint"},
			ColumnSpec{Name: "user_pseudo_id", Type: "string"},
			ColumnSpec{Name: "user_id", Type: "string"},
			ColumnSpec{Name: "ecommerce_transaction_id", Type: "string"},
			ColumnSpec{Name: "ecommerce_purchase_revenue", Type: "number"},
			ColumnSpec{Name: "traffic_source_name", Type: "string"},
			ColumnSpec{Name: "traffic_medium", Type: "string"},
			ColumnSpec{Name: "geo_country", Type: "string"},
			ColumnSpec{Name: "device_category", Type: "string"},
		)},
		{Source: "segment", APIVersion: "v1", Object: "events", Columns: withETL(
			ColumnSpec{Name: "event", Type: "string"},
			ColumnSpec{Name: "timestamp", Type: "timestamp"},
			ColumnSpec{Name: "anonymous_id", Type: "string"},
			ColumnSpec{Name: "user_id", Type: "string"},
			ColumnSpec{Name: "session_id", Type: "string"},
			ColumnSpec{Name: "properties", Type: "json"},
		)},
		{Source: "klaviyo", APIVersion: "v3", Object: "campaigns", Columns: withETL(
			ColumnSpec{Name: "id", Type: "string"},
			ColumnSpec{Name: "name", Type: "string"},
			ColumnSpec{Name: "status", Type: "string"},
		)},
		{Source: "mailchimp", APIVersion: "v3", Object: "campaigns", Columns: withETL(
			ColumnSpec{Name: "id", Type: "string"},
			ColumnSpec{Name: "settings_title", Type: "string"},
			ColumnSpec{Name: "status", Type: "string"},
		)},
	}
}
