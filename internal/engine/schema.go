// Package engine implements the Engine Library: for every analytic domain
// and supported source platform, a SQL-generating function that reads an
// Intermediate Unpacker relation and emits rows in that domain's canonical
// schema. Sessionization, funnel pivoting, and identity resolution are all
// expressed as SQL window-function queries, not in-process row processing,
// matching the platform's config-driven SQL code generation style.
package engine

import "strconv"

// Domain is one of the seven fixed analytic domains the star schema serves.
type Domain string

const (
	DomainAdPerformance Domain = "ad_performance"
	DomainOrders        Domain = "orders"
	DomainSessions      Domain = "sessions"
	DomainEvents        Domain = "events"
	DomainCampaigns     Domain = "campaigns"
	DomainProducts      Domain = "products"
	DomainUsers         Domain = "users"
)

// UnionDomains materialize as UNION ALL over every matching engine.
var UnionDomains = map[Domain]bool{
	DomainAdPerformance: true,
	DomainOrders:        true,
	DomainCampaigns:     true,
	DomainProducts:      true,
}

// SingleSourceDomains select exactly one enabled analytics source; more than
// one enabled source for these domains is an AmbiguousAnalyticsSource error.
var SingleSourceDomains = map[Domain]bool{
	DomainSessions: true,
	DomainEvents:   true,
	DomainUsers:    true,
}

// Column is one canonical output column, named and typed for the NULL-cast
// literals a typed-empty-result needs.
type Column struct {
	Name    string
	SQLType string
}

// CanonicalSchemas gives the bit-exact column list and SQL type for every
// domain's canonical output shape. Funnel step columns are appended to
// sessions at generation time, since their count and names are tenant-configured.
var CanonicalSchemas = map[Domain][]Column{
	DomainAdPerformance: {
		{"tenant_slug", "TEXT"}, {"source_platform", "TEXT"}, {"report_date", "TEXT"},
		{"campaign_id", "TEXT"}, {"ad_group_id", "TEXT"}, {"ad_id", "TEXT"},
		{"spend", "REAL"}, {"impressions", "INTEGER"}, {"clicks", "INTEGER"}, {"conversions", "INTEGER"},
	},
	DomainOrders: {
		{"tenant_slug", "TEXT"}, {"source_platform", "TEXT"}, {"order_id", "TEXT"},
		{"order_date", "TEXT"}, {"total_price", "REAL"}, {"currency", "TEXT"},
		{"financial_status", "TEXT"}, {"customer_email", "TEXT"}, {"customer_id", "TEXT"},
		{"line_items_json", "TEXT"},
	},
	DomainSessions: {
		{"tenant_slug", "TEXT"}, {"source_platform", "TEXT"}, {"session_id", "TEXT"},
		{"user_pseudo_id", "TEXT"}, {"user_id", "TEXT"},
		{"session_start_ts", "INTEGER"}, {"session_end_ts", "INTEGER"}, {"session_duration_seconds", "INTEGER"},
		{"events_in_session", "INTEGER"}, {"traffic_source", "TEXT"}, {"traffic_medium", "TEXT"},
		{"traffic_campaign", "TEXT"}, {"geo_country", "TEXT"}, {"device_category", "TEXT"},
		{"is_conversion_session", "INTEGER"}, {"session_revenue", "REAL"}, {"transaction_id", "TEXT"},
	},
	DomainEvents: {
		{"tenant_slug", "TEXT"}, {"source_platform", "TEXT"}, {"event_name", "TEXT"},
		{"event_timestamp", "INTEGER"}, {"user_pseudo_id", "TEXT"}, {"user_id", "TEXT"},
		{"session_id", "TEXT"}, {"order_id", "TEXT"}, {"order_total", "REAL"},
		{"traffic_source", "TEXT"}, {"traffic_medium", "TEXT"}, {"traffic_campaign", "TEXT"},
		{"geo_country", "TEXT"}, {"device_category", "TEXT"},
	},
	DomainCampaigns: {
		{"tenant_slug", "TEXT"}, {"source_platform", "TEXT"}, {"campaign_id", "TEXT"},
		{"campaign_name", "TEXT"}, {"campaign_status", "TEXT"},
	},
	DomainProducts: {
		{"tenant_slug", "TEXT"}, {"source_platform", "TEXT"}, {"product_id", "TEXT"},
		{"product_title", "TEXT"}, {"product_price", "REAL"}, {"created_at", "TEXT"},
	},
	DomainUsers: {
		{"tenant_slug", "TEXT"}, {"source_platform", "TEXT"}, {"user_pseudo_id", "TEXT"},
		{"user_id", "TEXT"}, {"customer_email", "TEXT"}, {"customer_id", "TEXT"},
		{"is_customer", "INTEGER"}, {"first_seen_at", "INTEGER"}, {"last_seen_at", "INTEGER"},
		{"total_events", "INTEGER"}, {"total_sessions", "INTEGER"},
		{"first_geo_country", "TEXT"}, {"first_device_category", "TEXT"},
	},
}

// FunnelStepColumnName builds a funnel pivot column name for one step.
func FunnelStepColumnName(stepIndex int, eventName string) string {
	return "funnel_step_" + strconv.Itoa(stepIndex) + "_" + eventName
}
