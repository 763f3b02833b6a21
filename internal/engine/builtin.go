package engine

// registerBuiltins wires every (source, domain) mapping this platform ships
// out of the box, grounded in the Connector Catalog's supported surface.
func registerBuiltins(r *Registry) {
	r.Register("shopify", DomainOrders, ColumnMapEngine([]FieldMap{
		{Canonical: "order_id", Expr: "CAST(id AS TEXT)"},
		{Canonical: "order_date", Expr: "created_at"},
		{Canonical: "total_price", Expr: "CAST(total_price AS REAL)"},
		{Canonical: "currency", Expr: "currency"},
		{Canonical: "financial_status", Expr: "financial_status"},
		{Canonical: "customer_email", Expr: "email"},
		{Canonical: "customer_id", Expr: "CAST(customer_id AS TEXT)"},
		{Canonical: "line_items_json", Expr: "line_items"},
	}))
	r.Register("shopify", DomainProducts, ColumnMapEngine([]FieldMap{
		{Canonical: "product_id", Expr: "CAST(id AS TEXT)"},
		{Canonical: "product_title", Expr: "title"},
		{Canonical: "product_price", Expr: "NULL"},
		{Canonical: "created_at", Expr: "created_at"},
	}))

	r.Register("bigcommerce", DomainOrders, ColumnMapEngine([]FieldMap{
		{Canonical: "order_id", Expr: "CAST(id AS TEXT)"},
		{Canonical: "order_date", Expr: "date_created"},
		{Canonical: "total_price", Expr: "CAST(total_inc_tax AS REAL)"},
		{Canonical: "currency", Expr: "currency_code"},
		{Canonical: "financial_status", Expr: "status"},
		{Canonical: "customer_email", Expr: "NULL"},
		{Canonical: "customer_id", Expr: "CAST(customer_id AS TEXT)"},
		{Canonical: "line_items_json", Expr: "products"},
	}))
	r.Register("bigcommerce", DomainProducts, ColumnMapEngine([]FieldMap{
		{Canonical: "product_id", Expr: "CAST(id AS TEXT)"},
		{Canonical: "product_title", Expr: "name"},
		{Canonical: "product_price", Expr: "CAST(price AS REAL)"},
		{Canonical: "created_at", Expr: "date_created"},
	}))

	r.Register("facebook_ads", DomainAdPerformance, ColumnMapEngine([]FieldMap{
		{Canonical: "report_date", Expr: "date_start"},
		{Canonical: "campaign_id", Expr: "campaign_id"},
		{Canonical: "ad_group_id", Expr: "adset_id"},
		{Canonical: "ad_id", Expr: "ad_id"},
		{Canonical: "spend", Expr: "CAST(spend AS REAL)"},
		{Canonical: "impressions", Expr: "CAST(impressions AS INTEGER)"},
		{Canonical: "clicks", Expr: "CAST(clicks AS INTEGER)"},
		{Canonical: "conversions", Expr: "CAST(conversions AS INTEGER)"},
	}))
	r.Register("facebook_ads", DomainCampaigns, ColumnMapEngine([]FieldMap{
		{Canonical: "campaign_id", Expr: "id"},
		{Canonical: "campaign_name", Expr: "name"},
		{Canonical: "campaign_status", Expr: "status"},
	}))

	r.Register("instagram_ads", DomainAdPerformance, ColumnMapEngine([]FieldMap{
		{Canonical: "report_date", Expr: "date_start"},
		{Canonical: "campaign_id", Expr: "campaign_id"},
		{Canonical: "ad_group_id", Expr: "adset_id"},
		{Canonical: "ad_id", Expr: "ad_id"},
		{Canonical: "spend", Expr: "CAST(spend AS REAL)"},
		{Canonical: "impressions", Expr: "CAST(impressions AS INTEGER)"},
		{Canonical: "clicks", Expr: "CAST(clicks AS INTEGER)"},
		{Canonical: "conversions", Expr: "CAST(conversions AS INTEGER)"},
	}))

	r.Register("google_ads", DomainAdPerformance, ColumnMapEngine([]FieldMap{
		{Canonical: "report_date", Expr: "segments_date"},
		{Canonical: "campaign_id", Expr: "campaign_id"},
		{Canonical: "ad_group_id", Expr: "ad_group_id"},
		{Canonical: "ad_id", Expr: "ad_group_ad_ad_id"},
		{Canonical: "spend", Expr: "CAST(metrics_cost_micros AS REAL) / 1000000.0"},
		{Canonical: "impressions", Expr: "CAST(metrics_impressions AS INTEGER)"},
		{Canonical: "clicks", Expr: "CAST(metrics_clicks AS INTEGER)"},
		{Canonical: "conversions", Expr: "CAST(metrics_conversions AS INTEGER)"},
	}))
	r.Register("google_ads", DomainCampaigns, ColumnMapEngine([]FieldMap{
		{Canonical: "campaign_id", Expr: "campaign_id"},
		{Canonical: "campaign_name", Expr: "campaign_name"},
		{Canonical: "campaign_status", Expr: "campaign_status"},
	}))

	r.Register("google_analytics", DomainSessions, SessionsEngine())
	r.Register("google_analytics", DomainEvents, EventsEngine())
	r.Register("google_analytics", DomainUsers, UsersEngine())

	r.Register("segment", DomainSessions, SessionsEngine())
	r.Register("segment", DomainEvents, EventsEngine())
	r.Register("segment", DomainUsers, UsersEngine())

	r.Register("klaviyo", DomainCampaigns, ColumnMapEngine([]FieldMap{
		{Canonical: "campaign_id", Expr: "id"},
		{Canonical: "campaign_name", Expr: "name"},
		{Canonical: "campaign_status", Expr: "status"},
	}))
	r.Register("mailchimp", DomainCampaigns, ColumnMapEngine([]FieldMap{
		{Canonical: "campaign_id", Expr: "id"},
		{Canonical: "campaign_name", Expr: "settings_title"},
		{Canonical: "campaign_status", Expr: "status"},
	}))
}
