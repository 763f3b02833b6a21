package engine

import (
	"fmt"
	"strings"
)

// SessionsEngine builds the sessions-domain EngineFunc. The intermediate
// relation must expose: event_name, event_timestamp (epoch seconds),
// user_pseudo_id, user_id, ingest_order (a monotonic tie-break for equal
// timestamps), transaction_id, purchase_revenue, traffic_source,
// traffic_medium, traffic_campaign, geo_country, device_category.
func SessionsEngine() EngineFunc {
	return func(ctx *BuildContext) (string, error) {
		if ctx.Intermediate == "" {
			return "", fmt.Errorf("sessions engine requires an intermediate relation")
		}
		var b strings.Builder
		b.WriteString(sessionAssignmentCTE(ctx))
		b.WriteString(",\nfunnel_pivots AS (\n\tSELECT\n\t\tsession_id")
		for i, step := range ctx.FunnelSteps {
			fmt.Fprintf(&b, ",\n\t\tSUM(CASE WHEN event_name = %s THEN 1 ELSE 0 END) AS %s",
				ctx.Gen.ValueRenderer.Render(step), ctx.Gen.Quote(FunnelStepColumnName(i+1, step)))
		}
		b.WriteString("\n\tFROM numbered\n\tGROUP BY session_id\n)")

		b.WriteString(",\nfunnel_rank AS (\n\tSELECT session_id, MAX(step_rank) AS funnel_max_step FROM (\n")
		for i, step := range ctx.FunnelSteps {
			if i > 0 {
				b.WriteString("\t\tUNION ALL\n")
			}
			fmt.Fprintf(&b, "\t\tSELECT session_id, %d AS step_rank FROM numbered WHERE event_name = %s\n",
				i+1, ctx.Gen.ValueRenderer.Render(step))
		}
		b.WriteString("\t) ranked\n\tGROUP BY session_id\n)")

		b.WriteString(",\nsessions AS (\n\tSELECT\n")
		fmt.Fprintf(&b, "\t\t%s AS %s,\n", ctx.Gen.ValueRenderer.Render(ctx.TenantSlug), ctx.Gen.Quote("tenant_slug"))
		fmt.Fprintf(&b, "\t\t%s AS %s,\n", ctx.Gen.ValueRenderer.Render(ctx.SourcePlatform), ctx.Gen.Quote("source_platform"))
		fmt.Fprintf(&b, "\t\tsession_id AS %s,\n", ctx.Gen.Quote("session_id"))
		fmt.Fprintf(&b, "\t\tuser_pseudo_id AS %s,\n", ctx.Gen.Quote("user_pseudo_id"))
		fmt.Fprintf(&b, "\t\tMAX(user_id) AS %s,\n", ctx.Gen.Quote("user_id"))
		fmt.Fprintf(&b, "\t\tMIN(event_timestamp) AS %s,\n", ctx.Gen.Quote("session_start_ts"))
		fmt.Fprintf(&b, "\t\tMAX(event_timestamp) AS %s,\n", ctx.Gen.Quote("session_end_ts"))
		fmt.Fprintf(&b, "\t\t(MAX(event_timestamp) - MIN(event_timestamp)) AS %s,\n", ctx.Gen.Quote("session_duration_seconds"))
		fmt.Fprintf(&b, "\t\tCOUNT(*) AS %s,\n", ctx.Gen.Quote("events_in_session"))
		fmt.Fprintf(&b, "\t\tMIN(traffic_source) AS %s,\n", ctx.Gen.Quote("traffic_source"))
		fmt.Fprintf(&b, "\t\tMIN(traffic_medium) AS %s,\n", ctx.Gen.Quote("traffic_medium"))
		fmt.Fprintf(&b, "\t\tMIN(traffic_campaign) AS %s,\n", ctx.Gen.Quote("traffic_campaign"))
		fmt.Fprintf(&b, "\t\tMIN(geo_country) AS %s,\n", ctx.Gen.Quote("geo_country"))
		fmt.Fprintf(&b, "\t\tMIN(device_category) AS %s,\n", ctx.Gen.Quote("device_category"))
		if len(ctx.ConversionEvents) == 0 {
			fmt.Fprintf(&b, "\t\t0 AS %s,\n", ctx.Gen.Quote("is_conversion_session"))
		} else {
			b.WriteString("\t\tMAX(CASE WHEN event_name IN (")
			for i, e := range ctx.ConversionEvents {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(ctx.Gen.ValueRenderer.Render(e))
			}
			fmt.Fprintf(&b, ") THEN 1 ELSE 0 END) AS %s,\n", ctx.Gen.Quote("is_conversion_session"))
		}
		fmt.Fprintf(&b, "\t\tSUM(COALESCE(purchase_revenue, 0)) AS %s,\n", ctx.Gen.Quote("session_revenue"))
		fmt.Fprintf(&b, "\t\tMAX(transaction_id) AS %s\n", ctx.Gen.Quote("transaction_id"))
		b.WriteString("\tFROM numbered\n\tGROUP BY session_id, user_pseudo_id\n)")

		b.WriteString("\nSELECT\n\tsessions.*")
		for i, step := range ctx.FunnelSteps {
			fmt.Fprintf(&b, ",\n\tfunnel_pivots.%s", ctx.Gen.Quote(FunnelStepColumnName(i+1, step)))
		}
		b.WriteString(",\n\tCOALESCE(funnel_rank.funnel_max_step, 0) AS funnel_max_step")
		b.WriteString("\nFROM sessions")
		if len(ctx.FunnelSteps) > 0 {
			b.WriteString("\nLEFT JOIN funnel_pivots ON funnel_pivots.session_id = sessions.session_id")
		}
		b.WriteString("\nLEFT JOIN funnel_rank ON funnel_rank.session_id = sessions.session_id;")

		return b.String(), nil
	}
}

// sessionAssignmentCTE returns the leading CTE chain that assigns a
// session_id to every row of the intermediate relation: either the native
// session id passthrough, or the 30-minute-gap computation via LAG/SUM
// window functions, with ties on equal timestamps broken by ingest_order.
func sessionAssignmentCTE(ctx *BuildContext) string {
	if ctx.NativeSessionIDColumn != "" {
		return fmt.Sprintf("WITH numbered AS (\n\tSELECT *, %s AS session_id\n\tFROM %s\n)",
			ctx.Gen.Quote(ctx.NativeSessionIDColumn), ctx.Intermediate)
	}

	gap := ctx.gapSeconds()
	var b strings.Builder
	b.WriteString("WITH base AS (\n\tSELECT *,\n")
	b.WriteString("\t\tLAG(event_timestamp) OVER (PARTITION BY user_pseudo_id ORDER BY event_timestamp, ingest_order) AS prev_event_ts\n")
	fmt.Fprintf(&b, "\tFROM %s\n)", ctx.Intermediate)
	b.WriteString(",\nmarked AS (\n\tSELECT *,\n")
	fmt.Fprintf(&b, "\t\tCASE WHEN prev_event_ts IS NULL OR (event_timestamp - prev_event_ts) > %d THEN 1 ELSE 0 END AS is_new_session\n", gap)
	b.WriteString("\tFROM base\n)")
	b.WriteString(",\nnumbered AS (\n\tSELECT *,\n")
	b.WriteString("\t\tuser_pseudo_id || '-' || SUM(is_new_session) OVER (PARTITION BY user_pseudo_id ORDER BY event_timestamp, ingest_order ROWS BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW) AS session_id\n")
	b.WriteString("\tFROM marked\n)")
	return b.String()
}
