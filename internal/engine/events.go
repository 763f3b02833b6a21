package engine

import (
	"fmt"
	"strings"
)

// EventsEngine builds the events-domain EngineFunc. It reuses the same
// session-id assignment as SessionsEngine so a tenant's events and sessions
// tables agree on session boundaries.
func EventsEngine() EngineFunc {
	return func(ctx *BuildContext) (string, error) {
		if ctx.Intermediate == "" {
			return "", fmt.Errorf("events engine requires an intermediate relation")
		}

		var b strings.Builder
		b.WriteString(sessionAssignmentCTE(ctx))
		b.WriteString("\nSELECT\n")
		fmt.Fprintf(&b, "\t%s AS %s,\n", ctx.Gen.ValueRenderer.Render(ctx.TenantSlug), ctx.Gen.Quote("tenant_slug"))
		fmt.Fprintf(&b, "\t%s AS %s,\n", ctx.Gen.ValueRenderer.Render(ctx.SourcePlatform), ctx.Gen.Quote("source_platform"))
		fmt.Fprintf(&b, "\tevent_name AS %s,\n", ctx.Gen.Quote("event_name"))
		fmt.Fprintf(&b, "\tevent_timestamp AS %s,\n", ctx.Gen.Quote("event_timestamp"))
		fmt.Fprintf(&b, "\tuser_pseudo_id AS %s,\n", ctx.Gen.Quote("user_pseudo_id"))
		fmt.Fprintf(&b, "\tuser_id AS %s,\n", ctx.Gen.Quote("user_id"))
		fmt.Fprintf(&b, "\tsession_id AS %s,\n", ctx.Gen.Quote("session_id"))
		fmt.Fprintf(&b, "\ttransaction_id AS %s,\n", ctx.Gen.Quote("order_id"))
		fmt.Fprintf(&b, "\tpurchase_revenue AS %s,\n", ctx.Gen.Quote("order_total"))
		fmt.Fprintf(&b, "\ttraffic_source AS %s,\n", ctx.Gen.Quote("traffic_source"))
		fmt.Fprintf(&b, "\ttraffic_medium AS %s,\n", ctx.Gen.Quote("traffic_medium"))
		fmt.Fprintf(&b, "\ttraffic_campaign AS %s,\n", ctx.Gen.Quote("traffic_campaign"))
		fmt.Fprintf(&b, "\tgeo_country AS %s,\n", ctx.Gen.Quote("geo_country"))
		fmt.Fprintf(&b, "\tdevice_category AS %s\n", ctx.Gen.Quote("device_category"))
		b.WriteString("FROM numbered;")
		return b.String(), nil
	}
}
