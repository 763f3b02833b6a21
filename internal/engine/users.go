package engine

import (
	"fmt"
	"strings"
)

const (
	// IdentityTransactionIDMatch links analytics transaction_id to the
	// ecommerce order id, stringified.
	IdentityTransactionIDMatch = "transaction_id_match"
	// IdentityEmailMatch links analytics email to the ecommerce billing email.
	IdentityEmailMatch = "email_match"
)

// UsersEngine builds the users-domain EngineFunc: one row per
// user_pseudo_id, aggregated across the tenant's analytics intermediate,
// with is_customer resolved against the ecommerce OrdersIntermediate by the
// configured IdentityStrategy.
func UsersEngine() EngineFunc {
	return func(ctx *BuildContext) (string, error) {
		if ctx.Intermediate == "" {
			return "", fmt.Errorf("users engine requires an analytics intermediate relation")
		}

		var b strings.Builder
		b.WriteString("WITH user_events AS (\n\tSELECT\n")
		b.WriteString("\t\tuser_pseudo_id, user_id, transaction_id, event_timestamp,\n")
		b.WriteString("\t\tgeo_country, device_category, session_id\n")
		fmt.Fprintf(&b, "\tFROM %s\n)", ctx.Intermediate)

		b.WriteString(",\nfirst_event AS (\n\tSELECT user_pseudo_id, MIN(event_timestamp) AS first_seen_at FROM user_events GROUP BY user_pseudo_id\n)")

		b.WriteString(",\naggregated AS (\n\tSELECT\n")
		b.WriteString("\t\tue.user_pseudo_id,\n")
		b.WriteString("\t\tMAX(ue.user_id) AS user_id,\n")
		b.WriteString("\t\tMIN(ue.event_timestamp) AS first_seen_at,\n")
		b.WriteString("\t\tMAX(ue.event_timestamp) AS last_seen_at,\n")
		b.WriteString("\t\tCOUNT(*) AS total_events,\n")
		b.WriteString("\t\tCOUNT(DISTINCT ue.session_id) AS total_sessions,\n")
		b.WriteString("\t\tMAX(ue.transaction_id) AS max_transaction_id\n")
		b.WriteString("\tFROM user_events ue\n\tGROUP BY ue.user_pseudo_id\n)")

		b.WriteString(",\nfirst_touch AS (\n\tSELECT ue.user_pseudo_id, ue.geo_country AS first_geo_country, ue.device_category AS first_device_category\n")
		b.WriteString("\tFROM user_events ue\n\tJOIN first_event fe ON fe.user_pseudo_id = ue.user_pseudo_id AND fe.first_seen_at = ue.event_timestamp\n)")

		identityCTE, identitySelect, identityFromJoin, err := identityResolution(ctx)
		if err != nil {
			return "", err
		}
		b.WriteString(identityCTE)

		b.WriteString("\nSELECT\n")
		fmt.Fprintf(&b, "\t%s AS %s,\n", ctx.Gen.ValueRenderer.Render(ctx.TenantSlug), ctx.Gen.Quote("tenant_slug"))
		fmt.Fprintf(&b, "\t%s AS %s,\n", ctx.Gen.ValueRenderer.Render(ctx.SourcePlatform), ctx.Gen.Quote("source_platform"))
		fmt.Fprintf(&b, "\taggregated.user_pseudo_id AS %s,\n", ctx.Gen.Quote("user_pseudo_id"))
		fmt.Fprintf(&b, "\taggregated.user_id AS %s,\n", ctx.Gen.Quote("user_id"))
		b.WriteString(identitySelect)
		fmt.Fprintf(&b, "\taggregated.first_seen_at AS %s,\n", ctx.Gen.Quote("first_seen_at"))
		fmt.Fprintf(&b, "\taggregated.last_seen_at AS %s,\n", ctx.Gen.Quote("last_seen_at"))
		fmt.Fprintf(&b, "\taggregated.total_events AS %s,\n", ctx.Gen.Quote("total_events"))
		fmt.Fprintf(&b, "\taggregated.total_sessions AS %s,\n", ctx.Gen.Quote("total_sessions"))
		fmt.Fprintf(&b, "\tfirst_touch.first_geo_country AS %s,\n", ctx.Gen.Quote("first_geo_country"))
		fmt.Fprintf(&b, "\tfirst_touch.first_device_category AS %s\n", ctx.Gen.Quote("first_device_category"))
		b.WriteString("FROM aggregated\nLEFT JOIN first_touch ON first_touch.user_pseudo_id = aggregated.user_pseudo_id")
		b.WriteString(identityFromJoin)
		b.WriteString(";")

		return b.String(), nil
	}
}

// identityResolution returns the CTE joining aggregated analytics users to
// ecommerce orders under the tenant's configured strategy, the SELECT
// fragment producing customer_email/customer_id/is_customer, and the FROM
// clause's join against that CTE (empty when no strategy is configured).
func identityResolution(ctx *BuildContext) (cte string, selectFragment string, fromJoin string, err error) {
	if ctx.IdentityStrategy == "" || ctx.OrdersIntermediate == "" {
		sel := fmt.Sprintf("\tNULL AS %s,\n\tNULL AS %s,\n\t0 AS %s,\n",
			ctx.Gen.Quote("customer_email"), ctx.Gen.Quote("customer_id"), ctx.Gen.Quote("is_customer"))
		return "", sel, "", nil
	}

	sel := fmt.Sprintf("\tidentity.customer_email AS %s,\n\tidentity.customer_id AS %s,\n\tCASE WHEN identity.customer_id IS NOT NULL THEN 1 ELSE 0 END AS %s,\n",
		ctx.Gen.Quote("customer_email"), ctx.Gen.Quote("customer_id"), ctx.Gen.Quote("is_customer"))
	fromJoin = "\nLEFT JOIN identity ON identity.user_pseudo_id = aggregated.user_pseudo_id"

	switch ctx.IdentityStrategy {
	case IdentityTransactionIDMatch:
		cte := fmt.Sprintf(
			",\nidentity AS (\n\tSELECT DISTINCT aggregated.user_pseudo_id, orders.customer_email, orders.customer_id\n"+
				"\tFROM aggregated\n\tJOIN %s AS orders ON CAST(orders.order_id AS TEXT) = aggregated.max_transaction_id\n)",
			ctx.OrdersIntermediate)
		return cte, sel, fromJoin, nil
	case IdentityEmailMatch:
		cte := fmt.Sprintf(
			",\nidentity AS (\n\tSELECT DISTINCT ue.user_pseudo_id, orders.customer_email, orders.customer_id\n"+
				"\tFROM user_events ue\n\tJOIN %s AS orders ON orders.customer_email = ue.user_id\n)",
			ctx.OrdersIntermediate)
		return cte, sel, fromJoin, nil
	default:
		return "", "", "", fmt.Errorf("unknown identity strategy %q", ctx.IdentityStrategy)
	}
}
