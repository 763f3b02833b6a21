package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func cols(pairs ...string) []Column {
	out := make([]Column, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, Column{Name: pairs[i], Type: pairs[i+1]})
	}
	return out
}

func TestCommutativity(t *testing.T) {
	a := Fingerprint(cols("id", "bigint", "email", "string", "created_at", "timestamp"), nil)
	b := Fingerprint(cols("created_at", "timestamp", "id", "bigint", "email", "string"), nil)
	require.Equal(t, a, b)
}

func TestStabilityAcrossCalls(t *testing.T) {
	a := Fingerprint(cols("id", "bigint"), nil)
	b := Fingerprint(cols("id", "bigint"), nil)
	require.Equal(t, a, b)
	require.Len(t, a, 32) // 16 bytes -> 32 hex chars
}

func TestExcludedColumnsDoNotAffectFingerprint(t *testing.T) {
	base := Fingerprint(cols("id", "bigint", "email", "string"), nil)
	withETL := Fingerprint(cols("id", "bigint", "email", "string", "_dlt_id", "string", "load_id", "bigint"), nil)
	require.Equal(t, base, withETL)
}

func TestTypeEquivalence(t *testing.T) {
	a := Fingerprint(cols("id", "BIGINT"), nil)
	b := Fingerprint(cols("id", "INT8"), nil)
	c := Fingerprint(cols("id", "LONG"), nil)
	require.Equal(t, a, b)
	require.Equal(t, b, c)
}

func TestSensitiveToColumnAdd(t *testing.T) {
	a := Fingerprint(cols("id", "bigint"), nil)
	b := Fingerprint(cols("id", "bigint", "email", "string"), nil)
	require.NotEqual(t, a, b)
}

func TestSensitiveToRetype(t *testing.T) {
	a := Fingerprint(cols("id", "bigint"), nil)
	b := Fingerprint(cols("id", "string"), nil)
	require.NotEqual(t, a, b)
}

func TestCaseAndWhitespaceInsensitiveNames(t *testing.T) {
	a := Fingerprint(cols("Order Id", "bigint"), nil)
	b := Fingerprint(cols("order_id", "bigint"), nil)
	require.Equal(t, a, b)
}

func TestFingerprintTenantStable(t *testing.T) {
	require.Equal(t, FingerprintTenant("tyrell_corp"), FingerprintTenant("tyrell_corp"))
	require.NotEqual(t, FingerprintTenant("tyrell_corp"), FingerprintTenant("wallace_corp"))
}
