// Package fingerprint implements the Fingerprint Engine: a deterministic
// hash of a table's column set, after normalization and exclusion of
// ETL/internal columns.
package fingerprint

import (
	"encoding/hex"
	"sort"
	"strings"

	"github.com/minio/highwayhash"
)

// Column is an unordered (name, type) pair contributing to a fingerprint.
type Column struct {
	Name string
	Type string
}

// key128 is a fixed, arbitrary but stable HighwayHash key. Keeping it
// constant and compiled-in is what makes the fingerprint reproducible
// across process restarts.
var key128 = [32]byte{
	0x43, 0x6f, 0x6e, 0x6e, 0x65, 0x63, 0x74, 0x6f,
	0x72, 0x42, 0x6c, 0x75, 0x65, 0x70, 0x72, 0x69,
	0x6e, 0x74, 0x52, 0x65, 0x67, 0x69, 0x73, 0x74,
	0x72, 0x79, 0x46, 0x69, 0x6e, 0x67, 0x65, 0x72,
}

// typeEquivalence maps alias type tokens to one canonical token, so that
// e.g. BIGINT, INT8, and LONG all normalize to the same fingerprint
// contribution.
var typeEquivalence = map[string]string{
	"bigint":  "int64",
	"int8":    "int64",
	"long":    "int64",
	"integer": "int64",
	"int":     "int64",
	"int4":    "int64",
	"number":  "float64",
	"double":  "float64",
	"float":   "float64",
	"float8":  "float64",
	"real":    "float64",
	"numeric": "float64",
	"decimal": "float64",
	"text":    "string",
	"varchar": "string",
	"string":  "string",
	"char":    "string",
	"bool":    "boolean",
	"boolean": "boolean",
	"json":    "json",
	"jsonb":   "json",
	"object":  "json",
	"date":    "date",
	"datetime": "timestamp",
	"timestamp": "timestamp",
	"timestamptz": "timestamp",
}

// DefaultExclusionSet is the compile-time list of ETL/internal column names
// stripped before hashing. Matching is case-insensitive after normalization.
var DefaultExclusionSet = map[string]bool{
	"_dlt_id":            true,
	"_dlt_load_id":       true,
	"load_id":            true,
	"row_id":             true,
	"ingest_timestamp":   true,
	"_airbyte_ab_id":     true,
	"_airbyte_emitted_at": true,
	"_loaded_at":         true,
}

func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "_")
}

func normalizeType(ty string) string {
	lower := strings.ToLower(strings.TrimSpace(ty))
	if canonical, ok := typeEquivalence[lower]; ok {
		return canonical
	}
	return lower
}

// Fingerprint deterministically hashes the given column set, excluding
// columns present in the exclusion set, and returns a 128-bit digest as
// lowercase hex.
//
// Properties:
//   - commutative w.r.t. input order (columns are sorted before hashing)
//   - insensitive to excluded columns
//   - sensitive to any non-excluded column add/remove/retype
func Fingerprint(columns []Column, exclude map[string]bool) string {
	if exclude == nil {
		exclude = DefaultExclusionSet
	}

	pairs := make([]string, 0, len(columns))
	for _, col := range columns {
		name := normalizeName(col.Name)
		if exclude[name] {
			continue
		}
		pairs = append(pairs, name+":"+normalizeType(col.Type))
	}
	sort.Strings(pairs)
	canonical := strings.Join(pairs, "|")

	digest := highwayhash.Sum128([]byte(canonical), key128[:])
	return hex.EncodeToString(digest[:])
}

// FingerprintTenant hashes a tenant_slug into the deterministic tenant_skey
// required by the 7-column master contract.
func FingerprintTenant(tenantSlug string) string {
	digest := highwayhash.Sum128([]byte(normalizeName(tenantSlug)), key128[:])
	return hex.EncodeToString(digest[:])
}
