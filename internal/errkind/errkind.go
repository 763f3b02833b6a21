// Package errkind defines the control plane's error taxonomy as concrete Go
// types instead of string matching, so the CLI and HTTP surfaces can map a
// failure to the right exit code or status without parsing messages.
package errkind

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// UnknownSchemaError is returned when a landed table's fingerprint has no
// entry in the Blueprint Registry. It carries enough context for an operator
// to update the catalog: the columns actually observed, and the closest
// known blueprint by symmetric difference over the column set.
type UnknownSchemaError struct {
	Tenant       string
	SourcePlat   string
	Object       string
	Fingerprint  string
	Observed     []string // "name:type" pairs, sorted
	ClosestMatch string   // master_model_id of the nearest known blueprint, if any
	ClosestDiff  []string // human-readable symmetric difference
}

func (e *UnknownSchemaError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "unknown schema for %s/%s (tenant %s, fingerprint %s): observed columns [%s]",
		e.SourcePlat, e.Object, e.Tenant, e.Fingerprint, strings.Join(e.Observed, ", "))
	if e.ClosestMatch != "" {
		fmt.Fprintf(&b, "; closest known blueprint is %q, differing by [%s]",
			e.ClosestMatch, strings.Join(e.ClosestDiff, ", "))
	}
	return b.String()
}

// BlueprintCollisionError is a fatal registry-initialization error: two
// distinct master_model_ids resolved to the same fingerprint.
type BlueprintCollisionError struct {
	Fingerprint string
	First       string
	Second      string
}

func (e *BlueprintCollisionError) Error() string {
	return fmt.Sprintf("blueprint collision: fingerprint %s is claimed by both %q and %q",
		e.Fingerprint, e.First, e.Second)
}

// AmbiguousAnalyticsSourceError is returned by the Factory Resolver when more
// than one analytics source is enabled for a single-analytics-source domain.
type AmbiguousAnalyticsSourceError struct {
	Tenant  string
	Domain  string
	Sources []string
}

func (e *AmbiguousAnalyticsSourceError) Error() string {
	sorted := append([]string(nil), e.Sources...)
	sort.Strings(sorted)
	return fmt.Sprintf("tenant %s has %d enabled analytics sources for domain %s, expected at most 1: %s",
		e.Tenant, len(sorted), e.Domain, strings.Join(sorted, ", "))
}

// MergeFailureError wraps a warehouse-level error during a push-circuit
// post-hook MERGE. The run is marked failed; retrying is always safe because
// the MERGE match key is idempotent.
type MergeFailureError struct {
	MasterModelID string
	Cause         error
}

func (e *MergeFailureError) Error() string {
	return fmt.Sprintf("merge into %s failed: %v", e.MasterModelID, e.Cause)
}

func (e *MergeFailureError) Unwrap() error { return e.Cause }

// UpstreamMissingError is recorded when an intermediate or engine references
// a model that no longer exists (e.g. a tenant disabled a source mid-flight).
// The factory substitutes a typed empty result and the overall run succeeds.
type UpstreamMissingError struct {
	Reference string
}

func (e *UpstreamMissingError) Error() string {
	return fmt.Sprintf("upstream model %q does not exist", e.Reference)
}

// CancelledError marks a run that stopped due to cooperative cancellation.
type CancelledError struct {
	NodeID string
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("run cancelled before node %q started", e.NodeID)
}

// TimedOutError marks a model run that was aborted after exceeding its
// deadline.
type TimedOutError struct {
	NodeID string
}

func (e *TimedOutError) Error() string {
	return fmt.Sprintf("node %q timed out", e.NodeID)
}

// IngestFailureError wraps an error surfaced by the external ingestion
// adapter. Staging/master state is left untouched.
type IngestFailureError struct {
	SourcePlat string
	Cause      error
}

func (e *IngestFailureError) Error() string {
	return fmt.Sprintf("ingestion of %s failed: %v", e.SourcePlat, e.Cause)
}

func (e *IngestFailureError) Unwrap() error { return e.Cause }

// ExitCode maps an error produced by the onboarding pipeline to a CLI exit
// code. nil maps to 0. Unrecognized non-nil errors fall through to the
// warehouse-error code since any error that reaches here but isn't
// categorized almost always originated from a warehouse call.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch {
	case asUnknownSchema(err):
		return 2
	case asBlueprintCollision(err):
		return 3
	case asCancelled(err):
		return 5
	default:
		return 4
	}
}

func asUnknownSchema(err error) bool {
	var e *UnknownSchemaError
	return errors.As(err, &e)
}

func asBlueprintCollision(err error) bool {
	var e *BlueprintCollisionError
	return errors.As(err, &e)
}

func asCancelled(err error) bool {
	var e *CancelledError
	return errors.As(err, &e)
}
