package errkind

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExitCode(t *testing.T) {
	require.Equal(t, 0, ExitCode(nil))
	require.Equal(t, 2, ExitCode(&UnknownSchemaError{Tenant: "t"}))
	require.Equal(t, 3, ExitCode(&BlueprintCollisionError{Fingerprint: "abc"}))
	require.Equal(t, 5, ExitCode(&CancelledError{NodeID: "n1"}))
	require.Equal(t, 4, ExitCode(&MergeFailureError{MasterModelID: "m", Cause: fmt.Errorf("boom")}))
	require.Equal(t, 4, ExitCode(fmt.Errorf("some other warehouse error")))
}

func TestWrappedErrorsStillClassify(t *testing.T) {
	wrapped := fmt.Errorf("during onboard: %w", &UnknownSchemaError{Tenant: "t"})
	require.Equal(t, 2, ExitCode(wrapped))
}

func TestAmbiguousAnalyticsSourceMessage(t *testing.T) {
	err := &AmbiguousAnalyticsSourceError{Tenant: "tyrell_corp", Domain: "sessions", Sources: []string{"shopify_analytics", "google_analytics"}}
	require.Contains(t, err.Error(), "tyrell_corp")
	require.Contains(t, err.Error(), "sessions")
}
