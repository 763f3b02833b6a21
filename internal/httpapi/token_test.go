package httpapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenIssuerRoundTrips(t *testing.T) {
	issuer := NewTokenIssuer([]byte("test-secret"), time.Minute)

	token, err := issuer.Issue("acme", "corr-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	slug, corr, err := issuer.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "acme", slug)
	require.Equal(t, "corr-1", corr)
}

func TestTokenIssuerRejectsExpiredToken(t *testing.T) {
	issuer := NewTokenIssuer([]byte("test-secret"), -time.Minute)

	token, err := issuer.Issue("acme", "corr-1")
	require.NoError(t, err)

	_, _, err = issuer.Verify(token)
	require.Error(t, err)
}

func TestTokenIssuerRejectsWrongSecret(t *testing.T) {
	issuer := NewTokenIssuer([]byte("test-secret"), time.Minute)
	other := NewTokenIssuer([]byte("different-secret"), time.Minute)

	token, err := issuer.Issue("acme", "corr-1")
	require.NoError(t, err)

	_, _, err = other.Verify(token)
	require.Error(t, err)
}
