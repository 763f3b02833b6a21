package httpapi

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// provisioningClaims is the payload of a POST /onboard provisioning token:
// proof that the caller just triggered onboarding for this tenant, handed
// back so a client can correlate subsequent readiness polls without the
// server keeping request-scoped state.
type provisioningClaims struct {
	TenantSlug   string `json:"tenant_slug"`
	InvocationID string `json:"invocation_id"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies provisioning tokens with a single shared
// secret. The serve command supplies an HMAC secret from its --token-secret
// flag (PROVISIONING_TOKEN_SECRET); a managed deployment would swap this
// for an asymmetric key without changing callers.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer builds an issuer. ttl bounds how long a provisioning token
// remains valid.
func NewTokenIssuer(secret []byte, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: secret, ttl: ttl}
}

// Issue signs a provisioning token for tenantSlug/invocationID.
func (i *TokenIssuer) Issue(tenantSlug, invocationID string) (string, error) {
	now := time.Now()
	claims := provisioningClaims{
		TenantSlug:   tenantSlug,
		InvocationID: invocationID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			Subject:   tenantSlug,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("signing provisioning token for %s: %w", tenantSlug, err)
	}
	return signed, nil
}

// Verify parses and validates a provisioning token, returning its tenant
// slug and invocation id.
func (i *TokenIssuer) Verify(tokenString string) (tenantSlug, invocationID string, err error) {
	claims := &provisioningClaims{}
	_, err = jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return "", "", fmt.Errorf("verifying provisioning token: %w", err)
	}
	return claims.TenantSlug, claims.InvocationID, nil
}
