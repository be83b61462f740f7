package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/mnehpets/onerpc/rpc"
)

// OIDC authenticates calls by bearer ID token, verified against an OIDC
// provider's published signing keys. A verified identity is granted every
// method; pair with a scoped authenticator when finer grants are needed.
type OIDC struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDC performs discovery against issuer and builds a verifier for
// tokens issued to clientID.
func NewOIDC(ctx context.Context, issuer, clientID string) (*OIDC, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to query provider %q: %w", issuer, err)
	}
	return &OIDC{verifier: provider.Verifier(&oidc.Config{ClientID: clientID})}, nil
}

// NewOIDCWithVerifier wraps an already-configured verifier, for callers
// that manage provider setup themselves.
func NewOIDCWithVerifier(v *oidc.IDTokenVerifier) *OIDC {
	return &OIDC{verifier: v}
}

// Authenticate verifies the call's bearer token as an ID token. An absent
// or unverifiable token leaves the call unauthenticated.
func (a *OIDC) Authenticate(ctx context.Context, c *rpc.Call) error {
	raw := BearerToken(c.Header)
	if raw == "" {
		return nil
	}
	if _, err := a.verifier.Verify(ctx, raw); err != nil {
		slog.Debug("id token verification failed", "error", err)
		return nil
	}
	c.IsAuthenticated = true
	c.IsAuthorized = true
	return nil
}
