// Package auth supplies authenticators for the rpc pipeline.
//
// Every authenticator implements rpc.Authenticator: it inspects the call's
// transport context and envelope and sets the IsAuthenticated and
// IsAuthorized booleans before the dispatcher's gate. The gate fails
// closed, so an authenticator that cannot place the caller simply leaves
// the booleans false and returns nil; the call is then rejected with the
// generic gate error rather than a credential-specific one.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/mnehpets/onerpc/rpc"
)

// AllowAll marks every call authenticated and authorized, for endpoints
// that are deliberately open.
func AllowAll() rpc.Authenticator {
	return rpc.AuthenticatorFunc(func(ctx context.Context, c *rpc.Call) error {
		c.IsAuthenticated = true
		c.IsAuthorized = true
		return nil
	})
}

// BearerToken extracts the token from a Bearer Authorization header.
// Returns "" when the header is absent or carries another scheme.
func BearerToken(h http.Header) string {
	if h == nil {
		return ""
	}
	value := h.Get("Authorization")
	if !strings.HasPrefix(value, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(value, "Bearer ")
}

// grantsMethod applies the shared grant rule: an empty grant list grants
// every method, otherwise the method must be listed or covered by "*".
func grantsMethod(grants []string, method string) bool {
	if len(grants) == 0 {
		return true
	}
	for _, g := range grants {
		if g == "*" || g == method {
			return true
		}
	}
	return false
}
