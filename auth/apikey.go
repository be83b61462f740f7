package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"

	"github.com/mnehpets/onerpc/rpc"
)

// Key configures one API key in a Keyring.
type Key struct {
	// Secret is the raw key value callers present as a bearer token.
	// It is hashed at construction; the plaintext is not retained.
	Secret string

	// Subject names the key's owner.
	Subject string

	// Methods lists the method names the key may invoke. Empty grants
	// every method; "*" is an explicit full grant.
	Methods []string
}

type keyEntry struct {
	digest  [32]byte
	subject string
	methods []string
}

// Keyring authenticates calls by static API key. The presented bearer
// token is hashed with SHA-256 and compared against the stored digests in
// constant time; a match authenticates the call and the key's method
// grants decide authorization for the envelope's method.
type Keyring struct {
	keys []keyEntry
}

// NewKeyring builds a Keyring. Secrets are hashed immediately.
func NewKeyring(keys ...Key) *Keyring {
	kr := &Keyring{}
	for _, k := range keys {
		kr.keys = append(kr.keys, keyEntry{
			digest:  sha256.Sum256([]byte(k.Secret)),
			subject: k.Subject,
			methods: k.Methods,
		})
	}
	return kr
}

// Authenticate matches the call's bearer token against the ring. An
// absent token or an unknown key leaves the call unauthenticated.
func (kr *Keyring) Authenticate(ctx context.Context, c *rpc.Call) error {
	token := BearerToken(c.Header)
	if token == "" {
		return nil
	}
	digest := sha256.Sum256([]byte(token))
	for i := range kr.keys {
		e := &kr.keys[i]
		if subtle.ConstantTimeCompare(digest[:], e.digest[:]) == 1 {
			c.IsAuthenticated = true
			c.IsAuthorized = grantsMethod(e.methods, c.Envelope.MethodName)
			return nil
		}
	}
	return nil
}
