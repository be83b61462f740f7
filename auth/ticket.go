package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/mnehpets/onerpc/rpc"
)

var (
	ErrTicketFormat  = errors.New("invalid ticket format")
	ErrTicketInvalid = errors.New("invalid ticket")
	ErrTicketExpired = errors.New("ticket expired")
	ErrTicketConfig  = errors.New("invalid ticket codec configuration")
)

// maxTicketLen bounds the amount of attacker-controlled data the codec
// will decode for one ticket value.
const maxTicketLen = 8192

// TicketKeySize is the key size (in bytes) required by the codec's AEAD
// (XChaCha20-Poly1305).
const TicketKeySize = chacha20poly1305.KeySize

// Ticket is a sealed bearer credential: who it names, when it lapses, and
// which methods it grants. An empty Methods list grants every method.
type Ticket struct {
	Subject string    `cbor:"s"`
	Expiry  time.Time `cbor:"e"`
	Methods []string  `cbor:"m,omitempty"`
}

// TicketCodec issues and redeems sealed tickets.
//
// Format: [keyID] "." [sealed_b64] where sealed = nonce || AEAD.Seal of
// the CBOR-encoded Ticket, and the AEAD associated data binds the value
// to the endpoint path it was issued for. Key rotation: keys holds every
// accepted key; keyID selects the current sealing key.
type TicketCodec struct {
	keyID string
	keys  map[string][]byte
}

// NewTicketCodec creates a codec. Every key must be a valid
// XChaCha20-Poly1305 key (TicketKeySize bytes) and keyID must be present
// in keys.
func NewTicketCodec(keyID string, keys map[string][]byte) (*TicketCodec, error) {
	if keys == nil {
		return nil, errors.New("keys must not be nil")
	}
	if _, ok := keys[keyID]; !ok {
		return nil, errors.New("keyID not found in keys")
	}
	for id, k := range keys {
		if _, err := chacha20poly1305.NewX(k); err != nil {
			return nil, fmt.Errorf("invalid key %s: %w", id, err)
		}
	}
	return &TicketCodec{keyID: keyID, keys: keys}, nil
}

func ticketAAD(path string) []byte {
	return []byte("ticket:" + path)
}

// Issue seals t for use against the endpoint at path. The ticket must
// carry a future expiry.
func (tc *TicketCodec) Issue(t Ticket, path string) (string, error) {
	if tc == nil {
		return "", ErrTicketConfig
	}
	if t.Expiry.IsZero() || !t.Expiry.After(time.Now()) {
		return "", ErrTicketInvalid
	}
	key, ok := tc.keys[tc.keyID]
	if !ok {
		return "", ErrTicketConfig
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", err
	}

	plain, err := cbor.Marshal(t)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, plain, ticketAAD(path))
	return tc.keyID + "." + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Redeem opens value for the endpoint at path and returns the embedded
// ticket. A ticket sealed for a different path fails ErrTicketInvalid; a
// lapsed one fails ErrTicketExpired.
func (tc *TicketCodec) Redeem(value, path string) (*Ticket, error) {
	if tc == nil {
		return nil, ErrTicketConfig
	}
	if len(value) == 0 || len(value) > maxTicketLen {
		return nil, ErrTicketFormat
	}
	keyID, sealedB64, ok := strings.Cut(value, ".")
	if !ok || keyID == "" || sealedB64 == "" {
		return nil, ErrTicketFormat
	}
	key, ok := tc.keys[keyID]
	if !ok {
		return nil, ErrTicketInvalid
	}

	sealed, err := base64.RawURLEncoding.DecodeString(sealedB64)
	if err != nil {
		return nil, ErrTicketFormat
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrTicketFormat
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, ticketAAD(path))
	if err != nil {
		return nil, ErrTicketInvalid
	}

	var t Ticket
	if err := cbor.Unmarshal(plain, &t); err != nil {
		return nil, ErrTicketInvalid
	}
	if !t.Expiry.After(time.Now()) {
		return nil, ErrTicketExpired
	}
	return &t, nil
}

// Authenticate redeems the call's bearer token against the call's
// endpoint path. An absent or unredeemable ticket leaves the call
// unauthenticated; a valid one authenticates it, with the ticket's method
// grants deciding authorization.
func (tc *TicketCodec) Authenticate(ctx context.Context, c *rpc.Call) error {
	value := BearerToken(c.Header)
	if value == "" {
		return nil
	}
	t, err := tc.Redeem(value, c.Endpoint.Path)
	if err != nil {
		return nil
	}
	c.IsAuthenticated = true
	c.IsAuthorized = grantsMethod(t.Methods, c.Envelope.MethodName)
	return nil
}
