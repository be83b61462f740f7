package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/chacha20poly1305"
)

func testKeys() map[string][]byte {
	return map[string][]byte{
		"k1": make([]byte, TicketKeySize),
	}
}

func TestTicketRoundTrip(t *testing.T) {
	tc, err := NewTicketCodec("k1", testKeys())
	if err != nil {
		t.Fatalf("NewTicketCodec failed: %v", err)
	}

	in := Ticket{
		Subject: "user123",
		Expiry:  time.Now().Add(time.Hour),
		Methods: []string{"get", "list"},
	}
	value, err := tc.Issue(in, "/rpc")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	out, err := tc.Redeem(value, "/rpc")
	if err != nil {
		t.Fatalf("Redeem failed: %v", err)
	}
	if out.Subject != in.Subject {
		t.Errorf("got subject %q, want %q", out.Subject, in.Subject)
	}
	if len(out.Methods) != 2 || out.Methods[0] != "get" || out.Methods[1] != "list" {
		t.Errorf("got methods %v, want %v", out.Methods, in.Methods)
	}
}

func TestTicketBoundToPath(t *testing.T) {
	tc, _ := NewTicketCodec("k1", testKeys())
	value, err := tc.Issue(Ticket{Subject: "u", Expiry: time.Now().Add(time.Hour)}, "/rpc")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := tc.Redeem(value, "/admin"); !errors.Is(err, ErrTicketInvalid) {
		t.Errorf("got %v, want %v for a ticket replayed against another path", err, ErrTicketInvalid)
	}
}

func TestTicketExpired(t *testing.T) {
	keys := testKeys()
	tc, _ := NewTicketCodec("k1", keys)

	// Seal a lapsed ticket directly; Issue refuses to create one.
	aead, err := chacha20poly1305.NewX(keys["k1"])
	if err != nil {
		t.Fatalf("failed to build AEAD: %v", err)
	}
	plain, err := cbor.Marshal(Ticket{Subject: "u", Expiry: time.Now().Add(-time.Hour)})
	if err != nil {
		t.Fatalf("failed to marshal ticket: %v", err)
	}
	nonce := make([]byte, aead.NonceSize())
	sealed := aead.Seal(nonce, nonce, plain, ticketAAD("/rpc"))
	value := "k1." + base64.RawURLEncoding.EncodeToString(sealed)

	if _, err := tc.Redeem(value, "/rpc"); !errors.Is(err, ErrTicketExpired) {
		t.Errorf("got %v, want %v", err, ErrTicketExpired)
	}
}

func TestIssueRefusesLapsedExpiry(t *testing.T) {
	tc, _ := NewTicketCodec("k1", testKeys())
	if _, err := tc.Issue(Ticket{Subject: "u", Expiry: time.Now().Add(-time.Minute)}, "/rpc"); !errors.Is(err, ErrTicketInvalid) {
		t.Errorf("got %v, want %v", err, ErrTicketInvalid)
	}
	if _, err := tc.Issue(Ticket{Subject: "u"}, "/rpc"); !errors.Is(err, ErrTicketInvalid) {
		t.Errorf("got %v, want %v for zero expiry", err, ErrTicketInvalid)
	}
}

func TestTicketTampered(t *testing.T) {
	tc, _ := NewTicketCodec("k1", testKeys())
	value, err := tc.Issue(Ticket{Subject: "u", Expiry: time.Now().Add(time.Hour)}, "/rpc")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	keyID := value[:3]
	sealed, err := base64.RawURLEncoding.DecodeString(value[3:])
	if err != nil {
		t.Fatalf("failed to decode value: %v", err)
	}
	sealed[len(sealed)-1] ^= 0x01
	tampered := keyID + base64.RawURLEncoding.EncodeToString(sealed)

	if _, err := tc.Redeem(tampered, "/rpc"); !errors.Is(err, ErrTicketInvalid) {
		t.Errorf("got %v, want %v", err, ErrTicketInvalid)
	}
}

func TestTicketFormatErrors(t *testing.T) {
	tc, _ := NewTicketCodec("k1", testKeys())

	tests := []struct {
		name  string
		value string
		want  error
	}{
		{"Empty", "", ErrTicketFormat},
		{"NoSeparator", "justonechunk", ErrTicketFormat},
		{"EmptyKeyID", ".payload", ErrTicketFormat},
		{"EmptyPayload", "k1.", ErrTicketFormat},
		{"BadBase64", "k1.!!!", ErrTicketFormat},
		{"TooShort", "k1." + base64.RawURLEncoding.EncodeToString([]byte("tiny")), ErrTicketFormat},
		{"UnknownKeyID", "zz." + base64.RawURLEncoding.EncodeToString(make([]byte, 64)), ErrTicketInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tc.Redeem(tt.value, "/rpc"); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTicketKeyRotation(t *testing.T) {
	oldKeys := testKeys()
	issued, err := NewTicketCodec("k1", oldKeys)
	if err != nil {
		t.Fatalf("NewTicketCodec failed: %v", err)
	}
	value, err := issued.Issue(Ticket{Subject: "u", Expiry: time.Now().Add(time.Hour)}, "/rpc")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	// A rotated codec seals with k2 but still accepts k1 tickets.
	k2 := make([]byte, TicketKeySize)
	k2[0] = 0x42
	rotated, err := NewTicketCodec("k2", map[string][]byte{"k1": oldKeys["k1"], "k2": k2})
	if err != nil {
		t.Fatalf("NewTicketCodec failed: %v", err)
	}
	if _, err := rotated.Redeem(value, "/rpc"); err != nil {
		t.Errorf("rotated codec rejected a ticket sealed with the old key: %v", err)
	}
}

func TestNewTicketCodecValidation(t *testing.T) {
	if _, err := NewTicketCodec("k1", nil); err == nil {
		t.Error("expected error with nil keys")
	}
	if _, err := NewTicketCodec("missing", testKeys()); err == nil {
		t.Error("expected error when keyID is not in keys")
	}
	if _, err := NewTicketCodec("short", map[string][]byte{"short": make([]byte, 16)}); err == nil {
		t.Error("expected error with an undersized key")
	}
}

func TestTicketAuthenticate(t *testing.T) {
	tc, _ := NewTicketCodec("k1", testKeys())
	value, err := tc.Issue(Ticket{Subject: "u", Expiry: time.Now().Add(time.Hour), Methods: []string{"get"}}, "/rpc")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	tests := []struct {
		name      string
		token     string
		method    string
		wantAuthn bool
		wantAuthz bool
	}{
		{"GrantedMethod", value, "get", true, true},
		{"UngrantedMethod", value, "delete", true, false},
		{"NoToken", "", "get", false, false},
		{"Garbage", "k1.garbage", "get", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testCall(tt.method, tt.token)
			if err := tc.Authenticate(context.Background(), c); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.IsAuthenticated != tt.wantAuthn {
				t.Errorf("got authenticated=%v, want %v", c.IsAuthenticated, tt.wantAuthn)
			}
			if c.IsAuthorized != tt.wantAuthz {
				t.Errorf("got authorized=%v, want %v", c.IsAuthorized, tt.wantAuthz)
			}
		})
	}
}
