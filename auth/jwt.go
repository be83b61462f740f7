package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/mnehpets/onerpc/rpc"
)

// JWTConfig configures a JWT authenticator. Exactly one of Secret and
// JWKSURL must be set.
type JWTConfig struct {
	// Secret enables HMAC (HS256) verification with a static key.
	Secret []byte

	// JWKSURL enables RSA verification against a remote key set. Keys are
	// cached and refreshed when an unknown key id appears or the cache
	// ages out.
	JWKSURL string

	// Issuer and Audience are validated when non-empty.
	Issuer   string
	Audience string

	// ScopeClaim names the claim carrying method grants. Default "scope".
	// The value may be a space-separated string or an array of strings. A
	// token without the claim is granted every method; a token with it is
	// restricted to the listed methods ("*" grants all).
	ScopeClaim string

	// CacheTTL bounds how long fetched JWKS keys are reused. Default 1 hour.
	CacheTTL time.Duration

	// HTTPClient fetches the JWKS. Defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// JWT authenticates calls by bearer JWT, verified either with a static
// HMAC secret or against a JWKS endpoint.
type JWT struct {
	cfg  JWTConfig
	keys *keySet
}

// NewJWT builds a JWT authenticator from cfg.
func NewJWT(cfg JWTConfig) (*JWT, error) {
	if (len(cfg.Secret) == 0) == (cfg.JWKSURL == "") {
		return nil, errors.New("exactly one of Secret and JWKSURL must be set")
	}
	if cfg.ScopeClaim == "" {
		cfg.ScopeClaim = "scope"
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = time.Hour
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	a := &JWT{cfg: cfg}
	if cfg.JWKSURL != "" {
		a.keys = &keySet{
			url:    cfg.JWKSURL,
			ttl:    cfg.CacheTTL,
			client: cfg.HTTPClient,
			keys:   make(map[string]*rsa.PublicKey),
		}
	}
	return a, nil
}

// Authenticate verifies the call's bearer token. An absent, malformed, or
// unverifiable token leaves the call unauthenticated; a verified token
// authenticates it, with the scope claim deciding authorization for the
// envelope's method.
func (a *JWT) Authenticate(ctx context.Context, c *rpc.Call) error {
	raw := BearerToken(c.Header)
	if raw == "" {
		return nil
	}

	token, err := jwtlib.Parse(raw, a.keyFor(ctx), a.parserOptions()...)
	if err != nil {
		slog.Debug("jwt verification failed", "error", err)
		return nil
	}
	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok || !token.Valid {
		return nil
	}

	c.IsAuthenticated = true
	c.IsAuthorized = grantsMethod(scopesFrom(claims, a.cfg.ScopeClaim), c.Envelope.MethodName)
	return nil
}

// keyFor returns the verification key callback for the configured mode.
func (a *JWT) keyFor(ctx context.Context) jwtlib.Keyfunc {
	return func(token *jwtlib.Token) (any, error) {
		if a.keys == nil {
			if _, ok := token.Method.(*jwtlib.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return a.cfg.Secret, nil
		}

		if _, ok := token.Method.(*jwtlib.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, errors.New("token missing kid header")
		}
		key, err := a.keys.key(ctx, kid)
		if err != nil {
			return nil, fmt.Errorf("fetching JWKS key for kid %q: %w", kid, err)
		}
		return key, nil
	}
}

func (a *JWT) parserOptions() []jwtlib.ParserOption {
	methods := []string{"RS256", "RS384", "RS512"}
	if a.keys == nil {
		methods = []string{"HS256"}
	}
	opts := []jwtlib.ParserOption{jwtlib.WithValidMethods(methods)}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(a.cfg.Issuer))
	}
	if a.cfg.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(a.cfg.Audience))
	}
	return opts
}

// scopesFrom extracts the grant list from claims. The claim may be a
// space-separated string or an array of strings; absent or empty yields
// nil.
func scopesFrom(claims jwtlib.MapClaims, claim string) []string {
	val, ok := claims[claim]
	if !ok {
		return nil
	}
	if s, ok := val.(string); ok {
		return strings.Fields(s)
	}
	if arr, ok := val.([]any); ok {
		var scopes []string
		for _, item := range arr {
			if s, ok := item.(string); ok {
				scopes = append(scopes, s)
			}
		}
		return scopes
	}
	return nil
}

// keySet caches RSA public keys fetched from a JWKS endpoint. Reads take
// the read lock; a miss or an aged-out cache refreshes under the write
// lock with a double check.
type keySet struct {
	url    string
	ttl    time.Duration
	client *http.Client

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

func (s *keySet) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	s.mu.RLock()
	if key, ok := s.keys[kid]; ok && time.Since(s.fetchedAt) < s.ttl {
		s.mu.RUnlock()
		return key, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if key, ok := s.keys[kid]; ok && time.Since(s.fetchedAt) < s.ttl {
		return key, nil
	}

	if err := s.fetch(ctx); err != nil {
		return nil, err
	}
	key, ok := s.keys[kid]
	if !ok {
		return nil, fmt.Errorf("key %q not found in JWKS", kid)
	}
	return key, nil
}

// fetch retrieves and parses the key set. Callers hold the write lock.
func (s *keySet) fetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("creating JWKS request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching JWKS: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading JWKS response: %w", err)
	}

	var doc struct {
		Keys []webKey `json:"keys"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("parsing JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" {
			continue
		}
		if k.Use != "" && k.Use != "sig" {
			continue
		}
		pub, err := k.publicKey()
		if err != nil {
			slog.Warn("skipping JWKS key", "kid", k.Kid, "error", err)
			continue
		}
		keys[k.Kid] = pub
	}

	s.keys = keys
	s.fetchedAt = time.Now()
	return nil
}

// webKey is one JWKS entry, RSA parameters base64url-encoded.
type webKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (k webKey) publicKey() (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}
	n := new(big.Int).SetBytes(nBytes)
	e := new(big.Int).SetBytes(eBytes)
	if !e.IsInt64() {
		return nil, errors.New("RSA exponent too large")
	}
	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}
