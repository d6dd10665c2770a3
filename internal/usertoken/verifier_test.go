package usertoken

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

func TestNewVerifierRequiresJWKSURL(t *testing.T) {
	if _, err := NewVerifier(Config{}); err == nil {
		t.Fatalf("expected missing jwks url to fail")
	}
}

func TestVerifyRefreshesOnUnknownKid(t *testing.T) {
	key1 := mustKey(t)
	key2 := mustKey(t)

	var active atomic.Value
	active.Store("kid-1")
	var fetches atomic.Int32
	jwksServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fetches.Add(1)
		kid := active.Load().(string)
		key := key1.PublicKey
		if kid == "kid-2" {
			key = key2.PublicKey
		}
		w.Header().Set("Cache-Control", "public, max-age=300")
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": []map[string]string{toJWK(kid, key)}})
	}))
	defer jwksServer.Close()

	v, err := NewVerifier(Config{JWKSURL: jwksServer.URL, Issuer: "issuer-a", Audience: "aud-a"})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	if fetches.Load() != 0 {
		t.Fatalf("constructor should not fetch keys")
	}

	ctx := context.Background()
	signed1 := signToken(t, key1, "kid-1", "user-a", time.Now())
	id, err := v.Verify(ctx, signed1)
	if err != nil || id.Subject != "user-a" || id.Email != "user-a@example.com" {
		t.Fatalf("verify token1 failed: id=%+v err=%v", id, err)
	}

	active.Store("kid-2")
	signed2 := signToken(t, key2, "kid-2", "user-b", time.Now())
	if err := v.VerifySubject(ctx, signed2, "user-b"); err != nil {
		t.Fatalf("verify token2 after rotation: %v", err)
	}
	if fetches.Load() != 2 {
		t.Fatalf("expected two jwks fetches, got %d", fetches.Load())
	}
	if err := v.VerifySubject(ctx, signed2, "someone-else"); err == nil {
		t.Fatalf("expected subject mismatch to fail")
	}
}

func TestVerifyRejectsFutureIssuedAt(t *testing.T) {
	key := mustKey(t)
	jwksServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": []map[string]string{toJWK("kid-1", key.PublicKey)}})
	}))
	defer jwksServer.Close()

	v, err := NewVerifier(Config{JWKSURL: jwksServer.URL, Issuer: "issuer-a", Audience: "aud-a", Leeway: 5 * time.Second})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	signed := signToken(t, key, "kid-1", "user-1", time.Now().Add(2*time.Minute))
	if _, err := v.Verify(context.Background(), signed); err == nil {
		t.Fatalf("expected future iat token to fail")
	}
}

func TestVerifyJWKSUnavailable(t *testing.T) {
	jwksServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer jwksServer.Close()

	v, err := NewVerifier(Config{JWKSURL: jwksServer.URL})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	if _, err := v.Verify(context.Background(), "a.b.c"); err == nil {
		t.Fatalf("expected jwks failure to surface")
	}
}

func TestParseCacheMaxAge(t *testing.T) {
	cases := map[string]time.Duration{
		"":                        0,
		"no-store":                0,
		"public, max-age=60":      time.Minute,
		"MAX-AGE=5, must-revalid": 5 * time.Second,
		"max-age=abc":             0,
	}
	for in, want := range cases {
		if got := parseCacheMaxAge(in); got != want {
			t.Fatalf("parseCacheMaxAge(%q) = %v, want %v", in, got, want)
		}
	}
}

func mustKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func signToken(t *testing.T, key *rsa.PrivateKey, kid, subject string, issuedAt time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, accessClaims{
		Email: subject + "@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    "issuer-a",
			Audience:  jwt.ClaimStrings{"aud-a"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	})
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func toJWK(kid string, key rsa.PublicKey) map[string]string {
	return map[string]string{
		"kty": "RSA",
		"kid": kid,
		"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
	}
}
