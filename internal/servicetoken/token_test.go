package servicetoken

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

func TestSignerIssuesRS256(t *testing.T) {
	key, path := writeKey(t, true)
	signer, err := NewSigner(SignerOptions{PrivateKeyPath: path, Issuer: "askmynotes-web", TTL: time.Minute})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	signed, err := signer.Sign("notes-backend")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(signed, &claims, func(tok *jwt.Token) (any, error) {
		if tok.Header["kid"] != DefaultKeyID {
			t.Fatalf("unexpected kid: %v", tok.Header["kid"])
		}
		return &key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}), jwt.WithAudience("notes-backend"), jwt.WithIssuer("askmynotes-web"))
	if err != nil || !parsed.Valid {
		t.Fatalf("parse signed token: %v", err)
	}
	if claims.ID == "" || claims.Subject != "askmynotes-web" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestSignerPKCS8AndErrors(t *testing.T) {
	_, path := writeKey(t, false)
	signer, err := NewSigner(SignerOptions{PrivateKeyPath: path, Issuer: "web", KeyID: "k2"})
	if err != nil {
		t.Fatalf("pkcs8 key should load: %v", err)
	}
	if _, err := signer.Sign(" "); err == nil {
		t.Fatalf("expected empty audience to fail")
	}
	if _, err := NewSigner(SignerOptions{PrivateKeyPath: path}); err == nil {
		t.Fatalf("expected missing issuer to fail")
	}
	if _, err := NewSigner(SignerOptions{Issuer: "web"}); err == nil {
		t.Fatalf("expected missing path to fail")
	}
	bad := filepath.Join(t.TempDir(), "bad.pem")
	if err := os.WriteFile(bad, []byte("nope"), 0o600); err != nil {
		t.Fatalf("write bad pem: %v", err)
	}
	if _, err := NewSigner(SignerOptions{PrivateKeyPath: bad, Issuer: "web"}); err == nil {
		t.Fatalf("expected invalid pem to fail")
	}
}

func writeKey(t *testing.T, pkcs1 bool) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	if !pkcs1 {
		der, err := x509.MarshalPKCS8PrivateKey(key)
		if err != nil {
			t.Fatalf("marshal pkcs8: %v", err)
		}
		block = &pem.Block{Type: "PRIVATE KEY", Bytes: der}
	}
	path := filepath.Join(t.TempDir(), "svc.pem")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatalf("write pem: %v", err)
	}
	return key, path
}
