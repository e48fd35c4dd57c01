package token

import (
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"
	"time"
)

func newHSManager(t *testing.T, cfg Config) *Manager {
	t.Helper()

	if cfg.SigningMethod == "" {
		cfg.SigningMethod = MethodHS256
	}
	if len(cfg.PrivateKey) == 0 {
		cfg.PrivateKey = []byte("test-secret")
	}
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = 15 * time.Minute
	}

	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m
}

func TestCreateParseRoundtrip(t *testing.T) {
	m := newHSManager(t, Config{Issuer: "mindgauge", Audience: "api"})

	tok, err := m.Create("alice", []string{"participant", "reviewer"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	claims, err := m.Parse(tok)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if claims.PrincipalID != "alice" {
		t.Fatalf("PrincipalID %q, want %q", claims.PrincipalID, "alice")
	}
	if len(claims.Roles) != 2 || claims.Roles[0] != "participant" {
		t.Fatalf("unexpected roles %v", claims.Roles)
	}
	if claims.ID == "" {
		t.Fatal("token has no jti")
	}
	if claims.Issuer != "mindgauge" {
		t.Fatalf("issuer %q", claims.Issuer)
	}
}

func TestEd25519Roundtrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	m, err := NewManager(Config{
		AccessTTL:     15 * time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	tok, err := m.Create("bob", nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	claims, err := m.Parse(tok)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if claims.PrincipalID != "bob" {
		t.Fatalf("PrincipalID %q", claims.PrincipalID)
	}
}

func TestExpiredTokenRejectedButParseableForRefresh(t *testing.T) {
	m := newHSManager(t, Config{AccessTTL: 10 * time.Millisecond})

	tok, err := m.Create("alice", nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	if _, err := m.Parse(tok); err == nil {
		t.Fatal("Parse accepted an expired token")
	}

	claims, err := m.ParseAllowExpired(tok)
	if err != nil {
		t.Fatalf("ParseAllowExpired rejected an expired token: %v", err)
	}
	if claims.PrincipalID != "alice" {
		t.Fatalf("PrincipalID %q", claims.PrincipalID)
	}
}

func TestTamperedSignatureRejectedEverywhere(t *testing.T) {
	m := newHSManager(t, Config{})

	tok, err := m.Create("alice", nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Flip a character in the signature segment.
	i := strings.LastIndex(tok, ".") + 1
	flipped := byte('A')
	if tok[i] == 'A' {
		flipped = 'B'
	}
	tampered := tok[:i] + string(flipped) + tok[i+1:]

	if _, err := m.Parse(tampered); err == nil {
		t.Fatal("Parse accepted a tampered token")
	}
	if _, err := m.ParseAllowExpired(tampered); err == nil {
		t.Fatal("ParseAllowExpired accepted a tampered token")
	}
}

func TestWrongKeyRejected(t *testing.T) {
	signer := newHSManager(t, Config{PrivateKey: []byte("key-one")})
	verifier := newHSManager(t, Config{PrivateKey: []byte("key-two")})

	tok, err := signer.Create("alice", nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := verifier.Parse(tok); err == nil {
		t.Fatal("token verified under the wrong key")
	}
}

func TestIssuerAndAudienceEnforced(t *testing.T) {
	signer := newHSManager(t, Config{Issuer: "other-service", Audience: "other-api"})
	verifier := newHSManager(t, Config{Issuer: "mindgauge", Audience: "api"})

	tok, err := signer.Create("alice", nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := verifier.Parse(tok); err == nil {
		t.Fatal("Parse accepted a foreign issuer")
	}
	// Refresh input is held to the same issuer policy.
	if _, err := verifier.ParseAllowExpired(tok); err == nil {
		t.Fatal("ParseAllowExpired accepted a foreign issuer")
	}
}

func TestGarbageRejected(t *testing.T) {
	m := newHSManager(t, Config{})

	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := m.Parse(tok); err == nil {
			t.Fatalf("Parse accepted %q", tok)
		}
		if _, err := m.ParseAllowExpired(tok); err == nil {
			t.Fatalf("ParseAllowExpired accepted %q", tok)
		}
	}
}

func TestLeewayToleratesSkew(t *testing.T) {
	m := newHSManager(t, Config{AccessTTL: 20 * time.Millisecond, Leeway: time.Minute})

	tok, err := m.Create("alice", nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	// Expired by the wall clock, inside the configured skew tolerance.
	if _, err := m.Parse(tok); err != nil {
		t.Fatalf("Parse rejected a token within leeway: %v", err)
	}
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodHS256}); err == nil {
		t.Fatal("NewManager accepted hs256 without a secret")
	}
	if _, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519}); err == nil {
		t.Fatal("NewManager accepted ed25519 without a public key")
	}
	if _, err := NewManager(Config{AccessTTL: 0, SigningMethod: MethodHS256, PrivateKey: []byte("s")}); err == nil {
		t.Fatal("NewManager accepted a zero access TTL")
	}
	if _, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: "rs512", PrivateKey: []byte("s")}); err == nil {
		t.Fatal("NewManager accepted an unsupported method")
	}
	if _, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("s"), Leeway: 10 * time.Minute}); err == nil {
		t.Fatal("NewManager accepted an excessive leeway")
	}
}
