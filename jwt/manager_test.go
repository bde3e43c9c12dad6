package jwt

import (
	"strings"
	"testing"
	"time"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func testManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		Secret:    testSecret,
		AccessTTL: 15 * time.Minute,
		Issuer:    "pennyledger",
		Audience:  "pennyledger-api",
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestCreateAndParseAccess(t *testing.T) {
	m := testManager(t)

	token, err := m.CreateAccess("u1", "alice@example.com")
	if err != nil {
		t.Fatalf("CreateAccess: %v", err)
	}

	claims, err := m.ParseAccess(token)
	if err != nil {
		t.Fatalf("ParseAccess: %v", err)
	}
	if claims.Subject != "u1" {
		t.Fatalf("subject: got %s, want u1", claims.Subject)
	}
	if claims.Email != "alice@example.com" {
		t.Fatalf("email: got %s", claims.Email)
	}
	if claims.Issuer != "pennyledger" {
		t.Fatalf("issuer: got %s", claims.Issuer)
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		t.Fatal("expected iat and exp claims")
	}
	if lifetime := claims.ExpiresAt.Sub(claims.IssuedAt.Time); lifetime != 15*time.Minute {
		t.Fatalf("lifetime: got %v, want 15m", lifetime)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	m := testManager(t)
	token, err := m.CreateAccess("u1", "alice@example.com")
	if err != nil {
		t.Fatalf("CreateAccess: %v", err)
	}

	other, err := NewManager(Config{
		Secret:    []byte("ffffffffffffffffffffffffffffffff"),
		AccessTTL: 15 * time.Minute,
		Issuer:    "pennyledger",
		Audience:  "pennyledger-api",
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, err := other.ParseAccess(token); err == nil {
		t.Fatal("token accepted under a different secret")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	m, err := NewManager(Config{
		Secret:    testSecret,
		AccessTTL: time.Nanosecond,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	token, err := m.CreateAccess("u1", "alice@example.com")
	if err != nil {
		t.Fatalf("CreateAccess: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	if _, err := m.ParseAccess(token); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	issuing, err := NewManager(Config{
		Secret:    testSecret,
		AccessTTL: 15 * time.Minute,
		Issuer:    "someone-else",
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	token, err := issuing.CreateAccess("u1", "alice@example.com")
	if err != nil {
		t.Fatalf("CreateAccess: %v", err)
	}

	if _, err := testManager(t).ParseAccess(token); err == nil {
		t.Fatal("token with wrong issuer accepted")
	}
}

func TestParseRejectsTampering(t *testing.T) {
	m := testManager(t)
	token, err := m.CreateAccess("u1", "alice@example.com")
	if err != nil {
		t.Fatalf("CreateAccess: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(parts))
	}
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]
	if _, err := m.ParseAccess(tampered); err == nil {
		t.Fatal("tampered token accepted")
	}
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager(Config{Secret: []byte("short"), AccessTTL: time.Minute}); err == nil {
		t.Fatal("short secret accepted")
	}
	if _, err := NewManager(Config{Secret: testSecret, AccessTTL: 0}); err == nil {
		t.Fatal("zero ttl accepted")
	}
	if _, err := NewManager(Config{Secret: testSecret, AccessTTL: time.Minute, Leeway: 5 * time.Minute}); err == nil {
		t.Fatal("excessive leeway accepted")
	}
}
