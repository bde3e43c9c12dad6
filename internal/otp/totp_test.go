package otp

import (
	"bytes"
	"encoding/base32"
	"strings"
	"testing"
	"time"
)

// RFC 6238 Appendix B vectors for HMAC-SHA-1, 8 digits, 30-second period.
var rfc6238Vectors = []struct {
	unix int64
	code string
}{
	{59, "94287082"},
	{1111111109, "07081804"},
	{1111111111, "14050471"},
	{1234567890, "89005924"},
	{2000000000, "69279037"},
	{20000000000, "65353130"},
}

func TestRFC6238Vectors(t *testing.T) {
	secret := base32.StdEncoding.WithPadding(base32.NoPadding).
		EncodeToString([]byte("12345678901234567890"))
	m := NewManager(Config{Digits: 8, Period: 30, Skew: 0, Algorithm: "SHA1"})

	for _, tc := range rfc6238Vectors {
		got, err := m.CodeAt(secret, time.Unix(tc.unix, 0), 0)
		if err != nil {
			t.Fatalf("CodeAt(%d): %v", tc.unix, err)
		}
		if got != tc.code {
			t.Errorf("T=%d: got %s, want %s", tc.unix, got, tc.code)
		}

		ok, err := m.VerifyCode(secret, tc.code, time.Unix(tc.unix, 0))
		if err != nil {
			t.Fatalf("VerifyCode(%d): %v", tc.unix, err)
		}
		if !ok {
			t.Errorf("T=%d: vector code rejected", tc.unix)
		}
	}
}

func TestVerifyWindow(t *testing.T) {
	m := NewManager(Config{Digits: 6, Period: 30, Skew: 2, Algorithm: "SHA1", SecretLength: 20})
	secret, err := m.GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	now := time.Now()

	for offset := int64(-2); offset <= 2; offset++ {
		code, err := m.CodeAt(secret, now, offset)
		if err != nil {
			t.Fatalf("CodeAt(%d): %v", offset, err)
		}
		ok, err := m.VerifyCode(secret, code, now)
		if err != nil {
			t.Fatalf("VerifyCode(offset %d): %v", offset, err)
		}
		if !ok {
			t.Errorf("code at offset %d should be inside the window", offset)
		}
	}

	for _, offset := range []int64{-3, 3} {
		code, err := m.CodeAt(secret, now, offset)
		if err != nil {
			t.Fatalf("CodeAt(%d): %v", offset, err)
		}
		ok, err := m.VerifyCode(secret, code, now)
		if err != nil {
			t.Fatalf("VerifyCode(offset %d): %v", offset, err)
		}
		if ok {
			t.Errorf("code at offset %d should be outside the window", offset)
		}
	}
}

func TestVerifyMalformedCode(t *testing.T) {
	m := NewManager(Config{Digits: 6, Period: 30, Skew: 1})
	secret, _ := m.GenerateSecret()

	for _, code := range []string{"", "12345", "1234567", "12a456", "      "} {
		ok, err := m.VerifyCode(secret, code, time.Now())
		if err != nil {
			t.Fatalf("VerifyCode(%q): %v", code, err)
		}
		if ok {
			t.Errorf("malformed code %q accepted", code)
		}
	}
}

func TestVerifyInvalidSecret(t *testing.T) {
	m := NewManager(Config{Digits: 6})
	if _, err := m.VerifyCode("not!base32!", "123456", time.Now()); err == nil {
		t.Fatal("expected error for invalid secret")
	}
}

func TestGenerateSecretLength(t *testing.T) {
	m := NewManager(Config{SecretLength: 20})
	secret, err := m.GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}

	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(secret)
	if err != nil {
		t.Fatalf("secret not base32: %v", err)
	}
	if len(raw) != 20 {
		t.Fatalf("expected 160-bit secret, got %d bytes", len(raw))
	}
}

func TestProvisionURI(t *testing.T) {
	m := NewManager(Config{Issuer: "Pennyledger", Digits: 6, Period: 30})
	uri := m.ProvisionURI("ABC234", "alice@example.com")

	if !strings.HasPrefix(uri, "otpauth://totp/") {
		t.Fatalf("unexpected scheme: %s", uri)
	}
	for _, want := range []string{"secret=ABC234", "issuer=Pennyledger", "digits=6", "period=30", "algorithm=SHA1"} {
		if !strings.Contains(uri, want) {
			t.Errorf("uri missing %q: %s", want, uri)
		}
	}
}

func TestQRPNG(t *testing.T) {
	m := NewManager(Config{Issuer: "Pennyledger"})
	png, err := m.QRPNG("otpauth://totp/Pennyledger:a?secret=ABC234")
	if err != nil {
		t.Fatalf("QRPNG: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Fatal("expected PNG magic bytes")
	}
}

func TestUnsupportedAlgorithm(t *testing.T) {
	m := NewManager(Config{Algorithm: "MD5"})
	secret, _ := m.GenerateSecret()
	if _, err := m.VerifyCode(secret, "123456", time.Now()); err == nil {
		t.Fatal("expected error for unsupported algorithm")
	}
}
