// Package otp implements the second-factor primitives: RFC 6238 time-based
// one-time passwords with a clock-drift window, otpauth provisioning URIs with
// QR rendering, and one-time backup codes.
package otp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"net/url"
	"strconv"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"
)

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// Config for TOTP generation and verification. Skew counts accepted time steps
// on each side of now; with Period=30 and Skew=2 that tolerates ~±60s of drift.
type Config struct {
	Issuer       string
	Digits       int
	Period       int
	Skew         int
	SecretLength int
	Algorithm    string
}

// Manager is a stateless TOTP engine; all per-user state lives in the
// credential store.
type Manager struct {
	cfg Config
}

func NewManager(cfg Config) *Manager {
	if cfg.Digits == 0 {
		cfg.Digits = 6
	}
	if cfg.Period == 0 {
		cfg.Period = 30
	}
	if cfg.SecretLength < 20 {
		cfg.SecretLength = 20
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = "SHA1"
	}
	return &Manager{cfg: cfg}
}

// GenerateSecret returns a fresh base32-encoded secret of at least 160 bits.
func (m *Manager) GenerateSecret() (string, error) {
	raw := make([]byte, m.cfg.SecretLength)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return b32.EncodeToString(raw), nil
}

// ProvisionURI builds the otpauth:// URI an authenticator app enrolls from.
func (m *Manager) ProvisionURI(secret, account string) string {
	label := url.PathEscape(m.cfg.Issuer + ":" + account)

	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", m.cfg.Issuer)
	v.Set("period", strconv.Itoa(m.cfg.Period))
	v.Set("digits", strconv.Itoa(m.cfg.Digits))
	v.Set("algorithm", strings.ToUpper(m.cfg.Algorithm))

	return "otpauth://totp/" + label + "?" + v.Encode()
}

// QRPNG renders uri as a 256x256 PNG.
func (m *Manager) QRPNG(uri string) ([]byte, error) {
	return qrcode.Encode(uri, qrcode.Medium, 256)
}

// VerifyCode checks code against the base32 secret inside the ±Skew window.
// A malformed code (wrong length, non-numeric) fails without HMAC work.
func (m *Manager) VerifyCode(secret, code string, now time.Time) (bool, error) {
	trimmed := strings.TrimSpace(code)
	if len(trimmed) != m.cfg.Digits || !isNumeric(trimmed) {
		return false, nil
	}

	key, err := b32.DecodeString(strings.ToUpper(secret))
	if err != nil {
		return false, fmt.Errorf("invalid totp secret: %w", err)
	}
	if len(key) == 0 {
		return false, errors.New("empty totp secret")
	}

	base := now.Unix() / int64(m.cfg.Period)
	for step := -m.cfg.Skew; step <= m.cfg.Skew; step++ {
		counter := base + int64(step)
		if counter < 0 {
			continue
		}
		generated, err := hotpCode(key, counter, m.cfg.Digits, m.cfg.Algorithm)
		if err != nil {
			return false, err
		}
		if subtle.ConstantTimeCompare([]byte(generated), []byte(trimmed)) == 1 {
			return true, nil
		}
	}

	return false, nil
}

// CodeAt computes the code for an arbitrary counter offset from now. Used by
// tests and enrollment previews; never exposed through the service API.
func (m *Manager) CodeAt(secret string, now time.Time, offsetSteps int64) (string, error) {
	key, err := b32.DecodeString(strings.ToUpper(secret))
	if err != nil {
		return "", err
	}
	counter := now.Unix()/int64(m.cfg.Period) + offsetSteps
	return hotpCode(key, counter, m.cfg.Digits, m.cfg.Algorithm)
}

func hotpCode(key []byte, counter int64, digits int, algorithm string) (string, error) {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	hf, err := hmacFunc(algorithm)
	if err != nil {
		return "", err
	}
	mac := hmac.New(hf, key)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := 0; i < digits; i++ {
		mod *= 10
	}

	return fmt.Sprintf("%0*d", digits, bin%mod), nil
}

func hmacFunc(algorithm string) (func() hash.Hash, error) {
	switch strings.ToUpper(algorithm) {
	case "", "SHA1":
		return sha1.New, nil
	case "SHA256":
		return sha256.New, nil
	case "SHA512":
		return sha512.New, nil
	default:
		return nil, errors.New("unsupported totp algorithm")
	}
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
