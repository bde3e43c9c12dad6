// Package jwt issues and verifies the short-lived HS256 access tokens paired
// with the cache-backed refresh tokens.
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Config for the access-token manager. Secret must be at least 32 bytes.
type Config struct {
	Secret    []byte
	AccessTTL time.Duration
	Issuer    string
	Audience  string
	Leeway    time.Duration
}

// Manager signs and parses access tokens. Immutable after construction.
type Manager struct {
	cfg Config
}

// AccessClaims are the verified claims of an access token: subject id, email,
// issued-at, expiry, issuer, and audience.
type AccessClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("hs256 secret must be at least 32 bytes")
	}
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("access ttl must be positive")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("leeway must be between 0 and 2 minutes")
	}
	return &Manager{cfg: cfg}, nil
}

// AccessTTL returns the configured token lifetime.
func (m *Manager) AccessTTL() time.Duration {
	return m.cfg.AccessTTL
}

// CreateAccess signs a token for the given subject.
func (m *Manager) CreateAccess(userID, email string) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.cfg.AccessTTL)),
			Issuer:    m.cfg.Issuer,
		},
	}
	if m.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.cfg.Audience}
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.cfg.Secret)
}

// ParseAccess verifies signature, algorithm, expiry, issuer, and audience.
func (m *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
	}
	if m.cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.cfg.Leeway))
	}
	if m.cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.cfg.Issuer))
	}
	if m.cfg.Audience != "" {
		options = append(options, jwt.WithAudience(m.cfg.Audience))
	}

	token, err := jwt.NewParser(options...).ParseWithClaims(tokenStr, &AccessClaims{}, func(t *jwt.Token) (interface{}, error) {
		return m.cfg.Secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	return claims, nil
}
