// Package tokencache implements the Redis-backed token primitives: rotating
// refresh-token sessions with a per-user session set for bulk revocation, and
// single-use password-reset tokens consumed through an atomic GETDEL.
//
// Failure policy per operation: creation paths fail closed and surface
// [ErrUnavailable]; validation paths fail open to [ErrNotFound] and report the
// degradation through the warn hook; revocation is best-effort and never
// returns an error. Only SHA-256 hashes of tokens are ever written to Redis or
// passed to the warn hook.
package tokencache

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	refreshPrefix  = "refresh_token:"
	sessionsPrefix = "user_sessions:"
	resetPrefix    = "password_reset:"

	rawTokenBytes = 32
)

var (
	// ErrNotFound covers missing, revoked, consumed, and corrupt tokens.
	ErrNotFound = errors.New("token not found")
	// ErrExpired is returned when a refresh session's stored expiry has passed.
	ErrExpired = errors.New("token expired")
	// ErrUnavailable is surfaced only from creation paths after retries.
	ErrUnavailable = errors.New("cache unavailable")
)

// Config bounds TTLs and the retry policy.
type Config struct {
	RefreshTTL  time.Duration
	ResetTTL    time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// WarnFunc receives anomaly reports (degraded reads, corrupt records). Fields
// carry hashed identifiers only.
type WarnFunc func(event string, fields map[string]string)

// Client is an explicitly constructed token-cache client. The connectivity
// flag is a hint maintained from operation outcomes; it is consulted before
// retries to decide whether a cheap liveness probe should precede the real
// call, never as a hard gate.
type Client struct {
	redis     redis.UniversalClient
	cfg       Config
	warn      WarnFunc
	connected atomic.Bool
}

// Session is the cached refresh-token record, keyed by the token's SHA-256.
type Session struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ResetRecord is the cached password-reset record.
type ResetRecord struct {
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func New(rdb redis.UniversalClient, cfg Config, warn WarnFunc) *Client {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 50 * time.Millisecond
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	if warn == nil {
		warn = func(string, map[string]string) {}
	}

	c := &Client{redis: rdb, cfg: cfg, warn: warn}
	c.connected.Store(true)
	return c
}

// Connected reports the last observed connectivity state.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Ping probes the backend and updates the connectivity hint.
func (c *Client) Ping(ctx context.Context) error {
	err := c.redis.Ping(ctx).Err()
	c.connected.Store(err == nil)
	return err
}

// NewRawToken returns a 256-bit random token, hex-encoded. The raw value is
// handed to the caller exactly once; only its hash is used as a cache key.
func NewRawToken() (string, error) {
	buf := make([]byte, rawTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// HashToken returns the hex-encoded SHA-256 of a raw token. This is the only
// representation of a token that may appear in keys, sets, or warn fields.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func refreshKey(hash string) string { return refreshPrefix + hash }

func sessionsKey(userID string) string { return sessionsPrefix + userID }

func resetKey(hash string) string { return resetPrefix + hash }

// withRetry runs op under the bounded exponential backoff policy. Sentinel
// outcomes (redis.Nil, ErrNotFound, ErrExpired) and context cancellation are
// returned immediately; anything else is treated as a backend fault, flips the
// connectivity hint, and is retried. When the hint is already false a Ping
// precedes the next attempt so a dead backend costs probes, not full calls.
func (c *Client) withRetry(ctx context.Context, op func(context.Context) error) error {
	delay := c.cfg.BaseDelay
	var lastErr error

	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
			if delay > c.cfg.MaxDelay {
				delay = c.cfg.MaxDelay
			}
		}

		if !c.connected.Load() {
			if err := c.redis.Ping(ctx).Err(); err != nil {
				lastErr = err
				continue
			}
			c.connected.Store(true)
		}

		err := op(ctx)
		if err == nil {
			c.connected.Store(true)
			return nil
		}
		if isSentinel(err) || ctx.Err() != nil {
			return err
		}
		c.connected.Store(false)
		lastErr = err
	}

	return fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func isSentinel(err error) bool {
	return errors.Is(err, redis.Nil) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrExpired)
}
