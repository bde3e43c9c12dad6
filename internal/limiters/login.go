// Package limiters implements the per-email failed-login counter and lockout
// flag backing the brute-force defenses.
package limiters

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	attemptsPrefix = "login_attempts:"
	lockoutPrefix  = "lockout:"
)

// ErrLimiterUnavailable indicates the counter backend is unreachable.
var ErrLimiterUnavailable = errors.New("login limiter backend unavailable")

// Config for the login limiter. After MaxAttempts failures inside Window the
// lockout flag is set for Duration and the counter is cleared.
type Config struct {
	MaxAttempts int
	Window      time.Duration
	Duration    time.Duration
}

// LoginLimiter tracks failed logins per email address.
type LoginLimiter struct {
	redis redis.UniversalClient
	cfg   Config
}

func NewLoginLimiter(rdb redis.UniversalClient, cfg Config) *LoginLimiter {
	return &LoginLimiter{redis: rdb, cfg: cfg}
}

func attemptsKey(email string) string {
	return attemptsPrefix + normalize(email)
}

func lockoutKey(email string) string {
	return lockoutPrefix + normalize(email)
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsLockedOut reports whether the lockout flag is set for email.
func (l *LoginLimiter) IsLockedOut(ctx context.Context, email string) (bool, error) {
	n, err := l.redis.Exists(ctx, lockoutKey(email)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}
	return n > 0, nil
}

// RecordFailure increments the attempt counter. When the counter reaches the
// threshold it sets the lockout flag and clears the counter in the same batch,
// and reports lockedNow=true so the caller can emit a security event.
func (l *LoginLimiter) RecordFailure(ctx context.Context, email string) (lockedNow bool, err error) {
	key := attemptsKey(email)

	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}
	if count == 1 {
		// First failure opens the rolling window.
		if err := l.redis.Expire(ctx, key, l.cfg.Window).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
		}
	}

	if count < int64(l.cfg.MaxAttempts) {
		return false, nil
	}

	if _, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, lockoutKey(email), "1", l.cfg.Duration)
		pipe.Del(ctx, key)
		return nil
	}); err != nil {
		return false, fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}

	return true, nil
}

// Reset clears the attempt counter after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, email string) error {
	if err := l.redis.Del(ctx, attemptsKey(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}
	return nil
}

// FailureCount returns the current counter value; 0 when absent.
func (l *LoginLimiter) FailureCount(ctx context.Context, email string) (int, error) {
	count, err := l.redis.Get(ctx, attemptsKey(email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}
	return int(count), nil
}
