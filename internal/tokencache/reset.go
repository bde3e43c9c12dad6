package tokencache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// CreatePasswordResetToken stores a single-use reset record under the token's
// hash with the configured TTL. Fails closed with ErrUnavailable.
func (c *Client) CreatePasswordResetToken(ctx context.Context, userID string) (string, error) {
	raw, err := NewRawToken()
	if err != nil {
		return "", err
	}
	hash := HashToken(raw)

	payload, err := json.Marshal(ResetRecord{
		UserID:    userID,
		ExpiresAt: time.Now().UTC().Add(c.cfg.ResetTTL),
	})
	if err != nil {
		return "", err
	}

	err = c.withRetry(ctx, func(ctx context.Context) error {
		return c.redis.Set(ctx, resetKey(hash), payload, c.cfg.ResetTTL).Err()
	})
	if err != nil {
		return "", err
	}

	return raw, nil
}

// ConsumePasswordResetToken validates and invalidates a reset token in one
// indivisible step via GETDEL, so two concurrent validations can never both
// succeed. Returns the owning userID, or ErrNotFound for a missing, consumed,
// expired, or corrupt token — and for an unreachable cache (graceful denial).
func (c *Client) ConsumePasswordResetToken(ctx context.Context, raw string) (string, error) {
	hash := HashToken(raw)

	var data []byte
	err := c.withRetry(ctx, func(ctx context.Context) error {
		b, err := c.redis.GetDel(ctx, resetKey(hash)).Bytes()
		if err != nil {
			return err
		}
		data = b
		return nil
	})
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		c.warn("cache.degraded", map[string]string{"op": "consume_reset", "token_hash": hash})
		return "", ErrNotFound
	}

	var rec ResetRecord
	if err := json.Unmarshal(data, &rec); err != nil || rec.UserID == "" {
		// Already deleted by GETDEL; nothing left to clean up.
		c.warn("cache.corrupt_record", map[string]string{"op": "consume_reset", "token_hash": hash})
		return "", ErrNotFound
	}

	if time.Now().After(rec.ExpiresAt) {
		return "", ErrNotFound
	}

	return rec.UserID, nil
}
