package tokencache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// CreateRefreshToken stores a new refresh session and mirrors its hash into
// the owner's session set in one transactional batch, so a crash cannot leave
// a session the set does not know about. Returns the raw token; fails closed
// with ErrUnavailable when the write cannot be confirmed.
func (c *Client) CreateRefreshToken(ctx context.Context, userID, email string) (string, error) {
	raw, err := NewRawToken()
	if err != nil {
		return "", err
	}
	hash := HashToken(raw)

	now := time.Now().UTC()
	payload, err := json.Marshal(Session{
		UserID:    userID,
		Email:     email,
		CreatedAt: now,
		ExpiresAt: now.Add(c.cfg.RefreshTTL),
	})
	if err != nil {
		return "", err
	}

	err = c.withRetry(ctx, func(ctx context.Context) error {
		_, err := c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, refreshKey(hash), payload, c.cfg.RefreshTTL)
			pipe.SAdd(ctx, sessionsKey(userID), hash)
			pipe.Expire(ctx, sessionsKey(userID), c.cfg.RefreshTTL)
			return nil
		})
		return err
	})
	if err != nil {
		return "", err
	}

	return raw, nil
}

// ValidateRefreshToken looks up the session for a raw token. Outcomes:
// ErrNotFound for a missing or corrupt record (corrupt records are deleted and
// reported), ErrExpired for a record whose stored expiry has passed (the
// record is deleted), and ErrNotFound when the cache is unreachable — callers
// must not be able to distinguish "invalid" from "cache down" on this path.
func (c *Client) ValidateRefreshToken(ctx context.Context, raw string) (*Session, error) {
	hash := HashToken(raw)

	var data []byte
	err := c.withRetry(ctx, func(ctx context.Context) error {
		b, err := c.redis.Get(ctx, refreshKey(hash)).Bytes()
		if err != nil {
			return err
		}
		data = b
		return nil
	})
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		c.warn("cache.degraded", map[string]string{"op": "validate_refresh", "token_hash": hash})
		return nil, ErrNotFound
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil || sess.UserID == "" {
		c.deleteBestEffort(ctx, refreshKey(hash))
		c.warn("cache.corrupt_record", map[string]string{"op": "validate_refresh", "token_hash": hash})
		return nil, ErrNotFound
	}

	if time.Now().After(sess.ExpiresAt) {
		c.removeSession(ctx, sess.UserID, hash)
		return nil, ErrExpired
	}

	return &sess, nil
}

// RevokeRefreshToken deletes the session for a raw token and removes its hash
// from the owner's session set. Best-effort: failures are reported through the
// warn hook, never returned, because logout must not fail user-visibly.
func (c *Client) RevokeRefreshToken(ctx context.Context, raw string) {
	hash := HashToken(raw)

	data, err := c.redis.Get(ctx, refreshKey(hash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return
		}
		// Owner unknown; delete the record alone so the token still dies.
		c.deleteBestEffort(ctx, refreshKey(hash))
		c.warn("cache.degraded", map[string]string{"op": "revoke_refresh", "token_hash": hash})
		return
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil || sess.UserID == "" {
		c.deleteBestEffort(ctx, refreshKey(hash))
		return
	}

	c.removeSession(ctx, sess.UserID, hash)
}

// RevokeAllUserSessions deletes every refresh session in the user's set plus
// the set itself in one transactional batch. Best-effort.
func (c *Client) RevokeAllUserSessions(ctx context.Context, userID string) {
	hashes, err := c.redis.SMembers(ctx, sessionsKey(userID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.warn("cache.degraded", map[string]string{"op": "revoke_all", "user_id": userID})
		}
		return
	}

	keys := make([]string, 0, len(hashes)+1)
	for _, h := range hashes {
		keys = append(keys, refreshKey(h))
	}
	keys = append(keys, sessionsKey(userID))

	if _, err := c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		return nil
	}); err != nil {
		c.warn("cache.degraded", map[string]string{"op": "revoke_all", "user_id": userID})
	}
}

func (c *Client) removeSession(ctx context.Context, userID, hash string) {
	if _, err := c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, sessionsKey(userID), hash)
		pipe.Del(ctx, refreshKey(hash))
		return nil
	}); err != nil {
		c.warn("cache.degraded", map[string]string{"op": "remove_session", "token_hash": hash})
	}
}

func (c *Client) deleteBestEffort(ctx context.Context, key string) {
	_ = c.redis.Del(ctx, key).Err()
}
