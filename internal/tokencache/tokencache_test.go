package tokencache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	client := New(rdb, Config{
		RefreshTTL:  time.Hour,
		ResetTTL:    time.Minute,
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
	}, nil)

	return client, mr, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	client, _, done := newTestClient(t)
	defer done()

	raw, err := client.CreateRefreshToken(context.Background(), "u1", "alice@example.com")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if len(raw) != 64 {
		t.Fatalf("expected 64 hex chars of raw token, got %d", len(raw))
	}

	sess, err := client.ValidateRefreshToken(context.Background(), raw)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if sess.UserID != "u1" || sess.Email != "alice@example.com" {
		t.Fatalf("unexpected session: %+v", sess)
	}
	if !sess.ExpiresAt.After(time.Now()) {
		t.Fatal("expected future expiry")
	}
}

func TestRawTokenNeverStored(t *testing.T) {
	client, mr, done := newTestClient(t)
	defer done()

	raw, err := client.CreateRefreshToken(context.Background(), "u1", "alice@example.com")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	for _, key := range mr.Keys() {
		if strings.Contains(key, raw) {
			t.Fatalf("raw token leaked into key %q", key)
		}
		if val, err := mr.Get(key); err == nil && strings.Contains(val, raw) {
			t.Fatalf("raw token leaked into value of %q", key)
		}
	}
	if !mr.Exists(refreshKey(HashToken(raw))) {
		t.Fatal("expected record under the token hash")
	}
}

func TestValidateUnknownToken(t *testing.T) {
	client, _, done := newTestClient(t)
	defer done()

	_, err := client.ValidateRefreshToken(context.Background(), "no-such-token")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRevokedTokenFailsValidation(t *testing.T) {
	client, mr, done := newTestClient(t)
	defer done()

	raw, err := client.CreateRefreshToken(context.Background(), "u1", "alice@example.com")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	client.RevokeRefreshToken(context.Background(), raw)

	if _, err := client.ValidateRefreshToken(context.Background(), raw); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after revoke, got %v", err)
	}

	// The session set must not keep pointing at the dead record.
	members, _ := mr.SMembers(sessionsKey("u1"))
	for _, m := range members {
		if m == HashToken(raw) {
			t.Fatal("revoked hash still in session set")
		}
	}
}

func TestRevokeUnknownTokenIsSilent(t *testing.T) {
	client, _, done := newTestClient(t)
	defer done()

	// Must not panic or error.
	client.RevokeRefreshToken(context.Background(), "never-issued")
}

func TestRevokeAllUserSessions(t *testing.T) {
	client, mr, done := newTestClient(t)
	defer done()

	var raws []string
	for i := 0; i < 3; i++ {
		raw, err := client.CreateRefreshToken(context.Background(), "u1", "alice@example.com")
		if err != nil {
			t.Fatalf("create %d failed: %v", i, err)
		}
		raws = append(raws, raw)
	}
	other, err := client.CreateRefreshToken(context.Background(), "u2", "bob@example.com")
	if err != nil {
		t.Fatalf("create for u2 failed: %v", err)
	}

	client.RevokeAllUserSessions(context.Background(), "u1")

	for i, raw := range raws {
		if _, err := client.ValidateRefreshToken(context.Background(), raw); !errors.Is(err, ErrNotFound) {
			t.Fatalf("session %d survived revoke-all: %v", i, err)
		}
	}
	if mr.Exists(sessionsKey("u1")) {
		t.Fatal("session set survived revoke-all")
	}
	if _, err := client.ValidateRefreshToken(context.Background(), other); err != nil {
		t.Fatalf("unrelated user's session was revoked: %v", err)
	}
}

func TestExpiredRefreshRecordIsRemoved(t *testing.T) {
	client, mr, done := newTestClient(t)
	defer done()

	// Plant a record whose stored expiry has already passed. The cache TTL
	// alone cannot be trusted for this; the payload carries its own clock.
	raw, _ := NewRawToken()
	hash := HashToken(raw)
	payload, _ := json.Marshal(Session{
		UserID:    "u1",
		Email:     "alice@example.com",
		CreatedAt: time.Now().Add(-2 * time.Hour),
		ExpiresAt: time.Now().Add(-time.Hour),
	})
	if err := mr.Set(refreshKey(hash), string(payload)); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	mr.SAdd(sessionsKey("u1"), hash)

	if _, err := client.ValidateRefreshToken(context.Background(), raw); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if mr.Exists(refreshKey(hash)) {
		t.Fatal("expired record not cleaned up")
	}
}

func TestCorruptRefreshRecordIsDeleted(t *testing.T) {
	var warned []string
	client, mr, done := newTestClient(t)
	defer done()
	client.warn = func(event string, _ map[string]string) { warned = append(warned, event) }

	raw, _ := NewRawToken()
	hash := HashToken(raw)
	if err := mr.Set(refreshKey(hash), "{not valid json"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	if _, err := client.ValidateRefreshToken(context.Background(), raw); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if mr.Exists(refreshKey(hash)) {
		t.Fatal("corrupt record not deleted")
	}
	if len(warned) != 1 || warned[0] != "cache.corrupt_record" {
		t.Fatalf("expected corrupt_record warning, got %v", warned)
	}
}

func TestCreateFailsClosedWhenCacheDown(t *testing.T) {
	client, mr, done := newTestClient(t)
	defer done()
	mr.Close()

	_, err := client.CreateRefreshToken(context.Background(), "u1", "alice@example.com")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if client.Connected() {
		t.Fatal("connectivity hint should be false after failed create")
	}
}

func TestValidateFailsOpenWhenCacheDown(t *testing.T) {
	var warned []string
	client, mr, done := newTestClient(t)
	defer done()
	client.warn = func(event string, _ map[string]string) { warned = append(warned, event) }
	mr.Close()

	_, err := client.ValidateRefreshToken(context.Background(), "whatever")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("degraded validate must look like not-found, got %v", err)
	}
	if len(warned) == 0 || warned[0] != "cache.degraded" {
		t.Fatalf("expected degraded warning, got %v", warned)
	}
}

func TestConnectivityRecoversAfterRestart(t *testing.T) {
	client, mr, done := newTestClient(t)
	defer done()

	addr := mr.Addr()
	mr.Close()
	if _, err := client.CreateRefreshToken(context.Background(), "u1", "a@b.c"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable while down, got %v", err)
	}

	mr2 := miniredis.NewMiniRedis()
	if err := mr2.StartAddr(addr); err != nil {
		t.Skipf("could not rebind %s: %v", addr, err)
	}
	defer mr2.Close()

	if _, err := client.CreateRefreshToken(context.Background(), "u1", "a@b.c"); err != nil {
		t.Fatalf("expected recovery after restart, got %v", err)
	}
	if !client.Connected() {
		t.Fatal("connectivity hint should be true after successful create")
	}
}

func TestResetTokenSingleUse(t *testing.T) {
	client, _, done := newTestClient(t)
	defer done()

	raw, err := client.CreatePasswordResetToken(context.Background(), "u1")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	userID, err := client.ConsumePasswordResetToken(context.Background(), raw)
	if err != nil {
		t.Fatalf("first consume failed: %v", err)
	}
	if userID != "u1" {
		t.Fatalf("expected u1, got %s", userID)
	}

	if _, err := client.ConsumePasswordResetToken(context.Background(), raw); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second consume must fail with ErrNotFound, got %v", err)
	}
}

func TestResetTokenTTL(t *testing.T) {
	client, mr, done := newTestClient(t)
	defer done()

	raw, err := client.CreatePasswordResetToken(context.Background(), "u1")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := client.ConsumePasswordResetToken(context.Background(), raw); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after TTL, got %v", err)
	}
}

func TestCorruptResetRecord(t *testing.T) {
	client, mr, done := newTestClient(t)
	defer done()

	raw, _ := NewRawToken()
	if err := mr.Set(resetKey(HashToken(raw)), "garbage"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	if _, err := client.ConsumePasswordResetToken(context.Background(), raw); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if mr.Exists(resetKey(HashToken(raw))) {
		t.Fatal("GETDEL should have removed the corrupt record")
	}
}

func TestRawTokensAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 64; i++ {
		raw, err := NewRawToken()
		if err != nil {
			t.Fatalf("NewRawToken failed: %v", err)
		}
		if seen[raw] {
			t.Fatal("duplicate raw token")
		}
		seen[raw] = true
	}
}
