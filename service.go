package ledgerauth

import (
	"context"
	"strings"
	"time"

	internalaudit "github.com/pennyledger/ledgerauth/internal/audit"
	"github.com/pennyledger/ledgerauth/internal/limiters"
	"github.com/pennyledger/ledgerauth/internal/otp"
	"github.com/pennyledger/ledgerauth/internal/tokencache"
	"github.com/pennyledger/ledgerauth/jwt"
	"github.com/pennyledger/ledgerauth/password"
)

// Service is the authentication orchestrator. All methods are safe for
// concurrent use after [Builder.Build].
type Service struct {
	config Config

	users   UserStore
	tokens  *tokencache.Client
	limiter *limiters.LoginLimiter
	totp    *otp.Manager
	hasher  *password.Hasher
	jwt     *jwt.Manager
	breach  BreachChecker
	email   EmailSink
	audit   *internalaudit.Dispatcher
}

// Close flushes and stops the audit dispatcher. Safe to call more than once.
func (s *Service) Close() {
	if s == nil {
		return
	}
	s.audit.Close()
}

// CacheConnected reports the token cache's last observed connectivity, a hint
// suitable for health endpoints.
func (s *Service) CacheConnected() bool {
	return s.tokens.Connected()
}

// issuePair mints an access token and a refresh session for the identity.
// The refresh write fails closed: no pair is returned unless the session is
// confirmed persisted.
func (s *Service) issuePair(ctx context.Context, userID, email string) (*TokenPair, error) {
	refresh, err := s.tokens.CreateRefreshToken(ctx, userID, email)
	if err != nil {
		return nil, ErrCacheUnavailable
	}

	access, err := s.jwt.CreateAccess(userID, email)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(s.jwt.AccessTTL() / time.Second),
	}, nil
}

func (s *Service) emit(ctx context.Context, eventType, userID, email string, success bool, cause error, metadata map[string]string) {
	event := internalaudit.Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		Email:     email,
		Success:   success,
		Metadata:  metadata,
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	s.audit.Emit(ctx, event)
}

// cacheWarn adapts token-cache anomaly reports into audit events. Fields only
// ever contain hashed identifiers.
func (s *Service) cacheWarn(event string, fields map[string]string) {
	eventType := internalaudit.EventCacheDegraded
	if event == "cache.corrupt_record" {
		eventType = internalaudit.EventCacheCorruptRecord
	}
	s.audit.Emit(context.Background(), internalaudit.Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Success:   false,
		Metadata:  fields,
	})
}

// isBreached runs the breach screen and fails open: any checker error is
// reported as an audit event and treated as "not breached".
func (s *Service) isBreached(ctx context.Context, email, pw string) bool {
	if s.breach == nil {
		return false
	}
	breached, err := s.breach.IsBreached(ctx, pw)
	if err != nil {
		s.emit(ctx, internalaudit.EventBreachCheckSkipped, "", email, false, err, nil)
		return false
	}
	return breached
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
