package ledgerauth

import (
	"context"

	internalaudit "github.com/pennyledger/ledgerauth/internal/audit"
	"github.com/pennyledger/ledgerauth/internal/tokencache"
)

// RefreshTokens exchanges a valid refresh token for a new pair. The consumed
// token is revoked before its replacement is issued (rotation); a refresh
// token can therefore be used exactly once. Missing, expired, revoked, and
// corrupt tokens all fail with [ErrRefreshInvalid].
func (s *Service) RefreshTokens(ctx context.Context, rawRefreshToken string) (*TokenPair, error) {
	if s == nil || s.tokens == nil {
		return nil, ErrServiceNotReady
	}

	sess, err := s.tokens.ValidateRefreshToken(ctx, rawRefreshToken)
	if err != nil {
		return nil, ErrRefreshInvalid
	}

	s.tokens.RevokeRefreshToken(ctx, rawRefreshToken)

	pair, err := s.issuePair(ctx, sess.UserID, sess.Email)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, internalaudit.EventTokenRefresh, sess.UserID, sess.Email, true, nil,
		map[string]string{"token_hash": tokencache.HashToken(rawRefreshToken)})
	return pair, nil
}

// Logout revokes the refresh token. Best-effort: from the caller's
// perspective logout always succeeds.
func (s *Service) Logout(ctx context.Context, rawRefreshToken string) {
	if s == nil || s.tokens == nil {
		return
	}
	s.tokens.RevokeRefreshToken(ctx, rawRefreshToken)
	s.emit(ctx, internalaudit.EventLogout, "", "", true, nil,
		map[string]string{"token_hash": tokencache.HashToken(rawRefreshToken)})
}

// RevokeAllSessions invalidates every refresh session for the user, forcing
// re-authentication everywhere. Best-effort.
func (s *Service) RevokeAllSessions(ctx context.Context, userID string) {
	if s == nil || s.tokens == nil {
		return
	}
	s.tokens.RevokeAllUserSessions(ctx, userID)
	s.emit(ctx, internalaudit.EventSessionsRevoked, userID, "", true, nil, nil)
}
