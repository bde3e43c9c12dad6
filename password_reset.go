package ledgerauth

import (
	"context"
	"fmt"

	internalaudit "github.com/pennyledger/ledgerauth/internal/audit"
	"github.com/pennyledger/ledgerauth/internal/tokencache"
)

// ForgotPassword issues a single-use reset token and hands it to the email
// sink. An unknown or inactive email silently succeeds so the endpoint cannot
// be used as a user-existence oracle. The raw token reaches the email sink
// and nowhere else; audit records carry only its hash.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	if s == nil || s.users == nil {
		return ErrServiceNotReady
	}
	email = normalizeEmail(email)

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("forgot password: lookup: %w", err)
	}
	if user == nil || !user.Active {
		return nil
	}

	raw, err := s.tokens.CreatePasswordResetToken(ctx, user.UserID)
	if err != nil {
		return ErrCacheUnavailable
	}

	_ = s.email.SendPasswordReset(ctx, email, user.Name, raw)
	s.emit(ctx, internalaudit.EventPasswordResetRequest, user.UserID, email, true, nil,
		map[string]string{"token_hash": tokencache.HashToken(raw)})
	return nil
}

// ResetPassword consumes a reset token (single-use, atomic), re-screens and
// re-hashes the new password, and revokes every refresh session for the user
// so all devices must re-authenticate.
func (s *Service) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	if s == nil || s.users == nil {
		return ErrServiceNotReady
	}
	if len(newPassword) < s.config.Password.MinLength {
		return ErrPasswordPolicy
	}

	userID, err := s.tokens.ConsumePasswordResetToken(ctx, rawToken)
	if err != nil {
		return ErrResetTokenInvalid
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("reset password: lookup: %w", err)
	}
	if user == nil {
		return ErrResetTokenInvalid
	}

	if s.isBreached(ctx, user.Email, newPassword) {
		return ErrPasswordBreached
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("reset password: hash: %w", err)
	}
	if err := s.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return fmt.Errorf("reset password: update: %w", err)
	}

	s.tokens.RevokeAllUserSessions(ctx, userID)
	s.emit(ctx, internalaudit.EventPasswordResetDone, userID, user.Email, true, nil, nil)
	return nil
}
