package ledgerauth

import (
	"context"
	"fmt"
	"time"

	internalaudit "github.com/pennyledger/ledgerauth/internal/audit"
	"github.com/pennyledger/ledgerauth/internal/otp"
)

// Login authenticates an email/password pair, enforcing the lockout gate
// before any credential work. When the account has TOTP enabled a code is
// mandatory: absence fails with [ErrTOTPRequired], a wrong code with
// [ErrTOTPInvalid]. Credential failures are deliberately uniform — callers
// cannot distinguish an unknown email from a wrong password.
func (s *Service) Login(ctx context.Context, email, pw, totpCode string) (*TokenPair, error) {
	if s == nil || s.users == nil {
		return nil, ErrServiceNotReady
	}
	email = normalizeEmail(email)

	locked, err := s.limiter.IsLockedOut(ctx, email)
	if err != nil {
		// Degraded limiter read fails open; the password check still runs.
		s.emit(ctx, internalaudit.EventCacheDegraded, "", email, false, err,
			map[string]string{"op": "lockout_check"})
	}
	if locked {
		s.emit(ctx, internalaudit.EventLoginLocked, "", email, false, ErrAccountLocked, nil)
		return nil, ErrAccountLocked
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("login: lookup: %w", err)
	}
	if user == nil {
		return nil, s.failLogin(ctx, email, "", "unknown_email")
	}

	ok, err := s.hasher.Verify(pw, user.PasswordHash)
	if err != nil || !ok {
		return nil, s.failLogin(ctx, email, user.UserID, "bad_password")
	}
	if !user.Active {
		s.emit(ctx, internalaudit.EventLoginFailure, user.UserID, email, false, ErrAccountDisabled, nil)
		return nil, ErrAccountDisabled
	}

	if user.TOTPEnabled {
		if totpCode == "" {
			s.emit(ctx, internalaudit.EventLoginFailure, user.UserID, email, false, ErrTOTPRequired, nil)
			return nil, ErrTOTPRequired
		}
		valid, err := s.totp.VerifyCode(user.TOTPSecret, totpCode, time.Now())
		if err != nil || !valid {
			_ = s.failLogin(ctx, email, user.UserID, "bad_totp")
			return nil, ErrTOTPInvalid
		}
	}

	return s.completeLogin(ctx, user, email)
}

// LoginWithBackupCode is the recovery path for a user who lost their
// authenticator: password plus a one-time backup code. The matched code is
// consumed; the remaining codes stay intact.
func (s *Service) LoginWithBackupCode(ctx context.Context, email, pw, backupCode string) (*TokenPair, error) {
	if s == nil || s.users == nil {
		return nil, ErrServiceNotReady
	}
	email = normalizeEmail(email)

	locked, err := s.limiter.IsLockedOut(ctx, email)
	if err == nil && locked {
		s.emit(ctx, internalaudit.EventLoginLocked, "", email, false, ErrAccountLocked, nil)
		return nil, ErrAccountLocked
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("login: lookup: %w", err)
	}
	if user == nil {
		return nil, s.failLogin(ctx, email, "", "unknown_email")
	}

	ok, err := s.hasher.Verify(pw, user.PasswordHash)
	if err != nil || !ok {
		return nil, s.failLogin(ctx, email, user.UserID, "bad_password")
	}
	if !user.Active {
		return nil, ErrAccountDisabled
	}
	if !user.TOTPEnabled {
		return nil, ErrTOTPNotConfigured
	}

	consumed, err := s.users.ConsumeBackupCode(ctx, user.UserID, otp.HashBackupCode(backupCode))
	if err != nil {
		return nil, fmt.Errorf("login: backup code: %w", err)
	}
	if !consumed {
		_ = s.failLogin(ctx, email, user.UserID, "bad_backup_code")
		return nil, ErrBackupCodeInvalid
	}
	s.emit(ctx, internalaudit.EventBackupCodeUsed, user.UserID, email, true, nil, nil)

	return s.completeLogin(ctx, user, email)
}

func (s *Service) completeLogin(ctx context.Context, user *UserRecord, email string) (*TokenPair, error) {
	if err := s.limiter.Reset(ctx, email); err != nil {
		s.emit(ctx, internalaudit.EventCacheDegraded, user.UserID, email, false, err,
			map[string]string{"op": "counter_reset"})
	}
	if err := s.users.UpdateLastLoginAt(ctx, user.UserID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("login: stamp last login: %w", err)
	}

	pair, err := s.issuePair(ctx, user.UserID, email)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, internalaudit.EventLoginSuccess, user.UserID, email, true, nil, nil)
	return pair, nil
}

// failLogin records a failed attempt, sets the lockout flag when the threshold
// is crossed, and returns the uniform credential error.
func (s *Service) failLogin(ctx context.Context, email, userID, stage string) error {
	lockedNow, err := s.limiter.RecordFailure(ctx, email)
	if err != nil {
		s.emit(ctx, internalaudit.EventCacheDegraded, userID, email, false, err,
			map[string]string{"op": "record_failure"})
	}
	s.emit(ctx, internalaudit.EventLoginFailure, userID, email, false, ErrInvalidCredentials,
		map[string]string{"stage": stage})
	if lockedNow {
		s.emit(ctx, internalaudit.EventLockoutTriggered, userID, email, false, nil, nil)
	}
	return ErrInvalidCredentials
}
