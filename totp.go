package ledgerauth

import (
	"context"
	"fmt"
	"time"

	internalaudit "github.com/pennyledger/ledgerauth/internal/audit"
)

// SetupTOTP starts second-factor enrollment: a fresh secret is generated,
// persisted in the pending slot (the active secret, if any, keeps working
// until [Service.EnableTOTP] confirms), and returned with its provisioning
// URI and QR rendering.
func (s *Service) SetupTOTP(ctx context.Context, userID string) (*TOTPSetup, error) {
	if s == nil || s.users == nil {
		return nil, ErrServiceNotReady
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("totp setup: lookup: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	secret, err := s.totp.GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("totp setup: secret: %w", err)
	}
	uri := s.totp.ProvisionURI(secret, user.Email)
	png, err := s.totp.QRPNG(uri)
	if err != nil {
		return nil, fmt.Errorf("totp setup: qr: %w", err)
	}

	if err := s.users.SetTOTPTempSecret(ctx, userID, secret); err != nil {
		return nil, fmt.Errorf("totp setup: persist: %w", err)
	}

	s.emit(ctx, internalaudit.EventTOTPSetup, userID, user.Email, true, nil, nil)
	return &TOTPSetup{Secret: secret, URI: uri, QRPNG: png}, nil
}

// EnableTOTP confirms enrollment by verifying code against the pending secret
// (±Skew steps of drift tolerance) and promoting it to the active slot.
func (s *Service) EnableTOTP(ctx context.Context, userID, code string) error {
	if s == nil || s.users == nil {
		return ErrServiceNotReady
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("totp enable: lookup: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.TOTPTempSecret == "" {
		return ErrTOTPSetupMissing
	}

	ok, err := s.totp.VerifyCode(user.TOTPTempSecret, code, time.Now())
	if err != nil || !ok {
		return ErrTOTPInvalid
	}

	if err := s.users.EnableTOTP(ctx, userID, user.TOTPTempSecret); err != nil {
		return fmt.Errorf("totp enable: persist: %w", err)
	}

	s.emit(ctx, internalaudit.EventTOTPEnabled, userID, user.Email, true, nil, nil)
	return nil
}

// DisableTOTP turns the second factor off after a confirming code against the
// active secret. Both secret slots are cleared.
func (s *Service) DisableTOTP(ctx context.Context, userID, code string) error {
	if s == nil || s.users == nil {
		return ErrServiceNotReady
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("totp disable: lookup: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}
	if !user.TOTPEnabled || user.TOTPSecret == "" {
		return ErrTOTPNotConfigured
	}

	ok, err := s.totp.VerifyCode(user.TOTPSecret, code, time.Now())
	if err != nil || !ok {
		return ErrTOTPInvalid
	}

	if err := s.users.DisableTOTP(ctx, userID); err != nil {
		return fmt.Errorf("totp disable: persist: %w", err)
	}

	s.emit(ctx, internalaudit.EventTOTPDisabled, userID, user.Email, true, nil, nil)
	return nil
}
