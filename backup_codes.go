package ledgerauth

import (
	"context"
	"fmt"
	"strconv"

	internalaudit "github.com/pennyledger/ledgerauth/internal/audit"
	"github.com/pennyledger/ledgerauth/internal/otp"
)

// GenerateBackupCodes replaces the user's recovery codes with a fresh set and
// returns the plaintext codes exactly once. Only SHA-256 hashes are persisted.
func (s *Service) GenerateBackupCodes(ctx context.Context, userID string) ([]string, error) {
	if s == nil || s.users == nil {
		return nil, ErrServiceNotReady
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("backup codes: lookup: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	codes, err := otp.GenerateBackupCodes(s.config.Backup.Count, s.config.Backup.Length)
	if err != nil {
		return nil, fmt.Errorf("backup codes: generate: %w", err)
	}

	hashes := make([]string, 0, len(codes))
	for _, code := range codes {
		hashes = append(hashes, otp.HashBackupCode(code))
	}
	if err := s.users.ReplaceBackupCodes(ctx, userID, hashes); err != nil {
		return nil, fmt.Errorf("backup codes: persist: %w", err)
	}

	s.emit(ctx, internalaudit.EventBackupCodesIssued, userID, user.Email, true, nil,
		map[string]string{"count": strconv.Itoa(len(codes))})
	return codes, nil
}

// VerifyBackupCode checks a recovery code against the stored hashes. A match
// removes exactly the matched hash (single-use) and reports true; a miss
// leaves the list untouched and reports false.
func (s *Service) VerifyBackupCode(ctx context.Context, userID, code string) (bool, error) {
	if s == nil || s.users == nil {
		return false, ErrServiceNotReady
	}

	consumed, err := s.users.ConsumeBackupCode(ctx, userID, otp.HashBackupCode(code))
	if err != nil {
		return false, fmt.Errorf("backup codes: consume: %w", err)
	}
	if consumed {
		s.emit(ctx, internalaudit.EventBackupCodeUsed, userID, "", true, nil, nil)
	}
	return consumed, nil
}
