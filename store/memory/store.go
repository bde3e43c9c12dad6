// Package memory provides an in-memory [ledgerauth.UserStore] for tests and
// examples. Not for production use.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/pennyledger/ledgerauth"
)

// Store keeps user records and workspace names in maps guarded by one mutex.
type Store struct {
	mu         sync.Mutex
	byID       map[string]*ledgerauth.UserRecord
	byEmail    map[string]string // email -> userID
	workspaces map[string]string // userID -> workspace name
}

func New() *Store {
	return &Store{
		byID:       make(map[string]*ledgerauth.UserRecord),
		byEmail:    make(map[string]string),
		workspaces: make(map[string]string),
	}
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*ledgerauth.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, nil
	}
	return cloneUser(s.byID[id]), nil
}

func (s *Store) GetUserByID(_ context.Context, userID string) (*ledgerauth.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[userID]
	if !ok {
		return nil, nil
	}
	return cloneUser(user), nil
}

func (s *Store) CreateUser(_ context.Context, input ledgerauth.CreateUserInput) (*ledgerauth.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[input.Email]; exists {
		return nil, ledgerauth.ErrEmailTaken
	}

	user := &ledgerauth.UserRecord{
		UserID:       input.UserID,
		Email:        input.Email,
		Name:         input.Name,
		PasswordHash: input.PasswordHash,
		Active:       true,
		Locale:       input.Locale,
		Timezone:     input.Timezone,
		CreatedAt:    time.Now().UTC(),
	}
	s.byID[user.UserID] = user
	s.byEmail[user.Email] = user.UserID
	s.workspaces[user.UserID] = input.WorkspaceName

	return cloneUser(user), nil
}

func (s *Store) UpdatePasswordHash(_ context.Context, userID, newHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[userID]
	if !ok {
		return ledgerauth.ErrUserNotFound
	}
	user.PasswordHash = newHash
	return nil
}

func (s *Store) UpdateLastLoginAt(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[userID]
	if !ok {
		return ledgerauth.ErrUserNotFound
	}
	stamp := at
	user.LastLoginAt = &stamp
	return nil
}

func (s *Store) SetTOTPTempSecret(_ context.Context, userID, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[userID]
	if !ok {
		return ledgerauth.ErrUserNotFound
	}
	user.TOTPTempSecret = secret
	return nil
}

func (s *Store) EnableTOTP(_ context.Context, userID, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[userID]
	if !ok {
		return ledgerauth.ErrUserNotFound
	}
	user.TOTPSecret = secret
	user.TOTPTempSecret = ""
	user.TOTPEnabled = true
	return nil
}

func (s *Store) DisableTOTP(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[userID]
	if !ok {
		return ledgerauth.ErrUserNotFound
	}
	user.TOTPSecret = ""
	user.TOTPTempSecret = ""
	user.TOTPEnabled = false
	return nil
}

func (s *Store) ReplaceBackupCodes(_ context.Context, userID string, hashes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[userID]
	if !ok {
		return ledgerauth.ErrUserNotFound
	}
	user.BackupCodeHashes = append([]string(nil), hashes...)
	return nil
}

func (s *Store) ConsumeBackupCode(_ context.Context, userID, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[userID]
	if !ok {
		return false, ledgerauth.ErrUserNotFound
	}
	for i, h := range user.BackupCodeHashes {
		if h == hash {
			user.BackupCodeHashes = append(user.BackupCodeHashes[:i], user.BackupCodeHashes[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// SetActive toggles the active flag; test helper.
func (s *Store) SetActive(userID string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.byID[userID]; ok {
		user.Active = active
	}
}

// WorkspaceName returns the workspace created with the user; test helper.
func (s *Store) WorkspaceName(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workspaces[userID]
}

func cloneUser(u *ledgerauth.UserRecord) *ledgerauth.UserRecord {
	if u == nil {
		return nil
	}
	out := *u
	out.BackupCodeHashes = append([]string(nil), u.BackupCodeHashes...)
	if u.LastLoginAt != nil {
		stamp := *u.LastLoginAt
		out.LastLoginAt = &stamp
	}
	return &out
}
