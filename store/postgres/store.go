// Package postgres is the reference [ledgerauth.UserStore] backed by pgx.
// Schema expectations: a users table carrying the credential columns, a
// workspaces table for the default personal workspace, and a
// user_backup_codes table holding one hash per row.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pennyledger/ledgerauth"
)

const uniqueViolation = "23505"

// Store implements ledgerauth.UserStore on a pgx connection pool.
type Store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const userColumns = `
	id, email, name, password_hash, active,
	totp_enabled, COALESCE(totp_secret, ''), COALESCE(totp_temp_secret, ''),
	COALESCE(locale, ''), COALESCE(timezone, ''), last_login_at, created_at`

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*ledgerauth.UserRecord, error) {
	row := s.db.QueryRow(ctx, `SELECT`+userColumns+` FROM users WHERE email = $1 LIMIT 1`, email)
	return s.scanUser(ctx, row)
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (*ledgerauth.UserRecord, error) {
	row := s.db.QueryRow(ctx, `SELECT`+userColumns+` FROM users WHERE id = $1 LIMIT 1`, userID)
	return s.scanUser(ctx, row)
}

func (s *Store) scanUser(ctx context.Context, row pgx.Row) (*ledgerauth.UserRecord, error) {
	var user ledgerauth.UserRecord
	err := row.Scan(
		&user.UserID, &user.Email, &user.Name, &user.PasswordHash, &user.Active,
		&user.TOTPEnabled, &user.TOTPSecret, &user.TOTPTempSecret,
		&user.Locale, &user.Timezone, &user.LastLoginAt, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	rows, err := s.db.Query(ctx, `SELECT code_hash FROM user_backup_codes WHERE user_id = $1`, user.UserID)
	if err != nil {
		return nil, fmt.Errorf("load backup codes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, fmt.Errorf("scan backup code: %w", err)
		}
		user.BackupCodeHashes = append(user.BackupCodeHashes, hash)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load backup codes: %w", err)
	}

	return &user, nil
}

// CreateUser inserts the user and their default personal workspace in one
// transaction.
func (s *Store) CreateUser(ctx context.Context, input ledgerauth.CreateUserInput) (*ledgerauth.UserRecord, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("create user: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO users (id, email, name, password_hash, active, locale, timezone, created_at)
		VALUES ($1, $2, $3, $4, true, NULLIF($5, ''), NULLIF($6, ''), now())`,
		input.UserID, input.Email, input.Name, input.PasswordHash, input.Locale, input.Timezone)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ledgerauth.ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: insert: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO workspaces (id, owner_id, name, created_at)
		VALUES (gen_random_uuid(), $1, $2, now())`,
		input.UserID, input.WorkspaceName)
	if err != nil {
		return nil, fmt.Errorf("create user: workspace: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("create user: commit: %w", err)
	}

	return s.GetUserByID(ctx, input.UserID)
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID, newHash string) error {
	return s.execOne(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, userID, newHash)
}

func (s *Store) UpdateLastLoginAt(ctx context.Context, userID string, at time.Time) error {
	return s.execOne(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, userID, at)
}

func (s *Store) SetTOTPTempSecret(ctx context.Context, userID, secret string) error {
	return s.execOne(ctx, `UPDATE users SET totp_temp_secret = NULLIF($2, '') WHERE id = $1`, userID, secret)
}

func (s *Store) EnableTOTP(ctx context.Context, userID, secret string) error {
	return s.execOne(ctx, `
		UPDATE users SET totp_secret = $2, totp_temp_secret = NULL, totp_enabled = true
		WHERE id = $1`, userID, secret)
}

func (s *Store) DisableTOTP(ctx context.Context, userID string) error {
	return s.execOne(ctx, `
		UPDATE users SET totp_secret = NULL, totp_temp_secret = NULL, totp_enabled = false
		WHERE id = $1`, userID)
}

func (s *Store) ReplaceBackupCodes(ctx context.Context, userID string, hashes []string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("replace backup codes: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM user_backup_codes WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("replace backup codes: clear: %w", err)
	}
	for _, hash := range hashes {
		if _, err := tx.Exec(ctx, `
			INSERT INTO user_backup_codes (user_id, code_hash) VALUES ($1, $2)`, userID, hash); err != nil {
			return fmt.Errorf("replace backup codes: insert: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// ConsumeBackupCode deletes the matching row; the row count tells us whether
// anything matched, which keeps the check-and-remove atomic.
func (s *Store) ConsumeBackupCode(ctx context.Context, userID, hash string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM user_backup_codes WHERE user_id = $1 AND code_hash = $2`, userID, hash)
	if err != nil {
		return false, fmt.Errorf("consume backup code: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) execOne(ctx context.Context, query string, args ...any) error {
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledgerauth.ErrUserNotFound
	}
	return nil
}
