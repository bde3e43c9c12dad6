package ledgerauth

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/pennyledger/ledgerauth/internal/audit"
)

// UserRecord is the durable account aggregate held by the credential store.
// TOTP secret fields are base32-encoded; empty string means unset. Backup code
// hashes are hex-encoded SHA-256 digests; the plaintext codes are never stored.
type UserRecord struct {
	UserID           string
	Email            string
	Name             string
	PasswordHash     string
	Active           bool
	TOTPEnabled      bool
	TOTPSecret       string
	TOTPTempSecret   string
	BackupCodeHashes []string
	Locale           string
	Timezone         string
	LastLoginAt      *time.Time
	CreatedAt        time.Time
}

// CreateUserInput is the input for [UserStore.CreateUser]. WorkspaceName is
// the default personal workspace created in the same logical unit as the user.
type CreateUserInput struct {
	UserID        string
	Email         string
	Name          string
	PasswordHash  string
	Locale        string
	Timezone      string
	WorkspaceName string
}

// UserStore is the credential-store contract callers must implement to
// integrate ledgerauth with their user database. Lookups return
// [ErrInvalidCredentials]-agnostic sentinel behavior: GetUserByEmail returns a
// nil record with nil error when the email is unknown, so flows can stay
// uniform without string matching.
type UserStore interface {
	// GetUserByEmail returns (nil, nil) when no account exists for email.
	GetUserByEmail(ctx context.Context, email string) (*UserRecord, error)
	GetUserByID(ctx context.Context, userID string) (*UserRecord, error)
	// CreateUser persists the user and their default personal workspace in one
	// logical unit. It must fail when the email is already registered.
	CreateUser(ctx context.Context, input CreateUserInput) (*UserRecord, error)
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error
	UpdateLastLoginAt(ctx context.Context, userID string, at time.Time) error
	// SetTOTPTempSecret stores a pending-enrollment secret; empty clears it.
	SetTOTPTempSecret(ctx context.Context, userID, secret string) error
	// EnableTOTP promotes secret to the active slot, clears the temp slot, and
	// sets the enabled flag in one update.
	EnableTOTP(ctx context.Context, userID, secret string) error
	// DisableTOTP clears both secret slots and the enabled flag.
	DisableTOTP(ctx context.Context, userID string) error
	ReplaceBackupCodes(ctx context.Context, userID string, hashes []string) error
	// ConsumeBackupCode removes hash from the stored list if present and
	// reports whether it matched. A miss must not mutate the list.
	ConsumeBackupCode(ctx context.Context, userID, hash string) (bool, error)
}

// TokenPair is returned by Register, Login, and RefreshTokens. ExpiresIn is
// seconds until access-token expiry.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"`
}

// RegisterResult carries the new account id alongside its first token pair.
type RegisterResult struct {
	UserID string
	Tokens *TokenPair
}

// TOTPSetup is returned by [Service.SetupTOTP]. QRPNG is a scannable PNG
// rendering of URI sized for enrollment screens.
type TOTPSetup struct {
	Secret string
	URI    string
	QRPNG  []byte
}

// EmailSink receives transactional email side effects. Implementations are
// fire-and-forget from the service's perspective; SendPasswordReset is the only
// place the raw reset token ever leaves this module.
type EmailSink interface {
	SendWelcome(ctx context.Context, email, name string) error
	SendPasswordReset(ctx context.Context, email, name, rawToken string) error
}

// NoOpEmailSink discards all email side effects.
type NoOpEmailSink struct{}

func (NoOpEmailSink) SendWelcome(context.Context, string, string) error { return nil }

func (NoOpEmailSink) SendPasswordReset(context.Context, string, string, string) error { return nil }

// BreachChecker screens a candidate password against a known-breach corpus.
// Errors are treated as "not breached" by every caller (fail-open).
type BreachChecker interface {
	IsBreached(ctx context.Context, password string) (bool, error)
}

// AuditEvent is a structured security event emitted by the service.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON-encoded event per line to an [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
