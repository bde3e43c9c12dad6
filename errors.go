package ledgerauth

import "errors"

var (
	// ErrEmailTaken is returned by Register when the email already has an account.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned by id-based operations for a missing account.
	ErrUserNotFound = errors.New("user not found")
	// ErrAccountLocked is returned while the lockout window for an email is active.
	ErrAccountLocked = errors.New("account temporarily locked")
	// ErrAccountDisabled is returned when the user record is inactive.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrTOTPRequired is returned by Login when TOTP is enabled and no code was supplied.
	ErrTOTPRequired = errors.New("totp code required")
	// ErrTOTPInvalid is returned when a supplied TOTP code fails verification.
	ErrTOTPInvalid = errors.New("invalid totp code")
	// ErrTOTPNotConfigured is returned by DisableTOTP when no active secret exists.
	ErrTOTPNotConfigured = errors.New("totp not configured")
	// ErrTOTPSetupMissing is returned by EnableTOTP when no setup is in progress.
	ErrTOTPSetupMissing = errors.New("no totp setup in progress")
	// ErrBackupCodeInvalid is returned when a backup code matches none on file.
	ErrBackupCodeInvalid = errors.New("invalid backup code")
	// ErrRefreshInvalid is returned for a missing, expired, or revoked refresh token.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrResetTokenInvalid is returned for a missing, expired, or consumed reset token.
	ErrResetTokenInvalid = errors.New("invalid or expired reset token")
	// ErrPasswordBreached is returned when the password appears in a known breach corpus.
	ErrPasswordBreached = errors.New("password found in breach corpus")
	// ErrPasswordPolicy is returned when the password fails the minimum-length policy.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrCacheUnavailable is surfaced only on fail-closed token creation paths.
	ErrCacheUnavailable = errors.New("token cache unavailable")
	// ErrServiceNotReady indicates the Service was used before Builder.Build.
	ErrServiceNotReady = errors.New("service not initialized")
)

// ErrorKind groups the sentinel errors into the four categories a transport
// layer needs to map responses: Conflict, Unauthorized, BadRequest, and
// Infrastructure.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindConflict
	KindUnauthorized
	KindBadRequest
	KindInfrastructure
)

// Kind classifies err into an [ErrorKind]. Unrecognized errors report
// KindUnknown; callers should treat those as internal failures.
func Kind(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrEmailTaken):
		return KindConflict
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrAccountLocked),
		errors.Is(err, ErrAccountDisabled),
		errors.Is(err, ErrTOTPRequired),
		errors.Is(err, ErrTOTPInvalid),
		errors.Is(err, ErrBackupCodeInvalid),
		errors.Is(err, ErrRefreshInvalid):
		return KindUnauthorized
	case errors.Is(err, ErrResetTokenInvalid),
		errors.Is(err, ErrPasswordBreached),
		errors.Is(err, ErrPasswordPolicy),
		errors.Is(err, ErrTOTPSetupMissing),
		errors.Is(err, ErrTOTPNotConfigured):
		return KindBadRequest
	case errors.Is(err, ErrCacheUnavailable):
		return KindInfrastructure
	default:
		return KindUnknown
	}
}
