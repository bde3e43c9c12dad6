package ledgerauth

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable of the authentication service. Instances are
// validated by [Builder.Build] and treated as immutable afterwards.
type Config struct {
	JWT      JWTConfig
	Tokens   TokenConfig
	Lockout  LockoutConfig
	Password PasswordConfig
	TOTP     TOTPConfig
	Backup   BackupConfig
	Breach   BreachConfig
	Audit    AuditConfig
	Retry    RetryConfig
}

// JWTConfig configures the signed access token.
type JWTConfig struct {
	Secret    []byte
	AccessTTL time.Duration
	Issuer    string
	Audience  string
	Leeway    time.Duration
}

// TokenConfig configures the opaque tokens held in the cache.
type TokenConfig struct {
	RefreshTTL time.Duration
	ResetTTL   time.Duration
}

// LockoutConfig configures failed-login counting per email address. After
// MaxAttempts failures inside Window, the lockout flag is set for Duration and
// the counter is cleared.
type LockoutConfig struct {
	MaxAttempts int
	Window      time.Duration
	Duration    time.Duration
}

// PasswordConfig holds argon2id parameters. Memory is in KiB.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
}

// TOTPConfig configures second-factor code generation and verification.
// Skew is the number of time steps accepted on each side of now.
type TOTPConfig struct {
	Issuer       string
	Digits       int
	Period       int
	Skew         int
	SecretLength int
	Algorithm    string
}

// BackupConfig configures one-time recovery codes.
type BackupConfig struct {
	Count  int
	Length int // hex characters per code; Length/2 bytes of entropy each
}

// BreachConfig configures the k-anonymity breach-corpus lookup.
type BreachConfig struct {
	Enabled bool
	BaseURL string
	Timeout time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// RetryConfig bounds the token-cache retry policy.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultConfig returns production-leaning defaults: 15-minute access tokens,
// 30-day refresh tokens, 1-hour reset tokens, a 5-attempt/15-minute lockout,
// and argon2id at 64 MiB / 3 passes.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL: 15 * time.Minute,
			Issuer:    "pennyledger",
			Audience:  "pennyledger-api",
			Leeway:    30 * time.Second,
		},
		Tokens: TokenConfig{
			RefreshTTL: 30 * 24 * time.Hour,
			ResetTTL:   time.Hour,
		},
		Lockout: LockoutConfig{
			MaxAttempts: 5,
			Window:      15 * time.Minute,
			Duration:    15 * time.Minute,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 4,
			SaltLength:  16,
			KeyLength:   32,
			MinLength:   10,
		},
		TOTP: TOTPConfig{
			Issuer:       "Pennyledger",
			Digits:       6,
			Period:       30,
			Skew:         2,
			SecretLength: 20,
			Algorithm:    "SHA1",
		},
		Backup: BackupConfig{
			Count:  10,
			Length: 8,
		},
		Breach: BreachConfig{
			Enabled: true,
			BaseURL: "https://api.pwnedpasswords.com",
			Timeout: 3 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   50 * time.Millisecond,
			MaxDelay:    time.Second,
		},
	}
}

// ConfigFromEnv builds a Config from DefaultConfig plus environment overrides.
// A .env file in the working directory is loaded first when present.
func ConfigFromEnv() Config {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if v := os.Getenv("AUTH_JWT_SECRET"); v != "" {
		cfg.JWT.Secret = []byte(v)
	}
	if v := os.Getenv("AUTH_JWT_ISSUER"); v != "" {
		cfg.JWT.Issuer = v
	}
	if v := os.Getenv("AUTH_JWT_AUDIENCE"); v != "" {
		cfg.JWT.Audience = v
	}
	cfg.JWT.AccessTTL = envDuration("AUTH_ACCESS_TTL", cfg.JWT.AccessTTL)
	cfg.Tokens.RefreshTTL = envDuration("AUTH_REFRESH_TTL", cfg.Tokens.RefreshTTL)
	cfg.Tokens.ResetTTL = envDuration("AUTH_RESET_TTL", cfg.Tokens.ResetTTL)
	cfg.Lockout.MaxAttempts = envInt("AUTH_LOCKOUT_MAX_ATTEMPTS", cfg.Lockout.MaxAttempts)
	cfg.Lockout.Window = envDuration("AUTH_LOCKOUT_WINDOW", cfg.Lockout.Window)
	cfg.Lockout.Duration = envDuration("AUTH_LOCKOUT_DURATION", cfg.Lockout.Duration)
	if v := os.Getenv("AUTH_TOTP_ISSUER"); v != "" {
		cfg.TOTP.Issuer = v
	}
	if v := os.Getenv("AUTH_BREACH_CHECK"); v != "" {
		cfg.Breach.Enabled = v == "1" || v == "true"
	}
	if v := os.Getenv("AUTH_BREACH_BASE_URL"); v != "" {
		cfg.Breach.BaseURL = v
	}

	return cfg
}

// Validate rejects configurations the service cannot run safely with.
func (c Config) Validate() error {
	if len(c.JWT.Secret) < 32 {
		return errors.New("jwt secret must be at least 32 bytes")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("access ttl must be positive")
	}
	if c.Tokens.RefreshTTL <= 0 || c.Tokens.ResetTTL <= 0 {
		return errors.New("token ttls must be positive")
	}
	if c.Tokens.ResetTTL >= c.Tokens.RefreshTTL {
		return errors.New("reset ttl must be shorter than refresh ttl")
	}
	if c.Lockout.MaxAttempts < 1 {
		return errors.New("lockout max attempts must be >= 1")
	}
	if c.Lockout.Window <= 0 || c.Lockout.Duration <= 0 {
		return errors.New("lockout window and duration must be positive")
	}
	if c.Password.Memory < 8*1024 {
		return errors.New("password memory must be >= 8192 KiB")
	}
	if c.Password.Time < 1 || c.Password.Parallelism < 1 {
		return errors.New("password time and parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 || c.Password.KeyLength < 16 {
		return errors.New("password salt and key length must be >= 16")
	}
	if c.TOTP.Digits < 6 || c.TOTP.Digits > 10 {
		return errors.New("totp digits must be between 6 and 10")
	}
	if c.TOTP.Period < 15 {
		return errors.New("totp period must be >= 15 seconds")
	}
	if c.TOTP.Skew < 0 || c.TOTP.Skew > 4 {
		return errors.New("totp skew must be between 0 and 4 steps")
	}
	if c.TOTP.SecretLength < 20 {
		return errors.New("totp secret must be >= 20 bytes")
	}
	if c.Backup.Count < 1 || c.Backup.Length < 8 || c.Backup.Length%2 != 0 {
		return errors.New("backup codes require count >= 1 and even length >= 8")
	}
	if c.Breach.Enabled && c.Breach.BaseURL == "" {
		return errors.New("breach check enabled without base url")
	}
	if c.Retry.MaxAttempts < 1 {
		return errors.New("retry max attempts must be >= 1")
	}
	if c.Retry.BaseDelay <= 0 || c.Retry.MaxDelay < c.Retry.BaseDelay {
		return errors.New("retry delays must be positive and max >= base")
	}
	return nil
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
